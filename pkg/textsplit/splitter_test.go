package textsplit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextIsSinglePiece(t *testing.T) {
	chunks := Split("Hello world.", 500)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world.", chunks[0])
}

func TestSplitEmptyText(t *testing.T) {
	assert.Nil(t, Split("   ", 500))
}

func TestSplitRespectsLimit(t *testing.T) {
	para := strings.Repeat("This is a sentence about something. ", 40)
	chunks := Split(para, 100)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestSplitKeepsParagraphsTogetherWhenTheyFit(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph here."
	chunks := Split(text, 30)
	assert.Equal(t, []string{"First paragraph here.", "Second paragraph here."}, chunks)
}

func TestSplitHardWrapsSpacelessSentence(t *testing.T) {
	long := strings.Repeat("a", 250)
	chunks := Split(long+".", 100)
	require.GreaterOrEqual(t, len(chunks), 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
	}
	assert.Equal(t, long+".", strings.Join(chunks, ""))
}

func TestSplitPrefersSpaceOnHardWrap(t *testing.T) {
	sentence := strings.Repeat("word ", 60) + "end."
	chunks := Split(sentence, 80)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 80)
		assert.False(t, strings.HasPrefix(c, " "))
	}
}

func TestSentencesCJKPunctuation(t *testing.T) {
	out := Sentences("第一句话。第二句话！第三句话？")
	assert.Equal(t, []string{"第一句话。", "第二句话！", "第三句话？"}, out)
}

func TestSentencesDropsShards(t *testing.T) {
	out := Sentences("Real sentence here. ! ?")
	assert.Equal(t, []string{"Real sentence here."}, out)
}

func TestSentencesNoTerminator(t *testing.T) {
	out := Sentences("no punctuation at all")
	assert.Equal(t, []string{"no punctuation at all"}, out)
}
