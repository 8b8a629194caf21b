package outline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutline = `# Ancient Wisdom for Modern Life

## Introduction
A short framing of why ancient ideas still matter.

## The Stoic Quotes
### Quote: Marcus Aurelius on control
Focus on what is up to you.
### Quote: Seneca on time
We are not given a short life.

## Stories of Practice
### Story: The farmer and the horse
A parable about judgment.
- The neighbors' reactions
- The farmer's refrain

## Conclusion
Bringing the threads together.
`

func TestParseClassifiesHeadings(t *testing.T) {
	o, err := Parse(sampleOutline)
	require.NoError(t, err)

	require.NotNil(t, o.Intro)
	assert.Equal(t, TypeIntro, o.Intro.Type)
	assert.Equal(t, "Introduction", o.Intro.Title)
	assert.Contains(t, o.Intro.Content, "ancient ideas")

	require.NotNil(t, o.Outro)
	assert.Equal(t, TypeOutro, o.Outro.Type)

	// Title heading plus the two body sections.
	require.Len(t, o.Sections, 3)
	quotes := o.Sections[1]
	assert.Equal(t, TypeSectionHeader, quotes.Type)
	require.Len(t, quotes.Items, 2)
	assert.Equal(t, TypeQuoteSuggestion, quotes.Items[0].Type)
	assert.Equal(t, TypeQuoteSuggestion, quotes.Items[1].Type)

	stories := o.Sections[2]
	require.Len(t, stories.Items, 1)
	assert.Equal(t, TypeStorySuggestion, stories.Items[0].Type)
	assert.Len(t, stories.Items[0].Items, 2)
}

func TestParseVietnameseKeywords(t *testing.T) {
	o, err := Parse("## Mở đầu\nchào mừng\n## Trích dẫn hay\n### Câu nói của Lão Tử\n## Kết luận\nxong")
	require.NoError(t, err)
	require.NotNil(t, o.Intro)
	require.NotNil(t, o.Outro)
	require.Len(t, o.Sections, 1)
	require.Len(t, o.Sections[0].Items, 1)
	assert.Equal(t, TypeQuoteSuggestion, o.Sections[0].Items[0].Type)
}

func TestParseEmptyOutline(t *testing.T) {
	_, err := Parse("\n\n   \n")
	assert.ErrorIs(t, err, ErrEmptyOutline)
}

func TestFlattenIsDenseAndOrdered(t *testing.T) {
	o, err := Parse(sampleOutline)
	require.NoError(t, err)

	items := Flatten(o)
	require.NotEmpty(t, items)

	// Dense 0-based indexes with no duplicates.
	for i, item := range items {
		assert.Equal(t, i, item.Index)
	}

	// Intro first, outro last.
	assert.Equal(t, TypeIntro, items[0].Type)
	assert.Equal(t, TypeOutro, items[len(items)-1].Type)

	// Children follow their parents.
	var quoteIdx, sectionIdx int
	for _, item := range items {
		if item.Title == "The Stoic Quotes" {
			sectionIdx = item.Index
		}
		if item.Title == "Quote: Marcus Aurelius on control" {
			quoteIdx = item.Index
		}
	}
	assert.Greater(t, quoteIdx, sectionIdx)
}

func TestParentContent(t *testing.T) {
	o, err := Parse(sampleOutline)
	require.NoError(t, err)
	items := Flatten(o)

	for _, item := range items {
		if item.Title == "Quote: Marcus Aurelius on control" {
			// Parent is the section heading, which has no content; its
			// title stands in.
			assert.Equal(t, "The Stoic Quotes", ParentContent(items, item.Index))
		}
	}
	assert.Equal(t, "", ParentContent(items, 0))
}
