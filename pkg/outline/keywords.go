package outline

import "strings"

// Keyword tables for classifying outline headings. The LLM writes outlines in
// the target language, so every supported language contributes markers.
var (
	introKeywords = []string{
		"introduction", "intro", "opening", "overview",
		"mở đầu", "giới thiệu", "lời mở",
		"引言", "介绍", "序",
		"はじめに", "序章",
		"서론", "소개",
	}

	outroKeywords = []string{
		"conclusion", "outro", "closing", "summary", "final thoughts",
		"kết luận", "tổng kết", "lời kết",
		"结论", "总结",
		"まとめ", "結論",
		"결론", "마무리",
	}

	quoteKeywords = []string{
		"quote", "quotation", "saying",
		"trích dẫn", "câu nói", "danh ngôn",
		"名言", "引用", "语录",
		"인용", "명언",
	}

	storyKeywords = []string{
		"story", "tale", "anecdote", "parable",
		"câu chuyện", "chuyện", "giai thoại",
		"故事", "物語", "寓話",
		"이야기", "일화",
	}
)

func matchesAny(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// classify tags a heading by its depth and title text.
func classify(level int, title string) string {
	if level <= 2 {
		switch {
		case matchesAny(title, introKeywords):
			return TypeIntro
		case matchesAny(title, outroKeywords):
			return TypeOutro
		default:
			return TypeSectionHeader
		}
	}
	switch {
	case matchesAny(title, quoteKeywords):
		return TypeQuoteSuggestion
	case matchesAny(title, storyKeywords):
		return TypeStorySuggestion
	default:
		return TypePoint
	}
}
