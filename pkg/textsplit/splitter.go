// Package textsplit cuts script text into pieces small enough for a single
// TTS call, preferring paragraph and sentence boundaries over hard cuts.
package textsplit

import (
	"regexp"
	"strings"
)

// sentenceEndRe matches runs of sentence-final punctuation, Latin and CJK.
var sentenceEndRe = regexp.MustCompile(`[.?!。！？]+`)

// minFragmentLen filters out punctuation shards left by the tokenizer.
const minFragmentLen = 2

// Split divides text into chunks of at most maxChars characters. Paragraphs
// are kept together when they fit; otherwise sentences accumulate into a
// chunk until the next one would overflow. A single sentence longer than
// maxChars is hard-wrapped at the last space inside the window, or at the
// window edge when it has no spaces.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	add := func(piece string) {
		if current.Len() > 0 && current.Len()+1+len(piece) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(piece)
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChars {
			add(para)
			continue
		}
		for _, sentence := range Sentences(para) {
			if len(sentence) <= maxChars {
				add(sentence)
				continue
			}
			for _, piece := range hardWrap(sentence, maxChars) {
				add(piece)
			}
		}
	}
	flush()
	return chunks
}

// Sentences tokenizes a paragraph into sentences, keeping the terminating
// punctuation attached. Fragments shorter than two characters are dropped.
func Sentences(para string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(para, -1) {
		s := strings.TrimSpace(para[last:loc[1]])
		if len(s) >= minFragmentLen {
			out = append(out, s)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(para[last:]); len(rest) >= minFragmentLen {
		out = append(out, rest)
	}
	if len(out) == 0 {
		trimmed := strings.TrimSpace(para)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// hardWrap cuts an oversize sentence at the last space within each window.
func hardWrap(sentence string, maxChars int) []string {
	var out []string
	rest := sentence
	for len(rest) > maxChars {
		cut := strings.LastIndex(rest[:maxChars], " ")
		if cut <= 0 {
			cut = maxChars
		}
		piece := strings.TrimSpace(rest[:cut])
		if piece != "" {
			out = append(out, piece)
		}
		rest = strings.TrimSpace(rest[cut:])
	}
	if rest != "" {
		out = append(out, rest)
	}
	return out
}
