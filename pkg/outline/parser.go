// Package outline parses LLM-produced Markdown outlines into a tree and
// flattens the tree into the dense, ordered item list the content worker
// generates script chunks from.
package outline

import (
	"errors"
	"regexp"
	"strings"
)

// Node types, aligned with the chunk item types they produce.
const (
	TypeIntro           = "intro"
	TypeOutro           = "outro"
	TypeSectionHeader   = "section_header"
	TypeQuoteSuggestion = "quote_suggestion"
	TypeStorySuggestion = "story_suggestion"
	TypePoint           = "point"
)

// ErrEmptyOutline is returned when the outline contains no usable headings
// or items.
var ErrEmptyOutline = errors.New("outline contains no items")

// Node is one element of the parsed outline tree.
type Node struct {
	Level   int
	Title   string
	Content string
	Type    string
	Items   []*Node
}

// Outline is a parsed document: an optional intro, body sections in document
// order, and an optional outro.
type Outline struct {
	Intro    *Node
	Sections []*Node
	Outro    *Node
}

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	listItemRe = regexp.MustCompile(`^(\s*)(?:[-*+]|\d+[.)])\s+(.*)$`)
)

// Parse reads a Markdown outline into a tree. Headings define structure;
// list items attach to the nearest heading above them; loose text becomes
// the enclosing node's content.
func Parse(markdown string) (*Outline, error) {
	var roots []*Node
	// stack holds the current heading chain, outermost first.
	var stack []*Node

	attach := func(n *Node) {
		// H1 and H2 are both document-level sections; only deeper headings
		// nest. The LLM uses H1 for the script title and H2 for sections
		// interchangeably.
		if n.Level <= 2 {
			stack = stack[:0]
		} else {
			for len(stack) > 0 && stack[len(stack)-1].Level >= n.Level {
				stack = stack[:len(stack)-1]
			}
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.Items = append(parent.Items, n)
		}
		stack = append(stack, n)
	}

	for _, raw := range strings.Split(markdown, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			attach(&Node{
				Level: level,
				Title: title,
				Type:  classify(level, title),
			})
			continue
		}

		if m := listItemRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1]) / 2
			text := strings.TrimSpace(m[2])
			base := 1
			if len(stack) > 0 {
				base = stack[len(stack)-1].Level + 1
			}
			level := base + indent
			item := &Node{
				Level:   level,
				Title:   text,
				Type:    classify(level, text),
				Content: "",
			}
			if len(stack) == 0 {
				roots = append(roots, item)
			} else {
				parent := stack[len(stack)-1]
				parent.Items = append(parent.Items, item)
			}
			continue
		}

		// Loose paragraph text belongs to the nearest open node.
		text := strings.TrimSpace(line)
		if len(stack) > 0 {
			node := stack[len(stack)-1]
			if node.Content == "" {
				node.Content = text
			} else {
				node.Content += "\n" + text
			}
		}
	}

	if len(roots) == 0 {
		return nil, ErrEmptyOutline
	}

	out := &Outline{}
	for _, n := range roots {
		switch {
		case n.Type == TypeIntro && out.Intro == nil:
			out.Intro = n
		case n.Type == TypeOutro:
			// The last outro-flavored heading wins.
			if out.Outro != nil {
				out.Sections = append(out.Sections, out.Outro)
			}
			out.Outro = n
		default:
			out.Sections = append(out.Sections, n)
		}
	}
	return out, nil
}
