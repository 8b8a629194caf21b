package outline

// FlatItem is a single node of the flattened outline with its sequential
// index. section_index on a script chunk comes straight from Index.
type FlatItem struct {
	Index   int
	Level   int
	Type    string
	Title   string
	Content string
}

// Flatten emits the outline as a dense 0-indexed list in document order:
// intro first, then each section and its descendants pre-order, outro last.
// Nodes with neither a title nor content are skipped; indexes are assigned
// after skipping so the result has no gaps.
func Flatten(o *Outline) []FlatItem {
	var items []FlatItem

	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Title != "" || n.Content != "" {
			items = append(items, FlatItem{
				Level:   n.Level,
				Type:    n.Type,
				Title:   n.Title,
				Content: n.Content,
			})
		}
		for _, child := range n.Items {
			walk(child)
		}
	}

	walk(o.Intro)
	for _, s := range o.Sections {
		walk(s)
	}
	walk(o.Outro)

	for i := range items {
		items[i].Index = i
	}
	return items
}

// ParentContent returns the content of the nearest ancestor of item i with a
// lower level, used as generation context for the chunk prompt.
func ParentContent(items []FlatItem, i int) string {
	for j := i - 1; j >= 0; j-- {
		if items[j].Level < items[i].Level {
			if items[j].Content != "" {
				return items[j].Content
			}
			return items[j].Title
		}
	}
	return ""
}
