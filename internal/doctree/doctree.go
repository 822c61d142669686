package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Source   string     // Uploaded filename the tree was parsed from
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page/slide (0 if N/A)
	Children []*DocNode // Subsections
}

// Text flattens the tree into plain text in reading order. Headings are
// emitted as their own lines ahead of the section text.
func (t *DocTree) Text() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			for _, s := range []string{n.Title, n.Text} {
				if s == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(s)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return sb.String()
}

// Empty reports whether the tree carries no text at all.
func (t *DocTree) Empty() bool {
	return strings.TrimSpace(t.Text()) == ""
}
