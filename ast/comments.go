package ast

// Comment is a source comment retained for source regeneration. Text holds
// the exact original text including the // or /* */ delimiters.
type Comment struct {
	SpanVal Span
	Text    string
	Block   bool
}

func (c *Comment) Span() Span { return c.SpanVal }

// CommentMap attaches comments to nodes. Leading comments precede the node
// they are attached to; trailing comments follow the last child of a block,
// switch case list, object literal or program.
type CommentMap struct {
	Leading  map[Node][]*Comment
	Trailing map[Node][]*Comment
}

// NewCommentMap creates an empty comment map.
func NewCommentMap() *CommentMap {
	return &CommentMap{
		Leading:  make(map[Node][]*Comment),
		Trailing: make(map[Node][]*Comment),
	}
}

// AddLeading attaches comments before n.
func (m *CommentMap) AddLeading(n Node, cs ...*Comment) {
	if len(cs) == 0 {
		return
	}
	m.Leading[n] = append(m.Leading[n], cs...)
}

// AddTrailing attaches comments at the end of n's body.
func (m *CommentMap) AddTrailing(n Node, cs ...*Comment) {
	if len(cs) == 0 {
		return
	}
	m.Trailing[n] = append(m.Trailing[n], cs...)
}

// Len returns the total number of attached comments.
func (m *CommentMap) Len() int {
	if m == nil {
		return 0
	}
	n := 0
	for _, cs := range m.Leading {
		n += len(cs)
	}
	for _, cs := range m.Trailing {
		n += len(cs)
	}
	return n
}

func (m *CommentMap) leading(n Node) []*Comment {
	if m == nil {
		return nil
	}
	return m.Leading[n]
}

func (m *CommentMap) trailing(n Node) []*Comment {
	if m == nil {
		return nil
	}
	return m.Trailing[n]
}
