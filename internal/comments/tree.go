// Package comments flattens a comment forest into display rows.
//
// The forest is copied into an arena: nodes live in one slice and refer to
// each other by index. Traversal uses an explicit stack, so arbitrarily deep
// threads never grow the call stack.
package comments

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/divyadrishti/internal/classify"
	"github.com/abelbrown/divyadrishti/internal/model"
)

// MaxIndentDepth is the depth past which indentation stops growing.
const MaxIndentDepth = 6

// IndentUnit is the number of columns per indentation level.
const IndentUnit = 2

// Indent returns the indentation in columns for a node at depth.
func Indent(depth int) int {
	return min(max(depth, 0), MaxIndentDepth) * IndentUnit
}

// Node is one comment in the arena. Children lists arena indices in order.
type Node struct {
	ID       int64
	By       string
	Time     int64
	Text     string
	Label    model.SentimentLabel
	Depth    int
	Parent   int // -1 for roots
	Children []int
}

// Color returns the sentiment color of the node.
func (n Node) Color() lipgloss.Color {
	return classify.LabelColor(n.Label)
}

// Forest is an arena-backed comment forest.
type Forest struct {
	nodes []Node
	roots []int
}

// Build copies roots into an arena. The input is not retained.
func Build(roots []model.Comment) *Forest {
	f := &Forest{}
	type frame struct {
		c      *model.Comment
		depth  int
		parent int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{c: &roots[i], depth: 0, parent: -1})
	}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		idx := len(f.nodes)
		f.nodes = append(f.nodes, Node{
			ID:     fr.c.ID,
			By:     fr.c.By,
			Time:   fr.c.Time,
			Text:   fr.c.Text,
			Label:  fr.c.SentimentLabel,
			Depth:  fr.depth,
			Parent: fr.parent,
		})
		if fr.parent < 0 {
			f.roots = append(f.roots, idx)
		} else {
			f.nodes[fr.parent].Children = append(f.nodes[fr.parent].Children, idx)
		}
		kids := fr.c.Children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{c: &kids[i], depth: fr.depth + 1, parent: idx})
		}
	}
	return f
}

// Len returns the total number of comments in the forest.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Roots returns the arena indices of the root comments.
func (f *Forest) Roots() []int {
	return f.roots
}

// Node returns the node at arena index i.
func (f *Forest) Node(i int) Node {
	return f.nodes[i]
}

// MaxDepth returns the deepest depth in the forest, or -1 when empty.
func (f *Forest) MaxDepth() int {
	d := -1
	for _, n := range f.nodes {
		d = max(d, n.Depth)
	}
	return d
}

// Row is a node ready for display.
type Row struct {
	Node
	Indent int
}

// Walk visits every node in display (pre-)order. Returning false stops the
// walk.
func (f *Forest) Walk(fn func(Row) bool) {
	stack := make([]int, 0, len(f.roots))
	for i := len(f.roots) - 1; i >= 0; i-- {
		stack = append(stack, f.roots[i])
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.nodes[idx]
		if !fn(Row{Node: n, Indent: Indent(n.Depth)}) {
			return
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Rows returns every node in display order.
func (f *Forest) Rows() []Row {
	rows := make([]Row, 0, len(f.nodes))
	f.Walk(func(r Row) bool {
		rows = append(rows, r)
		return true
	})
	return rows
}
