package params

import "github.com/arkilian/roomsql/internal/query/parser"

// NeedsBinding reports whether the statement has at least one bind
// parameter. The traversal stops at the first one.
func NeedsBinding(src parser.Reader) bool {
	return needsBinding(src, nil)
}

// needsBinding is NeedsBinding with a hook called for every visited node.
func needsBinding(src parser.Reader, visit func(*parser.Node)) bool {
	found := false
	src.Read(func(root *parser.Node) {
		parser.Walk(root, func(n *parser.Node) bool {
			if visit != nil {
				visit(n)
			}
			if n.Kind == parser.KindBindParameter {
				found = true
				return false
			}
			return true
		})
	})
	return found
}
