package parser

import "strings"

// Kind identifies the syntactic category of a Node.
type Kind int

const (
	KindToken Kind = iota // leaf wrapping a single token
	KindRoot
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	KindResultColumn
	KindFrom
	KindJoin
	KindTableRef
	KindSubquery
	KindColumnRef
	KindAssignment
	KindOrderingTerm
	KindBindParameter
	KindLiteral
	KindEquivalenceExpr
	KindComparisonExpr
	KindBinaryExpr
	KindUnaryExpr
	KindLikeExpr
	KindInExpr
	KindBetweenExpr
	KindIsNullExpr
	KindParenExpr
	KindFunctionCall
	KindCaseExpr
	KindCastExpr
	KindExistsExpr
	KindCollateExpr
	KindError
)

var kindNames = [...]string{
	KindToken:           "Token",
	KindRoot:            "Root",
	KindSelect:          "Select",
	KindInsert:          "Insert",
	KindUpdate:          "Update",
	KindDelete:          "Delete",
	KindResultColumn:    "ResultColumn",
	KindFrom:            "From",
	KindJoin:            "Join",
	KindTableRef:        "TableRef",
	KindSubquery:        "Subquery",
	KindColumnRef:       "ColumnRef",
	KindAssignment:      "Assignment",
	KindOrderingTerm:    "OrderingTerm",
	KindBindParameter:   "BindParameter",
	KindLiteral:         "Literal",
	KindEquivalenceExpr: "EquivalenceExpr",
	KindComparisonExpr:  "ComparisonExpr",
	KindBinaryExpr:      "BinaryExpr",
	KindUnaryExpr:       "UnaryExpr",
	KindLikeExpr:        "LikeExpr",
	KindInExpr:          "InExpr",
	KindBetweenExpr:     "BetweenExpr",
	KindIsNullExpr:      "IsNullExpr",
	KindParenExpr:       "ParenExpr",
	KindFunctionCall:    "FunctionCall",
	KindCaseExpr:        "CaseExpr",
	KindCastExpr:        "CastExpr",
	KindExistsExpr:      "ExistsExpr",
	KindCollateExpr:     "CollateExpr",
	KindError:           "Error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// IsStatement reports whether k is one of the statement kinds.
func (k Kind) IsStatement() bool {
	return k >= KindSelect && k <= KindDelete
}

// Role tags a child by the part it plays in its parent, e.g. the alias of a
// table reference or the qualifier of a column reference.
type Role int

const (
	RoleNone Role = iota
	RoleDatabase
	RoleQualifier
	RoleName
	RoleAlias
	RoleOperator
)

// Node is a parse tree node. Leaves carry a token; inner nodes carry children.
// The concatenated leaf text of any node equals the source it was parsed from.
type Node struct {
	Kind     Kind
	Role     Role
	Children []*Node

	tok    *Token
	parent *Node
}

// Snapshotter yields a private deep copy of a parse tree. Callers may mutate
// the returned tree freely.
type Snapshotter interface {
	Snapshot() *Node
}

// Reader gives fn read-only access to a tree without copying it. fn must not
// mutate the tree or retain it after returning.
type Reader interface {
	Read(fn func(root *Node))
}

func newLeaf(kind Kind, role Role, tok Token) *Node {
	t := tok
	return &Node{Kind: kind, Role: role, tok: &t}
}

func newNode(kind Kind, children ...*Node) *Node {
	n := &Node{Kind: kind}
	n.Append(children...)
	return n
}

// Append adds children to n and links them back to it.
func (n *Node) Append(children ...*Node) {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.parent = n
		n.Children = append(n.Children, c)
	}
}

// IsLeaf reports whether the node wraps a single token.
func (n *Node) IsLeaf() bool {
	return n.tok != nil
}

// Token returns the leaf token, or false for inner nodes.
func (n *Node) Token() (Token, bool) {
	if n.tok == nil {
		return Token{}, false
	}
	return *n.tok, true
}

// ReplaceToken swaps the literal of a leaf, keeping its leading trivia. It
// reports false for inner nodes.
func (n *Node) ReplaceToken(literal string) bool {
	if n.tok == nil {
		return false
	}
	n.tok.Literal = literal
	return true
}

// Parent returns the direct parent, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// ParentOfKind returns the nearest strict ancestor of one of the given kinds.
func (n *Node) ParentOfKind(kinds ...Kind) *Node {
	for p := n.parent; p != nil; p = p.parent {
		for _, k := range kinds {
			if p.Kind == k {
				return p
			}
		}
	}
	return nil
}

// Child returns the first direct child with the given role.
func (n *Node) Child(role Role) *Node {
	for _, c := range n.Children {
		if c.Role == role {
			return c
		}
	}
	return nil
}

// FirstChildOfKind returns the first direct child of the given kind.
func (n *Node) FirstChildOfKind(kind Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// Text returns the exact source text of the subtree, leading trivia of its
// first token included.
func (n *Node) Text() string {
	var sb strings.Builder
	n.writeText(&sb)
	return sb.String()
}

func (n *Node) writeText(sb *strings.Builder) {
	if n.tok != nil {
		sb.WriteString(n.tok.Leading)
		sb.WriteString(n.tok.Literal)
		return
	}
	for _, c := range n.Children {
		c.writeText(sb)
	}
}

// SourceText returns the subtree text without the first token's leading
// trivia.
func (n *Node) SourceText() string {
	text := n.Text()
	if first := n.firstLeaf(); first != nil {
		return text[len(first.tok.Leading):]
	}
	return text
}

func (n *Node) firstLeaf() *Node {
	if n.tok != nil {
		return n
	}
	for _, c := range n.Children {
		if l := c.firstLeaf(); l != nil {
			return l
		}
	}
	return nil
}

// Walk visits n and its descendants in pre-order (source order). Returning
// false from fn stops the traversal; Walk then reports false.
func Walk(n *Node, fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// FindAll returns every node of the given kind under n, n included, in
// source order.
func (n *Node) FindAll(kind Kind) []*Node {
	var out []*Node
	Walk(n, func(c *Node) bool {
		if c.Kind == kind {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Clone returns a deep copy of the subtree. The copy's root has no parent.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{Kind: n.Kind, Role: n.Role}
	if n.tok != nil {
		t := *n.tok
		cp.tok = &t
	}
	if len(n.Children) > 0 {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cc := c.Clone()
			cc.parent = cp
			cp.Children[i] = cc
		}
	}
	return cp
}

// Snapshot implements Snapshotter.
func (n *Node) Snapshot() *Node {
	return n.Clone()
}

// Read implements Reader.
func (n *Node) Read(fn func(root *Node)) {
	fn(n)
}

// Name returns the unquoted identifier held by the RoleName child, which is
// how table and column references expose their name.
func (n *Node) Name() string {
	return n.roleText(RoleName)
}

// Qualifier returns the unquoted table qualifier of a column reference.
func (n *Node) Qualifier() string {
	return n.roleText(RoleQualifier)
}

// Alias returns the unquoted alias of a table reference or result column.
func (n *Node) Alias() string {
	return n.roleText(RoleAlias)
}

func (n *Node) roleText(role Role) string {
	c := n.Child(role)
	if c == nil || c.tok == nil {
		return ""
	}
	return Unquote(c.tok.Literal)
}
