package parser

import (
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	root, err := Parse("SELECT * FROM t WHERE a = :a")
	require.NoError(t, err)

	clone := root.Clone()
	require.Nil(t, clone.Parent())

	params := clone.FindAll(KindBindParameter)
	require.Len(t, params, 1)
	require.True(t, params[0].ReplaceToken("?"))

	assert.Equal(t, "SELECT * FROM t WHERE a = ?", clone.Text())
	assert.Equal(t, "SELECT * FROM t WHERE a = :a", root.Text())
	assert.Same(t, clone, params[0].ParentOfKind(KindRoot))
}

func TestReplaceTokenKeepsLeadingTrivia(t *testing.T) {
	root, err := Parse("SELECT *\nFROM t WHERE a =   :a")
	require.NoError(t, err)

	p := root.FindAll(KindBindParameter)[0]
	require.True(t, p.ReplaceToken("42"))
	assert.Equal(t, "SELECT *\nFROM t WHERE a =   42", root.Text())

	assert.False(t, root.ReplaceToken("x"), "inner nodes have no token")
}

func TestSourceText(t *testing.T) {
	root, err := Parse("SELECT * FROM t WHERE  t.c = 1")
	require.NoError(t, err)

	col := root.FindAll(KindColumnRef)[0]
	assert.Equal(t, "  t.c", col.Text())
	assert.Equal(t, "t.c", col.SourceText())
}

func TestWalkStops(t *testing.T) {
	root, err := Parse("SELECT a, b, c FROM t")
	require.NoError(t, err)

	visited := 0
	completed := Walk(root, func(n *Node) bool {
		visited++
		return n.Kind != KindSelect
	})
	assert.False(t, completed)
	assert.Equal(t, 2, visited, "root then select")

	all := 0
	assert.True(t, Walk(root, func(*Node) bool { all++; return true }))
	assert.Greater(t, all, visited)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "BindParameter", KindBindParameter.String())
	assert.Equal(t, "Unknown", Kind(999).String())
	assert.True(t, KindUpdate.IsStatement())
	assert.False(t, KindColumnRef.IsStatement())
}

func TestDocumentSnapshot(t *testing.T) {
	doc := NewDocument("SELECT * FROM t WHERE a = :a")
	require.NoError(t, doc.Err())

	snap := doc.Snapshot()
	snap.FindAll(KindBindParameter)[0].ReplaceToken("?")

	assert.Equal(t, "SELECT * FROM t WHERE a = :a", doc.Text())

	err := doc.Update("SELECT FROM")
	assert.Error(t, err)
	assert.Equal(t, uint64(2), doc.Version())
	assert.Equal(t, "SELECT FROM", doc.Text())
}

func TestDocumentConcurrentSnapshots(t *testing.T) {
	doc := NewDocument("SELECT * FROM t WHERE a = :a AND b = :b")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap := doc.Snapshot()
				for _, p := range snap.FindAll(KindBindParameter) {
					p.ReplaceToken("?")
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			_ = doc.Update("SELECT * FROM t WHERE a = :a AND b = :b")
		}
	}()
	wg.Wait()

	assert.Equal(t, "SELECT * FROM t WHERE a = :a AND b = :b", doc.Text())
}

// TestProperty_TextFidelity checks that any token soup, valid SQL or not,
// round-trips through the parse tree unchanged.
func TestProperty_TextFidelity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	fragments := []string{
		"SELECT", "*", "FROM", "t", "WHERE", "a", "=", "?", ":x", "@y", "$z", "?3",
		"AND", "OR", "(", ")", ",", "'s'", "'unterminated", `"q"`, "[b]", "1.5",
		"-- c\n", "/* c */", ";", "IN", "NOT", "LIKE", "BETWEEN", "JOIN", "ON",
		"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE", "!", "#", "x'ff'",
	}
	separators := []string{"", " ", "\n", "\t  "}

	properties.Property("parse tree text equals input", prop.ForAll(
		func(picks []int, seps []int) bool {
			var sb strings.Builder
			for i, p := range picks {
				sb.WriteString(fragments[p%len(fragments)])
				if i < len(seps) {
					sb.WriteString(separators[seps[i]%len(separators)])
				} else {
					sb.WriteString(" ")
				}
			}
			input := sb.String()
			root, _ := Parse(input)
			return root.Text() == input && root.Clone().Text() == input
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}
