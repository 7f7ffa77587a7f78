// Package observability tracks how resolved columns are used in predicates,
// which hints at the indices an entity would benefit from.
package observability

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arkilian/roomsql/internal/query/parser"
	"github.com/arkilian/roomsql/internal/query/resolve"
	"github.com/arkilian/roomsql/internal/schema"
)

// PredicateStats tracks predicate frequency per resolved column.
type PredicateStats struct {
	mu            sync.RWMutex
	predicateFreq map[string]*ColumnStats
	unresolved    map[string]*ColumnStats
	window        time.Duration
}

// ColumnStats holds statistics for a column.
type ColumnStats struct {
	Column    string // table.column
	Frequency int64
	LastSeen  time.Time
	Operators map[string]int // operator → count (e.g., "=" → 5, "IN" → 2)
}

// NewPredicateStats creates a new predicate statistics tracker.
// window: time duration for pruning old entries (e.g., 1 hour)
func NewPredicateStats(window time.Duration) *PredicateStats {
	return &PredicateStats{
		predicateFreq: make(map[string]*ColumnStats),
		unresolved:    make(map[string]*ColumnStats),
		window:        window,
	}
}

// RecordPredicate records a predicate access for a column.
// column: the qualified column name (e.g., "users.id")
// operator: the comparison operator (e.g., "=", "IN", ">")
func (q *PredicateStats) RecordPredicate(column, operator string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	record(q.predicateFreq, column, operator)
}

// RecordUnresolved records a column reference that did not resolve.
func (q *PredicateStats) RecordUnresolved(column string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	record(q.unresolved, column, "")
}

func record(m map[string]*ColumnStats, column, operator string) {
	stats, exists := m[column]
	if !exists {
		stats = &ColumnStats{
			Column:    column,
			Operators: make(map[string]int),
		}
		m[column] = stats
	}

	stats.Frequency++
	stats.LastSeen = time.Now()
	if operator != "" {
		stats.Operators[operator]++
	}
}

// RecordResolution records every column of res that is an operand of a
// comparison, plus every unresolved column. Derived columns are skipped.
func (q *PredicateStats) RecordResolution(res *resolve.Resolution) {
	for _, ref := range res.Columns {
		if ref.Derived {
			continue
		}
		if ref.Column == nil {
			name := ref.Name
			if ref.Qualifier != "" {
				name = ref.Qualifier + "." + name
			}
			q.RecordUnresolved(name)
			continue
		}
		if op := predicateOperator(ref.Node); op != "" {
			q.RecordPredicate(ref.Table.Name+"."+schema.DisplayName(ref.Column), op)
		}
	}
}

// predicateOperator returns the operator of the predicate n is a direct
// operand of, or "".
func predicateOperator(n *parser.Node) string {
	p := n.Parent()
	if p == nil {
		return ""
	}
	switch p.Kind {
	case parser.KindEquivalenceExpr, parser.KindComparisonExpr, parser.KindInExpr,
		parser.KindLikeExpr, parser.KindBetweenExpr, parser.KindIsNullExpr:
	default:
		return ""
	}

	var ops []string
	for _, c := range p.Children {
		if c.Role == parser.RoleOperator {
			ops = append(ops, strings.ToUpper(c.SourceText()))
		}
	}
	return strings.Join(ops, " ")
}

// GetTopPredicates returns the top N predicates by frequency.
// Returns a copy of the stats sorted by frequency (descending).
func (q *PredicateStats) GetTopPredicates(n int) []ColumnStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return top(q.predicateFreq, n)
}

// GetTopUnresolved returns the top N unresolved columns by frequency.
func (q *PredicateStats) GetTopUnresolved(n int) []ColumnStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return top(q.unresolved, n)
}

func top(m map[string]*ColumnStats, n int) []ColumnStats {
	if n <= 0 || len(m) == 0 {
		return []ColumnStats{}
	}

	stats := make([]ColumnStats, 0, len(m))
	for _, s := range m {
		// Deep copy the ColumnStats to prevent external modification
		statsCopy := ColumnStats{
			Column:    s.Column,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Operators: make(map[string]int, len(s.Operators)),
		}
		for op, count := range s.Operators {
			statsCopy.Operators[op] = count
		}
		stats = append(stats, statsCopy)
	}

	// Sort by frequency descending, then by name for a stable order
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Column < stats[j].Column
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes entries where time.Since(LastSeen) > window.
func (q *PredicateStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := time.Now().Add(-q.window)
	for _, m := range []map[string]*ColumnStats{q.predicateFreq, q.unresolved} {
		for col, stats := range m {
			if stats.LastSeen.Before(threshold) {
				delete(m, col)
			}
		}
	}
}
