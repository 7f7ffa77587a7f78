package params

import (
	"encoding/hex"
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	engerrors "github.com/arkilian/roomsql/internal/errors"
	"github.com/arkilian/roomsql/internal/query/parser"
)

// ValueQueue feeds values to InlineValues in order.
type ValueQueue struct {
	values []any
}

// NewValueQueue creates a queue holding values.
func NewValueQueue(values ...any) *ValueQueue {
	return &ValueQueue{values: append([]any(nil), values...)}
}

// Pop removes and returns the next value.
func (q *ValueQueue) Pop() (any, bool) {
	if len(q.values) == 0 {
		return nil, false
	}
	v := q.values[0]
	q.values = q.values[1:]
	return v, true
}

// Len returns the number of values left.
func (q *ValueQueue) Len() int {
	return len(q.values)
}

// InlineValues replaces each bind parameter, in source order, with the next
// value of the queue rendered as a SQL literal, and returns the statement
// text.
//
// Strings are quoted but not escaped: the result is meant for display. Use
// AuditValues before handing such text to a database.
//
// Running out of values is a caller bug. InlineValues panics with a fatal
// *errors.EngineError (code ARITY_MISMATCH) instead of returning partial text.
func InlineValues(src parser.Snapshotter, values *ValueQueue) string {
	tree := src.Snapshot()
	bound := tree.FindAll(parser.KindBindParameter)

	for i, p := range bound {
		v, ok := values.Pop()
		if !ok {
			panic(engerrors.NewBindingError(engerrors.CodeArityMismatch,
				fmt.Sprintf("statement has %d bind parameters but only %d values were supplied", len(bound), i)).
				WithDetails(map[string]interface{}{
					"parameters": len(bound),
					"values":     i,
				}))
		}
		p.ReplaceToken(Literal(v))
	}
	return tree.Text()
}

// Literal renders v as SQL literal text: nil is null, strings are single
// quoted, byte slices are blob literals and anything else uses its default
// format.
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + val + "'"
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(val)) + "'"
	default:
		return fmt.Sprint(val)
	}
}

// Finding reports a value that looks like SQL injection.
type Finding struct {
	Index       int    // position in the value list
	Value       string // the offending value
	Fingerprint string // libinjection fingerprint
}

// AuditValues checks the string values that InlineValues would embed.
// Non-string values cannot carry injection and are skipped.
func AuditValues(values []any) []Finding {
	var findings []Finding
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(s); isSQLi {
			findings = append(findings, Finding{Index: i, Value: s, Fingerprint: string(fingerprint)})
		}
	}
	return findings
}
