package exec

import (
	"context"
	"strings"

	"go.uber.org/zap"

	engerrors "github.com/arkilian/roomsql/internal/errors"
	"github.com/arkilian/roomsql/internal/schema"
)

// CreateStatements returns one CREATE statement per entity of s, in schema
// order. FTS entities become fts4 virtual tables. Views are skipped since
// their defining query is not part of the model, and so are entities without
// a single field column.
func CreateStatements(s *schema.Schema) []string {
	var stmts []string
	for _, t := range s.Tables {
		if t.Kind != schema.KindEntity {
			continue
		}
		if t.IsFts {
			stmts = append(stmts, createFts(t))
		} else if stmt := createTable(t); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func createTable(t *schema.Table) string {
	var defs, keys []string
	keyDef := -1
	for _, c := range t.Columns {
		fc, ok := c.(*schema.FieldColumn)
		if !ok {
			continue
		}
		def := QuoteIdent(fc.ColumnName)
		if ty := fc.Type(); ty != nil && ty.Affinity != schema.AffinityNone {
			def += " " + string(ty.Affinity)
		}
		if fc.PrimaryKey {
			keys = append(keys, QuoteIdent(fc.ColumnName))
			keyDef = len(defs)
		}
		defs = append(defs, def)
	}

	if len(defs) == 0 {
		return ""
	}

	switch len(keys) {
	case 0:
	case 1:
		defs[keyDef] += " PRIMARY KEY"
	default:
		defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	return "CREATE TABLE IF NOT EXISTS " + QuoteIdent(t.Name) + " (" + strings.Join(defs, ", ") + ")"
}

// createFts declares the non-key field columns; a primary key of an FTS
// entity aliases the docid.
func createFts(t *schema.Table) string {
	var cols []string
	for _, c := range t.Columns {
		if fc, ok := c.(*schema.FieldColumn); ok && !fc.PrimaryKey {
			cols = append(cols, QuoteIdent(fc.ColumnName))
		}
	}
	return "CREATE VIRTUAL TABLE IF NOT EXISTS " + QuoteIdent(t.Name) + " USING fts4(" + strings.Join(cols, ", ") + ")"
}

// QuoteIdent quotes an identifier for SQLite.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ApplySchema creates the tables of s. Tables that already exist are left as
// they are; a second entity reusing a table name is a no-op.
func (e *Executor) ApplySchema(ctx context.Context, s *schema.Schema) error {
	for _, stmt := range CreateStatements(s) {
		e.logger.Debug("applying schema", zap.String("sql", stmt))
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return engerrors.NewExecutionError(engerrors.CodeQueryFailed, "failed to create table", err).
				WithDetails(map[string]interface{}{"statement": stmt})
		}
	}
	return nil
}
