package exec

import (
	"context"

	"go.uber.org/zap"

	engerrors "github.com/arkilian/roomsql/internal/errors"
	"github.com/arkilian/roomsql/internal/index"
)

var _ index.Catalog = (*Executor)(nil)

// ListIndexes returns the indices named index_*, with the first column of
// each.
func (e *Executor) ListIndexes(ctx context.Context) ([]index.Index, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT name, tbl_name FROM sqlite_master WHERE type = 'index' AND name LIKE 'index\_%' ESCAPE '\' ORDER BY name`)
	if err != nil {
		return nil, engerrors.NewExecutionError(engerrors.CodeQueryFailed, "failed to list indexes", err)
	}

	var indexes []index.Index
	for rows.Next() {
		var idx index.Index
		if err := rows.Scan(&idx.Name, &idx.Table); err != nil {
			rows.Close()
			return nil, engerrors.NewExecutionError(engerrors.CodeQueryFailed, "failed to scan index", err)
		}
		indexes = append(indexes, idx)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, engerrors.NewExecutionError(engerrors.CodeQueryFailed, "failed to list indexes", err)
	}

	// The pool holds one connection, so columns are read after the rows above
	// are closed.
	for i := range indexes {
		err := e.db.QueryRowContext(ctx,
			`SELECT name FROM pragma_index_info(?) ORDER BY seqno LIMIT 1`, indexes[i].Name).
			Scan(&indexes[i].Column)
		if err != nil {
			return nil, engerrors.NewExecutionError(engerrors.CodeQueryFailed, "failed to read index columns", err).
				WithDetails(map[string]interface{}{"index": indexes[i].Name})
		}
	}
	return indexes, nil
}

// CreateIndex creates idx if it does not exist.
func (e *Executor) CreateIndex(ctx context.Context, idx index.Index) error {
	stmt := "CREATE INDEX IF NOT EXISTS " + QuoteIdent(idx.Name) +
		" ON " + QuoteIdent(idx.Table) + " (" + QuoteIdent(idx.Column) + ")"
	e.logger.Debug("creating index", zap.String("sql", stmt))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return engerrors.NewExecutionError(engerrors.CodeQueryFailed, "failed to create index", err).
			WithDetails(map[string]interface{}{"statement": stmt})
	}
	return nil
}

// DropIndex drops the named index if it exists.
func (e *Executor) DropIndex(ctx context.Context, name string) error {
	stmt := "DROP INDEX IF EXISTS " + QuoteIdent(name)
	e.logger.Debug("dropping index", zap.String("sql", stmt))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return engerrors.NewExecutionError(engerrors.CodeQueryFailed, "failed to drop index", err).
			WithDetails(map[string]interface{}{"statement": stmt})
	}
	return nil
}
