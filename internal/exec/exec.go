// Package exec runs rewritten statements against SQLite. The driver is chosen
// at build time: pure Go modernc.org/sqlite by default, mattn/go-sqlite3 with
// the cgo_sqlite tag.
package exec

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	engerrors "github.com/arkilian/roomsql/internal/errors"
	"github.com/arkilian/roomsql/internal/logging"
	"github.com/arkilian/roomsql/internal/query/params"
)

// DriverName returns the database/sql driver name in use.
func DriverName() string {
	return driverName
}

// DriverType returns "cgo" for mattn/go-sqlite3 and "purego" for
// modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// Result holds the rows of a query.
type Result struct {
	Columns []string
	Rows    [][]interface{}
}

// Executor runs statements on one SQLite database.
type Executor struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens the database at dsn. A nil logger is replaced by a no-op logger.
func Open(dsn string, logger *zap.Logger) (*Executor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, engerrors.NewExecutionError(engerrors.CodeOpenFailed, "failed to open database", err)
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, engerrors.NewExecutionError(engerrors.CodeOpenFailed, "failed to open database", err)
	}

	logger = logger.Named("exec")
	logger.Debug("database opened",
		zap.String("dsn", logging.SanitizeDSN(dsn)),
		zap.String("driver", driverType))
	return &Executor{db: db, logger: logger}, nil
}

// Close closes the database.
func (e *Executor) Close() error {
	return e.db.Close()
}

// Bind orders values for the slots of stmt. Slot i takes
// values[stmt.ParameterNames[i]], or values[i+1 as a decimal string] when the
// name is absent, so anonymous parameters can be bound by position.
func Bind(stmt *params.ParsedStatement, values map[string]any) ([]any, error) {
	args := make([]any, len(stmt.ParameterNames))
	for i, name := range stmt.ParameterNames {
		if v, ok := values[name]; ok {
			args[i] = v
			continue
		}
		if v, ok := values[strconv.Itoa(i+1)]; ok {
			args[i] = v
			continue
		}
		return nil, engerrors.NewBindingError(engerrors.CodeMissingValue,
			fmt.Sprintf("no value for parameter %d (%s)", i+1, name)).
			WithDetails(map[string]interface{}{"index": i + 1, "name": name})
	}
	return args, nil
}

// Query runs stmt and returns every row.
func (e *Executor) Query(ctx context.Context, stmt *params.ParsedStatement, values map[string]any) (*Result, error) {
	args, err := Bind(stmt, values)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("query",
		zap.String("sql", logging.SanitizeQuery(stmt.RewrittenText)),
		zap.Int("params", len(args)))

	rows, err := e.db.QueryContext(ctx, stmt.RewrittenText, args...)
	if err != nil {
		return nil, engerrors.NewExecutionError(engerrors.CodeQueryFailed, "query failed", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, engerrors.NewExecutionError(engerrors.CodeQueryFailed, "failed to read columns", err)
	}

	result := &Result{Columns: columns}
	cols := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range cols {
		valuePtrs[i] = &cols[i]
	}

	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, engerrors.NewExecutionError(engerrors.CodeQueryFailed, "failed to scan row", err)
		}
		row := make([]interface{}, len(cols))
		copy(row, cols)
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, engerrors.NewExecutionError(engerrors.CodeQueryFailed, "row iteration failed", err)
	}
	return result, nil
}

// Exec runs a statement that returns no rows and reports the rows affected.
func (e *Executor) Exec(ctx context.Context, stmt *params.ParsedStatement, values map[string]any) (int64, error) {
	args, err := Bind(stmt, values)
	if err != nil {
		return 0, err
	}

	e.logger.Debug("exec",
		zap.String("sql", logging.SanitizeQuery(stmt.RewrittenText)),
		zap.Int("params", len(args)))

	res, err := e.db.ExecContext(ctx, stmt.RewrittenText, args...)
	if err != nil {
		return 0, engerrors.NewExecutionError(engerrors.CodeQueryFailed, "statement failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, engerrors.NewExecutionError(engerrors.CodeQueryFailed, "failed to read rows affected", err)
	}
	return n, nil
}
