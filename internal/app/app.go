// Package app wires the roomsql engine together: declarations, the schema
// lifecycle, resolution, rewriting, execution and schema export.
package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arkilian/roomsql/internal/config"
	"github.com/arkilian/roomsql/internal/decl"
	engerrors "github.com/arkilian/roomsql/internal/errors"
	"github.com/arkilian/roomsql/internal/exec"
	"github.com/arkilian/roomsql/internal/index"
	"github.com/arkilian/roomsql/internal/logging"
	"github.com/arkilian/roomsql/internal/notify"
	"github.com/arkilian/roomsql/internal/observability"
	"github.com/arkilian/roomsql/internal/query/params"
	"github.com/arkilian/roomsql/internal/query/parser"
	"github.com/arkilian/roomsql/internal/query/resolve"
	"github.com/arkilian/roomsql/internal/query/stmtcache"
	"github.com/arkilian/roomsql/internal/schema"
	"github.com/arkilian/roomsql/internal/storage"
)

// exportSuffix is appended to export names to form object keys.
const exportSuffix = ".rsq"

// statsWindow is how long a predicate column stays in the statistics after
// it was last seen.
const statsWindow = time.Hour

// App owns the engine components and their lifecycle.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	notifier *notify.Notifier
	store    *decl.Store
	schemas  *schema.Manager
	stmts    *stmtcache.Cache
	stats    *observability.PredicateStats

	// Created on first use
	storage  storage.ObjectStorage
	executor *exec.Executor

	// Lifecycle
	mu      sync.Mutex
	running bool
	sub     *notify.Subscriber
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration. A nil logger is
// replaced by a no-op logger.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	notifier := notify.NewNotifier(1)
	store := decl.NewStore(notifier)

	return &App{
		cfg:      cfg,
		logger:   logger,
		notifier: notifier,
		store:    store,
		schemas:  schema.NewManager(store, logger),
		stmts:    stmtcache.New(cfg.Parser.CacheBytes),
		stats:    observability.NewPredicateStats(statsWindow),
	}, nil
}

// Start subscribes the schema manager to declaration changes and loads the
// configured declaration paths.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	ctx, a.cancel = context.WithCancel(ctx)
	a.sub = a.notifier.SubscribeAutoID()
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.schemas.Run(ctx, a.sub); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("schema manager stopped", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pruneLoop(ctx)
	}()

	if len(a.cfg.Declarations.Paths) > 0 {
		if _, err := a.LoadDeclarations(a.cfg.Declarations.Paths); err != nil {
			a.Stop(context.Background())
			return err
		}
	}

	if a.cfg.Index.Enabled {
		policy, err := a.indexPolicy(ctx)
		if err != nil {
			a.Stop(context.Background())
			return err
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			policy.Run(ctx)
		}()
	}

	a.logger.Debug("roomsql started",
		zap.Strings("declarations", a.cfg.Declarations.Paths),
		zap.String("driver", exec.DriverType()))
	return nil
}

// pruneLoop drops stale predicate statistics until ctx is done.
func (a *App) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(statsWindow / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.stats.Prune()
		}
	}
}

// LoadDeclarations replaces the declaration set with the files found under
// paths and returns the resulting schema. The rebuild happens synchronously;
// the notification it publishes lets the background manager skip it.
func (a *App) LoadDeclarations(paths []string) (*schema.Schema, error) {
	files, err := decl.LoadFiles(paths)
	if err != nil {
		return nil, err
	}
	return a.ReplaceDeclarations(files), nil
}

// ReplaceDeclarations installs files as the declaration set. Files that fail
// to parse are logged and left out of the schema. Predicate statistics
// gathered against the previous schema are kept.
func (a *App) ReplaceDeclarations(files []decl.SourceFile) *schema.Schema {
	snap := a.store.Replace(files)
	for _, err := range snap.Errors {
		a.logger.Warn("declaration file skipped", zap.Error(err))
	}
	for _, name := range snap.Shadowed {
		a.logger.Debug("duplicate class ignored", zap.String("class", name))
	}
	s, _ := a.schemas.Refresh()
	a.logger.Info("declarations loaded",
		zap.Int("files", len(files)),
		zap.Int("skipped", len(snap.Errors)),
		zap.Uint64("generation", snap.Generation),
		zap.Int("tables", len(s.Tables)))
	return s
}

// Declarations returns the live declaration store.
func (a *App) Declarations() *decl.Store {
	return a.store
}

// Schema returns the current schema.
func (a *App) Schema() *schema.Schema {
	return a.schemas.Current()
}

// Resolver returns a resolver over the current schema with the configured
// options.
func (a *App) Resolver() *resolve.Resolver {
	var opts []resolve.Option
	if a.cfg.Resolver.CaseInsensitiveTables {
		opts = append(opts, resolve.WithCaseInsensitiveTables())
	}
	if a.cfg.Resolver.Suggestions {
		opts = append(opts, resolve.WithSuggestions())
	}
	return resolve.New(a.schemas.Current(), opts...)
}

// parse returns the cached tree of sql. A statement that fails to parse is
// still part of the tree, so the error is only logged. The tree is shared and
// must not be modified.
func (a *App) parse(sql string) *parser.Node {
	root, err := a.stmts.Parse(sql)
	if err != nil {
		a.logger.Debug("statement parsed with errors",
			zap.String("sql", logging.SanitizeQuery(sql)),
			zap.Error(err))
	}
	return root
}

// ResolveReferences resolves every table and column reference in sql and
// records the predicate columns it uses.
func (a *App) ResolveReferences(sql string) *resolve.Resolution {
	return a.resolve(a.parse(sql))
}

func (a *App) resolve(root *parser.Node) *resolve.Resolution {
	res := a.Resolver().ResolveStatement(root)
	a.stats.RecordResolution(res)
	return res
}

// TopPredicates returns the n columns most used in predicates and the n most
// frequent unresolved column references.
func (a *App) TopPredicates(n int) (predicates, unresolved []observability.ColumnStats) {
	return a.stats.GetTopPredicates(n), a.stats.GetTopUnresolved(n)
}

// StatementCacheStats returns the parse cache hit and miss counts and its
// current number of entries.
func (a *App) StatementCacheStats() (hits, misses int64, entries int) {
	hits, misses = a.stmts.Stats()
	return hits, misses, a.stmts.Len()
}

// Rewrite converts sql to positional parameters.
func (a *App) Rewrite(sql string) *params.ParsedStatement {
	return params.ToPositional(a.parse(sql))
}

// NeedsBinding reports whether sql contains a bind parameter.
func (a *App) NeedsBinding(sql string) bool {
	return params.NeedsBinding(a.parse(sql))
}

// Inline substitutes values for the parameters of sql. Findings are reported
// when auditing is enabled. An arity mismatch is returned as a fatal binding
// error rather than escaping as a panic.
func (a *App) Inline(sql string, values []any) (text string, findings []params.Finding, err error) {
	if a.cfg.Inline.Audit {
		findings = params.AuditValues(values)
		for _, f := range findings {
			a.logger.Warn("inlined value looks like SQL injection",
				zap.Int("index", f.Index),
				zap.String("fingerprint", f.Fingerprint))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			ee, ok := r.(*engerrors.EngineError)
			if !ok || !ee.Fatal {
				panic(r)
			}
			err = ee
		}
	}()
	text = params.InlineValues(a.parse(sql), params.NewValueQueue(values...))
	return text, findings, nil
}

// Executor returns the statement executor, opening the database and creating
// the tables of the current schema on first use.
func (a *App) Executor(ctx context.Context) (*exec.Executor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.executor != nil {
		return a.executor, nil
	}

	e, err := exec.Open(a.cfg.Exec.DSN, a.logger)
	if err != nil {
		return nil, err
	}
	if err := e.ApplySchema(ctx, a.schemas.Current()); err != nil {
		e.Close()
		return nil, err
	}
	a.executor = e
	return e, nil
}

// Exec rewrites sql and runs it. Statements other than SELECT report the
// number of rows affected as a single row.
func (a *App) Exec(ctx context.Context, sql string, values map[string]any) (*exec.Result, error) {
	e, err := a.Executor(ctx)
	if err != nil {
		return nil, err
	}

	root := a.parse(sql)
	a.resolve(root)
	stmt := params.ToPositional(root)
	if isQuery(root) {
		return e.Query(ctx, stmt, values)
	}

	n, err := e.Exec(ctx, stmt, values)
	if err != nil {
		return nil, err
	}
	return &exec.Result{Columns: []string{"rows_affected"}, Rows: [][]interface{}{{n}}}, nil
}

func (a *App) indexPolicy(ctx context.Context) (*index.Policy, error) {
	e, err := a.Executor(ctx)
	if err != nil {
		return nil, err
	}
	return index.NewPolicy(a.stats, a.schemas, e, a.cfg.Index, a.logger), nil
}

// TuneIndexes creates indices on the columns statements filter on most and
// drops those that fell out of use, returning the applied actions.
func (a *App) TuneIndexes(ctx context.Context) ([]index.Action, error) {
	policy, err := a.indexPolicy(ctx)
	if err != nil {
		return nil, err
	}
	return policy.Tune(ctx)
}

func isQuery(root *parser.Node) bool {
	for _, c := range root.Children {
		switch c.Kind {
		case parser.KindSelect:
			return true
		case parser.KindInsert, parser.KindUpdate, parser.KindDelete, parser.KindError:
			return false
		}
	}
	return false
}

// Storage returns the export storage, creating it on first use.
func (a *App) Storage(ctx context.Context) (storage.ObjectStorage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.storage != nil {
		return a.storage, nil
	}

	var (
		st  storage.ObjectStorage
		err error
	)
	switch a.cfg.Export.Type {
	case "local":
		st, err = storage.NewLocalStorage(a.cfg.Export.Path)
	case "s3":
		st, err = storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:       a.cfg.Export.S3.Bucket,
			Region:       a.cfg.Export.S3.Region,
			Endpoint:     a.cfg.Export.S3.Endpoint,
			UsePathStyle: a.cfg.Export.S3.UsePathStyle,
		}, a.logger)
	default:
		err = fmt.Errorf("unsupported storage type: %s", a.cfg.Export.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.logger.Debug("export storage initialized", zap.String("type", a.cfg.Export.Type))
	a.storage = st
	return st, nil
}

func (a *App) exportKey(name string) string {
	return path.Join(a.cfg.Export.Prefix, name+exportSuffix)
}

// ExportSchema writes the current schema under name and returns the object
// key.
func (a *App) ExportSchema(ctx context.Context, name string) (string, error) {
	st, err := a.Storage(ctx)
	if err != nil {
		return "", err
	}

	s := a.schemas.Current()
	data, err := schema.Export(s)
	if err != nil {
		return "", err
	}

	key := a.exportKey(name)
	if err := st.Put(ctx, key, data); err != nil {
		return "", err
	}
	a.logger.Info("schema exported",
		zap.String("key", key),
		zap.String("build_id", s.BuildID),
		zap.Int("bytes", len(data)))
	return key, nil
}

// ReadExport loads the export stored under name.
func (a *App) ReadExport(ctx context.Context, name string) (*schema.Description, error) {
	st, err := a.Storage(ctx)
	if err != nil {
		return nil, err
	}
	data, err := st.Get(ctx, a.exportKey(name))
	if err != nil {
		return nil, err
	}
	return schema.ReadExport(data)
}

// ListExports returns the names of the stored exports.
func (a *App) ListExports(ctx context.Context) ([]string, error) {
	st, err := a.Storage(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := st.List(ctx, a.cfg.Export.Prefix)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, key := range keys {
		base := path.Base(key)
		if path.Ext(base) == exportSuffix {
			names = append(names, base[:len(base)-len(exportSuffix)])
		}
	}
	return names, nil
}

// DeleteExport removes the export stored under name.
func (a *App) DeleteExport(ctx context.Context, name string) error {
	st, err := a.Storage(ctx)
	if err != nil {
		return err
	}
	return st.Delete(ctx, a.exportKey(name))
}

// Stop stops the schema manager and closes the database.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	wasRunning := a.running
	if wasRunning {
		a.running = false
		a.cancel()
		a.notifier.Unsubscribe(a.sub.ID)
	}
	a.mu.Unlock()

	if wasRunning {
		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for schema manager: %w", ctx.Err())
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.executor != nil {
		err := a.executor.Close()
		a.executor = nil
		if err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
