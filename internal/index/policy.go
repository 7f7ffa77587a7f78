// Package index maintains secondary indices on the columns statements filter
// on most often.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arkilian/roomsql/internal/config"
	"github.com/arkilian/roomsql/internal/observability"
	"github.com/arkilian/roomsql/internal/schema"
)

// namePrefix marks the indices this package manages.
const namePrefix = "index_"

// Index is a single-column index.
type Index struct {
	Name   string
	Table  string
	Column string
}

// Name returns the index name for table and column, following Room's
// index_<table>_<column> convention.
func Name(table, column string) string {
	return namePrefix + table + "_" + column
}

// Catalog lists and changes the managed indices of a database.
type Catalog interface {
	// ListIndexes returns every index whose name starts with "index_".
	ListIndexes(ctx context.Context) ([]Index, error)
	CreateIndex(ctx context.Context, idx Index) error
	DropIndex(ctx context.Context, name string) error
}

// SchemaSource supplies the current schema.
type SchemaSource interface {
	Current() *schema.Schema
}

// ActionType represents the type of index action to perform.
type ActionType string

const (
	ActionCreate ActionType = "CREATE"
	ActionDrop   ActionType = "DROP"
)

// Action represents an action to create or drop an index.
type Action struct {
	Type  ActionType
	Index Index
}

// Policy manages index creation and deletion based on predicate statistics.
type Policy struct {
	stats           *observability.PredicateStats
	schemas         SchemaSource
	catalog         Catalog
	logger          *zap.Logger
	createThreshold int64
	dropThreshold   int64
	checkInterval   time.Duration
	maxIndexes      int
	mu              sync.Mutex
}

// NewPolicy creates a new index policy manager.
func NewPolicy(
	stats *observability.PredicateStats,
	schemas SchemaSource,
	catalog Catalog,
	cfg config.IndexConfig,
	logger *zap.Logger,
) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		stats:           stats,
		schemas:         schemas,
		catalog:         catalog,
		logger:          logger.Named("index"),
		createThreshold: cfg.CreateThreshold,
		dropThreshold:   cfg.DropThreshold,
		checkInterval:   cfg.CheckInterval,
		maxIndexes:      cfg.MaxIndexes,
	}
}

// Run evaluates and applies the policy every check interval until ctx is
// cancelled.
func (p *Policy) Run(ctx context.Context) {
	interval := p.checkInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Tune(ctx); err != nil {
				p.logger.Warn("index tuning failed", zap.Error(err))
			}
		}
	}
}

// Tune evaluates the policy and applies its actions. It returns the actions
// that succeeded; a failed action is reported in the error and does not stop
// the others.
func (p *Policy) Tune(ctx context.Context) ([]Action, error) {
	actions, err := p.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	var (
		applied []Action
		errs    []error
	)
	for _, action := range actions {
		if err := p.execute(ctx, action); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", action.Type, action.Index.Name, err))
			continue
		}
		applied = append(applied, action)
	}
	return applied, errors.Join(errs...)
}

// target is an indexable column of the current schema.
type target struct {
	table  string
	column string
}

// targets maps "table.column" to every non-key field column of a regular
// entity. Views, FTS tables and key columns are never indexed.
func targets(s *schema.Schema) map[string]target {
	m := make(map[string]target)
	for _, t := range s.Tables {
		if t.Kind != schema.KindEntity || t.IsFts {
			continue
		}
		for _, c := range t.Columns {
			fc, ok := c.(*schema.FieldColumn)
			if !ok || fc.PrimaryKey {
				continue
			}
			m[t.Name+"."+fc.ColumnName] = target{table: t.Name, column: fc.ColumnName}
		}
	}
	return m
}

// Evaluate determines which index actions should be taken based on predicate
// statistics.
func (p *Policy) Evaluate(ctx context.Context) ([]Action, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var actions []Action

	// Step 1: Get top predicates and the columns they may index
	topPredicates := p.stats.GetTopPredicates(p.maxIndexes + 10)
	indexable := targets(p.schemas.Current())

	// Step 2: Get existing indexes from the catalog
	existing, err := p.catalog.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing indexes: %w", err)
	}

	existingSet := make(map[string]bool, len(existing))
	for _, idx := range existing {
		existingSet[idx.Name] = true
	}
	count := len(existing)

	// Step 3: Identify columns that need new indexes
	for _, stats := range topPredicates {
		tgt, ok := indexable[stats.Column]
		if !ok || stats.Frequency < p.createThreshold {
			continue
		}
		name := Name(tgt.table, tgt.column)
		if existingSet[name] || count >= p.maxIndexes {
			continue
		}
		actions = append(actions, Action{
			Type:  ActionCreate,
			Index: Index{Name: name, Table: tgt.table, Column: tgt.column},
		})
		existingSet[name] = true
		count++
	}

	// Step 4: Identify indexes that should be dropped
	for _, idx := range existing {
		colFrequency := int64(0)
		for _, stats := range topPredicates {
			if stats.Column == idx.Table+"."+idx.Column {
				colFrequency = stats.Frequency
				break
			}
		}

		// Not in top predicates, below threshold, or no longer in the schema
		_, indexableColumn := indexable[idx.Table+"."+idx.Column]
		if colFrequency < p.dropThreshold || !indexableColumn {
			actions = append(actions, Action{Type: ActionDrop, Index: idx})
		}
	}

	return actions, nil
}

func (p *Policy) execute(ctx context.Context, action Action) error {
	switch action.Type {
	case ActionCreate:
		if err := p.catalog.CreateIndex(ctx, action.Index); err != nil {
			return err
		}
		p.logger.Info("index created",
			zap.String("index", action.Index.Name),
			zap.String("table", action.Index.Table),
			zap.String("column", action.Index.Column))
		return nil
	case ActionDrop:
		if err := p.catalog.DropIndex(ctx, action.Index.Name); err != nil {
			return err
		}
		p.logger.Info("index dropped", zap.String("index", action.Index.Name))
		return nil
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}
