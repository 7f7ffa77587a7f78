// Package schema models the databases, tables, columns and DAOs declared by
// annotated classes, and keeps the current model up to date as declarations
// change.
package schema

import (
	"slices"

	"github.com/arkilian/roomsql/internal/decl"
)

var (
	rowidNames    = []string{"rowid", "oid", "_rowid_"}
	ftsRowidNames = []string{"rowid", "oid", "_rowid_", "docid"}
)

// RowidNames returns the reserved spellings of the rowid in a new slice. FTS
// tables also accept docid.
func RowidNames(fts bool) []string {
	if fts {
		return slices.Clone(ftsRowidNames)
	}
	return slices.Clone(rowidNames)
}

// Schema is the root aggregate. It is immutable once built; a declaration
// change produces a new Schema that replaces the old one wholesale.
type Schema struct {
	BuildID    string
	Generation uint64
	Databases  []*Database
	Tables     []*Table
	Daos       []*Dao
}

// Database is a class marked @Database.
type Database struct {
	DeclaringType decl.Handle
	// EntityTypes lists the classes named by the database, whether or not they
	// are entities.
	EntityTypes []decl.Handle
}

// TableKind distinguishes entities from views.
type TableKind int

const (
	KindEntity TableKind = iota
	KindView
)

func (k TableKind) String() string {
	if k == KindView {
		return "view"
	}
	return "entity"
}

// Table is an entity or a view.
type Table struct {
	DeclaringType decl.Handle
	Kind          TableKind
	Name          string
	NameAnchor    decl.Handle
	Columns       []Column
	IsFts         bool
}

// Rowid returns the synthesized rowid column, if the table has one.
func (t *Table) Rowid() *RowidColumn {
	for _, c := range t.Columns {
		if r, ok := c.(*RowidColumn); ok {
			return r
		}
	}
	return nil
}

// Dao is a class marked @Dao.
type Dao struct {
	DeclaringType decl.Handle
}

// Affinity is the SQLite storage class a declared type maps to.
type Affinity string

const (
	AffinityNone    Affinity = ""
	AffinityInteger Affinity = "INTEGER"
	AffinityText    Affinity = "TEXT"
	AffinityReal    Affinity = "REAL"
	AffinityBlob    Affinity = "BLOB"
)

// TypeDescriptor describes a column type: the declared name and the SQLite
// affinity it maps to.
type TypeDescriptor struct {
	Name     string
	Affinity Affinity
}

var (
	textType    = &TypeDescriptor{Name: "TEXT", Affinity: AffinityText}
	integerType = &TypeDescriptor{Name: "INTEGER", Affinity: AffinityInteger}
)

// Column is one of *FieldColumn, *FtsColumn or *RowidColumn.
type Column interface {
	// Name reports the canonical name; the rowid column has none.
	Name() (string, bool)
	AlternativeNames() []string
	IsPrimaryKey() bool
	Type() *TypeDescriptor
	// DefiningAnchor is where the column's name is written down.
	DefiningAnchor() decl.Handle
	// ResolutionTarget is where a reference to the column navigates to.
	ResolutionTarget() decl.Handle

	sealed()
}

// FieldColumn is backed by a declared field.
type FieldColumn struct {
	ColumnName   string
	Field        decl.Handle
	NameAnchor   decl.Handle
	PrimaryKey   bool
	Alternatives []string
	ColumnType   *TypeDescriptor
}

func (c *FieldColumn) Name() (string, bool)          { return c.ColumnName, true }
func (c *FieldColumn) AlternativeNames() []string    { return slices.Clone(c.Alternatives) }
func (c *FieldColumn) IsPrimaryKey() bool            { return c.PrimaryKey }
func (c *FieldColumn) Type() *TypeDescriptor         { return c.ColumnType }
func (c *FieldColumn) DefiningAnchor() decl.Handle   { return c.NameAnchor }
func (c *FieldColumn) ResolutionTarget() decl.Handle { return c.Field }
func (*FieldColumn) sealed()                         {}

// FtsColumn is the hidden column of an FTS table named after the table.
type FtsColumn struct {
	TableName string
	Table     decl.Handle
	Anchor    decl.Handle
}

func (c *FtsColumn) Name() (string, bool)          { return c.TableName, true }
func (c *FtsColumn) AlternativeNames() []string    { return nil }
func (c *FtsColumn) IsPrimaryKey() bool            { return false }
func (c *FtsColumn) Type() *TypeDescriptor         { return textType }
func (c *FtsColumn) DefiningAnchor() decl.Handle   { return c.Anchor }
func (c *FtsColumn) ResolutionTarget() decl.Handle { return c.Table }
func (*FtsColumn) sealed()                         {}

// RowidColumn is SQLite's implicit rowid.
type RowidColumn struct {
	Fts   bool
	Table decl.Handle
}

func (c *RowidColumn) Name() (string, bool)          { return "", false }
func (c *RowidColumn) AlternativeNames() []string    { return RowidNames(c.Fts) }
func (c *RowidColumn) IsPrimaryKey() bool            { return true }
func (c *RowidColumn) Type() *TypeDescriptor         { return integerType }
func (c *RowidColumn) DefiningAnchor() decl.Handle   { return c.Table }
func (c *RowidColumn) ResolutionTarget() decl.Handle { return c.Table }
func (*RowidColumn) sealed()                         {}

// DisplayName returns the column name, or "rowid" for the rowid column.
func DisplayName(c Column) string {
	if name, ok := c.Name(); ok {
		return name
	}
	return "rowid"
}
