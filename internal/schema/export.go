package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// exportMagic prefixes every export so stray objects are rejected early.
var exportMagic = []byte("RSQ1")

// Description is the serializable form of a Schema. Handles are flattened to
// their declaration paths.
type Description struct {
	BuildID    string                `json:"build_id"`
	Generation uint64                `json:"generation"`
	Databases  []DatabaseDescription `json:"databases"`
	Tables     []TableDescription    `json:"tables"`
	Daos       []string              `json:"daos"`
}

// DatabaseDescription describes a Database.
type DatabaseDescription struct {
	DeclaringType string   `json:"declaring_type"`
	EntityTypes   []string `json:"entity_types"`
}

// TableDescription describes a Table.
type TableDescription struct {
	Name          string              `json:"name"`
	Kind          string              `json:"kind"`
	Fts           bool                `json:"fts,omitempty"`
	DeclaringType string              `json:"declaring_type"`
	Columns       []ColumnDescription `json:"columns"`
}

// ColumnDescription describes a Column. Synthetic is "fts" or "rowid" for
// synthesized columns.
type ColumnDescription struct {
	Name         string   `json:"name,omitempty"`
	Synthetic    string   `json:"synthetic,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
	PrimaryKey   bool     `json:"primary_key,omitempty"`
	Type         string   `json:"type,omitempty"`
	Affinity     string   `json:"affinity,omitempty"`
	Target       string   `json:"target"`
}

// Describe flattens s into its serializable form.
func Describe(s *Schema) *Description {
	d := &Description{
		BuildID:    s.BuildID,
		Generation: s.Generation,
		Databases:  make([]DatabaseDescription, 0, len(s.Databases)),
		Tables:     make([]TableDescription, 0, len(s.Tables)),
		Daos:       make([]string, 0, len(s.Daos)),
	}

	for _, db := range s.Databases {
		dd := DatabaseDescription{DeclaringType: db.DeclaringType.Path}
		for _, h := range db.EntityTypes {
			dd.EntityTypes = append(dd.EntityTypes, h.Path)
		}
		d.Databases = append(d.Databases, dd)
	}

	for _, t := range s.Tables {
		d.Tables = append(d.Tables, DescribeTable(t))
	}

	for _, dao := range s.Daos {
		d.Daos = append(d.Daos, dao.DeclaringType.Path)
	}
	return d
}

// DescribeTable flattens one table.
func DescribeTable(t *Table) TableDescription {
	td := TableDescription{
		Name:          t.Name,
		Kind:          t.Kind.String(),
		Fts:           t.IsFts,
		DeclaringType: t.DeclaringType.Path,
	}
	for _, c := range t.Columns {
		td.Columns = append(td.Columns, DescribeColumn(c))
	}
	return td
}

// DescribeColumn flattens one column.
func DescribeColumn(c Column) ColumnDescription {
	cd := ColumnDescription{
		Alternatives: c.AlternativeNames(),
		PrimaryKey:   c.IsPrimaryKey(),
		Target:       c.ResolutionTarget().Path,
	}
	cd.Name, _ = c.Name()
	if t := c.Type(); t != nil {
		cd.Type = t.Name
		cd.Affinity = string(t.Affinity)
	}
	switch c.(type) {
	case *FtsColumn:
		cd.Synthetic = "fts"
	case *RowidColumn:
		cd.Synthetic = "rowid"
	}
	return cd
}

// Export serializes s as snappy-compressed JSON.
// Format: 4 bytes magic + snappy(json(Description))
func Export(s *Schema) ([]byte, error) {
	payload, err := json.Marshal(Describe(s))
	if err != nil {
		return nil, fmt.Errorf("schema: failed to marshal export: %w", err)
	}
	compressed := snappy.Encode(nil, payload)

	buf := make([]byte, 0, len(exportMagic)+len(compressed))
	buf = append(buf, exportMagic...)
	return append(buf, compressed...), nil
}

// ReadExport decodes data produced by Export.
func ReadExport(data []byte) (*Description, error) {
	if len(data) < len(exportMagic) || !bytes.Equal(data[:len(exportMagic)], exportMagic) {
		return nil, errors.New("schema: not a schema export")
	}

	payload, err := snappy.Decode(nil, data[len(exportMagic):])
	if err != nil {
		return nil, fmt.Errorf("schema: snappy decompress failed: %w", err)
	}

	var d Description
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("schema: failed to unmarshal export: %w", err)
	}
	return &d, nil
}
