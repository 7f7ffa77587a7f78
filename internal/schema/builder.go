package schema

import (
	"github.com/google/uuid"

	"github.com/arkilian/roomsql/internal/decl"
)

// Annotation packages a marker may be qualified with.
var roomPackages = []string{"androidx.room", "android.arch.persistence.room"}

// Marker and attribute annotations.
const (
	annDatabase     = "Database"
	annEntity       = "Entity"
	annDatabaseView = "DatabaseView"
	annDao          = "Dao"
	annFts3         = "Fts3"
	annFts4         = "Fts4"
	annIgnore       = "Ignore"
	annPrimaryKey   = "PrimaryKey"
	annColumnInfo   = "ColumnInfo"
	annEmbedded     = "Embedded"
)

// Build produces a Schema from a declaration snapshot. It never fails:
// unrecognized classes are skipped and malformed arguments fall back to the
// declared names.
func Build(snap *decl.Snapshot) *Schema {
	b := &builder{snap: snap}
	s := &Schema{
		BuildID:    uuid.NewString(),
		Generation: snap.Generation,
	}

	for _, c := range snap.Classes {
		if ann := findMarker(c.Annotations, annEntity); ann != nil {
			s.Tables = append(s.Tables, b.table(c, ann, KindEntity))
		}
		if ann := findMarker(c.Annotations, annDatabaseView); ann != nil {
			s.Tables = append(s.Tables, b.table(c, ann, KindView))
		}
		if ann := findMarker(c.Annotations, annDatabase); ann != nil {
			s.Databases = append(s.Databases, b.database(c, ann))
		}
		if findMarker(c.Annotations, annDao) != nil {
			s.Daos = append(s.Daos, &Dao{DeclaringType: b.handle(c)})
		}
	}
	return s
}

// findMarker matches an annotation by simple name, or by its qualified name
// in one of the Room packages. Annotations qualified with any other package
// do not match.
func findMarker(anns []*decl.Annotation, simple string) *decl.Annotation {
	for _, a := range anns {
		if a.Name != simple {
			continue
		}
		if a.QualifiedName == simple {
			return a
		}
		for _, pkg := range roomPackages {
			if a.QualifiedName == pkg+"."+simple {
				return a
			}
		}
	}
	return nil
}

type builder struct {
	snap *decl.Snapshot
}

func (b *builder) handle(e decl.Element) decl.Handle {
	return b.snap.Handle(e.ElementPath())
}

// explicitName evaluates a string argument of ann. It reports false when the
// argument is missing, not a constant string, or empty.
func explicitName(ann *decl.Annotation, attr string) (string, *decl.Argument, bool) {
	if ann == nil {
		return "", nil, false
	}
	arg := ann.Arg(attr)
	if arg == nil {
		return "", nil, false
	}
	name, ok := decl.ConstantString(arg.Value)
	if !ok || name == "" {
		return "", nil, false
	}
	return name, arg, true
}

func (b *builder) table(c *decl.Class, marker *decl.Annotation, kind TableKind) *Table {
	attr := "tableName"
	if kind == KindView {
		attr = "viewName"
	}

	t := &Table{
		DeclaringType: b.handle(c),
		Kind:          kind,
		Name:          c.Name,
		NameAnchor:    b.handle(c),
	}
	if name, arg, ok := explicitName(marker, attr); ok {
		t.Name = name
		t.NameAnchor = b.handle(arg)
	}

	t.IsFts = findMarker(c.Annotations, annFts3) != nil || findMarker(c.Annotations, annFts4) != nil

	hasPrimaryKey := false
	for _, col := range b.fieldColumns(c, "", t.IsFts, map[string]bool{c.Path: true}) {
		hasPrimaryKey = hasPrimaryKey || col.PrimaryKey
		t.Columns = append(t.Columns, col)
	}

	if t.IsFts {
		t.Columns = append(t.Columns, &FtsColumn{
			TableName: t.Name,
			Table:     t.DeclaringType,
			Anchor:    t.NameAnchor,
		})
	}
	if !hasPrimaryKey && kind != KindView {
		t.Columns = append(t.Columns, &RowidColumn{Fts: t.IsFts, Table: t.DeclaringType})
	}
	return t
}

// fieldColumns returns one column per eligible field of c. Embedded fields
// are flattened with their prefix; visiting tracks the embedding chain so a
// cycle contributes nothing.
func (b *builder) fieldColumns(c *decl.Class, prefix string, fts bool, visiting map[string]bool) []*FieldColumn {
	var cols []*FieldColumn
	for _, f := range c.Fields {
		if f.Static || findMarker(f.Annotations, annIgnore) != nil {
			continue
		}

		if embedded := findMarker(f.Annotations, annEmbedded); embedded != nil {
			inner := b.snap.ResolveClass(f.Type, c)
			if inner == nil || visiting[inner.Path] {
				continue
			}
			innerPrefix := prefix
			if arg := embedded.Arg("prefix"); arg != nil {
				if p, ok := decl.ConstantString(arg.Value); ok {
					innerPrefix += p
				}
			}
			visiting[inner.Path] = true
			cols = append(cols, b.fieldColumns(inner, innerPrefix, fts, visiting)...)
			delete(visiting, inner.Path)
			continue
		}

		col := &FieldColumn{
			ColumnName: prefix + f.Name,
			Field:      b.handle(f),
			NameAnchor: b.handle(f),
			PrimaryKey: findMarker(f.Annotations, annPrimaryKey) != nil,
			ColumnType: typeOf(f),
		}
		if name, arg, ok := explicitName(findMarker(f.Annotations, annColumnInfo), "name"); ok {
			col.ColumnName = prefix + name
			col.NameAnchor = b.handle(arg)
		}
		if col.PrimaryKey {
			col.Alternatives = RowidNames(fts)
		}
		cols = append(cols, col)
	}
	return cols
}

func (b *builder) database(c *decl.Class, marker *decl.Annotation) *Database {
	db := &Database{DeclaringType: b.handle(c)}

	for _, attr := range []string{"entities", "tables"} {
		arg := marker.Arg(attr)
		if arg == nil {
			continue
		}
		for _, name := range decl.RefNames(arg.Value) {
			// Unknown classes still get a handle so the entry is not lost;
			// Lookup reports it missing.
			target := name
			if resolved := b.snap.ResolveClass(name, c); resolved != nil {
				target = resolved.Path
			}
			db.EntityTypes = append(db.EntityTypes, b.snap.Handle(target))
		}
	}
	return db
}

// typeOf maps a declared field type to a SQLite affinity the way Room does
// for its built-in type adapters.
func typeOf(f *decl.Field) *TypeDescriptor {
	t := &TypeDescriptor{Name: f.TypeText}
	switch f.Type {
	case "int", "Int", "Integer", "long", "Long", "short", "Short", "byte", "Byte",
		"boolean", "Boolean", "char", "Char", "Character":
		t.Affinity = AffinityInteger
	case "float", "Float", "double", "Double":
		t.Affinity = AffinityReal
	case "String", "CharSequence":
		t.Affinity = AffinityText
	case "ByteArray":
		t.Affinity = AffinityBlob
	}
	return t
}
