package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/roomsql/internal/decl"
)

func buildFrom(t *testing.T, src string) *Schema {
	t.Helper()
	snap := decl.NewSnapshot(7, []decl.SourceFile{{Path: "model.room", Text: src}})
	require.Empty(t, snap.Errors)
	return Build(snap)
}

func tableNamed(s *Schema, name string) *Table {
	for _, t := range s.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func columnNames(t *Table) []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, DisplayName(c))
	}
	return names
}

func TestBuildEntityWithoutPrimaryKey(t *testing.T) {
	s := buildFrom(t, `@Entity class T1 { c1: Int }`)
	require.Len(t, s.Tables, 1)
	assert.NotEmpty(t, s.BuildID)
	assert.Equal(t, uint64(7), s.Generation)

	table := s.Tables[0]
	assert.Equal(t, "T1", table.Name)
	assert.Equal(t, KindEntity, table.Kind)
	assert.Equal(t, "T1", table.DeclaringType.Path)
	assert.Equal(t, table.DeclaringType, table.NameAnchor)
	assert.False(t, table.IsFts)
	require.Len(t, table.Columns, 2)

	c1, ok := table.Columns[0].(*FieldColumn)
	require.True(t, ok)
	assert.Equal(t, "c1", c1.ColumnName)
	assert.Equal(t, "T1#c1", c1.Field.Path)
	assert.Equal(t, AffinityInteger, c1.Type().Affinity)
	assert.Empty(t, c1.AlternativeNames())

	rowid := table.Rowid()
	require.NotNil(t, rowid)
	_, named := rowid.Name()
	assert.False(t, named)
	assert.True(t, rowid.IsPrimaryKey())
	assert.Equal(t, RowidNames(false), rowid.AlternativeNames())
	assert.Equal(t, "INTEGER", rowid.Type().Name)
}

func TestBuildTableNameOverride(t *testing.T) {
	s := buildFrom(t, `
@Entity(tableName = "people") class User { @PrimaryKey id: Long }
@Entity(tableName = "") class Blank { id: Long }
@Entity(tableName = Names.ITEMS) class Item { id: Long }
@Entity(tableName = 42) class Numbered { id: Long }
`)

	people := tableNamed(s, "people")
	require.NotNil(t, people)
	assert.Equal(t, "User@Entity.tableName", people.NameAnchor.Path)

	for _, fallback := range []string{"Blank", "Item", "Numbered"} {
		table := tableNamed(s, fallback)
		require.NotNil(t, table, fallback)
		assert.Equal(t, fallback, table.NameAnchor.Path, "non-constant or empty names fall back to the class")
	}
}

func TestBuildPrimaryKeyCarriesRowidNames(t *testing.T) {
	s := buildFrom(t, `@Entity class User { @PrimaryKey id: Long
  name: String }`)
	table := s.Tables[0]
	assert.Nil(t, table.Rowid(), "an explicit primary key suppresses the synthetic rowid")
	require.Len(t, table.Columns, 2)
	assert.True(t, table.Columns[0].IsPrimaryKey())
	assert.Equal(t, RowidNames(false), table.Columns[0].AlternativeNames())
	assert.False(t, table.Columns[1].IsPrimaryKey())
	assert.Equal(t, AffinityText, table.Columns[1].Type().Affinity)
}

func TestRowidNamesNotShared(t *testing.T) {
	s := buildFrom(t, `@Entity class A { @PrimaryKey id: Int }
@Entity class B { @PrimaryKey id: Int }
@Entity class C { x: Int }`)

	alts := tableNamed(s, "A").Columns[0].AlternativeNames()
	alts[0] = "clobbered"
	_ = append(alts[:1], "extra")
	assert.Equal(t, RowidNames(false), tableNamed(s, "A").Columns[0].AlternativeNames())
	assert.Equal(t, RowidNames(false), tableNamed(s, "B").Columns[0].AlternativeNames())

	rowid := tableNamed(s, "C").Rowid()
	require.NotNil(t, rowid)
	names := rowid.AlternativeNames()
	names[1] = "clobbered"
	assert.Equal(t, []string{"rowid", "oid", "_rowid_"}, rowid.AlternativeNames())

	shared := RowidNames(true)
	shared[3] = "clobbered"
	assert.Equal(t, "docid", RowidNames(true)[3])
}

func TestBuildFtsTable(t *testing.T) {
	s := buildFrom(t, `@Fts4 @Entity(tableName = "docs") class Doc { body: String }`)
	table := tableNamed(s, "docs")
	require.NotNil(t, table)
	assert.True(t, table.IsFts)
	assert.Equal(t, []string{"body", "docs", "rowid"}, columnNames(table))

	fts, ok := table.Columns[1].(*FtsColumn)
	require.True(t, ok)
	assert.Equal(t, "TEXT", fts.Type().Name)
	assert.Equal(t, "Doc@Entity.tableName", fts.DefiningAnchor().Path)
	assert.Equal(t, "Doc", fts.ResolutionTarget().Path)

	assert.Equal(t, RowidNames(true), table.Rowid().AlternativeNames())
}

func TestBuildFtsPrimaryKeyGetsDocid(t *testing.T) {
	s := buildFrom(t, `@Entity @Fts3 class Doc { @PrimaryKey id: Int }`)
	table := s.Tables[0]
	assert.Equal(t, RowidNames(true), table.Columns[0].AlternativeNames())
	assert.Nil(t, table.Rowid())
}

func TestBuildColumnSelection(t *testing.T) {
	s := buildFrom(t, `
@Entity class User {
  @ColumnInfo(name = "user_" + "name") name: String
  @ColumnInfo(name = Names.X) nick: String
  @Ignore cache: String
  static TAG: String
  @Embedded(prefix = "home_") home: Address
  @Embedded work: Address
}
class Address {
  street: String
  @ColumnInfo(name = "zip") postCode: String
}
`)
	table := tableNamed(s, "User")
	require.NotNil(t, table)
	assert.Equal(t,
		[]string{"user_name", "nick", "home_street", "home_zip", "street", "zip", "rowid"},
		columnNames(table))

	renamed := table.Columns[0].(*FieldColumn)
	assert.Equal(t, "User#name", renamed.ResolutionTarget().Path)
	assert.Equal(t, "User#name@ColumnInfo.name", renamed.DefiningAnchor().Path)

	embedded := table.Columns[2].(*FieldColumn)
	assert.Equal(t, "Address#street", embedded.ResolutionTarget().Path)
}

func TestBuildEmbeddedCycle(t *testing.T) {
	s := buildFrom(t, `
@Entity class Node { id: Int
  @Embedded(prefix = "next_") next: Node
  @Embedded(prefix = "link_") link: Link }
class Link { weight: Int
  @Embedded(prefix = "back_") back: Link }
`)
	assert.Equal(t, []string{"id", "link_weight", "rowid"}, columnNames(s.Tables[0]))
}

func TestBuildView(t *testing.T) {
	s := buildFrom(t, `@DatabaseView(value = "SELECT 1", viewName = "v_users") class UserView { name: String }`)
	require.Len(t, s.Tables, 1)
	view := s.Tables[0]
	assert.Equal(t, KindView, view.Kind)
	assert.Equal(t, "v_users", view.Name)
	assert.Nil(t, view.Rowid(), "views never get a rowid")
	assert.Equal(t, []string{"name"}, columnNames(view))
}

func TestBuildDatabaseIsBestEffort(t *testing.T) {
	s := buildFrom(t, `
@Entity class User { id: Int }
class NotAnEntity
@Database(entities = [User::class, NotAnEntity::class, Missing::class], version = 1)
abstract class AppDatabase
@Database(tables = [User]) class LegacyDatabase
@Dao interface UserDao
`)
	require.Len(t, s.Databases, 2)
	db := s.Databases[0]
	assert.Equal(t, "AppDatabase", db.DeclaringType.Path)
	require.Len(t, db.EntityTypes, 3)
	assert.Equal(t, "User", db.EntityTypes[0].Path)
	assert.Equal(t, "NotAnEntity", db.EntityTypes[1].Path)
	assert.Equal(t, "Missing", db.EntityTypes[2].Path)

	legacy := s.Databases[1]
	require.Len(t, legacy.EntityTypes, 1)
	assert.Equal(t, "User", legacy.EntityTypes[0].Path)

	require.Len(t, s.Daos, 1)
	assert.Equal(t, "UserDao", s.Daos[0].DeclaringType.Path)
	assert.Len(t, s.Tables, 1)
}

func TestBuildMarkerNamespaces(t *testing.T) {
	s := buildFrom(t, `
@androidx.room.Entity class A { id: Int }
@android.arch.persistence.room.Entity class B { id: Int }
@com.other.Entity class C { id: Int }
@Table class D { id: Int }
`)
	var names []string
	for _, table := range s.Tables {
		names = append(names, table.Name)
	}
	assert.Equal(t, []string{"A", "B"}, names)
}

func TestBuildImportedMarker(t *testing.T) {
	s := buildFrom(t, `
package app;
import androidx.room.Entity;
@Entity class A { id: Int }
`)
	require.Len(t, s.Tables, 1)
	assert.Equal(t, "app.A", s.Tables[0].DeclaringType.Path)
}

func TestBuildDuplicateTableNamesTolerated(t *testing.T) {
	s := buildFrom(t, `
@Entity(tableName = "t") class First { a: Int }
@Entity(tableName = "t") class Second { b: Int }
`)
	require.Len(t, s.Tables, 2)
	assert.Equal(t, "First", tableNamed(s, "t").DeclaringType.Path)
}

func TestBuildEmptySnapshot(t *testing.T) {
	snap := decl.NewSnapshot(0, nil)
	s := Build(snap)
	assert.Empty(t, s.Tables)
	assert.Empty(t, s.Databases)
	assert.Empty(t, s.Daos)
}
