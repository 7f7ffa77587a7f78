package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/arkilian/roomsql/internal/query/resolve"
	"github.com/arkilian/roomsql/internal/schema"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SchemaCmd prints the current schema or stores it as an export.
type SchemaCmd struct {
	Export string `help:"Store the schema under this export name instead of printing it"`
}

func (c *SchemaCmd) Run(e *env) error {
	if c.Export == "" {
		return writeJSON(e.out, schema.Describe(e.app.Schema()))
	}
	key, err := e.app.ExportSchema(e.ctx, c.Export)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, key)
	return nil
}

// ExportsGroup contains operations on stored exports.
type ExportsGroup struct {
	List ExportsListCmd `cmd:"" help:"List stored exports"`
	Show ExportsShowCmd `cmd:"" help:"Print a stored export"`
	Rm   ExportsRmCmd   `cmd:"" help:"Delete a stored export"`
}

// ExportsListCmd lists stored exports.
type ExportsListCmd struct{}

func (c *ExportsListCmd) Run(e *env) error {
	names, err := e.app.ListExports(e.ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(e.out, name)
	}
	return nil
}

// ExportsShowCmd prints a stored export.
type ExportsShowCmd struct {
	Name string `arg:"" help:"Export name"`
}

func (c *ExportsShowCmd) Run(e *env) error {
	d, err := e.app.ReadExport(e.ctx, c.Name)
	if err != nil {
		return err
	}
	return writeJSON(e.out, d)
}

// ExportsRmCmd deletes a stored export.
type ExportsRmCmd struct {
	Name string `arg:"" help:"Export name"`
}

func (c *ExportsRmCmd) Run(e *env) error {
	return e.app.DeleteExport(e.ctx, c.Name)
}

// TableCmd resolves a table name.
type TableCmd struct {
	Name string `arg:"" help:"Table name"`
}

func (c *TableCmd) Run(e *env) error {
	r := e.app.Resolver()
	t := r.ResolveTable(c.Name)
	if t == nil {
		return unresolvedTable(r, c.Name)
	}
	return writeJSON(e.out, schema.DescribeTable(t))
}

func unresolvedTable(r *resolve.Resolver, name string) error {
	if s := resolve.Suggest(r.Schema(), name); s != "" {
		return fmt.Errorf("no table %q (did you mean %q?)", name, s)
	}
	return fmt.Errorf("no table %q", name)
}

// ColumnCmd resolves a column identifier within a table.
type ColumnCmd struct {
	Table          string `arg:"" help:"Table name"`
	Ident          string `arg:"" help:"Column identifier"`
	NoAlternatives bool   `help:"Match primary names only, not rowid aliases"`
}

func (c *ColumnCmd) Run(e *env) error {
	r := e.app.Resolver()
	t := r.ResolveTable(c.Table)
	if t == nil {
		return unresolvedTable(r, c.Table)
	}
	col := r.ResolveColumn(t, c.Ident, !c.NoAlternatives)
	if col == nil {
		return fmt.Errorf("no column %q in table %q", c.Ident, t.Name)
	}
	return writeJSON(e.out, schema.DescribeColumn(col))
}

// RefsCmd resolves every reference of a statement.
type RefsCmd struct {
	SQL string `arg:"" name:"sql" help:"SQL statement"`
}

func (c *RefsCmd) Run(e *env) error {
	res := e.app.ResolveReferences(c.SQL)

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	for _, ref := range res.Tables {
		name := ref.Name
		if ref.Alias != "" {
			name += " AS " + ref.Alias
		}
		fmt.Fprintf(tw, "table\t%s\t%s\n", name, tableTarget(ref))
	}
	for _, ref := range res.Columns {
		name := ref.Name
		if ref.Qualifier != "" {
			name = ref.Qualifier + "." + name
		}
		fmt.Fprintf(tw, "column\t%s\t%s\n", name, columnTarget(ref))
	}
	return tw.Flush()
}

func tableTarget(ref *resolve.TableReference) string {
	switch {
	case ref.Table != nil:
		return ref.Table.Name + " (" + ref.Table.DeclaringType.Path + ")"
	case ref.Suggestion != "":
		return "unresolved, did you mean " + ref.Suggestion + "?"
	default:
		return "unresolved"
	}
}

func columnTarget(ref *resolve.ColumnReference) string {
	switch {
	case ref.Column != nil:
		return ref.Table.Name + "." + schema.DisplayName(ref.Column)
	case ref.Derived:
		return "derived"
	default:
		return "unresolved"
	}
}

// RewriteCmd rewrites parameters to positional form.
type RewriteCmd struct {
	SQL string `arg:"" name:"sql" help:"SQL statement"`
}

func (c *RewriteCmd) Run(e *env) error {
	stmt := e.app.Rewrite(c.SQL)
	fmt.Fprintln(e.out, stmt.RewrittenText)
	for i, name := range stmt.ParameterNames {
		fmt.Fprintf(e.out, "%d\t%s\n", i+1, name)
	}
	return nil
}

// InlineCmd substitutes literal values for parameters.
type InlineCmd struct {
	SQL   string   `arg:"" name:"sql" help:"SQL statement"`
	Value []string `name:"value" short:"v" sep:"none" help:"Value for the next parameter (repeatable): null, a number, true/false, x'HEX' or text"`
}

func (c *InlineCmd) Run(e *env) error {
	values := make([]any, len(c.Value))
	for i, v := range c.Value {
		values[i] = parseValue(v)
	}

	text, findings, err := e.app.Inline(c.SQL, values)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, text)
	for _, f := range findings {
		fmt.Fprintf(e.out, "warning: value %d looks like SQL injection (%s)\n", f.Index+1, f.Fingerprint)
	}
	return nil
}

// NeedsBindingCmd reports whether a statement contains bind parameters.
type NeedsBindingCmd struct {
	SQL string `arg:"" name:"sql" help:"SQL statement"`
}

func (c *NeedsBindingCmd) Run(e *env) error {
	fmt.Fprintln(e.out, e.app.NeedsBinding(c.SQL))
	return nil
}

// ExecCmd runs a statement against SQLite.
type ExecCmd struct {
	SQL   string            `arg:"" name:"sql" help:"SQL statement"`
	Param map[string]string `name:"param" short:"p" mapsep:"none" help:"Parameter value as name=value; anonymous parameters use their position"`
}

func (c *ExecCmd) Run(e *env) error {
	values := make(map[string]any, len(c.Param))
	for k, v := range c.Param {
		values[k] = parseValue(v)
	}

	res, err := e.app.Exec(e.ctx, c.SQL, values)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// StatsCmd resolves statements and reports the columns they use in
// predicates, most frequent first.
type StatsCmd struct {
	SQL  []string `arg:"" name:"sql" help:"SQL statements"`
	Top  int      `default:"10" help:"Number of columns to report"`
	Tune bool     `help:"Create indices on frequently filtered columns of the exec database"`
}

func (c *StatsCmd) Run(e *env) error {
	for _, sql := range c.SQL {
		e.app.ResolveReferences(sql)
	}
	predicates, unresolved := e.app.TopPredicates(c.Top)

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	for _, s := range predicates {
		fmt.Fprintf(tw, "predicate\t%s\t%d\t%s\n", s.Column, s.Frequency, formatOperators(s.Operators))
	}
	for _, s := range unresolved {
		fmt.Fprintf(tw, "unresolved\t%s\t%d\t\n", s.Column, s.Frequency)
	}

	if c.Tune {
		actions, err := e.app.TuneIndexes(e.ctx)
		for _, a := range actions {
			fmt.Fprintf(tw, "index\t%s\t%s\t%s.%s\n", a.Index.Name, a.Type, a.Index.Table, a.Index.Column)
		}
		if err != nil {
			tw.Flush()
			return err
		}
	}
	return tw.Flush()
}

// formatOperators renders operator counts as "op:n" pairs in name order.
func formatOperators(ops map[string]int) string {
	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, op := range names {
		parts[i] = fmt.Sprintf("%s:%d", op, ops[op])
	}
	return strings.Join(parts, " ")
}

// parseValue reads a command-line value: null, an integer, a float, a bool,
// a blob written as x'HEX', or else text.
func parseValue(s string) any {
	if strings.EqualFold(s, "null") {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && strings.ContainsAny(s, "0123456789") {
		return f
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	if len(s) >= 3 && (s[0] == 'x' || s[0] == 'X') && s[1] == '\'' && s[len(s)-1] == '\'' {
		if blob, err := hex.DecodeString(s[2 : len(s)-1]); err == nil {
			return blob
		}
	}
	return s
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
