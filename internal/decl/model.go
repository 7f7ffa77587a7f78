// Package decl holds the declaration source the schema is built from:
// annotated classes parsed from .room files, published as immutable
// generation-numbered snapshots.
package decl

import (
	"fmt"
	"strings"
)

// Handle is a revalidatable reference into a declaration snapshot. It never
// holds a pointer into the tree; Store.Lookup re-resolves it against the live
// snapshot.
type Handle struct {
	Generation uint64
	Path       string
}

// IsZero reports whether the handle points nowhere.
func (h Handle) IsZero() bool {
	return h.Path == ""
}

func (h Handle) String() string {
	return fmt.Sprintf("%s@%d", h.Path, h.Generation)
}

// Element is anything a Handle can resolve to.
type Element interface {
	ElementPath() string
}

// ClassKind distinguishes classes from interfaces.
type ClassKind int

const (
	KindClass ClassKind = iota
	KindInterface
)

// Class is a declared type.
type Class struct {
	Path         string // qualified name, unique within a snapshot
	Name         string
	Package      string
	Kind         ClassKind
	Annotations  []*Annotation
	Fields       []*Field
	Source       string
	Line         int
	imports      []string
	wildcardPkgs []string
}

func (c *Class) ElementPath() string { return c.Path }

// Annotation returns the first annotation whose simple or qualified name is
// one of names.
func (c *Class) Annotation(names ...string) *Annotation {
	return findAnnotation(c.Annotations, names)
}

// Field is a declared field of a class.
type Field struct {
	Path        string
	Name        string
	Type        string // simple type name
	TypeText    string // as written, generics included
	Static      bool
	Annotations []*Annotation
	Owner       *Class
	Line        int
}

func (f *Field) ElementPath() string { return f.Path }

// Annotation returns the first annotation whose simple or qualified name is
// one of names.
func (f *Field) Annotation(names ...string) *Annotation {
	return findAnnotation(f.Annotations, names)
}

// Annotation is a marker with optional arguments.
type Annotation struct {
	Path          string
	Name          string // simple name
	QualifiedName string // fully qualified if it could be determined, else Name
	Args          []*Argument
}

func (a *Annotation) ElementPath() string { return a.Path }

// Arg returns the named argument. The unnamed first argument answers to
// "value", as in Java.
func (a *Annotation) Arg(name string) *Argument {
	for i, arg := range a.Args {
		if arg.Name == name || (arg.Name == "" && i == 0 && name == "value") {
			return arg
		}
	}
	return nil
}

func findAnnotation(anns []*Annotation, names []string) *Annotation {
	for _, a := range anns {
		for _, n := range names {
			if a.Name == n || a.QualifiedName == n {
				return a
			}
		}
	}
	return nil
}

// Argument is one annotation argument.
type Argument struct {
	Path  string
	Name  string
	Value Value
}

func (a *Argument) ElementPath() string { return a.Path }

// Value is an annotation argument value: String, Number, Bool, List, Ref or
// Concat.
type Value interface {
	isValue()
	String() string
}

type String struct{ S string }

type Number struct{ Text string }

type Bool struct{ B bool }

type List struct{ Items []Value }

// Ref names an identifier: a class, a constant, an enum entry.
type Ref struct{ Parts []string }

// Concat is a + b + ...
type Concat struct{ Parts []Value }

func (String) isValue() {}
func (Number) isValue() {}
func (Bool) isValue()   {}
func (List) isValue()   {}
func (Ref) isValue()    {}
func (Concat) isValue() {}

func (v String) String() string { return fmt.Sprintf("%q", v.S) }
func (v Number) String() string { return v.Text }
func (v Bool) String() string   { return fmt.Sprintf("%t", v.B) }
func (v Ref) String() string    { return strings.Join(v.Parts, ".") }

func (v List) String() string {
	items := make([]string, len(v.Items))
	for i, item := range v.Items {
		items[i] = item.String()
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func (v Concat) String() string {
	parts := make([]string, len(v.Parts))
	for i, p := range v.Parts {
		parts[i] = p.String()
	}
	return strings.Join(parts, " + ")
}

// ConstantString evaluates v as a compile-time string constant. Only string
// literals and concatenations of them qualify; references to constants are
// not followed.
func ConstantString(v Value) (string, bool) {
	switch v := v.(type) {
	case String:
		return v.S, true
	case Concat:
		var sb strings.Builder
		for _, p := range v.Parts {
			s, ok := ConstantString(p)
			if !ok {
				return "", false
			}
			sb.WriteString(s)
		}
		return sb.String(), true
	default:
		return "", false
	}
}

// RefNames returns the referenced identifiers of a Ref or a List of Refs.
// Items that are not references are skipped.
func RefNames(v Value) []string {
	switch v := v.(type) {
	case Ref:
		return []string{v.String()}
	case List:
		var out []string
		for _, item := range v.Items {
			if r, ok := item.(Ref); ok {
				out = append(out, r.String())
			}
		}
		return out
	default:
		return nil
	}
}
