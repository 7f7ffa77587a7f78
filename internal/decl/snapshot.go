package decl

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"

	engerrors "github.com/arkilian/roomsql/internal/errors"
)

// SourceFile is one declaration file.
type SourceFile struct {
	Path string
	Text string
}

// Snapshot is an immutable view of every declared class at one generation.
type Snapshot struct {
	Generation uint64
	Classes    []*Class

	// Errors holds one MALFORMED_SOURCE error per file that failed to parse.
	// Those files contribute no classes.
	Errors []error

	// Shadowed lists classes dropped because an earlier file already declared
	// the same qualified name, as "name (file)".
	Shadowed []string

	sources     []SourceFile
	byPath      map[string]Element
	byName      map[string][]*Class
	fingerprint uint64
}

// NewSnapshot parses the files into a snapshot. Files are processed in path
// order so the class order is deterministic. A file that fails to parse is
// skipped and reported in Errors; the remaining files still produce classes.
func NewSnapshot(generation uint64, files []SourceFile) *Snapshot {
	sorted := append([]SourceFile(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	s := &Snapshot{
		Generation: generation,
		sources:    sorted,
		byPath:     make(map[string]Element),
		byName:     make(map[string][]*Class),
	}

	h := murmur3.New64()
	for _, f := range sorted {
		_, _ = h.Write([]byte(f.Path))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(f.Text))
		_, _ = h.Write([]byte{0})

		ast, err := parseSource(f.Path, f.Text)
		if err != nil {
			s.Errors = append(s.Errors,
				engerrors.NewDeclarationError(engerrors.CodeMalformedSource, "cannot parse "+f.Path, err).
					WithDetails(map[string]interface{}{"path": f.Path}))
			continue
		}
		s.addFile(f.Path, ast)
	}
	s.fingerprint = h.Sum64()
	return s
}

func (s *Snapshot) addFile(path string, f *fileAST) {
	pkg := strings.Join(f.Package, ".")
	var imports, wildcards []string
	for _, imp := range f.Imports {
		if imp.Wildcard {
			wildcards = append(wildcards, strings.Join(imp.Path, "."))
		} else {
			imports = append(imports, strings.Join(imp.Path, "."))
		}
	}

	for _, c := range f.Classes {
		qualified := c.Name
		if pkg != "" {
			qualified = pkg + "." + c.Name
		}
		if _, dup := s.byPath[qualified]; dup {
			// First declaration wins; later duplicates are unreachable by path.
			s.Shadowed = append(s.Shadowed, qualified+" ("+path+")")
			continue
		}

		class := &Class{
			Path:         qualified,
			Name:         c.Name,
			Package:      pkg,
			Source:       path,
			Line:         c.Pos.Line,
			imports:      imports,
			wildcardPkgs: wildcards,
		}
		if c.Keyword == "interface" {
			class.Kind = KindInterface
		}
		class.Annotations = s.convertAnnotations(qualified, c.Annotations, imports)

		for _, fa := range c.Fields {
			field := &Field{
				Path:     qualified + "#" + fa.Name,
				Name:     fa.Name,
				Type:     fa.Type.simpleName(),
				TypeText: fa.Type.String(),
				Owner:    class,
				Line:     fa.Pos.Line,
			}
			for _, m := range fa.Modifiers {
				if m == "static" {
					field.Static = true
				}
			}
			field.Annotations = s.convertAnnotations(field.Path, fa.Annotations, imports)
			class.Fields = append(class.Fields, field)
			s.byPath[field.Path] = field
		}

		s.Classes = append(s.Classes, class)
		s.byPath[qualified] = class
		s.byName[c.Name] = append(s.byName[c.Name], class)
	}
}

func (s *Snapshot) convertAnnotations(owner string, anns []*annotationAST, imports []string) []*Annotation {
	out := make([]*Annotation, 0, len(anns))
	for _, a := range anns {
		simple := a.Name[len(a.Name)-1]
		ann := &Annotation{
			Path:          owner + "@" + simple,
			Name:          simple,
			QualifiedName: qualifyAnnotation(a.Name, imports),
		}
		for i, arg := range a.Args {
			name := arg.Name
			key := name
			if key == "" {
				key = "$" + strconv.Itoa(i)
			}
			converted := &Argument{
				Path:  ann.Path + "." + key,
				Name:  name,
				Value: arg.Value.toValue(),
			}
			ann.Args = append(ann.Args, converted)
			s.byPath[converted.Path] = converted
		}
		out = append(out, ann)
		s.byPath[ann.Path] = ann
	}
	return out
}

// qualifyAnnotation resolves an annotation name through the file imports.
func qualifyAnnotation(name []string, imports []string) string {
	if len(name) > 1 {
		return strings.Join(name, ".")
	}
	for _, imp := range imports {
		if strings.HasSuffix(imp, "."+name[0]) {
			return imp
		}
	}
	return name[0]
}

// Handle returns a handle to the element at path in this snapshot.
func (s *Snapshot) Handle(path string) Handle {
	return Handle{Generation: s.Generation, Path: path}
}

// Lookup returns the element at path.
func (s *Snapshot) Lookup(path string) (Element, bool) {
	e, ok := s.byPath[path]
	return e, ok
}

// ResolveClass resolves a class reference as written in from's file: a
// qualified name, a class of the same package, an explicit or wildcard
// import, or finally any class with that simple name.
func (s *Snapshot) ResolveClass(name string, from *Class) *Class {
	if c, ok := s.byPath[name].(*Class); ok {
		return c
	}
	if strings.Contains(name, ".") {
		return nil
	}
	if from != nil {
		if from.Package != "" {
			if c, ok := s.byPath[from.Package+"."+name].(*Class); ok {
				return c
			}
		}
		for _, imp := range from.imports {
			if strings.HasSuffix(imp, "."+name) {
				if c, ok := s.byPath[imp].(*Class); ok {
					return c
				}
			}
		}
		for _, pkg := range from.wildcardPkgs {
			if c, ok := s.byPath[pkg+"."+name].(*Class); ok {
				return c
			}
		}
	}
	if classes := s.byName[name]; len(classes) > 0 {
		return classes[0]
	}
	return nil
}

// Fingerprint is a murmur3 hash over every source path and text. Equal
// fingerprints mean an identical declaration set.
func (s *Snapshot) Fingerprint() uint64 {
	return s.fingerprint
}

// Sources returns the files the snapshot was built from, in path order.
func (s *Snapshot) Sources() []SourceFile {
	return append([]SourceFile(nil), s.sources...)
}

// SourcePaths returns the paths of the files the snapshot was built from.
func (s *Snapshot) SourcePaths() []string {
	paths := make([]string, len(s.sources))
	for i, f := range s.sources {
		paths[i] = f.Path
	}
	return paths
}
