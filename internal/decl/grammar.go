package decl

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Grammar for .room declaration files. The surface is a small subset shared
// by Java and Kotlin: annotated classes with typed fields.
//
//nolint:govet // participle grammar tags are not standard struct tags
type fileAST struct {
	Package []string     `("package" @Ident ("." @Ident)* ";"?)?`
	Imports []*importAST `@@*`
	Classes []*classAST  `@@*`
}

//nolint:govet
type importAST struct {
	Path     []string `"import" @Ident ("." @Ident)*`
	Wildcard bool     `@("." "*")? ";"?`
}

//nolint:govet
type classAST struct {
	Pos         lexer.Position
	Annotations []*annotationAST `@@*`
	Modifiers   []string         `@("public" | "abstract" | "open" | "data" | "final")*`
	Keyword     string           `@("class" | "interface")`
	Name        string           `@Ident`
	Fields      []*fieldAST      `("{" @@* "}")?`
}

//nolint:govet
type annotationAST struct {
	Name []string       `"@" @Ident ("." @Ident)*`
	Args []*argumentAST `("(" (@@ ("," @@)*)? ")")?`
}

//nolint:govet
type argumentAST struct {
	Name  string   `(@Ident "=")?`
	Value *exprAST `@@`
}

//nolint:govet
type exprAST struct {
	Terms []*termAST `@@ ("+" @@)*`
}

//nolint:govet
type termAST struct {
	String *string  `  @String`
	Number *string  `| @("-"? Number)`
	Bool   *string  `| @("true" | "false")`
	List   *listAST `| @@`
	Ref    []string `| @Ident ("." @Ident)* ("::" "class")?`
}

//nolint:govet
type listAST struct {
	Items []*exprAST `("[" | "{") (@@ ("," @@)*)? ("]" | "}")`
}

//nolint:govet
type fieldAST struct {
	Pos         lexer.Position
	Annotations []*annotationAST `@@*`
	Modifiers   []string         `@("static" | "val" | "var" | "private" | "public" | "protected" | "final" | "transient")*`
	Name        string           `@Ident`
	Type        *typeAST         `":" @@ ";"?`
}

//nolint:govet
type typeAST struct {
	Name     []string   `@Ident ("." @Ident)*`
	Args     []*typeAST `("<" @@ ("," @@)* ">")?`
	Nullable bool       `@"?"?`
}

var declLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*|/\*([^*]|\*+[^*/])*\*+/`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `\d+(\.\d+)?[LlFfDd]?`},
	{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$]*`},
	{Name: "Punct", Pattern: `::|[@(){}\[\],.;:=+\-<>?*]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var declParser = participle.MustBuild[fileAST](
	participle.Lexer(declLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// parseSource parses one declaration file.
func parseSource(path, text string) (*fileAST, error) {
	return declParser.ParseString(path, text)
}

func (t *typeAST) simpleName() string {
	if t == nil || len(t.Name) == 0 {
		return ""
	}
	return t.Name[len(t.Name)-1]
}

func (t *typeAST) String() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(t.Name, "."))
	if len(t.Args) > 0 {
		sb.WriteString("<")
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteString(">")
	}
	if t.Nullable {
		sb.WriteString("?")
	}
	return sb.String()
}

// toValue converts an argument expression into a Value. A single term is
// returned as is; several terms joined by + become a Concat.
func (e *exprAST) toValue() Value {
	if len(e.Terms) == 1 {
		return e.Terms[0].toValue()
	}
	parts := make([]Value, len(e.Terms))
	for i, term := range e.Terms {
		parts[i] = term.toValue()
	}
	return Concat{Parts: parts}
}

func (t *termAST) toValue() Value {
	switch {
	case t.String != nil:
		return String{S: *t.String}
	case t.Number != nil:
		return Number{Text: *t.Number}
	case t.Bool != nil:
		return Bool{B: *t.Bool == "true"}
	case t.List != nil:
		items := make([]Value, len(t.List.Items))
		for i, item := range t.List.Items {
			items[i] = item.toValue()
		}
		return List{Items: items}
	default:
		parts := t.Ref
		// Java class literals: User.class
		if len(parts) > 1 && parts[len(parts)-1] == "class" {
			parts = parts[:len(parts)-1]
		}
		return Ref{Parts: parts}
	}
}
