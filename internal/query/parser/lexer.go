// Package parser provides a text-preserving SQL parse tree for Room-style
// queries: every token keeps the whitespace and comments that precede it, so
// the source of any subtree can be reproduced byte for byte.
package parser

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenIdent
	TokenQuotedIdent
	TokenNumber
	TokenString
	TokenBlob
	TokenBindParam

	// Keywords
	TokenSelect
	TokenFrom
	TokenWhere
	TokenGroup
	TokenOrder
	TokenBy
	TokenLimit
	TokenOffset
	TokenAnd
	TokenOr
	TokenNot
	TokenIn
	TokenBetween
	TokenAs
	TokenAsc
	TokenDesc
	TokenNull
	TokenIs
	TokenIsNull
	TokenNotNull
	TokenLike
	TokenGlob
	TokenMatch
	TokenRegexp
	TokenEscape
	TokenDistinct
	TokenAll
	TokenHaving
	TokenJoin
	TokenLeft
	TokenInner
	TokenOuter
	TokenCross
	TokenNatural
	TokenOn
	TokenUsing
	TokenUnion
	TokenIntersect
	TokenExcept
	TokenInsert
	TokenReplace
	TokenInto
	TokenValues
	TokenDefault
	TokenUpdate
	TokenSet
	TokenDelete
	TokenCase
	TokenWhen
	TokenThen
	TokenElse
	TokenEnd
	TokenExists
	TokenCast
	TokenCollate

	// Operators
	TokenEq        // =
	TokenEqEq      // ==
	TokenNe        // <> or !=
	TokenLt        // <
	TokenGt        // >
	TokenLe        // <=
	TokenGe        // >=
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenPercent   // %
	TokenConcat    // ||
	TokenBitAnd    // &
	TokenBitOr     // |
	TokenShl       // <<
	TokenShr       // >>
	TokenTilde     // ~
	TokenComma     // ,
	TokenLParen    // (
	TokenRParen    // )
	TokenDot       // .
	TokenSemicolon // ;
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenError:       "ERROR",
	TokenIdent:       "IDENT",
	TokenQuotedIdent: "QUOTED_IDENT",
	TokenNumber:      "NUMBER",
	TokenString:      "STRING",
	TokenBlob:        "BLOB",
	TokenBindParam:   "BIND_PARAM",
	TokenEq:          "=",
	TokenEqEq:        "==",
	TokenNe:          "<>",
	TokenLt:          "<",
	TokenGt:          ">",
	TokenLe:          "<=",
	TokenGe:          ">=",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenStar:        "*",
	TokenSlash:       "/",
	TokenPercent:     "%",
	TokenConcat:      "||",
	TokenBitAnd:      "&",
	TokenBitOr:       "|",
	TokenShl:         "<<",
	TokenShr:         ">>",
	TokenTilde:       "~",
	TokenComma:       ",",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenDot:         ".",
	TokenSemicolon:   ";",
}

// keywords maps SQL keywords to their token types.
var keywords = map[string]TokenType{
	"SELECT":    TokenSelect,
	"FROM":      TokenFrom,
	"WHERE":     TokenWhere,
	"GROUP":     TokenGroup,
	"ORDER":     TokenOrder,
	"BY":        TokenBy,
	"LIMIT":     TokenLimit,
	"OFFSET":    TokenOffset,
	"AND":       TokenAnd,
	"OR":        TokenOr,
	"NOT":       TokenNot,
	"IN":        TokenIn,
	"BETWEEN":   TokenBetween,
	"AS":        TokenAs,
	"ASC":       TokenAsc,
	"DESC":      TokenDesc,
	"NULL":      TokenNull,
	"IS":        TokenIs,
	"ISNULL":    TokenIsNull,
	"NOTNULL":   TokenNotNull,
	"LIKE":      TokenLike,
	"GLOB":      TokenGlob,
	"MATCH":     TokenMatch,
	"REGEXP":    TokenRegexp,
	"ESCAPE":    TokenEscape,
	"DISTINCT":  TokenDistinct,
	"ALL":       TokenAll,
	"HAVING":    TokenHaving,
	"JOIN":      TokenJoin,
	"LEFT":      TokenLeft,
	"INNER":     TokenInner,
	"OUTER":     TokenOuter,
	"CROSS":     TokenCross,
	"NATURAL":   TokenNatural,
	"ON":        TokenOn,
	"USING":     TokenUsing,
	"UNION":     TokenUnion,
	"INTERSECT": TokenIntersect,
	"EXCEPT":    TokenExcept,
	"INSERT":    TokenInsert,
	"REPLACE":   TokenReplace,
	"INTO":      TokenInto,
	"VALUES":    TokenValues,
	"DEFAULT":   TokenDefault,
	"UPDATE":    TokenUpdate,
	"SET":       TokenSet,
	"DELETE":    TokenDelete,
	"CASE":      TokenCase,
	"WHEN":      TokenWhen,
	"THEN":      TokenThen,
	"ELSE":      TokenElse,
	"END":       TokenEnd,
	"EXISTS":    TokenExists,
	"CAST":      TokenCast,
	"COLLATE":   TokenCollate,
}

// String returns the string representation of a TokenType.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	for kw, tt := range keywords {
		if tt == t {
			return kw
		}
	}
	return "UNKNOWN"
}

// IsKeyword reports whether the token type is a reserved word.
func (t TokenType) IsKeyword() bool {
	return t >= TokenSelect && t <= TokenCollate
}

// Token represents a lexical token. Literal is the exact source text of the
// token and Leading holds the whitespace and comments that precede it.
type Token struct {
	Type    TokenType
	Literal string
	Leading string
	Pos     int // Position of Literal in input
}

// String returns a string representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("Token{%s, %q, %d}", t.Type.String(), t.Literal, t.Pos)
}

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // Current position in input
	readPos int  // Reading position (after current char)
	ch      byte // Current character
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character and advances the position.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// skipTrivia skips whitespace and comments and returns the skipped text.
func (l *Lexer) skipTrivia() string {
	start := l.pos
	for !l.atEOF() {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for !l.atEOF() && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if !l.atEOF() {
				l.readChar()
				l.readChar()
			}
		default:
			return l.input[start:l.pos]
		}
	}
	return l.input[start:l.pos]
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	leading := l.skipTrivia()
	startPos := l.pos

	if l.atEOF() {
		return Token{Type: TokenEOF, Leading: leading, Pos: startPos}
	}

	tok := l.scan()
	tok.Leading = leading
	tok.Pos = startPos
	tok.Literal = l.input[startPos:l.pos]
	return tok
}

// scan reads one token starting at the current character and leaves the lexer
// positioned after it. Literal and Pos are filled in by NextToken.
func (l *Lexer) scan() Token {
	switch ch := l.ch; ch {
	case '=':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenEqEq}
		}
		return Token{Type: TokenEq}
	case '<':
		l.readChar()
		switch l.ch {
		case '=':
			l.readChar()
			return Token{Type: TokenLe}
		case '>':
			l.readChar()
			return Token{Type: TokenNe}
		case '<':
			l.readChar()
			return Token{Type: TokenShl}
		}
		return Token{Type: TokenLt}
	case '>':
		l.readChar()
		switch l.ch {
		case '=':
			l.readChar()
			return Token{Type: TokenGe}
		case '>':
			l.readChar()
			return Token{Type: TokenShr}
		}
		return Token{Type: TokenGt}
	case '!':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenNe}
		}
		return Token{Type: TokenError}
	case '|':
		l.readChar()
		if l.ch == '|' {
			l.readChar()
			return Token{Type: TokenConcat}
		}
		return Token{Type: TokenBitOr}
	case '+', '-', '*', '/', '%', '&', '~', ',', '(', ')', ';':
		l.readChar()
		return Token{Type: singleCharTokens[ch]}
	case '.':
		if isDigit(l.peekChar()) {
			return l.readNumber()
		}
		l.readChar()
		return Token{Type: TokenDot}
	case '\'':
		return l.readQuoted('\'', '\'', TokenString)
	case '"':
		return l.readQuoted('"', '"', TokenQuotedIdent)
	case '`':
		return l.readQuoted('`', '`', TokenQuotedIdent)
	case '[':
		return l.readQuoted('[', ']', TokenQuotedIdent)
	case '?':
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenBindParam}
	case ':', '@', '$':
		if !isIdentStart(l.peekChar()) && !isDigit(l.peekChar()) {
			l.readChar()
			return Token{Type: TokenError}
		}
		l.readChar()
		for isIdentPart(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenBindParam}
	default:
		if (ch == 'x' || ch == 'X') && l.peekChar() == '\'' {
			l.readChar()
			tok := l.readQuoted('\'', '\'', TokenBlob)
			return tok
		}
		if isIdentStart(ch) {
			return l.readIdentifier()
		}
		if isDigit(ch) {
			return l.readNumber()
		}
		l.readChar()
		return Token{Type: TokenError}
	}
}

var singleCharTokens = map[byte]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'%': TokenPercent,
	'&': TokenBitAnd,
	'~': TokenTilde,
	',': TokenComma,
	'(': TokenLParen,
	')': TokenRParen,
	';': TokenSemicolon,
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() Token {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	upper := strings.ToUpper(l.input[start:l.pos])

	if tokType, ok := keywords[upper]; ok {
		return Token{Type: tokType}
	}
	return Token{Type: TokenIdent}
}

// readNumber reads a numeric literal, including hex and exponent forms.
func (l *Lexer) readNumber() Token {
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenNumber}
	}

	hasDecimal := false
	for isDigit(l.ch) || (l.ch == '.' && !hasDecimal) {
		if l.ch == '.' {
			hasDecimal = true
		}
		l.readChar()
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return Token{Type: TokenNumber}
}

// readQuoted reads a literal enclosed in open/close characters. A doubled
// closing character is an escaped one. An unterminated literal swallows the
// rest of the input as an error token.
func (l *Lexer) readQuoted(open, close byte, typ TokenType) Token {
	l.readChar() // Skip opening quote
	for !l.atEOF() {
		if l.ch == close {
			if close != ']' && l.peekChar() == close {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return Token{Type: typ}
		}
		l.readChar()
	}
	return Token{Type: TokenError}
}

// Tokenize returns all tokens from the input, ending with TokenEOF. Error
// tokens do not stop the scan.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

// isDigit returns true if the character is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// Unquote strips SQL identifier or string quoting: "x", 'x', `x` and [x].
// Doubled quote characters inside are collapsed.
func Unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	switch {
	case first == '[' && last == ']':
		return s[1 : len(s)-1]
	case (first == '"' || first == '\'' || first == '`') && last == first:
		q := string(first)
		return strings.ReplaceAll(s[1:len(s)-1], q+q, q)
	}
	return s
}
