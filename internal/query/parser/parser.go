package parser

import (
	"fmt"
	"strings"
)

// ParseError represents a parsing error with location information.
type ParseError struct {
	Message  string
	Position int
	Token    Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s (got %q)", e.Position, e.Message, e.Token.Literal)
}

// Parser parses SQL statements into a text-preserving tree.
type Parser struct {
	tokens []Token
	pos    int
	errors []*ParseError
}

// NewParser creates a new Parser for the given input.
func NewParser(input string) *Parser {
	return &Parser{tokens: NewLexer(input).Tokenize()}
}

// Parse parses the input and returns the tree. The tree is always returned
// and its text always equals the input; statements that fail to parse are
// kept as KindError nodes and the first failure is reported as *ParseError.
func Parse(input string) (*Node, error) {
	p := NewParser(input)
	root := p.ParseRoot()
	if len(p.errors) > 0 {
		return root, p.errors[0]
	}
	return root, nil
}

// Errors returns every error recorded so far.
func (p *Parser) Errors() []*ParseError {
	return p.errors
}

// ParseRoot parses a sequence of statements separated by semicolons.
func (p *Parser) ParseRoot() *Node {
	root := newNode(KindRoot)
	for !p.curIs(TokenEOF) {
		if p.curIs(TokenSemicolon) {
			root.Append(p.take())
			continue
		}

		start := p.pos
		stmt, err := p.parseStatement()
		if err != nil {
			p.errors = append(p.errors, err)
			p.pos = start
			root.Append(p.recoverStatement())
			continue
		}
		root.Append(stmt)

		if !p.curIs(TokenSemicolon) && !p.curIs(TokenEOF) {
			p.errors = append(p.errors, p.errorf("unexpected token after statement"))
			root.Append(p.recoverStatement())
		}
	}
	// EOF carries the trailing trivia.
	root.Append(p.take())
	return root
}

// parseStatement parses a single SQL statement.
func (p *Parser) parseStatement() (*Node, *ParseError) {
	switch p.cur().Type {
	case TokenSelect, TokenValues:
		return p.parseSelect()
	case TokenInsert, TokenReplace:
		return p.parseInsert()
	case TokenUpdate:
		return p.parseUpdate()
	case TokenDelete:
		return p.parseDelete()
	default:
		return nil, p.errorf("unsupported statement type")
	}
}

// recoverStatement consumes tokens up to the next top-level semicolon into an error
// node. Bind parameters keep their kind.
func (p *Parser) recoverStatement() *Node {
	n := newNode(KindError)
	depth := 0
	for !p.curIs(TokenEOF) {
		switch p.cur().Type {
		case TokenSemicolon:
			if depth == 0 {
				return n
			}
		case TokenLParen:
			depth++
		case TokenRParen:
			if depth > 0 {
				depth--
			}
		}
		if p.curIs(TokenBindParam) {
			n.Append(p.takeAs(KindBindParameter, RoleNone))
		} else {
			n.Append(p.take())
		}
	}
	return n
}

// Token cursor helpers.

func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) curIs(t TokenType) bool {
	return p.cur().Type == t
}

func (p *Parser) peekIs(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) curIsName() bool {
	return p.curIs(TokenIdent) || p.curIs(TokenQuotedIdent)
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

// take wraps the current token into a leaf and advances.
func (p *Parser) take() *Node {
	return p.takeAs(KindToken, RoleNone)
}

func (p *Parser) takeAs(kind Kind, role Role) *Node {
	n := newLeaf(kind, role, p.cur())
	p.advance()
	return n
}

// expect takes the current token if it has the given type.
func (p *Parser) expect(t TokenType) (*Node, *ParseError) {
	if !p.curIs(t) {
		return nil, p.errorf("expected %s", t)
	}
	return p.take(), nil
}

func (p *Parser) errorf(format string, args ...interface{}) *ParseError {
	tok := p.cur()
	return &ParseError{
		Message:  fmt.Sprintf(format, args...),
		Position: tok.Pos,
		Token:    tok,
	}
}

// parseSelect parses a SELECT statement, compound operators included.
func (p *Parser) parseSelect() (*Node, *ParseError) {
	sel := newNode(KindSelect)
	if err := p.parseSelectCore(sel); err != nil {
		return nil, err
	}

	for p.curIs(TokenUnion) || p.curIs(TokenIntersect) || p.curIs(TokenExcept) {
		sel.Append(p.take())
		if p.curIs(TokenAll) {
			sel.Append(p.take())
		}
		if err := p.parseSelectCore(sel); err != nil {
			return nil, err
		}
	}

	// Parse ORDER BY
	if p.curIs(TokenOrder) {
		sel.Append(p.take())
		by, err := p.expect(TokenBy)
		if err != nil {
			return nil, err
		}
		sel.Append(by)
		for {
			term, err := p.parseOrderingTerm()
			if err != nil {
				return nil, err
			}
			sel.Append(term)
			if !p.curIs(TokenComma) {
				break
			}
			sel.Append(p.take())
		}
	}

	// Parse LIMIT
	if p.curIs(TokenLimit) {
		sel.Append(p.take())
		limit, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		sel.Append(limit)

		if p.curIs(TokenOffset) || p.curIs(TokenComma) {
			sel.Append(p.take())
			offset, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			sel.Append(offset)
		}
	}

	return sel, nil
}

func (p *Parser) parseSelectCore(sel *Node) *ParseError {
	if p.curIs(TokenValues) {
		return p.parseValues(sel)
	}

	kw, err := p.expect(TokenSelect)
	if err != nil {
		return err
	}
	sel.Append(kw)

	if p.curIs(TokenDistinct) || p.curIs(TokenAll) {
		sel.Append(p.take())
	}

	for {
		col, err := p.parseResultColumn()
		if err != nil {
			return err
		}
		sel.Append(col)
		if !p.curIs(TokenComma) {
			break
		}
		sel.Append(p.take())
	}

	if p.curIs(TokenFrom) {
		from := newNode(KindFrom, p.take())
		if err := p.parseJoinSource(from); err != nil {
			return err
		}
		sel.Append(from)
	}

	if p.curIs(TokenWhere) {
		sel.Append(p.take())
		where, err := p.parseExpression(precLowest)
		if err != nil {
			return err
		}
		sel.Append(where)
	}

	if p.curIs(TokenGroup) {
		sel.Append(p.take())
		by, err := p.expect(TokenBy)
		if err != nil {
			return err
		}
		sel.Append(by)
		if err := p.parseExpressionList(sel); err != nil {
			return err
		}

		if p.curIs(TokenHaving) {
			sel.Append(p.take())
			having, err := p.parseExpression(precLowest)
			if err != nil {
				return err
			}
			sel.Append(having)
		}
	}

	return nil
}

// parseValues parses VALUES (..), (..) into n.
func (p *Parser) parseValues(n *Node) *ParseError {
	n.Append(p.take()) // VALUES
	for {
		row, err := p.parseParenList()
		if err != nil {
			return err
		}
		n.Append(row)
		if !p.curIs(TokenComma) {
			return nil
		}
		n.Append(p.take())
	}
}

func (p *Parser) parseResultColumn() (*Node, *ParseError) {
	col := newNode(KindResultColumn)

	if p.curIs(TokenStar) {
		col.Append(p.take())
		return col, nil
	}

	// table.*
	if p.curIsName() && p.peekIs(TokenDot) && p.pos+2 < len(p.tokens) && p.tokens[p.pos+2].Type == TokenStar {
		col.Append(p.takeAs(KindToken, RoleQualifier), p.take(), p.take())
		return col, nil
	}

	expr, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	col.Append(expr)
	if err := p.parseAlias(col); err != nil {
		return nil, err
	}
	return col, nil
}

// parseAlias parses an optional [AS] alias into n.
func (p *Parser) parseAlias(n *Node) *ParseError {
	if p.curIs(TokenAs) {
		n.Append(p.take())
		if !p.curIsName() && !p.curIs(TokenString) {
			return p.errorf("expected alias after AS")
		}
		n.Append(p.takeAs(KindToken, RoleAlias))
		return nil
	}
	if p.curIsName() {
		n.Append(p.takeAs(KindToken, RoleAlias))
	}
	return nil
}

// parseJoinSource parses table-or-subquery items joined by commas or JOIN
// operators into into.
func (p *Parser) parseJoinSource(into *Node) *ParseError {
	if err := p.parseTableOrSubquery(into); err != nil {
		return err
	}

	for {
		if p.curIs(TokenComma) {
			into.Append(p.take())
			if err := p.parseTableOrSubquery(into); err != nil {
				return err
			}
			continue
		}
		if !p.atJoin() {
			return nil
		}

		join := newNode(KindJoin)
		for !p.curIs(TokenJoin) {
			join.Append(p.take())
		}
		join.Append(p.take())
		if err := p.parseTableOrSubquery(join); err != nil {
			return err
		}

		switch {
		case p.curIs(TokenOn):
			join.Append(p.take())
			on, err := p.parseExpression(precLowest)
			if err != nil {
				return err
			}
			join.Append(on)
		case p.curIs(TokenUsing):
			join.Append(p.take())
			cols, err := p.parseColumnNameList()
			if err != nil {
				return err
			}
			join.Append(cols...)
		}
		into.Append(join)
	}
}

// atJoin reports whether the cursor is at [NATURAL] [LEFT [OUTER] | INNER |
// CROSS] JOIN.
func (p *Parser) atJoin() bool {
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].Type {
		case TokenJoin:
			return true
		case TokenNatural, TokenLeft, TokenOuter, TokenInner, TokenCross:
			continue
		default:
			return false
		}
	}
	return false
}

func (p *Parser) parseTableOrSubquery(into *Node) *ParseError {
	if p.curIs(TokenLParen) {
		if p.peekIs(TokenSelect) || p.peekIs(TokenValues) {
			sub, err := p.parseSubquery()
			if err != nil {
				return err
			}
			if err := p.parseAlias(sub); err != nil {
				return err
			}
			into.Append(sub)
			return nil
		}

		into.Append(p.take())
		if err := p.parseJoinSource(into); err != nil {
			return err
		}
		rp, err := p.expect(TokenRParen)
		if err != nil {
			return err
		}
		into.Append(rp)
		return nil
	}

	ref, err := p.parseTableRef(true)
	if err != nil {
		return err
	}
	into.Append(ref)
	return nil
}

// parseTableRef parses [database.]table [[AS] alias].
func (p *Parser) parseTableRef(allowAlias bool) (*Node, *ParseError) {
	if !p.curIsName() && !p.curIs(TokenString) {
		return nil, p.errorf("expected table name")
	}
	ref := newNode(KindTableRef)
	first := p.takeAs(KindToken, RoleName)
	ref.Append(first)

	if p.curIs(TokenDot) {
		first.Role = RoleDatabase
		ref.Append(p.take())
		if !p.curIsName() {
			return nil, p.errorf("expected table name after dot")
		}
		ref.Append(p.takeAs(KindToken, RoleName))
	}

	if allowAlias {
		if err := p.parseAlias(ref); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

// parseSubquery parses ( select ).
func (p *Parser) parseSubquery() (*Node, *ParseError) {
	sub := newNode(KindSubquery, p.take())
	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	sub.Append(sel)
	rp, err := p.expect(TokenRParen)
	if err != nil {
		return nil, err
	}
	sub.Append(rp)
	return sub, nil
}

// parseColumnNameList parses ( name, ... ) into column references.
func (p *Parser) parseColumnNameList() ([]*Node, *ParseError) {
	lp, err := p.expect(TokenLParen)
	if err != nil {
		return nil, err
	}
	nodes := []*Node{lp}
	for {
		if !p.curIsName() {
			return nil, p.errorf("expected column name")
		}
		nodes = append(nodes, newNode(KindColumnRef, p.takeAs(KindToken, RoleName)))
		if !p.curIs(TokenComma) {
			break
		}
		nodes = append(nodes, p.take())
	}
	rp, err := p.expect(TokenRParen)
	if err != nil {
		return nil, err
	}
	return append(nodes, rp), nil
}

func (p *Parser) parseOrderingTerm() (*Node, *ParseError) {
	expr, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	term := newNode(KindOrderingTerm, expr)
	if p.curIs(TokenAsc) || p.curIs(TokenDesc) {
		term.Append(p.take())
	}
	return term, nil
}

// parseExpressionList parses expr, expr, ... into n.
func (p *Parser) parseExpressionList(n *Node) *ParseError {
	for {
		expr, err := p.parseExpression(precLowest)
		if err != nil {
			return err
		}
		n.Append(expr)
		if !p.curIs(TokenComma) {
			return nil
		}
		n.Append(p.take())
	}
}

// parseParenList parses ( expr, ... ) as a parenthesized expression.
func (p *Parser) parseParenList() (*Node, *ParseError) {
	lp, err := p.expect(TokenLParen)
	if err != nil {
		return nil, err
	}
	list := newNode(KindParenExpr, lp)
	if err := p.parseExpressionList(list); err != nil {
		return nil, err
	}
	rp, err := p.expect(TokenRParen)
	if err != nil {
		return nil, err
	}
	list.Append(rp)
	return list, nil
}

// parseConflictClause parses an optional OR <resolution> after INSERT or
// UPDATE.
func (p *Parser) parseConflictClause(n *Node) *ParseError {
	if !p.curIs(TokenOr) {
		return nil
	}
	n.Append(p.take())
	if !p.curIs(TokenIdent) && !p.curIs(TokenReplace) {
		return p.errorf("expected conflict resolution after OR")
	}
	n.Append(p.take())
	return nil
}

// parseInsert parses INSERT / REPLACE statements.
func (p *Parser) parseInsert() (*Node, *ParseError) {
	ins := newNode(KindInsert)
	if p.curIs(TokenReplace) {
		ins.Append(p.take())
	} else {
		ins.Append(p.take())
		if err := p.parseConflictClause(ins); err != nil {
			return nil, err
		}
	}

	into, err := p.expect(TokenInto)
	if err != nil {
		return nil, err
	}
	ins.Append(into)

	ref, err := p.parseTableRef(true)
	if err != nil {
		return nil, err
	}
	ins.Append(ref)

	if p.curIs(TokenLParen) {
		cols, err := p.parseColumnNameList()
		if err != nil {
			return nil, err
		}
		ins.Append(cols...)
	}

	switch {
	case p.curIs(TokenValues):
		if err := p.parseValues(ins); err != nil {
			return nil, err
		}
	case p.curIs(TokenSelect):
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		ins.Append(sel)
	case p.curIs(TokenDefault):
		ins.Append(p.take())
		values, err := p.expect(TokenValues)
		if err != nil {
			return nil, err
		}
		ins.Append(values)
	default:
		return nil, p.errorf("expected VALUES, SELECT or DEFAULT VALUES")
	}
	return ins, nil
}

// parseUpdate parses UPDATE t SET c = expr, ... [WHERE expr].
func (p *Parser) parseUpdate() (*Node, *ParseError) {
	upd := newNode(KindUpdate, p.take())
	if err := p.parseConflictClause(upd); err != nil {
		return nil, err
	}

	ref, err := p.parseTableRef(true)
	if err != nil {
		return nil, err
	}
	upd.Append(ref)

	set, err := p.expect(TokenSet)
	if err != nil {
		return nil, err
	}
	upd.Append(set)

	for {
		if !p.curIsName() {
			return nil, p.errorf("expected column name in SET")
		}
		assign := newNode(KindAssignment, newNode(KindColumnRef, p.takeAs(KindToken, RoleName)))
		eq, err := p.expect(TokenEq)
		if err != nil {
			return nil, err
		}
		assign.Append(eq)
		value, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		assign.Append(value)
		upd.Append(assign)

		if !p.curIs(TokenComma) {
			break
		}
		upd.Append(p.take())
	}

	if err := p.parseWhere(upd); err != nil {
		return nil, err
	}
	return upd, nil
}

// parseDelete parses DELETE FROM t [WHERE expr].
func (p *Parser) parseDelete() (*Node, *ParseError) {
	del := newNode(KindDelete, p.take())
	from, err := p.expect(TokenFrom)
	if err != nil {
		return nil, err
	}
	del.Append(from)

	ref, err := p.parseTableRef(true)
	if err != nil {
		return nil, err
	}
	del.Append(ref)

	if err := p.parseWhere(del); err != nil {
		return nil, err
	}
	return del, nil
}

func (p *Parser) parseWhere(n *Node) *ParseError {
	if !p.curIs(TokenWhere) {
		return nil
	}
	n.Append(p.take())
	where, err := p.parseExpression(precLowest)
	if err != nil {
		return err
	}
	n.Append(where)
	return nil
}

// Operator precedence levels, lowest first.
const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precEquivalence
	precCompare
	precBitwise
	precAdd
	precMul
	precConcat
	precUnary
	precCollate
)

// getPrecedence returns the precedence of the current token as an infix
// operator.
func (p *Parser) getPrecedence() int {
	switch p.cur().Type {
	case TokenOr:
		return precOr
	case TokenAnd:
		return precAnd
	case TokenNot:
		switch p.peek().Type {
		case TokenIn, TokenLike, TokenGlob, TokenMatch, TokenRegexp, TokenBetween, TokenNull:
			return precEquivalence
		}
		return precLowest
	case TokenEq, TokenEqEq, TokenNe, TokenIs, TokenIsNull, TokenNotNull,
		TokenIn, TokenLike, TokenGlob, TokenMatch, TokenRegexp, TokenBetween:
		return precEquivalence
	case TokenLt, TokenGt, TokenLe, TokenGe:
		return precCompare
	case TokenBitAnd, TokenBitOr, TokenShl, TokenShr:
		return precBitwise
	case TokenPlus, TokenMinus:
		return precAdd
	case TokenStar, TokenSlash, TokenPercent:
		return precMul
	case TokenConcat:
		return precConcat
	case TokenCollate:
		return precCollate
	default:
		return precLowest
	}
}

// parseExpression parses an expression with operator precedence.
func (p *Parser) parseExpression(precedence int) (*Node, *ParseError) {
	left, err := p.parsePrefixExpression()
	if err != nil {
		return nil, err
	}

	for !p.curIs(TokenEOF) && precedence < p.getPrecedence() {
		left, err = p.parseInfixExpression(left)
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

// parsePrefixExpression parses a prefix expression.
func (p *Parser) parsePrefixExpression() (*Node, *ParseError) {
	switch p.cur().Type {
	case TokenIdent:
		if p.peekIs(TokenLParen) {
			return p.parseFunctionCall()
		}
		if isLiteralKeyword(p.cur().Literal) {
			return p.takeAs(KindLiteral, RoleNone), nil
		}
		return p.parseColumnRef()
	case TokenQuotedIdent:
		return p.parseColumnRef()
	case TokenReplace, TokenLike, TokenGlob, TokenMatch, TokenRegexp:
		if p.peekIs(TokenLParen) {
			return p.parseFunctionCall()
		}
	case TokenNumber, TokenString, TokenBlob, TokenNull:
		return p.takeAs(KindLiteral, RoleNone), nil
	case TokenBindParam:
		return p.takeAs(KindBindParameter, RoleNone), nil
	case TokenLParen:
		if p.peekIs(TokenSelect) || p.peekIs(TokenValues) {
			return p.parseSubquery()
		}
		return p.parseParenList()
	case TokenNot:
		op := p.takeAs(KindToken, RoleOperator)
		operand, err := p.parseExpression(precNot)
		if err != nil {
			return nil, err
		}
		return newNode(KindUnaryExpr, op, operand), nil
	case TokenMinus, TokenPlus, TokenTilde:
		op := p.takeAs(KindToken, RoleOperator)
		operand, err := p.parseExpression(precUnary)
		if err != nil {
			return nil, err
		}
		return newNode(KindUnaryExpr, op, operand), nil
	case TokenCase:
		return p.parseCase()
	case TokenCast:
		return p.parseCast()
	case TokenExists:
		exists := newNode(KindExistsExpr, p.take())
		if !p.curIs(TokenLParen) {
			return nil, p.errorf("expected ( after EXISTS")
		}
		sub, err := p.parseSubquery()
		if err != nil {
			return nil, err
		}
		exists.Append(sub)
		return exists, nil
	}
	return nil, p.errorf("unexpected token in expression")
}

func isLiteralKeyword(lit string) bool {
	switch strings.ToUpper(lit) {
	case "CURRENT_TIME", "CURRENT_DATE", "CURRENT_TIMESTAMP":
		return true
	}
	return false
}

// parseColumnRef parses [[database.]table.]column.
func (p *Parser) parseColumnRef() (*Node, *ParseError) {
	ref := newNode(KindColumnRef)
	var parts []*Node
	parts = append(parts, p.takeAs(KindToken, RoleName))
	ref.Append(parts[0])

	for len(parts) < 3 && p.curIs(TokenDot) {
		ref.Append(p.take())
		if !p.curIsName() {
			return nil, p.errorf("expected column name after dot")
		}
		part := p.takeAs(KindToken, RoleName)
		parts = append(parts, part)
		ref.Append(part)
	}

	switch len(parts) {
	case 2:
		parts[0].Role = RoleQualifier
	case 3:
		parts[0].Role = RoleDatabase
		parts[1].Role = RoleQualifier
	}
	return ref, nil
}

// parseFunctionCall parses name([DISTINCT] args | *).
func (p *Parser) parseFunctionCall() (*Node, *ParseError) {
	call := newNode(KindFunctionCall, p.takeAs(KindToken, RoleName), p.take())

	switch {
	case p.curIs(TokenRParen):
	case p.curIs(TokenStar):
		call.Append(p.take())
	default:
		if p.curIs(TokenDistinct) {
			call.Append(p.take())
		}
		if err := p.parseExpressionList(call); err != nil {
			return nil, err
		}
	}

	rp, err := p.expect(TokenRParen)
	if err != nil {
		return nil, err
	}
	call.Append(rp)
	return call, nil
}

// parseCase parses CASE [base] WHEN .. THEN .. [ELSE ..] END.
func (p *Parser) parseCase() (*Node, *ParseError) {
	c := newNode(KindCaseExpr, p.take())
	if !p.curIs(TokenWhen) {
		base, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		c.Append(base)
	}
	if !p.curIs(TokenWhen) {
		return nil, p.errorf("expected WHEN in CASE")
	}
	for p.curIs(TokenWhen) {
		c.Append(p.take())
		cond, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		c.Append(cond)
		then, err := p.expect(TokenThen)
		if err != nil {
			return nil, err
		}
		c.Append(then)
		result, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		c.Append(result)
	}
	if p.curIs(TokenElse) {
		c.Append(p.take())
		e, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		c.Append(e)
	}
	end, err := p.expect(TokenEnd)
	if err != nil {
		return nil, err
	}
	c.Append(end)
	return c, nil
}

// parseCast parses CAST(expr AS type-name).
func (p *Parser) parseCast() (*Node, *ParseError) {
	c := newNode(KindCastExpr, p.take())
	lp, err := p.expect(TokenLParen)
	if err != nil {
		return nil, err
	}
	c.Append(lp)
	expr, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	c.Append(expr)
	as, err := p.expect(TokenAs)
	if err != nil {
		return nil, err
	}
	c.Append(as)

	// Type name tokens, possibly with a parenthesized size.
	depth := 0
	for !(depth == 0 && p.curIs(TokenRParen)) {
		switch p.cur().Type {
		case TokenEOF, TokenSemicolon:
			return nil, p.errorf("unterminated CAST")
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
		}
		c.Append(p.take())
	}
	c.Append(p.take())
	return c, nil
}

// parseInfixExpression parses an infix expression.
func (p *Parser) parseInfixExpression(left *Node) (*Node, *ParseError) {
	switch p.cur().Type {
	case TokenEq, TokenEqEq, TokenNe:
		return p.parseBinaryExpression(KindEquivalenceExpr, left)
	case TokenLt, TokenGt, TokenLe, TokenGe:
		return p.parseBinaryExpression(KindComparisonExpr, left)
	case TokenAnd, TokenOr, TokenBitAnd, TokenBitOr, TokenShl, TokenShr,
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent, TokenConcat:
		return p.parseBinaryExpression(KindBinaryExpr, left)
	case TokenIs:
		return p.parseIsExpression(left)
	case TokenIsNull, TokenNotNull:
		return newNode(KindIsNullExpr, left, p.takeAs(KindToken, RoleOperator)), nil
	case TokenCollate:
		c := newNode(KindCollateExpr, left, p.takeAs(KindToken, RoleOperator))
		if !p.curIsName() && !p.curIs(TokenString) {
			return nil, p.errorf("expected collation name")
		}
		c.Append(p.take())
		return c, nil
	case TokenNot:
		not := p.takeAs(KindToken, RoleOperator)
		if p.curIs(TokenNull) {
			return newNode(KindIsNullExpr, left, not, p.takeAs(KindToken, RoleOperator)), nil
		}
		return p.parseNegatable(left, not)
	default:
		return p.parseNegatable(left, nil)
	}
}

// parseBinaryExpression parses left <op> right.
func (p *Parser) parseBinaryExpression(kind Kind, left *Node) (*Node, *ParseError) {
	precedence := p.getPrecedence()
	op := p.takeAs(KindToken, RoleOperator)

	right, err := p.parseExpression(precedence)
	if err != nil {
		return nil, err
	}
	return newNode(kind, left, op, right), nil
}

// parseIsExpression parses IS [NOT] expr, which SQLite treats as an
// equivalence operator.
func (p *Parser) parseIsExpression(left *Node) (*Node, *ParseError) {
	n := newNode(KindEquivalenceExpr, left, p.takeAs(KindToken, RoleOperator))
	if p.curIs(TokenNot) {
		n.Append(p.takeAs(KindToken, RoleOperator))
	}
	right, err := p.parseExpression(precEquivalence)
	if err != nil {
		return nil, err
	}
	n.Append(right)
	return n, nil
}

// parseNegatable parses the IN, LIKE-family and BETWEEN operators, optionally
// preceded by an already consumed NOT.
func (p *Parser) parseNegatable(left, not *Node) (*Node, *ParseError) {
	switch p.cur().Type {
	case TokenIn:
		return p.parseInExpression(left, not)
	case TokenLike, TokenGlob, TokenMatch, TokenRegexp:
		return p.parseLikeExpression(left, not)
	case TokenBetween:
		return p.parseBetweenExpression(left, not)
	default:
		return nil, p.errorf("expected IN, LIKE, or BETWEEN after NOT")
	}
}

// parseLikeExpression parses a LIKE/GLOB/MATCH/REGEXP expression.
func (p *Parser) parseLikeExpression(left, not *Node) (*Node, *ParseError) {
	n := newNode(KindLikeExpr, left, not, p.takeAs(KindToken, RoleOperator))

	pattern, err := p.parseExpression(precEquivalence)
	if err != nil {
		return nil, err
	}
	n.Append(pattern)

	if p.curIs(TokenEscape) {
		n.Append(p.take())
		esc, err := p.parseExpression(precEquivalence)
		if err != nil {
			return nil, err
		}
		n.Append(esc)
	}
	return n, nil
}

// parseInExpression parses [NOT] IN (list | select) or [NOT] IN table.
func (p *Parser) parseInExpression(left, not *Node) (*Node, *ParseError) {
	n := newNode(KindInExpr, left, not, p.takeAs(KindToken, RoleOperator))

	if !p.curIs(TokenLParen) {
		ref, err := p.parseTableRef(false)
		if err != nil {
			return nil, err
		}
		n.Append(ref)
		return n, nil
	}

	if p.peekIs(TokenSelect) || p.peekIs(TokenValues) {
		sub, err := p.parseSubquery()
		if err != nil {
			return nil, err
		}
		n.Append(sub)
		return n, nil
	}

	if p.peekIs(TokenRParen) {
		n.Append(newNode(KindParenExpr, p.take(), p.take()))
		return n, nil
	}

	list, err := p.parseParenList()
	if err != nil {
		return nil, err
	}
	n.Append(list)
	return n, nil
}

// parseBetweenExpression parses [NOT] BETWEEN low AND high.
func (p *Parser) parseBetweenExpression(left, not *Node) (*Node, *ParseError) {
	n := newNode(KindBetweenExpr, left, not, p.takeAs(KindToken, RoleOperator))

	low, err := p.parseExpression(precEquivalence)
	if err != nil {
		return nil, err
	}
	n.Append(low)

	and, err := p.expect(TokenAnd)
	if err != nil {
		return nil, err
	}
	n.Append(and)

	high, err := p.parseExpression(precEquivalence)
	if err != nil {
		return nil, err
	}
	n.Append(high)
	return n, nil
}
