package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parser pulls tokens from a Lexer on demand and builds an AST.
//
// Grammar:
//
//	program    = fun+ END
//	fun        = "fn" ID "(" (param ("," param)*)? ")" ("->" (TYPE | "(" ")"))? block
//	param      = ID ":" "&"? TYPE
//	block      = "{" stmt* "}"
//	stmt       = "let" "mut"? ID (":" annot)? ("=" rhs)? ";"
//	           | "for" ID "in" expression (".." | "..=") expression block
//	           | "while" expression block
//	           | ("if" | "loop") ... ";"?
//	           | "println!" "(" STRING ("," expression)* ")" ";"
//	           | "break" expression? ";"?
//	           | "return" expression? ";"?
//	           | "&" ID "=" rhs ";"
//	           | ID ("=" rhs | OP_ASSIGN expression) ";"
//	           | ID "[" expression "]" ("=" | OP_ASSIGN) expression ";"
//	           | expression (";" | before "}")
//	annot      = "&"? TYPE | "[" "&"? TYPE ";" NUMBER "]"
//	rhs        = "[" expression (";" expression | ("," expression)*) "]" | expression
//	expression = notExp (("&&" | "||") expression)?
//	notExp     = "!" notExp | relational
//	relational = arithmetic (("==" | "!=" | "<" | ">" | "<=" | ">=") arithmetic)?
//	arithmetic = term (("+" | "-") arithmetic)?
//	term       = refFactor (("*" | "/") term)?
//	refFactor  = "&" factor | factor
//	factor     = "(" ")" | "(" expression ")" | literal | "-" factor
//	           | ID | ID "(" args ")" | ID "[" expression "]"
//	           | ID "[" expression? (".." | "..=") expression? "]"
//	           | "if" expression block ("else" "if" expression block)* ("else" block)?
//	           | "loop" block
//
// Every binary level recurses on its right operand, so operators group to
// the right: a - b - c parses as a - (b - c).
type Parser struct {
	lx          *Lexer
	sourceLines []string
}

func NewParser(lx *Lexer, rawSource string) *Parser {
	return &Parser{lx: lx, sourceLines: strings.Split(rawSource, "\n")}
}

// fmtError wraps an error message with the source line where the token
// appears. A pending lexical error always wins, since the parser only ever
// stalls on the ILLEGAL token it leaves behind.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	if err := p.lx.Err(); err != nil {
		return err
	}
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1 // Lines are 1-based

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}
	return &CompileError{Phase: PhaseParse, Line: tok.Line, Col: tok.Col, Msg: msg, Snippet: snippet}
}

// unexpected reports the current token as the culprit.
func (p *Parser) unexpected(what string) error {
	tok := p.lx.Peek()
	return p.fmtError(tok, "expected %s, got %s (%q)", what, tok.Type, tok.Lexeme)
}

func (p *Parser) peek() Token              { return p.lx.Peek() }
func (p *Parser) check(tt TokenType) bool { return p.lx.Check(tt) }
func (p *Parser) match(tt TokenType) bool { return p.lx.Match(tt) }
func (p *Parser) advance() Token          { return p.lx.Next() }

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	if !p.check(tt) {
		return p.peek(), p.unexpected(tt.String())
	}
	return p.advance(), nil
}

// endStmt accepts the terminating ';' of a statement that may also close
// its block without one.
func (p *Parser) endStmt() error {
	if p.match(SEMICOLON) || p.check(RBRACE) {
		return nil
	}
	return p.unexpected("';'")
}

// parseProgram parses one or more functions up to END.
func (p *Parser) parseProgram() (*Program, error) {
	prog := &Program{}
	for {
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		prog.Funs = append(prog.Funs, fn)
		if p.lx.EOF() {
			return prog, nil
		}
	}
}

func (p *Parser) parseFunction() (*Fun, error) {
	start, err := p.expect(FN)
	if err != nil {
		return nil, err
	}
	name, err := p.expect(ID)
	if err != nil {
		return nil, err
	}
	fn := &Fun{Pos: start.Pos(), Name: name.Lexeme}

	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	if !p.check(RPAREN) {
		for {
			param, err := p.parseParameter()
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, param)
			if !p.match(COMMA) {
				break
			}
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	if p.match(ARROW) {
		if p.match(LPAREN) {
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			fn.Return = typeUnit
		} else {
			kind, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			fn.Return = Type{Kind: kind}
		}
	}

	fn.Body, err = p.parseBlock()
	if err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *Parser) parseParameter() (*Param, error) {
	name, err := p.expect(ID)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	param := &Param{Pos: name.Pos(), Name: name.Lexeme}
	param.Var.Ref = p.match(AMP)
	param.Var.Kind, err = p.parseTypeName()
	if err != nil {
		return nil, err
	}
	param.Var.Initialized = true
	return param, nil
}

// parseTypeName consumes a TYPE token and returns its Kind.
func (p *Parser) parseTypeName() (Kind, error) {
	tok, err := p.expect(TYPE)
	if err != nil {
		return Undefined, err
	}
	kind, ok := kindFromName(tok.Lexeme)
	if !ok {
		return Undefined, p.fmtError(tok, "unknown type %q", tok.Lexeme)
	}
	return kind, nil
}

func (p *Parser) parseBlock() (*Block, error) {
	open, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	block := &Block{Pos: open.Pos()}
	for !p.check(RBRACE) {
		if p.lx.EOF() {
			return nil, p.unexpected("'}'")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	p.advance() // }
	return block, nil
}

func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	pos := tok.Pos()

	switch tok.Type {
	case LET:
		return p.parseDeclaration()
	case FOR:
		return p.parseFor()
	case WHILE:
		p.advance()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Pos: pos, Cond: cond, Body: body}, nil
	case IF, LOOP:
		x, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		if p.match(SEMICOLON) {
			return &ExpStmt{Pos: pos, X: x}, nil
		}
		return &ExpStmt{Pos: pos, X: x, Yield: p.check(RBRACE)}, nil
	case PRINT:
		return p.parsePrint()
	case BREAK:
		p.advance()
		stmt := &BreakStmt{Pos: pos}
		if p.match(SEMICOLON) || p.check(RBRACE) {
			return stmt, nil
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Value = value
		return stmt, p.endStmt()
	case RETURN:
		p.advance()
		stmt := &ReturnStmt{Pos: pos}
		if p.match(SEMICOLON) || p.check(RBRACE) {
			return stmt, nil
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Value = value
		return stmt, p.endStmt()
	case AMP:
		p.advance()
		name, err := p.expect(ID)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(ASSIGN); err != nil {
			return nil, err
		}
		rhs, err := p.parseRhs()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		target := &Variable{Pos: name.Pos(), Name: name.Lexeme}
		return &AssignStmt{Pos: pos, Target: target, Value: rhs, Ref: true}, nil
	case ID:
		stmt, err := p.tryAssignment()
		if err != nil || stmt != nil {
			return stmt, err
		}
	}

	x, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.match(SEMICOLON) {
		return &ExpStmt{Pos: pos, X: x}, nil
	}
	if p.check(RBRACE) {
		return &ExpStmt{Pos: pos, X: x, Yield: true}, nil
	}
	return nil, p.unexpected("';' or '}' after expression")
}

// tryAssignment parses an assignment that starts with an identifier. When no
// assignment operator follows it rewinds the lexer and returns (nil, nil) so
// the caller can parse an expression statement instead.
func (p *Parser) tryAssignment() (Stmt, error) {
	snapshot := p.lx.Snapshot()
	name := p.advance()
	pos := name.Pos()
	var target Expr = &Variable{Pos: pos, Name: name.Lexeme}

	if p.match(LBRACKET) {
		index, err := p.parseExpression()
		if err != nil || !p.match(RBRACKET) {
			// a slice or malformed subscript; let the expression parser report it
			p.lx.Restore(snapshot)
			return nil, nil
		}
		target = &SubscriptExp{Pos: pos, Name: name.Lexeme, Index: index}
		if _, compound := compoundOps[p.peek().Type]; !compound && !p.check(ASSIGN) {
			p.lx.Restore(snapshot)
			return nil, nil
		}
	}

	if p.match(ASSIGN) {
		var rhs Expr
		var err error
		if _, ok := target.(*Variable); ok {
			rhs, err = p.parseRhs()
		} else {
			rhs, err = p.parseExpression()
		}
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &AssignStmt{Pos: pos, Target: target, Value: rhs}, nil
	}

	if op, ok := compoundOps[p.peek().Type]; ok {
		p.advance()
		rhs, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &CompoundAssignStmt{Pos: pos, Op: op, Target: target, Value: rhs}, nil
	}

	p.lx.Restore(snapshot)
	return nil, nil
}

func (p *Parser) parseDeclaration() (Stmt, error) {
	start := p.advance() // let
	decl := &DecStmt{Pos: start.Pos(), Var: &Value{}}
	decl.Var.Mut = p.match(MUT)

	name, err := p.expect(ID)
	if err != nil {
		return nil, err
	}
	decl.Name = name.Lexeme

	if p.match(COLON) {
		if err := p.parseAnnotation(decl.Var); err != nil {
			return nil, err
		}
	}
	if p.match(SEMICOLON) {
		return decl, nil
	}
	if _, err := p.expect(ASSIGN); err != nil {
		return nil, err
	}
	decl.Init, err = p.parseRhs()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseAnnotation reads "&"? TYPE or "[" "&"? TYPE ";" NUMBER "]" into v.
func (p *Parser) parseAnnotation(v *Value) error {
	array := p.match(LBRACKET)
	v.Ref = p.match(AMP)
	kind, err := p.parseTypeName()
	if err != nil {
		return err
	}
	v.Kind = kind
	if !array {
		return nil
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return err
	}
	sizeTok, err := p.expect(NUMBER)
	if err != nil {
		return err
	}
	size, err := strconv.Atoi(sizeTok.Lexeme)
	if err != nil || size <= 0 {
		return p.fmtError(sizeTok, "invalid array size %s", sizeTok.Lexeme)
	}
	v.Size = size
	_, err = p.expect(RBRACKET)
	return err
}

// parseRhs parses the right-hand side of a binding, which may also be an
// array literal or a uniform array.
func (p *Parser) parseRhs() (Expr, error) {
	if !p.check(LBRACKET) {
		return p.parseExpression()
	}
	pos := p.advance().Pos()
	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.match(SEMICOLON) {
		size, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		return &UniformArrayExp{Pos: pos, Value: first, Size: size}, nil
	}
	arr := &ArrayExp{Pos: pos, Elements: []Expr{first}}
	for p.match(COMMA) {
		el, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, el)
	}
	if _, err := p.expect(RBRACKET); err != nil {
		return nil, err
	}
	return arr, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	start := p.advance() // for
	name, err := p.expect(ID)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(IN); err != nil {
		return nil, err
	}
	stmt := &ForStmt{Pos: start.Pos(), Var: name.Lexeme}
	if stmt.Start, err = p.parseExpression(); err != nil {
		return nil, err
	}
	switch {
	case p.match(RANGE_EX):
	case p.match(RANGE_IN):
		stmt.Inclusive = true
	default:
		return nil, p.unexpected("'..' or '..=' in for")
	}
	if stmt.End, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if stmt.Body, err = p.parseBlock(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parsePrint() (Stmt, error) {
	start := p.advance() // println!
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	format, err := p.expect(STRING)
	if err != nil {
		return nil, err
	}
	stmt := &PrintStmt{Pos: start.Pos(), Format: format.Lexeme}
	for p.match(COMMA) {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Args = append(stmt.Args, arg)
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseExpression handles && and || (right-recursive).
func (p *Parser) parseExpression() (Expr, error) {
	pos := p.peek().Pos()
	expr, err := p.parseNotExp()
	if err != nil {
		return nil, err
	}
	if p.check(LAND) || p.check(LOR) {
		op := p.advance().Type
		right, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExp{Pos: pos, Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseNotExp handles prefix !
func (p *Parser) parseNotExp() (Expr, error) {
	if p.check(NOT) {
		pos := p.advance().Pos()
		operand, err := p.parseNotExp()
		if err != nil {
			return nil, err
		}
		return &UnaryExp{Pos: pos, Op: NOT, Operand: operand}, nil
	}
	return p.parseRelational()
}

// parseRelational handles a single comparison; comparisons do not chain.
func (p *Parser) parseRelational() (Expr, error) {
	pos := p.peek().Pos()
	expr, err := p.parseArithmetic()
	if err != nil {
		return nil, err
	}
	switch p.peek().Type {
	case EQ, NEQ, LT, GT, LE, GE:
		op := p.advance().Type
		right, err := p.parseArithmetic()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExp{Pos: pos, Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseArithmetic handles + and -
func (p *Parser) parseArithmetic() (Expr, error) {
	pos := p.peek().Pos()
	expr, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if p.check(PLUS) || p.check(MINUS) {
		op := p.advance().Type
		right, err := p.parseArithmetic()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExp{Pos: pos, Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseTerm handles * and /
func (p *Parser) parseTerm() (Expr, error) {
	pos := p.peek().Pos()
	expr, err := p.parseRefFactor()
	if err != nil {
		return nil, err
	}
	if p.check(STAR) || p.check(SLASH) {
		op := p.advance().Type
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExp{Pos: pos, Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseRefFactor handles prefix &
func (p *Parser) parseRefFactor() (Expr, error) {
	if p.check(AMP) {
		pos := p.advance().Pos()
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &ReferenceExp{Pos: pos, Operand: operand}, nil
	}
	return p.parseFactor()
}

func (p *Parser) parseFactor() (Expr, error) {
	tok := p.peek()
	pos := tok.Pos()

	switch tok.Type {
	case LPAREN:
		p.advance()
		if p.match(RPAREN) {
			return &Literal{Pos: pos, Value: Value{Type: typeUnit}}, nil
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	case NUMBER, BOOLEAN, CHAR, STRING:
		return p.parseLiteral()
	case MINUS:
		p.advance()
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &UnaryExp{Pos: pos, Op: MINUS, Operand: operand}, nil
	case ID:
		return p.parseIdentifier()
	case IF:
		return p.parseIf()
	case LOOP:
		p.advance()
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &LoopExp{Pos: pos, Body: body}, nil
	}
	return nil, p.unexpected("expression")
}

// parseLiteral turns the current literal token into a Literal node.
func (p *Parser) parseLiteral() (Expr, error) {
	tok := p.advance()
	lit := &Literal{Pos: tok.Pos(), Value: Value{Initialized: true}}
	switch tok.Type {
	case NUMBER:
		n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil || n > math.MaxInt32 {
			return nil, p.fmtError(tok, "integer literal out of range: %s", tok.Lexeme)
		}
		lit.Value.Type = typeI32
		lit.Value.Int = n
	case BOOLEAN:
		lit.Value.Type = typeBool
		if tok.Lexeme == "true" {
			lit.Value.Int = 1
		}
	case CHAR:
		b, err := unescapeChar(tok.Lexeme)
		if err != nil {
			return nil, p.fmtError(tok, "%v", err)
		}
		lit.Value.Type = typeChar
		lit.Value.Int = int64(b)
		lit.Value.Text = tok.Lexeme
	case STRING:
		lit.Value.Type = typeStr
		lit.Value.Text = tok.Lexeme
	}
	return lit, nil
}

// parseIdentifier disambiguates a variable, call, subscript or slice by the
// token that follows the name.
func (p *Parser) parseIdentifier() (Expr, error) {
	name := p.advance()
	pos := name.Pos()

	switch {
	case p.match(LPAREN):
		call := &FunCall{Pos: pos, Name: name.Lexeme}
		if !p.check(RPAREN) {
			for {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
				if !p.match(COMMA) {
					break
				}
			}
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return call, nil

	case p.match(LBRACKET):
		var start Expr
		if !p.check(RANGE_EX) && !p.check(RANGE_IN) {
			var err error
			if start, err = p.parseExpression(); err != nil {
				return nil, err
			}
			if p.match(RBRACKET) {
				return &SubscriptExp{Pos: pos, Name: name.Lexeme, Index: start}, nil
			}
		}
		slice := &SliceExp{Pos: pos, Name: name.Lexeme, Start: start}
		switch {
		case p.match(RANGE_EX):
		case p.match(RANGE_IN):
			slice.Inclusive = true
			if p.check(RBRACKET) {
				return nil, p.fmtError(p.peek(), "inclusive slice of '%s' requires an end bound", slice.Name)
			}
		default:
			return nil, p.unexpected("']' or range")
		}
		if !p.check(RBRACKET) {
			end, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			slice.End = end
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		return slice, nil
	}
	return &Variable{Pos: pos, Name: name.Lexeme}, nil
}

func (p *Parser) parseIf() (Expr, error) {
	pos := p.advance().Pos() // if
	ifExp := &IfExp{Pos: pos}
	branch, err := p.parseBranch()
	if err != nil {
		return nil, err
	}
	ifExp.If = branch
	for p.match(ELSE) {
		if p.match(IF) {
			branch, err := p.parseBranch()
			if err != nil {
				return nil, err
			}
			ifExp.ElseIfs = append(ifExp.ElseIfs, branch)
			continue
		}
		if ifExp.Else, err = p.parseBlock(); err != nil {
			return nil, err
		}
		break
	}
	return ifExp, nil
}

func (p *Parser) parseBranch() (*Branch, error) {
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &Branch{Cond: cond, Body: body}, nil
}

// Parse builds the AST for src. The first lexical or syntax error aborts.
func Parse(src string) (*Program, error) {
	p := NewParser(NewLexer(src), src)
	if err := p.lx.Err(); err != nil {
		return nil, err
	}
	return p.parseProgram()
}

// ParseExpression parses a standalone expression.
func ParseExpression(src string) (Expr, error) {
	p := NewParser(NewLexer(src), src)
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.lx.EOF() {
		return nil, p.unexpected("end of input")
	}
	return expr, nil
}
