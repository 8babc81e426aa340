package compiler

import (
	"fmt"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"fn":     FN,
	"return": RETURN,
	"break":  BREAK,
	"let":    LET,
	"mut":    MUT,
	"for":    FOR,
	"in":     IN,
	"while":  WHILE,
	"loop":   LOOP,
	"if":     IF,
	"else":   ELSE,
	"true":   BOOLEAN,
	"false":  BOOLEAN,
	"i8":     TYPE,
	"i16":    TYPE,
	"i32":    TYPE,
	"i64":    TYPE,
	"bool":   TYPE,
	"char":   TYPE,
	"str":    TYPE,
}

// charEscapes lists the escapes accepted inside a character literal.
var charEscapes = map[rune]byte{
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'0':  0,
	'\\': '\\',
	'\'': '\'',
}

// Lexer produces tokens on demand. It always holds the current token, which
// gives the parser one token of lookahead; Snapshot and Restore let the
// parser back out of a speculative statement.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
	col  int // column of the next rune
	tok  Token
	err  error
}

// Snapshot captures everything needed to rewind the lexer.
type Snapshot struct {
	pos, line, col int
	tok            Token
	err            error
}

// NewLexer returns a lexer positioned on the first token of src.
func NewLexer(src string) *Lexer {
	l := &Lexer{src: []rune(src), line: 1, col: 1}
	l.scan()
	return l
}

// Peek returns the current token without consuming it.
func (l *Lexer) Peek() Token { return l.tok }

// Next consumes the current token and returns it.
func (l *Lexer) Next() Token {
	tok := l.tok
	if tok.Type != END && tok.Type != ILLEGAL {
		l.scan()
	}
	return tok
}

// Check reports whether the current token has type tt.
func (l *Lexer) Check(tt TokenType) bool { return l.tok.Type == tt }

// Match consumes the current token iff it has type tt.
func (l *Lexer) Match(tt TokenType) bool {
	if l.tok.Type != tt {
		return false
	}
	l.Next()
	return true
}

// EOF is true once the END token is current.
func (l *Lexer) EOF() bool { return l.tok.Type == END }

// Err returns the first lexical error, if any.
func (l *Lexer) Err() error { return l.err }

func (l *Lexer) Snapshot() Snapshot {
	return Snapshot{pos: l.pos, line: l.line, col: l.col, tok: l.tok, err: l.err}
}

func (l *Lexer) Restore(s Snapshot) {
	l.pos, l.line, l.col = s.pos, s.line, s.col
	l.tok, l.err = s.tok, s.err
}

// scan replaces the current token with the next one from the source. On a
// lexical error it records the error and parks on an ILLEGAL token.
func (l *Lexer) scan() {
	tok, err := l.nextToken()
	if err != nil {
		l.err = err
		tok = Token{Type: ILLEGAL, Lexeme: "", Line: l.line, Col: l.col}
	}
	l.tok = tok
}

// peekRune returns the rune at the current position without advancing.
func (l *Lexer) peekRune() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peekRune()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peekRune() != '\n' {
		l.advance()
	}
}

func (l *Lexer) errorf(line, col int, format string, args ...interface{}) error {
	return newError(PhaseLex, Pos{Line: line, Col: col}, format, args...)
}

// scanIdent collects a full identifier or keyword token.
// The first character (letter or '_') must still be at l.peekRune().
func (l *Lexer) scanIdent() Token {
	line, col := l.line, l.col
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peekRune()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	if lexeme == "println" && l.peekRune() == '!' {
		l.advance()
		return Token{Type: PRINT, Lexeme: "println!", Line: line, Col: col}
	}
	tt := ID
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line, Col: col}
}

// scanNumber collects a maximal run of decimal digits.
func (l *Lexer) scanNumber() Token {
	line, col := l.line, l.col
	start := l.pos
	for l.pos < len(l.src) && unicode.IsDigit(l.peekRune()) {
		l.advance()
	}
	return Token{Type: NUMBER, Lexeme: string(l.src[start:l.pos]), Line: line, Col: col}
}

// scanChar collects a character literal. The lexeme keeps the raw text
// between the quotes so that '\n' prints back unchanged.
func (l *Lexer) scanChar() (Token, error) {
	line, col := l.line, l.col
	l.advance() // consume opening '

	start := l.pos
	switch r := l.peekRune(); {
	case r == '\\':
		l.advance()
		if _, ok := charEscapes[l.peekRune()]; !ok {
			return Token{}, l.errorf(line, col, "invalid character literal")
		}
		l.advance()
	case r == '\'' || r == '\n' || r == 0:
		return Token{}, l.errorf(line, col, "invalid character literal")
	default:
		l.advance()
	}
	if l.peekRune() != '\'' {
		return Token{}, l.errorf(line, col, "invalid character literal")
	}
	raw := string(l.src[start:l.pos])
	l.advance() // consume closing '

	return Token{Type: CHAR, Lexeme: raw, Line: line, Col: col}, nil
}

// scanString collects a string literal, keeping escape sequences in their
// source form.
func (l *Lexer) scanString() (Token, error) {
	line, col := l.line, l.col
	l.advance() // consume opening "
	start := l.pos

	for l.pos < len(l.src) {
		r := l.peekRune()
		if r == '"' {
			raw := string(l.src[start:l.pos])
			l.advance() // consume closing "
			return Token{Type: STRING, Lexeme: raw, Line: line, Col: col}, nil
		}
		if r == '\\' {
			l.advance()
		}
		l.advance()
	}
	return Token{}, l.errorf(line, col, "unterminated string literal")
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.peekRune() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		break
	}

	line, col := l.line, l.col
	if l.pos >= len(l.src) {
		return Token{Type: END, Lexeme: "", Line: line, Col: col}, nil
	}

	ch := l.peekRune()
	if unicode.IsLetter(ch) || ch == '_' {
		return l.scanIdent(), nil
	}
	if unicode.IsDigit(ch) {
		return l.scanNumber(), nil
	}
	if ch == '"' {
		return l.scanString()
	}
	if ch == '\'' {
		return l.scanChar()
	}

	tok := func(tt TokenType, lexeme string) (Token, error) {
		return Token{Type: tt, Lexeme: lexeme, Line: line, Col: col}, nil
	}

	l.advance() // consume the character before the switch
	switch ch {
	case '{':
		return tok(LBRACE, "{")
	case '}':
		return tok(RBRACE, "}")
	case '(':
		return tok(LPAREN, "(")
	case ')':
		return tok(RPAREN, ")")
	case '[':
		return tok(LBRACKET, "[")
	case ']':
		return tok(RBRACKET, "]")
	case ';':
		return tok(SEMICOLON, ";")
	case ':':
		return tok(COLON, ":")
	case ',':
		return tok(COMMA, ",")
	case '.':
		if l.peekRune() == '.' {
			l.advance()
			if l.peekRune() == '=' {
				l.advance()
				return tok(RANGE_IN, "..=")
			}
			return tok(RANGE_EX, "..")
		}
	case '+':
		if l.peekRune() == '=' {
			l.advance()
			return tok(PLUS_ASSIGN, "+=")
		}
		return tok(PLUS, "+")
	case '-':
		if l.peekRune() == '>' {
			l.advance()
			return tok(ARROW, "->")
		}
		if l.peekRune() == '=' {
			l.advance()
			return tok(MINUS_ASSIGN, "-=")
		}
		return tok(MINUS, "-")
	case '*':
		if l.peekRune() == '=' {
			l.advance()
			return tok(TIMES_ASSIGN, "*=")
		}
		return tok(STAR, "*")
	case '/':
		if l.peekRune() == '=' {
			l.advance()
			return tok(DIV_ASSIGN, "/=")
		}
		return tok(SLASH, "/")
	case '&':
		if l.peekRune() == '&' {
			l.advance()
			return tok(LAND, "&&")
		}
		return tok(AMP, "&")
	case '|':
		if l.peekRune() == '|' {
			l.advance()
			return tok(LOR, "||")
		}
		return Token{}, l.errorf(line, col, "invalid operator '|'")
	case '!':
		if l.peekRune() == '=' {
			l.advance()
			return tok(NEQ, "!=")
		}
		return tok(NOT, "!")
	case '<':
		if l.peekRune() == '=' {
			l.advance()
			return tok(LE, "<=")
		}
		return tok(LT, "<")
	case '>':
		if l.peekRune() == '=' {
			l.advance()
			return tok(GE, ">=")
		}
		return tok(GT, ">")
	case '=':
		if l.peekRune() == '=' { // lookahead: distinguish = vs ==
			l.advance()
			return tok(EQ, "==")
		}
		return tok(ASSIGN, "=")
	}
	return Token{}, l.errorf(line, col, "unexpected character %q", ch)
}

// Lex tokenises src and returns all tokens including the final END token.
// It returns a non-nil error on the first lexical error.
func Lex(src string) ([]Token, error) {
	l := NewLexer(src)
	var tokens []Token
	for {
		if err := l.Err(); err != nil {
			return tokens, err
		}
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Type == END {
			return tokens, nil
		}
	}
}

// unescapeChar returns the byte value of a raw character literal.
func unescapeChar(raw string) (byte, error) {
	r := []rune(raw)
	switch {
	case len(r) == 1 && r[0] < 0x80:
		return byte(r[0]), nil
	case len(r) == 2 && r[0] == '\\':
		if b, ok := charEscapes[r[1]]; ok {
			return b, nil
		}
	}
	return 0, fmt.Errorf("invalid character literal '%s'", raw)
}
