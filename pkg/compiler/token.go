package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	END     TokenType = iota // sentinel: end of input
	ILLEGAL                  // produced once after a lexical error

	// Literals
	ID      // variable / function name
	NUMBER  // decimal integer literal
	STRING  // string literal "..."
	CHAR    // character literal 'c'
	BOOLEAN // true / false
	TYPE    // i8 i16 i32 i64 bool char str

	// Keywords
	FN     // "fn"
	RETURN // "return"
	BREAK  // "break"
	LET    // "let"
	MUT    // "mut"
	FOR    // "for"
	IN     // "in"
	WHILE  // "while"
	LOOP   // "loop"
	IF     // "if"
	ELSE   // "else"
	PRINT  // "println!"

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	SEMICOLON // ;
	COLON     // :
	COMMA     // ,
	ARROW     // ->
	AMP       // & (reference)
	RANGE_EX  // ..
	RANGE_IN  // ..=

	// Assignment (order matters: ASSIGN before EQ)
	ASSIGN       // =
	PLUS_ASSIGN  // +=
	MINUS_ASSIGN // -=
	TIMES_ASSIGN // *=
	DIV_ASSIGN   // /=

	// Logical operators
	LAND // &&
	LOR  // ||
	NOT  // !

	// Relational operators
	EQ  // ==
	NEQ // !=
	LT  // <
	GT  // >
	LE  // <=
	GE  // >=

	// Arithmetic operators
	PLUS  // +
	MINUS // -
	STAR  // *
	SLASH // /
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	END:          "END",
	ILLEGAL:      "ILLEGAL",
	ID:           "ID",
	NUMBER:       "NUMBER",
	STRING:       "STRING",
	CHAR:         "CHAR",
	BOOLEAN:      "BOOLEAN",
	TYPE:         "TYPE",
	FN:           "FN",
	RETURN:       "RETURN",
	BREAK:        "BREAK",
	LET:          "LET",
	MUT:          "MUT",
	FOR:          "FOR",
	IN:           "IN",
	WHILE:        "WHILE",
	LOOP:         "LOOP",
	IF:           "IF",
	ELSE:         "ELSE",
	PRINT:        "PRINT",
	LBRACE:       "LBRACE",
	RBRACE:       "RBRACE",
	LPAREN:       "LPAREN",
	RPAREN:       "RPAREN",
	LBRACKET:     "LBRACKET",
	RBRACKET:     "RBRACKET",
	SEMICOLON:    "SEMICOLON",
	COLON:        "COLON",
	COMMA:        "COMMA",
	ARROW:        "ARROW",
	AMP:          "AMP",
	RANGE_EX:     "RANGE_EX",
	RANGE_IN:     "RANGE_IN",
	ASSIGN:       "ASSIGN",
	PLUS_ASSIGN:  "PLUS_ASSIGN",
	MINUS_ASSIGN: "MINUS_ASSIGN",
	TIMES_ASSIGN: "TIMES_ASSIGN",
	DIV_ASSIGN:   "DIV_ASSIGN",
	LAND:         "LAND",
	LOR:          "LOR",
	NOT:          "NOT",
	EQ:           "EQ",
	NEQ:          "NEQ",
	LT:           "LT",
	GT:           "GT",
	LE:           "LE",
	GE:           "GE",
	PLUS:         "PLUS",
	MINUS:        "MINUS",
	STAR:         "STAR",
	SLASH:        "SLASH",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// operatorText is the source spelling of every operator that can appear in
// an expression or compound assignment.
var operatorText = map[TokenType]string{
	LAND:  "&&",
	LOR:   "||",
	NOT:   "!",
	EQ:    "==",
	NEQ:   "!=",
	LT:    "<",
	GT:    ">",
	LE:    "<=",
	GE:    ">=",
	PLUS:  "+",
	MINUS: "-",
	STAR:  "*",
	SLASH: "/",
	AMP:   "&",
}

// compoundOps maps a compound assignment token to its arithmetic operator.
var compoundOps = map[TokenType]TokenType{
	PLUS_ASSIGN:  PLUS,
	MINUS_ASSIGN: MINUS,
	TIMES_ASSIGN: STAR,
	DIV_ASSIGN:   SLASH,
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
	Col    int    // 1-based column of the first rune
}

func (t Token) String() string {
	return fmt.Sprintf("%-12s %-14q  %d:%d", t.Type, t.Lexeme, t.Line, t.Col)
}

// Pos returns the token's source position.
func (t Token) Pos() Pos {
	return Pos{Line: t.Line, Col: t.Col}
}
