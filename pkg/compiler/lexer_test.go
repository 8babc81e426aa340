package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(toks []Token) []TokenType {
	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	return types
}

func TestLex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []TokenType
	}{
		{
			name:     "Empty",
			input:    "",
			expected: []TokenType{END},
		},
		{
			name:  "Delimiters",
			input: "{ } ( ) [ ] ; : , ->",
			expected: []TokenType{
				LBRACE, RBRACE, LPAREN, RPAREN, LBRACKET, RBRACKET,
				SEMICOLON, COLON, COMMA, ARROW, END,
			},
		},
		{
			name:  "Longest Match",
			input: "..= .. == = != ! <= < >= > && & || += -= *= /=",
			expected: []TokenType{
				RANGE_IN, RANGE_EX, EQ, ASSIGN, NEQ, NOT, LE, LT, GE, GT,
				LAND, AMP, LOR, PLUS_ASSIGN, MINUS_ASSIGN, TIMES_ASSIGN, DIV_ASSIGN, END,
			},
		},
		{
			name:  "Keywords and Identifiers",
			input: "fn let mut for in while loop if else break return foo _bar x1",
			expected: []TokenType{
				FN, LET, MUT, FOR, IN, WHILE, LOOP, IF, ELSE, BREAK, RETURN,
				ID, ID, ID, END,
			},
		},
		{
			name:     "Types and Booleans",
			input:    "i8 i16 i32 i64 bool char str true false",
			expected: []TokenType{TYPE, TYPE, TYPE, TYPE, TYPE, TYPE, TYPE, BOOLEAN, BOOLEAN, END},
		},
		{
			name:     "Print Macro",
			input:    `println!("hi")`,
			expected: []TokenType{PRINT, LPAREN, STRING, RPAREN, END},
		},
		{
			name:     "Unary Minus Is Separate",
			input:    "-12",
			expected: []TokenType{MINUS, NUMBER, END},
		},
		{
			name:     "Comments Are Skipped",
			input:    "x // trailing comment\n// whole line\ny",
			expected: []TokenType{ID, ID, END},
		},
		{
			name:     "Range Without Spaces",
			input:    "0..10",
			expected: []TokenType{NUMBER, RANGE_EX, NUMBER, END},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Lex(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tokenTypes(toks))
		})
	}
}

func TestLexLexemesAndPositions(t *testing.T) {
	toks, err := Lex("let x = 'a';\n  \"s\\\"q\"")
	require.NoError(t, err)

	assert.Equal(t, Token{Type: LET, Lexeme: "let", Line: 1, Col: 1}, toks[0])
	assert.Equal(t, Token{Type: ID, Lexeme: "x", Line: 1, Col: 5}, toks[1])
	assert.Equal(t, Token{Type: CHAR, Lexeme: "a", Line: 1, Col: 9}, toks[3])
	// escapes stay in source form
	assert.Equal(t, Token{Type: STRING, Lexeme: `s\"q`, Line: 2, Col: 3}, toks[5])
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
		line    int
		col     int
	}{
		{"Unterminated String", `let s = "abc`, "unterminated string literal", 1, 9},
		{"Single Pipe", "a | b", "invalid operator '|'", 1, 3},
		{"Unknown Character", "let x = 1 @ 2;", "unexpected character '@'", 1, 11},
		{"Empty Char", "''", "invalid character literal", 1, 1},
		{"Bad Escape", `'\q'`, "invalid character literal", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.input)
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, PhaseLex, ce.Phase)
			assert.Equal(t, tt.message, ce.Msg)
			assert.Equal(t, tt.line, ce.Line)
			assert.Equal(t, tt.col, ce.Col)
		})
	}
}

func TestLexerSnapshotRestore(t *testing.T) {
	l := NewLexer("a = b;")
	snap := l.Snapshot()

	assert.Equal(t, ID, l.Next().Type)
	assert.True(t, l.Match(ASSIGN))
	assert.True(t, l.Check(ID))

	l.Restore(snap)
	tok := l.Peek()
	assert.Equal(t, "a", tok.Lexeme)
	assert.Equal(t, 1, tok.Col)

	// the restored lexer produces the same stream again
	var types []TokenType
	for !l.EOF() {
		types = append(types, l.Next().Type)
	}
	assert.Equal(t, []TokenType{ID, ASSIGN, ID, SEMICOLON}, types)
	assert.Equal(t, END, l.Next().Type, "END is sticky")
}

func TestUnescapeChar(t *testing.T) {
	tests := []struct {
		raw  string
		want byte
	}{
		{"a", 'a'},
		{`\n`, '\n'},
		{`\t`, '\t'},
		{`\0`, 0},
		{`\\`, '\\'},
		{`\'`, '\''},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := unescapeChar(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := unescapeChar("ab")
	assert.Error(t, err)
}
