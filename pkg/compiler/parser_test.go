package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse(src)
	require.NoError(t, err)
	return prog
}

func TestLiteralRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind Kind
	}{
		{"Integer", "42", I32},
		{"Zero", "0", I32},
		{"True", "true", Bool},
		{"False", "false", Bool},
		{"Char", "'x'", Char},
		{"Escaped Char", `'\n'`, Char},
		{"String", `"hello world"`, Str},
		{"Escaped String", `"tab\there"`, Str},
		{"Unit", "()", Unit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseExpression(tt.src)
			require.NoError(t, err)
			lit, ok := expr.(*Literal)
			require.True(t, ok, "expected *Literal, got %T", expr)
			assert.Equal(t, tt.kind, lit.Value.Kind)
			assert.Equal(t, tt.src, lit.String())

			again, err := ParseExpression(lit.String())
			require.NoError(t, err)
			assert.Equal(t, tt.src, again.String())
		})
	}
}

func TestParseExpressionShape(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"Right Associative Minus", "a - b - c", "(a - (b - c))"},
		{"Right Associative Division", "a / b / c", "(a / (b / c))"},
		{"Precedence", "1 + 2 * 3", "(1 + (2 * 3))"},
		{"Parentheses", "(1 + 2) * 3", "((1 + 2) * 3)"},
		{"Logical Chain", "a && b || c", "(a && (b || c))"},
		{"Not Over Comparison", "!a == b", "!(a == b)"},
		{"Comparison Of Sums", "a + 1 < b", "((a + 1) < b)"},
		{"Unary Minus", "-x * 2", "(-x * 2)"},
		{"Call", "f(1, g(x))", "f(1, g(x))"},
		{"Subscript", "a[i + 1]", "a[(i + 1)]"},
		{"Slice", "s[1..3]", "s[1..3]"},
		{"Inclusive Slice", "s[..=2]", "s[..=2]"},
		{"Open Slice", "s[2..]", "s[2..]"},
		{"Reference", "&x", "&x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseExpression(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.String())
		})
	}
}

func TestParseRightAssociativeTree(t *testing.T) {
	expr, err := ParseExpression("10 - 4 - 3")
	require.NoError(t, err)

	top, ok := expr.(*BinaryExp)
	require.True(t, ok)
	assert.Equal(t, MINUS, top.Op)
	assert.IsType(t, &Literal{}, top.Left)
	inner, ok := top.Right.(*BinaryExp)
	require.True(t, ok, "right operand nests the rest of the chain")
	assert.Equal(t, "(4 - 3)", inner.String())
}

func TestParseStatements(t *testing.T) {
	prog := mustParse(t, `
fn main() {
    let mut x: i32 = 1;
    let s = "hi";
    let a: [i32; 3] = [1, 2, 3];
    let b = [0; 4];
    x = 2;
    x += 3;
    a[0] = 7;
    a[1] -= 1;
    &r = 5;
    for i in 0..10 { }
    for j in 0..=10 { }
    while x < 3 { }
    println!("{} {}", x, s);
    f(x);
    break;
    return x;
}
`)
	require.Len(t, prog.Funs, 1)
	stmts := prog.Funs[0].Body.Stmts
	require.Len(t, stmts, 16)

	assert.IsType(t, &DecStmt{}, stmts[0])
	assert.True(t, stmts[0].(*DecStmt).Var.Mut)
	assert.Equal(t, I32, stmts[0].(*DecStmt).Var.Kind)

	assert.IsType(t, &ArrayExp{}, stmts[2].(*DecStmt).Init)
	assert.Equal(t, 3, stmts[2].(*DecStmt).Var.Size)
	assert.IsType(t, &UniformArrayExp{}, stmts[3].(*DecStmt).Init)

	assert.IsType(t, &AssignStmt{}, stmts[4])
	compound, ok := stmts[5].(*CompoundAssignStmt)
	require.True(t, ok)
	assert.Equal(t, PLUS, compound.Op)

	sub, ok := stmts[6].(*AssignStmt)
	require.True(t, ok)
	assert.IsType(t, &SubscriptExp{}, sub.Target)
	assert.IsType(t, &CompoundAssignStmt{}, stmts[7])

	ref, ok := stmts[8].(*AssignStmt)
	require.True(t, ok)
	assert.True(t, ref.Ref)

	assert.False(t, stmts[9].(*ForStmt).Inclusive)
	assert.True(t, stmts[10].(*ForStmt).Inclusive)
	assert.IsType(t, &WhileStmt{}, stmts[11])

	ps, ok := stmts[12].(*PrintStmt)
	require.True(t, ok)
	assert.Equal(t, "{} {}", ps.Format)
	assert.Len(t, ps.Args, 2)

	call, ok := stmts[13].(*ExpStmt)
	require.True(t, ok)
	assert.False(t, call.Yield)
	assert.IsType(t, &FunCall{}, call.X)

	assert.IsType(t, &BreakStmt{}, stmts[14])
	assert.IsType(t, &ReturnStmt{}, stmts[15])
}

func TestParseYieldedValues(t *testing.T) {
	prog := mustParse(t, `
fn pick(c: bool) -> i32 {
    let v = if c { 1 } else { 2 };
    let w = loop { break 3; };
    if c { v } else { w }
}
`)
	fn := prog.Funs[0]
	assert.Equal(t, typeI32, fn.Return)
	assert.Equal(t, "c", fn.Params[0].Name)

	stmts := fn.Body.Stmts
	require.Len(t, stmts, 3)
	ifExp, ok := stmts[0].(*DecStmt).Init.(*IfExp)
	require.True(t, ok)
	assert.True(t, ifExp.If.Body.Stmts[0].(*ExpStmt).Yield)
	assert.IsType(t, &LoopExp{}, stmts[1].(*DecStmt).Init)

	last, ok := stmts[2].(*ExpStmt)
	require.True(t, ok)
	assert.True(t, last.Yield, "a trailing if without ';' yields the block value")
	assert.IsType(t, &IfExp{}, last.X)
}

func TestParseIfStatementWithoutSemicolon(t *testing.T) {
	prog := mustParse(t, `
fn main() {
    if true { f(); } else if false { g(); } else { h(); }
    loop { break; }
    let x = 1;
}
`)
	stmts := prog.Funs[0].Body.Stmts
	require.Len(t, stmts, 3)
	first := stmts[0].(*ExpStmt)
	assert.False(t, first.Yield)
	ifExp := first.X.(*IfExp)
	assert.Len(t, ifExp.ElseIfs, 1)
	assert.NotNil(t, ifExp.Else)
	assert.Len(t, ifExp.Branches(), 2)
	assert.False(t, stmts[1].(*ExpStmt).Yield)
}

func TestParseFunctionSignatures(t *testing.T) {
	prog := mustParse(t, `
fn a() -> () { }
fn b(x: &i32, s: &str) { }
fn c() -> bool { true }
`)
	require.Len(t, prog.Funs, 3)
	assert.Equal(t, typeUnit, prog.Funs[0].Return)
	assert.Equal(t, Undefined, prog.Funs[1].Return.Kind)
	assert.True(t, prog.Funs[1].Params[0].Var.Ref)
	assert.Equal(t, Str, prog.Funs[1].Params[1].Var.Kind)
	assert.Equal(t, typeBool, prog.Funs[2].Return)
	assert.Equal(t, "fn b(x: &i32, s: &str) { }", prog.Funs[1].String())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		phase   Phase
		message string
	}{
		{"Missing Semicolon", "fn main() { let x = 1 }", PhaseParse, "expected SEMICOLON"},
		{"Missing Function", "let x = 1;", PhaseParse, "expected FN"},
		{"Empty Program", "", PhaseParse, "expected FN"},
		{"Unclosed Block", "fn main() { let x = 1;", PhaseParse, "expected '}'"},
		{"Bad Expression", "fn main() { let x = ; }", PhaseParse, "expected expression"},
		{"Huge Literal", "fn main() { let x = 9999999999; }", PhaseParse, "integer literal out of range"},
		{"Zero Array Size", "fn main() { let a: [i32; 0]; }", PhaseParse, "invalid array size"},
		{"Inclusive Slice Without End", "fn main() { let s = \"abc\"; let t = s[1..=]; }", PhaseParse, "inclusive slice of 's' requires an end bound"},
		{"Open Inclusive Slice", "fn main() { let s = \"abc\"; let t = s[..=]; }", PhaseParse, "inclusive slice of 's' requires an end bound"},
		{"Lexical Error Wins", "fn main() { let x = 1 | 2; }", PhaseLex, "invalid operator '|'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.phase, ce.Phase)
			assert.Contains(t, ce.Msg, tt.message)
		})
	}
}

func TestParseErrorSnippet(t *testing.T) {
	_, err := Parse("fn main() {\n    let x = 1\n}")
	require.Error(t, err)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.Line)
	assert.Equal(t, "}", ce.Snippet)
	assert.Contains(t, err.Error(), "\n  |> }")
}
