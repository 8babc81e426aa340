package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// Position lets every node report where it came from.
func (p Pos) Position() Pos { return p }

// typed holds the type written by the type checker.
type typed struct {
	T Type
}

func (t *typed) TypeOf() Type     { return t.T }
func (t *typed) setType(ty Type) { t.T = ty }

// Node is implemented by every expression, statement and block.
type Node interface {
	Position() Pos
	TypeOf() Type
	setType(Type)
	String() string
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
// genExpr always leaves the result in the accumulator.
type Expr interface {
	Node
	exprNode()
}

// Literal is a constant of any scalar kind.
//
//	let x = 10;
//	        ^^  Literal{Value: {Kind: I32, Int: 10}}
type Literal struct {
	Pos
	typed
	Value Value
}

func (*Literal) exprNode() {}
func (l *Literal) String() string {
	switch l.Value.Kind {
	case Bool:
		return strconv.FormatBool(l.Value.Int != 0)
	case Char:
		return "'" + l.Value.Text + "'"
	case Str:
		return `"` + l.Value.Text + `"`
	case Unit:
		return "()"
	}
	return strconv.FormatInt(l.Value.Int, 10)
}

// Variable is a read of a named binding.
//
//	return x;
//	       ^  Variable{Name: "x"}
type Variable struct {
	Pos
	typed
	Name string
}

func (*Variable) exprNode()        {}
func (v *Variable) String() string { return v.Name }

// BinaryExp represents Left Op Right. The parser nests the right operand, so
// a - b - c is BinaryExp{a, -, BinaryExp{b, -, c}}.
type BinaryExp struct {
	Pos
	typed
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*BinaryExp) exprNode() {}
func (b *BinaryExp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, operatorText[b.Op], b.Right)
}

// UnaryExp represents !x or -x.
type UnaryExp struct {
	Pos
	typed
	Op      TokenType
	Operand Expr
}

func (*UnaryExp) exprNode() {}
func (u *UnaryExp) String() string {
	return fmt.Sprintf("%s%s", operatorText[u.Op], u.Operand)
}

// FunCall represents name(args).
type FunCall struct {
	Pos
	typed
	Name string
	Args []Expr
}

func (*FunCall) exprNode() {}
func (c *FunCall) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, joinExprs(c.Args))
}

// Branch is one guarded arm of an if expression.
type Branch struct {
	Cond Expr
	Body *Block
}

// IfExp is an if / else if / else chain used as an expression.
//
//	if a { 1 } else if b { 2 } else { 3 }
//	   ^^^^^^^      ^^^^^^^^^^^^      ^^^^^
//	   If           ElseIfs[0]        Else
type IfExp struct {
	Pos
	typed
	If      *Branch
	ElseIfs []*Branch
	Else    *Block // nil when absent
}

// Branches returns the guarded arms in source order.
func (e *IfExp) Branches() []*Branch {
	return append([]*Branch{e.If}, e.ElseIfs...)
}

func (*IfExp) exprNode() {}
func (e *IfExp) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "if %s %s", e.If.Cond, e.If.Body)
	for _, br := range e.ElseIfs {
		fmt.Fprintf(&sb, " else if %s %s", br.Cond, br.Body)
	}
	if e.Else != nil {
		fmt.Fprintf(&sb, " else %s", e.Else)
	}
	return sb.String()
}

// LoopExp is an unconditional loop; break values become its value.
type LoopExp struct {
	Pos
	typed
	Body *Block
}

func (*LoopExp) exprNode()        {}
func (e *LoopExp) String() string { return "loop " + e.Body.String() }

// SubscriptExp represents name[Index].
type SubscriptExp struct {
	Pos
	typed
	Name  string
	Index Expr
}

func (*SubscriptExp) exprNode() {}
func (s *SubscriptExp) String() string {
	return fmt.Sprintf("%s[%s]", s.Name, s.Index)
}

// SliceExp represents name[Start..End] with either bound optional.
type SliceExp struct {
	Pos
	typed
	Name      string
	Start     Expr // nil when omitted
	End       Expr // nil when omitted
	Inclusive bool
}

func (*SliceExp) exprNode() {}
func (s *SliceExp) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name + "[")
	if s.Start != nil {
		sb.WriteString(s.Start.String())
	}
	sb.WriteString("..")
	if s.Inclusive {
		sb.WriteString("=")
	}
	if s.End != nil {
		sb.WriteString(s.End.String())
	}
	sb.WriteString("]")
	return sb.String()
}

// ReferenceExp represents &Operand.
type ReferenceExp struct {
	Pos
	typed
	Operand Expr
}

func (*ReferenceExp) exprNode()        {}
func (r *ReferenceExp) String() string { return "&" + r.Operand.String() }

// ArrayExp is an array literal [a, b, c].
type ArrayExp struct {
	Pos
	typed
	Elements []Expr
}

func (*ArrayExp) exprNode()        {}
func (a *ArrayExp) String() string { return "[" + joinExprs(a.Elements) + "]" }

// UniformArrayExp is [Value; Size], Size copies of one value.
type UniformArrayExp struct {
	Pos
	typed
	Value Expr
	Size  Expr
}

func (*UniformArrayExp) exprNode() {}
func (u *UniformArrayExp) String() string {
	return fmt.Sprintf("[%s; %s]", u.Value, u.Size)
}

//  Statement nodes

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

// DecStmt is a let binding. Var is the declared descriptor; the type checker
// back-fills it in place when the type is inferred.
//
//	let mut x: i32 = 0;
//	    ^^^^^^^^^^   Var{Mut: true, Kind: I32}
type DecStmt struct {
	Pos
	typed
	Name string
	Var  *Value
	Init Expr // nil when declared without initializer
}

func (*DecStmt) stmtNode() {}
func (d *DecStmt) String() string {
	var sb strings.Builder
	sb.WriteString("let ")
	if d.Var.Mut {
		sb.WriteString("mut ")
	}
	sb.WriteString(d.Name)
	if d.Var.Kind != Undefined {
		sb.WriteString(": " + d.Var.annotation())
	}
	if d.Init != nil {
		sb.WriteString(" = " + d.Init.String())
	}
	sb.WriteString(";")
	return sb.String()
}

// AssignStmt is Target = Value. Ref marks the &r = v form, which stores
// through the reference r.
type AssignStmt struct {
	Pos
	typed
	Target Expr // *Variable or *SubscriptExp
	Value  Expr
	Ref    bool
}

func (*AssignStmt) stmtNode() {}
func (a *AssignStmt) String() string {
	prefix := ""
	if a.Ref {
		prefix = "&"
	}
	return fmt.Sprintf("%s%s = %s;", prefix, a.Target, a.Value)
}

// CompoundAssignStmt is Target Op= Value; Op is the arithmetic operator.
type CompoundAssignStmt struct {
	Pos
	typed
	Op     TokenType
	Target Expr
	Value  Expr
}

func (*CompoundAssignStmt) stmtNode() {}
func (c *CompoundAssignStmt) String() string {
	return fmt.Sprintf("%s %s= %s;", c.Target, operatorText[c.Op], c.Value)
}

// ForStmt is for Var in Start..End (or ..=End when Inclusive).
type ForStmt struct {
	Pos
	typed
	Var       string
	Start     Expr
	End       Expr
	Inclusive bool
	Body      *Block
}

func (*ForStmt) stmtNode() {}
func (f *ForStmt) String() string {
	rng := ".."
	if f.Inclusive {
		rng = "..="
	}
	return fmt.Sprintf("for %s in %s%s%s %s", f.Var, f.Start, rng, f.End, f.Body)
}

// WhileStmt is while Cond { Body }.
type WhileStmt struct {
	Pos
	typed
	Cond Expr
	Body *Block
}

func (*WhileStmt) stmtNode() {}
func (w *WhileStmt) String() string {
	return fmt.Sprintf("while %s %s", w.Cond, w.Body)
}

// PrintStmt is println!("fmt", args...). Printf holds the printf format the
// type checker derives from Format.
type PrintStmt struct {
	Pos
	typed
	Format string
	Args   []Expr
	Printf string
}

func (*PrintStmt) stmtNode() {}
func (p *PrintStmt) String() string {
	if len(p.Args) == 0 {
		return fmt.Sprintf(`println!("%s");`, p.Format)
	}
	return fmt.Sprintf(`println!("%s", %s);`, p.Format, joinExprs(p.Args))
}

// BreakStmt leaves the innermost loop, optionally with a value.
type BreakStmt struct {
	Pos
	typed
	Value Expr // nil for a bare break
}

func (*BreakStmt) stmtNode() {}
func (b *BreakStmt) String() string {
	if b.Value == nil {
		return "break;"
	}
	return fmt.Sprintf("break %s;", b.Value)
}

// ReturnStmt leaves the enclosing function.
type ReturnStmt struct {
	Pos
	typed
	Value Expr // nil for a bare return
}

func (*ReturnStmt) stmtNode() {}
func (r *ReturnStmt) String() string {
	if r.Value == nil {
		return "return;"
	}
	return fmt.Sprintf("return %s;", r.Value)
}

// ExpStmt evaluates X. When Yield is set the statement closes its block
// without a semicolon and X becomes the block's value.
type ExpStmt struct {
	Pos
	typed
	X     Expr
	Yield bool
}

func (*ExpStmt) stmtNode() {}
func (e *ExpStmt) String() string {
	if e.Yield {
		return e.X.String()
	}
	return e.X.String() + ";"
}

//  Structure

// Block is a braced statement sequence with its own scope.
type Block struct {
	Pos
	typed
	Stmts []Stmt
}

func (b *Block) String() string {
	if len(b.Stmts) == 0 {
		return "{ }"
	}
	var sb strings.Builder
	sb.WriteString("{\n")
	for _, s := range b.Stmts {
		for _, line := range strings.Split(s.String(), "\n") {
			sb.WriteString("\t" + line + "\n")
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// Param is one function parameter. Var carries its declared type.
type Param struct {
	Pos
	Name string
	Var  Value
}

func (p *Param) String() string { return p.Name + ": " + p.Var.annotation() }

// Fun is a function declaration. Return is Undefined until inferred when the
// source omits "-> T".
type Fun struct {
	Pos
	Name   string
	Params []*Param
	Return Type
	Body   *Block
}

// Descriptor builds the symbol table entry for the function.
func (f *Fun) Descriptor() *Value {
	v := &Value{Type: Type{Kind: Func}, Return: f.Return, Initialized: true}
	for _, p := range f.Params {
		v.Params = append(v.Params, p.Var)
	}
	return v
}

func (f *Fun) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	ret := ""
	if f.Return.Kind != Undefined {
		ret = " -> " + f.Return.String()
	}
	return fmt.Sprintf("fn %s(%s)%s %s", f.Name, strings.Join(params, ", "), ret, f.Body)
}

// Program is the ordered list of functions in a compilation unit.
type Program struct {
	Funs []*Fun
}

func (p *Program) String() string {
	parts := make([]string, len(p.Funs))
	for i, f := range p.Funs {
		parts[i] = f.String()
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
