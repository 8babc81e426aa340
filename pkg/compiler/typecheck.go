package compiler

import (
	"math"
	"strings"
)

type checkState int

const (
	unchecked checkState = iota
	checking
	checked
)

// checker owns the function table shared by every function body. Function
// descriptors are created once so an inferred return type becomes visible to
// all callers as soon as it is known.
type checker struct {
	funs   map[string]*Fun
	descs  map[string]*Value
	order  []string
	states map[string]checkState
}

// loopCtx tracks one enclosing loop while its body is checked.
type loopCtx struct {
	depth    int  // scope depth when the loop was entered
	valued   bool // loop expressions may break with a value
	broken   bool
	hasValue bool
	value    Type
}

// funChecker checks one function body with its own scope stack.
type funChecker struct {
	c     *checker
	fn    *Fun
	syms  *SymbolTable
	loops []*loopCtx
	// divergent marks blocks and expressions that never complete normally.
	divergent map[Node]bool
}

// Check computes and validates the type of every node in prog, writing the
// result into each node. It also fills in inferred declaration and return
// types, and derives the printf format of every println!.
func Check(prog *Program) error {
	c := &checker{
		funs:   make(map[string]*Fun),
		descs:  make(map[string]*Value),
		states: make(map[string]checkState),
	}
	for _, fn := range prog.Funs {
		c.funs[fn.Name] = fn
		c.descs[fn.Name] = fn.Descriptor()
		c.order = append(c.order, fn.Name)
	}
	for _, name := range c.order {
		if err := c.checkFun(name); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkFun(name string) error {
	switch c.states[name] {
	case checked:
		return nil
	case checking:
		fn := c.funs[name]
		return typeErrorf(fn.Pos, "cannot infer return type of '%s'", name)
	}
	c.states[name] = checking

	fc := &funChecker{c: c, fn: c.funs[name], syms: NewSymbolTable(), divergent: make(map[Node]bool)}
	defer fc.syms.PushScope().Close()
	for _, n := range c.order {
		fc.syms.Declare(n, c.descs[n])
	}
	if err := fc.run(); err != nil {
		return err
	}
	c.states[name] = checked
	return nil
}

// setReturn fixes the function's result type for the body and all callers.
func (fc *funChecker) setReturn(t Type) {
	fc.fn.Return = t
	fc.c.descs[fc.fn.Name].Return = t
}

func (fc *funChecker) run() error {
	defer fc.syms.PushScope().Close()
	for _, p := range fc.fn.Params {
		if p.Var.Kind == Str && !p.Var.Ref {
			return typeErrorf(p.Pos, "string type requires a reference (&str)")
		}
		fc.syms.Declare(p.Name, &p.Var)
	}

	body, err := fc.block(fc.fn.Body)
	if err != nil {
		return err
	}
	yields := blockYields(fc.fn.Body) && !fc.divergent[fc.fn.Body]
	switch {
	case fc.fn.Return.Kind == Undefined && yields:
		fc.setReturn(body)
	case fc.fn.Return.Kind == Undefined:
		fc.setReturn(typeUnit)
	case yields && !sameType(body, fc.fn.Return):
		return mismatch(fc.fn.Body.Pos, fc.fn.Return, body)
	case !yields && fc.fn.Return.Kind != Unit && !fc.divergent[fc.fn.Body]:
		return mismatch(fc.fn.Body.Pos, fc.fn.Return, typeUnit)
	}
	if fc.fn.Return.IsArray() {
		return typeErrorf(fc.fn.Pos, "function '%s' cannot return an array", fc.fn.Name)
	}
	return nil
}

// blockYields reports whether b ends in a value-producing expression.
func blockYields(b *Block) bool {
	if len(b.Stmts) == 0 {
		return false
	}
	last, ok := b.Stmts[len(b.Stmts)-1].(*ExpStmt)
	return ok && last.Yield
}

func mismatch(pos Pos, want, got Type) error {
	return typeErrorf(pos, "type mismatch: expected %s, got %s", want, got)
}

func (fc *funChecker) want(pos Pos, want, got Type) error {
	if !sameType(want, got) {
		return mismatch(pos, want, got)
	}
	return nil
}

func (fc *funChecker) lookup(pos Pos, name string) (*Value, error) {
	v, ok := fc.syms.Lookup(name)
	if !ok {
		return nil, typeErrorf(pos, "undefined identifier '%s'", name)
	}
	return v, nil
}

// isArraySource reports whether e can be copied into array storage.
func isArraySource(e Expr) bool {
	switch e.(type) {
	case *ArrayExp, *UniformArrayExp, *Variable:
		return true
	}
	return false
}

// isReferenceSource reports whether e can initialise a non-string reference:
// either &variable or another reference binding.
func (fc *funChecker) isReferenceSource(e Expr) bool {
	switch n := e.(type) {
	case *ReferenceExp:
		_, ok := n.Operand.(*Variable)
		return ok && !n.Operand.TypeOf().IsArray()
	case *Variable:
		v, ok := fc.syms.Lookup(n.Name)
		return ok && v.Indirect()
	}
	return false
}

func (fc *funChecker) block(b *Block) (Type, error) {
	defer fc.syms.PushScope().Close()
	result := typeUnit
	for i, s := range b.Stmts {
		t, err := fc.stmt(s)
		if err != nil {
			return typeUndefined, err
		}
		if fc.divergent[s] {
			fc.divergent[b] = true
		}
		if i == len(b.Stmts)-1 {
			if es, ok := s.(*ExpStmt); ok && es.Yield {
				result = t
			}
		}
	}
	b.setType(result)
	return result, nil
}

func (fc *funChecker) stmt(s Stmt) (Type, error) {
	t, err := fc.stmtType(s)
	if err != nil {
		return typeUndefined, err
	}
	s.setType(t)
	return t, nil
}

func (fc *funChecker) stmtType(s Stmt) (Type, error) {
	switch n := s.(type) {
	case *DecStmt:
		return typeUnit, fc.declaration(n)
	case *AssignStmt:
		return typeUnit, fc.assignment(n)
	case *CompoundAssignStmt:
		return typeUnit, fc.compoundAssignment(n)

	case *ForStmt:
		if err := fc.expectExpr(n.Start, typeI32); err != nil {
			return typeUndefined, err
		}
		if err := fc.expectExpr(n.End, typeI32); err != nil {
			return typeUndefined, err
		}
		defer fc.syms.PushScope().Close()
		fc.syms.Declare(n.Var, &Value{Type: typeI32, Initialized: true})
		_, err := fc.loopBody(n.Body, false)
		return typeUnit, err

	case *WhileStmt:
		if err := fc.expectExpr(n.Cond, typeBool); err != nil {
			return typeUndefined, err
		}
		_, err := fc.loopBody(n.Body, false)
		return typeUnit, err

	case *PrintStmt:
		return typeUnit, fc.print(n)

	case *BreakStmt:
		depth := fc.syms.ScopeDepth()
		if len(fc.loops) == 0 || depth <= fc.loops[len(fc.loops)-1].depth {
			return typeUndefined, typeErrorf(n.Pos, "break outside loop")
		}
		loop := fc.loops[len(fc.loops)-1]
		t := typeUnit
		if n.Value != nil {
			if !loop.valued {
				return typeUndefined, typeErrorf(n.Pos, "break with a value is only allowed inside loop")
			}
			var err error
			if t, err = fc.expr(n.Value); err != nil {
				return typeUndefined, err
			}
		}
		if loop.valued {
			if loop.hasValue && !sameType(loop.value, t) {
				return typeUndefined, mismatch(n.Pos, loop.value, t)
			}
			loop.value, loop.hasValue = t, true
		}
		loop.broken = true
		fc.divergent[n] = true
		return typeUnit, nil

	case *ReturnStmt:
		t := typeUnit
		if n.Value != nil {
			var err error
			if t, err = fc.expr(n.Value); err != nil {
				return typeUndefined, err
			}
		}
		if fc.fn.Return.Kind == Undefined {
			fc.setReturn(t)
		} else if err := fc.want(n.Pos, fc.fn.Return, t); err != nil {
			return typeUndefined, err
		}
		fc.divergent[n] = true
		return typeUnit, nil

	case *ExpStmt:
		t, err := fc.expr(n.X)
		if err != nil {
			return typeUndefined, err
		}
		if fc.divergent[n.X] {
			fc.divergent[n] = true
		}
		if !n.Yield {
			return typeUnit, nil
		}
		return t, nil
	}
	return typeUndefined, internalErrorf("type check: unknown statement %T", s)
}

// loopBody checks a loop body with a fresh loop context.
func (fc *funChecker) loopBody(body *Block, valued bool) (*loopCtx, error) {
	ctx := &loopCtx{depth: fc.syms.ScopeDepth(), valued: valued}
	fc.loops = append(fc.loops, ctx)
	defer func() { fc.loops = fc.loops[:len(fc.loops)-1] }()
	if _, err := fc.block(body); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (fc *funChecker) declaration(n *DecStmt) error {
	v := n.Var
	switch {
	case v.Kind == Unit:
		return typeErrorf(n.Pos, "cannot declare '%s' of type ()", n.Name)
	case v.Kind == Str && !v.Ref:
		return typeErrorf(n.Pos, "string type requires a reference (&str)")
	case v.Ref && v.Size > 0 && v.Kind != Str:
		return typeErrorf(n.Pos, "arrays of references are only supported for str")
	}

	if n.Init != nil {
		t, err := fc.expr(n.Init)
		if err != nil {
			return err
		}
		if v.Kind == Undefined {
			if t.Kind == Unit {
				return typeErrorf(n.Pos, "cannot declare '%s' of type ()", n.Name)
			}
			v.Type = t
			v.Ref = v.Ref || t.Kind == Str
		} else if err := fc.want(n.Pos, v.Type, t); err != nil {
			return err
		}
		if v.Indirect() && !fc.isReferenceSource(n.Init) {
			return typeErrorf(n.Pos, "reference binding '%s' requires a reference to a variable", n.Name)
		}
		if v.IsArray() && !isArraySource(n.Init) {
			return typeErrorf(n.Pos, "array '%s' must be initialised from an array literal or variable", n.Name)
		}
		v.Initialized = true
	}
	if !fc.syms.Declare(n.Name, v) {
		return typeErrorf(n.Pos, "redeclaration of '%s'", n.Name)
	}
	n.setType(typeUnit)
	return nil
}

func (fc *funChecker) assignment(n *AssignStmt) error {
	if n.Ref {
		return fc.storeThrough(n)
	}

	switch target := n.Target.(type) {
	case *Variable:
		v, err := fc.lookup(target.Pos, target.Name)
		if err != nil {
			return err
		}
		t, err := fc.expr(n.Value)
		if err != nil {
			return err
		}
		if !v.Initialized {
			// first assignment: initialises and may complete the type
			if v.Kind == Undefined {
				if t.Kind == Unit {
					return typeErrorf(n.Pos, "cannot assign () to '%s'", target.Name)
				}
				v.Type = t
				v.Ref = v.Ref || t.Kind == Str
			} else if err := fc.want(n.Pos, v.Type, t); err != nil {
				return err
			}
			v.Initialized = true
		} else {
			if err := fc.want(n.Pos, v.Type, t); err != nil {
				return err
			}
			if !v.Mut {
				return typeErrorf(n.Pos, "cannot assign to immutable variable '%s'", target.Name)
			}
		}
		if v.Indirect() && !fc.isReferenceSource(n.Value) {
			return typeErrorf(n.Pos, "reference binding '%s' requires a reference to a variable", target.Name)
		}
		if v.IsArray() && !isArraySource(n.Value) {
			return typeErrorf(n.Pos, "array '%s' must be initialised from an array literal or variable", target.Name)
		}
		target.setType(v.Type)
		return nil

	case *SubscriptExp:
		v, err := fc.lookup(target.Pos, target.Name)
		if err != nil {
			return err
		}
		if !v.IsArray() {
			if v.Kind == Str {
				return typeErrorf(n.Pos, "cannot assign into string '%s'", target.Name)
			}
			return typeErrorf(n.Pos, "subscript on non-indexable '%s'", target.Name)
		}
		if !v.Initialized {
			return typeErrorf(target.Pos, "use of uninitialized variable '%s'", target.Name)
		}
		if err := fc.expectExpr(target.Index, typeI32); err != nil {
			return err
		}
		t, err := fc.expr(n.Value)
		if err != nil {
			return err
		}
		if err := fc.want(n.Pos, v.Scalar(), t); err != nil {
			return err
		}
		if !v.Mut {
			return typeErrorf(n.Pos, "cannot assign to immutable variable '%s'", target.Name)
		}
		target.setType(v.Scalar())
		return nil
	}
	return internalErrorf("type check: invalid assignment target %T", n.Target)
}

// storeThrough checks &r = v, which writes v to the variable r refers to.
func (fc *funChecker) storeThrough(n *AssignStmt) error {
	target, ok := n.Target.(*Variable)
	if !ok {
		return internalErrorf("type check: invalid reference target %T", n.Target)
	}
	v, err := fc.lookup(target.Pos, target.Name)
	if err != nil {
		return err
	}
	if !v.Indirect() {
		return typeErrorf(n.Pos, "assignment through non-reference '%s'", target.Name)
	}
	if !v.Initialized {
		return typeErrorf(target.Pos, "use of uninitialized variable '%s'", target.Name)
	}
	t, err := fc.expr(n.Value)
	if err != nil {
		return err
	}
	if err := fc.want(n.Pos, v.Scalar(), t); err != nil {
		return err
	}
	if !v.Mut {
		return typeErrorf(n.Pos, "cannot assign to immutable variable '%s'", target.Name)
	}
	target.setType(v.Type)
	return nil
}

func (fc *funChecker) compoundAssignment(n *CompoundAssignStmt) error {
	var name string
	var pos Pos
	switch target := n.Target.(type) {
	case *Variable:
		name, pos = target.Name, target.Pos
	case *SubscriptExp:
		name, pos = target.Name, target.Pos
	default:
		return internalErrorf("type check: invalid compound assignment target %T", n.Target)
	}
	v, err := fc.lookup(pos, name)
	if err != nil {
		return err
	}
	t, err := fc.expr(n.Target)
	if err != nil {
		return err
	}
	if err := fc.want(n.Pos, typeI32, t); err != nil {
		return err
	}
	if err := fc.expectExpr(n.Value, typeI32); err != nil {
		return err
	}
	if !v.Mut {
		return typeErrorf(n.Pos, "cannot assign to immutable variable '%s'", name)
	}
	return nil
}

// print derives the printf format: each {} becomes the conversion for the
// matching argument and the line is terminated.
func (fc *funChecker) print(n *PrintStmt) error {
	parts := strings.Split(n.Format, "{}")
	if got, want := len(n.Args), len(parts)-1; got != want {
		return typeErrorf(n.Pos, "format expects %d arguments, got %d", want, got)
	}
	var sb strings.Builder
	for i, part := range parts {
		sb.WriteString(strings.ReplaceAll(part, "%", "%%"))
		if i == len(n.Args) {
			break
		}
		t, err := fc.expr(n.Args[i])
		if err != nil {
			return err
		}
		conv, ok := printfConversion(t)
		if !ok {
			return typeErrorf(n.Args[i].Position(), "cannot format value of type %s", t)
		}
		sb.WriteString(conv)
	}
	sb.WriteString(`\n`)
	n.Printf = sb.String()
	return nil
}

func printfConversion(t Type) (string, bool) {
	if t.IsArray() {
		return "", false
	}
	if t.Kind.IsInteger() && t.Kind != I64 {
		return "%d", true
	}
	switch t.Kind {
	case Char:
		return "%c", true
	case I64:
		return "%ld", true
	case Str, Bool:
		return "%s", true
	}
	return "", false
}

// expectExpr checks e and requires its type to be want.
func (fc *funChecker) expectExpr(e Expr, want Type) error {
	t, err := fc.expr(e)
	if err != nil {
		return err
	}
	return fc.want(e.Position(), want, t)
}

func (fc *funChecker) expr(e Expr) (Type, error) {
	t, err := fc.exprType(e)
	if err != nil {
		return typeUndefined, err
	}
	e.setType(t)
	return t, nil
}

func (fc *funChecker) exprType(e Expr) (Type, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Value.Type, nil

	case *Variable:
		v, err := fc.lookup(n.Pos, n.Name)
		if err != nil {
			return typeUndefined, err
		}
		if !v.Initialized {
			return typeUndefined, typeErrorf(n.Pos, "use of uninitialized variable '%s'", n.Name)
		}
		return v.Type, nil

	case *BinaryExp:
		return fc.binary(n)

	case *UnaryExp:
		switch n.Op {
		case NOT:
			return typeBool, fc.expectExpr(n.Operand, typeBool)
		case MINUS:
			return typeI32, fc.expectExpr(n.Operand, typeI32)
		}
		return typeUndefined, internalErrorf("type check: unknown unary operator %s", n.Op)

	case *FunCall:
		return fc.call(n)

	case *IfExp:
		return fc.ifExp(n)

	case *LoopExp:
		ctx, err := fc.loopBody(n.Body, true)
		if err != nil {
			return typeUndefined, err
		}
		if !ctx.broken {
			fc.divergent[n] = true
		}
		if ctx.hasValue {
			return ctx.value, nil
		}
		return typeUnit, nil

	case *SubscriptExp:
		v, err := fc.lookup(n.Pos, n.Name)
		if err != nil {
			return typeUndefined, err
		}
		if !v.Initialized {
			return typeUndefined, typeErrorf(n.Pos, "use of uninitialized variable '%s'", n.Name)
		}
		if err := fc.expectExpr(n.Index, typeI32); err != nil {
			return typeUndefined, err
		}
		switch {
		case v.IsArray():
			return v.Scalar(), nil
		case v.Kind == Str:
			return typeChar, nil
		}
		return typeUndefined, typeErrorf(n.Pos, "subscript on non-indexable '%s'", n.Name)

	case *SliceExp:
		v, err := fc.lookup(n.Pos, n.Name)
		if err != nil {
			return typeUndefined, err
		}
		if !v.Initialized {
			return typeUndefined, typeErrorf(n.Pos, "use of uninitialized variable '%s'", n.Name)
		}
		if v.Kind != Str || v.IsArray() {
			return typeUndefined, typeErrorf(n.Pos, "slice of non-string '%s'", n.Name)
		}
		for _, bound := range []Expr{n.Start, n.End} {
			if bound == nil {
				continue
			}
			if err := fc.expectExpr(bound, typeI32); err != nil {
				return typeUndefined, err
			}
		}
		return typeStr, nil

	case *ReferenceExp:
		return fc.expr(n.Operand)

	case *ArrayExp:
		var elem Type
		for i, el := range n.Elements {
			t, err := fc.expr(el)
			if err != nil {
				return typeUndefined, err
			}
			if t.IsArray() || t.Kind == Unit {
				return typeUndefined, typeErrorf(el.Position(), "invalid array element of type %s", t)
			}
			if i == 0 {
				elem = t
			} else if err := fc.want(el.Position(), elem, t); err != nil {
				return typeUndefined, err
			}
		}
		return Type{Kind: elem.Kind, Size: len(n.Elements)}, nil

	case *UniformArrayExp:
		t, err := fc.expr(n.Value)
		if err != nil {
			return typeUndefined, err
		}
		if t.IsArray() || t.Kind == Unit {
			return typeUndefined, typeErrorf(n.Value.Position(), "invalid array element of type %s", t)
		}
		if err := fc.expectExpr(n.Size, typeI32); err != nil {
			return typeUndefined, err
		}
		size, ok := constInt(n.Size)
		if !ok || size <= 0 {
			return typeUndefined, typeErrorf(n.Size.Position(), "array size must be a positive constant")
		}
		return Type{Kind: t.Kind, Size: int(size)}, nil
	}
	return typeUndefined, internalErrorf("type check: unknown expression %T", e)
}

func (fc *funChecker) binary(n *BinaryExp) (Type, error) {
	lhs, err := fc.expr(n.Left)
	if err != nil {
		return typeUndefined, err
	}
	rhs, err := fc.expr(n.Right)
	if err != nil {
		return typeUndefined, err
	}

	switch n.Op {
	case LAND, LOR:
		if err := fc.want(n.Left.Position(), typeBool, lhs); err != nil {
			return typeUndefined, err
		}
		return typeBool, fc.want(n.Right.Position(), typeBool, rhs)
	case LT, GT, LE, GE:
		if err := fc.want(n.Left.Position(), typeI32, lhs); err != nil {
			return typeUndefined, err
		}
		return typeBool, fc.want(n.Right.Position(), typeI32, rhs)
	case EQ, NEQ:
		if err := fc.want(n.Right.Position(), lhs, rhs); err != nil {
			return typeUndefined, err
		}
		if !sameType(lhs, typeI32) && !sameType(lhs, typeBool) {
			return typeUndefined, typeErrorf(n.Pos, "cannot compare values of type %s", lhs)
		}
		return typeBool, nil
	case PLUS, MINUS, STAR, SLASH:
		if err := fc.want(n.Left.Position(), typeI32, lhs); err != nil {
			return typeUndefined, err
		}
		return typeI32, fc.want(n.Right.Position(), typeI32, rhs)
	}
	return typeUndefined, internalErrorf("type check: unknown binary operator %s", n.Op)
}

func (fc *funChecker) call(n *FunCall) (Type, error) {
	fn, err := fc.lookup(n.Pos, n.Name)
	if err != nil {
		return typeUndefined, err
	}
	if !fn.IsFunction() {
		return typeUndefined, typeErrorf(n.Pos, "'%s' is not a function", n.Name)
	}
	switch want, got := len(fn.Params), len(n.Args); {
	case got > want:
		return typeUndefined, typeErrorf(n.Pos, "too many arguments to '%s': expected %d, got %d", n.Name, want, got)
	case got < want:
		return typeUndefined, typeErrorf(n.Pos, "too few arguments to '%s': expected %d, got %d", n.Name, want, got)
	}
	for i, arg := range n.Args {
		param := fn.Params[i]
		t, err := fc.expr(arg)
		if err != nil {
			return typeUndefined, err
		}
		if err := fc.want(arg.Position(), param.Type, t); err != nil {
			return typeUndefined, err
		}
		if param.Indirect() && !fc.isReferenceSource(arg) {
			return typeUndefined, typeErrorf(arg.Position(), "argument %d of '%s' requires a reference to a variable", i+1, n.Name)
		}
	}
	if fn.Return.Kind == Undefined {
		if err := fc.c.checkFun(n.Name); err != nil {
			return typeUndefined, err
		}
	}
	return fn.Return, nil
}

// ifExp requires boolean conditions and one result type across every branch
// that can complete. A missing else yields ().
func (fc *funChecker) ifExp(n *IfExp) (Type, error) {
	var result Type
	found := false
	unify := func(pos Pos, body *Block, t Type) error {
		if fc.divergent[body] {
			return nil
		}
		if !found {
			result, found = t, true
			return nil
		}
		return fc.want(pos, result, t)
	}

	for _, br := range n.Branches() {
		if err := fc.expectExpr(br.Cond, typeBool); err != nil {
			return typeUndefined, err
		}
		t, err := fc.block(br.Body)
		if err != nil {
			return typeUndefined, err
		}
		if err := unify(br.Body.Pos, br.Body, t); err != nil {
			return typeUndefined, err
		}
	}
	if n.Else == nil {
		if err := unify(n.Pos, &Block{}, typeUnit); err != nil {
			return typeUndefined, err
		}
	} else {
		t, err := fc.block(n.Else)
		if err != nil {
			return typeUndefined, err
		}
		if err := unify(n.Else.Pos, n.Else, t); err != nil {
			return typeUndefined, err
		}
	}
	if !found {
		fc.divergent[n] = true
		return typeUnit, nil
	}
	return result, nil
}

// constInt folds an integer expression built from literals with i32
// arithmetic, failing if any step leaves the i32 range.
func constInt(e Expr) (int64, bool) {
	var v int64
	switch n := e.(type) {
	case *Literal:
		if n.Value.Kind != I32 {
			return 0, false
		}
		v = n.Value.Int
	case *UnaryExp:
		x, ok := constInt(n.Operand)
		if !ok || n.Op != MINUS {
			return 0, false
		}
		v = -x
	case *BinaryExp:
		l, lok := constInt(n.Left)
		r, rok := constInt(n.Right)
		if !lok || !rok {
			return 0, false
		}
		switch n.Op {
		case PLUS:
			v = l + r
		case MINUS:
			v = l - r
		case STAR:
			v = l * r
		case SLASH:
			if r == 0 {
				return 0, false
			}
			v = l / r
		default:
			return 0, false
		}
	default:
		return 0, false
	}
	// Operands stay within i32, so no step can overflow int64 first.
	return v, v >= math.MinInt32 && v <= math.MaxInt32
}
