package compiler

// resolver binds every identifier use to a declaration. It only needs to know
// whether a name exists and whether it names a function.
type resolver struct {
	syms *SymbolTable
}

// Resolve checks that every identifier in prog refers to a visible
// declaration and that no scope declares a name twice. Functions are
// declared before any body is visited, so calls may refer forward.
func Resolve(prog *Program) error {
	r := &resolver{syms: NewSymbolTable()}
	defer r.syms.PushScope().Close()

	for _, fn := range prog.Funs {
		if !r.syms.Declare(fn.Name, fn.Descriptor()) {
			return nameErrorf(fn.Pos, "redeclaration of function '%s'", fn.Name)
		}
	}
	for _, fn := range prog.Funs {
		if err := r.fun(fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) fun(fn *Fun) error {
	defer r.syms.PushScope().Close()
	for _, p := range fn.Params {
		if !r.syms.Declare(p.Name, &p.Var) {
			return nameErrorf(p.Pos, "redeclaration of parameter '%s'", p.Name)
		}
	}
	return r.block(fn.Body)
}

func (r *resolver) block(b *Block) error {
	defer r.syms.PushScope().Close()
	for _, s := range b.Stmts {
		if err := r.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

// variable resolves a name used as a value.
func (r *resolver) variable(pos Pos, name string) error {
	v, ok := r.syms.Lookup(name)
	if !ok {
		return nameErrorf(pos, "undefined identifier '%s'", name)
	}
	if v.IsFunction() {
		return nameErrorf(pos, "'%s' is a function, not a variable", name)
	}
	return nil
}

func (r *resolver) stmt(s Stmt) error {
	switch n := s.(type) {
	case *DecStmt:
		if n.Init != nil {
			if err := r.expr(n.Init); err != nil {
				return err
			}
		}
		if !r.syms.Declare(n.Name, n.Var) {
			return nameErrorf(n.Pos, "redeclaration of '%s'", n.Name)
		}
	case *AssignStmt:
		if err := r.expr(n.Target); err != nil {
			return err
		}
		return r.expr(n.Value)
	case *CompoundAssignStmt:
		if err := r.expr(n.Target); err != nil {
			return err
		}
		return r.expr(n.Value)
	case *ForStmt:
		if err := r.expr(n.Start); err != nil {
			return err
		}
		if err := r.expr(n.End); err != nil {
			return err
		}
		defer r.syms.PushScope().Close()
		r.syms.Declare(n.Var, &Value{Type: typeI32, Initialized: true})
		return r.block(n.Body)
	case *WhileStmt:
		if err := r.expr(n.Cond); err != nil {
			return err
		}
		return r.block(n.Body)
	case *PrintStmt:
		return r.exprs(n.Args)
	case *BreakStmt:
		if n.Value != nil {
			return r.expr(n.Value)
		}
	case *ReturnStmt:
		if n.Value != nil {
			return r.expr(n.Value)
		}
	case *ExpStmt:
		return r.expr(n.X)
	default:
		return internalErrorf("name resolution: unknown statement %T", s)
	}
	return nil
}

func (r *resolver) exprs(list []Expr) error {
	for _, e := range list {
		if err := r.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) expr(e Expr) error {
	switch n := e.(type) {
	case *Literal:
	case *Variable:
		return r.variable(n.Pos, n.Name)
	case *BinaryExp:
		if err := r.expr(n.Left); err != nil {
			return err
		}
		return r.expr(n.Right)
	case *UnaryExp:
		return r.expr(n.Operand)
	case *FunCall:
		v, ok := r.syms.Lookup(n.Name)
		if !ok {
			return nameErrorf(n.Pos, "undefined identifier '%s'", n.Name)
		}
		if !v.IsFunction() {
			return nameErrorf(n.Pos, "'%s' is not a function", n.Name)
		}
		return r.exprs(n.Args)
	case *IfExp:
		for _, br := range n.Branches() {
			if err := r.expr(br.Cond); err != nil {
				return err
			}
			if err := r.block(br.Body); err != nil {
				return err
			}
		}
		if n.Else != nil {
			return r.block(n.Else)
		}
	case *LoopExp:
		return r.block(n.Body)
	case *SubscriptExp:
		if err := r.variable(n.Pos, n.Name); err != nil {
			return err
		}
		return r.expr(n.Index)
	case *SliceExp:
		if err := r.variable(n.Pos, n.Name); err != nil {
			return err
		}
		if n.Start != nil {
			if err := r.expr(n.Start); err != nil {
				return err
			}
		}
		if n.End != nil {
			return r.expr(n.End)
		}
	case *ReferenceExp:
		return r.expr(n.Operand)
	case *ArrayExp:
		return r.exprs(n.Elements)
	case *UniformArrayExp:
		if err := r.expr(n.Value); err != nil {
			return err
		}
		return r.expr(n.Size)
	default:
		return internalErrorf("name resolution: unknown expression %T", e)
	}
	return nil
}
