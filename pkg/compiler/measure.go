package compiler

// funcPlan is what the first pass learns about one function: its frame size
// and how many labels of each kind the emitter will take.
type funcPlan struct {
	frameSize int
	labels    labelCounts
}

// measurer walks a function in exactly the order the emitter does, so the
// slots it allocates add up to the same frame. It also interns every string
// constant the function needs.
type measurer struct {
	pool   *constPool
	layout frameLayout
	labels labelCounts
}

func measure(fn *Fun, pool *constPool) funcPlan {
	m := &measurer{pool: pool}
	m.labels[LabelFunc]++
	for _, p := range fn.Params {
		m.layout.alloc(&p.Var)
	}
	m.block(fn.Body)
	return funcPlan{frameSize: m.layout.total(), labels: m.labels}
}

func (m *measurer) block(b *Block) {
	for _, s := range b.Stmts {
		m.stmt(s)
	}
}

func (m *measurer) stmt(s Stmt) {
	switch n := s.(type) {
	case *DecStmt:
		m.layout.alloc(n.Var)
		if n.Init != nil {
			m.init(n.Init)
		}
	case *AssignStmt:
		m.expr(n.Target)
		m.init(n.Value)
	case *CompoundAssignStmt:
		m.expr(n.Target)
		m.expr(n.Value)
	case *ForStmt:
		m.layout.alloc(&Value{Type: typeI32})
		m.layout.alloc(&Value{Type: typeI32})
		m.labels[LabelLoop]++
		m.expr(n.Start)
		m.expr(n.End)
		m.block(n.Body)
	case *WhileStmt:
		m.labels[LabelLoop]++
		m.expr(n.Cond)
		m.block(n.Body)
	case *PrintStmt:
		m.pool.Intern(n.Printf)
		m.exprs(n.Args)
	case *BreakStmt:
		if n.Value != nil {
			m.expr(n.Value)
		}
	case *ReturnStmt:
		if n.Value != nil {
			m.expr(n.Value)
		}
	case *ExpStmt:
		m.expr(n.X)
	}
}

// init accounts for the extra loop a uniform array initialiser needs.
func (m *measurer) init(e Expr) {
	if _, ok := e.(*UniformArrayExp); ok {
		m.labels[LabelLoop]++
	}
	m.expr(e)
}

func (m *measurer) exprs(list []Expr) {
	for _, e := range list {
		m.expr(e)
	}
}

func (m *measurer) expr(e Expr) {
	switch n := e.(type) {
	case *Literal:
		if n.Value.Kind == Str {
			m.pool.Intern(n.Value.Text)
		}
	case *BinaryExp:
		m.expr(n.Left)
		m.expr(n.Right)
	case *UnaryExp:
		m.expr(n.Operand)
	case *FunCall:
		m.exprs(n.Args)
	case *IfExp:
		m.labels[LabelCond]++
		for _, br := range n.Branches() {
			m.labels[LabelCond]++
			m.expr(br.Cond)
			m.block(br.Body)
		}
		if n.Else != nil {
			m.block(n.Else)
		}
	case *LoopExp:
		m.labels[LabelLoop]++
		m.block(n.Body)
	case *SubscriptExp:
		m.expr(n.Index)
	case *SliceExp:
		if n.Start != nil {
			m.expr(n.Start)
		}
		if n.End != nil {
			m.expr(n.End)
		}
	case *ReferenceExp:
		m.expr(n.Operand)
	case *ArrayExp:
		m.exprs(n.Elements)
	case *UniformArrayExp:
		m.expr(n.Value)
	}
}
