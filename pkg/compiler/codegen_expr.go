package compiler

// condCodes maps relational operators to x86 condition code suffixes.
var condCodes = map[TokenType]string{
	EQ:  "e",
	NEQ: "ne",
	LT:  "l",
	GT:  "g",
	LE:  "le",
	GE:  "ge",
}

// genExpr leaves the value of e in %rax at the width of its type. Strings
// and addresses are always full quads.
func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {
	case *Literal:
		switch n.Value.Kind {
		case Unit:
		case Str:
			l, ok := cg.pool.Lookup(n.Value.Text)
			if !ok {
				return internalErrorf("codegen: string constant %q was not interned", n.Value.Text)
			}
			return cg.lea(ripLabel(l.Begin()), acc(Quad))
		default:
			w := widthOf(n.Value.Type)
			cg.mov(imm(n.Value.Int, w), acc(w))
		}
		return nil

	case *Variable:
		v, err := cg.lookup(n.Name)
		if err != nil {
			return err
		}
		switch {
		case v.IsArray():
			return cg.lea(frame(v.Offset, Quad), acc(Quad))
		case v.Indirect():
			w := widthOf(v.Scalar())
			cg.mov(frame(v.Offset, Quad), acc(Quad))
			cg.mov(deref(RAX, w), acc(w))
		default:
			w := slotWidth(v)
			cg.mov(frame(v.Offset, w), acc(w))
		}
		return nil

	case *BinaryExp:
		if err := cg.genExpr(n.Left); err != nil {
			return err
		}
		cg.push(acc(Quad))
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.mov(acc(Quad), reg(RCX, Quad))
		cg.pop(acc(Quad))
		return cg.combine(n.Op, widthOf(n.Left.TypeOf()))

	case *UnaryExp:
		if err := cg.genExpr(n.Operand); err != nil {
			return err
		}
		switch n.Op {
		case NOT:
			cg.xor(imm(1, Byte), acc(Byte))
		case MINUS:
			cg.neg(acc(Long))
		default:
			return internalErrorf("codegen: no lowering for unary %s", n.Op)
		}
		return nil

	case *FunCall:
		return cg.genCall(n)

	case *IfExp:
		return cg.genIf(n)

	case *LoopExp:
		loop := cg.labels.New(LabelLoop)
		cg.label(loop.Begin())
		if err := cg.genLoopBody(loop, n.Body); err != nil {
			return err
		}
		cg.jmp(loop.Begin())
		cg.label(loop.End())
		return nil

	case *SubscriptExp:
		v, err := cg.lookup(n.Name)
		if err != nil {
			return err
		}
		if v.IsArray() {
			if err := cg.genElementAddress(v, n.Index); err != nil {
				return err
			}
			w := slotWidth(v)
			cg.mov(deref(RAX, w), acc(w))
			return nil
		}
		if err := cg.genExpr(n.Index); err != nil {
			return err
		}
		cg.mov(acc(Long), acc(Quad))
		cg.add(frame(v.Offset, Quad), acc(Quad))
		cg.mov(deref(RAX, Byte), acc(Byte))
		return nil

	case *SliceExp:
		return cg.genSlice(n)

	case *ReferenceExp:
		// only reference bindings take the address, through genAddress
		return cg.genExpr(n.Operand)
	}
	return internalErrorf("codegen: no lowering for %T", e)
}

// combine applies op to the lhs in %rax and the rhs in %rcx.
func (cg *CodeGen) combine(op TokenType, w Width) error {
	lhs, rhs := acc(w), reg(RCX, w)
	switch op {
	case LAND:
		cg.and(rhs, lhs)
	case LOR:
		cg.or(rhs, lhs)
	case EQ, NEQ, LT, GT, LE, GE:
		cg.cmp(rhs, lhs)
		cg.set(condCodes[op], acc(Byte))
		cg.movz(acc(Byte), acc(Long))
	case PLUS:
		cg.add(rhs, lhs)
	case MINUS:
		cg.sub(rhs, lhs)
	case STAR:
		cg.imul(rhs, lhs)
	case SLASH:
		cg.idiv(rhs)
	default:
		return internalErrorf("codegen: no lowering for operator %s", op)
	}
	return nil
}

// genAddress leaves the address a reference binding should hold in %rax:
// either &variable or the address already held by another reference.
func (cg *CodeGen) genAddress(e Expr) error {
	var name string
	switch n := e.(type) {
	case *ReferenceExp:
		v, ok := n.Operand.(*Variable)
		if !ok {
			return internalErrorf("codegen: cannot take the address of %T", n.Operand)
		}
		name = v.Name
	case *Variable:
		name = n.Name
	default:
		return internalErrorf("codegen: %T has no address", e)
	}
	v, err := cg.lookup(name)
	if err != nil {
		return err
	}
	if v.Indirect() {
		cg.mov(frame(v.Offset, Quad), acc(Quad))
		return nil
	}
	return cg.lea(frame(v.Offset, Quad), acc(Quad))
}

// genIf lowers an if chain. Each arm jumps past itself when its condition
// is false and to the chain's exit after its body runs.
func (cg *CodeGen) genIf(n *IfExp) error {
	exit := cg.labels.New(LabelCond)
	cg.label(exit.Begin())
	for _, br := range n.Branches() {
		arm := cg.labels.New(LabelCond)
		cg.label(arm.Begin())
		if err := cg.genExpr(br.Cond); err != nil {
			return err
		}
		cg.testBool()
		cg.jcc("e", arm.End())
		if err := cg.genBlock(br.Body); err != nil {
			return err
		}
		cg.jmp(exit.End())
		cg.label(arm.End())
	}
	if n.Else != nil {
		if err := cg.genBlock(n.Else); err != nil {
			return err
		}
	}
	cg.label(exit.End())
	return nil
}

// genSlice yields a pointer into the string. A bounded slice is copied with
// strndup so it carries its own terminator.
func (cg *CodeGen) genSlice(n *SliceExp) error {
	v, err := cg.lookup(n.Name)
	if err != nil {
		return err
	}
	if n.Start != nil {
		if err := cg.genExpr(n.Start); err != nil {
			return err
		}
		cg.mov(acc(Long), acc(Quad))
	} else {
		cg.mov(imm(0, Quad), acc(Quad))
	}
	if n.End == nil {
		cg.add(frame(v.Offset, Quad), acc(Quad))
		return nil
	}

	cg.push(acc(Quad))
	if err := cg.genExpr(n.End); err != nil {
		return err
	}
	cg.mov(acc(Long), reg(RSI, Quad))
	if n.Inclusive {
		cg.add(imm(1, Quad), reg(RSI, Quad))
	}
	cg.pop(acc(Quad))
	cg.mov(frame(v.Offset, Quad), reg(RDI, Quad))
	cg.add(acc(Quad), reg(RDI, Quad))
	cg.sub(acc(Quad), reg(RSI, Quad))
	return cg.callAligned("strndup@PLT", false)
}
