package compiler

// argGen evaluates one call argument into %rax.
type argGen func() error

// callFunction evaluates args left to right onto the stack, moves the first
// six into the System V argument registers and leaves the rest on the stack
// in the order the callee expects. %rsp is 16-byte aligned at the call.
func (cg *CodeGen) callFunction(target string, args []argGen, variadic bool) error {
	n := len(args)
	stacked := max(0, n-len(argRegs))
	pushes := n + stacked
	pad := (cg.depth+pushes)%2 != 0
	if pad {
		cg.adjustStack("subq", 1)
		cg.depth++
	}

	for _, gen := range args {
		if err := gen(); err != nil {
			return err
		}
		cg.push(acc(Quad))
	}
	// Argument i sits at 8*(n-1-i)(%rsp). Re-push the stack arguments so
	// the seventh ends up lowest.
	for i := n - 1; i >= len(argRegs); i-- {
		pushed := n - 1 - i
		cg.push(stackSlot(8 * (n - 1 - i + pushed)))
	}
	for i := 0; i < min(n, len(argRegs)); i++ {
		cg.mov(stackSlot(8*(n-1-i+stacked)), argReg(i, Quad))
	}
	if variadic {
		cg.mov(imm(0, Long), acc(Long))
	}
	cg.call(target)

	total := pushes
	if pad {
		total++
	}
	if total > 0 {
		cg.adjustStack("addq", total)
		cg.depth -= total
	}
	return nil
}

// callAligned calls target with its arguments already in registers.
func (cg *CodeGen) callAligned(target string, variadic bool) error {
	return cg.callFunction(target, nil, variadic)
}

func (cg *CodeGen) genCall(n *FunCall) error {
	fn, ok := cg.funcs[n.Name]
	if !ok {
		return internalErrorf("codegen: unknown function '%s'", n.Name)
	}
	args := make([]argGen, len(n.Args))
	for i, arg := range n.Args {
		if fn.Params[i].Var.Indirect() {
			args[i] = func() error { return cg.genAddress(arg) }
		} else {
			args[i] = func() error { return cg.genExpr(arg) }
		}
	}
	return cg.callFunction(n.Name, args, false)
}

// genPrint calls printf with the derived format. Booleans are passed as the
// "true" or "false" constant and narrow integers are widened to int.
func (cg *CodeGen) genPrint(n *PrintStmt) error {
	format, ok := cg.pool.Lookup(n.Printf)
	if !ok {
		return internalErrorf("codegen: format %q was not interned", n.Printf)
	}
	args := []argGen{func() error {
		return cg.lea(ripLabel(format.Begin()), acc(Quad))
	}}
	for _, arg := range n.Args {
		args = append(args, func() error {
			if err := cg.genExpr(arg); err != nil {
				return err
			}
			return cg.widenForPrintf(arg.TypeOf())
		})
	}
	return cg.callFunction("printf@PLT", args, true)
}

func (cg *CodeGen) widenForPrintf(t Type) error {
	switch t.Kind {
	case Bool:
		if err := cg.lea(ripLabel(cg.boolLabel(true)), reg(RCX, Quad)); err != nil {
			return err
		}
		if err := cg.lea(ripLabel(cg.boolLabel(false)), reg(RDX, Quad)); err != nil {
			return err
		}
		cg.testBool()
		cg.cmov("ne", reg(RCX, Quad), reg(RDX, Quad))
		cg.mov(reg(RDX, Quad), acc(Quad))
	case Char, I8, I16:
		cg.mov(acc(widthOf(t)), acc(Long))
	}
	return nil
}

func (cg *CodeGen) boolLabel(b bool) string {
	text := falseConst
	if b {
		text = trueConst
	}
	l, _ := cg.pool.Lookup(text)
	return l.Begin()
}
