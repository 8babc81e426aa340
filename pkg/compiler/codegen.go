package compiler

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"
)

// CodeGen emits x86-64 assembly for one function. The frame size, label
// numbering and constant pool are fixed by the measuring pass, so several
// CodeGens can run side by side.
type CodeGen struct {
	fn        *Fun
	plan      funcPlan
	funcs     map[string]*Fun
	pool      *constPool
	syms      *SymbolTable
	labels    *labelGen
	layout    frameLayout
	out       strings.Builder
	depth     int // 8-byte temporaries pushed since the prologue
	loopStack []loopLabel
	exit      Label
}

func newCodeGen(fn *Fun, plan funcPlan, base labelCounts, funcs map[string]*Fun, pool *constPool) *CodeGen {
	return &CodeGen{
		fn:     fn,
		plan:   plan,
		funcs:  funcs,
		pool:   pool,
		syms:   NewSymbolTable(),
		labels: newLabelGen(base),
	}
}

// maxFrameSize keeps every %rbp offset and the prologue's subq immediate
// within a signed 32-bit displacement.
const maxFrameSize = math.MaxInt32 &^ 15

// Generate lowers a checked program to AT&T assembly text. The first pass
// measures every function in order; the second emits function bodies
// concurrently and joins them in declaration order.
func Generate(prog *Program) (string, error) {
	pool := newConstPool()
	funcs := make(map[string]*Fun, len(prog.Funs))
	plans := make([]funcPlan, len(prog.Funs))
	bases := make([]labelCounts, len(prog.Funs))
	var next labelCounts
	for i, fn := range prog.Funs {
		funcs[fn.Name] = fn
		plans[i] = measure(fn, pool)
		if plans[i].frameSize > maxFrameSize {
			return "", newError(PhaseCodegen, fn.Pos, "stack frame of '%s' is %d bytes, limit is %d", fn.Name, plans[i].frameSize, maxFrameSize)
		}
		bases[i] = next
		next.add(plans[i].labels)
	}

	bodies := make([]string, len(prog.Funs))
	var g errgroup.Group
	for i, fn := range prog.Funs {
		g.Go(func() error {
			cg := newCodeGen(fn, plans[i], bases[i], funcs, pool)
			body, err := cg.generate()
			if err != nil {
				return err
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("\t.section .rodata\n")
	for i, text := range pool.texts {
		fmt.Fprintf(&sb, "%s:\n\t.string \"%s\"\n", Label{Kind: LabelConst, ID: i}.Begin(), text)
	}
	sb.WriteString("\t.text\n")
	for _, body := range bodies {
		sb.WriteString(body)
	}
	sb.WriteString("\t.section .note.GNU-stack,\"\",@progbits\n")
	return sb.String(), nil
}

// --- output helpers ---

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, "\t"+format+"\n", args...)
}

func (cg *CodeGen) label(name string) {
	fmt.Fprintf(&cg.out, "%s:\n", name)
}

func (cg *CodeGen) emit(mnemonic string, ops ...Operand) {
	if len(ops) == 0 {
		cg.line("%s", mnemonic)
		return
	}
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.String()
	}
	cg.line("%s %s", mnemonic, strings.Join(parts, ", "))
}

// suffix picks the size suffix from the last operand that is not an
// immediate, which is the operand that fixes the operation size.
func suffix(ops ...Operand) string {
	for i := len(ops) - 1; i >= 0; i-- {
		if !isImmediate(ops[i]) {
			return ops[i].Width().Suffix()
		}
	}
	return Quad.Suffix()
}

// mov copies src to dst. A narrower non-immediate source is sign-extended;
// a wider source is read at the destination width.
func (cg *CodeGen) mov(src, dst Operand) {
	sw, dw := src.Width(), dst.Width()
	switch s := src.(type) {
	case Register:
		if sw > dw {
			src = reg(s.Reg, dw)
		}
	case Memory:
		if sw > dw {
			src = s.At(dw)
		}
	}
	if !isImmediate(src) && dw > sw {
		cg.emit("movs"+sw.Suffix()+dw.Suffix(), src, dst)
		return
	}
	cg.emit("mov"+suffix(src, dst), src, dst)
}

func (cg *CodeGen) movz(src, dst Operand) {
	cg.emit("movz"+src.Width().Suffix()+dst.Width().Suffix(), src, dst)
}

func (cg *CodeGen) add(src, dst Operand)  { cg.emit("add"+suffix(src, dst), src, dst) }
func (cg *CodeGen) sub(src, dst Operand)  { cg.emit("sub"+suffix(src, dst), src, dst) }
func (cg *CodeGen) imul(src, dst Operand) { cg.emit("imul"+suffix(src, dst), src, dst) }
func (cg *CodeGen) and(src, dst Operand)  { cg.emit("and"+suffix(src, dst), src, dst) }
func (cg *CodeGen) or(src, dst Operand)   { cg.emit("or"+suffix(src, dst), src, dst) }
func (cg *CodeGen) xor(src, dst Operand)  { cg.emit("xor"+suffix(src, dst), src, dst) }
func (cg *CodeGen) neg(dst Operand)       { cg.emit("neg"+suffix(dst), dst) }

// cmp sets flags from dst - src.
func (cg *CodeGen) cmp(src, dst Operand) { cg.emit("cmp"+suffix(src, dst), src, dst) }

// idiv divides %rax (sign-extended into %rdx) by src, leaving the quotient
// in %rax.
func (cg *CodeGen) idiv(src Operand) {
	if src.Width() == Quad {
		cg.emit("cqto")
	} else {
		cg.emit("cltd")
	}
	cg.emit("idiv"+suffix(src), src)
}

func (cg *CodeGen) push(op Operand) {
	cg.emit("pushq", op)
	cg.depth++
}

func (cg *CodeGen) pop(op Operand) {
	cg.emit("popq", op)
	cg.depth--
}

func (cg *CodeGen) lea(src, dst Operand) error {
	if !isMemory(src) {
		return internalErrorf("lea requires a memory operand, got %s", src)
	}
	cg.emit("leaq", src, dst)
	return nil
}

func (cg *CodeGen) jmp(target string)                { cg.line("jmp %s", target) }
func (cg *CodeGen) jcc(cc, target string)            { cg.line("j%s %s", cc, target) }
func (cg *CodeGen) set(cc string, dst Register)      { cg.emit("set"+cc, dst) }
func (cg *CodeGen) cmov(cc string, src, dst Operand) { cg.emit("cmov"+cc+suffix(dst), src, dst) }
func (cg *CodeGen) call(target string)               { cg.line("call %s", target) }

// testBool sets ZF when the boolean in %al is false.
func (cg *CodeGen) testBool() {
	cg.cmp(imm(0, Byte), acc(Byte))
}

// adjustStack applies addq or subq of n stack words to %rsp.
func (cg *CodeGen) adjustStack(mnemonic string, n int) {
	cg.emit(mnemonic, imm(int64(8*n), Quad), reg(RSP, Quad))
}

// --- functions ---

func (cg *CodeGen) generate() (string, error) {
	fn := cg.fn
	cg.exit = cg.labels.New(LabelFunc)

	cg.line(".globl %s", fn.Name)
	cg.line(".type %s, @function", fn.Name)
	cg.label(fn.Name)
	cg.label(cg.exit.Begin())
	cg.push(reg(RBP, Quad))
	cg.mov(reg(RSP, Quad), reg(RBP, Quad))
	cg.depth = 0
	if cg.plan.frameSize > 0 {
		cg.sub(imm(int64(cg.plan.frameSize), Quad), reg(RSP, Quad))
	}

	defer cg.syms.PushScope().Close()
	for i, p := range fn.Params {
		v := p.Var
		v.Offset = cg.layout.alloc(&v)
		w := slotWidth(&v)
		if i < len(argRegs) {
			cg.mov(argReg(i, w), frame(v.Offset, w))
		} else {
			cg.mov(frame(16+8*(i-len(argRegs)), Quad), acc(Quad))
			cg.mov(acc(w), frame(v.Offset, w))
		}
		cg.syms.Declare(p.Name, &v)
	}

	if err := cg.genBlock(fn.Body); err != nil {
		return "", err
	}

	cg.label(cg.exit.End())
	if fn.Name == "main" && fn.Return.Kind == Unit {
		cg.mov(imm(0, Long), acc(Long))
	}
	cg.emit("leave")
	cg.emit("ret")
	cg.line(".size %s, .-%s", fn.Name, fn.Name)

	if got := cg.layout.total(); got != cg.plan.frameSize {
		return "", internalErrorf("frame of '%s' is %d bytes, measured %d", fn.Name, got, cg.plan.frameSize)
	}
	return cg.out.String(), nil
}

func (cg *CodeGen) lookup(name string) (*Value, error) {
	v, ok := cg.syms.Lookup(name)
	if !ok {
		return nil, internalErrorf("codegen: unresolved name '%s'", name)
	}
	return v, nil
}

// --- statements ---

func (cg *CodeGen) genBlock(b *Block) error {
	defer cg.syms.PushScope().Close()
	for _, s := range b.Stmts {
		if err := cg.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (cg *CodeGen) genStmt(s Stmt) error {
	switch n := s.(type) {
	case *DecStmt:
		v := *n.Var
		v.Offset = cg.layout.alloc(&v)
		if n.Init != nil {
			if err := cg.genInit(&v, n.Init); err != nil {
				return err
			}
		}
		cg.syms.Declare(n.Name, &v)
		return nil

	case *AssignStmt:
		return cg.genAssign(n)

	case *CompoundAssignStmt:
		return cg.genCompoundAssign(n)

	case *ForStmt:
		return cg.genFor(n)

	case *WhileStmt:
		loop := cg.labels.New(LabelLoop)
		cg.label(loop.Begin())
		if err := cg.genExpr(n.Cond); err != nil {
			return err
		}
		cg.testBool()
		cg.jcc("e", loop.End())
		if err := cg.genLoopBody(loop, n.Body); err != nil {
			return err
		}
		cg.jmp(loop.Begin())
		cg.label(loop.End())
		return nil

	case *PrintStmt:
		return cg.genPrint(n)

	case *BreakStmt:
		if len(cg.loopStack) == 0 {
			return internalErrorf("codegen: break outside loop")
		}
		top := cg.loopStack[len(cg.loopStack)-1]
		if n.Value != nil {
			if err := cg.genExpr(n.Value); err != nil {
				return err
			}
		}
		if extra := cg.depth - top.depth; extra > 0 {
			cg.adjustStack("addq", extra)
		}
		cg.jmp(top.label.End())
		return nil

	case *ReturnStmt:
		if n.Value != nil {
			if err := cg.genExpr(n.Value); err != nil {
				return err
			}
		}
		cg.jmp(cg.exit.End())
		return nil

	case *ExpStmt:
		return cg.genExpr(n.X)
	}
	return internalErrorf("codegen: unknown statement %T", s)
}

func (cg *CodeGen) genLoopBody(loop Label, body *Block) error {
	cg.loopStack = append(cg.loopStack, loopLabel{label: loop, depth: cg.depth})
	defer func() { cg.loopStack = cg.loopStack[:len(cg.loopStack)-1] }()
	return cg.genBlock(body)
}

// genFor lowers a counted loop. The loop variable and the evaluated bound
// live in two hidden i32 slots.
func (cg *CodeGen) genFor(n *ForStmt) error {
	v := Value{Type: typeI32, Initialized: true}
	v.Offset = cg.layout.alloc(&v)
	bound := cg.layout.alloc(&Value{Type: typeI32})
	loop := cg.labels.New(LabelLoop)

	if err := cg.genExpr(n.Start); err != nil {
		return err
	}
	cg.mov(acc(Long), frame(v.Offset, Long))
	if err := cg.genExpr(n.End); err != nil {
		return err
	}
	cg.mov(acc(Long), frame(bound, Long))

	defer cg.syms.PushScope().Close()
	cg.syms.Declare(n.Var, &v)

	cg.label(loop.Begin())
	cg.mov(frame(v.Offset, Long), acc(Long))
	cg.cmp(frame(bound, Long), acc(Long))
	if n.Inclusive {
		cg.jcc("g", loop.End())
	} else {
		cg.jcc("ge", loop.End())
	}
	if err := cg.genLoopBody(loop, n.Body); err != nil {
		return err
	}
	cg.add(imm(1, Long), frame(v.Offset, Long))
	cg.jmp(loop.Begin())
	cg.label(loop.End())
	return nil
}

// genInit stores the value of e into dst's slot.
func (cg *CodeGen) genInit(dst *Value, e Expr) error {
	switch {
	case dst.IsArray():
		return cg.genArrayInit(dst, e)
	case dst.Indirect():
		if err := cg.genAddress(e); err != nil {
			return err
		}
		cg.mov(acc(Quad), frame(dst.Offset, Quad))
		return nil
	}
	if err := cg.genExpr(e); err != nil {
		return err
	}
	w := slotWidth(dst)
	cg.mov(acc(w), frame(dst.Offset, w))
	return nil
}

func (cg *CodeGen) genArrayInit(dst *Value, e Expr) error {
	w := slotWidth(dst)
	switch n := e.(type) {
	case *ArrayExp:
		for i, el := range n.Elements {
			if err := cg.genExpr(el); err != nil {
				return err
			}
			cg.mov(acc(w), frame(dst.Offset+i*int(w), w))
		}
		return nil

	case *UniformArrayExp:
		loop := cg.labels.New(LabelLoop)
		if err := cg.genExpr(n.Value); err != nil {
			return err
		}
		if err := cg.lea(frame(dst.Offset, Quad), reg(RDX, Quad)); err != nil {
			return err
		}
		cg.mov(imm(int64(dst.Size), Quad), reg(RCX, Quad))
		cg.label(loop.Begin())
		cg.mov(acc(w), deref(RDX, w))
		cg.add(imm(int64(w), Quad), reg(RDX, Quad))
		cg.sub(imm(1, Quad), reg(RCX, Quad))
		cg.jcc("ne", loop.Begin())
		cg.label(loop.End())
		return nil

	case *Variable:
		src, err := cg.lookup(n.Name)
		if err != nil {
			return err
		}
		for i := 0; i < dst.Size; i++ {
			cg.mov(frame(src.Offset+i*int(w), w), acc(w))
			cg.mov(acc(w), frame(dst.Offset+i*int(w), w))
		}
		return nil
	}
	return internalErrorf("codegen: cannot initialise array from %T", e)
}

func (cg *CodeGen) genAssign(n *AssignStmt) error {
	switch target := n.Target.(type) {
	case *Variable:
		v, err := cg.lookup(target.Name)
		if err != nil {
			return err
		}
		if !n.Ref {
			return cg.genInit(v, n.Value)
		}
		if err := cg.genExpr(n.Value); err != nil {
			return err
		}
		w := widthOf(v.Scalar())
		cg.mov(frame(v.Offset, Quad), reg(RCX, Quad))
		cg.mov(acc(w), deref(RCX, w))
		return nil

	case *SubscriptExp:
		v, err := cg.lookup(target.Name)
		if err != nil {
			return err
		}
		if err := cg.genExpr(n.Value); err != nil {
			return err
		}
		cg.push(acc(Quad))
		if err := cg.genElementAddress(v, target.Index); err != nil {
			return err
		}
		cg.mov(acc(Quad), reg(RCX, Quad))
		cg.pop(acc(Quad))
		w := slotWidth(v)
		cg.mov(acc(w), deref(RCX, w))
		return nil
	}
	return internalErrorf("codegen: invalid assignment target %T", n.Target)
}

func (cg *CodeGen) genCompoundAssign(n *CompoundAssignStmt) error {
	if err := cg.genExpr(n.Value); err != nil {
		return err
	}
	cg.push(acc(Quad))
	if err := cg.genTargetAddress(n.Target); err != nil {
		return err
	}
	cg.mov(acc(Quad), reg(R8, Quad))
	cg.pop(reg(RCX, Quad))
	cg.mov(deref(R8, Long), acc(Long))
	if err := cg.combine(n.Op, Long); err != nil {
		return err
	}
	cg.mov(acc(Long), deref(R8, Long))
	return nil
}

// genTargetAddress leaves the address of an assignable location in %rax.
func (cg *CodeGen) genTargetAddress(e Expr) error {
	switch n := e.(type) {
	case *Variable:
		v, err := cg.lookup(n.Name)
		if err != nil {
			return err
		}
		if v.Indirect() {
			cg.mov(frame(v.Offset, Quad), acc(Quad))
			return nil
		}
		return cg.lea(frame(v.Offset, Quad), acc(Quad))
	case *SubscriptExp:
		v, err := cg.lookup(n.Name)
		if err != nil {
			return err
		}
		return cg.genElementAddress(v, n.Index)
	}
	return internalErrorf("codegen: %T is not assignable", e)
}

// genElementAddress leaves &v[index] in %rax.
func (cg *CodeGen) genElementAddress(v *Value, index Expr) error {
	if err := cg.genExpr(index); err != nil {
		return err
	}
	cg.mov(acc(Long), acc(Quad))
	if w := slotWidth(v); w != Byte {
		cg.imul(imm(int64(w), Quad), acc(Quad))
	}
	if err := cg.lea(frame(v.Offset, Quad), reg(RCX, Quad)); err != nil {
		return err
	}
	cg.add(reg(RCX, Quad), acc(Quad))
	return nil
}
