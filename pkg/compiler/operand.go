package compiler

import "fmt"

// Width is the size class of an operand in bytes.
type Width int

const (
	Byte Width = 1
	Word Width = 2
	Long Width = 4
	Quad Width = 8
)

// Suffix is the AT&T mnemonic suffix for w.
func (w Width) Suffix() string {
	switch w {
	case Byte:
		return "b"
	case Word:
		return "w"
	case Long:
		return "l"
	}
	return "q"
}

// widthOf returns the width used to hold one value of type t in a register.
// Strings, references and arrays are all handled through addresses.
func widthOf(t Type) Width {
	if t.IsArray() {
		return Quad
	}
	switch t.Kind {
	case Bool, Char, I8:
		return Byte
	case I16:
		return Word
	case I32:
		return Long
	}
	return Quad
}

// Reg names a general purpose register family.
type Reg int

const (
	RAX Reg = iota
	RBX
	RCX
	RDX
	RSI
	RDI
	RBP
	RSP
	R8
	R9
	R10
	R11
	RIP
)

// regNames holds the byte, word, long and quad spelling of every register.
var regNames = [...][4]string{
	RAX: {"al", "ax", "eax", "rax"},
	RBX: {"bl", "bx", "ebx", "rbx"},
	RCX: {"cl", "cx", "ecx", "rcx"},
	RDX: {"dl", "dx", "edx", "rdx"},
	RSI: {"sil", "si", "esi", "rsi"},
	RDI: {"dil", "di", "edi", "rdi"},
	RBP: {"bpl", "bp", "ebp", "rbp"},
	RSP: {"spl", "sp", "esp", "rsp"},
	R8:  {"r8b", "r8w", "r8d", "r8"},
	R9:  {"r9b", "r9w", "r9d", "r9"},
	R10: {"r10b", "r10w", "r10d", "r10"},
	R11: {"r11b", "r11w", "r11d", "r11"},
	RIP: {"ip", "ip", "eip", "rip"},
}

// argRegs is the System V integer argument sequence.
var argRegs = []Reg{RDI, RSI, RDX, RCX, R8, R9}

func widthIndex(w Width) int {
	switch w {
	case Byte:
		return 0
	case Word:
		return 1
	case Long:
		return 2
	}
	return 3
}

// Operand is one instruction operand: a register, an immediate or a memory
// reference, each carrying its width.
type Operand interface {
	Width() Width
	String() string
	operand()
}

// Register is a register at a given width, e.g. Register{RAX, Long} is %eax.
type Register struct {
	Reg Reg
	W   Width
}

func (Register) operand()        {}
func (r Register) Width() Width   { return r.W }
func (r Register) String() string { return "%" + regNames[r.Reg][widthIndex(r.W)] }

// Immediate is a constant operand.
type Immediate struct {
	Value int64
	W     Width
}

func (Immediate) operand()        {}
func (i Immediate) Width() Width   { return i.W }
func (i Immediate) String() string { return fmt.Sprintf("$%d", i.Value) }

// Memory is base+offset, or label(%rip) when Label is set.
type Memory struct {
	Base   Reg
	Offset int
	Label  string
	W      Width
}

func (Memory) operand()      {}
func (m Memory) Width() Width { return m.W }
func (m Memory) String() string {
	base := "%" + regNames[m.Base][3]
	if m.Label != "" {
		return fmt.Sprintf("%s(%s)", m.Label, base)
	}
	if m.Offset == 0 {
		return "(" + base + ")"
	}
	return fmt.Sprintf("%d(%s)", m.Offset, base)
}

// At returns the same location viewed at another width.
func (m Memory) At(w Width) Memory {
	m.W = w
	return m
}

func reg(r Reg, w Width) Register      { return Register{Reg: r, W: w} }
func imm(v int64, w Width) Immediate   { return Immediate{Value: v, W: w} }
func frame(offset int, w Width) Memory { return Memory{Base: RBP, Offset: offset, W: w} }
func deref(r Reg, w Width) Memory      { return Memory{Base: r, W: w} }
func ripLabel(label string) Memory     { return Memory{Base: RIP, Label: label, W: Quad} }
func acc(w Width) Register             { return reg(RAX, w) }
func stackSlot(offset int) Memory      { return Memory{Base: RSP, Offset: offset, W: Quad} }
func argReg(i int, w Width) Register   { return reg(argRegs[i], w) }

func isMemory(op Operand) bool {
	_, ok := op.(Memory)
	return ok
}

func isImmediate(op Operand) bool {
	_, ok := op.(Immediate)
	return ok
}
