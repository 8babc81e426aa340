package compiler

// frameLayout assigns stack slots below %rbp. Each slot is naturally aligned
// and slots are never reused, so the final size only depends on the order
// and types of the allocations.
type frameLayout struct {
	size int
}

// slotWidth is the width of one element held in v's slot.
func slotWidth(v *Value) Width {
	if v.Indirect() {
		return Quad
	}
	return widthOf(v.Scalar())
}

// alloc reserves a slot for v and returns its offset from %rbp. For arrays
// the offset addresses element 0; later elements follow upwards.
func (f *frameLayout) alloc(v *Value) int {
	w := int(slotWidth(v))
	n := 1
	if v.IsArray() {
		n = v.Size
	}
	f.size = alignUp(f.size+w*n, w)
	return -f.size
}

// total is the frame size rounded to keep %rsp 16-byte aligned.
func (f *frameLayout) total() int {
	return alignUp(f.size, 16)
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// constPool interns read-only string constants. "true" and "false" always
// occupy the first two slots so boolean printing can refer to them.
type constPool struct {
	labels map[string]Label
	texts  []string
}

const (
	trueConst  = "true"
	falseConst = "false"
)

func newConstPool() *constPool {
	p := &constPool{labels: make(map[string]Label)}
	p.Intern(trueConst)
	p.Intern(falseConst)
	return p
}

// Intern returns the label for text, registering it on first use.
func (p *constPool) Intern(text string) Label {
	if l, ok := p.labels[text]; ok {
		return l
	}
	l := Label{Kind: LabelConst, ID: len(p.texts)}
	p.labels[text] = l
	p.texts = append(p.texts, text)
	return l
}

// Lookup returns the label of an already interned constant.
func (p *constPool) Lookup(text string) (Label, bool) {
	l, ok := p.labels[text]
	return l, ok
}
