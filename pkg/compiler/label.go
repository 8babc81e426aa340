package compiler

import "fmt"

// LabelKind is the category of a generated label.
type LabelKind int

const (
	LabelLoop  LabelKind = iota // loop / block begin and end
	LabelCond                   // if-block and end-if
	LabelFunc                   // function entry and epilogue
	LabelConst                  // read-only string constant
	numLabelKinds
)

// labelPrefixes holds the begin and end prefix of each kind. Constants only
// have a begin form.
var labelPrefixes = [numLabelKinds][2]string{
	LabelLoop:  {".LBB", ".LBE"},
	LabelCond:  {".LIB", ".LIE"},
	LabelFunc:  {".LFB", ".LFE"},
	LabelConst: {".LC", ""},
}

// Label is a numbered jump target. Begin and End produce the paired textual
// forms, so no caller ever edits label text.
type Label struct {
	Kind LabelKind
	ID   int
}

func (l Label) Begin() string {
	return fmt.Sprintf("%s%d", labelPrefixes[l.Kind][0], l.ID)
}

func (l Label) End() string {
	if l.Kind == LabelConst {
		panic("constant labels have no end form")
	}
	return fmt.Sprintf("%s%d", labelPrefixes[l.Kind][1], l.ID)
}

// labelCounts is the number of labels of each kind a function uses.
type labelCounts [numLabelKinds]int

func (c *labelCounts) add(o labelCounts) {
	for k := range c {
		c[k] += o[k]
	}
}

// labelGen hands out labels with per-kind monotonically increasing IDs,
// starting from a base so separately generated functions never collide.
type labelGen struct {
	next labelCounts
}

func newLabelGen(base labelCounts) *labelGen {
	return &labelGen{next: base}
}

func (g *labelGen) New(kind LabelKind) Label {
	l := Label{Kind: kind, ID: g.next[kind]}
	g.next[kind]++
	return l
}

// loopLabel is an entry on the break target stack. depth is the number of
// temporaries pushed when the loop was entered.
type loopLabel struct {
	label Label
	depth int
}
