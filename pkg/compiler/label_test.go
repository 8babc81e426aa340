package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelForms(t *testing.T) {
	tests := []struct {
		label      Label
		begin, end string
	}{
		{Label{Kind: LabelLoop, ID: 0}, ".LBB0", ".LBE0"},
		{Label{Kind: LabelLoop, ID: 12}, ".LBB12", ".LBE12"},
		{Label{Kind: LabelCond, ID: 3}, ".LIB3", ".LIE3"},
		{Label{Kind: LabelFunc, ID: 1}, ".LFB1", ".LFE1"},
	}
	for _, tt := range tests {
		t.Run(tt.begin, func(t *testing.T) {
			assert.Equal(t, tt.begin, tt.label.Begin())
			assert.Equal(t, tt.end, tt.label.End())
		})
	}

	c := Label{Kind: LabelConst, ID: 4}
	assert.Equal(t, ".LC4", c.Begin())
	assert.Panics(t, func() { _ = c.End() })
}

func TestLabelGen(t *testing.T) {
	g := newLabelGen(labelCounts{LabelLoop: 2, LabelFunc: 1})
	assert.Equal(t, Label{Kind: LabelLoop, ID: 2}, g.New(LabelLoop))
	assert.Equal(t, Label{Kind: LabelLoop, ID: 3}, g.New(LabelLoop))
	assert.Equal(t, Label{Kind: LabelCond, ID: 0}, g.New(LabelCond), "kinds count independently")
	assert.Equal(t, Label{Kind: LabelFunc, ID: 1}, g.New(LabelFunc))
}

func TestLabelCountsAdd(t *testing.T) {
	c := labelCounts{LabelLoop: 1, LabelCond: 2}
	c.add(labelCounts{LabelLoop: 3, LabelFunc: 1})
	assert.Equal(t, labelCounts{LabelLoop: 4, LabelCond: 2, LabelFunc: 1}, c)
}

func TestFrameLayout(t *testing.T) {
	var f frameLayout
	steps := []struct {
		name   string
		v      Value
		offset int
	}{
		{"Bool", Value{Type: typeBool}, -1},
		{"I32 Aligned", Value{Type: typeI32}, -8},
		{"Array", Value{Type: Type{Kind: I32, Size: 3}}, -20},
		{"Reference", Value{Type: typeI32, Ref: true}, -32},
		{"String", Value{Type: typeStr, Ref: true}, -40},
		{"I16", Value{Type: Type{Kind: I16}}, -42},
		{"Char Array", Value{Type: Type{Kind: Char, Size: 5}}, -47},
	}
	for _, s := range steps {
		assert.Equal(t, s.offset, f.alloc(&s.v), s.name)
	}
	assert.Equal(t, 48, f.total())

	var empty frameLayout
	assert.Zero(t, empty.total())
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, 0, alignUp(0, 16))
	assert.Equal(t, 16, alignUp(1, 16))
	assert.Equal(t, 16, alignUp(16, 16))
	assert.Equal(t, 12, alignUp(9, 4))
}

func TestConstPool(t *testing.T) {
	p := newConstPool()
	assert.Equal(t, []string{"true", "false"}, p.texts)

	hi := p.Intern("hi")
	assert.Equal(t, ".LC2", hi.Begin())
	assert.Equal(t, hi, p.Intern("hi"), "interning is idempotent")
	assert.Equal(t, ".LC1", p.Intern("false").Begin())

	l, ok := p.Lookup("hi")
	assert.True(t, ok)
	assert.Equal(t, hi, l)
	_, ok = p.Lookup("missing")
	assert.False(t, ok)
}

func TestMeasureMatchesEmitter(t *testing.T) {
	prog, err := checkSource(`
fn f(n: i32) -> i32 {
    let a = [0; 4];
    let mut b = [1, 2];
    b = [3; 2];
    for i in 0..n { while false { } }
    let v = if n > 0 { 1 } else if n < 0 { 2 } else { 3 };
    let w = loop { break v; };
    println!("{} {}", v, "lit");
    w
}
fn main() { }
`)
	if !assert.NoError(t, err) {
		return
	}
	pool := newConstPool()
	plan := measure(prog.Funs[0], pool)
	assert.Equal(t, labelCounts{LabelLoop: 5, LabelCond: 3, LabelFunc: 1}, plan.labels)
	// n, a, b, v, w, for var and bound
	assert.Equal(t, 48, plan.frameSize)
	assert.Equal(t, []string{"true", "false", `%d %s\n`, "lit"}, pool.texts)

	_, err = Generate(prog)
	assert.NoError(t, err)
}
