package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func feed(s *session, lines ...string) (out, errOut string, quit bool) {
	var o, e bytes.Buffer
	for _, line := range lines {
		if s.handle(line, &o, &e) {
			quit = true
			break
		}
	}
	return o.String(), e.String(), quit
}

func TestSessionCompilesOnBlankLine(t *testing.T) {
	s := &session{}
	out, errOut, quit := feed(s, "fn main() {", `    println!("hi");`, "}")
	assert.Empty(t, out, "nothing compiles before the blank line")
	assert.Len(t, s.buf, 3)

	out, errOut, quit = feed(s, "")
	assert.False(t, quit)
	assert.Empty(t, errOut)
	assert.Contains(t, out, ".string \"hi\\n\"")
	assert.Empty(t, s.buf)
	assert.Equal(t, "fn main() {\n    println!(\"hi\");\n}", s.last)
}

func TestSessionBlankLineInsideBlock(t *testing.T) {
	s := &session{}
	out, errOut, _ := feed(s,
		"fn twice(n: i32) -> i32 {",
		"",
		"    n * 2",
		"}",
		"",
	)
	assert.Empty(t, errOut)
	assert.Contains(t, out, "twice:")
	assert.Empty(t, s.buf)

	// a blank line inside an open block does not split the program
	out, errOut, _ = feed(s,
		"fn helper() -> i32 {",
		"    let x = 1;",
		"",
		"    x",
		"}",
		"fn main() {",
		"    println!(\"{}\", helper());",
		"}",
		"",
	)
	assert.Empty(t, errOut)
	assert.Contains(t, out, "helper:")
	assert.Contains(t, out, "main:")
	assert.Equal(t, 1, strings.Count(out, ".section .note.GNU-stack"), "compiled once")
	assert.Equal(t, 8, strings.Count(s.last, "\n"))
}

func TestSessionUnlexableInputSubmits(t *testing.T) {
	s := &session{}
	_, errOut, _ := feed(s, `fn main() { let s = "open;`, "")
	assert.True(t, strings.HasPrefix(errOut, "lex error:"), errOut)
	assert.Empty(t, s.buf)
}

func TestSessionReportsPhase(t *testing.T) {
	s := &session{}
	out, errOut, _ := feed(s, "fn main() { let x: bool = 1; }", "")
	assert.Empty(t, out)
	assert.True(t, strings.HasPrefix(errOut, "type error: type mismatch"), errOut)
}

func TestSessionCommands(t *testing.T) {
	s := &session{}
	feed(s, "fn main() { }", "")

	out, _, _ := feed(s, ":tokens")
	assert.Contains(t, out, "FN")

	out, _, _ = feed(s, ":ast")
	assert.Contains(t, out, "fn main()")

	out, _, _ = feed(s, ":help")
	assert.Equal(t, helpText, out)

	_, errOut, _ := feed(s, ":bogus")
	assert.Equal(t, "unknown command :bogus\n", errOut)

	feed(s, ":reset")
	assert.Empty(t, s.last)

	_, _, quit := feed(s, ":q")
	assert.True(t, quit)
}

func TestSessionColonInsideProgram(t *testing.T) {
	s := &session{}
	feed(s, "fn f(a: i32) -> i32 {")
	_, errOut, quit := feed(s, ":quit")
	assert.False(t, quit, "commands are only read at the start of a program")
	assert.Empty(t, errOut)
	assert.Len(t, s.buf, 2)
}
