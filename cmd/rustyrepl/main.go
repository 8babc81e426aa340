package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"rustyc/pkg/compiler"
)

const (
	historyFile = ".rustyc_history"
	promptMain  = "rs> "
	promptCont  = "... "
)

const helpText = `Enter a program; a blank line compiles it once every '{' is closed.
Commands:
  :tokens  Dump the tokens of the last program
  :ast     Print the AST of the last program
  :reset   Discard the current input
  :quit    Exit the REPL
`

// session holds the lines typed so far and the last submitted program.
type session struct {
	buf  []string
	last string
}

// handle processes one input line and reports whether the REPL should exit.
func (s *session) handle(line string, out, errOut io.Writer) bool {
	trimmed := strings.TrimSpace(line)
	if len(s.buf) == 0 && strings.HasPrefix(trimmed, ":") {
		return s.command(trimmed, out, errOut)
	}
	if len(s.buf) == 0 && trimmed == "" {
		return false
	}
	if trimmed != "" || s.open() {
		s.buf = append(s.buf, line)
		return false
	}

	s.last = strings.Join(s.buf, "\n")
	s.buf = nil
	asm, err := compiler.Compile(s.last)
	if err != nil {
		report(errOut, err)
		return false
	}
	fmt.Fprint(out, asm)
	return false
}

// open reports whether the buffered program still has unclosed braces.
// Input that does not lex is treated as complete so the error is shown.
func (s *session) open() bool {
	toks, err := compiler.Lex(strings.Join(s.buf, "\n"))
	if err != nil {
		return false
	}
	depth := 0
	for _, tok := range toks {
		switch tok.Type {
		case compiler.LBRACE:
			depth++
		case compiler.RBRACE:
			depth--
		}
	}
	return depth > 0
}

func (s *session) command(cmd string, out, errOut io.Writer) bool {
	switch cmd {
	case ":quit", ":q":
		return true
	case ":reset":
		s.buf, s.last = nil, ""
	case ":tokens":
		toks, err := compiler.Lex(s.last)
		if err != nil {
			report(errOut, err)
			return false
		}
		for _, tok := range toks {
			fmt.Fprintln(out, " ", tok)
		}
	case ":ast":
		prog, err := compiler.Parse(s.last)
		if err != nil {
			report(errOut, err)
			return false
		}
		fmt.Fprintln(out, prog)
	case ":help":
		fmt.Fprint(out, helpText)
	default:
		fmt.Fprintf(errOut, "unknown command %s\n", cmd)
	}
	return false
}

func report(w io.Writer, err error) {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		fmt.Fprintln(w, ce.Phase.String()+" error:", err)
		return
	}
	fmt.Fprintln(w, "error:", err)
}

func main() {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Print(helpText)
	s := &session{}
	for {
		prompt := promptMain
		if len(s.buf) > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			s.buf = nil
			continue
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			return
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		if s.handle(line, os.Stdout, os.Stderr) {
			return
		}
	}
}
