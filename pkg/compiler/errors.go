package compiler

import "fmt"

// Phase names the pipeline stage that rejected the program.
type Phase int

const (
	PhaseLex Phase = iota
	PhaseParse
	PhaseName
	PhaseType
	PhaseCodegen
)

var phaseNames = [...]string{
	PhaseLex:     "lex",
	PhaseParse:   "parse",
	PhaseName:    "name",
	PhaseType:    "type",
	PhaseCodegen: "codegen",
}

func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// CompileError is the single error type returned by every stage.
// Line and Col are zero for internal code generation errors.
type CompileError struct {
	Phase   Phase
	Line    int
	Col     int
	Msg     string
	Snippet string // offending source line, parse errors only
}

func (e *CompileError) Error() string {
	msg := e.Msg
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at %d:%d", e.Msg, e.Line, e.Col)
	}
	if e.Snippet != "" {
		msg += "\n  |> " + e.Snippet
	}
	return msg
}

func newError(phase Phase, pos Pos, format string, args ...interface{}) *CompileError {
	return &CompileError{
		Phase: phase,
		Line:  pos.Line,
		Col:   pos.Col,
		Msg:   fmt.Sprintf(format, args...),
	}
}

func nameErrorf(pos Pos, format string, args ...interface{}) error {
	return newError(PhaseName, pos, format, args...)
}

func typeErrorf(pos Pos, format string, args ...interface{}) error {
	return newError(PhaseType, pos, format, args...)
}

// internalErrorf reports a lowering failure that type checking should have
// made impossible.
func internalErrorf(format string, args ...interface{}) error {
	return &CompileError{Phase: PhaseCodegen, Msg: "internal: " + fmt.Sprintf(format, args...)}
}
