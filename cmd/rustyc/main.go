package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"rustyc/pkg/compiler"
	"rustyc/pkg/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run compiles the single source file named in args and writes the
// assembly next to it, or to -o. It returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rustyc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	outPath := fs.String("o", "", "output assembly path (default: source with .s extension)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: rustyc <source.rs>")
		return 1
	}
	inPath := fs.Arg(0)

	data, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintln(stderr, "read error:", err)
		return 1
	}

	asm, err := compiler.Compile(string(data))
	if err != nil {
		fmt.Fprintln(stderr, phaseOf(err)+" error:", err)
		return 1
	}

	output := *outPath
	if output == "" {
		if output, err = utils.AssemblyPath(inPath); err != nil {
			fmt.Fprintln(stderr, "path error:", err)
			return 1
		}
	}
	if err := os.WriteFile(output, []byte(asm), 0o644); err != nil {
		fmt.Fprintf(stderr, "failed to write assembly file %q: %v\n", output, err)
		return 1
	}
	fmt.Fprintln(stdout, output)
	return 0
}

func phaseOf(err error) string {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return ce.Phase.String()
	}
	return "compile"
}
