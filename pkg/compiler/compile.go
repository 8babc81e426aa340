package compiler

// Compile runs the whole pipeline over src and returns the assembly text.
// The returned error is a *CompileError for problems in the source.
func Compile(src string) (string, error) {
	prog, err := Parse(src)
	if err != nil {
		return "", err
	}
	if err := Resolve(prog); err != nil {
		return "", err
	}
	if err := Check(prog); err != nil {
		return "", err
	}
	return Generate(prog)
}
