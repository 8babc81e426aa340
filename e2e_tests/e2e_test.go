package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rustyc/pkg/compiler"
)

func TestCompileAssembleRun(t *testing.T) {
	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("no C toolchain to assemble the output")
	}

	// 1. Define the source
	source := `
fn fib(n: i32) -> i32 {
    if n < 2 { return n; }
    fib(n - 1) + fib(n - 2)
}

fn sum(n: i32) -> i32 {
    let mut a = [0; 5];
    for i in 0..5 { a[i] = i * n; }
    let mut total = 0;
    for j in 0..=4 { total += a[j]; }
    total
}

fn bump(r: &i32) -> i32 { r + 1 }

fn main() {
    for i in 0..7 { println!("{}", fib(i)); }
    let name = "rustyc";
    println!("{} {} {}", name, true, name[1..3]);
    println!("{}", sum(2));
    let mut k = 0;
    let found = loop {
        k += 1;
        if k * k > 50 { break k; }
    };
    println!("{}", found);
    let mut x = 41;
    let mut r: &i32 = &x;
    &r = bump(&x);
    println!("{}{}", x, '!');
}
`

	// 2. Compile
	assembly, err := compiler.Compile(source)
	require.NoError(t, err)

	// 3. Assemble and link
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "prog.s")
	binPath := filepath.Join(dir, "prog")
	require.NoError(t, os.WriteFile(asmPath, []byte(assembly), 0o644))
	out, err := exec.Command(cc, "-o", binPath, asmPath).CombinedOutput()
	require.NoError(t, err, "assembler output:\n%s\nassembly:\n%s", out, assembly)

	// 4. Run
	var stdout bytes.Buffer
	cmd := exec.Command(binPath)
	cmd.Stdout = &stdout
	require.NoError(t, cmd.Run())

	// 5. Assertions
	want := "0\n1\n1\n2\n3\n5\n8\nrustyc true us\n20\n8\n42!\n"
	assert.Equal(t, want, stdout.String())
}
