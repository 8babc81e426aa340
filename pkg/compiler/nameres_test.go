package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name: "Forward Call",
			src:  "fn main() { helper(); }\nfn helper() { }",
		},
		{
			name: "Inner Shadowing",
			src:  "fn main() { let x = 1; if true { let x = 2; } }",
		},
		{
			name: "Loop Variable In Scope",
			src:  "fn main() { for i in 0..3 { println!(\"{}\", i); } }",
		},
		{
			name: "Initialiser Sees Outer Binding",
			src:  "fn main() { let x = 1; if true { let x = x + 1; } }",
		},
		{
			name:    "Undefined Variable",
			src:     "fn main() { let y = x; }",
			wantErr: "undefined identifier 'x'",
		},
		{
			name:    "Undefined Function",
			src:     "fn main() { nothing(); }",
			wantErr: "undefined identifier 'nothing'",
		},
		{
			name:    "Redeclaration In Same Block",
			src:     "fn main() { let x = 1; let x = 2; }",
			wantErr: "redeclaration of 'x'",
		},
		{
			name:    "Duplicate Function",
			src:     "fn f() { }\nfn f() { }",
			wantErr: "redeclaration of function 'f'",
		},
		{
			name:    "Duplicate Parameter",
			src:     "fn f(a: i32, a: i32) { }",
			wantErr: "redeclaration of parameter 'a'",
		},
		{
			name:    "Calling A Variable",
			src:     "fn main() { let x = 1; x(); }",
			wantErr: "'x' is not a function",
		},
		{
			name:    "Function Used As Value",
			src:     "fn main() { let y = main; }",
			wantErr: "'main' is a function, not a variable",
		},
		{
			name:    "Loop Variable Out Of Scope",
			src:     "fn main() { for i in 0..3 { } let y = i; }",
			wantErr: "undefined identifier 'i'",
		},
		{
			name:    "Undefined Subscript Base",
			src:     "fn main() { let y = a[0]; }",
			wantErr: "undefined identifier 'a'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustParse(t, tt.src)
			err := Resolve(prog)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, PhaseName, ce.Phase)
			assert.Equal(t, tt.wantErr, ce.Msg)
			assert.Positive(t, ce.Line)
		})
	}
}
