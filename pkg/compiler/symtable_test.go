package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolTable(t *testing.T) {
	t.Run("DeclareAndLookup", func(t *testing.T) {
		s := NewSymbolTable()
		defer s.PushScope().Close()

		x := &Value{Type: typeI32, Initialized: true}
		require.True(t, s.Declare("x", x))
		got, ok := s.Lookup("x")
		require.True(t, ok)
		assert.Same(t, x, got)

		_, ok = s.Lookup("y")
		assert.False(t, ok)
	})

	t.Run("Shadowing", func(t *testing.T) {
		s := NewSymbolTable()
		defer s.PushScope().Close()
		outer := &Value{Type: typeI32}
		require.True(t, s.Declare("x", outer))

		inner := &Value{Type: typeBool}
		func() {
			defer s.PushScope().Close()
			assert.True(t, s.Declare("x", inner), "inner scope may shadow")
			got, _ := s.Lookup("x")
			assert.Same(t, inner, got)
		}()

		got, _ := s.Lookup("x")
		assert.Same(t, outer, got, "closing the scope uncovers the outer binding")
	})

	t.Run("RedeclarationInSameScope", func(t *testing.T) {
		s := NewSymbolTable()
		defer s.PushScope().Close()
		require.True(t, s.Declare("x", &Value{}))
		assert.False(t, s.Declare("x", &Value{}))
	})

	t.Run("Update", func(t *testing.T) {
		s := NewSymbolTable()
		defer s.PushScope().Close()
		s.Declare("x", &Value{Type: typeI32})
		s.PushScope()
		replacement := &Value{Type: typeChar}
		assert.True(t, s.Update("x", replacement))
		assert.False(t, s.Update("missing", replacement))
		s.PopScope()

		got, _ := s.Lookup("x")
		assert.Same(t, replacement, got, "update rewrites the binding where it lives")
	})

	t.Run("ScopeDepth", func(t *testing.T) {
		s := NewSymbolTable()
		assert.Equal(t, 0, s.ScopeDepth())
		outer := s.PushScope()
		inner := s.PushScope()
		assert.Equal(t, 2, s.ScopeDepth())
		inner.Close()
		outer.Close()
		assert.Equal(t, 0, s.ScopeDepth())
	})

	t.Run("OutOfOrderClosePanics", func(t *testing.T) {
		s := NewSymbolTable()
		outer := s.PushScope()
		s.PushScope()
		assert.Panics(t, func() { outer.Close() })
	})

	t.Run("Dump", func(t *testing.T) {
		s := NewSymbolTable()
		defer s.PushScope().Close()
		s.Declare("b", &Value{Type: typeI32, Mut: true, Initialized: true, Offset: -4})
		s.Declare("a", &Value{Type: typeBool, Initialized: true, Offset: -5})
		s.Declare("f", &Value{Type: Type{Kind: Func}, Return: typeI32, Params: []Value{{Type: typeI32}}})

		dump := s.String()
		assert.Contains(t, dump, "Scope 0:")
		assert.Contains(t, dump, "fn(i32) -> i32")
		assert.Contains(t, dump, "i32 (mut)  offset -4")
		assert.Less(t, strings.Index(dump, "  a "), strings.Index(dump, "  b "), "names are sorted")
	})
}

