package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolTable is a stack of scopes mapping names to descriptors. The
// outermost scope holds the functions; every block, function body and loop
// header pushes one more.
//
// Entries are pointers, so a pass that updates a descriptor it looked up
// (deferred inference, frame offsets) is seen by every later lookup.
type SymbolTable struct {
	scopes []map[string]*Value
}

// Scope is the guard returned by PushScope. Closing it pops the scope.
type Scope struct {
	table *SymbolTable
	depth int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// PushScope opens a new innermost scope. Use it as
//
//	defer syms.PushScope().Close()
func (s *SymbolTable) PushScope() *Scope {
	s.scopes = append(s.scopes, make(map[string]*Value))
	return &Scope{table: s, depth: len(s.scopes)}
}

// PopScope discards the innermost scope.
func (s *SymbolTable) PopScope() {
	if len(s.scopes) == 0 {
		panic("PopScope called with no open scope")
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// Close pops the guarded scope. Scopes must close in LIFO order.
func (sc *Scope) Close() {
	if sc.table.ScopeDepth() != sc.depth {
		panic(fmt.Sprintf("scope closed out of order: depth %d, innermost %d", sc.depth, sc.table.ScopeDepth()))
	}
	sc.table.PopScope()
}

// ScopeDepth returns the number of open scopes.
func (s *SymbolTable) ScopeDepth() int {
	return len(s.scopes)
}

// Declare binds name in the CURRENT scope. It returns false when the name is
// already bound there; outer bindings may be shadowed freely.
func (s *SymbolTable) Declare(name string, v *Value) bool {
	if len(s.scopes) == 0 {
		panic("Declare called with no open scope")
	}
	current := s.scopes[len(s.scopes)-1]
	if _, ok := current[name]; ok {
		return false
	}
	current[name] = v
	return true
}

// Update replaces the nearest binding of name. It returns false when name is
// not bound in any scope.
func (s *SymbolTable) Update(name string, v *Value) bool {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if _, ok := s.scopes[i][name]; ok {
			s.scopes[i][name] = v
			return true
		}
	}
	return false
}

// Lookup returns the nearest binding of name, searching innermost first.
func (s *SymbolTable) Lookup(name string) (*Value, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// String returns a deterministically ordered dump of the open scopes.
func (s *SymbolTable) String() string {
	if len(s.scopes) == 0 {
		return "Scopes: (empty)\n"
	}
	var sb strings.Builder
	for i, scope := range s.scopes {
		fmt.Fprintf(&sb, "Scope %d:\n", i)
		names := make([]string, 0, len(scope))
		for name := range scope {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v := scope[name]
			if v.IsFunction() {
				fmt.Fprintf(&sb, "  %-20s  %s\n", name, v)
				continue
			}
			fmt.Fprintf(&sb, "  %-20s  %s  offset %d\n", name, v, v.Offset)
		}
	}
	return sb.String()
}
