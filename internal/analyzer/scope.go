// Package analyzer implements the two-pass semantic analyzer: scope
// discovery followed by binding disambiguation. It mutates the tree
// it is given in place — declaration and reference Identifier nodes
// are renamed to their globally unique form — so the code generator
// never has to repeat scope lookups.
package analyzer

import (
	"github.com/wasmlang/compiler/ast"
)

// Kind distinguishes the four shapes of scope-forming node a Scope
// record is attached to.
type Kind int

const (
	KindProgram Kind = iota
	KindFunction
	KindBlock
	KindCatch
)

// Binding is one entry of a Scope's declaration table (Scope
// record): the declaration kind, its source position, and — once pass 2
// has run — its disambiguated unique name.
type Binding struct {
	Name   string
	Unique string
	Kind   ast.DeclarationKind
	Pos    ast.Position

	// Captured is set when some reference to this binding is resolved
	// from within a nested function scope relative to the one the
	// binding was declared in (Closures: "When the analyzer
	// flags a variable as captured by an inner function, the generator
	// allocates a heap cell ... instead of a Wasm local").
	Captured bool

	// home is the binding's own scope, recorded so capture detection can
	// compare it against a reference's enclosing function.
	home *Scope

	// declNode is the Identifier node at the binding's declaration site;
	// pass 2 rewrites its Name in place once Unique is assigned.
	declNode *ast.Identifier
}

// Scope is attached to each scope-forming node discovered in pass 1.
// Names map preserves insertion order via Order so pass 2's renaming is
// deterministic across runs of the same tree.
type Scope struct {
	Kind     Kind
	Parent   *Scope
	Node     ast.Node
	Names    map[string]*Binding
	Order    []string
	Children []*Scope
}

func newScope(kind Kind, parent *Scope, node ast.Node) *Scope {
	s := &Scope{Kind: kind, Parent: parent, Node: node, Names: map[string]*Binding{}}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// declare records a new binding in s. The caller has already decided s
// is the correct (possibly hoisted) target scope.
func (s *Scope) declare(name string, kind ast.DeclarationKind, pos ast.Position) *Binding {
	b := &Binding{Name: name, Kind: kind, Pos: pos, home: s}
	s.Names[name] = b
	s.Order = append(s.Order, name)
	return b
}

// functionOrProgramAncestor walks up to the nearest enclosing function or
// program scope, the hoist target for `var` and function declarations
// (Pass 1).
func (s *Scope) functionOrProgramAncestor() *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == KindFunction || cur.Kind == KindProgram {
			return cur
		}
	}
	return s
}

// lookup resolves name by walking outward from s, innermost scope first
// (Pass 2: "References to identifiers are rewritten ...
// using lexical scope lookup (innermost first)").
func (s *Scope) lookup(name string) (*Binding, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if b, ok := cur.Names[name]; ok {
			return b, true
		}
	}
	return nil, false
}
