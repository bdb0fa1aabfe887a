package analyzer

import (
	"github.com/wasmlang/compiler/ast"
)

// Info is the result of a completed analysis: the scope tree keyed by
// every scope-forming node, plus the eval/dynamic-function-construction
// side channel.
type Info struct {
	// Program is the root scope.
	Program *Scope
	// Scopes maps every scope-forming AST node (Program, BlockStatement,
	// ForStatement with a let/const init, SwitchStatement, CatchClause,
	// FunctionDeclaration/Expression/ArrowFunctionExpression) to its
	// Scope.
	Scopes map[ast.Node]*Scope
	// EvalSites maps a CallExpression/NewExpression invoking `eval` or
	// `Function` to the chain of scopes in force at that call, innermost
	// first (side-channel attachment).
	EvalSites map[ast.Node][]*Scope
	// Captures maps a function scope to the ordered, de-duplicated list
	// of outer bindings (by unique name) it references — the closure
	// environment layout the code generator needs to both construct a
	// closure value and receive captured cell pointers.
	Captures map[*Scope][]string
}

// BindingsByUniqueName flattens the scope tree into a single lookup
// table keyed by each binding's disambiguated name, which is what the
// code generator addresses locals and cells by after pass 2 has run.
func (info *Info) BindingsByUniqueName() map[string]*Binding {
	out := map[string]*Binding{}
	var walk func(s *Scope)
	walk = func(s *Scope) {
		for _, name := range s.Order {
			b := s.Names[name]
			out[b.Unique] = b
		}
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(info.Program)
	return out
}

// Analyze runs the two-pass semantic analyzer over prog, mutating
// every Identifier in place to its disambiguated unique name.
// Analysis is idempotent: running it again over the same (now-mutated)
// tree makes no further changes, since no renamed binding can still
// shadow an enclosing one.
func Analyze(prog *ast.Program) (*Info, error) {
	d := newDiscoverer()
	programScope := newScope(KindProgram, nil, prog)
	d.scopes[prog] = programScope
	d.hoistInto(programScope, prog)
	for _, s := range prog.Body {
		d.discoverStmt(s, programScope)
	}
	if len(d.errs) > 0 {
		return nil, d.errs[0]
	}

	counter := 0
	assignUniqueNames(programScope, &counter)

	r := &resolver{scopes: d.scopes, captures: map[*Scope][]string{}, captured: map[*Scope]map[string]bool{}}
	for _, s := range prog.Body {
		r.resolveStmt(s, programScope)
	}

	return &Info{Program: programScope, Scopes: d.scopes, EvalSites: d.evalSites, Captures: r.captures}, nil
}

// Lookup resolves name starting from scope, innermost first — the same
// rule pass 2 applies to references (Pass 2).
func Lookup(scope *Scope, name string) (*Binding, bool) {
	if scope == nil {
		return nil, false
	}
	return scope.lookup(name)
}
