package analyzer

import (
	"fmt"

	"github.com/wasmlang/compiler/ast"
)

// assignUniqueNames implements the analyzer's second-pass renaming
// half: for every binding, if its declared name is already visible from an
// enclosing scope, it is renamed to `base#n` for a monotonically
// increasing n; otherwise it keeps its declared name. Declaration sites
// are rewritten in place as each Unique is assigned.
func assignUniqueNames(root *Scope, counter *int) {
	for _, name := range root.Order {
		b := root.Names[name]
		if shadowsOuter(root.Parent, name) {
			*counter++
			b.Unique = fmt.Sprintf("%s#%d", name, *counter)
		} else {
			b.Unique = name
		}
		if b.declNode != nil {
			b.declNode.Name = b.Unique
		}
	}
	for _, child := range root.Children {
		assignUniqueNames(child, counter)
	}
}

func shadowsOuter(scope *Scope, name string) bool {
	_, ok := scope.lookup(name)
	return scope != nil && ok
}

// resolver carries the state pass 2b's reference-rewriting traversal
// needs: the same Info.Scopes map discovery populated, so it can step
// from a scope-forming AST node to its already-built Scope without
// rebuilding the tree.
type resolver struct {
	scopes   map[ast.Node]*Scope
	captures map[*Scope][]string
	captured map[*Scope]map[string]bool
}

// recordCapture appends binding's unique name to capturingFn's environment
// layout the first time capturingFn is seen referencing it, giving the code
// generator a stable, de-duplicated order to both build a closure's
// environment record and declare its hidden cell-pointer parameters.
func (r *resolver) recordCapture(capturingFn *Scope, unique string) {
	if r.captured[capturingFn] == nil {
		r.captured[capturingFn] = map[string]bool{}
	}
	if r.captured[capturingFn][unique] {
		return
	}
	r.captured[capturingFn][unique] = true
	r.captures[capturingFn] = append(r.captures[capturingFn], unique)
}

func (r *resolver) resolveStmt(n ast.Node, scope *Scope) {
	if n == nil {
		return
	}
	switch v := n.(type) {
	case *ast.BlockStatement:
		blockScope := r.scopes[v]
		for _, s := range v.Body {
			r.resolveStmt(s, blockScope)
		}
	case *ast.VariableDeclaration:
		for _, decl := range v.Declarations {
			if decl.Init != nil {
				r.resolveExpr(decl.Init, scope)
			}
		}
	case *ast.FunctionDeclaration:
		r.resolveFunction(v, &v.Function, scope)
	case *ast.ExpressionStatement:
		r.resolveExpr(v.Expression, scope)
	case *ast.IfStatement:
		r.resolveExpr(v.Test, scope)
		r.resolveStmt(v.Consequent, scope)
		if v.Alternate != nil {
			r.resolveStmt(v.Alternate, scope)
		}
	case *ast.WhileStatement:
		r.resolveExpr(v.Test, scope)
		r.resolveStmt(v.Body, scope)
	case *ast.DoWhileStatement:
		r.resolveStmt(v.Body, scope)
		r.resolveExpr(v.Test, scope)
	case *ast.ForStatement:
		r.resolveFor(v, scope)
	case *ast.ReturnStatement:
		if v.Argument != nil {
			r.resolveExpr(v.Argument, scope)
		}
	case *ast.BreakStatement, *ast.ContinueStatement:
	case *ast.LabeledStatement:
		r.resolveStmt(v.Body, scope)
	case *ast.ThrowStatement:
		r.resolveExpr(v.Argument, scope)
	case *ast.TryStatement:
		r.resolveStmt(v.Block, scope)
		if v.Handler != nil {
			r.resolveCatch(v.Handler, scope)
		}
		if v.Finalizer != nil {
			r.resolveStmt(v.Finalizer, scope)
		}
	case *ast.SwitchStatement:
		r.resolveSwitch(v, scope)
	}
}

func (r *resolver) resolveFor(v *ast.ForStatement, scope *Scope) {
	current := scope
	if forScope, ok := r.scopes[v]; ok {
		current = forScope
		if decl, ok := v.Init.(*ast.VariableDeclaration); ok {
			for _, vd := range decl.Declarations {
				if vd.Init != nil {
					r.resolveExpr(vd.Init, forScope)
				}
			}
		}
	} else if v.Init != nil {
		r.resolveStmt(v.Init, scope)
	}
	if v.Test != nil {
		r.resolveExpr(v.Test, current)
	}
	if v.Update != nil {
		r.resolveExpr(v.Update, current)
	}
	r.resolveStmt(v.Body, current)
}

func (r *resolver) resolveSwitch(v *ast.SwitchStatement, scope *Scope) {
	r.resolveExpr(v.Discriminant, scope)
	switchScope := r.scopes[v]
	for _, c := range v.Cases {
		if c.Test != nil {
			r.resolveExpr(c.Test, switchScope)
		}
		for _, s := range c.Consequent {
			r.resolveStmt(s, switchScope)
		}
	}
}

func (r *resolver) resolveCatch(c *ast.CatchClause, scope *Scope) {
	catchScope := r.scopes[c]
	if c.Body != nil {
		for _, s := range c.Body.Body {
			r.resolveStmt(s, catchScope)
		}
	}
}

func (r *resolver) resolveFunction(owner ast.Node, fn *ast.Function, scope *Scope) {
	funcScope := r.scopes[owner]
	if fn.Body != nil {
		for _, s := range fn.Body.Body {
			r.resolveStmt(s, funcScope)
		}
	}
}

func (r *resolver) resolveExpr(n ast.Node, scope *Scope) {
	if n == nil {
		return
	}
	switch v := n.(type) {
	case *ast.Identifier:
		if b, ok := scope.lookup(v.Name); ok {
			v.Name = b.Unique
			homeFn := b.home.functionOrProgramAncestor()
			capturingFn := scope.functionOrProgramAncestor()
			if homeFn.Kind == KindFunction && homeFn != capturingFn {
				b.Captured = true
				r.recordCapture(capturingFn, b.Unique)
			}
		}
		// Unresolved: left as-is, treated as a global access by codegen
		// (Pass 2).
	case *ast.Literal:
	case *ast.BinaryExpression:
		r.resolveExpr(v.Left, scope)
		r.resolveExpr(v.Right, scope)
	case *ast.LogicalExpression:
		r.resolveExpr(v.Left, scope)
		r.resolveExpr(v.Right, scope)
	case *ast.UnaryExpression:
		r.resolveExpr(v.Argument, scope)
	case *ast.UpdateExpression:
		r.resolveExpr(v.Argument, scope)
	case *ast.AssignmentExpression:
		r.resolveExpr(v.Left, scope)
		r.resolveExpr(v.Right, scope)
	case *ast.ConditionalExpression:
		r.resolveExpr(v.Test, scope)
		r.resolveExpr(v.Consequent, scope)
		r.resolveExpr(v.Alternate, scope)
	case *ast.CallExpression:
		r.resolveExpr(v.Callee, scope)
		for _, a := range v.Arguments {
			r.resolveExpr(a, scope)
		}
	case *ast.NewExpression:
		r.resolveExpr(v.Callee, scope)
		for _, a := range v.Arguments {
			r.resolveExpr(a, scope)
		}
	case *ast.MemberExpression:
		r.resolveExpr(v.Object, scope)
		if v.Computed {
			r.resolveExpr(v.Property, scope)
		}
	case *ast.ArrayExpression:
		for _, e := range v.Elements {
			if e != nil {
				r.resolveExpr(e, scope)
			}
		}
	case *ast.ObjectExpression:
		for _, p := range v.Properties {
			if p.Computed {
				r.resolveExpr(p.Key, scope)
			}
			r.resolveExpr(p.Value, scope)
		}
	case *ast.FunctionExpression:
		r.resolveFunction(v, &v.Function, scope)
	case *ast.ArrowFunctionExpression:
		r.resolveFunction(v, &v.Function, scope)
	}
}
