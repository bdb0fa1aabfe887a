package analyzer

import (
	"github.com/wasmlang/compiler/ast"
	"github.com/wasmlang/compiler/internal/diag"
)

// discoverer carries the state a single analysis run accumulates during
// pass 1 (Pass 1 — discovery).
type discoverer struct {
	scopes    map[ast.Node]*Scope
	evalSites map[ast.Node][]*Scope
	errs      []error
}

func newDiscoverer() *discoverer {
	return &discoverer{scopes: map[ast.Node]*Scope{}, evalSites: map[ast.Node][]*Scope{}}
}

func (d *discoverer) fail(pos ast.Position, format string, args ...interface{}) {
	d.errs = append(d.errs, diag.Redeclaration(diag.Position{Line: pos.Line, Column: pos.Column}, format, args...))
}

// declareIn records name in scope, enforcing the redeclaration rule: a
// `let`/`const`/catch binding conflicting with any prior binding
// (of any kind) already in the same scope is a RedeclarationError. `var`
// and function hoisting may coexist with a prior `var`/function binding
// of the same name, but not with a prior `let`/`const`.
func (d *discoverer) declareIn(scope *Scope, id *ast.Identifier, kind ast.DeclarationKind) *Binding {
	existing, ok := scope.Names[id.Name]
	blockScoped := kind == ast.KindLet || kind == ast.KindConst || kind == ast.KindCatch
	if ok {
		existingBlockScoped := existing.Kind == ast.KindLet || existing.Kind == ast.KindConst || existing.Kind == ast.KindCatch
		if blockScoped || existingBlockScoped {
			d.fail(id.Pos(), "identifier %q has already been declared in this scope", id.Name)
			return existing
		}
		// var/function coexisting with var/function: keep the first
		// binding's declaration site.
		return existing
	}
	b := scope.declare(id.Name, kind, id.Pos())
	b.declNode = id
	return b
}

// hoistInto scans n for `var` and function declarations reachable
// without crossing a nested function boundary, registering each in
// scope — the nearest enclosing function or program scope, since
// `var`/function declarations hoist past any block they're nested in.
func (d *discoverer) hoistInto(scope *Scope, n ast.Node) {
	switch v := n.(type) {
	case *ast.Program:
		for _, s := range v.Body {
			d.hoistInto(scope, s)
		}
	case *ast.BlockStatement:
		for _, s := range v.Body {
			d.hoistInto(scope, s)
		}
	case *ast.VariableDeclaration:
		if v.Kind == ast.KindVar {
			for _, decl := range v.Declarations {
				if decl.Id != nil {
					d.declareIn(scope, decl.Id, ast.KindVar)
				}
			}
		}
	case *ast.FunctionDeclaration:
		if v.Id != nil {
			d.declareIn(scope, v.Id, ast.KindFunction)
		}
		// Body is its own function scope; not traversed here.
	case *ast.IfStatement:
		if v.Consequent != nil {
			d.hoistInto(scope, v.Consequent)
		}
		if v.Alternate != nil {
			d.hoistInto(scope, v.Alternate)
		}
	case *ast.WhileStatement:
		if v.Body != nil {
			d.hoistInto(scope, v.Body)
		}
	case *ast.DoWhileStatement:
		if v.Body != nil {
			d.hoistInto(scope, v.Body)
		}
	case *ast.ForStatement:
		if v.Init != nil {
			d.hoistInto(scope, v.Init)
		}
		if v.Body != nil {
			d.hoistInto(scope, v.Body)
		}
	case *ast.LabeledStatement:
		if v.Body != nil {
			d.hoistInto(scope, v.Body)
		}
	case *ast.TryStatement:
		if v.Block != nil {
			d.hoistInto(scope, v.Block)
		}
		if v.Handler != nil && v.Handler.Body != nil {
			d.hoistInto(scope, v.Handler.Body)
		}
		if v.Finalizer != nil {
			d.hoistInto(scope, v.Finalizer)
		}
	case *ast.SwitchStatement:
		for _, c := range v.Cases {
			for _, s := range c.Consequent {
				d.hoistInto(scope, s)
			}
		}
	}
}

// discoverStmt builds the scope tree for a statement, declaring
// block-scoped bindings directly and descending into nested
// scope-forming constructs.
func (d *discoverer) discoverStmt(n ast.Node, scope *Scope) {
	if n == nil {
		return
	}
	switch v := n.(type) {
	case *ast.BlockStatement:
		blockScope := newScope(KindBlock, scope, v)
		d.scopes[v] = blockScope
		for _, s := range v.Body {
			d.discoverStmt(s, blockScope)
		}
	case *ast.VariableDeclaration:
		for _, decl := range v.Declarations {
			if v.Kind == ast.KindLet || v.Kind == ast.KindConst {
				if decl.Id != nil {
					d.declareIn(scope, decl.Id, v.Kind)
				}
			}
			if decl.Init != nil {
				d.discoverExpr(decl.Init, scope)
			}
		}
	case *ast.FunctionDeclaration:
		d.discoverFunction(v, &v.Function, scope)
	case *ast.ExpressionStatement:
		d.discoverExpr(v.Expression, scope)
	case *ast.IfStatement:
		d.discoverExpr(v.Test, scope)
		d.discoverStmt(v.Consequent, scope)
		if v.Alternate != nil {
			d.discoverStmt(v.Alternate, scope)
		}
	case *ast.WhileStatement:
		d.discoverExpr(v.Test, scope)
		d.discoverStmt(v.Body, scope)
	case *ast.DoWhileStatement:
		d.discoverStmt(v.Body, scope)
		d.discoverExpr(v.Test, scope)
	case *ast.ForStatement:
		d.discoverFor(v, scope)
	case *ast.ReturnStatement:
		if v.Argument != nil {
			d.discoverExpr(v.Argument, scope)
		}
	case *ast.BreakStatement, *ast.ContinueStatement:
		// No declarations or references to resolve.
	case *ast.LabeledStatement:
		d.discoverStmt(v.Body, scope)
	case *ast.ThrowStatement:
		d.discoverExpr(v.Argument, scope)
	case *ast.TryStatement:
		d.discoverStmt(v.Block, scope)
		if v.Handler != nil {
			d.discoverCatch(v.Handler, scope)
		}
		if v.Finalizer != nil {
			d.discoverStmt(v.Finalizer, scope)
		}
	case *ast.SwitchStatement:
		d.discoverSwitch(v, scope)
	default:
		d.errs = append(d.errs, diag.Unsupported(diag.Position{}, "unsupported statement node %q", n.Type()))
	}
}

func (d *discoverer) discoverFor(v *ast.ForStatement, scope *Scope) {
	current := scope
	if decl, ok := v.Init.(*ast.VariableDeclaration); ok && (decl.Kind == ast.KindLet || decl.Kind == ast.KindConst) {
		forScope := newScope(KindBlock, scope, v)
		d.scopes[v] = forScope
		for _, vd := range decl.Declarations {
			if vd.Id != nil {
				d.declareIn(forScope, vd.Id, decl.Kind)
			}
			if vd.Init != nil {
				d.discoverExpr(vd.Init, forScope)
			}
		}
		current = forScope
	} else if v.Init != nil {
		d.discoverStmt(v.Init, scope)
	}
	if v.Test != nil {
		d.discoverExpr(v.Test, current)
	}
	if v.Update != nil {
		d.discoverExpr(v.Update, current)
	}
	d.discoverStmt(v.Body, current)
}

func (d *discoverer) discoverSwitch(v *ast.SwitchStatement, scope *Scope) {
	d.discoverExpr(v.Discriminant, scope)
	switchScope := newScope(KindBlock, scope, v)
	d.scopes[v] = switchScope
	for _, c := range v.Cases {
		if c.Test != nil {
			d.discoverExpr(c.Test, switchScope)
		}
		for _, s := range c.Consequent {
			d.discoverStmt(s, switchScope)
		}
	}
}

func (d *discoverer) discoverCatch(c *ast.CatchClause, scope *Scope) {
	catchScope := newScope(KindCatch, scope, c)
	d.scopes[c] = catchScope
	if c.Param != nil {
		d.declareIn(catchScope, c.Param, ast.KindCatch)
	}
	if c.Body != nil {
		for _, s := range c.Body.Body {
			d.discoverStmt(s, catchScope)
		}
	}
}

// discoverFunction builds the function's own scope: parameters, a
// self-reference binding for named function expressions, hoisted
// `var`/function declarations in its body, then descends into the body
// directly (a function's top-level statements share the function
// scope; they do not form a further nested block).
func (d *discoverer) discoverFunction(owner ast.Node, fn *ast.Function, scope *Scope) {
	funcScope := newScope(KindFunction, scope, owner)
	d.scopes[owner] = funcScope
	if _, isDecl := owner.(*ast.FunctionDeclaration); !isDecl && fn.Id != nil {
		// A named function expression binds its own name inside its own
		// scope so it can call itself recursively.
		d.declareIn(funcScope, fn.Id, ast.KindFunction)
	}
	for _, p := range fn.Params {
		d.declareIn(funcScope, p, ast.KindParam)
	}
	if fn.Body != nil {
		d.hoistInto(funcScope, fn.Body)
		for _, s := range fn.Body.Body {
			d.discoverStmt(s, funcScope)
		}
	}
}

func (d *discoverer) discoverExpr(n ast.Node, scope *Scope) {
	if n == nil {
		return
	}
	switch v := n.(type) {
	case *ast.Identifier, *ast.Literal:
		// References are resolved in pass 2; nothing to discover here.
	case *ast.BinaryExpression:
		d.discoverExpr(v.Left, scope)
		d.discoverExpr(v.Right, scope)
	case *ast.LogicalExpression:
		d.discoverExpr(v.Left, scope)
		d.discoverExpr(v.Right, scope)
	case *ast.UnaryExpression:
		d.discoverExpr(v.Argument, scope)
	case *ast.UpdateExpression:
		d.discoverExpr(v.Argument, scope)
	case *ast.AssignmentExpression:
		d.discoverExpr(v.Left, scope)
		d.discoverExpr(v.Right, scope)
	case *ast.ConditionalExpression:
		d.discoverExpr(v.Test, scope)
		d.discoverExpr(v.Consequent, scope)
		d.discoverExpr(v.Alternate, scope)
	case *ast.CallExpression:
		d.discoverExpr(v.Callee, scope)
		for _, a := range v.Arguments {
			d.discoverExpr(a, scope)
		}
		d.recordEvalSite(v, v.Callee, scope)
	case *ast.NewExpression:
		d.discoverExpr(v.Callee, scope)
		for _, a := range v.Arguments {
			d.discoverExpr(a, scope)
		}
		d.recordEvalSite(v, v.Callee, scope)
	case *ast.MemberExpression:
		d.discoverExpr(v.Object, scope)
		if v.Computed {
			d.discoverExpr(v.Property, scope)
		}
	case *ast.ArrayExpression:
		for _, e := range v.Elements {
			if e != nil {
				d.discoverExpr(e, scope)
			}
		}
	case *ast.ObjectExpression:
		for _, p := range v.Properties {
			if p.Computed {
				d.discoverExpr(p.Key, scope)
			}
			d.discoverExpr(p.Value, scope)
		}
	case *ast.FunctionExpression:
		d.discoverFunction(v, &v.Function, scope)
	case *ast.ArrowFunctionExpression:
		d.discoverFunction(v, &v.Function, scope)
	default:
		d.errs = append(d.errs, diag.Unsupported(diag.Position{}, "unsupported expression node %q", n.Type()))
	}
}

// recordEvalSite attaches the scope chain in force at a call to `eval`
// or `Function` (dynamic function construction) as a side channel:
// call sites of eval and dynamic function construction get an
// attachment listing the scopes in force at that point.
func (d *discoverer) recordEvalSite(site ast.Node, callee ast.Node, scope *Scope) {
	id, ok := callee.(*ast.Identifier)
	if !ok || (id.Name != "eval" && id.Name != "Function") {
		return
	}
	var chain []*Scope
	for cur := scope; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	d.evalSites[site] = chain
}
