package ast

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// FromJSON decodes a JSON-encoded ESTree document into a Program. It
// peeks each node's "type" field with gjson before committing to a
// concrete decode, so a document containing node kinds this compiler
// does not support fails fast with a precise error instead of a generic
// unmarshal mismatch (Duck-typed shape of the AST).
func FromJSON(data []byte) (*Program, error) {
	root := gjson.ParseBytes(data)
	if !root.Exists() {
		return nil, fmt.Errorf("ast: empty or invalid JSON document")
	}
	if t := root.Get("type").String(); t != "Program" {
		return nil, fmt.Errorf("ast: root node type %q, want Program", t)
	}
	body, err := decodeNodeList(root.Get("body"))
	if err != nil {
		return nil, err
	}
	return &Program{base: base{Position: posOf(root)}, Body: body}, nil
}

func posOf(v gjson.Result) Position {
	return Position{
		Line:   int(v.Get("loc.start.line").Int()),
		Column: int(v.Get("loc.start.column").Int()),
	}
}

func decodeNodeList(v gjson.Result) ([]Node, error) {
	var out []Node
	var decodeErr error
	v.ForEach(func(_, item gjson.Result) bool {
		n, err := decodeNode(item)
		if err != nil {
			decodeErr = err
			return false
		}
		if n != nil {
			out = append(out, n)
		}
		return true
	})
	return out, decodeErr
}

// decodeNode dispatches on v's "type" field. A nil v (missing optional
// child, e.g. an empty `for(;;)` clause) decodes to a nil Node, nil error.
func decodeNode(v gjson.Result) (Node, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	b := base{Position: posOf(v)}
	switch t := v.Get("type").String(); t {
	case "Identifier":
		return &Identifier{base: b, Name: v.Get("name").String()}, nil
	case "Literal":
		return decodeLiteral(v, b)
	case "Program":
		body, err := decodeNodeList(v.Get("body"))
		if err != nil {
			return nil, err
		}
		return &Program{base: b, Body: body}, nil
	case "BlockStatement":
		body, err := decodeNodeList(v.Get("body"))
		if err != nil {
			return nil, err
		}
		return &BlockStatement{base: b, Body: body}, nil
	case "ExpressionStatement":
		expr, err := decodeNode(v.Get("expression"))
		if err != nil {
			return nil, err
		}
		return &ExpressionStatement{base: b, Expression: expr}, nil
	case "VariableDeclaration":
		return decodeVariableDeclaration(v, b)
	case "FunctionDeclaration":
		fn, err := decodeFunction(v, b)
		if err != nil {
			return nil, err
		}
		return &FunctionDeclaration{Function: *fn}, nil
	case "FunctionExpression":
		fn, err := decodeFunction(v, b)
		if err != nil {
			return nil, err
		}
		return &FunctionExpression{Function: *fn}, nil
	case "ArrowFunctionExpression":
		fn, err := decodeFunction(v, b)
		if err != nil {
			return nil, err
		}
		return &ArrowFunctionExpression{Function: *fn}, nil
	case "BinaryExpression":
		left, err := decodeNode(v.Get("left"))
		if err != nil {
			return nil, err
		}
		right, err := decodeNode(v.Get("right"))
		if err != nil {
			return nil, err
		}
		return &BinaryExpression{base: b, Operator: v.Get("operator").String(), Left: left, Right: right}, nil
	case "LogicalExpression":
		left, err := decodeNode(v.Get("left"))
		if err != nil {
			return nil, err
		}
		right, err := decodeNode(v.Get("right"))
		if err != nil {
			return nil, err
		}
		return &LogicalExpression{base: b, Operator: v.Get("operator").String(), Left: left, Right: right}, nil
	case "UnaryExpression":
		arg, err := decodeNode(v.Get("argument"))
		if err != nil {
			return nil, err
		}
		return &UnaryExpression{base: b, Operator: v.Get("operator").String(), Argument: arg}, nil
	case "UpdateExpression":
		arg, err := decodeNode(v.Get("argument"))
		if err != nil {
			return nil, err
		}
		return &UpdateExpression{base: b, Operator: v.Get("operator").String(), Prefix: v.Get("prefix").Bool(), Argument: arg}, nil
	case "AssignmentExpression":
		left, err := decodeNode(v.Get("left"))
		if err != nil {
			return nil, err
		}
		right, err := decodeNode(v.Get("right"))
		if err != nil {
			return nil, err
		}
		return &AssignmentExpression{base: b, Operator: v.Get("operator").String(), Left: left, Right: right}, nil
	case "ConditionalExpression":
		test, err := decodeNode(v.Get("test"))
		if err != nil {
			return nil, err
		}
		cons, err := decodeNode(v.Get("consequent"))
		if err != nil {
			return nil, err
		}
		alt, err := decodeNode(v.Get("alternate"))
		if err != nil {
			return nil, err
		}
		return &ConditionalExpression{base: b, Test: test, Consequent: cons, Alternate: alt}, nil
	case "CallExpression":
		callee, err := decodeNode(v.Get("callee"))
		if err != nil {
			return nil, err
		}
		args, err := decodeNodeList(v.Get("arguments"))
		if err != nil {
			return nil, err
		}
		return &CallExpression{base: b, Callee: callee, Arguments: args}, nil
	case "NewExpression":
		callee, err := decodeNode(v.Get("callee"))
		if err != nil {
			return nil, err
		}
		args, err := decodeNodeList(v.Get("arguments"))
		if err != nil {
			return nil, err
		}
		return &NewExpression{base: b, Callee: callee, Arguments: args}, nil
	case "MemberExpression":
		obj, err := decodeNode(v.Get("object"))
		if err != nil {
			return nil, err
		}
		prop, err := decodeNode(v.Get("property"))
		if err != nil {
			return nil, err
		}
		return &MemberExpression{base: b, Object: obj, Property: prop, Computed: v.Get("computed").Bool()}, nil
	case "ArrayExpression":
		elems, err := decodeNodeList(v.Get("elements"))
		if err != nil {
			return nil, err
		}
		return &ArrayExpression{base: b, Elements: elems}, nil
	case "ObjectExpression":
		return decodeObjectExpression(v, b)
	case "IfStatement":
		test, err := decodeNode(v.Get("test"))
		if err != nil {
			return nil, err
		}
		cons, err := decodeNode(v.Get("consequent"))
		if err != nil {
			return nil, err
		}
		alt, err := decodeNode(v.Get("alternate"))
		if err != nil {
			return nil, err
		}
		return &IfStatement{base: b, Test: test, Consequent: cons, Alternate: alt}, nil
	case "WhileStatement":
		test, err := decodeNode(v.Get("test"))
		if err != nil {
			return nil, err
		}
		body, err := decodeNode(v.Get("body"))
		if err != nil {
			return nil, err
		}
		return &WhileStatement{base: b, Test: test, Body: body}, nil
	case "DoWhileStatement":
		test, err := decodeNode(v.Get("test"))
		if err != nil {
			return nil, err
		}
		body, err := decodeNode(v.Get("body"))
		if err != nil {
			return nil, err
		}
		return &DoWhileStatement{base: b, Test: test, Body: body}, nil
	case "ForStatement":
		return decodeForStatement(v, b)
	case "ReturnStatement":
		arg, err := decodeNode(v.Get("argument"))
		if err != nil {
			return nil, err
		}
		return &ReturnStatement{base: b, Argument: arg}, nil
	case "BreakStatement":
		return &BreakStatement{base: b, Label: v.Get("label.name").String()}, nil
	case "ContinueStatement":
		return &ContinueStatement{base: b, Label: v.Get("label.name").String()}, nil
	case "LabeledStatement":
		body, err := decodeNode(v.Get("body"))
		if err != nil {
			return nil, err
		}
		return &LabeledStatement{base: b, Label: v.Get("label.name").String(), Body: body}, nil
	case "ThrowStatement":
		arg, err := decodeNode(v.Get("argument"))
		if err != nil {
			return nil, err
		}
		return &ThrowStatement{base: b, Argument: arg}, nil
	case "TryStatement":
		return decodeTryStatement(v, b)
	case "SwitchStatement":
		return decodeSwitchStatement(v, b)
	default:
		return nil, fmt.Errorf("ast: unsupported node type %q at %d:%d", t, b.Position.Line, b.Position.Column)
	}
}

func decodeLiteral(v gjson.Result, b base) (Node, error) {
	raw := v.Get("value")
	switch {
	case v.Get("regex").Exists():
		return &Literal{base: b, Kind: LiteralRegex, Regex: v.Get("regex.pattern").String()}, nil
	case raw.Type == gjson.Null:
		return &Literal{base: b, Kind: LiteralNull}, nil
	case raw.Type == gjson.True || raw.Type == gjson.False:
		return &Literal{base: b, Kind: LiteralBoolean, Bool: raw.Bool()}, nil
	case raw.Type == gjson.Number:
		return &Literal{base: b, Kind: LiteralNumber, Num: raw.Float()}, nil
	case raw.Type == gjson.String:
		return &Literal{base: b, Kind: LiteralString, Str: raw.String()}, nil
	default:
		return nil, fmt.Errorf("ast: unsupported literal value at %d:%d", b.Position.Line, b.Position.Column)
	}
}

func declKind(s string) DeclarationKind {
	switch s {
	case "let":
		return KindLet
	case "const":
		return KindConst
	default:
		return KindVar
	}
}

func decodeVariableDeclaration(v gjson.Result, b base) (Node, error) {
	var decls []*VariableDeclarator
	var decodeErr error
	v.Get("declarations").ForEach(func(_, d gjson.Result) bool {
		id, err := decodeNode(d.Get("id"))
		if err != nil {
			decodeErr = err
			return false
		}
		ident, ok := id.(*Identifier)
		if !ok {
			decodeErr = fmt.Errorf("ast: unsupported destructuring pattern at %d:%d", b.Position.Line, b.Position.Column)
			return false
		}
		init, err := decodeNode(d.Get("init"))
		if err != nil {
			decodeErr = err
			return false
		}
		decls = append(decls, &VariableDeclarator{base: posBase(d), Id: ident, Init: init})
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return &VariableDeclaration{base: b, Kind: declKind(v.Get("kind").String()), Declarations: decls}, nil
}

func posBase(v gjson.Result) base { return base{Position: posOf(v)} }

func decodeFunction(v gjson.Result, b base) (*Function, error) {
	var id *Identifier
	if idNode, err := decodeNode(v.Get("id")); err != nil {
		return nil, err
	} else if idNode != nil {
		id = idNode.(*Identifier)
	}
	var params []*Identifier
	var decodeErr error
	v.Get("params").ForEach(func(_, p gjson.Result) bool {
		n, err := decodeNode(p)
		if err != nil {
			decodeErr = err
			return false
		}
		ident, ok := n.(*Identifier)
		if !ok {
			decodeErr = fmt.Errorf("ast: unsupported parameter pattern at %d:%d", b.Position.Line, b.Position.Column)
			return false
		}
		params = append(params, ident)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	bodyNode, err := decodeNode(v.Get("body"))
	if err != nil {
		return nil, err
	}
	bodyBlock, ok := bodyNode.(*BlockStatement)
	if !ok {
		// Arrow functions may have an expression body; wrap it as an
		// implicit return so the rest of the pipeline only ever sees
		// block bodies.
		bodyBlock = &BlockStatement{
			base: posBase(v.Get("body")),
			Body: []Node{&ReturnStatement{base: posBase(v.Get("body")), Argument: bodyNode}},
		}
	}
	return &Function{
		base:      b,
		Id:        id,
		Params:    params,
		Body:      bodyBlock,
		Async:     v.Get("async").Bool(),
		Generator: v.Get("generator").Bool(),
	}, nil
}

func decodeObjectExpression(v gjson.Result, b base) (Node, error) {
	var props []*Property
	var decodeErr error
	v.Get("properties").ForEach(func(_, p gjson.Result) bool {
		key, err := decodeNode(p.Get("key"))
		if err != nil {
			decodeErr = err
			return false
		}
		val, err := decodeNode(p.Get("value"))
		if err != nil {
			decodeErr = err
			return false
		}
		props = append(props, &Property{base: posBase(p), Key: key, Value: val, Computed: p.Get("computed").Bool()})
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return &ObjectExpression{base: b, Properties: props}, nil
}

func decodeForStatement(v gjson.Result, b base) (Node, error) {
	init, err := decodeNode(v.Get("init"))
	if err != nil {
		return nil, err
	}
	test, err := decodeNode(v.Get("test"))
	if err != nil {
		return nil, err
	}
	update, err := decodeNode(v.Get("update"))
	if err != nil {
		return nil, err
	}
	body, err := decodeNode(v.Get("body"))
	if err != nil {
		return nil, err
	}
	return &ForStatement{base: b, Init: init, Test: test, Update: update, Body: body}, nil
}

func decodeTryStatement(v gjson.Result, b base) (Node, error) {
	blockNode, err := decodeNode(v.Get("block"))
	if err != nil {
		return nil, err
	}
	var handler *CatchClause
	if h := v.Get("handler"); h.Exists() {
		var param *Identifier
		if pn, err := decodeNode(h.Get("param")); err != nil {
			return nil, err
		} else if pn != nil {
			param = pn.(*Identifier)
		}
		hbodyNode, err := decodeNode(h.Get("body"))
		if err != nil {
			return nil, err
		}
		handler = &CatchClause{base: posBase(h), Param: param, Body: hbodyNode.(*BlockStatement)}
	}
	var finalizer *BlockStatement
	if f := v.Get("finalizer"); f.Exists() {
		fn, err := decodeNode(f)
		if err != nil {
			return nil, err
		}
		finalizer = fn.(*BlockStatement)
	}
	return &TryStatement{base: b, Block: blockNode.(*BlockStatement), Handler: handler, Finalizer: finalizer}, nil
}

func decodeSwitchStatement(v gjson.Result, b base) (Node, error) {
	disc, err := decodeNode(v.Get("discriminant"))
	if err != nil {
		return nil, err
	}
	var cases []*SwitchCase
	var decodeErr error
	v.Get("cases").ForEach(func(_, c gjson.Result) bool {
		test, err := decodeNode(c.Get("test"))
		if err != nil {
			decodeErr = err
			return false
		}
		cons, err := decodeNodeList(c.Get("consequent"))
		if err != nil {
			decodeErr = err
			return false
		}
		cases = append(cases, &SwitchCase{base: posBase(c), Test: test, Consequent: cons})
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return &SwitchStatement{base: b, Discriminant: disc, Cases: cases}, nil
}
