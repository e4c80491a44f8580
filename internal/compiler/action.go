package compiler

import (
	"fmt"

	"github.com/dave/jennifer/jen"
)

// Expr is one element of an action fragment: either opaque target code
// or a pseudomacro invocation the generator rewrites before emission.
type Expr interface {
	isExpr()
}

type rawExpr struct {
	code jen.Code
}

type macroExpr struct {
	name string
	args []Expr
}

func (rawExpr) isExpr()   {}
func (macroExpr) isExpr() {}

// Raw wraps target code that is emitted unchanged.
func Raw(code jen.Code) Expr {
	return rawExpr{code: code}
}

// Macro builds a pseudomacro invocation. Recognized names are rewritten
// per generator; unknown names pass through as ordinary calls.
func Macro(name string, args ...Expr) Expr {
	return macroExpr{name: name, args: args}
}

// The recognized pseudomacros.
func Escape() Expr       { return Macro("escape") }
func Mark() Expr         { return Macro("mark") }
func Unmark() Expr       { return Macro("unmark") }
func MarkPos() Expr      { return Macro("markpos") }
func BufferPos() Expr    { return Macro("bufferpos") }
func SetBuffer() Expr    { return Macro("setbuffer") }
func RelPos(x Expr) Expr { return Macro("relpos", x) }
func AbsPos(x Expr) Expr { return Macro("abspos", x) }

// Action is an ordered fragment of host statements.
type Action []Expr

// Stmts builds an action from opaque statements.
func Stmts(codes ...jen.Code) Action {
	a := make(Action, len(codes))
	for i, c := range codes {
		a[i] = Raw(c)
	}
	return a
}

// ActionMap binds action names referenced by a machine to fragments.
type ActionMap map[string]Action

// macroScope distinguishes where a fragment is being expanded; escape is
// only meaningful while the scan loop is live.
type macroScope int

const (
	scopeAction macroScope = iota // on a transition
	scopeEOF                      // in an EOF action block
	scopeInit                     // outside the scan loop
)

// macroEnv carries the expansion context: the generator's variable
// names, the scope, and for the goto generator the destination state of
// the transition being decorated.
type macroEnv struct {
	ctx   *CodeGenContext
	scope macroScope
	state int
}

// macroArity maps recognized pseudomacros to their required argument
// count.
var macroArity = map[string]int{
	"escape":    0,
	"mark":      0,
	"unmark":    0,
	"markpos":   0,
	"bufferpos": 0,
	"setbuffer": 0,
	"relpos":    1,
	"abspos":    1,
}

// rewriteAction expands an action fragment into emitted statements.
func rewriteAction(env macroEnv, a Action) ([]jen.Code, error) {
	out := make([]jen.Code, 0, len(a))
	for _, e := range a {
		code, err := rewriteExpr(env, e)
		if err != nil {
			return nil, err
		}
		if code != nil {
			out = append(out, code)
		}
	}
	return out, nil
}

// rewriteExpr expands one expression, recursing into macro arguments.
func rewriteExpr(env macroEnv, e Expr) (jen.Code, error) {
	switch x := e.(type) {
	case rawExpr:
		return x.code, nil
	case macroExpr:
		if want, known := macroArity[x.name]; known && want != len(x.args) {
			return nil, fmt.Errorf("pseudomacro %s takes %d argument(s), got %d", x.name, want, len(x.args))
		}
		return rewriteMacro(env, x)
	}
	return nil, fmt.Errorf("unknown action expression %T", e)
}

func rewriteMacro(env macroEnv, x macroExpr) (jen.Code, error) {
	v := env.ctx.Vars
	buf := jen.Id(v.Buffer)

	switch x.name {
	case "escape":
		switch env.scope {
		case scopeInit:
			return nil, fmt.Errorf("escape used outside an action")
		case scopeEOF:
			return nil, nil // the loop is already over
		}
		if env.ctx.Generator == GeneratorTable {
			return jen.Block(
				jen.Id(v.P).Op("++"),
				jen.Break(),
			), nil
		}
		return jen.Block(
			jen.Id(v.Cs).Op("=").Lit(env.state),
			jen.Id(v.P).Op("++"),
			jen.Goto().Id(exitLabel()),
		), nil

	case "mark":
		return buf.Dot("Mark").Call(jen.Id(v.P)), nil
	case "unmark":
		return buf.Dot("Unmark").Call(), nil
	case "markpos":
		return buf.Dot("MarkPos").Call(), nil
	case "bufferpos":
		return buf.Dot("BufferPos").Call(), nil
	case "setbuffer":
		return buf.Dot("SetBufferPos").Call(jen.Id(v.P)), nil

	case "relpos":
		arg, err := rewriteExpr(env, x.args[0])
		if err != nil {
			return nil, err
		}
		return jen.Parens(arg).Op("-").Add(buf.Clone().Dot("MarkPos").Call()).Op("+").Lit(1), nil
	case "abspos":
		arg, err := rewriteExpr(env, x.args[0])
		if err != nil {
			return nil, err
		}
		return jen.Parens(arg).Op("+").Add(buf.Clone().Dot("MarkPos").Call()).Op("-").Lit(1), nil
	}

	// Unknown macros pass through unchanged, with rewritten arguments.
	args := make([]jen.Code, len(x.args))
	for i, a := range x.args {
		code, err := rewriteExpr(env, a)
		if err != nil {
			return nil, err
		}
		args[i] = code
	}
	return jen.Id(x.name).Call(args...), nil
}
