package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dave/jennifer/jen"
)

func render(t *testing.T, code jen.Code) string {
	t.Helper()
	return fmt.Sprintf("%#v", code)
}

func TestMacroArity(t *testing.T) {
	env := macroEnv{ctx: NewCodeGenContext(), scope: scopeAction, state: 1}

	tests := []struct {
		name string
		expr Expr
		ok   bool
	}{
		{"relpos wants one arg", Macro("relpos"), false},
		{"abspos wants one arg", Macro("abspos", Raw(jen.Id("x")), Raw(jen.Id("y"))), false},
		{"mark wants none", Macro("mark", Raw(jen.Id("p"))), false},
		{"escape wants none", Macro("escape", Raw(jen.Id("p"))), false},
		{"mark ok", Mark(), true},
		{"relpos ok", RelPos(Raw(jen.Id("p"))), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rewriteExpr(env, tt.expr)
			if tt.ok && err != nil {
				t.Errorf("rewriteExpr error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("rewriteExpr succeeded, want arity error")
			}
		})
	}
}

func TestEscapeOutsideActionFails(t *testing.T) {
	env := macroEnv{ctx: NewCodeGenContext(), scope: scopeInit}
	if _, err := rewriteExpr(env, Escape()); err == nil {
		t.Error("escape in init scope succeeded, want error")
	}
}

func TestEscapeExpansionPerGenerator(t *testing.T) {
	tableEnv := macroEnv{
		ctx:   NewCodeGenContext(WithGenerator(GeneratorTable)),
		scope: scopeAction,
	}
	code, err := rewriteExpr(tableEnv, Escape())
	if err != nil {
		t.Fatalf("rewriteExpr error: %v", err)
	}
	src := render(t, code)
	for _, want := range []string{"p++", "break"} {
		if !strings.Contains(src, want) {
			t.Errorf("table escape = %s, missing %q", src, want)
		}
	}

	gotoEnv := macroEnv{
		ctx:   NewCodeGenContext(WithGenerator(GeneratorGoto)),
		scope: scopeAction,
		state: 4,
	}
	code, err = rewriteExpr(gotoEnv, Escape())
	if err != nil {
		t.Fatalf("rewriteExpr error: %v", err)
	}
	src = render(t, code)
	for _, want := range []string{"cs = 4", "p++", "goto st_exit"} {
		if !strings.Contains(src, want) {
			t.Errorf("goto escape = %s, missing %q", src, want)
		}
	}
}

func TestEscapeAtEOFIsNoop(t *testing.T) {
	env := macroEnv{ctx: NewCodeGenContext(), scope: scopeEOF}
	code, err := rewriteExpr(env, Escape())
	if err != nil {
		t.Fatalf("rewriteExpr error: %v", err)
	}
	if code != nil {
		t.Errorf("EOF escape expanded to %s, want nothing", render(t, code))
	}
}

func TestBufferMacros(t *testing.T) {
	env := macroEnv{ctx: NewCodeGenContext(), scope: scopeAction, state: 1}

	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"mark", Mark(), "buffer.Mark(p)"},
		{"unmark", Unmark(), "buffer.Unmark()"},
		{"markpos", MarkPos(), "buffer.MarkPos()"},
		{"bufferpos", BufferPos(), "buffer.BufferPos()"},
		{"setbuffer", SetBuffer(), "buffer.SetBufferPos(p)"},
		{"relpos", RelPos(Raw(jen.Id("p"))), "(p) - buffer.MarkPos() + 1"},
		{"abspos", AbsPos(Raw(jen.Id("x"))), "(x) + buffer.MarkPos() - 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := rewriteExpr(env, tt.expr)
			if err != nil {
				t.Fatalf("rewriteExpr error: %v", err)
			}
			if got := render(t, code); got != tt.want {
				t.Errorf("rendered %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnknownMacroPassesThrough(t *testing.T) {
	env := macroEnv{ctx: NewCodeGenContext(), scope: scopeAction, state: 1}
	code, err := rewriteExpr(env, Macro("record_header", RelPos(Raw(jen.Id("p")))))
	if err != nil {
		t.Fatalf("rewriteExpr error: %v", err)
	}
	got := render(t, code)
	want := "record_header((p) - buffer.MarkPos() + 1)"
	if got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestCustomVariableNamesFlowThroughMacros(t *testing.T) {
	vars := DefaultVarNames()
	vars.P = "pos"
	vars.Buffer = "ring"
	env := macroEnv{
		ctx:   NewCodeGenContext(WithVarNames(vars)),
		scope: scopeAction,
	}
	code, err := rewriteExpr(env, Mark())
	if err != nil {
		t.Fatalf("rewriteExpr error: %v", err)
	}
	if got, want := render(t, code), "ring.Mark(pos)"; got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestRewriteActionKeepsStatementOrder(t *testing.T) {
	env := macroEnv{ctx: NewCodeGenContext(), scope: scopeAction, state: 2}
	a := Action{
		Raw(jen.Id("n").Op("++")),
		Mark(),
		Raw(jen.Id("total").Op("+=").Id("n")),
	}
	codes, err := rewriteAction(env, a)
	if err != nil {
		t.Fatalf("rewriteAction error: %v", err)
	}
	if len(codes) != 3 {
		t.Fatalf("rewriteAction returned %d statements, want 3", len(codes))
	}
	joined := render(t, codes[0]) + "\n" + render(t, codes[1]) + "\n" + render(t, codes[2])
	want := "n++\nbuffer.Mark(p)\ntotal += n"
	if joined != want {
		t.Errorf("statements = %q, want %q", joined, want)
	}
}
