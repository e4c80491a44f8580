package compiler

import (
	"regexp"
	"strings"
	"testing"
)

// execTrace runs the machine and returns the outcome and the action
// trace.
func execTrace(m *Machine, input string, env map[string]bool) (int, []string) {
	var trace []string
	res := m.Exec([]byte(input), env, func(name string) {
		trace = append(trace, name)
	})
	return res, trace
}

func compilePattern(t *testing.T, pattern string) *Machine {
	t.Helper()
	re, err := ParsePattern(pattern)
	if err != nil {
		t.Fatalf("ParsePattern(%q) error: %v", pattern, err)
	}
	m, err := Compile(re)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", pattern, err)
	}
	return m
}

func TestMachineAgainstStdlibRegexp(t *testing.T) {
	patterns := []string{
		"a*b",
		"(a|b)*abb",
		"a?a?aa",
		"[ab]+",
		"a+b+",
		"(ab|ba)*",
	}
	inputs := enumerate("ab", 4)

	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			m := compilePattern(t, pattern)
			std := regexp.MustCompile("(?s)^(?:" + pattern + ")$")
			for _, s := range inputs {
				want := std.MatchString(s)
				if got := m.Accepts([]byte(s)); got != want {
					t.Errorf("Accepts(%q) = %v, stdlib says %v", s, got, want)
				}
			}
		})
	}
}

// enumerate yields every string over alphabet up to maxLen, including "".
func enumerate(alphabet string, maxLen int) []string {
	out := []string{""}
	frontier := []string{""}
	for i := 0; i < maxLen; i++ {
		var next []string
		for _, s := range frontier {
			for _, c := range alphabet {
				next = append(next, s+string(c))
			}
		}
		out = append(out, next...)
		frontier = next
	}
	return out
}

func TestValidatorContract(t *testing.T) {
	m := compilePattern(t, "a+b")

	tests := []struct {
		input string
		want  int
	}{
		{"ab", MatchOK},
		{"aaab", MatchOK},
		{"aaac", 4}, // first invalid byte, 1-based
		{"aaaa", MatchEOF},
		{"b", 1},
		{"", MatchEOF},
		{"abb", 3},
	}
	for _, tt := range tests {
		if got := m.Exec([]byte(tt.input), nil, nil); got != tt.want {
			t.Errorf("Exec(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}

	// Every failing position k leaves a valid or incomplete prefix.
	for _, tt := range tests {
		if tt.want <= 0 {
			continue
		}
		prefix := tt.input[:tt.want-1]
		if res := m.Exec([]byte(prefix), nil, nil); res > 0 {
			t.Errorf("prefix %q before reported failure is itself invalid at %d", prefix, res)
		}
	}
}

func TestActionOrderingAcrossConcat(t *testing.T) {
	// Two annotated fragments in sequence: the first's exit runs before
	// the second's enter, both on the transition that leaves the first.
	ab := OnExit(OnEnter(Str("ab"), "A"), "B")
	cd := OnExit(OnEnter(Str("cd"), "C"), "D")
	m, err := Compile(Cat(ab, cd))
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	res, trace := execTrace(m, "abcd", nil)
	if res != MatchOK {
		t.Fatalf("Exec = %d, want match", res)
	}
	if got, want := strings.Join(trace, ","), "A,B,C,D"; got != want {
		t.Errorf("action trace = %s, want %s", got, want)
	}
}

func TestActionOrderingNested(t *testing.T) {
	// Outer enter precedes inner enter; inner exit precedes outer exit.
	inner := OnExit(OnEnter(Str("ab"), "enterInner"), "exitInner")
	outer := OnExit(OnEnter(Cat(inner), "enterOuter"), "exitOuter")
	m, err := Compile(outer)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	res, trace := execTrace(m, "ab", nil)
	if res != MatchOK {
		t.Fatalf("Exec = %d, want match", res)
	}
	want := "enterOuter,enterInner,exitInner,exitOuter"
	if got := strings.Join(trace, ","); got != want {
		t.Errorf("action trace = %s, want %s", got, want)
	}
}

func TestEOFRunsExitActionsInDeclaredOrder(t *testing.T) {
	re := OnExit(Str("ok"), "first", "second")
	m, err := Compile(re)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	res, trace := execTrace(m, "ok", nil)
	if res != MatchOK {
		t.Fatalf("Exec = %d, want match", res)
	}
	if got, want := strings.Join(trace, ","), "first,second"; got != want {
		t.Errorf("EOF trace = %s, want %s", got, want)
	}
}

func TestAllActionsFireOnEveryInnerTransition(t *testing.T) {
	header := OnAll(Rep1(Range('a', 'z')), "h")
	seq := OnAll(Rep1(Class(NewByteSet('A', 'C', 'G', 'T'))), "s")
	record := Cat(Byte('>'), header, Byte('\n'), Rep1(Cat(seq, Byte('\n'))))
	m, err := Compile(Rep1(record))
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	input := ">abc\nACGT\nACGT\n>de\nGGGG\n"
	res, trace := execTrace(m, input, nil)
	if res != MatchOK {
		t.Fatalf("Exec(%q) = %d, want match", input, res)
	}
	want := strings.Repeat("h", 3) + strings.Repeat("s", 8) +
		strings.Repeat("h", 2) + strings.Repeat("s", 4)
	if got := strings.Join(trace, ""); got != want {
		t.Errorf("trace = %s, want %s", got, want)
	}
}

func TestFinalActionsFireOnLastByte(t *testing.T) {
	re := Cat(OnFinal(Alt(Str("a"), Str("bc")), "F"), Byte('!'))
	m, err := Compile(re)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	for _, input := range []string{"a!", "bc!"} {
		res, trace := execTrace(m, input, nil)
		if res != MatchOK {
			t.Fatalf("Exec(%q) = %d, want match", input, res)
		}
		if got, want := strings.Join(trace, ","), "F"; got != want {
			t.Errorf("Exec(%q) trace = %s, want %s", input, got, want)
		}
	}
}

func TestFinalOnIndefiniteRegexFails(t *testing.T) {
	tests := []struct {
		name string
		re   *Regex
	}{
		{"star", OnFinal(Rep(Byte('a')), "F")},
		{"trailing star", OnFinal(Cat(Byte('a'), Rep(Byte('b'))), "F")},
		{"epsilon", OnFinal(Epsilon(), "F")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.re); err == nil {
				t.Error("Compile succeeded, want definite-last-byte error")
			}
		})
	}
}

func TestAmbiguousEOFActionsFail(t *testing.T) {
	re := Alt(OnExit(Str("a"), "X"), OnExit(Str("a"), "Y"))
	if _, err := Compile(re); err == nil {
		t.Error("Compile succeeded, want ambiguous EOF actions error")
	}
}

func TestMergedBranchesConcatenateActionsInTreeOrder(t *testing.T) {
	// Both alternatives are live on the first byte; their enter actions
	// run in declaration order on the shared transition.
	re := Alt(OnEnter(Str("a"), "X"), OnEnter(Str("ab"), "Y"))
	m, err := Compile(re)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	res, trace := execTrace(m, "ab", nil)
	if res != MatchOK {
		t.Fatalf("Exec = %d, want match", res)
	}
	if got, want := strings.Join(trace, ","), "X,Y"; got != want {
		t.Errorf("trace = %s, want %s", got, want)
	}
}

func TestIntersectionAndNegation(t *testing.T) {
	// Lowercase words that are not exactly "foo".
	re := Isec(Rep1(Range('a', 'z')), Neg(Str("foo")))
	m, err := Compile(re)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	tests := []struct {
		input string
		want  bool
	}{
		{"foo", false},
		{"fox", true},
		{"f", true},
		{"fooo", true},
		{"", false},
		{"FOO", false},
	}
	for _, tt := range tests {
		if got := m.Accepts([]byte(tt.input)); got != tt.want {
			t.Errorf("Accepts(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDifference(t *testing.T) {
	// Digit strings except those starting with 0.
	re := Diff(Rep1(Range('0', '9')), Cat(Byte('0'), Rep(Range('0', '9'))))
	m, err := Compile(re)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	for _, tt := range []struct {
		input string
		want  bool
	}{
		{"1", true},
		{"10", true},
		{"0", false},
		{"01", false},
		{"", false},
	} {
		if got := m.Accepts([]byte(tt.input)); got != tt.want {
			t.Errorf("Accepts(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPreconditionGatesEntry(t *testing.T) {
	guarded := SetPrecond(OnEnter(Str("a"), "tookGuarded"), "P", PrecondEnter, PolarityTrue)
	m, err := Compile(Alt(guarded, Str("b")))
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !m.HasPreconditions() {
		t.Fatal("HasPreconditions() = false, want true")
	}

	// Guard down: the guarded branch behaves as if absent.
	if res := m.Exec([]byte("a"), map[string]bool{"P": false}, nil); res != 1 {
		t.Errorf("Exec(a, P=false) = %d, want failure at 1", res)
	}
	// The alternative stays reachable either way.
	for _, env := range []map[string]bool{{"P": false}, {"P": true}} {
		if res := m.Exec([]byte("b"), env, nil); res != MatchOK {
			t.Errorf("Exec(b, %v) = %d, want match", env, res)
		}
	}
	// Guard up: the branch matches and its actions fire.
	res, trace := execTrace(m, "a", map[string]bool{"P": true})
	if res != MatchOK {
		t.Fatalf("Exec(a, P=true) = %d, want match", res)
	}
	if got, want := strings.Join(trace, ","), "tookGuarded"; got != want {
		t.Errorf("trace = %s, want %s", got, want)
	}
}

func TestPreconditionAllGatesEveryTransition(t *testing.T) {
	re := SetPrecond(Str("ab"), "Q", PrecondAll, PolarityTrue)
	m, err := Compile(re)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if res := m.Exec([]byte("ab"), map[string]bool{"Q": true}, nil); res != MatchOK {
		t.Errorf("Exec(ab, Q=true) = %d, want match", res)
	}
	if res := m.Exec([]byte("ab"), map[string]bool{"Q": false}, nil); res != 1 {
		t.Errorf("Exec(ab, Q=false) = %d, want failure at 1", res)
	}
}

func TestNegativePolarityGuard(t *testing.T) {
	re := SetPrecond(Str("a"), "P", PrecondEnter, PolarityFalse)
	m, err := Compile(re)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if res := m.Exec([]byte("a"), map[string]bool{"P": true}, nil); res != 1 {
		t.Errorf("Exec(a, P=true) = %d, want failure at 1", res)
	}
	if res := m.Exec([]byte("a"), map[string]bool{"P": false}, nil); res != MatchOK {
		t.Errorf("Exec(a, P=false) = %d, want match", res)
	}
}

func TestStateNumbering(t *testing.T) {
	m := compilePattern(t, "a+b")
	if n := m.NStates(); n < 2 {
		t.Fatalf("NStates() = %d, want at least 2", n)
	}
	if m.IsAccept(1) {
		t.Error("start state accepts for a+b")
	}
	// State ids are contiguous from 1; every id resolves.
	for id := 1; id <= m.NStates(); id++ {
		m.IsAccept(id)
	}
	if m.IsAccept(0) || m.IsAccept(m.NStates()+1) {
		t.Error("out-of-range state ids reported accepting")
	}
}

func TestMinimizationMergesEquivalentStates(t *testing.T) {
	if m := compilePattern(t, "(a|b)*"); m.NStates() != 1 {
		t.Errorf("(a|b)* minimized to %d states, want 1", m.NStates())
	}
	if m := compilePattern(t, "a|b"); m.NStates() != 2 {
		t.Errorf("a|b minimized to %d states, want 2", m.NStates())
	}
}

func TestActionNamesAndEOFAccessors(t *testing.T) {
	re := OnExit(OnEnter(Str("ab"), "start"), "done")
	m, err := Compile(re)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if got := m.ActionNames(); len(got) != 2 || got[0] != "done" || got[1] != "start" {
		t.Errorf("ActionNames() = %v, want [done start]", got)
	}
	found := false
	for id := 1; id <= m.NStates(); id++ {
		if m.IsAccept(id) {
			found = true
			if got := m.EOFActions(id); len(got) != 1 || got[0] != "done" {
				t.Errorf("EOFActions(%d) = %v, want [done]", id, got)
			}
		}
	}
	if !found {
		t.Error("no accepting state found")
	}
}

func TestDotOutput(t *testing.T) {
	m := compilePattern(t, "ab")
	dot := m.Dot()
	for _, want := range []string{"digraph", "doublecircle", "->"} {
		if !strings.Contains(dot, want) {
			t.Errorf("Dot() missing %q:\n%s", want, dot)
		}
	}
}
