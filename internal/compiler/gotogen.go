package compiler

import (
	"sort"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/digital-carver/automago/internal/codegen"
)

func exitLabel() string { return codegen.ExitLabel }

// gotoGen emits the machine as a labeled block per state with direct
// jumps, routing transitions that carry actions through per-destination
// prologue labels.
type gotoGen struct {
	ctx     *CodeGenContext
	m       *Machine
	actions ActionMap

	// prologues[state] lists the distinct action lists on edges into
	// state; the index is the prologue label suffix.
	prologues map[int][][]string
	prologue  map[string]int // state \x00 joined-names -> index
	incoming  map[int]bool
}

func newGotoGen(ctx *CodeGenContext, m *Machine, actions ActionMap) *gotoGen {
	g := &gotoGen{
		ctx:       ctx,
		m:         m,
		actions:   actions,
		prologues: map[int][][]string{},
		prologue:  map[string]int{},
		incoming:  map[int]bool{},
	}
	for state := 1; state <= m.NStates(); state++ {
		for _, e := range m.dfa.state(state).edges {
			g.incoming[e.target] = true
			names := refNames(e.actions)
			if len(names) == 0 {
				continue
			}
			k := prologueKey(e.target, names)
			if _, ok := g.prologue[k]; !ok {
				g.prologues[e.target] = append(g.prologues[e.target], names)
				g.prologue[k] = len(g.prologues[e.target])
			}
		}
	}
	return g
}

func prologueKey(state int, names []string) string {
	return strings.Join(append([]string{codegen.StateLabel(state)}, names...), "\x00")
}

// execCode emits the whole jump network.
func (g *gotoGen) execCode() ([]jen.Code, error) {
	v := g.ctx.Vars
	g.ctx.logger.Log("Goto generator: %d states, %d action prologues", g.m.NStates(), len(g.prologue))

	var code []jen.Code
	if g.anyByteTest() {
		code = append(code, jen.Var().Id(v.Byte).Byte())
	} else {
		// No transition inspects the byte value; keep the view bound.
		code = append(code, jen.Id("_").Op("=").Id(v.Mem))
	}
	code = append(code, jen.If(jen.Id(v.P).Op(">").Id(v.PEnd)).Block(
		jen.Goto().Id(exitLabel()),
	))

	// Entry dispatch on the initial state.
	var entry *jen.Statement
	for state := 1; state <= g.m.NStates(); state++ {
		cond := jen.Id(v.Cs).Op("==").Lit(state)
		if entry == nil {
			entry = jen.If(cond).Block(jen.Goto().Id(codegen.CaseLabel(state)))
		} else {
			entry = entry.Else().If(cond).Block(jen.Goto().Id(codegen.CaseLabel(state)))
		}
	}
	entry = entry.Else().Block(jen.Goto().Id(exitLabel()))
	code = append(code, entry)

	for state := 1; state <= g.m.NStates(); state++ {
		stateCode, err := g.stateBlocks(state)
		if err != nil {
			return nil, err
		}
		code = append(code, stateCode...)
	}

	exit, err := g.exitBlock()
	if err != nil {
		return nil, err
	}
	code = append(code, exit...)
	return code, nil
}

// stateBlocks emits, for one state: its incoming action prologues, its
// advance block, and its byte-dispatch block.
func (g *gotoGen) stateBlocks(state int) ([]jen.Code, error) {
	v := g.ctx.Vars
	st := g.m.dfa.state(state)
	var code []jen.Code

	if !g.ctx.Clean {
		note := ""
		if st.accept {
			note = " (accepts)"
		}
		code = append(code, jen.Commentf("state %d%s", state, note))
	}

	env := macroEnv{ctx: g.ctx, scope: scopeAction, state: state}
	for i, names := range g.prologues[state] {
		body, err := expandActionList(env, g.actions, names)
		if err != nil {
			return nil, err
		}
		body = append(body, jen.Goto().Id(codegen.StateLabel(state)))
		code = append(code,
			jen.Id(codegen.ActionLabel(state, i+1)).Op(":"),
			jen.Block(body...),
		)
	}

	if g.incoming[state] {
		code = append(code,
			jen.Id(codegen.StateLabel(state)).Op(":"),
			jen.Id(v.P).Op("++"),
			jen.If(jen.Id(v.P).Op(">").Id(v.PEnd)).Block(
				jen.Id(v.Cs).Op("=").Lit(state),
				jen.Goto().Id(exitLabel()),
			),
		)
	}

	var body []jen.Code
	if g.stateTestsByte(state) {
		body = append(body, jen.Id(v.Byte).Op("=").Add(g.ctx.getByte()))
	}

	edges := make([]dfaEdge, len(st.edges))
	copy(edges, st.edges)
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].set.Len() > edges[j].set.Len()
	})
	for _, e := range edges {
		jump := jen.Goto().Id(g.edgeTarget(e))
		cond := g.edgeCond(e)
		if cond == nil {
			body = append(body, jump)
			continue
		}
		body = append(body, jen.If(cond).Block(jump))
	}
	body = append(body,
		jen.Id(v.Cs).Op("=").Lit(-state),
		jen.Goto().Id(exitLabel()),
	)

	code = append(code,
		jen.Id(codegen.CaseLabel(state)).Op(":"),
		jen.Block(body...),
	)
	return code, nil
}

// edgeTarget picks the jump destination: the target's action prologue
// when the edge carries actions, otherwise its advance block.
func (g *gotoGen) edgeTarget(e dfaEdge) string {
	names := refNames(e.actions)
	if len(names) == 0 {
		return codegen.StateLabel(e.target)
	}
	return codegen.ActionLabel(e.target, g.prologue[prologueKey(e.target, names)])
}

// edgeCond builds the byte membership test conjoined with the guard
// conjunction; nil for an unconditional edge.
func (g *gotoGen) edgeCond(e dfaEdge) *jen.Statement {
	cond := byteCond(g.ctx.Vars.Byte, e.set)
	for _, name := range sortedGuardNames(e.preconds) {
		var guard *jen.Statement
		switch e.preconds[name] {
		case PolarityTrue:
			guard = jen.Id(name)
		case PolarityFalse:
			guard = jen.Op("!").Id(name)
		default:
			continue
		}
		if cond == nil {
			cond = guard
		} else {
			cond = cond.Op("&&").Add(guard)
		}
	}
	return cond
}

func sortedGuardNames(m precondMap) []string {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// byteCond renders membership of v in set as range comparisons; nil for
// the universal set.
func byteCond(v string, set ByteSet) *jen.Statement {
	ranges := set.Ranges()
	if len(ranges) == 1 && ranges[0].Lo == 0x00 && ranges[0].Hi == 0xff {
		return nil
	}
	var cond *jen.Statement
	for _, r := range ranges {
		var part *jen.Statement
		if r.Lo == r.Hi {
			part = jen.Id(v).Op("==").Lit(r.Lo)
		} else {
			part = jen.Parens(jen.Id(v).Op(">=").Lit(r.Lo).Op("&&").Id(v).Op("<=").Lit(r.Hi))
		}
		if cond == nil {
			cond = part
		} else {
			cond = cond.Op("||").Add(part)
		}
	}
	if cond == nil {
		// Empty label set never matches.
		return jen.False()
	}
	return cond
}

func (g *gotoGen) stateTestsByte(state int) bool {
	for _, e := range g.m.dfa.state(state).edges {
		if byteCond(g.ctx.Vars.Byte, e.set) != nil {
			return true
		}
	}
	return false
}

func (g *gotoGen) anyByteTest() bool {
	for state := 1; state <= g.m.NStates(); state++ {
		if g.stateTestsByte(state) {
			return true
		}
	}
	return false
}

// exitBlock emits the terminal block: at end of input in an accepting
// state it runs the EOF actions and zeroes the state, and at end of input
// in a non-accepting state it negates the state for the reporter. Halts
// before the end of input arrive with the state already set by the jump
// that led here.
func (g *gotoGen) exitBlock() ([]jen.Code, error) {
	v := g.ctx.Vars
	env := macroEnv{ctx: g.ctx, scope: scopeEOF}

	var chain *jen.Statement
	for state := 1; state <= g.m.NStates(); state++ {
		st := g.m.dfa.state(state)
		if !st.accept {
			continue
		}
		body, err := expandActionList(env, g.actions, refNames(st.eofActions))
		if err != nil {
			return nil, err
		}
		body = append(body, jen.Id(v.Cs).Op("=").Lit(0))
		cond := jen.Id(v.Cs).Op("==").Lit(state)
		if chain == nil {
			chain = jen.If(cond).Block(body...)
		} else {
			chain = chain.Else().If(cond).Block(body...)
		}
	}
	var inner jen.Code
	if chain == nil {
		inner = jen.Id(v.Cs).Op("=").Op("-").Id(v.Cs)
	} else {
		inner = chain.Else().Block(jen.Id(v.Cs).Op("=").Op("-").Id(v.Cs))
	}

	return []jen.Code{
		jen.Id(exitLabel()).Op(":"),
		jen.If(
			jen.Id(v.IsEOF).Op("&&").Id(v.P).Op(">").Id(v.PEnd).Op("&&").Id(v.Cs).Op(">").Lit(0),
		).Block(inner),
	}, nil
}
