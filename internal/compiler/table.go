package compiler

import (
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/digital-carver/automago/internal/codegen"
)

// tableGen emits the machine as two dense matrices in row-major
// (state, byte) layout plus an equality-chain action dispatch.
type tableGen struct {
	ctx     *CodeGenContext
	m       *Machine
	actions ActionMap
	listIDs map[string]int
	lists   [][]string
}

func newTableGen(ctx *CodeGenContext, m *Machine, actions ActionMap) *tableGen {
	g := &tableGen{ctx: ctx, m: m, actions: actions}
	g.listIDs, g.lists = actionLists(m)
	return g
}

// matrices fills the transition and action tables. A missing transition
// holds the negated current state as its failure sentinel.
func (g *tableGen) matrices() (trans, acts []int) {
	n := g.m.NStates()
	trans = make([]int, n*256)
	acts = make([]int, n*256)
	for state := 1; state <= n; state++ {
		base := (state - 1) * 256
		for b := 0; b < 256; b++ {
			trans[base+b] = -state
		}
		for _, e := range g.m.dfa.state(state).edges {
			id := 0
			if names := refNames(e.actions); len(names) > 0 {
				id = g.listIDs[strings.Join(names, "\x00")]
			}
			for _, r := range e.set.Ranges() {
				for b := int(r.Lo); b <= int(r.Hi); b++ {
					trans[base+b] = e.target
					acts[base+b] = id
				}
			}
		}
	}
	return trans, acts
}

// smallestSigned returns the narrowest signed element type holding every
// value in vals.
func smallestSigned(vals []int) *jen.Statement {
	lo, hi := 0, 0
	for _, v := range vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	switch {
	case lo >= -128 && hi <= 127:
		return jen.Int8()
	case lo >= -32768 && hi <= 32767:
		return jen.Int16()
	}
	return jen.Int32()
}

func tableLiteral(vals []int) []jen.Code {
	out := make([]jen.Code, len(vals))
	for i, v := range vals {
		out[i] = jen.Lit(v)
	}
	return out
}

// tableDecls emits the matrix declarations for the init section.
func (g *tableGen) tableDecls() []jen.Code {
	trans, acts := g.matrices()
	g.ctx.logger.Log("Table generator: %d states, %d action lists", g.m.NStates(), len(g.lists))
	var code []jen.Code
	if !g.ctx.Clean {
		code = append(code, jen.Commentf("row-major (state-1)*256+byte next-state and action-id matrices"))
	}
	code = append(code,
		jen.Id(codegen.TransName).Op(":=").Index().Add(smallestSigned(trans)).Values(tableLiteral(trans)...),
		jen.Id(codegen.ActName).Op(":=").Index().Add(smallestSigned(acts)).Values(tableLiteral(acts)...),
	)
	return code
}

// execCode emits the scan loop: fetch byte, look up action and next
// state, dispatch the action chain, advance; then the EOF chain and the
// offending-byte repositioning.
func (g *tableGen) execCode() ([]jen.Code, error) {
	v := g.ctx.Vars
	cell := func(table string) *jen.Statement {
		return jen.Id(table).Index(
			jen.Parens(jen.Id(v.Cs).Op("-").Lit(1)).Op("*").Lit(256).Op("+").Int().Call(jen.Id(v.Byte)),
		)
	}

	env := macroEnv{ctx: g.ctx, scope: scopeAction}
	var dispatch *jen.Statement
	for id := 1; id <= len(g.lists); id++ {
		body, err := expandActionList(env, g.actions, g.lists[id-1])
		if err != nil {
			return nil, err
		}
		cond := jen.Id("act").Op("==").Lit(id)
		if dispatch == nil {
			dispatch = jen.If(cond).Block(body...)
		} else {
			dispatch = dispatch.Else().If(cond).Block(body...)
		}
	}

	loopBody := []jen.Code{
		jen.Id(v.Byte).Op(":=").Add(g.ctx.getByte()),
		jen.Id("act").Op(":=").Int().Call(cell(codegen.ActName)),
		jen.Id(v.Cs).Op("=").Int().Call(cell(codegen.TransName)),
	}
	if dispatch != nil {
		loopBody = append(loopBody, dispatch)
	} else {
		loopBody = append(loopBody, jen.Id("_").Op("=").Id("act"))
	}
	loopBody = append(loopBody, jen.Id(v.P).Op("++"))

	eofChain, err := g.eofChain()
	if err != nil {
		return nil, err
	}

	code := []jen.Code{
		jen.For(jen.Id(v.P).Op("<=").Id(v.PEnd).Op("&&").Id(v.Cs).Op(">").Lit(0)).Block(loopBody...),
		jen.If(
			jen.Id(v.P).Op(">").Id(v.PEnd).Op("&&").Id(v.IsEOF).Op("&&").Id(v.Cs).Op(">").Lit(0),
		).Block(
			eofChain,
		).Else().If(jen.Id(v.Cs).Op("<").Lit(0)).Block(
			jen.Id(v.P).Op("--"),
		),
	}
	return code, nil
}

// eofChain emits the accept-state equality chain running EOF actions;
// halting anywhere else negates the state for the reporter.
func (g *tableGen) eofChain() (jen.Code, error) {
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
	if chain == nil {
		return jen.Id(v.Cs).Op("=").Op("-").Id(v.Cs), nil
	}
	chain = chain.Else().Block(jen.Id(v.Cs).Op("=").Op("-").Id(v.Cs))
	return chain, nil
}
