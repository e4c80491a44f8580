package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// DFA is the determinized machine. State ids are 1-based and assigned by
// BFS from the start state, so states[i] holds state i+1 and state 1 is
// the start.
type DFA struct {
	states []dfaState
}

type dfaState struct {
	accept     bool
	eofActions []actionRef
	edges      []dfaEdge
}

// dfaEdge groups every byte that moves to the same target with the same
// action list under the same guards.
type dfaEdge struct {
	set      ByteSet
	actions  []actionRef
	preconds precondMap
	target   int
}

// NStates returns the number of states.
func (d *DFA) NStates() int { return len(d.states) }

func (d *DFA) state(id int) *dfaState { return &d.states[id-1] }

// maxGuards bounds the per-byte precondition valuation enumeration.
const maxGuards = 12

// nfaToDFA runs subset construction. DFA transitions are keyed by
// (target set, action list, guard valuation); candidate transitions with
// identical everything but byte label merge by label union. Actions from
// simultaneously traversed NFA edges concatenate in tree order.
func nfaToDFA(g *nfaGraph) (*DFA, error) {
	d := &DFA{}
	stateIDs := map[string]int{}
	var sets [][]int

	keyOf := func(set []int) string {
		var sb strings.Builder
		for _, n := range set {
			fmt.Fprintf(&sb, "%d,", n)
		}
		return sb.String()
	}

	intern := func(set []int) int {
		sort.Ints(set)
		k := keyOf(set)
		if id, ok := stateIDs[k]; ok {
			return id
		}
		d.states = append(d.states, dfaState{})
		sets = append(sets, set)
		id := len(d.states)
		stateIDs[k] = id
		return id
	}

	intern([]int{g.start})

	for id := 1; id <= len(d.states); id++ {
		set := sets[id-1]

		accept, eof, err := eofActionsFor(g, set)
		if err != nil {
			return nil, err
		}
		d.states[id-1].accept = accept
		d.states[id-1].eofActions = eof

		var all []closedEdge
		for _, n := range set {
			all = append(all, g.out[n]...)
		}

		guardNames := collectGuardNames(all)
		if len(guardNames) > maxGuards {
			return nil, fmt.Errorf("too many distinct preconditions (%d) to determinize", len(guardNames))
		}

		type acc struct {
			labels   ByteSet
			targets  []int
			actions  []actionRef
			preconds precondMap
		}
		accs := map[string]*acc{}
		var accOrder []string

		addCell := func(b byte, targets []int, actions []actionRef, pre precondMap) {
			k := keyOf(targets) + "|" + refsKey(actions) + "|" + pre.key()
			a, ok := accs[k]
			if !ok {
				a = &acc{targets: targets, actions: actions, preconds: pre}
				accs[k] = a
				accOrder = append(accOrder, k)
			}
			a.labels = a.labels.Union(NewByteSet(b))
		}

		for bi := 0; bi < 256; bi++ {
			b := byte(bi)
			var hit []closedEdge
			for _, e := range all {
				if e.set.Contains(b) {
					hit = append(hit, e)
				}
			}
			if len(hit) == 0 {
				continue
			}
			names := collectGuardNames(hit)
			for _, cell := range valuationCells(hit, names) {
				if len(cell.targets) == 0 {
					continue
				}
				addCell(b, cell.targets, cell.actions, cell.preconds)
			}
		}

		for _, k := range accOrder {
			a := accs[k]
			target := intern(a.targets)
			d.states[id-1].edges = append(d.states[id-1].edges, dfaEdge{
				set:      a.labels,
				actions:  a.actions,
				preconds: a.preconds,
				target:   target,
			})
		}
	}
	return d, nil
}

// eofActionsFor resolves the exit actions pending when input ends in this
// state set. The regex construction leaves at most one completing path
// active per guard valuation; distinct pending lists are a compile error.
func eofActionsFor(g *nfaGraph, set []int) (accept bool, eof []actionRef, err error) {
	distinct := map[string][]actionRef{}
	for _, n := range set {
		for _, p := range g.accepts[n] {
			distinct[refsKey(p.actions)] = p.actions
		}
	}
	if len(distinct) == 0 {
		return false, nil, nil
	}
	if len(distinct) > 1 {
		return false, nil, fmt.Errorf("ambiguous EOF actions: %d distinct pending exit sequences in one state", len(distinct))
	}
	for _, refs := range distinct {
		eof = refs
	}
	return true, eof, nil
}

func collectGuardNames(edges []closedEdge) []string {
	seen := map[string]bool{}
	var names []string
	for _, e := range edges {
		for name := range e.preconds {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

type valuationCell struct {
	targets  []int
	actions  []actionRef
	preconds precondMap
}

// valuationCells splits a byte's candidate edges by precondition
// valuation. With no guards there is a single cell. With guards, one
// cell is produced per full valuation over the involved names; the cell
// carries the complete valuation as its guard map, keeping cells
// pairwise disjoint. Valuations whose passing edge sets coincide produce
// identical (targets, actions) and merge later when a dropped name
// provably cannot change the outcome.
func valuationCells(edges []closedEdge, names []string) []valuationCell {
	if len(names) == 0 {
		targets, actions := mergeEdges(edges)
		return []valuationCell{{targets: targets, actions: actions}}
	}

	n := len(names)
	cells := make([]valuationCell, 0, 1<<n)
	for mask := 0; mask < 1<<n; mask++ {
		env := make(map[string]bool, n)
		for i, name := range names {
			env[name] = mask&(1<<i) != 0
		}
		var passing []closedEdge
		for _, e := range edges {
			if e.preconds.satisfied(env) {
				passing = append(passing, e)
			}
		}
		if len(passing) == 0 {
			continue
		}
		targets, actions := mergeEdges(passing)
		pre := make(precondMap, n)
		for i, name := range names {
			if mask&(1<<i) != 0 {
				pre[name] = PolarityTrue
			} else {
				pre[name] = PolarityFalse
			}
		}
		cells = append(cells, valuationCell{targets: targets, actions: actions, preconds: pre})
	}
	return simplifyCells(cells)
}

// simplifyCells collapses pairs of cells that differ in exactly one
// guard's polarity but agree on targets and actions, dropping the
// irrelevant guard. Repeats to a fixed point so fully irrelevant guard
// sets vanish.
func simplifyCells(cells []valuationCell) []valuationCell {
	for {
		merged := false
	outer:
		for i := 0; i < len(cells); i++ {
			for j := i + 1; j < len(cells); j++ {
				name, ok := oppositeInOne(cells[i].preconds, cells[j].preconds)
				if !ok {
					continue
				}
				ki := keyOfInts(cells[i].targets) + "|" + refsKey(cells[i].actions)
				kj := keyOfInts(cells[j].targets) + "|" + refsKey(cells[j].actions)
				if ki != kj {
					continue
				}
				pre := make(precondMap, len(cells[i].preconds)-1)
				for k, v := range cells[i].preconds {
					if k != name {
						pre[k] = v
					}
				}
				cells[i].preconds = pre
				cells = append(cells[:j], cells[j+1:]...)
				merged = true
				break outer
			}
		}
		if !merged {
			return cells
		}
	}
}

// oppositeInOne reports the single name on which two complete valuations
// disagree, if they agree everywhere else.
func oppositeInOne(a, b precondMap) (string, bool) {
	if len(a) != len(b) {
		return "", false
	}
	diff := ""
	for k, v := range a {
		w, ok := b[k]
		if !ok {
			return "", false
		}
		if v != w {
			if diff != "" {
				return "", false
			}
			diff = k
		}
	}
	return diff, diff != ""
}

func keyOfInts(xs []int) string {
	var sb strings.Builder
	for _, x := range xs {
		fmt.Fprintf(&sb, "%d,", x)
	}
	return sb.String()
}

// mergeEdges unions targets and concatenates actions in tree order.
func mergeEdges(edges []closedEdge) ([]int, []actionRef) {
	seen := map[int]bool{}
	var targets []int
	var actions []actionRef
	for _, e := range edges {
		if !seen[e.target] {
			seen[e.target] = true
			targets = append(targets, e.target)
		}
		actions = append(actions, e.actions...)
	}
	sort.Ints(targets)
	return targets, sortRefs(actions)
}

// minimize merges states indistinguishable under acceptance, EOF
// actions, and the full (label, action, guard, class-of-target) edge
// signature, then renumbers by BFS from the start state.
func minimize(d *DFA) *DFA {
	n := d.NStates()
	keys := make([]string, n+1)
	for id := 1; id <= n; id++ {
		st := d.state(id)
		keys[id] = fmt.Sprintf("%v|%s", st.accept, refsKey(st.eofActions))
	}
	group := regroup(keys)

	for {
		next := make([]string, n+1)
		for id := 1; id <= n; id++ {
			st := d.state(id)
			var sb strings.Builder
			sb.WriteString(keys[id])
			sigs := make([]string, 0, len(st.edges))
			for _, e := range st.edges {
				sigs = append(sigs, e.set.String()+"|"+refsKey(e.actions)+"|"+e.preconds.key()+"|"+fmt.Sprint(group[e.target]))
			}
			sort.Strings(sigs)
			for _, s := range sigs {
				sb.WriteString(s)
				sb.WriteByte('#')
			}
			next[id] = sb.String()
		}
		ng := regroup(next)
		if sameGroups(group, ng) {
			break
		}
		group = ng
	}

	// Rebuild, numbering groups by BFS from the start's group.
	rep := map[int]int{} // group -> representative old id
	for id := 1; id <= n; id++ {
		if _, ok := rep[group[id]]; !ok {
			rep[group[id]] = id
		}
	}
	newID := map[int]int{} // group -> new id
	order := []int{}       // groups in BFS order
	newID[group[1]] = 1
	order = append(order, group[1])
	for qi := 0; qi < len(order); qi++ {
		st := d.state(rep[order[qi]])
		for _, e := range st.edges {
			tg := group[e.target]
			if _, ok := newID[tg]; !ok {
				newID[tg] = len(order) + 1
				order = append(order, tg)
			}
		}
	}

	out := &DFA{states: make([]dfaState, len(order))}
	for i, gid := range order {
		src := d.state(rep[gid])
		ns := dfaState{accept: src.accept, eofActions: src.eofActions}
		for _, e := range src.edges {
			ns.edges = append(ns.edges, dfaEdge{
				set:      e.set,
				actions:  e.actions,
				preconds: e.preconds,
				target:   newID[group[e.target]],
			})
		}
		out.states[i] = ns
	}
	return out
}

func regroup(keys []string) []int {
	ids := map[string]int{}
	group := make([]int, len(keys))
	for id := 1; id < len(keys); id++ {
		g, ok := ids[keys[id]]
		if !ok {
			g = len(ids) + 1
			ids[keys[id]] = g
		}
		group[id] = g
	}
	return group
}

func sameGroups(a, b []int) bool {
	part := map[int]int{}
	for i := 1; i < len(a); i++ {
		if g, ok := part[a[i]]; ok {
			if g != b[i] {
				return false
			}
		} else {
			part[a[i]] = b[i]
		}
	}
	seen := map[int]bool{}
	for _, g := range part {
		if seen[g] {
			return false
		}
		seen[g] = true
	}
	return true
}

// buildSubDFA determinizes an operand of an intersection or difference
// in isolation, sharing the action order counter with the outer build.
func buildSubDFA(re *Regex, order *int) (*DFA, error) {
	sb := &nfaBuilder{order: order}
	f, err := sb.build(re)
	if err != nil {
		return nil, err
	}
	return nfaToDFA(sb.close(f))
}

// buildProduct realizes isec and diff by determinizing both operands,
// forming the product automaton, and relifting it as an NFA fragment.
// The second operand of a difference contributes no actions: its
// language is being subtracted, not traversed.
func (b *nfaBuilder) buildProduct(re *Regex) (frag, error) {
	da, err := buildSubDFA(re.args[0], b.order)
	if err != nil {
		return frag{}, err
	}
	db, err := buildSubDFA(re.args[1], b.order)
	if err != nil {
		return frag{}, err
	}
	isec := re.tag == TagIsec

	type pstate struct{ a, b int } // b == 0 is the dead state
	nodeOf := map[pstate]int{}
	var queue []pstate

	getNode := func(ps pstate) int {
		if n, ok := nodeOf[ps]; ok {
			return n
		}
		n := b.newNode()
		nodeOf[ps] = n
		queue = append(queue, ps)
		return n
	}

	start := pstate{a: 1, b: 1}
	startNode := getNode(start)
	acceptNode := b.newNode()

	acceptsProduct := func(ps pstate) bool {
		aAcc := da.state(ps.a).accept
		if isec {
			return aAcc && ps.b != 0 && db.state(ps.b).accept
		}
		return aAcc && (ps.b == 0 || !db.state(ps.b).accept)
	}

	for qi := 0; qi < len(queue); qi++ {
		ps := queue[qi]
		from := nodeOf[ps]

		if acceptsProduct(ps) {
			var pending []actionRef
			pending = append(pending, da.state(ps.a).eofActions...)
			if isec && ps.b != 0 {
				pending = append(pending, db.state(ps.b).eofActions...)
			}
			b.addEdge(from, nfaEdge{eps: true, actions: sortRefs(pending), target: acceptNode})
		}

		for _, ea := range da.state(ps.a).edges {
			if ps.b == 0 {
				if isec {
					continue // the other language already failed
				}
				b.addEdge(from, nfaEdge{
					set:      ea.set,
					actions:  ea.actions,
					preconds: ea.preconds,
					target:   getNode(pstate{a: ea.target, b: 0}),
				})
				continue
			}
			remainder := ea.set
			for _, eb := range db.state(ps.b).edges {
				inter := ea.set.Intersect(eb.set)
				if inter.IsEmpty() {
					continue
				}
				remainder = remainder.Difference(eb.set)
				actions := ea.actions
				pre := ea.preconds
				if isec {
					actions = sortRefs(append(append([]actionRef{}, ea.actions...), eb.actions...))
					merged, ok := conjoin(ea.preconds, eb.preconds)
					if !ok {
						continue
					}
					pre = merged
				}
				b.addEdge(from, nfaEdge{
					set:      inter,
					actions:  actions,
					preconds: pre,
					target:   getNode(pstate{a: ea.target, b: eb.target}),
				})
			}
			if !remainder.IsEmpty() && !isec {
				b.addEdge(from, nfaEdge{
					set:      remainder,
					actions:  ea.actions,
					preconds: ea.preconds,
					target:   getNode(pstate{a: ea.target, b: 0}),
				})
			}
		}
	}

	return frag{start: startNode, accept: acceptNode}, nil
}
