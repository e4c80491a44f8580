package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// actionRef is an action occurrence inside the automaton. The order field
// is assigned by the NFA builder's tree walk (enter actions at pre-visit,
// final and exit actions at post-visit) and imposes the deterministic
// execution order when several fragments fire on one DFA transition.
// Actions bound with the all event sort before everything else on the
// same transition.
type actionRef struct {
	name  string
	order int
	all   bool
}

// precondMap is a conjunction of named guards with required polarities.
type precondMap map[string]Polarity

// conjoin merges two guard conjunctions. ok is false when they require
// opposite polarities of the same name, making the edge infeasible.
func conjoin(a, b precondMap) (precondMap, bool) {
	if len(a) == 0 && len(b) == 0 {
		return nil, true
	}
	out := make(precondMap, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if prev, seen := out[k]; seen {
			switch {
			case prev == v, v == PolarityBoth:
			case prev == PolarityBoth:
				out[k] = v
			default:
				return nil, false
			}
			continue
		}
		out[k] = v
	}
	return out, true
}

// satisfied evaluates the conjunction under a host environment. Unset
// names evaluate as false.
func (m precondMap) satisfied(env map[string]bool) bool {
	for name, pol := range m {
		switch pol {
		case PolarityTrue:
			if !env[name] {
				return false
			}
		case PolarityFalse:
			if env[name] {
				return false
			}
		}
	}
	return true
}

func (m precondMap) key() string {
	if len(m) == 0 {
		return ""
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s=%d;", name, m[name])
	}
	return sb.String()
}

// sortRefs orders an action list canonically: all-event actions first,
// then by tree order; exact duplicates (same occurrence reached through
// several epsilon paths) collapse.
func sortRefs(refs []actionRef) []actionRef {
	if len(refs) == 0 {
		return nil
	}
	out := make([]actionRef, len(refs))
	copy(out, refs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].all != out[j].all {
			return out[i].all
		}
		return out[i].order < out[j].order
	})
	dedup := out[:0]
	for _, r := range out {
		if len(dedup) == 0 || dedup[len(dedup)-1] != r {
			dedup = append(dedup, r)
		}
	}
	return dedup
}

func refsKey(refs []actionRef) string {
	var sb strings.Builder
	for _, r := range refs {
		fmt.Fprintf(&sb, "%s/%d/%v;", r.name, r.order, r.all)
	}
	return sb.String()
}

func refNames(refs []actionRef) []string {
	if len(refs) == 0 {
		return nil
	}
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.name
	}
	return names
}

// nfaEdge is one edge of the pre-closure graph. Epsilon edges exist only
// during construction; closure folds their actions and guards into the
// concrete transitions that follow them.
type nfaEdge struct {
	eps      bool
	set      ByteSet
	actions  []actionRef
	preconds precondMap
	target   int
}

// frag is a sub-automaton under construction with a single entry and a
// single accept node.
type frag struct {
	start, accept int
}

// nfaBuilder owns the node and edge arenas. Nodes are referred to by
// index; edges by index into the edge arena.
type nfaBuilder struct {
	nodes [][]int // node id -> edge ids
	edges []nfaEdge
	order *int
}

func newNFABuilder() *nfaBuilder {
	order := 0
	return &nfaBuilder{order: &order}
}

func (b *nfaBuilder) newNode() int {
	b.nodes = append(b.nodes, nil)
	return len(b.nodes) - 1
}

func (b *nfaBuilder) addEdge(from int, e nfaEdge) int {
	b.edges = append(b.edges, e)
	id := len(b.edges) - 1
	b.nodes[from] = append(b.nodes[from], id)
	return id
}

func (b *nfaBuilder) refs(names []string, all bool) []actionRef {
	if len(names) == 0 {
		return nil
	}
	out := make([]actionRef, len(names))
	for i, name := range names {
		*b.order++
		out[i] = actionRef{name: name, order: *b.order, all: all}
	}
	return out
}

// build constructs the Thompson fragment for a desugared regex and
// applies the node's annotations: enter actions and guards on an entry
// wrapper, exit actions on an accept wrapper, final actions on the
// last-byte transitions, all actions on every concrete fragment edge, and
// all guards on every fragment edge.
func (b *nfaBuilder) build(re *Regex) (frag, error) {
	edgeLo := len(b.edges)

	allRefs := b.refs(re.actions[EventAll], true)
	enterRefs := b.refs(re.actions[EventEnter], false)

	var f frag
	switch re.tag {
	case TagSet:
		s := b.newNode()
		t := b.newNode()
		b.addEdge(s, nfaEdge{set: re.set, target: t})
		f = frag{start: s, accept: t}

	case TagCat:
		if len(re.args) == 0 {
			n := b.newNode()
			f = frag{start: n, accept: n}
			break
		}
		var sub []frag
		for _, a := range re.args {
			fa, err := b.build(a)
			if err != nil {
				return frag{}, err
			}
			sub = append(sub, fa)
		}
		for i := 0; i+1 < len(sub); i++ {
			b.addEdge(sub[i].accept, nfaEdge{eps: true, target: sub[i+1].start})
		}
		f = frag{start: sub[0].start, accept: sub[len(sub)-1].accept}

	case TagAlt:
		fa, err := b.build(re.args[0])
		if err != nil {
			return frag{}, err
		}
		fb, err := b.build(re.args[1])
		if err != nil {
			return frag{}, err
		}
		s := b.newNode()
		t := b.newNode()
		b.addEdge(s, nfaEdge{eps: true, target: fa.start})
		b.addEdge(s, nfaEdge{eps: true, target: fb.start})
		b.addEdge(fa.accept, nfaEdge{eps: true, target: t})
		b.addEdge(fb.accept, nfaEdge{eps: true, target: t})
		f = frag{start: s, accept: t}

	case TagRep:
		fa, err := b.build(re.args[0])
		if err != nil {
			return frag{}, err
		}
		s := b.newNode()
		t := b.newNode()
		b.addEdge(s, nfaEdge{eps: true, target: t})
		b.addEdge(s, nfaEdge{eps: true, target: fa.start})
		b.addEdge(fa.accept, nfaEdge{eps: true, target: fa.start})
		b.addEdge(fa.accept, nfaEdge{eps: true, target: t})
		f = frag{start: s, accept: t}

	case TagIsec, TagDiff:
		pf, err := b.buildProduct(re)
		if err != nil {
			return frag{}, err
		}
		f = pf

	default:
		return frag{}, fmt.Errorf("internal: tag %d survived desugaring", re.tag)
	}

	if finals := re.actions[EventFinal]; len(finals) > 0 {
		finalRefs := b.refs(finals, false)
		if err := b.attachFinal(f, edgeLo, finalRefs); err != nil {
			return frag{}, err
		}
	}
	exitRefs := b.refs(re.actions[EventExit], false)

	if len(enterRefs) > 0 || re.precondEnter != nil {
		var guard precondMap
		if re.precondEnter != nil {
			guard = precondMap{re.precondEnter.Name: re.precondEnter.Polarity}
		}
		s := b.newNode()
		b.addEdge(s, nfaEdge{eps: true, actions: enterRefs, preconds: guard, target: f.start})
		f.start = s
	}
	if len(exitRefs) > 0 {
		t := b.newNode()
		b.addEdge(f.accept, nfaEdge{eps: true, actions: exitRefs, target: t})
		f.accept = t
	}

	if len(allRefs) > 0 || re.precondAll != nil {
		var guard precondMap
		if re.precondAll != nil {
			guard = precondMap{re.precondAll.Name: re.precondAll.Polarity}
		}
		for i := edgeLo; i < len(b.edges); i++ {
			e := &b.edges[i]
			if !e.eps {
				e.actions = append(e.actions, allRefs...)
			}
			if guard != nil {
				merged, ok := conjoin(e.preconds, guard)
				if !ok {
					return frag{}, fmt.Errorf("conflicting polarities for precondition %q", re.precondAll.Name)
				}
				e.preconds = merged
			}
		}
	}

	return f, nil
}

// attachFinal appends final actions to every concrete fragment edge whose
// target can complete the fragment without further bytes, and rejects
// regexes without a definite last byte.
func (b *nfaBuilder) attachFinal(f frag, edgeLo int, refs []actionRef) error {
	// Nodes that reach the fragment accept over epsilon edges alone.
	canStop := map[int]bool{f.accept: true}
	for changed := true; changed; {
		changed = false
		for id := edgeLo; id < len(b.edges); id++ {
			e := b.edges[id]
			if e.eps && canStop[e.target] && !canStop[b.edgeSource(id)] {
				canStop[b.edgeSource(id)] = true
				changed = true
			}
		}
	}

	// Forward epsilon closure of the stoppable set. A concrete edge
	// leaving it means the language admits a proper continuation past an
	// accepting position, so there is no definite last byte.
	reach := make(map[int]bool, len(canStop))
	for n := range canStop {
		reach[n] = true
	}
	for changed := true; changed; {
		changed = false
		for id := edgeLo; id < len(b.edges); id++ {
			e := b.edges[id]
			if e.eps && reach[b.edgeSource(id)] && !reach[e.target] {
				reach[e.target] = true
				changed = true
			}
		}
	}

	attached := 0
	for id := edgeLo; id < len(b.edges); id++ {
		e := b.edges[id]
		if e.eps {
			continue
		}
		if reach[b.edgeSource(id)] {
			return fmt.Errorf("final action on a regex without a definite last byte")
		}
		if canStop[e.target] {
			b.edges[id].actions = append(b.edges[id].actions, refs...)
			attached++
		}
	}
	if attached == 0 {
		return fmt.Errorf("final action on a regex with no last byte to bind")
	}
	return nil
}

// edgeSource finds the node owning an edge id. Edge fan-out per node is
// tiny, so a scan is fine at compile scale.
func (b *nfaBuilder) edgeSource(id int) int {
	for n, edges := range b.nodes {
		for _, eid := range edges {
			if eid == id {
				return n
			}
		}
	}
	return -1
}

// closedEdge is a concrete transition after epsilon elimination.
type closedEdge struct {
	set      ByteSet
	actions  []actionRef
	preconds precondMap
	target   int
}

// acceptPath records that a node can complete the whole regex without
// consuming input, together with the actions pending along that path.
type acceptPath struct {
	actions  []actionRef
	preconds precondMap
}

// nfaGraph is the epsilon-free automaton handed to subset construction.
type nfaGraph struct {
	out     [][]closedEdge
	accepts map[int][]acceptPath
	start   int
}

// close eliminates epsilon edges. For every node it enumerates the
// epsilon paths leading to concrete transitions, folding path actions in
// front of the transition's own and conjoining guards; paths reaching the
// fragment accept become accept records carrying the pending exit
// actions.
func (b *nfaBuilder) close(f frag) *nfaGraph {
	g := &nfaGraph{
		out:     make([][]closedEdge, len(b.nodes)),
		accepts: make(map[int][]acceptPath),
		start:   f.start,
	}

	for n := range b.nodes {
		seenEdge := map[string]bool{}
		seenAccept := map[string]bool{}
		visited := map[int]bool{n: true}

		var walk func(m int, acts []actionRef, pre precondMap)
		walk = func(m int, acts []actionRef, pre precondMap) {
			if m == f.accept {
				key := refsKey(sortRefs(acts)) + "|" + pre.key()
				if !seenAccept[key] {
					seenAccept[key] = true
					g.accepts[n] = append(g.accepts[n], acceptPath{
						actions:  sortRefs(acts),
						preconds: pre,
					})
				}
			}
			for _, eid := range b.nodes[m] {
				e := b.edges[eid]
				merged, ok := conjoin(pre, e.preconds)
				if !ok {
					continue
				}
				combined := make([]actionRef, 0, len(acts)+len(e.actions))
				combined = append(combined, acts...)
				combined = append(combined, e.actions...)
				if !e.eps {
					edge := closedEdge{
						set:      e.set,
						actions:  sortRefs(combined),
						preconds: merged,
						target:   e.target,
					}
					key := edge.set.String() + "|" + refsKey(edge.actions) + "|" + merged.key() + "|" + fmt.Sprint(e.target)
					if !seenEdge[key] && !edge.set.IsEmpty() {
						seenEdge[key] = true
						g.out[n] = append(g.out[n], edge)
					}
					continue
				}
				if visited[e.target] {
					continue
				}
				visited[e.target] = true
				walk(e.target, combined, merged)
				delete(visited, e.target)
			}
		}
		walk(n, nil, nil)
	}
	return g
}
