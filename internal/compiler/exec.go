package compiler

// Match outcomes shared by the interpreter and the emitted validators:
// MatchOK for a complete match, MatchEOF for input ending in a
// non-accepting state, and any positive value for the 1-based position
// of the first invalid byte.
const (
	MatchOK  = -1
	MatchEOF = 0
)

// Exec runs the machine over data with a host precondition environment,
// reporting each executed action to trace in order. Guards absent from
// env evaluate as false; trace may be nil. The return value follows the
// validator contract: MatchOK, MatchEOF, or the position of the first
// byte with no matching transition.
//
// Exec is the reference semantics the code generators reproduce.
func (m *Machine) Exec(data []byte, env map[string]bool, trace func(name string)) int {
	cs := 1
	for p := 1; p <= len(data); p++ {
		b := data[p-1]
		edge := m.findEdge(cs, b, env)
		if edge == nil {
			return p
		}
		if trace != nil {
			for _, a := range edge.actions {
				trace(a.name)
			}
		}
		cs = edge.target
	}
	st := m.dfa.state(cs)
	if !st.accept {
		return MatchEOF
	}
	if trace != nil {
		for _, a := range st.eofActions {
			trace(a.name)
		}
	}
	return MatchOK
}

// Accepts reports whether data matches the machine's language with all
// preconditions false.
func (m *Machine) Accepts(data []byte) bool {
	return m.Exec(data, nil, nil) == MatchOK
}

func (m *Machine) findEdge(cs int, b byte, env map[string]bool) *dfaEdge {
	st := m.dfa.state(cs)
	for i := range st.edges {
		e := &st.edges[i]
		if e.set.Contains(b) && e.preconds.satisfied(env) {
			return e
		}
	}
	return nil
}
