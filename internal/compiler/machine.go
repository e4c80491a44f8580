package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Machine is a compiled regex: a minimized byte-level DFA with action
// lists on transitions and exit actions on accepting halts.
type Machine struct {
	dfa     *DFA
	pattern string
	names   []string
}

// CompileConfig configures compilation.
type CompileConfig struct {
	// Verbose narrates the pipeline stages to stderr.
	Verbose bool
}

// Compile runs the full pipeline: desugaring, NFA construction, subset
// construction, and minimization.
func Compile(re *Regex) (*Machine, error) {
	return CompileWith(re, CompileConfig{})
}

// CompileWith is Compile with explicit configuration.
func CompileWith(re *Regex, cfg CompileConfig) (*Machine, error) {
	logger := NewLogger(cfg.Verbose)
	logger.Section("Compile")
	if re.source != "" {
		logger.Log("Pattern: %s", re.source)
	}

	d := desugar(re)

	b := newNFABuilder()
	f, err := b.build(d)
	if err != nil {
		return nil, fmt.Errorf("failed to build NFA: %w", err)
	}
	g := b.close(f)
	logger.Log("NFA nodes: %d", len(b.nodes))

	dfa, err := nfaToDFA(g)
	if err != nil {
		return nil, fmt.Errorf("failed to determinize: %w", err)
	}
	logger.Log("DFA states: %d", dfa.NStates())

	dfa = minimize(dfa)
	logger.Log("DFA states after minimization: %d", dfa.NStates())

	m := &Machine{dfa: dfa, pattern: re.source}
	m.names = m.collectActionNames()
	if len(m.names) > 0 {
		logger.Log("Actions: %s", strings.Join(m.names, ", "))
	}
	return m, nil
}

func (m *Machine) collectActionNames() []string {
	seen := map[string]bool{}
	var names []string
	add := func(refs []actionRef) {
		for _, r := range refs {
			if !seen[r.name] {
				seen[r.name] = true
				names = append(names, r.name)
			}
		}
	}
	for i := range m.dfa.states {
		st := &m.dfa.states[i]
		add(st.eofActions)
		for _, e := range st.edges {
			add(e.actions)
		}
	}
	sort.Strings(names)
	return names
}

// Pattern returns the surface pattern the machine was compiled from, or
// "" for machines built from combinators.
func (m *Machine) Pattern() string { return m.pattern }

// NStates returns the number of DFA states. State ids are 1..NStates,
// with 1 the start state.
func (m *Machine) NStates() int { return m.dfa.NStates() }

// IsAccept reports whether ending input in the given state is a match.
func (m *Machine) IsAccept(state int) bool {
	return state >= 1 && state <= m.dfa.NStates() && m.dfa.state(state).accept
}

// EOFActions returns the exit actions run when input ends in the given
// accepting state, in execution order.
func (m *Machine) EOFActions(state int) []string {
	if state < 1 || state > m.dfa.NStates() {
		return nil
	}
	return refNames(m.dfa.state(state).eofActions)
}

// ActionNames returns the sorted set of action names the machine
// references. A user-supplied action map must bind exactly these.
func (m *Machine) ActionNames() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// HasPreconditions reports whether any transition carries a guard. Such
// machines require the goto generator.
func (m *Machine) HasPreconditions() bool {
	for i := range m.dfa.states {
		for _, e := range m.dfa.states[i].edges {
			if len(e.preconds) > 0 {
				return true
			}
		}
	}
	return false
}

// Dot renders the machine in Graphviz dot format for debugging.
func (m *Machine) Dot() string {
	var sb strings.Builder
	sb.WriteString("digraph machine {\n")
	sb.WriteString("  rankdir=LR;\n")
	for id := 1; id <= m.dfa.NStates(); id++ {
		st := m.dfa.state(id)
		shape := "circle"
		if st.accept {
			shape = "doublecircle"
		}
		fmt.Fprintf(&sb, "  %d [shape=%s];\n", id, shape)
		for _, e := range st.edges {
			label := e.set.String()
			if names := refNames(e.actions); len(names) > 0 {
				label += "/" + strings.Join(names, ",")
			}
			for name, pol := range e.preconds {
				switch pol {
				case PolarityTrue:
					label += "?" + name
				case PolarityFalse:
					label += "?!" + name
				}
			}
			fmt.Fprintf(&sb, "  %d -> %d [label=%q];\n", id, e.target, label)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
