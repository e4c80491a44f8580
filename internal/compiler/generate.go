package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dave/jennifer/jen"
)

// GenerateCode emits the full scan: initialization, the execution loop
// or jump network, and the invalid-input reporting block.
func GenerateCode(ctx *CodeGenContext, m *Machine, actions ActionMap) (string, error) {
	init, err := GenerateInitCode(ctx, m)
	if err != nil {
		return "", err
	}
	exec, err := GenerateExecCode(ctx, m, actions)
	if err != nil {
		return "", err
	}
	report, err := GenerateInputErrorCode(ctx, m)
	if err != nil {
		return "", err
	}
	return init + "\n" + exec + "\n" + report, nil
}

// GenerateInitCode emits the scan-state declarations, and for the table
// generator the transition and action matrices.
func GenerateInitCode(ctx *CodeGenContext, m *Machine) (string, error) {
	if err := checkGeneratorFit(ctx, m); err != nil {
		return "", err
	}
	v := ctx.Vars
	var code []jen.Code
	if !ctx.Clean && m.pattern != "" {
		code = append(code, jen.Commentf("generated scan for %q", m.pattern))
	}
	code = append(code,
		jen.Id(v.Cs).Op(":=").Lit(1),
		jen.Id(v.P).Op(":=").Lit(1),
		jen.Id(v.PEnd).Op(":=").Len(jen.Id(v.Data)),
		jen.Id(v.IsEOF).Op(":=").True(),
		jen.Id(v.Mem).Op(":=").Id(v.Data),
	)
	if ctx.Generator == GeneratorTable {
		g := newTableGen(ctx, m, nil)
		code = append(code, g.tableDecls()...)
	}
	return renderStmts(code)
}

// GenerateExecCode emits the scan proper: the table loop or the goto
// network, with the user actions spliced in.
func GenerateExecCode(ctx *CodeGenContext, m *Machine, actions ActionMap) (string, error) {
	if err := checkGeneratorFit(ctx, m); err != nil {
		return "", err
	}
	if err := checkActionSet(m, actions); err != nil {
		return "", err
	}
	var code []jen.Code
	var err error
	if ctx.Generator == GeneratorTable {
		code, err = newTableGen(ctx, m, actions).execCode()
	} else {
		code, err = newGotoGen(ctx, m, actions).execCode()
	}
	if err != nil {
		return "", err
	}
	return renderStmts(code)
}

// GenerateInputErrorCode emits the block that hands invalid input to the
// host error reporter: the machine descriptor, the negated halt state,
// the offending byte (or -1 at EOF), the buffer, and the position.
func GenerateInputErrorCode(ctx *CodeGenContext, m *Machine) (string, error) {
	v := ctx.Vars
	descriptor := m.pattern
	if descriptor == "" {
		descriptor = "machine"
	}
	code := []jen.Code{
		jen.If(jen.Id(v.Cs).Op("!=").Lit(0)).Block(
			jen.If(jen.Id(v.P).Op(">").Id(v.PEnd)).Block(
				jen.Id(ctx.ErrorReporter).Call(
					jen.Lit(descriptor), jen.Id(v.Cs), jen.Lit(-1), jen.Id(v.Data), jen.Id(v.P),
				),
			).Else().Block(
				jen.Id(ctx.ErrorReporter).Call(
					jen.Lit(descriptor), jen.Id(v.Cs),
					jen.Int().Call(jen.Id(v.Mem).Index(jen.Id(v.P).Op("-").Lit(1))),
					jen.Id(v.Data), jen.Id(v.P),
				),
			),
		),
	}
	return renderStmts(code)
}

// checkGeneratorFit rejects configurations the selected generator cannot
// express.
func checkGeneratorFit(ctx *CodeGenContext, m *Machine) error {
	if ctx.Generator == GeneratorTable && m.HasPreconditions() {
		return fmt.Errorf("the table generator cannot express preconditions; use the goto generator")
	}
	if ctx.Generator == GeneratorGoto && ctx.GetByte != nil {
		return fmt.Errorf("the goto generator requires the default byte accessor")
	}
	return nil
}

// checkActionSet verifies the user-supplied action map binds exactly the
// names the machine references.
func checkActionSet(m *Machine, actions ActionMap) error {
	var missing []string
	for _, name := range m.ActionNames() {
		if _, ok := actions[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("action map is missing machine actions: %s", strings.Join(missing, ", "))
	}
	referenced := map[string]bool{}
	for _, name := range m.ActionNames() {
		referenced[name] = true
	}
	var extra []string
	for name := range actions {
		if !referenced[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("action map binds names the machine never fires: %s", strings.Join(extra, ", "))
	}
	return nil
}

// renderStmts renders a statement list to source text.
func renderStmts(codes []jen.Code) (string, error) {
	var sb strings.Builder
	for _, c := range codes {
		fmt.Fprintf(&sb, "%#v\n", c)
	}
	return sb.String(), nil
}

// actionLists assigns compact ids to the distinct action lists appearing
// on a machine's transitions, in first-appearance order over the BFS
// state numbering. Id 0 is reserved for the empty list.
func actionLists(m *Machine) (ids map[string]int, lists [][]string) {
	ids = map[string]int{}
	for i := range m.dfa.states {
		for _, e := range m.dfa.states[i].edges {
			names := refNames(e.actions)
			if len(names) == 0 {
				continue
			}
			k := strings.Join(names, "\x00")
			if _, ok := ids[k]; !ok {
				lists = append(lists, names)
				ids[k] = len(lists)
			}
		}
	}
	return ids, lists
}

// expandActionList splices the fragments bound to an action list.
func expandActionList(env macroEnv, actions ActionMap, names []string) ([]jen.Code, error) {
	var out []jen.Code
	for _, name := range names {
		frag, ok := actions[name]
		if !ok {
			return nil, fmt.Errorf("no fragment bound for action %s", name)
		}
		code, err := rewriteAction(env, frag)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", name, err)
		}
		out = append(out, code...)
	}
	return out, nil
}
