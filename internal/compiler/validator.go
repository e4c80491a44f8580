package compiler

import (
	"fmt"
	"go/format"

	"github.com/dave/jennifer/jen"
)

// GenerateBufferValidator emits a complete validator function for the
// regex: it returns -1 on a full match, 0 when input ends before the
// machine can accept, and otherwise the 1-based position of the first
// invalid byte.
func GenerateBufferValidator(name string, re *Regex, opts ...CodeGenOption) (string, error) {
	ctx := NewCodeGenContext(opts...)
	m, err := Compile(re)
	if err != nil {
		return "", fmt.Errorf("failed to compile %q: %w", re.Source(), err)
	}
	if len(m.ActionNames()) > 0 {
		return "", fmt.Errorf("validator regex must not carry actions, found: %v", m.ActionNames())
	}
	if err := checkGeneratorFit(ctx, m); err != nil {
		return "", err
	}

	v := ctx.Vars
	var body []jen.Code
	body = append(body,
		jen.Id(v.Cs).Op(":=").Lit(1),
		jen.Id(v.P).Op(":=").Lit(1),
		jen.Id(v.PEnd).Op(":=").Len(jen.Id(v.Data)),
		jen.Id(v.IsEOF).Op(":=").True(),
		jen.Id(v.Mem).Op(":=").Id(v.Data),
	)

	var exec []jen.Code
	if ctx.Generator == GeneratorTable {
		g := newTableGen(ctx, m, ActionMap{})
		body = append(body, g.tableDecls()...)
		exec, err = g.execCode()
	} else {
		exec, err = newGotoGen(ctx, m, ActionMap{}).execCode()
	}
	if err != nil {
		return "", fmt.Errorf("failed to emit validator body: %w", err)
	}
	body = append(body, exec...)

	body = append(body,
		jen.If(jen.Id(v.Cs).Op("==").Lit(0)).Block(jen.Return(jen.Lit(-1))),
		jen.If(jen.Id(v.P).Op(">").Id(v.PEnd)).Block(jen.Return(jen.Lit(0))),
		jen.Return(jen.Id(v.P)),
	)

	fn := jen.Null()
	if !ctx.Clean {
		fn.Add(jen.Commentf("%s reports whether data matches %q: -1 on a full", name, re.Source())).Line()
		fn.Add(jen.Comment("match, 0 on unexpected end of input, otherwise the 1-based")).Line()
		fn.Add(jen.Comment("position of the first invalid byte.")).Line()
	}
	fn.Add(jen.Func().Id(name).Params(jen.Id(v.Data).Index().Byte()).Int().Block(body...))

	src := fmt.Sprintf("%#v\n", fn)
	formatted, err := format.Source([]byte(src))
	if err != nil {
		return "", fmt.Errorf("emitted validator does not format: %w", err)
	}
	return string(formatted), nil
}
