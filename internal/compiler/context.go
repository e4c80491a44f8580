package compiler

import (
	"github.com/dave/jennifer/jen"

	"github.com/digital-carver/automago/internal/codegen"
)

// Generator selects the code emission strategy.
type Generator int

const (
	// GeneratorTable emits dense transition and action matrices with an
	// equality-chain dispatch. It cannot express preconditions.
	GeneratorTable Generator = iota
	// GeneratorGoto emits a labeled block per state with direct jumps
	// through per-destination action prologues.
	GeneratorGoto
)

func (g Generator) String() string {
	if g == GeneratorTable {
		return "table"
	}
	return "goto"
}

// VarNames holds the identifiers the emitted code uses for its scan
// state and collaborators.
type VarNames struct {
	P      string // 1-based scan position
	PEnd   string // last valid position
	IsEOF  string // whether the buffer holds the final bytes
	Cs     string // current state
	Data   string // input byte slice
	Mem    string // byte view the scan loop reads through
	Byte   string // current byte
	Buffer string // mark-hook collaborator
}

// DefaultVarNames returns the standard identifiers.
func DefaultVarNames() VarNames {
	return VarNames{
		P:      codegen.PName,
		PEnd:   codegen.PEndName,
		IsEOF:  codegen.IsEOFName,
		Cs:     codegen.CsName,
		Data:   codegen.DataName,
		Mem:    codegen.MemName,
		Byte:   codegen.ByteName,
		Buffer: codegen.BufferName,
	}
}

// GetByteFunc builds the byte-fetch expression for the table generator,
// given the memory view and position expressions.
type GetByteFunc func(mem, p jen.Code) *jen.Statement

// CodeGenContext configures code emission.
type CodeGenContext struct {
	Vars          VarNames
	Generator     Generator
	GetByte       GetByteFunc // table generator only; nil means mem[p-1]
	Clean         bool        // strip descriptive comments from output
	ErrorReporter string      // host function invoked on invalid input
	Verbose       bool

	logger *Logger
}

// CodeGenOption mutates a context under construction.
type CodeGenOption func(*CodeGenContext)

// WithGenerator selects the emission strategy.
func WithGenerator(g Generator) CodeGenOption {
	return func(ctx *CodeGenContext) { ctx.Generator = g }
}

// WithVarNames overrides the emitted identifiers.
func WithVarNames(v VarNames) CodeGenOption {
	return func(ctx *CodeGenContext) { ctx.Vars = v }
}

// WithGetByte overrides the byte accessor used by the table generator.
func WithGetByte(f GetByteFunc) CodeGenOption {
	return func(ctx *CodeGenContext) { ctx.GetByte = f }
}

// WithClean strips descriptive comments from emitted code.
func WithClean(clean bool) CodeGenOption {
	return func(ctx *CodeGenContext) { ctx.Clean = clean }
}

// WithErrorReporter names the host error reporting function.
func WithErrorReporter(name string) CodeGenOption {
	return func(ctx *CodeGenContext) { ctx.ErrorReporter = name }
}

// WithVerbose narrates emission decisions to stderr.
func WithVerbose(verbose bool) CodeGenOption {
	return func(ctx *CodeGenContext) { ctx.Verbose = verbose }
}

// NewCodeGenContext builds a context with defaults: goto generator,
// standard identifiers, direct byte access.
func NewCodeGenContext(opts ...CodeGenOption) *CodeGenContext {
	ctx := &CodeGenContext{
		Vars:          DefaultVarNames(),
		Generator:     GeneratorGoto,
		ErrorReporter: codegen.ReportName,
	}
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.logger = NewLogger(ctx.Verbose)
	return ctx
}

// getByte renders the byte-fetch expression.
func (ctx *CodeGenContext) getByte() *jen.Statement {
	if ctx.GetByte != nil {
		return ctx.GetByte(jen.Id(ctx.Vars.Mem), jen.Id(ctx.Vars.P))
	}
	return jen.Id(ctx.Vars.Mem).Index(jen.Id(ctx.Vars.P).Op("-").Lit(1))
}
