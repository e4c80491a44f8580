// Package automago compiles annotated regular expressions into
// byte-level deterministic finite automata and generates Go code that
// scans a byte buffer, running user action fragments at the annotated
// positions.
//
// The pipeline is parse (or combinators), annotate, Compile to a
// Machine, then generate: either a table-driven loop or a goto-threaded
// jump network, both built as jennifer syntax trees and rendered last.
package automago

import (
	"github.com/digital-carver/automago/internal/compiler"
)

// Regex is an annotated regular expression over byte strings.
type Regex = compiler.Regex

// Machine is a compiled regex: a minimized DFA with action decoration.
type Machine = compiler.Machine

// ByteSet is an immutable set over the 256-byte alphabet.
type ByteSet = compiler.ByteSet

// CodeGenContext configures code emission.
type CodeGenContext = compiler.CodeGenContext

// CodeGenOption customizes a CodeGenContext.
type CodeGenOption = compiler.CodeGenOption

// VarNames holds the identifiers emitted code uses.
type VarNames = compiler.VarNames

// Generator selects the emission strategy.
type Generator = compiler.Generator

// Emission strategies.
const (
	GeneratorTable = compiler.GeneratorTable
	GeneratorGoto  = compiler.GeneratorGoto
)

// Expr is one element of an action fragment.
type Expr = compiler.Expr

// Action is an ordered fragment of host statements.
type Action = compiler.Action

// ActionMap binds machine action names to fragments.
type ActionMap = compiler.ActionMap

// Polarity is the required value of a precondition guard.
type Polarity = compiler.Polarity

// PrecondWhen selects which transitions a guard applies to.
type PrecondWhen = compiler.PrecondWhen

// Precondition polarities.
const (
	PolarityTrue  = compiler.PolarityTrue
	PolarityFalse = compiler.PolarityFalse
	PolarityBoth  = compiler.PolarityBoth
)

// Guard attachment points.
const (
	PrecondEnter = compiler.PrecondEnter
	PrecondAll   = compiler.PrecondAll
)

// Validator and Machine.Exec outcomes.
const (
	MatchOK  = compiler.MatchOK
	MatchEOF = compiler.MatchEOF
)

// Parse constructs a regex AST from pattern syntax.
func Parse(pattern string) (*Regex, error) {
	return compiler.ParsePattern(pattern)
}

// Combinators.
var (
	Byte    = compiler.Byte
	Range   = compiler.Range
	Char    = compiler.Char
	Str     = compiler.Str
	Bytes   = compiler.Bytes
	Any     = compiler.Any
	Epsilon = compiler.Epsilon
	Cat     = compiler.Cat
	Alt     = compiler.Alt
	Rep     = compiler.Rep
	Rep1    = compiler.Rep1
	Opt     = compiler.Opt
	Isec    = compiler.Isec
	Diff    = compiler.Diff
	Neg     = compiler.Neg
)

// Annotation operations. They mutate and return their argument so
// bindings nest naturally.
var (
	OnEnter = compiler.OnEnter
	OnExit  = compiler.OnExit
	OnFinal = compiler.OnFinal
	OnAll   = compiler.OnAll
	Precond = compiler.SetPrecond
)

// Action fragment constructors.
var (
	Raw       = compiler.Raw
	Stmts     = compiler.Stmts
	Macro     = compiler.Macro
	Escape    = compiler.Escape
	Mark      = compiler.Mark
	Unmark    = compiler.Unmark
	MarkPos   = compiler.MarkPos
	BufferPos = compiler.BufferPos
	SetBuffer = compiler.SetBuffer
	RelPos    = compiler.RelPos
	AbsPos    = compiler.AbsPos
)

// Compile runs the full pipeline through DFA minimization.
func Compile(re *Regex) (*Machine, error) {
	return compiler.Compile(re)
}

// NewCodeGenContext builds an emission context; defaults are the goto
// generator with the standard identifiers.
var NewCodeGenContext = compiler.NewCodeGenContext

// Context options.
var (
	WithGenerator     = compiler.WithGenerator
	WithVarNames      = compiler.WithVarNames
	WithGetByte       = compiler.WithGetByte
	WithClean         = compiler.WithClean
	WithErrorReporter = compiler.WithErrorReporter
	WithVerbose       = compiler.WithVerbose
)

// Code emission entry points.
var (
	GenerateCode            = compiler.GenerateCode
	GenerateInitCode        = compiler.GenerateInitCode
	GenerateExecCode        = compiler.GenerateExecCode
	GenerateInputErrorCode  = compiler.GenerateInputErrorCode
	GenerateBufferValidator = compiler.GenerateBufferValidator
)
