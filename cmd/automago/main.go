// Command automago generates a standalone validator function for a
// regular expression and writes it to a Go source file.
package main

import (
	"flag"
	"fmt"
	"go/format"
	"os"

	"github.com/digital-carver/automago/pkg/automago"
)

func main() {
	var (
		pattern   = flag.String("pattern", "", "regular expression to compile (required)")
		name      = flag.String("name", "validate", "name of the generated validator function")
		pkg       = flag.String("package", "main", "package name for the generated file")
		output    = flag.String("output", "", "output file path (required)")
		generator = flag.String("generator", "goto", "code generator: table or goto")
		clean     = flag.Bool("clean", false, "strip descriptive comments from generated code")
		verbose   = flag.Bool("verbose", false, "log compilation decisions to stderr")
	)
	flag.Parse()

	if *pattern == "" || *output == "" {
		flag.Usage()
		os.Exit(2)
	}

	gen := automago.GeneratorGoto
	switch *generator {
	case "goto":
	case "table":
		gen = automago.GeneratorTable
	default:
		fmt.Fprintf(os.Stderr, "unknown generator %q\n", *generator)
		os.Exit(2)
	}

	re, err := automago.Parse(*pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "automago: %v\n", err)
		os.Exit(1)
	}

	fn, err := automago.GenerateBufferValidator(*name, re,
		automago.WithGenerator(gen),
		automago.WithClean(*clean),
		automago.WithVerbose(*verbose),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "automago: %v\n", err)
		os.Exit(1)
	}

	src := fmt.Sprintf("// Code generated by automago for pattern: %s\n// DO NOT EDIT.\n\npackage %s\n\n%s", *pattern, *pkg, fn)
	formatted, err := format.Source([]byte(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "automago: formatting generated file: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*output, formatted, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "automago: %v\n", err)
		os.Exit(1)
	}
}
