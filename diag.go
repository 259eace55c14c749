package main

import (
	"fmt"
	"os"
)

// Diag is the diagnostic sink shared by the lexer, parser, and checker. It
// mirrors the report() free function of the reference compiler: format a
// message, write it to stderr, and keep a running count so the driver can
// decide whether code generation is safe.
type Diag struct {
	errors int
}

// Report prints a formatted semantic or lexical error and increments the
// error count. Format follows fmt.Sprintf conventions (the original's
// printf-with-%s substitutions maps directly onto Go's fmt verbs).
func (d *Diag) Report(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	d.errors++
}

// Count returns the number of diagnostics reported so far.
func (d *Diag) Count() int {
	return d.errors
}

// Fatalf reports a syntax error and terminates the process immediately.
// There is no error recovery in this grammar: the first syntax error ends
// the run, matching parser.cpp's error() which calls exit(EXIT_FAILURE).
func (d *Diag) Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
