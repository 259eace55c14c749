package main

import (
	"fmt"
	"io"
	"os"
)

var dumpTree bool

func usage(status int) {
	fmt.Fprintf(os.Stderr, "scc [ -dump-tree ]\n")
	fmt.Fprintf(os.Stderr, "reads Simple C on stdin, writes x86-64 assembly to stdout\n")
	os.Exit(status)
}

func parseArgs(args []string) {
	for _, arg := range args[1:] {
		switch arg {
		case "-dump-tree":
			dumpTree = true
		case "--help":
			usage(0)
		default:
			fmt.Fprintf(os.Stderr, "unknown argument: %s\n", arg)
			usage(1)
		}
	}
}

func main() {
	parseArgs(os.Args)

	src, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read standard input: %v\n", err)
		os.Exit(1)
	}

	diag := &Diag{}
	checker := NewChecker(diag)
	lexer := NewLexer(string(src), diag)
	parser := NewParser(lexer, diag, checker)

	funcs := parser.ParseProgram()

	if diag.Count() > 0 {
		os.Exit(0)
	}

	if dumpTree {
		for _, fn := range funcs {
			DumpFunction(os.Stderr, fn)
		}
		return
	}

	gen := NewGenerator(os.Stdout)
	gen.GenerateProgram(funcs, checker.Outermost())
	gen.Flush()
}
