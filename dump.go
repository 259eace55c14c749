package main

import (
	"fmt"
	"io"
)

// DumpFunction writes a LISP-like textual rendering of a function's typed
// tree to w, one line per node. This supplements the "-dump-tree" flag:
// it exists purely to let a developer or a test inspect the shape of what
// the Checker produced, the same stated purpose the reference
// implementation's own tree-printer (writer.cpp) serves — "no end purpose
// in the actual compiler... useful in understanding the structure."
func DumpFunction(w io.Writer, fn *Function) {
	fmt.Fprintf(w, "(function %s %s\n", fn.Symbol.Name, fn.Symbol.Type)
	dumpBlock(w, fn.Body, 1)
	fmt.Fprintln(w, ")")
}

func indent(w io.Writer, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Fprint(w, "  ")
	}
}

func dumpBlock(w io.Writer, b *Block, depth int) {
	indent(w, depth)
	fmt.Fprintln(w, "(block")
	for _, s := range b.Stmts {
		dumpStmt(w, s, depth+1)
	}
	indent(w, depth)
	fmt.Fprintln(w, ")")
}

func dumpStmt(w io.Writer, s Stmt, depth int) {
	if b, ok := s.(*Block); ok {
		dumpBlock(w, b, depth)
		return
	}
	indent(w, depth)
	switch st := s.(type) {
	case *SimpleStmt:
		fmt.Fprint(w, "(simple ")
		dumpExpr(w, st.Expr)
		fmt.Fprintln(w, ")")
	case *AssignmentStmt:
		fmt.Fprint(w, "(= ")
		dumpExpr(w, st.Left)
		fmt.Fprint(w, " ")
		dumpExpr(w, st.Right)
		fmt.Fprintln(w, ")")
	case *ReturnStmt:
		fmt.Fprint(w, "(return ")
		dumpExpr(w, st.Expr)
		fmt.Fprintln(w, ")")
	case *WhileStmt:
		fmt.Fprint(w, "(while ")
		dumpExpr(w, st.Cond)
		fmt.Fprintln(w)
		dumpStmt(w, st.Body, depth+1)
		indent(w, depth)
		fmt.Fprintln(w, ")")
	case *ForStmt:
		fmt.Fprintln(w, "(for")
		dumpStmt(w, st.Init, depth+1)
		indent(w, depth+1)
		dumpExpr(w, st.Cond)
		fmt.Fprintln(w)
		dumpStmt(w, st.Incr, depth+1)
		dumpStmt(w, st.Body, depth+1)
		indent(w, depth)
		fmt.Fprintln(w, ")")
	case *IfStmt:
		fmt.Fprint(w, "(if ")
		dumpExpr(w, st.Cond)
		fmt.Fprintln(w)
		dumpStmt(w, st.Then, depth+1)
		if st.Else != nil {
			dumpStmt(w, st.Else, depth+1)
		}
		indent(w, depth)
		fmt.Fprintln(w, ")")
	}
}

func dumpExpr(w io.Writer, e Expr) {
	if e == nil {
		fmt.Fprint(w, "nil")
		return
	}
	switch n := e.(type) {
	case *NumberExpr:
		fmt.Fprintf(w, "%d", n.Value)
	case *StringExpr:
		fmt.Fprintf(w, "%q", string(n.Bytes))
	case *IdentifierExpr:
		fmt.Fprint(w, n.Symbol.Name)
	case *NotExpr:
		fmt.Fprint(w, "(! ")
		dumpExpr(w, n.Operand)
		fmt.Fprint(w, ")")
	case *NegateExpr:
		fmt.Fprint(w, "(neg ")
		dumpExpr(w, n.Operand)
		fmt.Fprint(w, ")")
	case *AddressExpr:
		fmt.Fprint(w, "(& ")
		dumpExpr(w, n.Operand)
		fmt.Fprint(w, ")")
	case *DereferenceExpr:
		fmt.Fprint(w, "(* ")
		dumpExpr(w, n.Operand)
		fmt.Fprint(w, ")")
	case *CastExpr:
		fmt.Fprintf(w, "(cast %s ", n.Type)
		dumpExpr(w, n.Operand)
		fmt.Fprint(w, ")")
	case *CallExpr:
		fmt.Fprintf(w, "(call %s", n.Symbol.Name)
		for _, a := range n.Args {
			fmt.Fprint(w, " ")
			dumpExpr(w, a)
		}
		fmt.Fprint(w, ")")
	case *BinaryExpr:
		fmt.Fprintf(w, "(%s ", n.Op)
		dumpExpr(w, n.Left)
		fmt.Fprint(w, " ")
		dumpExpr(w, n.Right)
		fmt.Fprint(w, ")")
	}
}
