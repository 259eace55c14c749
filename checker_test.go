package main

import (
	"testing"

	"github.com/nalgeon/be"
)

// compile parses src through the full lexer/parser/checker pipeline and
// returns the parsed functions plus the checker and diagnostic sink for
// inspection. Sources must be syntactically valid: a syntax error is
// fatal to the process by design.
func compile(t *testing.T, src string) ([]*Function, *Checker, *Diag) {
	t.Helper()
	diag := &Diag{}
	checker := NewChecker(diag)
	parser := NewParser(NewLexer(src, diag), diag, checker)
	funcs := parser.ParseProgram()
	return funcs, checker, diag
}

func errorCount(t *testing.T, src string) int {
	t.Helper()
	_, _, diag := compile(t, src)
	return diag.Count()
}

func TestDeclarationErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{"void object", "void x;", 1},
		{"void pointer is fine", "void *x;", 0},
		{"void array", "void x[5];", 1},
		{"global redeclaration discarded", "int x; int x;", 0},
		{"global conflicting types", "int x; long x;", 1},
		{"local redeclaration", "int main(void) { int x; int x; return 0; }", 1},
		{"shadowing outer scope is fine", "int x; int main(void) { int x; return x; }", 0},
		{"function redefinition", "int f(void) { return 0; } int f(void) { return 1; }", 1},
		{"declaration then definition", "int f(); int f(int a) { return a; }", 0},
		{"conflicting function declarations", "int f(); long f();", 1},
		{"undeclared reported once per scope", "int main(void) { y = 1; y = 2; return 0; }", 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			be.Equal(t, errorCount(t, test.src), test.want)
		})
	}
}

func TestDefinitionReplacesDeclaration(t *testing.T) {
	_, checker, diag := compile(t, "int f(); int f(int a) { return a; }")
	be.Equal(t, diag.Count(), 0)
	sym := checker.Outermost().Find("f")
	be.Equal(t, len(sym.Type.Parameters), 1)
}

func TestAssignmentChecks(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{"narrowing assignment converts", "int main(void) { char c; long l; c = l; return 0; }", 0},
		{"pointer from numeric", "int main(void) { int *p; long l; p = l; return 0; }", 1},
		{"pointer from void pointer", "int main(void) { int *p; void *v; p = v; return 0; }", 0},
		{"parenthesization clears lvalue", "int main(void) { int x; (x) = 1; return 0; }", 1},
		{"dereference is an lvalue", "int main(void) { int *p; *p = 1; return 0; }", 0},
		{"subscript is an lvalue", "int a[4]; int main(void) { a[1] = 2; return 0; }", 0},
		{"temporary is not an lvalue", "int main(void) { int x; x + 1 = 2; return 0; }", 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			be.Equal(t, errorCount(t, test.src), test.want)
		})
	}
}

func TestCallChecks(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{"absent list takes any predicate args", "int f(); int main(void) { return f(1, 2, 3); }", 0},
		{"empty list takes none", "int g(void) { return 0; } int main(void) { return g(1); }", 1},
		{"argument converted to parameter", "int h(long a) { return 0; } int main(void) { char c; return h(c); }", 0},
		{"arity mismatch", "int h(int a, int b) { return a; } int main(void) { return h(1); }", 1},
		{"pointer argument mismatch", "int h(int *p) { return 0; } int main(void) { long l; return h(l); }", 1},
		{"calling a non-function", "int x; int main(void) { return x(); }", 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			be.Equal(t, errorCount(t, test.src), test.want)
		})
	}
}

func TestReturnAndTestChecks(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{"return converts char to int", "int f(void) { char c; return c; }", 0},
		{"return pointer from numeric", "int *f(void) { long l; return l; }", 1},
		{"pointer condition", "int main(void) { void *p; while (p) { p = p; } return 0; }", 0},
		{"no null pointer constant", "int main(void) { int *p; p = 0; return 0; }", 1},
		{"void call as condition", "void v(void) { } int main(void) { if (v()) return 1; return 0; }", 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			be.Equal(t, errorCount(t, test.src), test.want)
		})
	}
}

func TestErrorPropagationSuppressesCascades(t *testing.T) {
	// One undeclared identifier; every enclosing operator sees the error
	// type and stays quiet.
	src := "int main(void) { int x; x = y + 1 * 2 - 3; return !y; }"
	be.Equal(t, errorCount(t, src), 1)
}

// --- direct operator rule tests ---

func newTestChecker() *Checker {
	c := NewChecker(&Diag{})
	c.OpenScope()
	return c
}

func ident(c *Checker, name string, t Type) Expr {
	sym := c.DeclareVariable(name, t)
	return identifierExpr(sym)
}

func TestCheckAddPointerScaling(t *testing.T) {
	c := newTestChecker()
	p := ident(c, "p", ScalarType(SpecInt, 1))

	sum := c.CheckAdd(p, numberExpr(2, ScalarType(SpecInt, 0)))
	be.Equal(t, sum.BaseType(), ScalarType(SpecInt, 1))

	// The literal operand is folded to 2*sizeof(int).
	bin := sum.(*BinaryExpr)
	num := bin.Right.(*NumberExpr)
	be.Equal(t, num.Value, int64(8))
	be.Equal(t, num.Type, ScalarType(SpecLong, 0))
}

func TestCheckAddScalesNonLiteral(t *testing.T) {
	c := newTestChecker()
	p := ident(c, "p", ScalarType(SpecLong, 1))
	i := ident(c, "i", ScalarType(SpecInt, 0))

	sum := c.CheckAdd(p, i)
	bin := sum.(*BinaryExpr)

	// The numeric operand becomes i extended to long times sizeof(long).
	mul := bin.Right.(*BinaryExpr)
	be.Equal(t, mul.Op, "*")
	be.Equal(t, mul.BaseType(), ScalarType(SpecLong, 0))
	be.Equal(t, mul.Right.(*NumberExpr).Value, int64(8))
}

func TestCheckSubtractPointerDifference(t *testing.T) {
	c := newTestChecker()
	p := ident(c, "p", ScalarType(SpecInt, 1))
	q := ident(c, "q", ScalarType(SpecInt, 1))

	diff := c.CheckSubtract(p, q)
	be.Equal(t, diff.BaseType(), ScalarType(SpecLong, 0))

	// The subtraction is wrapped in a divide by the element size.
	div := diff.(*BinaryExpr)
	be.Equal(t, div.Op, "/")
	be.Equal(t, div.Right.(*NumberExpr).Value, int64(4))
	be.Equal(t, div.Left.(*BinaryExpr).Op, "-")
}

func TestCheckSubtractVoidPointers(t *testing.T) {
	c := newTestChecker()
	p := ident(c, "p", ScalarType(SpecVoid, 1))
	q := ident(c, "q", ScalarType(SpecVoid, 1))

	diff := c.CheckSubtract(p, q)
	be.Equal(t, diff.BaseType(), ErrorType)
	be.Equal(t, c.diag.Count(), 1)
}

func TestCheckMultiplicativeExtension(t *testing.T) {
	c := newTestChecker()
	i := ident(c, "i", ScalarType(SpecInt, 0))
	l := ident(c, "l", ScalarType(SpecLong, 0))

	prod := c.CheckMultiplicative("*", i, l)
	be.Equal(t, prod.BaseType(), ScalarType(SpecLong, 0))

	// The int side is widened with a cast, the long side left alone.
	bin := prod.(*BinaryExpr)
	_, ok := bin.Left.(*CastExpr)
	be.True(t, ok)
	_, ok = bin.Right.(*IdentifierExpr)
	be.True(t, ok)
}

func TestCheckSizeofFolds(t *testing.T) {
	c := newTestChecker()
	a := ident(c, "a", ArrayType(SpecLong, 0, 10))

	size := c.CheckSizeof(a)
	num := size.(*NumberExpr)
	be.Equal(t, num.Value, int64(80))
	be.Equal(t, num.Type, ScalarType(SpecLong, 0))
}

func TestCheckArrayShape(t *testing.T) {
	c := newTestChecker()
	a := ident(c, "a", ArrayType(SpecInt, 0, 4))

	elem := c.CheckArray(a, numberExpr(1, ScalarType(SpecInt, 0)))
	be.Equal(t, elem.BaseType(), ScalarType(SpecInt, 0))
	be.True(t, elem.Lvalue())

	// a[1] is *(promote(a) + 4): the array decays behind an address-of
	// and the index literal is folded to the scaled byte offset.
	deref := elem.(*DereferenceExpr)
	add := deref.Operand.(*BinaryExpr)
	be.Equal(t, add.Op, "+")
	_, ok := add.Left.(*AddressExpr)
	be.True(t, ok)
	be.Equal(t, add.Right.(*NumberExpr).Value, int64(4))
}

func TestCheckAddressRequiresLvalue(t *testing.T) {
	c := newTestChecker()
	x := ident(c, "x", ScalarType(SpecInt, 0))

	addr := c.CheckAddress(x)
	be.Equal(t, addr.BaseType(), ScalarType(SpecInt, 1))
	be.Equal(t, c.diag.Count(), 0)

	bad := c.CheckAddress(numberExpr(1, ScalarType(SpecInt, 0)))
	be.Equal(t, bad.BaseType(), ErrorType)
	be.Equal(t, c.diag.Count(), 1)
}

func TestConvertFoldsOnlyLiteralWidening(t *testing.T) {
	// An int literal widened to long folds into the literal.
	widened := convert(numberExpr(7, ScalarType(SpecInt, 0)), ScalarType(SpecLong, 0))
	num, ok := widened.(*NumberExpr)
	be.True(t, ok)
	be.Equal(t, num.Type, ScalarType(SpecLong, 0))

	// A narrowing conversion keeps the explicit cast.
	c := newTestChecker()
	l := ident(c, "l", ScalarType(SpecLong, 0))
	narrowed := convert(l, ScalarType(SpecChar, 0))
	_, ok = narrowed.(*CastExpr)
	be.True(t, ok)
	be.Equal(t, narrowed.BaseType(), ScalarType(SpecChar, 0))
}

func TestScopePairing(t *testing.T) {
	// Every scope opened during a parse is closed again: after
	// ParseProgram the checker's current scope is nil and the outermost
	// scope holds the globals.
	_, checker, diag := compile(t, "int x; int main(void) { { int y; y = 0; } return 0; }")
	be.Equal(t, diag.Count(), 0)
	be.True(t, checker.toplevel == nil)
	be.True(t, checker.Outermost().Find("x") != nil)
	be.True(t, checker.Outermost().Find("y") == nil)
}
