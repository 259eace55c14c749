package main

// Checker owns the scope chain and every semantic rule that decorates a
// freshly-parsed expression or statement with its Type, lvalue flag, and
// any implicit coercions (promotion, extension, convert, pointer
// scaling). Every check function builds its result node even when it
// reports an error, so the caller can keep walking without special-casing
// failure.
type Checker struct {
	diag      *Diag
	outermost *Scope
	toplevel  *Scope
}

func NewChecker(diag *Diag) *Checker {
	return &Checker{diag: diag}
}

// OpenScope pushes a new nested scope. The very first call (made by
// ParseProgram before parsing anything) has no enclosing scope yet and
// becomes outermost, exactly as the reference implementation's single
// top-level openScope() call in main() does.
func (c *Checker) OpenScope() {
	c.toplevel = NewScope(c.toplevel)
	if c.outermost == nil {
		c.outermost = c.toplevel
	}
}

// CloseScope detaches and returns the current scope, mirroring the
// reference implementation's closeScope, which hands the scope to the
// Block node that owns it.
func (c *Checker) CloseScope() *Scope {
	s := c.toplevel
	c.toplevel = s.Enclosing
	return s
}

func (c *Checker) Outermost() *Scope { return c.outermost }

// --- declarations ---

// DeclareVariable inserts a new variable binding. A redeclaration in the
// same nested scope is always an error; at global scope a redeclaration is
// silently discarded when the types match and reported when they conflict,
// keeping the original binding either way.
func (c *Checker) DeclareVariable(name string, t Type) *Symbol {
	if sym := c.toplevel.Find(name); sym != nil {
		if c.outermost != c.toplevel {
			c.diag.Report("redeclaration of '%s'", name)
		} else if !sym.Type.Equal(t) {
			c.diag.Report("conflicting types for '%s'", name)
		}
		return sym
	}
	if t.Specifier == SpecVoid && t.Indirection == 0 {
		c.diag.Report("'%s' has type void", name)
	}
	sym := &Symbol{Name: name, Type: t}
	c.toplevel.Insert(sym)
	return sym
}

// DeclareFunction inserts or merges a function prototype. A matching
// existing declaration is reused; a conflicting one is reported.
func (c *Checker) DeclareFunction(name string, t Type) *Symbol {
	if existing := c.outermost.Find(name); existing != nil {
		if !existing.Type.Equal(t) {
			c.diag.Report("conflicting types for '%s'", name)
		}
		return existing
	}
	sym := &Symbol{Name: name, Type: t}
	c.outermost.Insert(sym)
	return sym
}

// DefineFunction installs the full definition of a function. The
// definition always replaces any previous definition or declaration, so
// the symbol the body is generated against carries the definition's own
// parameter list. A previous binding whose parameter list is present means
// a body was already given: that is a redefinition.
func (c *Checker) DefineFunction(name string, t Type) *Symbol {
	if existing := c.outermost.Find(name); existing != nil {
		if existing.Type.IsFunction() && existing.Type.Parameters != nil {
			c.diag.Report("redefinition of '%s'", name)
		} else if !existing.Type.Equal(t) {
			c.diag.Report("conflicting types for '%s'", name)
		}
		c.outermost.Remove(name)
	}
	sym := &Symbol{Name: name, Type: t}
	c.outermost.Insert(sym)
	return sym
}

// CheckIdentifier resolves a use of a name. An undeclared identifier is
// reported once and inserted into the *current* scope (not outermost)
// with Error type, matching the reference implementation's choice to
// avoid repeat "undeclared" diagnostics for every subsequent use in that
// scope.
func (c *Checker) CheckIdentifier(name string) *Symbol {
	if sym := c.toplevel.Lookup(name); sym != nil {
		return sym
	}
	c.diag.Report("'%s' undeclared", name)
	sym := &Symbol{Name: name, Type: ErrorType}
	c.toplevel.Insert(sym)
	return sym
}

// --- expression construction helpers ---

func identifierExpr(sym *Symbol) Expr {
	return &IdentifierExpr{
		ExprBase: ExprBase{Type: sym.Type, Lval: sym.Type.IsScalar()},
		Symbol:   sym,
	}
}

func numberExpr(v int64, t Type) Expr {
	return &NumberExpr{ExprBase: ExprBase{Type: t}, Value: v}
}

// cast wraps expr in a CastExpr targeting t. An integer literal widened
// to long is folded into the literal itself, the one case where a cast
// would change nothing about the operand's encoding.
func cast(expr Expr, t Type) Expr {
	if num, ok := expr.(*NumberExpr); ok {
		if num.Type.Equal(ScalarType(SpecInt, 0)) && t.Equal(ScalarType(SpecLong, 0)) {
			return numberExpr(num.Value, t)
		}
	}
	return &CastExpr{ExprBase: ExprBase{Type: t}, Operand: expr}
}

// promote applies char->int and array->pointer, wrapping with Cast or
// Address as appropriate; returns expr unchanged when no promotion
// applies.
func promote(expr Expr) Expr {
	t := expr.BaseType()
	if t.IsArray() {
		return &AddressExpr{ExprBase: ExprBase{Type: t.Promote()}, Operand: expr}
	}
	if t.IsScalar() && t.Indirection == 0 && t.Specifier == SpecChar {
		return cast(expr, t.Promote())
	}
	return expr
}

// convert coerces expr toward target "as if by assignment" — unlike
// extend it never refuses to narrow. Promotion is applied only to arrays:
// promoting a char first would be pointless when assigning to a char, or
// redundant when the int is about to be coerced anyway.
func convert(expr Expr, target Type) Expr {
	if expr.BaseType().IsArray() && target.IsPointer() {
		expr = promote(expr)
	}
	t := expr.BaseType()
	if !t.Equal(target) && t.IsNumeric() && target.IsNumeric() {
		return cast(expr, target)
	}
	return expr
}

// extend widens expr toward t but never truncates: a cast is inserted
// only when the source is char or the target is long. It always finishes
// with a promotion, so a char operand left uncast still arrives as int.
func extend(expr Expr, t Type) Expr {
	et := expr.BaseType()
	if !et.Equal(t) && et.IsNumeric() && t.IsNumeric() {
		if et.Equal(ScalarType(SpecChar, 0)) || t.Equal(ScalarType(SpecLong, 0)) {
			expr = cast(expr, t)
		}
	}
	return promote(expr)
}

func crossExtend(left, right Expr) (Expr, Expr, Type) {
	lt, rt := promote(left).BaseType(), promote(right).BaseType()
	result := ScalarType(SpecInt, 0)
	if lt.Specifier == SpecLong || rt.Specifier == SpecLong {
		result = ScalarType(SpecLong, 0)
	}
	return extend(left, result), extend(right, result), result
}

// scale multiplies (or, when dividing, the caller wraps) a pointer
// arithmetic integer operand by the pointee size, folding the
// multiplication into a literal operand when possible.
func scale(expr Expr, size int) Expr {
	expr = extend(expr, ScalarType(SpecLong, 0))
	if num, ok := expr.(*NumberExpr); ok {
		return numberExpr(num.Value*int64(size), ScalarType(SpecLong, 0))
	}
	return &BinaryExpr{
		ExprBase: ExprBase{Type: ScalarType(SpecLong, 0)},
		Op:       "*",
		Left:     expr,
		Right:    numberExpr(int64(size), ScalarType(SpecLong, 0)),
	}
}

// --- unary operators ---

func (c *Checker) CheckNot(operand Expr) Expr {
	op := promote(operand)
	t := op.BaseType()
	result := ErrorType
	if !t.IsError() {
		if t.IsPredicate() {
			result = ScalarType(SpecInt, 0)
		} else {
			c.diag.Report("invalid operand to unary %s", "!")
		}
	}
	return &NotExpr{ExprBase: ExprBase{Type: result}, Operand: op}
}

func (c *Checker) CheckNegate(operand Expr) Expr {
	op := promote(operand)
	t := op.BaseType()
	result := ErrorType
	if !t.IsError() {
		if t.IsNumeric() {
			result = t
		} else {
			c.diag.Report("invalid operand to unary %s", "-")
		}
	}
	return &NegateExpr{ExprBase: ExprBase{Type: result}, Operand: op}
}

func (c *Checker) CheckDereference(operand Expr) Expr {
	op := promote(operand)
	t := op.BaseType()
	result := ErrorType
	lval := false
	if !t.IsError() {
		if t.IsPointer() && !t.Equal(VoidPtr) {
			result = t.Deref()
			lval = true
		} else {
			c.diag.Report("invalid operand to unary %s", "*")
		}
	}
	return &DereferenceExpr{ExprBase: ExprBase{Type: result, Lval: lval}, Operand: op}
}

func (c *Checker) CheckAddress(operand Expr) Expr {
	t := operand.BaseType()
	if t.IsError() {
		return &AddressExpr{ExprBase: ExprBase{Type: ErrorType}, Operand: operand}
	}
	if !operand.Lvalue() {
		c.diag.Report("lvalue required in expression")
		return &AddressExpr{ExprBase: ExprBase{Type: ErrorType}, Operand: operand}
	}
	return &AddressExpr{ExprBase: ExprBase{Type: ScalarType(t.Specifier, t.Indirection+1)}, Operand: operand}
}

// CheckSizeof always folds directly to a Number literal, bypassing the
// "always construct the operator node" pattern used everywhere else, since
// sizeof is a compile-time constant with no run-time operand.
func (c *Checker) CheckSizeof(operand Expr) Expr {
	t := operand.BaseType()
	if t.IsError() || !t.IsPredicate() {
		if !t.IsError() {
			c.diag.Report("invalid operand to unary %s", "sizeof")
		}
		return numberExpr(0, ErrorType)
	}
	return numberExpr(int64(t.Size()), ScalarType(SpecLong, 0))
}

// --- subscript ---

// CheckArray rewrites e1[e2] as *(e1 + e2*sizeof(*e1)), the same shape the
// '+'/dereference checks would produce directly.
func (c *Checker) CheckArray(e1, e2 Expr) Expr {
	op := promote(e1)
	t1 := op.BaseType()
	t2 := e2.BaseType()
	result := ErrorType
	if !t1.IsError() && !t2.IsError() {
		if t1.IsPointer() && !t1.Equal(VoidPtr) && t2.IsNumeric() {
			e2 = scale(e2, t1.Deref().Size())
			result = t1.Deref()
		} else {
			c.diag.Report("invalid operands to binary %s", "[]")
		}
	}
	add := &BinaryExpr{ExprBase: ExprBase{Type: t1}, Op: "+", Left: op, Right: e2}
	return &DereferenceExpr{ExprBase: ExprBase{Type: result, Lval: !result.IsError()}, Operand: add}
}

// --- calls ---

func (c *Checker) CheckCall(sym *Symbol, args []Expr) Expr {
	if sym.Type.IsError() {
		return &CallExpr{ExprBase: ExprBase{Type: ErrorType}, Symbol: sym, Args: args}
	}
	if !sym.Type.IsFunction() {
		c.diag.Report("called object is not a function")
		return &CallExpr{ExprBase: ExprBase{Type: ErrorType}, Symbol: sym, Args: args}
	}
	params := sym.Type.Parameters
	bad := false
	if params == nil {
		for i, a := range args {
			pa := promote(a)
			if !pa.BaseType().IsError() && !pa.BaseType().IsPredicate() {
				bad = true
				break
			}
			args[i] = pa
		}
	} else {
		if len(args) != len(params) {
			bad = true
		} else {
			for i, a := range args {
				ca := convert(a, params[i])
				if !ca.BaseType().IsError() && !ca.BaseType().IsCompatibleWith(params[i]) {
					bad = true
					break
				}
				args[i] = ca
			}
		}
	}
	if bad {
		c.diag.Report("invalid arguments to called function")
		return &CallExpr{ExprBase: ExprBase{Type: ErrorType}, Symbol: sym, Args: args}
	}
	result := sym.Type
	return &CallExpr{ExprBase: ExprBase{Type: ScalarType(result.Specifier, result.Indirection)}, Symbol: sym, Args: args}
}

// --- binary arithmetic ---

func (c *Checker) CheckMultiplicative(op string, left, right Expr) Expr {
	lt, rt := left.BaseType(), right.BaseType()
	if lt.IsError() || rt.IsError() {
		return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: op, Left: left, Right: right}
	}
	if !promote(left).BaseType().IsNumeric() || !promote(right).BaseType().IsNumeric() {
		c.diag.Report("invalid operands to binary %s", op)
		return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: op, Left: left, Right: right}
	}
	l, r, result := crossExtend(left, right)
	return &BinaryExpr{ExprBase: ExprBase{Type: result}, Op: op, Left: l, Right: r}
}

func (c *Checker) CheckAdd(left, right Expr) Expr {
	lt, rt := left.BaseType(), right.BaseType()
	if lt.IsError() || rt.IsError() {
		return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: "+", Left: left, Right: right}
	}
	plt, prt := promote(left).BaseType(), promote(right).BaseType()

	switch {
	case plt.IsNumeric() && prt.IsNumeric():
		l, r, result := crossExtend(left, right)
		return &BinaryExpr{ExprBase: ExprBase{Type: result}, Op: "+", Left: l, Right: r}
	case plt.IsPointer() && !plt.Equal(VoidPtr) && prt.IsNumeric():
		l := promote(left)
		return &BinaryExpr{ExprBase: ExprBase{Type: plt}, Op: "+", Left: l, Right: scale(right, plt.Deref().Size())}
	case prt.IsPointer() && !prt.Equal(VoidPtr) && plt.IsNumeric():
		r := promote(right)
		return &BinaryExpr{ExprBase: ExprBase{Type: prt}, Op: "+", Left: scale(left, prt.Deref().Size()), Right: r}
	}
	c.diag.Report("invalid operands to binary %s", "+")
	return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: "+", Left: left, Right: right}
}

func (c *Checker) CheckSubtract(left, right Expr) Expr {
	lt, rt := left.BaseType(), right.BaseType()
	if lt.IsError() || rt.IsError() {
		return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: "-", Left: left, Right: right}
	}
	plt, prt := promote(left).BaseType(), promote(right).BaseType()

	switch {
	case plt.IsNumeric() && prt.IsNumeric():
		l, r, result := crossExtend(left, right)
		return &BinaryExpr{ExprBase: ExprBase{Type: result}, Op: "-", Left: l, Right: r}
	case plt.IsPointer() && !plt.Equal(VoidPtr) && prt.IsNumeric():
		l := promote(left)
		return &BinaryExpr{ExprBase: ExprBase{Type: plt}, Op: "-", Left: l, Right: scale(right, plt.Deref().Size())}
	case plt.IsPointer() && prt.IsPointer() && plt.Equal(prt) && !plt.Equal(VoidPtr):
		l, r := promote(left), promote(right)
		elemSize := plt.Deref().Size()
		sub := &BinaryExpr{ExprBase: ExprBase{Type: ScalarType(SpecLong, 0)}, Op: "-", Left: l, Right: r}
		return &BinaryExpr{
			ExprBase: ExprBase{Type: ScalarType(SpecLong, 0)},
			Op:       "/",
			Left:     sub,
			Right:    numberExpr(int64(elemSize), ScalarType(SpecLong, 0)),
		}
	}
	c.diag.Report("invalid operands to binary %s", "-")
	return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: "-", Left: left, Right: right}
}

func (c *Checker) CheckRelational(op string, left, right Expr) Expr {
	lt, rt := left.BaseType(), right.BaseType()
	if lt.IsError() || rt.IsError() {
		return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: op, Left: left, Right: right}
	}
	plt, prt := promote(left).BaseType(), promote(right).BaseType()
	ok := (plt.IsNumeric() && prt.IsNumeric()) || (plt.IsPointer() && plt.Equal(prt))
	if !ok {
		c.diag.Report("invalid operands to binary %s", op)
		return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: op, Left: left, Right: right}
	}
	var l, r Expr
	if plt.IsNumeric() {
		l, r, _ = crossExtend(left, right)
	} else {
		l, r = promote(left), promote(right)
	}
	return &BinaryExpr{ExprBase: ExprBase{Type: ScalarType(SpecInt, 0)}, Op: op, Left: l, Right: r}
}

func (c *Checker) CheckEquality(op string, left, right Expr) Expr {
	lt, rt := left.BaseType(), right.BaseType()
	if lt.IsError() || rt.IsError() {
		return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: op, Left: left, Right: right}
	}
	plt, prt := promote(left).BaseType(), promote(right).BaseType()
	if !plt.IsCompatibleWith(prt) {
		c.diag.Report("invalid operands to binary %s", op)
		return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: op, Left: left, Right: right}
	}
	var l, r Expr
	if plt.IsNumeric() {
		l, r, _ = crossExtend(left, right)
	} else {
		l, r = promote(left), promote(right)
	}
	return &BinaryExpr{ExprBase: ExprBase{Type: ScalarType(SpecInt, 0)}, Op: op, Left: l, Right: r}
}

func (c *Checker) CheckLogical(op string, left, right Expr) Expr {
	lt, rt := left.BaseType(), right.BaseType()
	if lt.IsError() || rt.IsError() {
		return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: op, Left: left, Right: right}
	}
	plt, prt := promote(left).BaseType(), promote(right).BaseType()
	if !plt.IsPredicate() || !prt.IsPredicate() {
		c.diag.Report("invalid operands to binary %s", op)
		return &BinaryExpr{ExprBase: ExprBase{Type: ErrorType}, Op: op, Left: left, Right: right}
	}
	return &BinaryExpr{ExprBase: ExprBase{Type: ScalarType(SpecInt, 0)}, Op: op, Left: promote(left), Right: promote(right)}
}

// --- assignment / control-flow tests ---

func (c *Checker) CheckAssignment(left, right Expr) (Expr, Expr) {
	r := convert(right, left.BaseType())
	if left.BaseType().IsError() || r.BaseType().IsError() {
		return left, r
	}
	if !left.Lvalue() {
		c.diag.Report("lvalue required in expression")
		return left, r
	}
	if !left.BaseType().IsCompatibleWith(r.BaseType()) {
		c.diag.Report("invalid operands to binary %s", "=")
	}
	return left, r
}

func (c *Checker) CheckReturn(expr Expr, want Type) Expr {
	c2 := convert(expr, want)
	if c2.BaseType().IsError() {
		return c2
	}
	if !c2.BaseType().IsCompatibleWith(want) {
		c.diag.Report("invalid return type")
	}
	return c2
}

func (c *Checker) CheckTest(expr Expr) Expr {
	p := promote(expr)
	if !p.BaseType().IsError() && !p.BaseType().IsPredicate() {
		c.diag.Report("invalid type for test expression")
	}
	return p
}
