package main

// Specifier is the scalar base kind underlying every Simple C type.
type Specifier int

const (
	SpecInt Specifier = iota
	SpecChar
	SpecLong
	SpecVoid
)

// Declarator distinguishes the four type shapes Simple C supports: plain
// scalars (with indirection), fixed-length arrays, function types, and the
// Error sentinel that propagates through a bad expression without causing
// a cascade of further diagnostics.
type Declarator int

const (
	DeclScalar Declarator = iota
	DeclArray
	DeclFunction
	DeclError
)

// Type is a value type: two Types with equal fields denote the same
// Simple C type. Parameters is nil for a function declared with an empty,
// unknown parameter list ("f()"); it is a non-nil (possibly zero-length)
// slice for a function whose parameter list was spelled out ("f(void)" or
// "f(int x)").
type Type struct {
	Declarator  Declarator
	Specifier   Specifier
	Indirection int
	Length      uint64
	Parameters  []Type // nil means "unknown / absent"
}

var ErrorType = Type{Declarator: DeclError}

func ScalarType(spec Specifier, indirection int) Type {
	return Type{Declarator: DeclScalar, Specifier: spec, Indirection: indirection}
}

func ArrayType(spec Specifier, indirection int, length uint64) Type {
	return Type{Declarator: DeclArray, Specifier: spec, Indirection: indirection, Length: length}
}

func FunctionType(spec Specifier, indirection int, params []Type) Type {
	return Type{Declarator: DeclFunction, Specifier: spec, Indirection: indirection, Parameters: params}
}

func (t Type) IsError() bool    { return t.Declarator == DeclError }
func (t Type) IsArray() bool    { return t.Declarator == DeclArray }
func (t Type) IsFunction() bool { return t.Declarator == DeclFunction }
func (t Type) IsScalar() bool   { return t.Declarator == DeclScalar }

// Equal implements the reference implementation's structural equality,
// including the rule that an absent parameter list is compatible with any
// parameter list on the other side.
func (t Type) Equal(rhs Type) bool {
	if t.Declarator != rhs.Declarator {
		return false
	}
	if t.Declarator == DeclError {
		return true
	}
	if t.Specifier != rhs.Specifier {
		return false
	}
	if t.Indirection != rhs.Indirection {
		return false
	}
	switch t.Declarator {
	case DeclScalar:
		return true
	case DeclArray:
		return t.Length == rhs.Length
	case DeclFunction:
		if t.Parameters == nil || rhs.Parameters == nil {
			return true
		}
		if len(t.Parameters) != len(rhs.Parameters) {
			return false
		}
		for i := range t.Parameters {
			if !t.Parameters[i].Equal(rhs.Parameters[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// IsPointer reports whether a value of this type behaves as a pointer:
// either genuine pointer indirection on a scalar, or an array (which
// decays to a pointer whenever it is used as a value).
func (t Type) IsPointer() bool {
	if t.Declarator == DeclArray {
		return true
	}
	return t.Declarator == DeclScalar && t.Indirection > 0
}

// IsNumeric reports whether the type is usable in arithmetic: a
// non-pointer scalar that is not void.
func (t Type) IsNumeric() bool {
	return t.Declarator == DeclScalar && t.Indirection == 0 && t.Specifier != SpecVoid
}

// IsPredicate reports whether the type may be used as a boolean test or as
// an operand of && / || / !.
func (t Type) IsPredicate() bool {
	return t.IsNumeric() || t.IsPointer()
}

// Promote applies the two fixed promotion rules: char -> int, and
// array-of-T -> pointer-to-T. Everything else is returned unchanged.
func (t Type) Promote() Type {
	if t.Declarator == DeclArray {
		return ScalarType(t.Specifier, t.Indirection+1)
	}
	if t.Declarator == DeclScalar && t.Indirection == 0 && t.Specifier == SpecChar {
		return ScalarType(SpecInt, 0)
	}
	return t
}

// Deref strips one layer of pointer indirection; the caller is responsible
// for only calling this on a type that IsPointer().
func (t Type) Deref() Type {
	if t.Declarator == DeclArray {
		return ScalarType(t.Specifier, t.Indirection)
	}
	if t.Indirection == 0 {
		panic("Deref of non-pointer type")
	}
	return ScalarType(t.Specifier, t.Indirection-1)
}

// Size returns the size in bytes of a value of this type. It is illegal to
// call Size on a Function or Error type.
func (t Type) Size() int {
	if t.Declarator == DeclFunction || t.Declarator == DeclError {
		panic("Size of function or error type")
	}
	count := 1
	if t.Declarator == DeclArray {
		count = int(t.Length)
	}
	if t.Indirection > 0 {
		return count * SizeofPtr
	}
	switch t.Specifier {
	case SpecChar:
		return count * SizeofChar
	case SpecInt:
		return count * SizeofInt
	case SpecLong:
		return count * SizeofLong
	}
	return 0
}

var VoidPtr = ScalarType(SpecVoid, 1)

// IsCompatibleWith implements the assignment/equality-comparison
// compatibility rule: both operands numeric, or both pointers whose
// promoted pointee types match, or either side being void*.
func (t Type) IsCompatibleWith(u Type) bool {
	if t.IsNumeric() && u.IsNumeric() {
		return true
	}
	if t.IsPointer() && u.IsPointer() {
		pt, pu := t.Promote(), u.Promote()
		if pt.Equal(pu) {
			return true
		}
		if t.Equal(VoidPtr) || u.Equal(VoidPtr) {
			return true
		}
	}
	return false
}

func (t Type) String() string {
	spec := [...]string{"int", "char", "long", "void"}[t.Specifier]
	switch t.Declarator {
	case DeclError:
		return "<error>"
	case DeclArray:
		return spec + repeatStars(t.Indirection) + "[]"
	case DeclFunction:
		return spec + repeatStars(t.Indirection) + "()"
	default:
		return spec + repeatStars(t.Indirection)
	}
}

func repeatStars(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "*"
	}
	return s
}
