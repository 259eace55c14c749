package main

import (
	"bufio"
	"fmt"
	"io"
)

// Register models one physical general-purpose register and which
// expression, if any, currently owns it — the same non-owning
// cross-pointer relationship the reference generator.cpp keeps between
// Register and Expression.
type Register struct {
	Name string
	Node Expr
}

func (r *Register) view(size int) string {
	if size == 1 {
		return byteView[r.Name]
	}
	if size == 4 {
		return "%e" + r.Name[1:]
	}
	return "%" + r.Name
}

var byteView = map[string]string{
	"rax": "%al", "rbx": "%bl", "rcx": "%cl", "rdx": "%dl",
	"rsi": "%sil", "rdi": "%dil", "rbp": "%bpl", "rsp": "%spl",
	"r8": "%r8b", "r9": "%r9b", "r10": "%r10b", "r11": "%r11b",
}

// Generator owns the register file, label counter, string pool and
// current-frame bookkeeping used while walking one function's Tree. State
// lives on the struct rather than package-level globals so a future
// caller could run independent compilations concurrently.
type Generator struct {
	out *bufio.Writer

	scratch []*Register
	byName  map[string]*Register

	labelCount int
	strings    map[string]string // literal bytes -> .L label
	stringSeq  []string          // label emission order

	curFn     string
	curOffset int // running spill cursor, most-negative so far
}

func NewGenerator(w io.Writer) *Generator {
	g := &Generator{
		out:     bufio.NewWriter(w),
		byName:  map[string]*Register{},
		strings: map[string]string{},
	}
	for _, name := range scratchRegNames {
		r := &Register{Name: name}
		g.scratch = append(g.scratch, r)
		g.byName[name] = r
	}
	return g
}

func (g *Generator) Flush() { g.out.Flush() }

func (g *Generator) emit(format string, args ...interface{}) {
	fmt.Fprintf(g.out, "\t"+format+"\n", args...)
}

func (g *Generator) label(text string) {
	fmt.Fprintf(g.out, "%s:\n", text)
}

func (g *Generator) newLabel() string {
	g.labelCount++
	return fmt.Sprintf("%s%d", labelPrefix, g.labelCount)
}

func suffix(size int) string {
	switch size {
	case 1:
		return "b"
	case 4:
		return "l"
	case 8:
		return "q"
	}
	panic("unsupported operand size")
}

// --- register file primitives ---

// assign binds reg and expr to each other, detaching any previous owner of
// reg first.
func (g *Generator) assign(expr Expr, reg *Register) {
	if reg.Node != nil {
		clearReg(reg.Node)
	}
	if r := regOf(expr); r != nil {
		r.Node = nil
	}
	setReg(expr, reg)
	reg.Node = expr
}

// spill writes a register's current occupant to a fresh stack slot and
// detaches it, making the register free.
func (g *Generator) spill(reg *Register) {
	if reg.Node == nil {
		return
	}
	expr := reg.Node
	size := expr.BaseType().Size()
	g.curOffset -= size
	off := g.curOffset
	setSpill(expr, off)
	g.emit("mov%s %s, %d(%%rbp)", suffix(size), reg.view(size), off)
	setReg(expr, nil)
	reg.Node = nil
}

// getreg returns a free register, spilling the first (oldest-tracked) one
// if the pool is exhausted.
func (g *Generator) getreg() *Register {
	for _, r := range g.scratch {
		if r.Node == nil {
			return r
		}
	}
	victim := g.scratch[0]
	g.spill(victim)
	return victim
}

// load ensures expr is resident in reg, spilling whatever reg currently
// holds first if necessary.
func (g *Generator) load(expr Expr, reg *Register) {
	if reg.Node != nil && reg.Node != expr {
		g.spill(reg)
	}
	if regOf(expr) == reg {
		return
	}
	size := expr.BaseType().Size()
	g.emit("mov%s %s, %s", suffix(size), g.operand(expr), reg.view(size))
	g.assign(expr, reg)
}

// operand renders the assembly text naming where expr currently lives:
// its register, else its spill slot, else (for identifiers/literals) its
// static location.
func (g *Generator) operand(expr Expr) string {
	if r := regOf(expr); r != nil {
		return r.view(expr.BaseType().Size())
	}
	switch e := expr.(type) {
	case *NumberExpr:
		return fmt.Sprintf("$%d", e.Value)
	case *StringExpr:
		return g.internString(e.Bytes) + "(%rip)"
	case *IdentifierExpr:
		if e.Symbol.Offset == 0 {
			return fmt.Sprintf("%s%s%s(%%rip)", globalPrefix, e.Symbol.Name, globalSuffix)
		}
		return fmt.Sprintf("%d(%%rbp)", e.Symbol.Offset)
	default:
		if off := spillOf(expr); off != 0 {
			return fmt.Sprintf("%d(%%rbp)", off)
		}
		panic("operand: expression has neither register nor spill slot")
	}
}

func (g *Generator) internString(b []byte) string {
	key := string(b)
	if lbl, ok := g.strings[key]; ok {
		return lbl
	}
	lbl := g.newLabel()
	g.strings[key] = lbl
	g.stringSeq = append(g.stringSeq, key)
	return lbl
}

// loadIntoAny ensures expr lives in some register, preferring the one it
// already occupies.
func (g *Generator) loadIntoAny(expr Expr) *Register {
	if r := regOf(expr); r != nil {
		return r
	}
	reg := g.getreg()
	g.load(expr, reg)
	return reg
}

// --- register/spill accessors on the Expr interface's concrete base ---

func regOf(e Expr) *Register {
	return baseOf(e).Reg
}

func setReg(e Expr, r *Register) {
	baseOf(e).Reg = r
}

func clearReg(e Expr) {
	baseOf(e).Reg = nil
}

func spillOf(e Expr) int {
	return baseOf(e).Spilled
}

func setSpill(e Expr, off int) {
	baseOf(e).Spilled = off
}

// baseOf extracts the embedded ExprBase from any concrete expression node
// via a type switch, since Go interfaces cannot expose embedded fields
// directly through the Expr interface.
func baseOf(e Expr) *ExprBase {
	switch n := e.(type) {
	case *NumberExpr:
		return &n.ExprBase
	case *StringExpr:
		return &n.ExprBase
	case *IdentifierExpr:
		return &n.ExprBase
	case *NotExpr:
		return &n.ExprBase
	case *NegateExpr:
		return &n.ExprBase
	case *AddressExpr:
		return &n.ExprBase
	case *DereferenceExpr:
		return &n.ExprBase
	case *CastExpr:
		return &n.ExprBase
	case *CallExpr:
		return &n.ExprBase
	case *BinaryExpr:
		return &n.ExprBase
	}
	panic("baseOf: unknown expression kind")
}

// --- top-level generation ---

// GenerateProgram allocates storage for and emits every function, then
// the global .comm declarations and the string literal pool. The caller
// only invokes this on an error-free parse, so the symbol and parameter
// lists are known to be consistent by the time the Allocator walks them.
func (g *Generator) GenerateProgram(funcs []*Function, outermost *Scope) {
	alloc := NewAllocator()
	for _, fn := range funcs {
		alloc.Allocate(fn)
		g.genFunction(fn)
	}
	g.genGlobals(outermost)
}

// genFunction emits one function. The frame size is not known until the
// body has been generated (spills discovered along the way extend it), so
// the prologue subtracts the assembler symbol <name>.size, defined by a
// .set directive emitted after the epilogue.
func (g *Generator) genFunction(fn *Function) {
	g.curFn = fn.Symbol.Name
	g.curOffset = -fn.Frame

	g.label(fn.Symbol.Name)
	g.emit("pushq %%rbp")
	g.emit("movq %%rsp, %%rbp")
	g.emit("movl $%s.size, %%eax", fn.Symbol.Name)
	g.emit("subq %%rax, %%rsp")

	params := fn.Symbol.Type.Parameters
	locals := fn.Body.Scope.Symbols()
	for i := 0; i < NumParamRegs && i < len(params); i++ {
		sz := locals[i].Type.Size()
		g.emit("mov%s %s, %d(%%rbp)", suffix(sz), paramRegView(i, sz), locals[i].Offset)
	}

	g.genBlock(fn.Body)

	g.label(fn.Symbol.Name + ".exit")
	g.emit("movq %%rbp, %%rsp")
	g.emit("popq %%rbp")
	g.emit("ret")
	fmt.Fprintln(g.out)

	g.emit(".set %s.size, %d", fn.Symbol.Name, alignUp(-g.curOffset, StackAlignment))
	g.emit(".globl %s%s%s", globalPrefix, fn.Symbol.Name, globalSuffix)
	fmt.Fprintln(g.out)
}

func paramRegView(i, size int) string {
	name := paramRegNames[i]
	r := &Register{Name: name}
	return r.view(size)
}

func (g *Generator) genBlock(b *Block) {
	for _, stmt := range b.Stmts {
		g.genStmt(stmt)
		g.assertRegistersFree()
	}
}

func (g *Generator) assertRegistersFree() {
	for _, r := range g.scratch {
		if r.Node != nil {
			panic("register leak: " + r.Name + " still bound between statements")
		}
	}
}

func (g *Generator) free(e Expr) {
	if r := regOf(e); r != nil {
		r.Node = nil
		clearReg(e)
	}
}

// --- statements ---

func (g *Generator) genStmt(s Stmt) {
	switch st := s.(type) {
	case *Block:
		g.genBlock(st)
	case *SimpleStmt:
		g.genExpr(st.Expr)
		g.free(st.Expr)
	case *AssignmentStmt:
		g.genAssignment(st)
	case *ReturnStmt:
		g.genExpr(st.Expr)
		g.load(st.Expr, g.byName["rax"])
		g.free(st.Expr)
		g.emit("jmp %s.exit", g.curFn)
	case *WhileStmt:
		g.genWhile(st)
	case *ForStmt:
		g.genFor(st)
	case *IfStmt:
		g.genIf(st)
	}
}

func (g *Generator) genAssignment(s *AssignmentStmt) {
	g.genExpr(s.Right)
	if deref, ok := s.Left.(*DereferenceExpr); ok {
		g.genExpr(deref.Operand)
		ptrReg := g.loadIntoAny(deref.Operand)
		valReg := g.loadIntoAny(s.Right)
		size := s.Right.BaseType().Size()
		g.emit("mov%s %s, (%s)", suffix(size), valReg.view(size), ptrReg.view(8))
		g.free(deref.Operand)
		g.free(s.Right)
		return
	}
	reg := g.loadIntoAny(s.Right)
	size := s.Right.BaseType().Size()
	g.emit("mov%s %s, %s", suffix(size), reg.view(size), g.operand(s.Left))
	g.free(s.Right)
}

func (g *Generator) genWhile(s *WhileStmt) {
	top := g.newLabel()
	done := g.newLabel()
	g.label(top)
	g.test(s.Cond, done, false)
	g.genStmt(s.Body)
	g.emit("jmp %s", top)
	g.label(done)
}

func (g *Generator) genFor(s *ForStmt) {
	g.genStmt(s.Init)
	top := g.newLabel()
	done := g.newLabel()
	g.label(top)
	g.test(s.Cond, done, false)
	g.genStmt(s.Body)
	g.genStmt(s.Incr)
	g.emit("jmp %s", top)
	g.label(done)
}

func (g *Generator) genIf(s *IfStmt) {
	if s.Else == nil {
		done := g.newLabel()
		g.test(s.Cond, done, false)
		g.genStmt(s.Then)
		g.label(done)
		return
	}
	elseLabel := g.newLabel()
	done := g.newLabel()
	g.test(s.Cond, elseLabel, false)
	g.genStmt(s.Then)
	g.emit("jmp %s", done)
	g.label(elseLabel)
	g.genStmt(s.Else)
	g.label(done)
}

// test generates cond, compares it against zero, and branches to label
// when it is zero (or nonzero, with jumpIfTrue) — the condition primitive
// shared by the loop/if generators and by the short-circuit operators,
// which materializes a conditional jump without leaving a boolean in a
// register.
func (g *Generator) test(cond Expr, label string, jumpIfTrue bool) {
	g.genExpr(cond)
	reg := g.loadIntoAny(cond)
	size := cond.BaseType().Size()
	g.emit("cmp%s $0, %s", suffix(size), reg.view(size))
	g.free(cond)
	if jumpIfTrue {
		g.emit("jne %s", label)
	} else {
		g.emit("je %s", label)
	}
}

// --- expressions ---

func (g *Generator) genExpr(e Expr) {
	switch n := e.(type) {
	case *NumberExpr, *StringExpr, *IdentifierExpr:
		// no code: materialized on demand via operand()
	case *NotExpr:
		g.genNot(n)
	case *NegateExpr:
		g.genNegate(n)
	case *AddressExpr:
		g.genAddress(n)
	case *DereferenceExpr:
		g.genDeref(n)
	case *CastExpr:
		g.genCast(n)
	case *CallExpr:
		g.genCall(n)
	case *BinaryExpr:
		g.genBinary(n)
	}
}

func (g *Generator) genNot(n *NotExpr) {
	g.genExpr(n.Operand)
	reg := g.loadIntoAny(n.Operand)
	size := n.Operand.BaseType().Size()
	g.emit("cmp%s $0, %s", suffix(size), reg.view(size))
	g.emit("sete %s", byteView[reg.Name])
	g.emit("movzbl %s, %s", byteView[reg.Name], reg.view(4))
	g.assign(n, reg)
}

func (g *Generator) genNegate(n *NegateExpr) {
	g.genExpr(n.Operand)
	reg := g.loadIntoAny(n.Operand)
	size := n.BaseType().Size()
	g.emit("neg%s %s", suffix(size), reg.view(size))
	g.assign(n, reg)
}

func (g *Generator) genAddress(n *AddressExpr) {
	if deref, ok := n.Operand.(*DereferenceExpr); ok {
		g.genExpr(deref.Operand)
		reg := g.loadIntoAny(deref.Operand)
		g.assign(n, reg)
		return
	}
	g.genExpr(n.Operand)
	reg := g.getreg()
	g.emit("leaq %s, %s", g.operand(n.Operand), reg.view(8))
	g.assign(n, reg)
}

func (g *Generator) genDeref(n *DereferenceExpr) {
	g.genExpr(n.Operand)
	reg := g.loadIntoAny(n.Operand)
	size := n.BaseType().Size()
	g.emit("mov%s (%s), %s", suffix(size), reg.view(8), reg.view(size))
	g.assign(n, reg)
}

func (g *Generator) genCast(n *CastExpr) {
	g.genExpr(n.Operand)
	from, to := n.Operand.BaseType().Size(), n.BaseType().Size()
	if from >= to {
		if r := regOf(n.Operand); r != nil {
			g.assign(n, r)
		} else {
			reg := g.getreg()
			g.load(n.Operand, reg)
			g.assign(n, reg)
		}
		return
	}
	reg := g.getreg()
	g.load(n.Operand, reg)
	op := map[[2]int]string{
		{1, 4}: "movsbl", {1, 8}: "movsbq", {4, 8}: "movslq",
	}[[2]int{from, to}]
	g.emit("%s %s, %s", op, reg.view(from), reg.view(to))
	g.assign(n, reg)
}

func (g *Generator) genCall(n *CallExpr) {
	for i := len(n.Args) - 1; i >= 0; i-- {
		g.genExpr(n.Args[i])
	}
	for _, r := range g.scratch {
		if r.Node != nil {
			g.spill(r)
		}
	}

	numBytes := 0
	if len(n.Args) > NumParamRegs {
		excess := (len(n.Args) - NumParamRegs) * SizeofParam
		if pad := alignUp(excess, StackAlignment) - excess; pad > 0 {
			numBytes = pad
			g.emit("subq $%d, %%rsp", pad)
		}
	}
	for i := len(n.Args) - 1; i >= NumParamRegs; i-- {
		g.load(n.Args[i], g.byName["rax"])
		g.emit("pushq %%rax")
		numBytes += SizeofParam
		g.free(n.Args[i])
	}
	for i := 0; i < NumParamRegs && i < len(n.Args); i++ {
		size := n.Args[i].BaseType().Size()
		dst := paramRegView(i, size)
		g.emit("mov%s %s, %s", suffix(size), g.operand(n.Args[i]), dst)
		g.free(n.Args[i])
	}
	if n.Symbol.Type.Parameters == nil {
		g.emit("movl $0, %%eax")
	}
	g.emit("call %s%s%s", globalPrefix, n.Symbol.Name, globalSuffix)
	if numBytes > 0 {
		g.emit("addq $%d, %%rsp", numBytes)
	}
	g.assign(n, g.byName["rax"])
}

func (g *Generator) genBinary(n *BinaryExpr) {
	switch n.Op {
	case "+", "-", "*":
		g.genSimpleBinary(n)
	case "/", "%":
		g.genDivRem(n)
	case "<", ">", "<=", ">=", "==", "!=":
		g.genCompare(n)
	case "&&", "||":
		g.genLogical(n)
	}
}

func (g *Generator) genSimpleBinary(n *BinaryExpr) {
	g.genExpr(n.Left)
	g.genExpr(n.Right)
	reg := g.loadIntoAny(n.Left)
	size := n.BaseType().Size()
	op := map[string]string{"+": "add", "-": "sub", "*": "imul"}[n.Op]
	g.emit("%s%s %s, %s", op, suffix(size), g.operand(n.Right), reg.view(size))
	g.free(n.Right)
	g.assign(n, reg)
}

func (g *Generator) genDivRem(n *BinaryExpr) {
	g.genExpr(n.Left)
	g.genExpr(n.Right)
	size := n.BaseType().Size()

	rax := g.byName["rax"]
	rdx := g.byName["rdx"]
	rcx := g.byName["rcx"]
	g.load(n.Left, rax)
	if rdx.Node != nil {
		g.spill(rdx)
	}
	g.load(n.Right, rcx)

	if size == 8 {
		g.emit("cqto")
	} else {
		g.emit("cltd")
	}
	g.emit("idiv%s %s", suffix(size), rcx.view(size))
	g.free(n.Left)
	g.free(n.Right)

	if n.Op == "/" {
		g.assign(n, rax)
	} else {
		g.assign(n, rdx)
	}
}

func (g *Generator) genCompare(n *BinaryExpr) {
	g.genExpr(n.Left)
	g.genExpr(n.Right)
	reg := g.loadIntoAny(n.Left)
	size := n.Left.BaseType().Size()
	g.emit("cmp%s %s, %s", suffix(size), g.operand(n.Right), reg.view(size))
	g.free(n.Right)
	g.free(n.Left)

	setcc := map[string]string{
		"<": "setl", ">": "setg", "<=": "setle", ">=": "setge",
		"==": "sete", "!=": "setne",
	}[n.Op]
	result := g.getreg()
	g.emit("%s %s", setcc, byteView[result.Name])
	g.emit("movzbl %s, %s", byteView[result.Name], result.view(4))
	g.assign(n, result)
}

// genLogical short-circuits with the test primitive: each operand jumps
// straight to the short-circuit label, and the 0/1 result is materialized
// only on the two join paths.
func (g *Generator) genLogical(n *BinaryExpr) {
	short := g.newLabel()
	done := g.newLabel()
	jumpIfTrue := n.Op == "||"

	g.test(n.Left, short, jumpIfTrue)
	g.test(n.Right, short, jumpIfTrue)

	result := g.getreg()
	if n.Op == "&&" {
		g.emit("movl $1, %s", result.view(4))
		g.emit("jmp %s", done)
		g.label(short)
		g.emit("movl $0, %s", result.view(4))
	} else {
		g.emit("movl $0, %s", result.view(4))
		g.emit("jmp %s", done)
		g.label(short)
		g.emit("movl $1, %s", result.view(4))
	}
	g.label(done)
	g.assign(n, result)
}

// --- globals and string pool ---

func (g *Generator) genGlobals(outermost *Scope) {
	if outermost == nil {
		return
	}
	for _, sym := range outermost.Symbols() {
		if sym.Type.IsFunction() || sym.Type.IsError() {
			continue
		}
		g.emit(".comm %s%s%s, %d", globalPrefix, sym.Name, globalSuffix, sym.Type.Size())
	}
	g.emit(".data")
	for _, key := range g.stringSeq {
		fmt.Fprintf(g.out, "%s:\t.asciz \"%s\"\n", g.strings[key], escapeString(key))
	}
}

// escapeString renders string-literal bytes (minus the terminating NUL,
// which .asciz supplies) in assembler escape syntax.
func escapeString(key string) string {
	b := []byte(key)
	if len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch {
		case c == '"':
			out = append(out, '\\', '"')
		case c == '\\':
			out = append(out, '\\', '\\')
		case c == '\n':
			out = append(out, '\\', 'n')
		case c == '\t':
			out = append(out, '\\', 't')
		case c == '\r':
			out = append(out, '\\', 'r')
		case c < 32 || c >= 127:
			out = append(out, fmt.Sprintf("\\%03o", c)...)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
