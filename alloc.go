package main

import "modernc.org/mathutil"

// Allocator walks a function's tree assigning stack-frame offsets to every
// local and parameter, following the reference implementation's
// allocator.cpp: register-passed parameters spill to negative offsets,
// stack-passed parameters sit at positive offsets above the frame, and
// sibling blocks are free to share stack space since their lifetimes
// never overlap.
type Allocator struct{}

func NewAllocator() *Allocator { return &Allocator{} }

// Allocate assigns offsets throughout fn and records the most-negative
// offset reached. The Generator extends it with any spill slots created
// during emission and aligns the final frame, so the prologue's
// "subq $<name>.size" can be resolved by a .set directive emitted after
// the body.
func (a *Allocator) Allocate(fn *Function) {
	params := fn.Symbol.Type.Parameters
	locals := fn.Body.Scope.Symbols()

	offset := 2 * SizeofReg
	for i := NumParamRegs; i < len(params); i++ {
		locals[i].Offset = offset
		offset += SizeofParam
	}

	offset = 0
	for i := 0; i < NumParamRegs && i < len(params); i++ {
		offset -= params[i].Promote().Size()
		locals[i].Offset = offset
	}

	a.allocateBlock(fn.Body, &offset)
	fn.Frame = -offset
}

func (a *Allocator) allocateBlock(b *Block, offset *int) {
	for _, sym := range b.Scope.Symbols() {
		if sym.Offset == 0 {
			*offset -= sym.Type.Size()
			sym.Offset = *offset
		}
	}

	saved := *offset
	for _, stmt := range b.Stmts {
		temp := saved
		a.allocateStmt(stmt, &temp)
		*offset = mathutil.Min(*offset, temp)
	}
}

func (a *Allocator) allocateStmt(s Stmt, offset *int) {
	switch st := s.(type) {
	case *Block:
		a.allocateBlock(st, offset)
	case *WhileStmt:
		a.allocateStmt(st.Body, offset)
	case *ForStmt:
		a.allocateStmt(st.Body, offset)
	case *IfStmt:
		saved := *offset
		a.allocateStmt(st.Then, offset)
		if st.Else != nil {
			temp := saved
			a.allocateStmt(st.Else, &temp)
			*offset = mathutil.Min(*offset, temp)
		}
	case *SimpleStmt, *AssignmentStmt, *ReturnStmt:
		// leaves: no declarations, no storage to allocate
	}
}
