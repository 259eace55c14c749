package main

// Target machine constants for x86-64 System V AMD64, mirroring machine.h
// from the reference implementation this compiler's semantics are drawn
// from. Only the Linux conventions are needed: global symbols carry no
// prefix/suffix and local labels use the ".L" prefix.
const (
	SizeofChar  = 1
	SizeofInt   = 4
	SizeofLong  = 8
	SizeofPtr   = 8
	SizeofParam = 8
	SizeofReg   = 8

	NumParamRegs   = 6
	StackAlignment = 16
	globalPrefix   = ""
	globalSuffix   = ""
	labelPrefix    = ".L"
)

// paramRegNames and scratchRegNames list the physical registers used for
// argument passing and general-purpose scratch work, in the order the
// register file prefers to hand them out.
var paramRegNames = [NumParamRegs]string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

var scratchRegNames = []string{"r11", "r10", "r9", "r8", "rcx", "rdx", "rsi", "rdi", "rax"}

// alignUp rounds n up to the next multiple of align.
func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
