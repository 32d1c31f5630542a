package amd64

// Instruction is a single x86-64 instruction that can be compiled into
// machine code once it knows where in memory it will live.
//
// RIP-relative instructions need to know their own virtual address to
// compute a disp32, which is why Encode takes the instruction's own VA
// rather than a precomputed offset - the original Python implementation
// made the same choice (CompilationState.vma_to_ripoff) for the same
// reason: by the time an instruction can see RIP, RIP already points past
// itself.
type Instruction interface {
	// Encode returns the opcode bytes for this instruction, assuming it
	// will be placed at virtual address selfVA.
	Encode(selfVA uint64) []byte

	// Len returns the number of bytes Encode will produce. Always static
	// per-instruction; needed up front to compute jump/offset distances
	// before the bytes themselves exist.
	Len() int

	// String renders the instruction as Intel-flavour assembly, for
	// debugging/dumping patch plans.
	String() string
}

// InstructionList is a sequence of instructions compiled as a unit.
type InstructionList []Instruction

// OpcodesLength returns the total encoded length of the list.
func (l InstructionList) OpcodesLength() int {
	total := 0
	for _, inst := range l {
		total += inst.Len()
	}
	return total
}

// Opcodes encodes every instruction in the list back to back, starting at
// baseVA.
func (l InstructionList) Opcodes(baseVA uint64) []byte {
	out := make([]byte, 0, l.OpcodesLength())
	va := baseVA
	for _, inst := range l {
		bytes := inst.Encode(va)
		out = append(out, bytes...)
		va += uint64(inst.Len())
	}
	return out
}

// ripDisp32 computes the signed 32-bit displacement from the instruction
// that ends at (selfVA + instLen) to targetVA, matching
// x64Instruction.vma_to_ripoff in the original implementation.
func ripDisp32(selfVA uint64, instLen int, targetVA uint64) int32 {
	currentRIP := int64(selfVA) + int64(instLen)
	return int32(int64(targetVA) - currentRIP)
}
