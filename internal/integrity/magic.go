// Package integrity implements the hash-patch action: given the parsed
// .hash-patch.* marker sections left behind by the compiler, it groups them
// into integrity-check chains, and patches in working Murmur-OAAT-64
// hashes, XOR-masked known values, and a runtime hash-generator stub.
package integrity

// Magic byte patterns the compiler leaves as placeholders for this package
// to overwrite. Ported verbatim from the original implementation's
// constants module - they exist purely so a hex dump of an unpatched
// binary makes it obvious which qwords are waiting to be filled in.
const (
	IntegrityHash  uint64 = 0xaddf00dc0ffeebed
	IntegritySeed  uint64 = 0x1eaf5adca75f00d5
	XorMaskKnown   uint64 = 0x5afe70bec0d3ab1e
	GenVMStart     uint64 = 0xca11ab1e0ddba115
	GenAllocSize   uint64 = 0x5adc01dc0ffeebad
)

// MaxGeneratorSlots is the number of volatile qwords a single
// HashGenerator reservation can skip over. The generator emits one
// MOV DWORD PTR [rbx+disp8], imm32 instruction per qword plus a LEA to
// seed RBX and a terminal sentinel, and disp8 tops out at 127 - two slots
// are reserved for the sentinel pair, leaving this many usable.
const MaxGeneratorSlots = 30
