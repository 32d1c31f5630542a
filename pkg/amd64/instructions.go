package amd64

import "fmt"

// This file contains the x86-64 instruction encoders needed to synthesise
// patch gadgets: everything operates on RBX as the "cursor" register, plus
// RAX/RDX/CL as scratch for the XOR-chain gadgets.
//
// For details on x86-64 instruction encoding (REX prefixes, ModRM, SIB
// bytes), see: https://wiki.osdev.org/X86-64_Instruction_Encoding

// IncRBX encodes: inc rbx (48 FF C3)
type IncRBX struct{}

func (IncRBX) Len() int             { return 3 }
func (IncRBX) String() string       { return "inc    rbx" }
func (IncRBX) Encode(uint64) []byte { return []byte{0x48, 0xFF, 0xC3} }

// DecRBX encodes: dec rbx (48 FF CB)
type DecRBX struct{}

func (DecRBX) Len() int             { return 3 }
func (DecRBX) String() string       { return "dec    rbx" }
func (DecRBX) Encode(uint64) []byte { return []byte{0x48, 0xFF, 0xCB} }

// AddRBXImm8 encodes: add rbx, imm8 (48 83 C3 ib)
type AddRBXImm8 struct{ Distance int8 }

func (i AddRBXImm8) Len() int { return 4 }
func (i AddRBXImm8) String() string {
	return fmt.Sprintf("add    rbx, 0x%02x", uint8(i.Distance))
}
func (i AddRBXImm8) Encode(uint64) []byte {
	return []byte{0x48, 0x83, 0xC3, byte(i.Distance)}
}

// SubRBXImm8 encodes: sub rbx, imm8 (48 83 EB ib)
type SubRBXImm8 struct{ Distance int8 }

func (i SubRBXImm8) Len() int { return 4 }
func (i SubRBXImm8) String() string {
	return fmt.Sprintf("sub    rbx, 0x%02x", uint8(i.Distance))
}
func (i SubRBXImm8) Encode(uint64) []byte {
	return []byte{0x48, 0x83, 0xEB, byte(i.Distance)}
}

// MovBytePtrRBXImm8 encodes: mov BYTE PTR [rbx], imm8 (C6 03 ib)
type MovBytePtrRBXImm8 struct{ Value uint8 }

func (i MovBytePtrRBXImm8) Len() int { return 3 }
func (i MovBytePtrRBXImm8) String() string {
	return fmt.Sprintf("mov     BYTE PTR [rbx],0x%02x", i.Value)
}
func (i MovBytePtrRBXImm8) Encode(uint64) []byte {
	return []byte{0xC6, 0x03, i.Value}
}

// MovDWordPtrRBXImm8OffImm32 encodes: mov DWORD PTR [rbx+imm8], imm32 (C7 43 ib id)
type MovDWordPtrRBXImm8OffImm32 struct {
	Offset int8
	Value  uint32
}

func (i MovDWordPtrRBXImm8OffImm32) Len() int { return 7 }
func (i MovDWordPtrRBXImm8OffImm32) String() string {
	return fmt.Sprintf("mov     DWORD PTR[rbx + 0x%02x], 0x%08x", uint8(i.Offset), i.Value)
}
func (i MovDWordPtrRBXImm8OffImm32) Encode(uint64) []byte {
	buf := make([]byte, 7)
	buf[0] = 0xC7
	buf[1] = 0x43
	buf[2] = byte(i.Offset)
	writeLE32(buf[3:], i.Value)
	return buf
}

// MovCLImm8 encodes: mov cl, imm8 (B1 ib)
type MovCLImm8 struct{ Value uint8 }

func (i MovCLImm8) Len() int             { return 2 }
func (i MovCLImm8) String() string       { return fmt.Sprintf("mov     cl,0x%02x", i.Value) }
func (i MovCLImm8) Encode(uint64) []byte { return []byte{0xB1, i.Value} }

// ShlRDXCL encodes: shl rdx, cl (48 D3 E2)
type ShlRDXCL struct{}

func (ShlRDXCL) Len() int             { return 3 }
func (ShlRDXCL) String() string       { return "shl     rdx, cl" }
func (ShlRDXCL) Encode(uint64) []byte { return []byte{0x48, 0xD3, 0xE2} }

// XorDLImm8 encodes: xor dl, imm8 (80 F2 ib)
type XorDLImm8 struct{ Value uint8 }

func (i XorDLImm8) Len() int             { return 3 }
func (i XorDLImm8) String() string       { return fmt.Sprintf("xor     dl, 0x%02x", i.Value) }
func (i XorDLImm8) Encode(uint64) []byte { return []byte{0x80, 0xF2, i.Value} }

// XorDLBytePtrRIPOff encodes: xor dl, BYTE PTR [rip+disp32] (32 15 id)
type XorDLBytePtrRIPOff struct{ Address uint64 }

func (i XorDLBytePtrRIPOff) Len() int { return 6 }
func (i XorDLBytePtrRIPOff) String() string {
	return fmt.Sprintf("xor     dl, BYTE PTR[rip+0x00000000]  # 0x%08x", i.Address)
}
func (i XorDLBytePtrRIPOff) Encode(selfVA uint64) []byte {
	disp := ripDisp32(selfVA, i.Len(), i.Address)
	buf := make([]byte, 6)
	buf[0] = 0x32
	buf[1] = 0x15
	writeLE32(buf[2:], uint32(disp))
	return buf
}

// XorRAXRDX encodes: xor rax, rdx (48 31 D0)
type XorRAXRDX struct{}

func (XorRAXRDX) Len() int             { return 3 }
func (XorRAXRDX) String() string       { return "xor     rax, rdx" }
func (XorRAXRDX) Encode(uint64) []byte { return []byte{0x48, 0x31, 0xD0} }

// MovEAXDWordPtrRIPOff encodes: mov eax, DWORD PTR [rip+disp32] (8B 05 id)
type MovEAXDWordPtrRIPOff struct{ Address uint64 }

func (i MovEAXDWordPtrRIPOff) Len() int { return 6 }
func (i MovEAXDWordPtrRIPOff) String() string {
	return fmt.Sprintf("mov     eax, DWORD PTR[rip+0x00000000]     # 0x%08x", i.Address)
}
func (i MovEAXDWordPtrRIPOff) Encode(selfVA uint64) []byte {
	disp := ripDisp32(selfVA, i.Len(), i.Address)
	buf := make([]byte, 6)
	buf[0] = 0x8B
	buf[1] = 0x05
	writeLE32(buf[2:], uint32(disp))
	return buf
}

// MovRAXQWordPtrRIPOff encodes: mov rax, QWORD PTR [rip+disp32] (48 8B 05 id)
type MovRAXQWordPtrRIPOff struct{ Address uint64 }

func (i MovRAXQWordPtrRIPOff) Len() int { return 7 }
func (i MovRAXQWordPtrRIPOff) String() string {
	return fmt.Sprintf("mov     rax, QWORD PTR[rip+0x00000000]  # 0x%08x]", i.Address)
}
func (i MovRAXQWordPtrRIPOff) Encode(selfVA uint64) []byte {
	disp := ripDisp32(selfVA, i.Len(), i.Address)
	buf := make([]byte, 7)
	buf[0] = 0x48
	buf[1] = 0x8B
	buf[2] = 0x05
	writeLE32(buf[3:], uint32(disp))
	return buf
}

// MovDWordPtrRBXEAX encodes: mov DWORD PTR [rbx], eax (89 03)
type MovDWordPtrRBXEAX struct{}

func (MovDWordPtrRBXEAX) Len() int             { return 2 }
func (MovDWordPtrRBXEAX) String() string       { return "mov     DWORD PTR[rbx], eax" }
func (MovDWordPtrRBXEAX) Encode(uint64) []byte { return []byte{0x89, 0x03} }

// MovQWordPtrRBXRAX encodes: mov QWORD PTR [rbx], rax (48 89 03)
type MovQWordPtrRBXRAX struct{}

func (MovQWordPtrRBXRAX) Len() int             { return 3 }
func (MovQWordPtrRBXRAX) String() string       { return "mov     QWORD PTR[rbx], rax" }
func (MovQWordPtrRBXRAX) Encode(uint64) []byte { return []byte{0x48, 0x89, 0x03} }

// LeaRBXRIPOff encodes: lea rbx, [rip+disp32] (48 8D 1D id)
type LeaRBXRIPOff struct{ Address uint64 }

func (i LeaRBXRIPOff) Len() int { return 7 }
func (i LeaRBXRIPOff) String() string {
	return fmt.Sprintf("lea     rbx, [rip+0x00000000]  # 0x%08x]", i.Address)
}
func (i LeaRBXRIPOff) Encode(selfVA uint64) []byte {
	disp := ripDisp32(selfVA, i.Len(), i.Address)
	buf := make([]byte, 7)
	buf[0] = 0x48
	buf[1] = 0x8D
	buf[2] = 0x1D
	writeLE32(buf[3:], uint32(disp))
	return buf
}

// JmpRIPOff encodes: jmp rel8 (EB cb)
//
// Location is either an absolute VA (IsRelative=false) or an already
// relative displacement (IsRelative=true, used when the gadget synthesiser
// has computed the jump distance itself, e.g. the short jump over a junk
// byte in the XOR gadgets' literal-immediate fallback).
type JmpRIPOff struct {
	Location   int64
	IsRelative bool
}

func (JmpRIPOff) Len() int { return 2 }
func (i JmpRIPOff) String() string {
	if i.IsRelative {
		return fmt.Sprintf("jmp    rbx, [rip+0x%02x]", i.Location)
	}
	return fmt.Sprintf("jmp    rbx, %08x", i.Location)
}
func (i JmpRIPOff) Encode(selfVA uint64) []byte {
	var jumpDistance int64
	if i.IsRelative {
		jumpDistance = i.Location
	} else {
		jumpDistance = int64(ripDisp32(selfVA, i.Len(), uint64(i.Location)))
	}
	return []byte{0xEB, byte(int8(jumpDistance))}
}

// JunkByte is a single raw byte - not generally expected to be executed.
// JunkHook, if set, is invoked with the byte's own address whenever it is
// encoded, so callers can track which addresses end up holding junk values.
type JunkByte struct {
	Value    uint8
	JunkHook func(addr uint64)
}

func (JunkByte) Len() int         { return 1 }
func (i JunkByte) String() string { return fmt.Sprintf("JUNK(%02x)", i.Value) }
func (i JunkByte) Encode(selfVA uint64) []byte {
	if i.JunkHook != nil {
		i.JunkHook(selfVA)
	}
	return []byte{i.Value}
}
