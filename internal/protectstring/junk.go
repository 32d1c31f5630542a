package protectstring

import "github.com/WintersDeep/cv-ctf/pkg/amd64"

// JunkGadget fills leftover reservation space with instructions that do
// not affect the string assignment, so a disassembler sees plausible
// control flow instead of an obvious pad of single-byte NOPs.
type JunkGadget interface {
	// Len returns how many bytes this gadget would occupy if compiled at
	// the given address - callers use this to check a gadget fits before
	// calling Compile.
	Len(at uint64) int
	// Compile emits the gadget's instructions at the given address.
	Compile(at uint64) amd64.InstructionList
}

// MisalignedJump emits a single short JMP that targets its own second
// byte, so a linear disassembler that decodes straight through the
// reservation desyncs from the jump's true instruction boundary and
// misreads everything that follows it.
type MisalignedJump struct{}

func (MisalignedJump) Len(uint64) int { return amd64.JmpRIPOff{}.Len() }

func (MisalignedJump) Compile(at uint64) amd64.InstructionList {
	return amd64.InstructionList{amd64.JmpRIPOff{Location: int64(at) + 1}}
}

// Roundabout is the widest junk gadget: three short JMPs each immediately
// followed by a single junk byte, arranged so execution hops over the junk
// byte that follows each jump in turn, landing exactly where the
// reservation continues. It exists to burn a fixed, larger amount of
// leftover space than a single misaligned jump can productively obscure.
type Roundabout struct{}

func (Roundabout) Len(uint64) int {
	jmp := amd64.JmpRIPOff{}.Len()
	junk := amd64.JunkByte{}.Len()
	return 3*jmp + 3*junk
}

func (Roundabout) Compile(at uint64) amd64.InstructionList {
	jmpLen := uint64(amd64.JmpRIPOff{}.Len())
	junkLen := uint64(amd64.JunkByte{}.Len())

	// Layout: [jmp1][junk1][jmp2][junk2][jmp3][junk3]
	jmp1 := at
	junk1 := jmp1 + jmpLen
	jmp2 := junk1 + junkLen
	junk2 := jmp2 + jmpLen
	jmp3 := junk2 + junkLen
	junk3 := jmp3 + jmpLen
	end := junk3 + junkLen

	return amd64.InstructionList{
		amd64.JmpRIPOff{Location: int64(jmp2)}, // jump_back_distance: hop over junk1
		amd64.JunkByte{},
		amd64.JmpRIPOff{Location: int64(jmp3)}, // jump_out_distance: hop over junk2
		amd64.JunkByte{},
		amd64.JmpRIPOff{Location: int64(end)}, // jump_over_distance: hop over junk3, out of the gadget
		amd64.JunkByte{},
	}
}

// AvailableJunkGadgets lists every junk gadget, widest first - packJunk
// shuffles before picking so the widest isn't always tried first.
func AvailableJunkGadgets() []JunkGadget {
	return []JunkGadget{
		Roundabout{},
		MisalignedJump{},
	}
}
