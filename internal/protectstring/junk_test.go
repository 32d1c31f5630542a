package protectstring

import "testing"

func TestRoundaboutLenMatchesCompiledLength(t *testing.T) {
	g := Roundabout{}
	at := uint64(0x401000)
	instrs := g.Compile(at)
	if got, want := instrs.OpcodesLength(), g.Len(at); got != want {
		t.Fatalf("Len() reported %d but Compile produced %d bytes", want, got)
	}
}

func TestMisalignedJumpTargetsOwnSecondByte(t *testing.T) {
	g := MisalignedJump{}
	at := uint64(0x401000)
	instrs := g.Compile(at)
	if len(instrs) != 1 {
		t.Fatalf("expected a single instruction, got %d", len(instrs))
	}
	opcodes := instrs.Opcodes(at)
	if len(opcodes) != 2 || opcodes[0] != 0xEB {
		t.Fatalf("expected a 2-byte short jump, got % x", opcodes)
	}
	// rel8 distance from the end of the 2-byte jump (at+2) to at+1 is -1.
	if got, want := int8(opcodes[1]), int8(-1); got != want {
		t.Fatalf("expected rel8 displacement %d, got %d", want, got)
	}
}
