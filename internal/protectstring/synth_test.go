package protectstring

import "testing"

func TestCompileAssignmentChainConsumesEveryCharacter(t *testing.T) {
	// Enough clean executable bytes for the XOR gadgets to find a base
	// candidate, so whichever gadget the shuffle offers first can succeed.
	known := newStubKnownBytes(0x700000, []byte{
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88,
		0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x12,
	})

	value := []byte("a twelve byte!")
	chars := make([]StringCharacter, len(value))
	for i, b := range value {
		chars[i] = StringCharacter{Index: i, Value: b}
	}

	instrs, err := compileAssignmentChain(chars, known)
	if err != nil {
		t.Fatalf("compileAssignmentChain failed: %v", err)
	}
	if instrs.OpcodesLength() == 0 {
		t.Fatalf("expected a non-empty gadget chain")
	}
}

func TestPackJunkFillsExactLength(t *testing.T) {
	for _, length := range []int{0, 1, 2, 3, 6, 7, 23, 64} {
		instrs, err := packJunk(0x401000, length)
		if err != nil {
			t.Fatalf("length %d: packJunk failed: %v", length, err)
		}
		if got := instrs.OpcodesLength(); got != length {
			t.Fatalf("length %d: expected exactly %d bytes of junk, got %d", length, length, got)
		}
	}
}
