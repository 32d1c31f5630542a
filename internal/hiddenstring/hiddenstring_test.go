package hiddenstring

import (
	"encoding/binary"
	"testing"

	"github.com/WintersDeep/cv-ctf/internal/prng"
)

func TestShortSeedFoldsLongSeed(t *testing.T) {
	got := shortSeed(0x1122334455667788)
	want := uint32(0x11223344) ^ uint32(0x55667788)
	if got != want {
		t.Fatalf("expected 0x%08x, got 0x%08x", want, got)
	}
}

func TestNewIncludesTrailingNULAndIsDeterministic(t *testing.T) {
	h := New("flag{test}", 0xdeadbeefcafebabe)
	if len(h.Masked) != len("flag{test}")+1 {
		t.Fatalf("expected masked buffer to include the trailing NUL, got length %d", len(h.Masked))
	}

	// Masking the same plaintext with the same seed again must produce the
	// same masked bytes.
	again := New("flag{test}", 0xdeadbeefcafebabe)
	for i := range h.Masked {
		if h.Masked[i] != again.Masked[i] {
			t.Fatalf("expected masking to be deterministic for a fixed seed")
		}
	}
}

func TestNewConsumesOneWordPerFourBytes(t *testing.T) {
	const longSeed = 0xdeadbeefcafebabe
	h := New("12345678", longSeed) // 8 plaintext bytes + NUL = 9

	mt := prng.NewMT19937(shortSeed(longSeed))
	var expected []byte
	for len(expected) < len(h.Masked) {
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], mt.NextUint32())
		expected = append(expected, word[:]...)
	}

	plaintext := append([]byte("12345678"), 0)
	for i, b := range plaintext {
		if got, want := h.Masked[i]^b, expected[i]; got != want {
			t.Fatalf("byte %d: keystream mismatch, got 0x%02x want 0x%02x", i, got, want)
		}
	}
}

func TestHexArrayFormatting(t *testing.T) {
	h := HiddenString{Masked: []byte{0x00, 0xFF, 0x10}}
	if got, want := h.HexArray(), "0x00, 0xff, 0x10"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
