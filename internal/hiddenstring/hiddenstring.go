// Package hiddenstring builds the XOR-masked byte arrays the crackme
// embeds in place of any string literal it doesn't want visible to a
// casual strings(1) pass - each one MT19937-keyed from a 64-bit seed so it
// only decodes correctly inside the binary that generated it.
package hiddenstring

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/WintersDeep/cv-ctf/internal/prng"
)

// HiddenString is a plaintext string masked with an MT19937-derived XOR
// keystream, ready to render into C source.
type HiddenString struct {
	Plaintext string
	LongSeed  uint64
	ShortSeed uint32
	Masked    []byte
}

// shortSeed folds a 64-bit seed down to the 32 bits MT19937 actually
// takes, ported from the original implementation's seed derivation:
// (longSeed >> 32) ^ (longSeed & 0xffffffff).
func shortSeed(longSeed uint64) uint32 {
	return uint32(longSeed>>32) ^ uint32(longSeed&0xffffffff)
}

// New masks plaintext (plus a trailing NUL, matching the original's
// C-string-shaped buffer) with an MT19937 keystream seeded from longSeed.
//
// The keystream is four bytes per generator word, little-endian, not one
// byte per word - mersenne_twister_byte_iterator in the original unpacks
// each next_uint32() with struct.pack("<I", ...) and XORs the plaintext
// against that byte stream, so a 32-bit word is only drawn from the
// generator once every four output bytes.
func New(plaintext string, longSeed uint64) HiddenString {
	buf := append([]byte(plaintext), 0)
	short := shortSeed(longSeed)

	mt := prng.NewMT19937(short)
	masked := make([]byte, len(buf))

	var word [4]byte
	for i, b := range buf {
		if i%4 == 0 {
			binary.LittleEndian.PutUint32(word[:], mt.NextUint32())
		}
		masked[i] = b ^ word[i%4]
	}

	return HiddenString{Plaintext: plaintext, LongSeed: longSeed, ShortSeed: short, Masked: masked}
}

// HexArray renders the masked bytes as a C array initializer body, e.g.
// "0x41, 0x42, 0x00".
func (h HiddenString) HexArray() string {
	parts := make([]string, len(h.Masked))
	for i, b := range h.Masked {
		parts[i] = fmt.Sprintf("0x%02x", b)
	}
	return strings.Join(parts, ", ")
}

// CString renders the masked bytes as a C escaped-string literal body, e.g.
// "\x41\x42\x00".
func (h HiddenString) CString() string {
	var b strings.Builder
	for _, by := range h.Masked {
		fmt.Fprintf(&b, "\\x%02x", by)
	}
	return b.String()
}
