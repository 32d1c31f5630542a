// Package markers locates the two families of reservation markers that the
// crackme source leaves behind for this tool to fill in: NOP-run
// reservations for protected strings, and .hash-patch.* sections for
// integrity chains.
package markers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
)

// ProtectedStringSectionPattern matches the section names the compiler
// emits to mark a protected-string reservation, parallel to
// SectionNamePattern for hash-patch sections: .protected-string-entry.<id>
var ProtectedStringSectionPattern = regexp.MustCompile(`^\.protected-string-entry\.(?P<id>.+)$`)

// protectedStringHeaderSize is reservation_va(8) + reservation_size(4).
const protectedStringHeaderSize = 8 + 4

// ProtectedStringDescriptor is a parsed .protected-string-entry.* section:
// the approximate label address the compiler recorded ahead of the real
// NOP-run reservation, how large that reservation is, and the plaintext
// the constructor gadget chain synthesised into it must produce. There is
// no separate "destination" address recorded here - RBX already holds a
// pointer to the target buffer by the time the reservation's code starts
// executing.
type ProtectedStringDescriptor struct {
	ReservationVA   uint64
	ReservationSize uint32
	Plaintext       string
}

// ParseProtectedStringDescriptor decodes the fixed-layout header a
// .protected-string-entry.* section holds - {reservation_va uint64,
// reservation_size uint32} - followed by the variable-length,
// NUL-terminated ASCII string the reservation must produce.
func ParseProtectedStringDescriptor(raw []byte) (ProtectedStringDescriptor, error) {
	if len(raw) < protectedStringHeaderSize {
		return ProtectedStringDescriptor{}, fmt.Errorf("markers: protected-string section too small (%d bytes, want at least %d)", len(raw), protectedStringHeaderSize)
	}

	va := binary.LittleEndian.Uint64(raw[0:8])
	size := binary.LittleEndian.Uint32(raw[8:12])
	text := raw[protectedStringHeaderSize:]
	idx := bytes.IndexByte(text, 0)
	if idx < 0 {
		idx = len(text)
	}

	return ProtectedStringDescriptor{ReservationVA: va, ReservationSize: size, Plaintext: string(text[:idx])}, nil
}

// MaximumAsmPreamble is the maximum number of bytes GCC is expected to
// emit between a protected-string label and the real NOP-run reservation it
// precedes. The label marks an empty inline-ASM block; although the block
// itself is empty, the compiler's own register/stack bookkeeping around it
// pushes the reservation a few bytes further along, so the true reservation
// has to be searched for rather than read directly off the label address.
const MaximumAsmPreamble = 16

// ProtectedStringEntry is a located reservation for a protected string.
type ProtectedStringEntry struct {
	VA     uint64
	Length int
}

// LocateReservation scans scoped - bytes read starting at the label address
// baseVA - for the real reservation: a candidate NOP byte found within the
// first MaximumAsmPreamble bytes that starts a run of at least
// reservationLen consecutive NOP bytes, the candidate itself included.
//
// The scan resumes from the position the run-length check failed at (not
// from the candidate NOP+1, and not by restarting the whole scan) - this
// mirrors ProtectedString.locate_virtual_memory_address in the original
// implementation exactly, including on adversarial NOP patterns where a
// naive "try the next byte" resume would find a different, wrong match.
func LocateReservation(scoped []byte, baseVA uint64, reservationLen int) (ProtectedStringEntry, error) {
	current := 0
	limit := MaximumAsmPreamble
	if limit > len(scoped) {
		limit = len(scoped)
	}

	for current < limit {
		if scoped[current] == 0x90 {
			verifyEnd := current + reservationLen

			if verifyEnd <= len(scoped) {
				verify := current
				ok := true
				for ; verify < verifyEnd; verify++ {
					if scoped[verify] != 0x90 {
						ok = false
						break
					}
				}

				if ok {
					return ProtectedStringEntry{VA: baseVA + uint64(current), Length: reservationLen}, nil
				}

				current = verify
			}
		}

		current++
	}

	return ProtectedStringEntry{}, fmt.Errorf("markers: no %d-byte NOP reservation found within %d bytes of 0x%016x", reservationLen, MaximumAsmPreamble, baseVA)
}
