// Package protectstring synthesises the x86-64 gadget chains that rebuild
// a protected string at runtime inside a NOP-run reservation the compiler
// left behind for this purpose.
package protectstring

import (
	"fmt"
	"math/rand/v2"

	"github.com/WintersDeep/cv-ctf/pkg/amd64"
)

// StringCharacter is one target byte of the protected string, along with
// its 0-based offset from the start of the buffer RBX already points to
// when the reservation's code starts executing.
type StringCharacter struct {
	Index int
	Value byte
}

// prohibited lists byte values the XOR gadgets steer clear of when
// choosing bytes already present in the binary to reference: 0x00 would
// leave the XOR target defined entirely by the other operand (may as well
// be a direct assignment), and 0x90 could collide with a NOP reservation
// another action is using as a patch marker.
func prohibited(b byte) bool { return b == 0x00 || b == 0x90 }

func containsProhibited(bs []byte) bool {
	for _, b := range bs {
		if prohibited(b) {
			return true
		}
	}
	return false
}

// KnownByteSource supplies the raw material the XOR assignment gadgets
// reference instead of embedding their target bytes as plain immediates,
// so the string never appears in the clear anywhere in the binary, plus
// the manifest bookkeeping needed to keep those references collision-free.
type KnownByteSource interface {
	// ExecutableRuns returns the readable bytes of every executable
	// section, keyed by that section's base VA.
	ExecutableRuns() map[uint64][]byte
	// Collides reports whether [va, va+length) overlaps an existing data
	// dependency - a byte already spoken for by another patch.
	Collides(va uint64, length int) bool
	// RecordDependency claims [va, va+length) for message.
	RecordDependency(va uint64, length int, message string)
	// AssignJunk claims a junk byte, overwrites it with value, records the
	// claim as a new dependency, and returns the address used.
	AssignJunk(value byte, message string) (uint64, error)
}

// byteRun is a candidate sequence for use as an XOR base: a size-byte run
// found somewhere in an executable section, together with its VA.
type byteRun struct {
	va    uint64
	bytes []byte
}

// candidateBases returns every n-byte run in known's executable sections
// that contains no prohibited byte - ported from discover_xor_byte_sources,
// which scans each maximal run of non-prohibited bytes for every offset an
// n-byte window still fits at.
func candidateBases(known KnownByteSource, n int) []byteRun {
	var out []byteRun
	for va, buf := range known.ExecutableRuns() {
		start := 0
		for i := 0; i <= len(buf); i++ {
			if i < len(buf) && !prohibited(buf[i]) {
				continue
			}
			runLen := i - start
			for off := start; off+n <= start+runLen; off++ {
				out = append(out, byteRun{va: va + uint64(off), bytes: append([]byte(nil), buf[off:off+n]...)})
			}
			start = i + 1
		}
	}
	return out
}

// findByte returns every VA in known's executable sections currently
// holding value, excluding anything already claimed by another patch -
// ported from find_byte_in_section_memory.
func findByte(known KnownByteSource, value byte) []uint64 {
	var out []uint64
	for va, buf := range known.ExecutableRuns() {
		for i, b := range buf {
			if b != value {
				continue
			}
			addr := va + uint64(i)
			if known.Collides(addr, 1) {
				continue
			}
			out = append(out, addr)
		}
	}
	return out
}

// shiftCursor emits the instructions to move RBX from the character at
// fromIndex to the character at toIndex: no-op if already there, Inc/Dec
// for a distance of one, and one or more Add/Sub imm8 steps (each bounded
// to what a signed byte can hold) otherwise - ported from
// AssignmentGadgetBase.shift_target. There is no absolute re-initialisation
// case: RBX already holds the buffer address on entry (there is nothing to
// LEA to - the buffer is wherever the caller put it, not a fixed VA this
// patcher knows at compile time), so every move is relative to wherever
// RBX currently sits.
func shiftCursor(fromIndex, toIndex int) amd64.InstructionList {
	delta := toIndex - fromIndex
	var out amd64.InstructionList

	switch {
	case delta == 0:
		return nil
	case delta == 1:
		return amd64.InstructionList{amd64.IncRBX{}}
	case delta == -1:
		return amd64.InstructionList{amd64.DecRBX{}}
	case delta > 0:
		for delta > 0 {
			step := delta
			if step > 127 {
				step = 127
			}
			out = append(out, amd64.AddRBXImm8{Distance: int8(step)})
			delta -= step
		}
	default:
		delta = -delta
		for delta > 0 {
			step := delta
			if step > 127 {
				step = 127
			}
			out = append(out, amd64.SubRBXImm8{Distance: int8(step)})
			delta -= step
		}
	}

	return out
}

// locateConsecutiveRuns returns, for every length-byte run of Index-
// contiguous characters in unclaimed, the list-position its run starts at -
// ported from AssignmentGadgetBase.locate_consequitive_characters_of_length.
func locateConsecutiveRuns(unclaimed []StringCharacter, length int) []int {
	if len(unclaimed) == 0 {
		return nil
	}

	var starts []int
	last := unclaimed[0]
	counter := 1

	for i := 1; i < len(unclaimed); i++ {
		c := unclaimed[i]
		if c.Index == last.Index+1 {
			if counter >= length-1 {
				starts = append(starts, i-(length-1))
			}
		} else {
			counter = 0
		}
		counter++
		last = c
	}

	return starts
}

// AssignmentGadget claims some of the characters offered to it and writes
// them to memory, given the synthesiser's current assumption about RBX's
// character-index position.
type AssignmentGadget interface {
	// Offer inspects unclaimed (ordered by Index) and, if willing, claims
	// some of them, returning the claimed characters and what remains
	// unclaimed with the claimed entries removed. ok is false if this
	// gadget declines to claim anything right now.
	Offer(unclaimed []StringCharacter) (claimed, remaining []StringCharacter, ok bool)
	// Compile emits the instructions to write claimed to memory, assuming
	// RBX currently points at the character at cursor, and returns the new
	// assumed cursor.
	Compile(cursor int, claimed []StringCharacter, known KnownByteSource) (amd64.InstructionList, int, error)
}

// DirectByteAssignment writes a single byte with a plain immediate MOV,
// claimed at a uniformly-random position among whatever remains unclaimed.
// Simplest and cheapest gadget, but leaves the plaintext byte visible in
// the patched binary's code.
type DirectByteAssignment struct{}

// Offer always succeeds - every non-empty character list has at least one
// unclaimed character to take.
func (DirectByteAssignment) Offer(unclaimed []StringCharacter) ([]StringCharacter, []StringCharacter, bool) {
	if len(unclaimed) == 0 {
		return nil, unclaimed, false
	}

	idx := rand.IntN(len(unclaimed))
	claimed := []StringCharacter{unclaimed[idx]}

	remaining := make([]StringCharacter, 0, len(unclaimed)-1)
	remaining = append(remaining, unclaimed[:idx]...)
	remaining = append(remaining, unclaimed[idx+1:]...)
	return claimed, remaining, true
}

func (DirectByteAssignment) Compile(cursor int, claimed []StringCharacter, _ KnownByteSource) (amd64.InstructionList, int, error) {
	target := claimed[0].Index
	out := shiftCursor(cursor, target)
	out = append(out, amd64.MovBytePtrRBXImm8{Value: claimed[0].Value})
	return out, target, nil
}

// maxXorBaseAttempts bounds how many candidate base sequences
// xorAssignmentBase.pickBase will try before giving up - ported from
// pick_memory_xor_sequence's max_number_of_attempts.
const maxXorBaseAttempts = 15

// xorAssignmentBase is shared by the 32-bit and 64-bit XOR gadgets: it
// builds the XOR mask byte-by-byte into RDX (most significant byte
// first, each byte XORed in via DL then shifted up by one byte), loads a
// byte sequence already present in the binary into RAX/EAX, XORs the two
// together, and writes the result to [rbx].
type xorAssignmentBase struct {
	size int
}

// Offer claims a uniformly-random run of size Index-contiguous unclaimed
// characters, if one exists - ported from XorAssignmentBase.offer.
func (x xorAssignmentBase) Offer(unclaimed []StringCharacter) ([]StringCharacter, []StringCharacter, bool) {
	starts := locateConsecutiveRuns(unclaimed, x.size)
	if len(starts) == 0 {
		return nil, unclaimed, false
	}

	start := starts[rand.IntN(len(starts))]
	claimed := append([]StringCharacter(nil), unclaimed[start:start+x.size]...)

	remaining := make([]StringCharacter, 0, len(unclaimed)-x.size)
	remaining = append(remaining, unclaimed[:start]...)
	remaining = append(remaining, unclaimed[start+x.size:]...)
	return claimed, remaining, true
}

// pickBase chooses a size-byte run elsewhere in an executable section
// that, XORed byte-for-byte against claimed's target values, produces a
// mask containing no prohibited byte of its own - ported from
// pick_memory_xor_sequence, including its retry loop and the data
// dependency it records on the chosen base once accepted.
func (x xorAssignmentBase) pickBase(known KnownByteSource, claimed []StringCharacter, label string) (uint64, []byte, error) {
	candidates := candidateBases(known, x.size)
	if len(candidates) == 0 {
		return 0, nil, fmt.Errorf("protectstring: no %d-byte candidate sequence available for XOR base", x.size)
	}

	for attempt := 0; attempt < maxXorBaseAttempts && len(candidates) > 0; attempt++ {
		idx := rand.IntN(len(candidates))
		chosen := candidates[idx]
		candidates = append(candidates[:idx], candidates[idx+1:]...)

		if known.Collides(chosen.va, x.size) {
			continue
		}

		mask := make([]byte, x.size)
		for i := range mask {
			mask[i] = claimed[i].Value ^ chosen.bytes[i]
		}
		if containsProhibited(mask) {
			continue
		}

		known.RecordDependency(chosen.va, x.size, fmt.Sprintf("XOR base used to obfuscate string for %s", label))
		return chosen.va, mask, nil
	}

	return 0, nil, fmt.Errorf("protectstring: attempted to find an XOR solution without forbidden bytes %d times, but failed", maxXorBaseAttempts)
}

// buildMask assembles mask into RDX one byte per round, most significant
// byte first, shifting RDX left by a byte before each insertion - ported
// from the reversed(required_xors) loop in compile. Each byte is produced,
// in order of preference, by XORing against an existing occurrence of that
// value elsewhere in the binary, a junk byte repurposed to hold it, or -
// only as a last resort - a literal immediate padded with a short jump
// over a junk byte so both code paths occupy the same 6 bytes.
func (x xorAssignmentBase) buildMask(known KnownByteSource, mask []byte, label string) amd64.InstructionList {
	out := amd64.InstructionList{amd64.MovCLImm8{Value: 8}}

	for i := len(mask) - 1; i >= 0; i-- {
		target := mask[i]
		out = append(out, amd64.ShlRDXCL{})

		if addrs := findByte(known, target); len(addrs) > 0 {
			addr := addrs[rand.IntN(len(addrs))]
			known.RecordDependency(addr, 1, fmt.Sprintf("XOR key used to obfuscate string for %s", label))
			out = append(out, amd64.XorDLBytePtrRIPOff{Address: addr})
			continue
		}

		if addr, err := known.AssignJunk(target, fmt.Sprintf("XOR key (taken from junk) used to obfuscate string for %s", label)); err == nil {
			out = append(out, amd64.XorDLBytePtrRIPOff{Address: addr})
			continue
		}

		out = append(out,
			amd64.XorDLImm8{Value: target},
			amd64.JmpRIPOff{Location: 0x01, IsRelative: true},
			amd64.JunkByte{Value: byte(rand.IntN(256))},
		)
	}

	return out
}

// Xor32Assignment writes 4 bytes (one DWORD) via an XOR-disguised value.
type Xor32Assignment struct{ xorAssignmentBase }

// NewXor32Assignment constructs a 4-byte XOR assignment gadget.
func NewXor32Assignment() Xor32Assignment { return Xor32Assignment{xorAssignmentBase{size: 4}} }

func (g Xor32Assignment) Compile(cursor int, claimed []StringCharacter, known KnownByteSource) (amd64.InstructionList, int, error) {
	target := claimed[0].Index
	baseVA, mask, err := g.pickBase(known, claimed, "protected string")
	if err != nil {
		return nil, 0, err
	}

	out := shiftCursor(cursor, target)
	out = append(out, amd64.MovEAXDWordPtrRIPOff{Address: baseVA})
	out = append(out, g.buildMask(known, mask, "protected string")...)
	out = append(out, amd64.XorRAXRDX{})
	out = append(out, amd64.MovDWordPtrRBXEAX{})
	return out, target, nil
}

// Xor64Assignment writes 8 bytes (one QWORD) via an XOR-disguised value.
type Xor64Assignment struct{ xorAssignmentBase }

// NewXor64Assignment constructs an 8-byte XOR assignment gadget.
func NewXor64Assignment() Xor64Assignment { return Xor64Assignment{xorAssignmentBase{size: 8}} }

func (g Xor64Assignment) Compile(cursor int, claimed []StringCharacter, known KnownByteSource) (amd64.InstructionList, int, error) {
	target := claimed[0].Index
	baseVA, mask, err := g.pickBase(known, claimed, "protected string")
	if err != nil {
		return nil, 0, err
	}

	out := shiftCursor(cursor, target)
	out = append(out, amd64.MovRAXQWordPtrRIPOff{Address: baseVA})
	out = append(out, g.buildMask(known, mask, "protected string")...)
	out = append(out, amd64.XorRAXRDX{})
	out = append(out, amd64.MovQWordPtrRBXRAX{})
	return out, target, nil
}

// AvailableAssignmentGadgets lists every assignment gadget the synthesiser
// may choose between. Callers must shuffle the order themselves before
// offering characters to each in turn - DirectByteAssignment always
// accepts, so an unshuffled, fixed-order offer would starve the XOR
// gadgets of any chance to claim a run before direct assignment ate it one
// character at a time.
func AvailableAssignmentGadgets() []AssignmentGadget {
	return []AssignmentGadget{
		NewXor64Assignment(),
		NewXor32Assignment(),
		DirectByteAssignment{},
	}
}
