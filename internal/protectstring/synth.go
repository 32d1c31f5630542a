package protectstring

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/WintersDeep/cv-ctf/internal/manifest"
	"github.com/WintersDeep/cv-ctf/internal/markers"
	"github.com/WintersDeep/cv-ctf/internal/workspace"
	"github.com/WintersDeep/cv-ctf/pkg/amd64"
)

// MaxPatchTries bounds how many times Synthesize will retry a failed
// attempt (a junk-packing dead end, or a collision discovered only once
// compilation actually ran) before giving up. Each retry re-synthesises
// the assignment chain from scratch with a freshly shuffled gadget order,
// so a retry can succeed where the previous attempt's gadget choices led
// to a dead end.
const MaxPatchTries = 10

// Entry describes one protected string to synthesise: Code is the NOP-run
// reservation that will hold the constructor gadget chain, and Value is
// the plaintext the chain must reconstruct. There is no separate
// destination address - by the time the reservation's code runs, RBX
// already holds a pointer to wherever the caller wants the string built.
type Entry struct {
	Code  markers.ProtectedStringEntry
	Value []byte
}

// Synthesize compiles and writes a gadget chain into entry.Code that, when
// executed, reconstructs entry.Value at [rbx] one assignment gadget at a
// time, packing any leftover reservation space with junk gadgets so the
// whole region disassembles as plausible, harmless-looking code.
func Synthesize(ws *workspace.Workspace, entry Entry) error {
	chars := make([]StringCharacter, len(entry.Value))
	for i, b := range entry.Value {
		chars[i] = StringCharacter{Index: i, Value: b}
	}

	known := workspace.KnownBytesIn(ws)

	var lastErr error
	for attempt := 0; attempt < MaxPatchTries; attempt++ {
		guard := manifest.BeginTentative(ws.Manifest)

		assign, err := compileAssignmentChain(chars, known)
		if err != nil {
			guard.Rollback()
			lastErr = err
			continue
		}
		codeLen := assign.OpcodesLength()
		if codeLen > entry.Code.Length {
			guard.Rollback()
			lastErr = fmt.Errorf("protectstring: assignment chain for %d bytes needs %d bytes, reservation only has %d",
				len(entry.Value), codeLen, entry.Code.Length)
			continue
		}

		junkLen := entry.Code.Length - codeLen
		junk, err := packJunk(entry.Code.VA+uint64(codeLen), junkLen)
		if err != nil {
			guard.Rollback()
			lastErr = err
			continue
		}

		full := append(amd64.InstructionList{}, assign...)
		full = append(full, junk...)

		opcodes := full.Opcodes(entry.Code.VA)
		if len(opcodes) != entry.Code.Length {
			guard.Rollback()
			lastErr = fmt.Errorf("protectstring: compiled gadget chain is %d bytes, reservation is %d", len(opcodes), entry.Code.Length)
			continue
		}

		if err := ws.WriteAt(entry.Code.VA, opcodes, fmt.Sprintf("protected-string constructor at 0x%016x", entry.Code.VA)); err != nil {
			guard.Rollback()
			lastErr = err
			continue
		}

		guard.Confirm()
		return nil
	}

	return errors.Wrapf(lastErr, "protectstring: failed after %d attempts", MaxPatchTries)
}

// compileAssignmentChain claims every character in chars via a sequence of
// assignment gadgets, re-shuffling the gadget order on every iteration -
// ported from select_assignment_gadets. Randomising which gadget gets
// first refusal each time is what lets a retry of the whole synthesis
// attempt actually explore a different path through the search space
// instead of deterministically hitting the same dead end.
func compileAssignmentChain(chars []StringCharacter, known KnownByteSource) (amd64.InstructionList, error) {
	var out amd64.InstructionList
	cursor := 0
	unclaimed := append([]StringCharacter(nil), chars...)

	for len(unclaimed) > 0 {
		gadgets := AvailableAssignmentGadgets()
		order := rand.Perm(len(gadgets))

		var claimed, remaining []StringCharacter
		var chosen AssignmentGadget
		ok := false

		for _, idx := range order {
			g := gadgets[idx]
			if claimed, remaining, ok = g.Offer(unclaimed); ok {
				chosen = g
				break
			}
		}
		if !ok {
			return nil, fmt.Errorf("protectstring: no assignment gadget would claim the %d remaining characters", len(unclaimed))
		}

		instrs, newCursor, err := chosen.Compile(cursor, claimed, known)
		if err != nil {
			return nil, err
		}
		out = append(out, instrs...)
		cursor = newCursor
		unclaimed = remaining
	}

	return out, nil
}

// packJunk fills exactly length bytes starting at address at with a
// randomly ordered sequence of junk gadgets, falling back to single junk
// bytes for whatever remainder no gadget fits exactly.
func packJunk(at uint64, length int) (amd64.InstructionList, error) {
	var out amd64.InstructionList
	remaining := length
	cursor := at

	gadgets := AvailableJunkGadgets()
	order := rand.Perm(len(gadgets))

	for remaining > 0 {
		placed := false
		for _, idx := range order {
			g := gadgets[idx]
			size := g.Len(cursor)
			if size <= remaining {
				instrs := g.Compile(cursor)
				out = append(out, instrs...)
				cursor += uint64(size)
				remaining -= size
				placed = true
				break
			}
		}
		if !placed {
			out = append(out, amd64.JunkByte{})
			cursor++
			remaining--
		}
	}

	return out, nil
}
