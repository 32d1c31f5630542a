package integrity

import (
	"fmt"
	"math/rand/v2"

	"github.com/WintersDeep/cv-ctf/internal/markers"
	"github.com/WintersDeep/cv-ctf/internal/workspace"
	"github.com/WintersDeep/cv-ctf/pkg/amd64"
)

// Section is the common contract every hash-patch descriptor variant
// satisfies. The four hooks mirror the original implementation's
// classmethod quartet (configure/patch, non-volatile/volatile), but here
// each concrete type only overrides the hooks it actually needs - embedding
// baseSection supplies harmless no-op defaults for the rest, instead of
// forcing every variant to restate an empty override.
type Section interface {
	// VolatileOffsets returns every qword address this section will
	// overwrite with a value only known after hashing - those addresses
	// must be excluded from any span that gets hashed, including spans
	// belonging to other sections.
	VolatileOffsets(ws *workspace.Workspace) ([]uint64, error)
	ConfigureNonVolatile(ws *workspace.Workspace, plan *Plan) error
	PatchNonVolatile(ws *workspace.Workspace, plan *Plan) error
	ConfigureVolatile(ws *workspace.Workspace, plan *Plan) error
	PatchVolatile(ws *workspace.Workspace, plan *Plan) error
}

type baseSection struct{}

func (baseSection) VolatileOffsets(*workspace.Workspace) ([]uint64, error) { return nil, nil }
func (baseSection) ConfigureNonVolatile(*workspace.Workspace, *Plan) error { return nil }
func (baseSection) PatchNonVolatile(*workspace.Workspace, *Plan) error     { return nil }
func (baseSection) ConfigureVolatile(*workspace.Workspace, *Plan) error    { return nil }
func (baseSection) PatchVolatile(*workspace.Workspace, *Plan) error        { return nil }

// IncrementalSection is one IncrementalIntegrity chain: a named sequence
// of layers, each hashed in turn and chained seed-to-output.
type IncrementalSection struct {
	baseSection
	Chain *Chain
}

func (s *IncrementalSection) span(layer Layer) (start, end uint64) {
	start = layer.Entries[0].StartOfEntry
	end = layer.Entries[0].EndOfEntry
	for _, e := range layer.Entries[1:] {
		if e.StartOfEntry < start {
			start = e.StartOfEntry
		}
		if e.EndOfEntry > end {
			end = e.EndOfEntry
		}
	}
	return
}

func (s *IncrementalSection) ConfigureNonVolatile(ws *workspace.Workspace, _ *Plan) error {
	if err := s.Chain.Validate(); err != nil {
		return err
	}
	start, end := s.span(s.Chain.Layers[0])
	seeds, err := findMagicQwords(ws, start, end, IntegritySeed)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		return fmt.Errorf("integrity: chain %q layer 0 has no seed placeholder", s.Chain.Name)
	}
	for _, layer := range s.Chain.Layers[1:] {
		lstart, lend := s.span(layer)
		extra, err := findMagicQwords(ws, lstart, lend, IntegritySeed)
		if err != nil {
			return err
		}
		if len(extra) != 0 {
			return fmt.Errorf("integrity: chain %q layer %d must not carry a seed placeholder", s.Chain.Name, layer.Order)
		}
	}
	return nil
}

func (s *IncrementalSection) VolatileOffsets(ws *workspace.Workspace) ([]uint64, error) {
	var out []uint64
	for _, layer := range s.Chain.Layers {
		start, end := s.span(layer)
		hashes, err := findMagicQwords(ws, start, end, IntegrityHash)
		if err != nil {
			return nil, err
		}
		out = append(out, hashes...)
	}
	return out, nil
}

func (s *IncrementalSection) PatchNonVolatile(ws *workspace.Workspace, plan *Plan) error {
	start, end := s.span(s.Chain.Layers[0])
	seeds, err := findMagicQwords(ws, start, end, IntegritySeed)
	if err != nil {
		return err
	}
	seed := rand.Uint64()
	if err := writeQwordEverywhere(ws, seeds, seed, fmt.Sprintf("integrity seed for chain %q", s.Chain.Name)); err != nil {
		return err
	}
	plan.ChainSeeds[s.Chain.Name] = seed
	return nil
}

func (s *IncrementalSection) PatchVolatile(ws *workspace.Workspace, plan *Plan) error {
	outputs := make([]uint64, len(s.Chain.Layers))
	seed := plan.ChainSeeds[s.Chain.Name]

	for i, layer := range s.Chain.Layers {
		start, end := s.span(layer)
		sum, err := calculateMurmurOaat64(ws, start, end, seed, plan.VolatileQwords)
		if err != nil {
			return err
		}

		hashes, err := findMagicQwords(ws, start, end, IntegrityHash)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("integrity hash for chain %q layer %d", s.Chain.Name, layer.Order)
		if err := writeQwordEverywhere(ws, hashes, sum, msg); err != nil {
			return err
		}

		outputs[i] = sum
		seed = sum
	}

	plan.ChainOutputs[s.Chain.Name] = outputs
	return nil
}

// GeneratorSection is a HashGenerator reservation - a runtime stub that
// rebuilds the table of volatile-qword addresses a debugger would
// otherwise have to statically enumerate, so instrumenting one doesn't
// immediately reveal which qwords are load-bearing.
type GeneratorSection struct {
	baseSection
	Descriptor markers.Descriptor
}

func (s *GeneratorSection) ConfigureNonVolatile(_ *workspace.Workspace, plan *Plan) error {
	needed := len(plan.VolatileQwords)
	if needed > MaxGeneratorSlots {
		return fmt.Errorf("integrity: %d volatile qwords exceeds the %d-slot generator capacity", needed, MaxGeneratorSlots)
	}

	reserved := int(s.Descriptor.UnsignedLong())
	if reserved < needed {
		return fmt.Errorf("integrity: generator at 0x%016x reserved space for %d volatile qwords but needs space for %d - set NUMBER_OF_VOLATILE_QWORDS to %d",
			s.Descriptor.StartOfEntry, reserved, needed, needed)
	}
	return nil
}

// requiredGeneratorPatchSize is the number of bytes of NOP-run space the
// generator's skip array and VM-start epilogue need: one
// MovDWordPtrRBXImm8OffImm32 (7 bytes) per volatile qword, plus one for an
// end-of-section marker and one for the 0xffffffff stop marker, plus a
// final LeaRBXRIPOff (7 bytes) to return the section's start address -
// ported from find_patch_reserved_space's required_patch_size.
func requiredGeneratorPatchSize(volatileQwords int) int {
	return (volatileQwords+2)*7 + 7
}

// findGeneratorReservation locates the sole run of at least length
// consecutive NOP (0x90) bytes in [start, end) - ported from
// find_patch_reserved_space, which regexes the scoped memory for
// \x90{required_patch_size,} and insists on exactly one match.
func findGeneratorReservation(ws *workspace.Workspace, start, end uint64, length int) (va uint64, runLength int, err error) {
	buf, err := ws.ReadAt(start, int(end-start))
	if err != nil {
		return 0, 0, err
	}

	type match struct{ offset, length int }
	var matches []match

	for i := 0; i < len(buf); {
		if buf[i] != 0x90 {
			i++
			continue
		}
		j := i
		for j < len(buf) && buf[j] == 0x90 {
			j++
		}
		if j-i >= length {
			matches = append(matches, match{i, j - i})
		}
		i = j
	}

	if len(matches) == 0 {
		return 0, 0, fmt.Errorf("integrity: generator needs a reservation of %d bytes, but none was found", length)
	}
	if len(matches) > 1 {
		return 0, 0, fmt.Errorf("integrity: generator needs a reservation of %d bytes, but found %d candidates", length, len(matches))
	}

	return start + uint64(matches[0].offset), matches[0].length, nil
}

// buildSkipsArray emits the skip table the generator walks at runtime: one
// MOV DWORD PTR [rbx+4i], (qword-cursor) entry per volatile qword - each
// value the distance to jump forward over that qword from wherever the
// previous entry left off - followed by an end-of-section marker and a
// 0xffffffff stop marker, ported from create_asm__build_skips_array.
func buildSkipsArray(volatileQwords []uint64, sectionStart, sectionEnd uint64) amd64.InstructionList {
	var out amd64.InstructionList
	cursor := sectionStart
	index := -1

	for i, q := range volatileQwords {
		out = append(out, amd64.MovDWordPtrRBXImm8OffImm32{
			Offset: int8(i * 4),
			Value:  uint32(q - cursor),
		})
		cursor = q + 8
		index = i
	}

	out = append(out,
		amd64.MovDWordPtrRBXImm8OffImm32{Offset: int8((index + 1) * 4), Value: uint32(sectionEnd - cursor)},
		amd64.MovDWordPtrRBXImm8OffImm32{Offset: int8((index + 2) * 4), Value: 0xffffffff},
	)

	return out
}

func (s *GeneratorSection) PatchNonVolatile(ws *workspace.Workspace, plan *Plan) error {
	allocSize := uint64(len(plan.VolatileQwords)+2) * 8
	allocSites, err := findMagicQwords(ws, s.Descriptor.StartOfEntry, s.Descriptor.EndOfEntry, GenAllocSize)
	if err != nil {
		return err
	}
	if err := writeQwordEverywhere(ws, allocSites, allocSize, "integrity generator allocation size"); err != nil {
		return err
	}

	// The section's virtual memory start isn't delivered via a second
	// magic-qword placeholder - the generator expects it in RBX, which the
	// trailing LEA below provides directly.
	section, err := ws.File.SectionContaining(s.Descriptor.StartOfEntry)
	if err != nil {
		return err
	}
	sectionStart, sectionEnd := section.Header.Addr, section.Header.Addr+section.Header.Size

	patchSize := requiredGeneratorPatchSize(len(plan.VolatileQwords))
	patchVA, reservedLen, err := findGeneratorReservation(ws, s.Descriptor.StartOfEntry, s.Descriptor.EndOfEntry, patchSize)
	if err != nil {
		return err
	}

	instrs := buildSkipsArray(plan.VolatileQwords, sectionStart, sectionEnd)
	instrs = append(instrs, amd64.LeaRBXRIPOff{Address: sectionStart})

	opcodes := instrs.Opcodes(patchVA)
	if len(opcodes) > reservedLen {
		return fmt.Errorf("integrity: generator skip-array patch is %d bytes, reservation only has %d", len(opcodes), reservedLen)
	}

	return ws.WriteAt(patchVA, opcodes, "integrity generator skip array and section start")
}

// XorToKnownSection patches one incremental-chain layer's output, XORed
// against a required value, into its placeholder slot - used where a
// literal hash output can't be embedded directly (e.g. it must equal a
// constant a separate, unaware piece of code compares against).
type XorToKnownSection struct {
	baseSection
	Descriptor markers.Descriptor
}

func (s *XorToKnownSection) PatchVolatile(ws *workspace.Workspace, plan *Plan) error {
	meta := s.Descriptor.XorToKnown()
	outputs, ok := plan.ChainOutputs[meta.Sequence]
	if !ok || int(meta.Order) >= len(outputs) {
		return fmt.Errorf("integrity: xor-to-known references unknown chain/layer %q order %d", meta.Sequence, meta.Order)
	}

	mask := meta.RequiredValue ^ outputs[meta.Order]
	sites, err := findMagicQwords(ws, s.Descriptor.StartOfEntry, s.Descriptor.EndOfEntry, XorMaskKnown)
	if err != nil {
		return err
	}
	return writeQwordEverywhere(ws, sites, mask, fmt.Sprintf("xor-to-known mask for chain %q layer %d", meta.Sequence, meta.Order))
}

// InsertMurmurSection hashes a literal expected buffer (not a binary span)
// seeded by an incremental chain's layer output, and writes the result to
// its placeholder - used to validate a value a chain computed matches one
// captured from elsewhere (e.g. user input) without ever comparing them
// directly.
type InsertMurmurSection struct {
	baseSection
	Descriptor markers.Descriptor
}

func (s *InsertMurmurSection) PatchVolatile(ws *workspace.Workspace, plan *Plan) error {
	meta := s.Descriptor.InsertMurmur()
	outputs, ok := plan.ChainOutputs[meta.Sequence]
	if !ok || int(meta.Order) >= len(outputs) {
		return fmt.Errorf("integrity: insert-murmur references unknown chain/layer %q order %d", meta.Sequence, meta.Order)
	}

	m := hashMurmur(outputs[meta.Order], meta.ExpectedBuffer)
	sites, err := findMagicQwords(ws, s.Descriptor.StartOfEntry, s.Descriptor.EndOfEntry, IntegrityHash)
	if err != nil {
		return err
	}
	return writeQwordEverywhere(ws, sites, m, fmt.Sprintf("insert-murmur hash for chain %q layer %d", meta.Sequence, meta.Order))
}
