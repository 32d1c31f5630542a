package integrity

import (
	"github.com/pkg/errors"

	"github.com/WintersDeep/cv-ctf/internal/manifest"
	"github.com/WintersDeep/cv-ctf/internal/markers"
	"github.com/WintersDeep/cv-ctf/internal/workspace"
)

// Run takes the descriptors of the .hash-patch.* sections already located in
// ws, groups and validates the incremental-integrity chains they describe,
// and patches in working
// seeds, hashes, XOR masks and a generator stub - the three-phase
// (non-volatile configure/patch, then volatile configure/patch) sequence
// ported from the original hash-patch action's top-level call.
func Run(ws *workspace.Workspace, descs []markers.Descriptor) error {
	guard := manifest.BeginTentative(ws.Manifest)
	defer guard.Rollback()

	plan := NewPlan(descs)

	var sections []Section
	for _, c := range plan.Chains {
		sections = append(sections, &IncrementalSection{Chain: c})
	}
	for _, d := range plan.Generators {
		sections = append(sections, &GeneratorSection{Descriptor: d})
	}
	for _, d := range plan.XorEntries {
		sections = append(sections, &XorToKnownSection{Descriptor: d})
	}
	for _, d := range plan.InsertEntries {
		sections = append(sections, &InsertMurmurSection{Descriptor: d})
	}

	// Volatile offsets are collected before Phase A (rather than after, as
	// the non-volatile/volatile split might suggest) because the
	// generator's capacity check in ConfigureNonVolatile needs the final
	// count to validate against - mirroring the original implementation,
	// where configure_non_volatile computes this list itself rather than
	// relying on a separately phased value.
	var volatile []uint64
	for _, s := range sections {
		offs, err := s.VolatileOffsets(ws)
		if err != nil {
			return errors.Wrap(err, "integrity: collecting volatile offsets")
		}
		volatile = append(volatile, offs...)
	}
	plan.VolatileQwords = sortedUint64(volatile)

	// Phase A: non-volatile configuration - validate shape, and nothing
	// is written to the binary yet.
	for _, s := range sections {
		if err := s.ConfigureNonVolatile(ws, plan); err != nil {
			return errors.Wrap(err, "integrity: configure (non-volatile)")
		}
	}

	// Phase B: non-volatile writes - seeds and generator bookkeeping.
	for _, s := range sections {
		if err := s.PatchNonVolatile(ws, plan); err != nil {
			return errors.Wrap(err, "integrity: patch (non-volatile)")
		}
	}

	// Phase C: volatile configuration, then incremental chains first (so
	// their outputs exist for XorToKnown/InsertMurmur to reference), then
	// everything that depends on a chain's output.
	for _, s := range sections {
		if err := s.ConfigureVolatile(ws, plan); err != nil {
			return errors.Wrap(err, "integrity: configure (volatile)")
		}
	}
	for _, c := range plan.Chains {
		s := &IncrementalSection{Chain: c}
		if err := s.PatchVolatile(ws, plan); err != nil {
			return errors.Wrap(err, "integrity: patch chain")
		}
	}
	for _, d := range plan.XorEntries {
		s := &XorToKnownSection{Descriptor: d}
		if err := s.PatchVolatile(ws, plan); err != nil {
			return errors.Wrap(err, "integrity: patch xor-to-known")
		}
	}
	for _, d := range plan.InsertEntries {
		s := &InsertMurmurSection{Descriptor: d}
		if err := s.PatchVolatile(ws, plan); err != nil {
			return errors.Wrap(err, "integrity: patch insert-murmur")
		}
	}

	guard.Confirm()
	return nil
}
