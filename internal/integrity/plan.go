package integrity

import "github.com/WintersDeep/cv-ctf/internal/markers"

// Plan is the shared, cross-phase state the hash-patch driver threads
// through every section's configure/patch hooks.
type Plan struct {
	Chains        []*Chain
	Generators    []markers.Descriptor
	XorEntries    []markers.Descriptor
	InsertEntries []markers.Descriptor

	// VolatileQwords is every address that must be skipped while hashing,
	// computed once up front from every section's VolatileOffsets.
	VolatileQwords []uint64

	// ChainSeeds holds the random seed written to each chain's layer 0,
	// set during PatchNonVolatile, read back during PatchVolatile.
	ChainSeeds map[string]uint64

	// ChainOutputs holds each chain's per-layer Murmur output, indexed by
	// order, populated as PatchVolatile works through the chains.
	ChainOutputs map[string][]uint64
}

// NewPlan groups raw descriptors into a Plan ready to drive the three
// configure/patch phases.
func NewPlan(descs []markers.Descriptor) *Plan {
	p := &Plan{
		ChainSeeds:   map[string]uint64{},
		ChainOutputs: map[string][]uint64{},
	}
	p.Chains = GroupChains(descs)

	for _, d := range descs {
		switch d.Action {
		case markers.ActionGenerator:
			p.Generators = append(p.Generators, d)
		case markers.ActionXorToKnown:
			p.XorEntries = append(p.XorEntries, d)
		case markers.ActionInsertMurmur:
			p.InsertEntries = append(p.InsertEntries, d)
		}
	}
	return p
}
