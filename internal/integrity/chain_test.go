package integrity

import (
	"testing"

	"github.com/WintersDeep/cv-ctf/internal/markers"
)

func descriptorNamed(name string, action int64, start, end uint64) markers.Descriptor {
	var d markers.Descriptor
	d.StartOfEntry = start
	d.EndOfEntry = end
	d.Action = markers.Action(action)
	copy(d.Meta[:], name)
	return d
}

func TestGroupChainsOrdersLayersAscending(t *testing.T) {
	descs := []markers.Descriptor{
		descriptorNamed("alpha", 1, 0x1000, 0x1010),
		descriptorNamed("alpha", 0, 0x1010, 0x1020),
		descriptorNamed("beta", 0, 0x2000, 0x2010),
	}

	chains := GroupChains(descs)
	if len(chains) != 2 {
		t.Fatalf("expected 2 chains, got %d", len(chains))
	}
	if chains[0].Name != "alpha" || chains[1].Name != "beta" {
		t.Fatalf("expected chains sorted by name, got %q then %q", chains[0].Name, chains[1].Name)
	}
	if chains[0].Layers[0].Order != 0 || chains[0].Layers[1].Order != 1 {
		t.Fatalf("expected layers ordered 0,1, got %+v", chains[0].Layers)
	}
}

func TestChainValidateAllowsGaps(t *testing.T) {
	c := &Chain{Name: "gappy", Layers: []Layer{
		{Order: 0, Entries: []markers.Descriptor{descriptorNamed("gappy", 0, 0, 1)}},
		{Order: 5, Entries: []markers.Descriptor{descriptorNamed("gappy", 5, 0, 1)}},
	}}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected orders {0, 5} to be a valid chain, got: %v", err)
	}
}

func TestChainValidateRejectsEmptyLayer(t *testing.T) {
	c := &Chain{Name: "empty", Layers: []Layer{{Order: 0}}}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected an error for an empty layer")
	}
}
