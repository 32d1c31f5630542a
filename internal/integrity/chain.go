package integrity

import (
	"fmt"
	"sort"

	"github.com/WintersDeep/cv-ctf/internal/markers"
)

// Layer is every IncrementalIntegrity descriptor sharing a chain and an
// order value - the unit a single Murmur-OAAT-64 pass is computed over.
type Layer struct {
	Order   int64
	Entries []markers.Descriptor
}

// Chain is every IncrementalIntegrity descriptor sharing a sequence name,
// bucketed into ascending-order layers. Layer 0 seeds the hash chain;
// later layers feed the previous layer's output in as their seed.
type Chain struct {
	Name   string
	Layers []Layer
}

// GroupChains buckets every IncrementalIntegrity descriptor (Action >= 0)
// into chains by name and layers by order, mirroring
// group_integrity_checks's groupby-on-sorted-order behaviour.
func GroupChains(descs []markers.Descriptor) []*Chain {
	byName := map[string]map[int64][]markers.Descriptor{}
	for _, d := range descs {
		if d.Action < 0 {
			continue
		}
		name := d.CString()
		if byName[name] == nil {
			byName[name] = map[int64][]markers.Descriptor{}
		}
		byName[name][int64(d.Action)] = append(byName[name][int64(d.Action)], d)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	chains := make([]*Chain, 0, len(names))
	for _, name := range names {
		byOrder := byName[name]
		orders := make([]int64, 0, len(byOrder))
		for o := range byOrder {
			orders = append(orders, o)
		}
		sort.Slice(orders, func(i, j int) bool { return orders[i] < orders[j] })

		layers := make([]Layer, 0, len(orders))
		for _, o := range orders {
			layers = append(layers, Layer{Order: o, Entries: byOrder[o]})
		}
		chains = append(chains, &Chain{Name: name, Layers: layers})
	}
	return chains
}

// Validate checks a chain's basic shape: it must be non-empty and every
// layer must carry at least one descriptor. Orders do not have to be
// consecutive or unique within a layer - GroupChains has already bucketed
// entries by distinct order value and sorted the layers ascending, so a
// chain with orders {0, 5} is just as valid as {0, 1, 2}; each layer still
// feeds the previous layer's output in as its seed, whatever the gap
// between their order numbers.
func (c *Chain) Validate() error {
	if len(c.Layers) == 0 {
		return fmt.Errorf("integrity: chain %q has no layers", c.Name)
	}
	for _, layer := range c.Layers {
		if len(layer.Entries) == 0 {
			return fmt.Errorf("integrity: chain %q layer %d has no entries", c.Name, layer.Order)
		}
	}
	return nil
}
