package integrity

import (
	"sort"

	"github.com/WintersDeep/cv-ctf/internal/hash"
	"github.com/WintersDeep/cv-ctf/internal/workspace"
)

// calculateMurmurOaat64 walks [start, end) byte by byte, feeding each byte
// into a Murmur-OAAT-64 mixer seeded with seed, except that any address
// appearing in volatileQwords has its entire 8-byte qword skipped - those
// qwords hold values (hash outputs, generator state) that only become
// final after this same hashing pass runs, so they can't be hashed
// themselves without creating a cycle.
func calculateMurmurOaat64(ws *workspace.Workspace, start, end, seed uint64, volatileQwords []uint64) (uint64, error) {
	skip := make(map[uint64]bool, len(volatileQwords))
	for _, va := range volatileQwords {
		skip[va] = true
	}

	m := hash.NewMurmurOaat64(seed)
	for addr := start; addr < end; {
		if skip[addr] {
			addr += 8
			continue
		}
		b, err := ws.ReadAt(addr, 1)
		if err != nil {
			return 0, err
		}
		m.ConsumeByte(b[0])
		addr++
	}
	return m.Sum(), nil
}

// hashMurmur runs Murmur-OAAT-64 over a literal in-memory buffer, seeded
// with seed - used for InsertMurmur descriptors, which hash a captured
// value rather than a span of the binary itself.
func hashMurmur(seed uint64, buf []byte) uint64 {
	m := hash.NewMurmurOaat64(seed)
	m.Consume(buf)
	return m.Sum()
}

// sortedUint64 returns a sorted copy of vs, for deterministic iteration
// order when patching every occurrence of a magic pattern.
func sortedUint64(vs []uint64) []uint64 {
	out := append([]uint64(nil), vs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
