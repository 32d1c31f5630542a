package integrity

import (
	"encoding/binary"

	"github.com/WintersDeep/cv-ctf/internal/workspace"
)

// findMagicQwords scans [start, end) for every 8-byte-aligned occurrence
// of magic, little-endian encoded - the compiler leaves these as
// placeholders for a seed, a hash output, or an XOR mask.
func findMagicQwords(ws *workspace.Workspace, start, end, magic uint64) ([]uint64, error) {
	var want [8]byte
	binary.LittleEndian.PutUint64(want[:], magic)

	var out []uint64
	for addr := start; addr+8 <= end; addr += 8 {
		got, err := ws.ReadAt(addr, 8)
		if err != nil {
			return nil, err
		}
		if string(got) == string(want[:]) {
			out = append(out, addr)
		}
	}
	return out, nil
}

// writeQwordEverywhere overwrites every address in addrs with value,
// little-endian encoded, recording each write as a dependency.
func writeQwordEverywhere(ws *workspace.Workspace, addrs []uint64, value uint64, message string) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	for _, addr := range addrs {
		if err := ws.WriteAt(addr, buf[:], message); err != nil {
			return err
		}
	}
	return nil
}
