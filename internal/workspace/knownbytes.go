package workspace

// KnownBytes exposes a Workspace as a source of "already present in the
// binary" byte sequences, for gadgets that disguise a write as an XOR of
// two values that are both, individually, unremarkable.
type KnownBytes struct {
	ws *Workspace
}

// KnownBytesIn returns a KnownBytes view over ws's executable sections -
// only code sections are searched, since those are the only regions
// guaranteed to already be mapped read-only and unlikely to be rewritten
// again later by some other patch.
func KnownBytesIn(ws *Workspace) KnownBytes {
	return KnownBytes{ws: ws}
}

// ExecutableRuns returns the readable bytes of every executable section in
// the workspace, keyed by that section's base VA.
func (k KnownBytes) ExecutableRuns() map[uint64][]byte {
	out := map[uint64][]byte{}
	for _, s := range k.ws.File.Sections {
		if s.Header.Flags&0x4 == 0 { // SHF_EXECINSTR
			continue
		}
		buf, err := k.ws.ReadAt(s.Header.Addr, int(s.Header.Size))
		if err != nil {
			continue
		}
		out[s.Header.Addr] = buf
	}
	return out
}

// Collides reports whether [va, va+length) overlaps an existing data
// dependency - a byte already spoken for by another patch.
func (k KnownBytes) Collides(va uint64, length int) bool {
	return k.ws.Manifest.HasDependency(va, length)
}

// RecordDependency claims [va, va+length) for message.
func (k KnownBytes) RecordDependency(va uint64, length int, message string) {
	k.ws.Manifest.RecordDataDependency(va, length, message)
}

// AssignJunk claims a junk byte, overwrites it with value, records the
// claim as a new dependency, and returns the address used.
func (k KnownBytes) AssignJunk(value byte, message string) (uint64, error) {
	return k.ws.AssignJunk(value, message)
}
