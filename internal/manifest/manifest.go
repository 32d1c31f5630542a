// Package manifest tracks the patch bookkeeping that lives alongside a
// patched binary: which byte ranges are already spoken for (data
// dependencies), which are free for the taking (junk offsets), and the
// tentative-patch snapshot/restore semantics actions use to back out of a
// failed attempt cleanly.
package manifest

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// sidecarSuffix matches the original implementation's manifest file naming
// convention: <elf-path>.ebp.manifest
const sidecarSuffix = ".ebp.manifest"

// PathFor returns the manifest sidecar path for a given ELF path.
func PathFor(elfPath string) string {
	return elfPath + sidecarSuffix
}

// Manifest is the patch bookkeeping for a single binary.
type Manifest struct {
	LastSaved       *time.Time       `json:"last-saved"`
	LastSavedPath   string           `json:"last-saved-path"`
	DataDependencies DependencyList  `json:"data-dependencies"`
	JunkOffsets     []uint64         `json:"junk-offsets"`
}

// New returns an empty manifest, as used for a binary that has never been
// patched before.
func New() *Manifest {
	return &Manifest{}
}

// Load reads the manifest sidecar for elfPath, or returns a fresh manifest
// if no sidecar exists yet - mirroring PatchManifest.forElf.
func Load(elfPath string) (*Manifest, error) {
	path := PathFor(elfPath)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, errors.Wrapf(err, "manifest: locking %s", path)
	}
	defer lock.Unlock()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "manifest: reading %s", path)
	}

	m := New()
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, errors.Wrapf(err, "manifest: parsing %s", path)
	}
	return m, nil
}

// Save writes the manifest sidecar for elfPath, updating the last-saved
// bookkeeping fields first.
func (m *Manifest) Save(elfPath string) error {
	now := time.Now()
	m.LastSaved = &now
	m.LastSavedPath = elfPath

	path := PathFor(elfPath)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(err, "manifest: locking %s", path)
	}
	defer lock.Unlock()

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "manifest: encoding")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return errors.Wrapf(err, "manifest: writing %s", tmp)
	}
	return os.Rename(tmp, path)
}

// Copy returns a deep copy of the manifest, suitable for a tentative-patch
// snapshot.
func (m *Manifest) Copy() *Manifest {
	cp := &Manifest{
		LastSavedPath: m.LastSavedPath,
	}
	if m.LastSaved != nil {
		t := *m.LastSaved
		cp.LastSaved = &t
	}
	cp.DataDependencies = append(DependencyList(nil), m.DataDependencies...)
	cp.JunkOffsets = append([]uint64(nil), m.JunkOffsets...)
	return cp
}

// HasDependency reports whether the given range collides with an existing
// data dependency.
func (m *Manifest) HasDependency(va uint64, length int) bool {
	return m.DataDependencies.HasDependency(va, length)
}

// Collisions returns every dependency colliding with the given range.
func (m *Manifest) Collisions(va uint64, length int) []DataDependency {
	return m.DataDependencies.Collisions(va, length)
}

// RecordDataDependency claims [va, va+length) for the given reason, first
// evicting any junk offsets that now fall inside the claimed range - a byte
// cannot be both junk and depended-upon.
func (m *Manifest) RecordDataDependency(va uint64, length int, message string) {
	finish := va + uint64(length)
	kept := m.JunkOffsets[:0:0]
	for _, off := range m.JunkOffsets {
		if off >= va && off < finish {
			continue
		}
		kept = append(kept, off)
	}
	m.JunkOffsets = kept

	m.DataDependencies = append(m.DataDependencies, DataDependency{
		Start:   va,
		Length:  length,
		Message: message,
	})
}

// RegisterJunk marks a single address as holding a value that may be
// freely overwritten later.
func (m *Manifest) RegisterJunk(addr uint64) error {
	if m.HasDependency(addr, 1) {
		return fmt.Errorf("manifest: 0x%016x is already a data dependency, cannot also be junk", addr)
	}
	m.JunkOffsets = append(m.JunkOffsets, addr)
	return nil
}

// JunkAvailable returns the current pool of junk offsets.
func (m *Manifest) JunkAvailable() []uint64 { return m.JunkOffsets }

// AssignJunk claims a random junk offset, writes value there via write, and
// records the address as a new data dependency for message. It returns the
// address that was claimed.
func (m *Manifest) AssignJunk(value byte, message string, write func(addr uint64, b byte) error) (uint64, error) {
	if len(m.JunkOffsets) == 0 {
		return 0, fmt.Errorf("manifest: no junk offsets available to assign")
	}

	index := rand.IntN(len(m.JunkOffsets))
	addr := m.JunkOffsets[index]
	m.JunkOffsets = append(m.JunkOffsets[:index], m.JunkOffsets[index+1:]...)

	if err := write(addr, value); err != nil {
		return 0, err
	}

	m.RecordDataDependency(addr, 1, message)
	return addr, nil
}
