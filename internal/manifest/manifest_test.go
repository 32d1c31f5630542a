package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataDependencyCollidesWith(t *testing.T) {
	d := DataDependency{Start: 0x1000, Length: 0x10, Message: "test"}

	cases := []struct {
		va     uint64
		length int
		want   bool
	}{
		{0x1000, 1, true},    // starts exactly at dependency start
		{0x100f, 1, true},    // last byte of dependency
		{0x1010, 1, false},   // one past the end
		{0x0ff0, 0x20, true}, // spans clean across the whole dependency
		{0x0f00, 0x10, false},
	}

	for _, tc := range cases {
		got := d.CollidesWith(tc.va, tc.length)
		assert.Equalf(t, tc.want, got, "CollidesWith(0x%x, %d)", tc.va, tc.length)
	}
}

func TestRecordDataDependencyEvictsJunk(t *testing.T) {
	m := New()
	m.JunkOffsets = []uint64{0x100, 0x104, 0x108}
	m.RecordDataDependency(0x102, 4, "claim")

	assert.NotContains(t, m.JunkOffsets, uint64(0x104))
	assert.Len(t, m.JunkOffsets, 2)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	elfPath := filepath.Join(dir, "crackme")
	require.NoError(t, os.WriteFile(elfPath, []byte("fake-elf"), 0644))

	m := New()
	m.RecordDataDependency(0x400100, 8, "entry point gadget")
	m.JunkOffsets = []uint64{0x400200, 0x400201}

	require.NoError(t, m.Save(elfPath))

	loaded, err := Load(elfPath)
	require.NoError(t, err)
	require.Len(t, loaded.DataDependencies, 1)
	assert.Equal(t, uint64(0x400100), loaded.DataDependencies[0].Start)
	assert.Len(t, loaded.JunkOffsets, 2)
}

func TestLoadMissingManifestReturnsFresh(t *testing.T) {
	dir := t.TempDir()
	elfPath := filepath.Join(dir, "no-manifest-yet")

	m, err := Load(elfPath)
	require.NoError(t, err)
	assert.Empty(t, m.DataDependencies)
	assert.Empty(t, m.JunkOffsets)
}

func TestTentativeGuardRollback(t *testing.T) {
	m := New()
	m.RecordDataDependency(0x1000, 1, "pre-existing")

	guard := BeginTentative(m)
	m.RecordDataDependency(0x2000, 1, "tentative change")
	require.Len(t, m.DataDependencies, 2)
	guard.Rollback()

	assert.Len(t, m.DataDependencies, 1)
}

func TestTentativeGuardConfirm(t *testing.T) {
	m := New()
	guard := BeginTentative(m)
	m.RecordDataDependency(0x3000, 1, "confirmed change")
	guard.Confirm()
	guard.Rollback() // should now be a no-op

	assert.Len(t, m.DataDependencies, 1)
}

func TestAssignJunk(t *testing.T) {
	m := New()
	m.JunkOffsets = []uint64{0x500}

	var written byte
	addr, err := m.AssignJunk(0x41, "assigned", func(a uint64, b byte) error {
		written = b
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x500), addr)
	assert.Equal(t, byte(0x41), written)
	assert.Empty(t, m.JunkOffsets)
	assert.True(t, m.HasDependency(0x500, 1))
}
