package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineLongSeedUsesLongSeedDirectly(t *testing.T) {
	got, err := determineLongSeed(0, false, 0x1122334455667788, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), got)
}

func TestDetermineLongSeedRejectsNegativeLongSeed(t *testing.T) {
	_, err := determineLongSeed(0, false, -1, true)
	assert.Error(t, err)
}

func TestDetermineLongSeedRejectsOversizedSeed(t *testing.T) {
	_, err := determineLongSeed(0x100000000, true, 0, false)
	assert.Error(t, err)
}

func TestDetermineLongSeedFoldsFragmentWithSeed(t *testing.T) {
	got, err := determineLongSeed(0x1234, true, 0, false)
	require.NoError(t, err)

	fragment := uint32(got >> 32)
	low := uint32(got & 0xffffffff)
	assert.Equal(t, uint32(0x1234), fragment^low)
}

func TestDetermineLongSeedRandomWithNeitherFlag(t *testing.T) {
	a, err := determineLongSeed(0, false, 0, false)
	require.NoError(t, err)
	b, err := determineLongSeed(0, false, 0, false)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "two unseeded calls should not collide (astronomically unlikely if derivation is correct)")
}
