package prng

import "testing"

// Known-good reference values for seed 5489 (the canonical MT19937 test
// seed used in the original C reference implementation).
func TestMT19937ReferenceSequence(t *testing.T) {
	mt := NewMT19937(5489)
	want := []uint32{3499211612, 581869302, 3890346734, 3586334585, 545404204}
	for i, w := range want {
		got := mt.NextUint32()
		if got != w {
			t.Fatalf("output %d: got %d, want %d", i, got, w)
		}
	}
}

func TestGenerateSkip(t *testing.T) {
	all := Generate(1234, 0, 10)
	skipped := Generate(1234, 5, 5)
	for i := 0; i < 5; i++ {
		if all[5+i] != skipped[i] {
			t.Fatalf("skip mismatch at %d: %d != %d", i, all[5+i], skipped[i])
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(42, 0, 20)
	b := Generate(42, 0, 20)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different sequences at %d", i)
		}
	}
}
