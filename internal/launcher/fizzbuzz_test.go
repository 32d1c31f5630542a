package launcher

import "testing"

func TestApplyFizzbuzzIsItsOwnInverse(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	params := Parameters{Fizz: 3, FizzUp: 0x5A, Buzz: 5, BuzzUp: 0xA5}

	obfuscated := ApplyFizzbuzz(payload, params)
	restored := ApplyFizzbuzz(obfuscated, params)

	if string(restored) != string(payload) {
		t.Fatalf("expected fizzbuzz to be its own inverse, got %q", restored)
	}
}

// TestApplyFizzbuzzCarriesRunningKey checks the key is a single running
// value carried across the whole payload rather than independently XORed
// per byte: key starts at 1, bumps by FizzUp on every Fizz'th (0-indexed)
// byte, by BuzzUp on every Buzz'th byte, both on a common multiple, and
// by 1 otherwise - each byte's key depends on every key before it.
func TestApplyFizzbuzzCarriesRunningKey(t *testing.T) {
	payload := make([]byte, 7)
	params := Parameters{Fizz: 2, FizzUp: 0x01, Buzz: 3, BuzzUp: 0x02}

	got := ApplyFizzbuzz(payload, params)

	want := []byte{4, 5, 6, 8, 9, 10, 13}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("byte %d: expected key 0x%02x, got 0x%02x (full: %v)", i, w, got[i], got)
		}
	}
}

func TestApplyFizzbuzzKeyMaskedToByte(t *testing.T) {
	// FIZZ_UP + BUZZ_UP + initial key overflows a byte on the very first
	// (0-indexed) position, which is a multiple of both Fizz and Buzz.
	payload := make([]byte, 1)
	params := Parameters{Fizz: 3, FizzUp: 0x0F, Buzz: 5, BuzzUp: 0xF0}

	got := ApplyFizzbuzz(payload, params)
	if got[0] != 0x00 {
		t.Fatalf("expected key to wrap mod 256 to 0x00, got 0x%02x", got[0])
	}
}
