// Package launcher renders a patched binary's payload into a C header the
// 32-bit launcher stub embeds, obfuscating it with a four-parameter
// fizz-buzz XOR cipher along the way.
package launcher

// Parameters is the four random byte values the fizz-buzz cipher is keyed
// with: every Fizz'th byte (0-indexed) bumps the running key by FizzUp,
// every Buzz'th byte bumps it by BuzzUp, a byte that's a multiple of both
// gets both bumps, and any other byte just increments the key by one.
type Parameters struct {
	Fizz   byte
	FizzUp byte
	Buzz   byte
	BuzzUp byte
}

// ApplyFizzbuzz obfuscates payload in place, returning a new slice (the
// input is left untouched). Ported from the original's
// PayloadConfiguration.apply_fizzbuzz: a single key byte persists across
// the whole payload, 0-indexed, masked to a byte every round before it's
// XORed against that round's byte.
func ApplyFizzbuzz(payload []byte, p Parameters) []byte {
	out := make([]byte, len(payload))

	key := byte(1)
	for i, b := range payload {
		onFizz := p.Fizz != 0 && i%int(p.Fizz) == 0
		onBuzz := p.Buzz != 0 && i%int(p.Buzz) == 0

		if onFizz {
			key += p.FizzUp
		}
		if onBuzz {
			key += p.BuzzUp
		}
		if !onFizz && !onBuzz {
			key++
		}

		out[i] = b ^ key
	}
	return out
}
