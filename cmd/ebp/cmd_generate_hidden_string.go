package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/WintersDeep/cv-ctf/internal/hiddenstring"
)

func newGenerateHiddenStringCommand() *cobra.Command {
	var seed, longSeed int64
	var seedSet, longSeedSet bool

	cmd := &cobra.Command{
		Use:   "generate-hidden-string <hidden-string>",
		Short: "Generates values needed to embed a hidden string in the crackme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := determineLongSeed(seed, seedSet, longSeed, longSeedSet)
			if err != nil {
				return err
			}

			h := hiddenstring.New(args[0], resolved)

			fmt.Printf("      Seed (Literal): %d / 0x%08x\n", h.ShortSeed, h.ShortSeed)
			fmt.Printf("     Seed (Fragment): %d / 0x%016x\n", h.LongSeed, h.LongSeed)
			fmt.Printf("    Mask [hex-array]: %s\n", h.HexArray())
			fmt.Printf("         [ c-string]: %s\n", h.CString())
			return nil
		},
	}

	cmd.Flags().Int64VarP(&seed, "seed", "s", 0, "literal seed used to initialise the PRNG (usually omitted to be random)")
	cmd.Flags().Int64VarP(&longSeed, "long-seed", "l", 0, "fragmented seed used to initialise the PRNG (usually omitted to be random)")
	cmd.MarkFlagsMutuallyExclusive("seed", "long-seed")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		seedSet = cmd.Flags().Changed("seed")
		longSeedSet = cmd.Flags().Changed("long-seed")
		return nil
	}

	return cmd
}

// determineLongSeed resolves the 64-bit seed MT19937 is keyed with, ported
// from determine_long_seed: a literal --long-seed is used directly; a
// --seed (or, if omitted, a random 32-bit value) is folded into a 64-bit
// seed with a random 32-bit fragment so repeated runs without --long-seed
// don't collide, and with neither flag the whole thing is random.
func determineLongSeed(seed int64, seedSet bool, longSeed int64, longSeedSet bool) (uint64, error) {
	if longSeedSet {
		if longSeed < 0 {
			return 0, fmt.Errorf("generate-hidden-string: --long-seed must be in 0-0xffffffffffffffff")
		}
		return uint64(longSeed), nil
	}

	if seedSet && (seed < 0 || uint64(seed) != uint64(seed)&0xffffffff) {
		return 0, fmt.Errorf("generate-hidden-string: --seed must be in 0-0xffffffff")
	}

	fragment := rand.Uint32()
	testSeed := uint32(seed)
	if !seedSet {
		testSeed = rand.Uint32()
	}

	return uint64(fragment)<<32 | uint64(fragment^testSeed), nil
}
