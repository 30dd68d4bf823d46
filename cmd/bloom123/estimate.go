package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	bloom "github.com/DEShawResearch/bloom123"
)

func (c maincmd) estimate(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		n       = fs.Uint64("n", 0, "expected number of entries")
		p       = fs.Float64("p", 0, "desired false-positive probability")
		maxbits = fs.Uint64("maxbits", 0, "error if the estimate needs more than this many bits")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	m, err := bloom.EstimateBits(*n, *p)
	if err != nil {
		return err
	}
	k, err := bloom.EstimateHashes(m, *n)
	if err != nil {
		return err
	}
	if *maxbits > 0 && m > *maxbits {
		return fmt.Errorf("%d entries at false-positive probability %v need %d bits, over -maxbits %d", *n, *p, m, *maxbits)
	}
	capacity, err := bloom.EstimateEntries(m, k, *p)
	if err != nil {
		return err
	}

	fmt.Printf("bits %d (%d bytes)\n", m, 8*((m+63)/64))
	fmt.Printf("hashes %d\n", k)
	fmt.Printf("capacity %d\n", capacity)
	for _, fill := range []uint64{*n / 2, *n, 2 * *n, 4 * *n} {
		if fill == 0 {
			continue
		}
		fmt.Printf("false-positive probability at %d entries: %g\n", fill, bloom.FalseProb(m, k, fill))
	}

	return nil
}
