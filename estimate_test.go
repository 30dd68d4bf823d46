package bloom

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestEstimateBits(t *testing.T) {
	cases := []struct {
		name    string
		n       uint64
		p       float64
		want    uint64
		wantErr bool
	}{
		{name: "planning example", n: 100, p: 1e-5, want: 2397},
		{name: "small filter", n: 10, p: 0.01, want: 96},
		{name: "p of 1 needs no bits", n: 10, p: 1, want: 0},
		{name: "zero entries", n: 0, p: 0.01, wantErr: true},
		{name: "zero p", n: 10, p: 0, wantErr: true},
		{name: "negative p", n: 10, p: -0.5, wantErr: true},
		{name: "p over 1", n: 10, p: 1.5, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EstimateBits(tc.n, tc.p)
			if tc.wantErr {
				if !errors.Is(err, ErrConstruction) {
					t.Fatalf("got error %v, want ErrConstruction", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEstimateHashes(t *testing.T) {
	cases := []struct {
		name    string
		m, n    uint64
		want    uint64
		wantErr bool
	}{
		{name: "planning example", m: 2397, n: 100, want: 17},
		{name: "small filter", m: 96, n: 10, want: 7},
		{name: "zero bits", m: 0, n: 10, want: 0},
		{name: "zero entries", m: 96, n: 0, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EstimateHashes(tc.m, tc.n)
			if tc.wantErr {
				if !errors.Is(err, ErrConstruction) {
					t.Fatalf("got error %v, want ErrConstruction", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEstimateEntries(t *testing.T) {
	cases := []struct {
		name    string
		m, k    uint64
		p       float64
		want    uint64
		wantErr bool
	}{
		{name: "planning example", m: 2397, k: 17, p: 1e-5, want: 101},
		{name: "zero hashes", m: 2397, k: 0, p: 1e-5, wantErr: true},
		{name: "zero p", m: 2397, k: 17, p: 0, wantErr: true},
		{name: "p of 1", m: 2397, k: 17, p: 1, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EstimateEntries(tc.m, tc.k, tc.p)
			if tc.wantErr {
				if !errors.Is(err, ErrConstruction) {
					t.Fatalf("got error %v, want ErrConstruction", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFalseProb(t *testing.T) {
	if got := FalseProb(2397, 17, 100); math.Abs(got-9.98338e-06) >= 2e-8 {
		t.Errorf("FalseProb(2397, 17, 100) = %g, want about 9.98338e-06", got)
	}
	if got := FalseProb(96, 7, 0); got != 0 {
		t.Errorf("FalseProb of an empty filter = %g, want 0", got)
	}

	// The rate only climbs as entries accumulate.
	prev := 0.0
	for n := uint64(0); n <= 200; n += 10 {
		p := FalseProb(2397, 17, n)
		if p < prev {
			t.Fatalf("FalseProb(2397, 17, %d) = %g, below %g at fewer entries", n, p, prev)
		}
		prev = p
	}
}

// The planning formulas agree with each other: sizing a filter for n
// entries and then asking its capacity back yields at least n.
func TestEstimateRoundTrip(t *testing.T) {
	const (
		n = uint64(100)
		p = 1e-5
	)
	m, err := EstimateBits(n, p)
	if err != nil {
		t.Fatal(err)
	}
	k, err := EstimateHashes(m, n)
	if err != nil {
		t.Fatal(err)
	}
	capacity, err := EstimateEntries(m, k, p)
	if err != nil {
		t.Fatal(err)
	}
	if capacity < n {
		t.Errorf("filter sized for %d entries estimates capacity %d", n, capacity)
	}
}
