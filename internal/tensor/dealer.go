package tensor

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/born-ml/pond/internal/fixedpoint"
)

// Dealer is the crypto producer of the two-party protocol. It splits
// values into additive shares and hands out Beaver triples for
// multiplications between private tensors.
//
// A Dealer is safe for concurrent use.
type Dealer struct {
	mu  sync.Mutex
	rng *rand.ChaCha8

	triples   atomic.Int64
	openings  atomic.Int64
	tripleLen atomic.Int64
}

// DealerStats counts the protocol work done through a dealer.
type DealerStats struct {
	Triples        int64 // Number of triples handed out.
	TripleElements int64 // Total elements across the triples' products.
	OpenedTensors  int64 // Number of masked tensors opened by the parties.
}

// NewDealer creates a dealer with a deterministic stream.
func NewDealer(seed [32]byte) *Dealer {
	return &Dealer{rng: rand.NewChaCha8(seed)}
}

// NewRandomDealer seeds a dealer from the operating system.
func NewRandomDealer() (*Dealer, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("tensor: seed dealer: %w", err)
	}
	return NewDealer(seed), nil
}

// Stats returns a snapshot of the dealer's counters.
func (d *Dealer) Stats() DealerStats {
	return DealerStats{
		Triples:        d.triples.Load(),
		TripleElements: d.tripleLen.Load(),
		OpenedTensors:  d.openings.Load(),
	}
}

func (d *Dealer) random(n int) []uint64 {
	out := make([]uint64, n)
	d.mu.Lock()
	for i := range out {
		out[i] = d.rng.Uint64()
	}
	d.mu.Unlock()
	return out
}

// Share splits ring values into two additive shares.
func (d *Dealer) Share(values []uint64) [2][]uint64 {
	s0 := d.random(len(values))
	s1 := make([]uint64, len(values))
	for i, v := range values {
		s1[i] = v - s0[i]
	}
	return [2][]uint64{s0, s1}
}

// NewPrivate encodes and shares data.
func (d *Dealer) NewPrivate(data []float64, shape Shape) (*PrivateTensor, error) {
	p, err := NewPublic(data, shape)
	if err != nil {
		return nil, err
	}
	return &PrivateTensor{shape: p.shape, shares: d.Share(p.values), dealer: d}, nil
}

// Wrap is a Wrapper producing private tensors from this dealer.
func (d *Dealer) Wrap(data []float64, shape Shape) Tensor {
	t, err := d.NewPrivate(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Encrypt shares an existing tensor. Private tensors are re-shared.
func (d *Dealer) Encrypt(t Tensor) *PrivateTensor {
	var values []uint64
	if p, ok := t.(*PrivateTensor); ok {
		values = p.reconstruct()
	} else {
		values = asPublic(t).values
	}
	return &PrivateTensor{shape: t.Shape().Clone(), shares: d.Share(values), dealer: d}
}

// mulTriple returns shares of a, b and c = a*b element-wise.
func (d *Dealer) mulTriple(n int) (a, b, c [2][]uint64) {
	av := d.random(n)
	bv := d.random(n)
	cv := make([]uint64, n)
	for i := range cv {
		cv[i] = av[i] * bv[i]
	}
	d.triples.Add(1)
	d.tripleLen.Add(int64(n))
	return d.Share(av), d.Share(bv), d.Share(cv)
}

// dotTriple returns shares of A (m×k), B (k×n) and C = A·B.
func (d *Dealer) dotTriple(m, k, n int) (a, b, c [2][]uint64) {
	av := d.random(m * k)
	bv := d.random(k * n)
	cv := matmul(av, bv, m, k, n)
	d.triples.Add(1)
	d.tripleLen.Add(int64(m * n))
	return d.Share(av), d.Share(bv), d.Share(cv)
}

// open reconstructs x - a from shares of x and a.
func (d *Dealer) open(x, a [2][]uint64) []uint64 {
	out := make([]uint64, len(x[0]))
	for i := range out {
		out[i] = (x[0][i] - a[0][i]) + (x[1][i] - a[1][i])
	}
	d.openings.Add(1)
	return out
}

// truncateShares rescales shared double-precision products in place.
func truncateShares(s [2][]uint64) {
	for i := range s[0] {
		s[0][i], s[1][i] = fixedpoint.TruncateShares(s[0][i], s[1][i])
	}
}
