package engine

// Rand is a xorshift64 generator. The same seed always yields the same
// sequence, on every platform, so clients can derive identical orderings
// without sharing any state beyond the document.
type Rand struct {
	state uint64
}

// NewRand returns a generator seeded with seed.
func NewRand(seed uint64) *Rand {
	if seed == 0 {
		seed = 1 // xorshift can't start at 0
	}
	return &Rand{state: seed}
}

// Uint64 returns the next value of the sequence.
func (r *Rand) Uint64() uint64 {
	x := r.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	r.state = x
	return x
}

// Intn returns a value in [0, n). n must be positive.
func (r *Rand) Intn(n int) int {
	return int(r.Uint64() % uint64(n))
}

// SeedFrom derives a generator seed from a string: the sum of its character
// codes, scrambled with the splitmix64 finalizer so that small sums still
// produce well-mixed initial states.
func SeedFrom(s string) uint64 {
	var sum uint64
	for _, c := range s {
		sum += uint64(c)
	}
	z := sum + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// ShuffleSeeded returns a reordered copy of items. The order depends only on
// seed and the input order.
func ShuffleSeeded[T any](items []T, seed string) []T {
	out := append([]T(nil), items...)
	r := NewRand(SeedFrom(seed))
	for i := len(out) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ShuffledPhrases returns the session's phrases in display order, seeded by
// the session ID.
func (g *Game) ShuffledPhrases() []Phrase {
	return ShuffleSeeded(g.Phrases, g.ID)
}

// StatementOrder returns the display permutation of an author's statements:
// position i shows statement order[i]. Seeded by session ID plus author ID so
// the lie does not always appear last.
func (g *Game) StatementOrder(authorID string) [StatementsPerPlayer]int {
	idx := make([]int, StatementsPerPlayer)
	for i := range idx {
		idx[i] = i
	}
	var order [StatementsPerPlayer]int
	copy(order[:], ShuffleSeeded(idx, g.ID+authorID))
	return order
}
