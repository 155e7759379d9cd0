package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
)

// Random is the source every random decision of a game draws from.
// Tests inject a seeded one to make tie-breaks and role deals reproducible.
type Random interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a goroutine-safe Random seeded with seed.
func NewRand(seed int64) Random {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

// NewSecureRand returns a Random seeded from crypto/rand.
func NewSecureRand() Random {
	return NewRand(secureSeed())
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}

// secureSeed fetches a strongly uniform seed via crypto/rand
func secureSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(b[:]) & (1<<63 - 1))
}
