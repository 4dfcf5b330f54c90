// Package cardnum issues fixed-width numeric account and loan identifiers
// that are unique among all ids the process has seen or reserved.
package cardnum

import (
	"errors"
	"math/rand"
	"sync"
)

// ErrExhausted is returned by Reserve when every id of the configured
// width is already taken.
var ErrExhausted = errors.New("cardnum: id space exhausted")

// Allocator hands out zero-padded decimal id strings of a fixed width. It
// keeps an in-memory set of every id it considers taken; the check and the
// reservation happen under one mutex so concurrent callers can never draw
// the same id. The database unique constraint remains the backstop if the
// set ever desyncs from storage (e.g. across a restart racing another
// writer).
type Allocator struct {
	mu    sync.Mutex
	width int
	limit int64 // ids are drawn from [0, limit]
	taken map[string]struct{}
}

// New returns an allocator for ids of the given digit width. Width must be
// between 2 and 19 so the numeric range fits in an int64.
func New(width int) *Allocator {
	if width < 2 || width > 19 {
		panic("cardnum: width out of range")
	}
	limit := int64(1)
	for i := 0; i < width-1; i++ {
		limit *= 10
	}
	return &Allocator{
		width: width,
		limit: limit,
		taken: make(map[string]struct{}),
	}
}

// Load marks ids already present in storage as taken. Call it once at
// startup before serving requests.
func (a *Allocator) Load(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		a.taken[id] = struct{}{}
	}
}

// Reserve draws a random id, probes forward past taken ids, marks the
// result as taken and returns it. The caller owns the reservation: if the
// enclosing database write fails, it must hand the id back via Release.
// After one full wraparound without finding a free id it gives up with
// ErrExhausted.
func (a *Allocator) Reserve() (string, error) {
	n := rand.Int63n(a.limit + 1)
	a.mu.Lock()
	defer a.mu.Unlock()
	for attempts := int64(0); attempts <= a.limit; attempts++ {
		id := a.format(n)
		if _, ok := a.taken[id]; !ok {
			a.taken[id] = struct{}{}
			return id, nil
		}
		n++
		if n > a.limit {
			n = 0
		}
	}
	return "", ErrExhausted
}

// Release returns a reserved id to the free set. Used when the insert that
// should have persisted the id was rolled back.
func (a *Allocator) Release(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.taken, id)
}

// Taken reports whether id is currently reserved or loaded.
func (a *Allocator) Taken(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.taken[id]
	return ok
}

func (a *Allocator) format(n int64) string {
	buf := make([]byte, a.width)
	for i := a.width - 1; i >= 0; i-- {
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf)
}
