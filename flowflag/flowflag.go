// Package flowflag hands out the integer flags that identify flows to the
// consumers of published summaries.
package flowflag

import (
	"errors"
	"math/rand"
	"sync"
)

// Default range of flags.
const (
	DefaultMin = 1000
	DefaultMax = 2000
)

// ErrExhausted is returned when every flag of the range is in use.
var ErrExhausted = errors.New("all flow flags are in use")

// Allocator draws unique flags uniformly from [Min, Max].
type Allocator struct {
	mu   sync.Mutex
	min  int
	max  int
	used map[int]bool
	rng  *rand.Rand
}

// New returns an Allocator for [min, max] seeded with seed.
func New(min, max int, seed int64) *Allocator {
	return &Allocator{
		min:  min,
		max:  max,
		used: make(map[int]bool),
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Size returns the number of flags in the range.
func (a *Allocator) Size() int {
	if a.max < a.min {
		return 0
	}
	return a.max - a.min + 1
}

// Next returns a flag not returned before and not released since.
func (a *Allocator) Next() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	free := a.Size() - len(a.used)
	if free <= 0 {
		return 0, ErrExhausted
	}
	// Pick the k-th free flag: one draw and one bounded scan.
	k := a.rng.Intn(free)
	for f := a.min; f <= a.max; f++ {
		if a.used[f] {
			continue
		}
		if k == 0 {
			a.used[f] = true
			return f, nil
		}
		k--
	}
	return 0, ErrExhausted
}

// Reserve marks flag as used, e.g. when it was handed out by an earlier
// run. It reports false when the flag is outside the range or in use.
func (a *Allocator) Reserve(flag int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if flag < a.min || flag > a.max || a.used[flag] {
		return false
	}
	a.used[flag] = true
	return true
}

// Release returns flag to the pool.
func (a *Allocator) Release(flag int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.used, flag)
}

// InUse returns the number of flags handed out.
func (a *Allocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used)
}
