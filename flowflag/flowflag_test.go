package flowflag

import (
	"sync"
	"testing"
)

func TestAllocatorExhaustsRange(t *testing.T) {
	a := New(10, 19, 1)
	seen := map[int]bool{}
	for i := 0; i < a.Size(); i++ {
		f, err := a.Next()
		if err != nil {
			t.Fatalf("Next() failed after %d flags: %v", i, err)
		}
		if f < 10 || f > 19 {
			t.Errorf("flag %d outside [10, 19]", f)
		}
		if seen[f] {
			t.Errorf("flag %d handed out twice", f)
		}
		seen[f] = true
	}
	if _, err := a.Next(); err != ErrExhausted {
		t.Errorf("Next() = %v, want ErrExhausted", err)
	}
	a.Release(15)
	if f, err := a.Next(); err != nil || f != 15 {
		t.Errorf("Next() = %d, %v; want the released flag", f, err)
	}
}

func TestAllocatorReserve(t *testing.T) {
	a := New(DefaultMin, DefaultMax, 0)
	if !a.Reserve(1500) {
		t.Error("Reserve(1500) failed")
	}
	if a.Reserve(1500) {
		t.Error("Reserve(1500) succeeded twice")
	}
	if a.Reserve(999) || a.Reserve(2001) {
		t.Error("Reserve accepted a flag outside the range")
	}
	if a.InUse() != 1 {
		t.Errorf("InUse() = %d, want 1", a.InUse())
	}
}

func TestAllocatorEmptyRange(t *testing.T) {
	a := New(5, 4, 0)
	if _, err := a.Next(); err != ErrExhausted {
		t.Errorf("Next() = %v, want ErrExhausted", err)
	}
}

func TestAllocatorConcurrent(t *testing.T) {
	a := New(DefaultMin, DefaultMax, 42)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int]bool{}
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				f, err := a.Next()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if seen[f] {
					t.Errorf("flag %d handed out twice", f)
				}
				seen[f] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if a.InUse() != 800 {
		t.Errorf("InUse() = %d, want 800", a.InUse())
	}
}
