package hybrid

import (
	"sync"
	"testing"
)

func TestPersistenceTracker_ShortWindowAndsWhatWasSeen(t *testing.T) {
	p := NewPersistenceTracker(2)
	if !p.Observe(true) {
		t.Fatal("first true observation with empty window should alert")
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
	if p.Full() {
		t.Error("Full() = true with one of two slots used")
	}
}

func TestPersistenceTracker_Sequences(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		input    []bool
		want     []bool
	}{
		{"all false", 2, []bool{false, false, false}, []bool{false, false, false}},
		{"n consecutive", 3, []bool{true, true, true}, []bool{true, true, true}},
		{"false inside window", 3, []bool{true, false, true, true, true}, []bool{true, false, false, false, true}},
		{"false evicted", 2, []bool{false, true, true}, []bool{false, false, true}},
		{"alternating", 2, []bool{true, false, true, false}, []bool{true, false, false, false}},
		{"capacity one follows input", 1, []bool{true, false, true}, []bool{true, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPersistenceTracker(tt.capacity)
			for i, in := range tt.input {
				if got := p.Observe(in); got != tt.want[i] {
					t.Errorf("Observe #%d(%v) = %v, want %v", i, in, got, tt.want[i])
				}
				if p.Len() > tt.capacity {
					t.Fatalf("Len() = %d exceeds capacity %d", p.Len(), tt.capacity)
				}
			}
		})
	}
}

func TestPersistenceTracker_SnapshotIsCopyInArrivalOrder(t *testing.T) {
	p := NewPersistenceTracker(3)
	for _, v := range []bool{true, false, true, true} {
		p.Observe(v)
	}

	snap := p.Snapshot()
	want := []bool{false, true, true}
	if len(snap) != len(want) {
		t.Fatalf("Snapshot() len = %d, want %d", len(snap), len(want))
	}
	for i := range want {
		if snap[i] != want[i] {
			t.Errorf("Snapshot()[%d] = %v, want %v", i, snap[i], want[i])
		}
	}

	snap[0] = true
	if p.Snapshot()[0] {
		t.Error("mutating a snapshot changed tracker state")
	}
	if !p.Full() {
		t.Error("Full() = false after more than capacity observations")
	}
}

func TestPersistenceTracker_ClampsCapacity(t *testing.T) {
	p := NewPersistenceTracker(0)
	if p.Capacity() != 1 {
		t.Errorf("Capacity() = %d, want 1", p.Capacity())
	}
}

func TestPersistenceTracker_ConcurrentObserve(t *testing.T) {
	const goroutines = 50
	const perGoroutine = 20
	p := NewPersistenceTracker(4)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(raw bool) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				p.Observe(raw)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	if got := p.Observed(); got != goroutines*perGoroutine {
		t.Errorf("Observed() = %d, want %d", got, goroutines*perGoroutine)
	}
	if p.Len() != 4 {
		t.Errorf("Len() = %d, want 4", p.Len())
	}
}

func TestPersistenceTracker_ConcurrentFewerThanCapacity(t *testing.T) {
	p := NewPersistenceTracker(10)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Observe(true)
		}()
	}
	wg.Wait()
	if p.Len() != 3 {
		t.Errorf("Len() = %d, want 3", p.Len())
	}
}
