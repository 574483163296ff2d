package core

import (
	"sync"
	"testing"
)

// TestObserverSet_OrderAndRemoval verifies registration order and removal
// Given: Three observers added in order
// When: The middle one is removed and the first is re-added under its own ID
// Then: Snapshot keeps registration order without the removed observer
func TestObserverSet_OrderAndRemoval(t *testing.T) {
	// Arrange
	set := NewObserverSet[string]()
	a, b, c := NextObserverID(), NextObserverID(), NextObserverID()
	set.Add(a, "a")
	set.Add(b, "b")
	set.Add(c, "c")

	// Act
	set.Remove(b)
	set.Add(a, "a2")
	set.Remove(NextObserverID()) // unknown ID

	// Assert
	got := set.Snapshot()
	if len(got) != 2 || got[0] != "a2" || got[1] != "c" {
		t.Errorf("Snapshot() = %v, want [a2 c]", got)
	}
	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2", set.Len())
	}
}

func TestNextObserverID_Unique(t *testing.T) {
	const n = 1000
	ids := make(chan ObserverID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- NextObserverID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[ObserverID]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate ObserverID %d", id)
		}
		seen[id] = true
	}
}

// TestObserverSet_ConcurrentUse verifies the set is safe under concurrent add/remove/snapshot
func TestObserverSet_ConcurrentUse(t *testing.T) {
	set := NewObserverSet[FaultObserver]()
	noop := FaultObserverFunc(func(FaultEvent) {})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				id := NextObserverID()
				set.Add(id, noop)
				for _, o := range set.Snapshot() {
					o.HandleFault(FaultEvent{})
				}
				set.Remove(id)
			}
		}()
	}
	wg.Wait()

	if set.Len() != 0 {
		t.Errorf("Len() = %d, want 0", set.Len())
	}
}
