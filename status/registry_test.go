package status

import (
	"sync"
	"testing"
)

func TestRegistryStablePointers(t *testing.T) {
	r := NewRegistry()

	a := r.Int(KeyTicks)
	b := r.Int(KeyTicks)
	if a != b {
		t.Fatal("Expected the same pointer for repeated lookups")
	}

	a.Add(3)
	if got := r.Int(KeyTicks).Load(); got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}

	r.Float(KeyRPM).Set(33.33)
	if got := r.Float(KeyRPM).Get(); got != 33.33 {
		t.Errorf("Expected 33.33, got %f", got)
	}

	if r.Count() != 2 {
		t.Errorf("Expected 2 metrics, got %d", r.Count())
	}
}

func TestRegistrySnapshotSorted(t *testing.T) {
	r := NewRegistry()
	r.Int(KeySettled).Store(5)
	r.Float(KeyEntropy).Set(1.2)
	r.Int(KeyCycle).Store(9)

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Expected 3 metrics, got %d", len(snap))
	}

	want := []Metric{
		{KeyCycle, "9"},
		{KeyEntropy, "1.200"},
		{KeySettled, "5"},
	}
	for i, m := range want {
		if snap[i] != m {
			t.Errorf("Index %d: expected %+v, got %+v", i, m, snap[i])
		}
	}
}

func TestRegistryConcurrentLookup(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.Int(KeyTicks).Add(1)
			}
		}()
	}
	wg.Wait()

	if got := r.Int(KeyTicks).Load(); got != 16000 {
		t.Errorf("Expected 16000, got %d", got)
	}
}
