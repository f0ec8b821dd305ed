// Package status collects lock-free runtime counters for the HUD and summaries
package status

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// Well-known metric keys
const (
	KeyTicks      = "sim.ticks"
	KeyCollapsing = "sim.collapsing"
	KeySettled    = "sim.settled"
	KeyTransient  = "sim.transient"
	KeySettleFire = "sim.settle_events"
	KeySpread     = "sim.spread"
	KeyRPM        = "mantle.rpm"
	KeyEntropy    = "mantle.entropy"
	KeyCycle      = "mantle.cycle"
	KeyPeers      = "net.peers"
	KeySyncSent   = "net.sync_sent"
	KeyWSClients  = "hub.clients"
	KeyWSDropped  = "hub.dropped"
)

// AtomicFloat provides atomic float64 operations using bit conversion
// Zero value is ready to use (represents 0.0)
type AtomicFloat struct {
	bits atomic.Uint64
}

// Set stores a float64 value atomically
func (f *AtomicFloat) Set(val float64) {
	f.bits.Store(math.Float64bits(val))
}

// Get loads the float64 value atomically
func (f *AtomicFloat) Get() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Registry hands out stable metric pointers by name
// Lookup takes a lock; callers cache the pointer and write atomics directly
type Registry struct {
	mu     sync.RWMutex
	ints   map[string]*atomic.Int64
	floats map[string]*AtomicFloat
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		ints:   make(map[string]*atomic.Int64),
		floats: make(map[string]*AtomicFloat),
	}
}

// Int returns the integer metric for key, creating it on first use
func (r *Registry) Int(key string) *atomic.Int64 {
	return lookup(r, r.ints, key)
}

// Float returns the float metric for key, creating it on first use
func (r *Registry) Float(key string) *AtomicFloat {
	return lookup(r, r.floats, key)
}

func lookup[T any](r *Registry, m map[string]*T, key string) *T {
	r.mu.RLock()
	ptr, ok := m[key]
	r.mu.RUnlock()
	if ok {
		return ptr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ptr, ok := m[key]; ok {
		return ptr
	}
	ptr = new(T)
	m[key] = ptr
	return ptr
}

// Metric is one named reading
type Metric struct {
	Key   string
	Value string
}

// Snapshot returns all metrics sorted by key
func (r *Registry) Snapshot() []Metric {
	r.mu.RLock()
	out := make([]Metric, 0, len(r.ints)+len(r.floats))
	for k, v := range r.ints {
		out = append(out, Metric{Key: k, Value: fmt.Sprintf("%d", v.Load())})
	}
	for k, v := range r.floats {
		out = append(out, Metric{Key: k, Value: fmt.Sprintf("%.3f", v.Get())})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Count returns the number of registered metrics
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ints) + len(r.floats)
}
