package indicator

import "sync"

// Kind tags which computation routine a registry record dispatches to.
// Records carry a tag plus plain parameters instead of live callables, so
// the registry is serializable and replays are deterministic.
type Kind string

const (
	KindChangeInPrice Kind = "change_in_price"
	KindSMA           Kind = "sma"
	KindEMA           Kind = "ema"
	KindRSI           Kind = "rsi"
)

// KnownKind reports whether k names a supported computation.
func KnownKind(k Kind) bool {
	switch k {
	case KindChangeInPrice, KindSMA, KindEMA, KindRSI:
		return true
	}
	return false
}

// Params holds the call arguments for one indicator invocation.
// Zero values mean "unset" (change_in_price takes no parameters).
type Params struct {
	Period int     `json:"period,omitempty"`
	Alpha  float64 `json:"alpha,omitempty"`
	Method string  `json:"method,omitempty"`
}

// Record is one registered indicator invocation: name, computation tag and
// the last-used arguments. Re-invoking the same name overwrites the
// arguments (last write wins) but keeps the original position.
type Record struct {
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Params Params `json:"params"`
}

// Registry maps indicator names to records, preserving first-insertion
// order so that refresh replays dependency indicators before their
// dependents. Reads are safe from any goroutine; writes come from the
// engine's owning loop.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record)}
}

// Register stores or overwrites the record for rec.Name. An existing name
// retains its original position in the replay order.
func (r *Registry) Register(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.Name]; !exists {
		r.order = append(r.order, rec.Name)
	}
	r.records[rec.Name] = rec
}

// Records returns all records in registration order. The returned slice is
// a copy; iterating it never observes later mutations.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.records[name])
	}
	return out
}

// Get returns the record for name, if registered.
func (r *Registry) Get(name string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

// Len returns the number of registered indicators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
