package indicator

import (
	"encoding/json"
	"fmt"
	"time"
)

// RegistrySnapshot is the serialized indicator registry. Because records are
// tags plus plain parameters, a snapshot restored into a fresh engine and
// followed by Refresh reproduces every derived column over reloaded history.
type RegistrySnapshot struct {
	Version int       `json:"version"` // schema version for forward compat
	SavedAt time.Time `json:"saved_at"`
	Records []Record  `json:"records"` // registration order
}

// SnapshotRegistry captures the engine's registry in registration order.
func SnapshotRegistry(e *Engine) *RegistrySnapshot {
	return &RegistrySnapshot{
		Version: 1,
		SavedAt: time.Now().UTC(),
		Records: e.Registry().Records(),
	}
}

// MarshalJSON serializes the snapshot to JSON.
func (s *RegistrySnapshot) MarshalJSON() ([]byte, error) {
	type Alias RegistrySnapshot
	return json.Marshal((*Alias)(s))
}

// UnmarshalJSON deserializes the snapshot from JSON.
func (s *RegistrySnapshot) UnmarshalJSON(data []byte) error {
	type Alias RegistrySnapshot
	return json.Unmarshal(data, (*Alias)(s))
}

// RestoreRegistry validates and registers every snapshot record in order.
// The caller runs Refresh afterwards to rebuild the derived columns.
// A record with an unknown kind fails the whole restore so a stale or
// corrupt snapshot never half-populates the registry.
func (e *Engine) RestoreRegistry(snap *RegistrySnapshot) error {
	if snap == nil {
		return nil
	}
	for _, rec := range snap.Records {
		if !KnownKind(rec.Kind) {
			return fmt.Errorf("restore registry: unknown kind %q for %s: %w", rec.Kind, rec.Name, ErrInvalidParameter)
		}
		if err := validateRecord(rec); err != nil {
			return fmt.Errorf("restore registry: %s: %w", rec.Name, err)
		}
	}
	for _, rec := range snap.Records {
		e.registry.Register(rec)
	}
	return nil
}

// validateRecord applies the same parameter checks as the public indicator
// methods, without computing anything.
func validateRecord(rec Record) error {
	switch rec.Kind {
	case KindChangeInPrice:
		return nil
	case KindSMA:
		if rec.Params.Period <= 0 {
			return fmt.Errorf("period must be a positive integer, got %d: %w", rec.Params.Period, ErrInvalidParameter)
		}
	case KindEMA:
		if rec.Params.Period <= 0 {
			return fmt.Errorf("period must be a positive integer, got %d: %w", rec.Params.Period, ErrInvalidParameter)
		}
		if rec.Params.Alpha < 0 || rec.Params.Alpha >= 1 {
			return fmt.Errorf("alpha must be in [0,1), got %g: %w", rec.Params.Alpha, ErrInvalidParameter)
		}
	case KindRSI:
		if rec.Params.Period <= 0 {
			return fmt.Errorf("period must be a positive integer, got %d: %w", rec.Params.Period, ErrInvalidParameter)
		}
		if rec.Params.Method != "" && rec.Params.Method != MethodWilders {
			return fmt.Errorf("unsupported method %q: %w", rec.Params.Method, ErrInvalidParameter)
		}
	}
	return nil
}
