package executive

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// AuditEvent is the persisted record of one episode.
type AuditEvent struct {
	RunID      string    `json:"run_id"`
	SequenceID string    `json:"sequence_id,omitempty"`
	Skill      string    `json:"skill"`
	Parameter  any       `json:"parameter,omitempty"`
	Outcome    string    `json:"outcome"`
	Steps      int       `json:"steps"`
	Success    float64   `json:"success"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// AuditStore persists episode audit events.
type AuditStore interface {
	Record(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// AuditFilter limits audit event queries.
type AuditFilter struct {
	Skill      string
	SequenceID string
	Outcome    string
	Limit      int
}

func (f AuditFilter) matches(ev AuditEvent) bool {
	if f.Skill != "" && ev.Skill != f.Skill {
		return false
	}
	if f.SequenceID != "" && ev.SequenceID != f.SequenceID {
		return false
	}
	if f.Outcome != "" && ev.Outcome != f.Outcome {
		return false
	}
	return true
}

// MemoryAuditStore keeps audit events in memory.
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditStore returns an in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Record appends an audit event.
func (s *MemoryAuditStore) Record(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.StartedAt = normalizeAuditTime(event.StartedAt)
	event.FinishedAt = normalizeAuditTime(event.FinishedAt)
	s.events = append(s.events, event)
	return nil
}

// List returns filtered audit events in recording order.
func (s *MemoryAuditStore) List(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.matches(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// encodeAuditParameter marshals the parameter payload into JSON.
func encodeAuditParameter(param any) ([]byte, error) {
	if param == nil {
		return []byte("null"), nil
	}
	return json.Marshal(param)
}

// decodeAuditParameter parses a JSON parameter payload.
func decodeAuditParameter(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeAuditTime ensures timestamps are in UTC.
func normalizeAuditTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}
