// Package feed defines the Event Log Source contract: a per-group,
// delivery-ordered sequence of (sender, payload) records with no
// authorization and no creation-order guarantee.
//
// The engines never touch a Source directly; callers read records here
// and hand decoded slices across the engine boundary.
package feed

import "context"

// Record is one delivered feed entry. Payload is an opaque encoded event
// that may or may not be decodable by this schema; SentAt is the
// sender-claimed creation time in unix milliseconds.
type Record struct {
	Sender  string
	GroupID string
	SentAt  int64
	Payload []byte
}

// Source yields records for one or more transport groups in delivery
// order. Implementations must not reorder within a group.
type Source interface {
	// ReadAll returns every record currently delivered, in order.
	ReadAll(ctx context.Context) ([]Record, error)

	// ReadGroup returns the records of a single group, in order.
	ReadGroup(ctx context.Context, groupID string) ([]Record, error)
}

// Memory is an in-memory Source, used by tests and the scenario harness.
type Memory struct {
	records []Record
}

// NewMemory creates a Memory source over the given records.
func NewMemory(records ...Record) *Memory {
	return &Memory{records: records}
}

// Append adds records in delivery order.
func (m *Memory) Append(records ...Record) {
	m.records = append(m.records, records...)
}

// ReadAll implements Source.
func (m *Memory) ReadAll(_ context.Context) ([]Record, error) {
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

// ReadGroup implements Source.
func (m *Memory) ReadGroup(_ context.Context, groupID string) ([]Record, error) {
	var out []Record
	for _, r := range m.records {
		if r.GroupID == groupID {
			out = append(out, r)
		}
	}
	return out, nil
}
