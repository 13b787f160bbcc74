package testutil

import "fmt"

// IDSequence hands out predictable ids with a common prefix: "m-1",
// "m-2", … Deterministic alternative to content-addressed or random ids
// in fixtures and golden comparisons.
type IDSequence struct {
	prefix string
	n      int
}

// NewIDSequence creates a sequence with the given prefix.
func NewIDSequence(prefix string) *IDSequence {
	if prefix == "" {
		prefix = "id"
	}
	return &IDSequence{prefix: prefix}
}

// Next returns the next id in the sequence.
func (s *IDSequence) Next() string {
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}
