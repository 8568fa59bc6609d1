package core

import (
	"context"
)

// ReputationSnapshot is an immutable copy of the reputation aggregates.
// Batch scoring reads a single snapshot so every message in the batch
// observes the same reputation state.
type ReputationSnapshot struct {
	entries map[ReputationKind]map[string]Reputation
}

// NewReputationSnapshot builds a snapshot from a list of aggregates
func NewReputationSnapshot(reps []Reputation) *ReputationSnapshot {
	s := &ReputationSnapshot{entries: make(map[ReputationKind]map[string]Reputation)}
	for _, rep := range reps {
		byKey, ok := s.entries[rep.Kind]
		if !ok {
			byKey = make(map[string]Reputation)
			s.entries[rep.Kind] = byKey
		}
		byKey[rep.Key] = rep
	}
	return s
}

// Reputation returns the aggregate for the key, or the zero aggregate
func (s *ReputationSnapshot) Reputation(kind ReputationKind, key string) Reputation {
	if rep, ok := s.entries[kind][key]; ok {
		return rep
	}
	return Reputation{Kind: kind, Key: key}
}

// ReputationRatio implements ReputationReader
func (s *ReputationSnapshot) ReputationRatio(_ context.Context, kind ReputationKind, key string) (float64, error) {
	return s.Reputation(kind, key).Ratio(), nil
}

// Len returns the number of aggregates of the given kind
func (s *ReputationSnapshot) Len(kind ReputationKind) int {
	return len(s.entries[kind])
}
