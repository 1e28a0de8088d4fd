// Package idgen is the injected UUID-generation collaborator. UUID
// generation is treated as an external concern; the engine only ever calls
// Generator.NewID, never math/rand or a hand-rolled format directly.
package idgen

import "github.com/google/uuid"

// Generator produces canonical 8-4-4-4-12 version-4 UUIDs.
type Generator interface {
	NewID() string
}

// UUIDGenerator is the default Generator, backed by google/uuid.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// Default is a process-wide UUIDGenerator for callers that don't need to
// inject a fake one; series.NewManager falls back to it when passed nil.
var Default Generator = UUIDGenerator{}
