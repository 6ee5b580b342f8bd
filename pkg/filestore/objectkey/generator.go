package objectkey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator derives the blob key for a file from its external id only, so the
// key never changes when a file is renamed
type Generator interface {
	Key(externalID uuid.UUID) string
}

// Layout names a key generation strategy
type Layout string

const (
	LayoutFlat    Layout = "flat"
	LayoutSharded Layout = "sharded"
	LayoutHashed  Layout = "hashed"
)

// FlatGenerator stores every blob at the root: "<uuid>"
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) Key(externalID uuid.UUID) string {
	return externalID.String()
}

// ShardedGenerator provides Git-style sharded keys: "ab/cdef0123..."
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2}
}

func (g *ShardedGenerator) Key(externalID uuid.UUID) string {
	return shard(strings.ReplaceAll(externalID.String(), "-", ""), g.ShardLength)
}

// HashedGenerator shards on the SHA-256 of the id for an even spread across
// directories when ids are not random (e.g. time ordered UUIDv7)
type HashedGenerator struct {
	ShardLength int
}

func NewHashedGenerator() *HashedGenerator {
	return &HashedGenerator{ShardLength: 2}
}

func (g *HashedGenerator) Key(externalID uuid.UUID) string {
	sum := sha256.Sum256(externalID[:])
	prefix := hex.EncodeToString(sum[:])
	n := clampShard(g.ShardLength, len(prefix))
	return fmt.Sprintf("%s/%s", prefix[:n], externalID.String())
}

// FuncGenerator adapts a function to Generator
type FuncGenerator func(externalID uuid.UUID) string

func (f FuncGenerator) Key(externalID uuid.UUID) string {
	return f(externalID)
}

// New returns the generator for a layout name. Empty selects flat.
func New(layout string) (Generator, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(layout))) {
	case "", LayoutFlat:
		return NewFlatGenerator(), nil
	case LayoutSharded:
		return NewShardedGenerator(), nil
	case LayoutHashed:
		return NewHashedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown key layout: %s", layout)
	}
}

func shard(id string, length int) string {
	n := clampShard(length, len(id))
	return id[:n] + "/" + id[n:]
}

func clampShard(length, max int) int {
	if length <= 0 {
		return 2
	}
	if length >= max {
		return max - 1
	}
	return length
}
