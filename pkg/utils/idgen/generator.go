// Package idgen provides ID generation utilities for SummaryHub
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// Generator defines the interface for ID generation
type Generator interface {
	// Generate creates a new unique ID
	Generate() string
	// GenerateWithPrefix creates a new unique ID with the given prefix
	GenerateWithPrefix(prefix string) string
}

// SimpleGenerator implements a simple ID generator using timestamp and random bytes
type SimpleGenerator struct {
	counter uint64
}

// NewSimpleGenerator creates a new simple ID generator
func NewSimpleGenerator() *SimpleGenerator {
	return &SimpleGenerator{}
}

// Generate creates a new unique ID in format: timestamp_counter_random
func (g *SimpleGenerator) Generate() string {
	return g.GenerateWithPrefix("")
}

// GenerateWithPrefix creates a new unique ID with the given prefix
func (g *SimpleGenerator) GenerateWithPrefix(prefix string) string {
	timestamp := time.Now().UnixNano()
	counter := atomic.AddUint64(&g.counter, 1)

	// Generate 4 bytes of random data
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		// Fallback to counter-based random if crypto/rand fails
		randomBytes = []byte{
			byte(counter >> 24),
			byte(counter >> 16),
			byte(counter >> 8),
			byte(counter),
		}
	}

	randomHex := hex.EncodeToString(randomBytes)

	if prefix != "" {
		return fmt.Sprintf("%s_%d_%d_%s", prefix, timestamp, counter, randomHex)
	}
	return fmt.Sprintf("%d_%d_%s", timestamp, counter, randomHex)
}

// BatchIDGenerator is specialized for generating batch and correlation IDs
type BatchIDGenerator struct {
	generator Generator
}

// NewBatchIDGenerator creates a new batch ID generator
func NewBatchIDGenerator() *BatchIDGenerator {
	return &BatchIDGenerator{
		generator: NewSimpleGenerator(),
	}
}

// NewBatchIDGeneratorWithCustom creates a batch ID generator with a custom generator
func NewBatchIDGeneratorWithCustom(gen Generator) *BatchIDGenerator {
	return &BatchIDGenerator{
		generator: gen,
	}
}

// GenerateBatchID generates a batch ID with "batch" prefix
func (g *BatchIDGenerator) GenerateBatchID() string {
	return g.generator.GenerateWithPrefix("batch")
}

// GenerateRecoveryID generates a recovery record ID with "rec" prefix
func (g *BatchIDGenerator) GenerateRecoveryID() string {
	return g.generator.GenerateWithPrefix("rec")
}

// GenerateCorrelationID generates a request correlation ID with "req" prefix
func (g *BatchIDGenerator) GenerateCorrelationID() string {
	return g.generator.GenerateWithPrefix("req")
}

// Default generator for global use
var defaultBatchIDGen = NewBatchIDGenerator()

// GenerateBatchID generates a global batch ID
func GenerateBatchID() string {
	return defaultBatchIDGen.GenerateBatchID()
}

// GenerateRecoveryID generates a global recovery record ID
func GenerateRecoveryID() string {
	return defaultBatchIDGen.GenerateRecoveryID()
}

// GenerateCorrelationID generates a global correlation ID
func GenerateCorrelationID() string {
	return defaultBatchIDGen.GenerateCorrelationID()
}

// GenerateSimpleID generates a simple ID without prefix
func GenerateSimpleID() string {
	gen := NewSimpleGenerator()
	return gen.Generate()
}
