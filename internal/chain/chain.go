// Package chain maintains the append-only, SHA-256 hash-linked block ledger.
//
// Every committed transfer produces exactly one block. Each block links to
// its predecessor through previousHash, so any rewrite of history is
// detectable by a linear scan. There is a single authoritative append path;
// no consensus or multi-writer coordination is modeled.
package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// GenesisPreviousHash is the previousHash of block 0 (64 zero characters).
const GenesisPreviousHash = "0000000000000000000000000000000000000000000000000000000000000000"

var (
	ErrBlockNotFound = errors.New("block not found")
)

// Block is one immutable, hash-linked entry in the ledger.
type Block struct {
	Index         int       `json:"index"`
	TransactionID string    `json:"transactionId"`
	PreviousHash  string    `json:"previousHash"`
	CurrentHash   string    `json:"currentHash"`
	Timestamp     time.Time `json:"timestamp"`
}

// ValidationReport is the result of a full-chain integrity scan.
type ValidationReport struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	TotalBlocks int      `json:"totalBlocks"`
}

// Store persists blocks. Appends are ordered; blocks are never updated or
// deleted after insertion.
type Store interface {
	Append(ctx context.Context, block *Block) error
	Tail(ctx context.Context) (*Block, error) // ErrBlockNotFound on empty chain
	List(ctx context.Context) ([]*Block, error)
	GetByTransaction(ctx context.Context, txID string) (*Block, error)
	Count(ctx context.Context) (int, error)
}

// Service is the single authoritative writer for the ledger chain.
type Service struct {
	store Store
	mu    sync.Mutex // serializes the read-tail/compute/append sequence
	now   func() time.Time
}

// New creates a chain service over the given store.
func New(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the timestamp source (for tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Append creates a new block referencing txID and links it to the current
// tail. Storage failures propagate; nothing is swallowed.
func (s *Service) Append(ctx context.Context, txID string) (*Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevHash := GenesisPreviousHash
	index := 0

	tail, err := s.store.Tail(ctx)
	switch {
	case err == nil:
		prevHash = tail.CurrentHash
		index = tail.Index + 1
	case errors.Is(err, ErrBlockNotFound):
		// Empty chain: genesis block
	default:
		return nil, fmt.Errorf("read chain tail: %w", err)
	}

	ts := s.now().UTC()
	block := &Block{
		Index:         index,
		TransactionID: txID,
		PreviousHash:  prevHash,
		CurrentHash:   ComputeHash(txID, prevHash, ts, index),
		Timestamp:     ts,
	}

	if err := s.store.Append(ctx, block); err != nil {
		return nil, fmt.Errorf("append block: %w", err)
	}
	return block, nil
}

// Chain returns all blocks ordered by ascending index.
func (s *Service) Chain(ctx context.Context) ([]*Block, error) {
	return s.store.List(ctx)
}

// BlockForTransaction returns the block referencing the given transaction ID.
func (s *Service) BlockForTransaction(ctx context.Context, txID string) (*Block, error) {
	return s.store.GetByTransaction(ctx, txID)
}

// Length returns the number of blocks in the chain.
func (s *Service) Length(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Validate scans the full chain and reports every adjacent-pair hash
// mismatch. It never repairs anything.
func (s *Service) Validate(ctx context.Context) (*ValidationReport, error) {
	blocks, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain: %w", err)
	}

	report := &ValidationReport{Valid: true, Errors: []string{}, TotalBlocks: len(blocks)}
	for i := 1; i < len(blocks); i++ {
		if blocks[i].PreviousHash != blocks[i-1].CurrentHash {
			report.Errors = append(report.Errors, fmt.Sprintf(
				"Block #%d: previous_hash mismatch (expected %s, got %s)",
				blocks[i].Index, blocks[i-1].CurrentHash, blocks[i].PreviousHash,
			))
		}
	}
	report.Valid = len(report.Errors) == 0
	return report, nil
}

// ComputeHash derives a block hash from the canonical string concatenation of
// its fields: transaction ID, previous hash, RFC3339Nano UTC timestamp, and
// the base-10 index.
func ComputeHash(txID, prevHash string, ts time.Time, index int) string {
	payload := txID + prevHash + ts.UTC().Format(time.RFC3339Nano) + strconv.Itoa(index)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
