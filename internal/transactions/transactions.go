// Package transactions records every transfer and deposit attempt together
// with its fraud assessment. Records are append-only history; completed and
// failed attempts are both kept for auditing and model retraining.
package transactions

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("transaction not found")

// Risk labels assigned from the fraud score.
const (
	LabelClear      = "Clear"
	LabelReview     = "Review"
	LabelSuspicious = "Suspicious"
)

// Transfer outcomes.
const (
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

// Record kinds.
const (
	KindTransfer = "transfer"
	KindDeposit  = "deposit"
)

// Record is one transfer or deposit attempt.
type Record struct {
	ID             string    `json:"transactionId"`
	Sender         string    `json:"sender"`
	Receiver       string    `json:"receiver"`
	Amount         float64   `json:"amount"`
	FraudScore     float64   `json:"fraudScore"`
	Status         string    `json:"status"`         // risk label
	TransferStatus string    `json:"transferStatus"` // Completed or Failed
	Kind           string    `json:"kind"`
	PaymentMethod  string    `json:"paymentMethod,omitempty"`
	PaymentID      string    `json:"paymentId,omitempty"`
	CreatedAt      time.Time `json:"timestamp"`
}

// Filter narrows List queries. Zero values mean no filtering.
type Filter struct {
	Search  string // case-insensitive substring over sender, receiver, and ID
	Status  string // risk label
	Page    int
	PerPage int
}

// Store persists transaction records.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	// Update replaces an existing record under the same ID. Returns
	// ErrNotFound when no record with that ID exists.
	Update(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	// List returns records newest first, filtered and paginated, along with
	// the total count matching the filter.
	List(ctx context.Context, f Filter) ([]*Record, int, error)
	// ListAll returns the full history oldest first, for model retraining.
	ListAll(ctx context.Context) ([]*Record, error)
	// ListByIdentity returns the most recent records where identity appears
	// as sender or receiver, newest first, capped at limit.
	ListByIdentity(ctx context.Context, identity string, limit int) ([]*Record, error)
	// CountBySender counts records sent by identity, case-insensitive.
	CountBySender(ctx context.Context, identity string) (int, error)
	// CountByReceiver counts records received by identity, case-insensitive.
	CountByReceiver(ctx context.Context, identity string) (int, error)
	Count(ctx context.Context) (int, error)
}

// LabelFor maps a fraud score to its risk label. The boundaries are
// inclusive on the upper tier: 0.4 is Review, 0.7 is Suspicious.
func LabelFor(score, warnThreshold, fraudThreshold float64) string {
	switch {
	case score >= fraudThreshold:
		return LabelSuspicious
	case score >= warnThreshold:
		return LabelReview
	default:
		return LabelClear
	}
}
