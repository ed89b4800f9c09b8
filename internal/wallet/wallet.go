// Package wallet manages user balances. Every registered user owns exactly
// one wallet, addressed by a deterministic SHA-256 ID derived from the
// owner's email.
package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Wallet holds one user's balance.
type Wallet struct {
	ID         string    `json:"walletId"`
	OwnerID    string    `json:"ownerId"`
	OwnerEmail string    `json:"ownerEmail"`
	Balance    float64   `json:"balance"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store persists wallets. Debit enforces the non-negative balance invariant
// and returns ErrInsufficientFunds (wrapped with the current balance) when a
// debit would overdraw.
type Store interface {
	Create(ctx context.Context, w *Wallet) error
	GetByID(ctx context.Context, id string) (*Wallet, error)
	GetByOwner(ctx context.Context, ownerID string) (*Wallet, error)
	GetByEmail(ctx context.Context, email string) (*Wallet, error)
	Credit(ctx context.Context, id string, amount float64) error
	Debit(ctx context.Context, id string, amount float64) error
	// Transfer atomically debits sender and credits receiver. Either both
	// balances change or neither does.
	Transfer(ctx context.Context, senderID, receiverID string, amount float64) error
}

// NewWalletID derives the deterministic wallet address for an email.
func NewWalletID(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// Service provides wallet operations on top of a Store.
type Service struct {
	store Store
}

// NewService creates a wallet service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateForUser provisions the single wallet for a newly registered user.
func (s *Service) CreateForUser(ctx context.Context, ownerID, email string) (*Wallet, error) {
	now := time.Now().UTC()
	w := &Wallet{
		ID:         NewWalletID(email),
		OwnerID:    ownerID,
		OwnerEmail: strings.ToLower(strings.TrimSpace(email)),
		Balance:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}

// Get returns a wallet by its ID.
func (s *Service) Get(ctx context.Context, id string) (*Wallet, error) {
	return s.store.GetByID(ctx, id)
}

// GetByOwner returns the wallet owned by a user.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (*Wallet, error) {
	return s.store.GetByOwner(ctx, ownerID)
}

// GetByEmail resolves a wallet by its owner's email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*Wallet, error) {
	return s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Resolve accepts either a wallet ID or an owner email and returns the wallet.
func (s *Service) Resolve(ctx context.Context, identity string) (*Wallet, error) {
	identity = strings.TrimSpace(identity)
	if strings.Contains(identity, "@") {
		return s.GetByEmail(ctx, identity)
	}
	return s.Get(ctx, identity)
}

// Credit adds amount to a wallet's balance.
func (s *Service) Credit(ctx context.Context, id string, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.store.Credit(ctx, id, amount)
}

// Debit removes amount from a wallet's balance, rejecting overdrafts.
func (s *Service) Debit(ctx context.Context, id string, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.store.Debit(ctx, id, amount)
}

// Transfer atomically moves amount between two wallets.
func (s *Service) Transfer(ctx context.Context, senderID, receiverID string, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.store.Transfer(ctx, senderID, receiverID, amount)
}

// insufficientErr wraps ErrInsufficientFunds with the wallet's current
// balance so handlers can surface it to the caller.
func insufficientErr(balance float64) error {
	return fmt.Errorf("%w: balance %.2f", ErrInsufficientFunds, balance)
}
