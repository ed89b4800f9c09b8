package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(t *testing.T, svc *Service, ownerID, email string, balance float64) *Wallet {
	t.Helper()
	w, err := svc.CreateForUser(context.Background(), ownerID, email)
	require.NoError(t, err)
	if balance > 0 {
		require.NoError(t, svc.Credit(context.Background(), w.ID, balance))
	}
	return w
}

func TestNewWalletIDDeterministic(t *testing.T) {
	a := NewWalletID("alice@example.com")
	b := NewWalletID("Alice@Example.com ")

	assert.Equal(t, a, b, "wallet ID ignores case and surrounding whitespace")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, NewWalletID("bob@example.com"))
}

func TestCreateForUser(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	w, err := svc.CreateForUser(ctx, "u1", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, NewWalletID("alice@example.com"), w.ID)
	assert.Zero(t, w.Balance)

	_, err = svc.CreateForUser(ctx, "u2", "alice@example.com")
	assert.Error(t, err, "one wallet per email")

	got, err := svc.GetByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)

	got, err = svc.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
}

func TestResolve(t *testing.T) {
	svc := NewService(NewMemoryStore())
	w := newTestWallet(t, svc, "u1", "alice@example.com", 0)

	byEmail, err := svc.Resolve(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, w.ID, byEmail.ID)

	byID, err := svc.Resolve(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, byID.ID)

	_, err = svc.Resolve(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestDebitRejectsOverdraft(t *testing.T) {
	svc := NewService(NewMemoryStore())
	w := newTestWallet(t, svc, "u1", "alice@example.com", 100)
	ctx := context.Background()

	err := svc.Debit(ctx, w.ID, 150)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "100.00", "error carries the current balance")

	got, err := svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Balance, "failed debit leaves balance untouched")
}

func TestCreditDebitRoundTrip(t *testing.T) {
	svc := NewService(NewMemoryStore())
	w := newTestWallet(t, svc, "u1", "alice@example.com", 0)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, w.ID, 500))
	require.NoError(t, svc.Debit(ctx, w.ID, 120.50))

	got, err := svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.InDelta(t, 379.50, got.Balance, 1e-9)
}

func TestInvalidAmounts(t *testing.T) {
	svc := NewService(NewMemoryStore())
	w := newTestWallet(t, svc, "u1", "alice@example.com", 100)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Credit(ctx, w.ID, 0), ErrInvalidAmount)
	assert.ErrorIs(t, svc.Credit(ctx, w.ID, -5), ErrInvalidAmount)
	assert.ErrorIs(t, svc.Debit(ctx, w.ID, 0), ErrInvalidAmount)
	assert.ErrorIs(t, svc.Transfer(ctx, w.ID, w.ID, -1), ErrInvalidAmount)
}

func TestTransferAtomicity(t *testing.T) {
	svc := NewService(NewMemoryStore())
	sender := newTestWallet(t, svc, "u1", "alice@example.com", 200)
	receiver := newTestWallet(t, svc, "u2", "bob@example.com", 50)
	ctx := context.Background()

	require.NoError(t, svc.Transfer(ctx, sender.ID, receiver.ID, 75))

	s, _ := svc.Get(ctx, sender.ID)
	r, _ := svc.Get(ctx, receiver.ID)
	assert.Equal(t, 125.0, s.Balance)
	assert.Equal(t, 125.0, r.Balance)

	err := svc.Transfer(ctx, sender.ID, receiver.ID, 1000)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	err = svc.Transfer(ctx, sender.ID, "missing-wallet", 10)
	assert.ErrorIs(t, err, ErrWalletNotFound)

	s, _ = svc.Get(ctx, sender.ID)
	r, _ = svc.Get(ctx, receiver.ID)
	assert.Equal(t, 125.0, s.Balance, "failed transfer changes nothing")
	assert.Equal(t, 125.0, r.Balance)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	svc := NewService(NewMemoryStore())
	a := newTestWallet(t, svc, "u1", "alice@example.com", 1000)
	b := newTestWallet(t, svc, "u2", "bob@example.com", 1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = svc.Transfer(ctx, a.ID, b.ID, 10)
		}()
		go func() {
			defer wg.Done()
			_ = svc.Transfer(ctx, b.ID, a.ID, 10)
		}()
	}
	wg.Wait()

	wa, _ := svc.Get(ctx, a.ID)
	wb, _ := svc.Get(ctx, b.ID)
	assert.InDelta(t, 2000.0, wa.Balance+wb.Balance, 1e-9, "total balance is conserved")
	assert.GreaterOrEqual(t, wa.Balance, 0.0)
	assert.GreaterOrEqual(t, wb.Balance, 0.0)
}
