package transfer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securechain/securechain/internal/chain"
	"github.com/securechain/securechain/internal/fraud"
	"github.com/securechain/securechain/internal/transactions"
	"github.com/securechain/securechain/internal/wallet"
)

type fixture struct {
	service *Service
	wallets *wallet.Service
	records *transactions.MemoryStore
	chain   *chain.Service
	alice   *wallet.Wallet
	bob     *wallet.Wallet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithChain(t, chain.New(chain.NewMemoryStore()))
}

func newFixtureWithChain(t *testing.T, chainSvc *chain.Service) *fixture {
	t.Helper()
	ctx := context.Background()

	wallets := wallet.NewService(wallet.NewMemoryStore())
	records := transactions.NewMemoryStore()
	engine := fraud.NewEngine(0.4, 0.7, 10, slog.New(slog.DiscardHandler))

	svc := NewService(wallets, records, chainSvc, engine, slog.New(slog.DiscardHandler), Options{
		MinDeposit:     10,
		DepositLatency: 0,
		RetrainEvery:   10,
	})
	svc.WithSleep(func(ctx context.Context, d time.Duration) error { return nil })

	alice, err := wallets.CreateForUser(ctx, "user-alice", "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, wallets.Credit(ctx, alice.ID, 1000))
	bob, err := wallets.CreateForUser(ctx, "user-bob", "bob@example.com")
	require.NoError(t, err)

	return &fixture{service: svc, wallets: wallets, records: records, chain: chainSvc, alice: alice, bob: bob}
}

func (f *fixture) balance(t *testing.T, id string) float64 {
	t.Helper()
	w, err := f.wallets.Get(context.Background(), id)
	require.NoError(t, err)
	return w.Balance
}

func TestTransferMovesFundsAndAnchorsBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Transfer(ctx, "user-alice", "bob@example.com", 250)
	require.NoError(t, err)

	assert.Equal(t, 750.0, f.balance(t, f.alice.ID))
	assert.Equal(t, 250.0, f.balance(t, f.bob.ID))

	rec := result.Transaction
	assert.True(t, strings.HasPrefix(rec.ID, "TX-"))
	assert.Equal(t, "alice@example.com", rec.Sender)
	assert.Equal(t, "bob@example.com", rec.Receiver)
	assert.Equal(t, transactions.StatusCompleted, rec.TransferStatus)
	assert.NotEmpty(t, rec.Status)

	require.NotNil(t, result.Block)
	assert.Equal(t, rec.ID, result.Block.TransactionID)
	assert.Equal(t, 0, result.Block.Index)

	stored, err := f.records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.FraudScore, stored.FraudScore)
}

func TestTransferByWalletID(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Transfer(context.Background(), "user-alice", f.bob.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, f.balance(t, f.bob.ID))
}

func TestTransferRejectsSelf(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Transfer(context.Background(), "user-alice", "alice@example.com", 50)
	assert.ErrorIs(t, err, ErrSelfTransfer)
	assert.Equal(t, 1000.0, f.balance(t, f.alice.ID))

	n, _ := f.chain.Length(context.Background())
	assert.Zero(t, n, "rejected transfers leave no block")
}

func TestTransferRejectsInsufficientFunds(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Transfer(context.Background(), "user-alice", "bob@example.com", 5000)
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "1000.00")

	assert.Equal(t, 1000.0, f.balance(t, f.alice.ID))
	assert.Equal(t, 0.0, f.balance(t, f.bob.ID))
}

func TestTransferRejectsUnknownReceiver(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Transfer(context.Background(), "user-alice", "nobody@example.com", 50)
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
}

func TestTransferRejectsNonPositiveAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Transfer(ctx, "user-alice", "bob@example.com", 0)
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
	_, err = f.service.Transfer(ctx, "user-alice", "bob@example.com", -10)
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.wallets.Credit(ctx, f.bob.ID, 1000))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.service.Transfer(ctx, "user-alice", "bob@example.com", 25)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.service.Transfer(ctx, "user-bob", "alice@example.com", 25)
		}()
	}
	wg.Wait()

	total := f.balance(t, f.alice.ID) + f.balance(t, f.bob.ID)
	assert.InDelta(t, 3000.0, total, 1e-9)

	report, err := f.chain.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid, "chain stays intact under concurrent commits")
}

type failingChainStore struct {
	chain.Store
}

func (f *failingChainStore) Append(ctx context.Context, b *chain.Block) error {
	return errors.New("disk full")
}

func TestTransferRollsBackOnChainFailure(t *testing.T) {
	f := newFixtureWithChain(t, chain.New(&failingChainStore{Store: chain.NewMemoryStore()}))
	ctx := context.Background()

	_, err := f.service.Transfer(ctx, "user-alice", "bob@example.com", 300)
	require.Error(t, err)

	assert.Equal(t, 1000.0, f.balance(t, f.alice.ID), "debit is undone")
	assert.Equal(t, 0.0, f.balance(t, f.bob.ID), "credit is undone")

	recs, err := f.records.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, transactions.StatusFailed, recs[0].TransferStatus)
	assert.Zero(t, recs[0].FraudScore)
	assert.Equal(t, transactions.LabelClear, recs[0].Status)

	length, err := f.chain.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, length, "failed transfers never leave a block")
}

// flakyRecordStore fails the first n inserts and then behaves normally.
type flakyRecordStore struct {
	transactions.Store
	mu    sync.Mutex
	fails int
}

func (s *flakyRecordStore) Insert(ctx context.Context, rec *transactions.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("connection reset")
	}
	return s.Store.Insert(ctx, rec)
}

func TestTransferRollsBackOnRecordInsertFailure(t *testing.T) {
	ctx := context.Background()

	wallets := wallet.NewService(wallet.NewMemoryStore())
	inner := transactions.NewMemoryStore()
	records := &flakyRecordStore{Store: inner, fails: 1}
	chainSvc := chain.New(chain.NewMemoryStore())
	engine := fraud.NewEngine(0.4, 0.7, 10, slog.New(slog.DiscardHandler))
	svc := NewService(wallets, records, chainSvc, engine, slog.New(slog.DiscardHandler), Options{MinDeposit: 10})

	alice, err := wallets.CreateForUser(ctx, "user-alice", "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, wallets.Credit(ctx, alice.ID, 1000))
	_, err = wallets.CreateForUser(ctx, "user-bob", "bob@example.com")
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, "user-alice", "bob@example.com", 300)
	require.Error(t, err)

	w, err := wallets.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, w.Balance, "debit is undone")

	recs, err := inner.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, transactions.StatusFailed, recs[0].TransferStatus)

	length, err := chainSvc.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, length, "nothing reaches the chain when the record insert fails")
}

func TestMockDeposit(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.MockDeposit(context.Background(), "user-bob", 500, "upi")
	require.NoError(t, err)

	assert.Equal(t, 500.0, f.balance(t, f.bob.ID))
	assert.Equal(t, 500.0, result.NewBalance)

	rec := result.Transaction
	assert.True(t, strings.HasPrefix(rec.ID, "DEP-"))
	assert.Equal(t, BankDepositSender, rec.Sender)
	assert.Equal(t, "bob@example.com", rec.Receiver)
	assert.Equal(t, transactions.KindDeposit, rec.Kind)
	assert.Equal(t, "upi", rec.PaymentMethod)
	assert.True(t, strings.HasPrefix(rec.PaymentID, "PAY_"))
	assert.Len(t, rec.PaymentID, 20)
	assert.Equal(t, strings.ToUpper(rec.PaymentID), rec.PaymentID)
	require.NotNil(t, result.Block)
}

func TestMockDepositValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.MockDeposit(ctx, "user-bob", 5, "upi")
	assert.ErrorIs(t, err, ErrBelowMinimumDeposit)

	_, err = f.service.MockDeposit(ctx, "user-bob", 100, "bitcoin")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	_, err = f.service.MockDeposit(ctx, "user-bob", 100, "CARD")
	assert.NoError(t, err, "method matching is case-insensitive")
}

func TestConcurrentDepositsOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.service.WithSleep(func(ctx context.Context, d time.Duration) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	first := make(chan error, 1)
	go func() {
		_, err := f.service.MockDeposit(ctx, "user-bob", 100, "upi")
		first <- err
	}()

	// Wait until the first deposit holds the permit, then race a second.
	<-started
	_, err := f.service.MockDeposit(ctx, "user-bob", 100, "card")
	assert.ErrorIs(t, err, ErrDepositInProgress)

	close(release)
	require.NoError(t, <-first)
	assert.Equal(t, 100.0, f.balance(t, f.bob.ID), "only one deposit landed")

	// The permit is released after completion, so a new deposit succeeds.
	_, err = f.service.MockDeposit(ctx, "user-bob", 50, "netbanking")
	assert.NoError(t, err)
}

func TestAddFundsBypassesScoringAndLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	balance, err := f.service.AddFunds(ctx, "user-bob", 750)
	require.NoError(t, err)
	assert.Equal(t, 750.0, balance)

	n, err := f.records.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "add-funds leaves no transaction record")

	length, err := f.chain.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, length, "add-funds leaves no block")
}

func TestCreateTransactionGenericFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.CreateTransaction(ctx, "merchant-a", "merchant-b", 12000)
	require.NoError(t, err)

	rec := result.Transaction
	assert.Equal(t, "merchant-a", rec.Sender)
	assert.GreaterOrEqual(t, rec.FraudScore, 0.2, "large amounts score above the tier floor")
	require.NotNil(t, result.Block)

	// Balances untouched.
	assert.Equal(t, 1000.0, f.balance(t, f.alice.ID))

	_, err = f.service.CreateTransaction(ctx, "", "merchant-b", 100)
	assert.Error(t, err)
	_, err = f.service.CreateTransaction(ctx, "merchant-a", "merchant-b", -1)
	assert.Error(t, err)
}

func TestRetrainTriggersOnTenthRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := f.service.CreateTransaction(ctx, "merchant-a", "merchant-b", 100+float64(i))
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		st, err := f.service.CreateTransaction(ctx, "merchant-a", "merchant-b", 111)
		require.NoError(t, err)
		return st.Model.Trained
	}, 2*time.Second, 10*time.Millisecond, "model trains after the tenth record")
}

func TestRetrainCountsDeposits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := f.service.MockDeposit(ctx, "user-bob", 100+float64(i), "upi")
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		st, err := f.service.MockDeposit(ctx, "user-bob", 42, "card")
		require.NoError(t, err)
		return st.Model.Trained
	}, 2*time.Second, 10*time.Millisecond, "deposits count toward the retrain trigger")
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Transfer(ctx, "user-alice", "bob@example.com", 100)
	require.NoError(t, err)
	_, err = f.service.MockDeposit(ctx, "user-alice", 50, "upi")
	require.NoError(t, err)

	recs, err := f.service.History(ctx, "user-alice")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, strings.HasPrefix(recs[0].ID, "DEP-"), "newest first")

	recs, err = f.service.History(ctx, "user-bob")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
