// Package transfer orchestrates money movement: wallet-to-wallet transfers,
// mock bank deposits, manual top-ups, and the generic transaction flow. Every
// committed movement is fraud-scored, recorded, and anchored in the ledger
// chain; failures roll balances back and leave a Failed record instead.
package transfer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/securechain/securechain/internal/chain"
	"github.com/securechain/securechain/internal/fraud"
	"github.com/securechain/securechain/internal/idgen"
	"github.com/securechain/securechain/internal/metrics"
	"github.com/securechain/securechain/internal/syncutil"
	"github.com/securechain/securechain/internal/traces"
	"github.com/securechain/securechain/internal/transactions"
	"github.com/securechain/securechain/internal/validation"
	"github.com/securechain/securechain/internal/wallet"
)

// BankDepositSender is the sender identity recorded for mock deposits.
const BankDepositSender = "Bank Deposit"

var (
	ErrSelfTransfer         = errors.New("cannot transfer to your own wallet")
	ErrDepositInProgress    = errors.New("a deposit is already in progress for this account")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrBelowMinimumDeposit  = errors.New("deposit amount below minimum")
)

// historyLimit caps per-user transaction history responses.
const historyLimit = 50

// Options tunes the orchestrator.
type Options struct {
	MinDeposit     float64
	DepositLatency time.Duration
	RetrainEvery   int
}

// Result is the outcome of a committed movement.
type Result struct {
	Transaction *transactions.Record `json:"transaction"`
	Block       *chain.Block         `json:"block,omitempty"`
	NewBalance  float64              `json:"newBalance,omitempty"`
	Model       fraud.Status         `json:"model"`
}

// Service coordinates wallets, records, the fraud engine, and the chain.
type Service struct {
	wallets *wallet.Service
	records transactions.Store
	chain   *chain.Service
	engine  *fraud.Engine
	logger  *slog.Logger
	opts    Options

	locks   syncutil.ShardedMutex
	permits *syncutil.KeyedPermit
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewService creates a transfer orchestrator.
func NewService(wallets *wallet.Service, records transactions.Store, chainSvc *chain.Service,
	engine *fraud.Engine, logger *slog.Logger, opts Options) *Service {
	if opts.RetrainEvery <= 0 {
		opts.RetrainEvery = 10
	}
	return &Service{
		wallets: wallets,
		records: records,
		chain:   chainSvc,
		engine:  engine,
		logger:  logger,
		opts:    opts,
		permits: syncutil.NewKeyedPermit(),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// WithClock overrides the time source (for tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithSleep overrides the deposit latency sleeper (for tests).
func (s *Service) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Service {
	s.sleep = sleep
	return s
}

// Transfer moves amount from the caller's wallet to the receiver, identified
// by wallet ID or email. The debit and credit commit atomically; the record
// and block follow, and any failure past the balance move rolls it back.
func (s *Service) Transfer(ctx context.Context, senderUserID, receiverIdentity string, amount float64) (*Result, error) {
	ctx, span := traces.StartSpan(ctx, "transfer", traces.Amount(amount))
	defer span.End()

	if !validation.IsValidAmount(amount) {
		return nil, wallet.ErrInvalidAmount
	}

	sender, err := s.wallets.GetByOwner(ctx, senderUserID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.wallets.Resolve(ctx, validation.SanitizeIdentity(receiverIdentity))
	if err != nil {
		return nil, err
	}
	if sender.ID == receiver.ID {
		return nil, ErrSelfTransfer
	}

	unlock := s.locks.LockPair(sender.ID, receiver.ID)
	defer unlock()

	assessment, feats, err := s.assess(ctx, sender.OwnerEmail, receiver.OwnerEmail, amount)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	txID := idgen.TransferID(now)
	span.SetAttributes(traces.TransactionID(txID), traces.RiskLabel(assessment.Label))

	if err := s.wallets.Transfer(ctx, sender.ID, receiver.ID, amount); err != nil {
		metrics.TransfersTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	rec := &transactions.Record{
		ID:             txID,
		Sender:         sender.OwnerEmail,
		Receiver:       receiver.OwnerEmail,
		Amount:         amount,
		FraudScore:     assessment.Score,
		Status:         assessment.Label,
		TransferStatus: transactions.StatusCompleted,
		Kind:           transactions.KindTransfer,
		CreatedAt:      now,
	}

	block, err := s.commit(ctx, rec)
	if err != nil {
		// Undo the balance move and record the failure.
		s.rollbackTransfer(ctx, sender.ID, receiver.ID, amount, rec)
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.TransfersTotal.WithLabelValues("completed").Inc()
	s.logger.Info("transfer completed",
		"tx_id", txID, "amount", amount,
		"fraud_score", assessment.Score, "status", assessment.Label,
		"sender_freq", feats.SenderFreq, "receiver_freq", feats.ReceiverFreq)

	s.maybeRetrain(ctx)

	return &Result{Transaction: rec, Block: block, Model: s.engine.CurrentStatus()}, nil
}

// MockDeposit simulates a bank deposit through an external payment provider.
// One deposit per user at a time; a second concurrent attempt is rejected
// rather than queued.
func (s *Service) MockDeposit(ctx context.Context, userID string, amount float64, method string) (*Result, error) {
	ctx, span := traces.StartSpan(ctx, "mock_deposit",
		traces.Amount(amount), traces.PaymentMethod(method))
	defer span.End()

	method = strings.ToLower(strings.TrimSpace(method))
	if !validation.IsValidPaymentMethod(method) {
		metrics.DepositsTotal.WithLabelValues(method, "rejected").Inc()
		return nil, ErrInvalidPaymentMethod
	}
	if amount < s.opts.MinDeposit {
		metrics.DepositsTotal.WithLabelValues(method, "rejected").Inc()
		return nil, ErrBelowMinimumDeposit
	}

	if !s.permits.TryAcquire(userID) {
		metrics.DepositsTotal.WithLabelValues(method, "conflict").Inc()
		return nil, ErrDepositInProgress
	}
	defer s.permits.Release(userID)

	w, err := s.wallets.GetByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Simulated provider round trip.
	if err := s.sleep(ctx, s.opts.DepositLatency); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	depID := idgen.DepositID(now)
	paymentID := idgen.PaymentID()
	span.SetAttributes(traces.TransactionID(depID), traces.WalletID(w.ID))

	if err := s.wallets.Credit(ctx, w.ID, amount); err != nil {
		metrics.DepositsTotal.WithLabelValues(method, "failed").Inc()
		return nil, err
	}

	rec := &transactions.Record{
		ID:             depID,
		Sender:         BankDepositSender,
		Receiver:       w.OwnerEmail,
		Amount:         amount,
		FraudScore:     0,
		Status:         transactions.LabelClear,
		TransferStatus: transactions.StatusCompleted,
		Kind:           transactions.KindDeposit,
		PaymentMethod:  method,
		PaymentID:      paymentID,
		CreatedAt:      now,
	}

	block, err := s.commit(ctx, rec)
	if err != nil {
		s.rollbackCredit(ctx, w.ID, amount, rec)
		metrics.DepositsTotal.WithLabelValues(method, "failed").Inc()
		return nil, err
	}

	metrics.DepositsTotal.WithLabelValues(method, "completed").Inc()
	s.logger.Info("deposit completed",
		"tx_id", depID, "payment_id", paymentID, "method", method, "amount", amount)

	s.maybeRetrain(ctx)

	updated, err := s.wallets.Get(ctx, w.ID)
	if err != nil {
		updated = w
	}
	return &Result{Transaction: rec, Block: block, NewBalance: updated.Balance, Model: s.engine.CurrentStatus()}, nil
}

// AddFunds credits the caller's wallet directly. It intentionally bypasses
// fraud scoring and the ledger; only transfers and deposits leave records.
func (s *Service) AddFunds(ctx context.Context, userID string, amount float64) (float64, error) {
	if !validation.IsValidAmount(amount) {
		return 0, wallet.ErrInvalidAmount
	}
	w, err := s.wallets.GetByOwner(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.wallets.Credit(ctx, w.ID, amount); err != nil {
		return 0, err
	}
	updated, err := s.wallets.Get(ctx, w.ID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("funds added", "wallet_id", w.ID, "amount", amount)
	return updated.Balance, nil
}

// CreateTransaction records and scores a movement between two free-form
// identities without touching wallet balances. It exists for feeding and
// inspecting the scoring pipeline directly.
func (s *Service) CreateTransaction(ctx context.Context, senderIdentity, receiverIdentity string, amount float64) (*Result, error) {
	ctx, span := traces.StartSpan(ctx, "create_transaction", traces.Amount(amount))
	defer span.End()

	sender := validation.SanitizeIdentity(senderIdentity)
	receiver := validation.SanitizeIdentity(receiverIdentity)
	if errs := validation.Validate(
		validation.Required("sender", sender),
		validation.Required("receiver", receiver),
		validation.PositiveAmount("amount", amount),
	); len(errs) > 0 {
		return nil, errs
	}

	assessment, _, err := s.assess(ctx, sender, receiver, amount)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	txID := idgen.TransferID(now)
	span.SetAttributes(traces.TransactionID(txID), traces.RiskLabel(assessment.Label))

	rec := &transactions.Record{
		ID:             txID,
		Sender:         sender,
		Receiver:       receiver,
		Amount:         amount,
		FraudScore:     assessment.Score,
		Status:         assessment.Label,
		TransferStatus: transactions.StatusCompleted,
		Kind:           transactions.KindTransfer,
		CreatedAt:      now,
	}

	block, err := s.commit(ctx, rec)
	if err != nil {
		s.recordFailure(ctx, rec)
		return nil, err
	}

	s.maybeRetrain(ctx)

	return &Result{Transaction: rec, Block: block, Model: s.engine.CurrentStatus()}, nil
}

// History returns the caller's most recent transactions, as sender or
// receiver, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]*transactions.Record, error) {
	w, err := s.wallets.GetByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	recs, err := s.records.ListByIdentity(ctx, w.OwnerEmail, historyLimit)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*transactions.Record{}
	}
	return recs, nil
}

// assess computes frequency features and scores the movement. The count
// includes the transaction being scored.
func (s *Service) assess(ctx context.Context, sender, receiver string, amount float64) (fraud.Assessment, fraud.Features, error) {
	sent, err := s.records.CountBySender(ctx, sender)
	if err != nil {
		return fraud.Assessment{}, fraud.Features{}, err
	}
	received, err := s.records.CountByReceiver(ctx, receiver)
	if err != nil {
		return fraud.Assessment{}, fraud.Features{}, err
	}

	feats := fraud.FeaturesAt(amount, sent+1, received+1, s.now())
	return s.engine.Score(feats), feats, nil
}

// commit persists the record and anchors it in the chain. The record goes
// first; when the chain append fails the failure path downgrades it to
// Failed in place, so a block never references a record that did not
// complete.
func (s *Service) commit(ctx context.Context, rec *transactions.Record) (*chain.Block, error) {
	if err := s.records.Insert(ctx, rec); err != nil {
		return nil, err
	}
	block, err := s.chain.Append(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if n, lenErr := s.chain.Length(ctx); lenErr == nil {
		metrics.ChainLength.Set(float64(n))
	}
	return block, nil
}

func (s *Service) rollbackTransfer(ctx context.Context, senderID, receiverID string, amount float64, rec *transactions.Record) {
	if err := s.wallets.Transfer(ctx, receiverID, senderID, amount); err != nil {
		s.logger.Error("transfer rollback failed",
			"tx_id", rec.ID, "sender", senderID, "receiver", receiverID, "error", err)
	}
	s.recordFailure(ctx, rec)
}

func (s *Service) rollbackCredit(ctx context.Context, walletID string, amount float64, rec *transactions.Record) {
	if err := s.wallets.Debit(ctx, walletID, amount); err != nil {
		s.logger.Error("deposit rollback failed", "tx_id", rec.ID, "wallet_id", walletID, "error", err)
	}
	s.recordFailure(ctx, rec)
}

// recordFailure leaves a Failed record in place of the transaction,
// downgrading the stored record when commit got as far as inserting it.
// Best effort: the movement is already undone, so a second storage failure
// is only logged.
func (s *Service) recordFailure(ctx context.Context, rec *transactions.Record) {
	failed := *rec
	failed.FraudScore = 0
	failed.Status = transactions.LabelClear
	failed.TransferStatus = transactions.StatusFailed
	err := s.records.Update(ctx, &failed)
	if errors.Is(err, transactions.ErrNotFound) {
		err = s.records.Insert(ctx, &failed)
	}
	if err != nil {
		s.logger.Error("failed to record failed transaction", "tx_id", rec.ID, "error", err)
	}
}

// maybeRetrain kicks off an async retrain after every Nth committed record.
// The HTTP request never waits on training.
func (s *Service) maybeRetrain(ctx context.Context) {
	n, err := s.records.Count(ctx)
	if err != nil || n == 0 || n%s.opts.RetrainEvery != 0 {
		return
	}
	go func() {
		ctx, span := traces.StartSpan(context.WithoutCancel(ctx), "fraud_retrain")
		defer span.End()
		s.engine.Retrain(ctx, s.records)
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
