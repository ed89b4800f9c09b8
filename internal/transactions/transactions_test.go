package transactions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecords(t *testing.T, store *MemoryStore) {
	t.Helper()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	recs := []*Record{
		{ID: "TX-1", Sender: "alice@example.com", Receiver: "bob@example.com", Amount: 100, FraudScore: 0.1, Status: LabelClear, TransferStatus: StatusCompleted, Kind: KindTransfer},
		{ID: "TX-2", Sender: "Alice@Example.com", Receiver: "carol@example.com", Amount: 12000, FraudScore: 0.45, Status: LabelReview, TransferStatus: StatusCompleted, Kind: KindTransfer},
		{ID: "TX-3", Sender: "bob@example.com", Receiver: "alice@example.com", Amount: 60000, FraudScore: 0.8, Status: LabelSuspicious, TransferStatus: StatusCompleted, Kind: KindTransfer},
		{ID: "DEP-4", Sender: "Bank Deposit", Receiver: "alice@example.com", Amount: 500, FraudScore: 0, Status: LabelClear, TransferStatus: StatusCompleted, Kind: KindDeposit, PaymentMethod: "upi", PaymentID: "PAY_ABCDEF0123456789"},
	}
	for i, rec := range recs {
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Insert(context.Background(), rec))
	}
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, LabelClear, LabelFor(0.0, 0.4, 0.7))
	assert.Equal(t, LabelClear, LabelFor(0.39, 0.4, 0.7))
	assert.Equal(t, LabelReview, LabelFor(0.4, 0.4, 0.7), "lower boundary is Review")
	assert.Equal(t, LabelReview, LabelFor(0.69, 0.4, 0.7))
	assert.Equal(t, LabelSuspicious, LabelFor(0.7, 0.4, 0.7), "upper boundary is Suspicious")
	assert.Equal(t, LabelSuspicious, LabelFor(0.95, 0.4, 0.7))
}

func TestGetByIDCaseInsensitive(t *testing.T) {
	store := NewMemoryStore()
	seedRecords(t, store)

	rec, err := store.GetByID(context.Background(), "tx-2")
	require.NoError(t, err)
	assert.Equal(t, "TX-2", rec.ID)

	_, err = store.GetByID(context.Background(), "TX-999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	store := NewMemoryStore()
	seedRecords(t, store)
	ctx := context.Background()

	rec, err := store.GetByID(ctx, "TX-1")
	require.NoError(t, err)
	rec.TransferStatus = StatusFailed
	rec.FraudScore = 0
	require.NoError(t, store.Update(ctx, rec))

	got, err := store.GetByID(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.TransferStatus)
	assert.Zero(t, got.FraudScore)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "update does not add a record")

	err = store.Update(ctx, &Record{ID: "TX-999"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	seedRecords(t, store)

	recs, total, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, recs, 4)
	assert.Equal(t, "DEP-4", recs[0].ID)
	assert.Equal(t, "TX-1", recs[3].ID)
}

func TestListFilters(t *testing.T) {
	store := NewMemoryStore()
	seedRecords(t, store)
	ctx := context.Background()

	recs, total, err := store.List(ctx, Filter{Status: "suspicious"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "TX-3", recs[0].ID)

	recs, total, err = store.List(ctx, Filter{Search: "CAROL"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "TX-2", recs[0].ID)

	_, total, err = store.List(ctx, Filter{Search: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 4, total, "search matches sender and receiver")
}

func TestListPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, store.Insert(ctx, &Record{
			ID:        fmt.Sprintf("TX-%d", i),
			Sender:    "a@x.com",
			Receiver:  "b@x.com",
			Status:    LabelClear,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	recs, total, err := store.List(ctx, Filter{Page: 3, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, recs, 5)
}

func TestFrequencyCountsCaseInsensitive(t *testing.T) {
	store := NewMemoryStore()
	seedRecords(t, store)
	ctx := context.Background()

	sent, err := store.CountBySender(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, sent, "counts ignore identity casing")

	recv, err := store.CountByReceiver(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, recv)
}

func TestListByIdentity(t *testing.T) {
	store := NewMemoryStore()
	seedRecords(t, store)

	recs, err := store.ListByIdentity(context.Background(), "ALICE@EXAMPLE.COM", 50)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, "DEP-4", recs[0].ID, "newest first")

	recs, err = store.ListByIdentity(context.Background(), "alice@example.com", 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2, "limit is honored")
}
