package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securechain/securechain/internal/fraud"
	"github.com/securechain/securechain/internal/transactions"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *transactions.MemoryStore) {
	t.Helper()
	store := transactions.NewMemoryStore()
	engine := fraud.NewEngine(0.4, 0.7, 10, slog.New(slog.DiscardHandler))
	svc := NewService(store, engine, 0.7)
	svc.WithClock(func() time.Time { return testNow })
	return svc, store
}

func insert(t *testing.T, store *transactions.MemoryStore, id string, amount, score float64, at time.Time) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), &transactions.Record{
		ID:             id,
		Sender:         "a@x.com",
		Receiver:       "b@x.com",
		Amount:         amount,
		FraudScore:     score,
		Status:         transactions.LabelFor(score, 0.4, 0.7),
		TransferStatus: transactions.StatusCompleted,
		Kind:           transactions.KindTransfer,
		CreatedAt:      at,
	}))
}

func TestStatsEmptyHistory(t *testing.T) {
	svc, _ := newService(t)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTransactions)
	assert.Zero(t, stats.FraudRate)
	assert.Len(t, stats.WeeklyActivity, 7)
	assert.Empty(t, stats.Recent)
	assert.False(t, stats.Model.Trained)
}

func TestStats(t *testing.T) {
	svc, store := newService(t)

	insert(t, store, "TX-1", 100, 0.1, testNow.Add(-30*24*time.Hour))
	insert(t, store, "TX-2", 200, 0.5, testNow.Add(-2*24*time.Hour))
	insert(t, store, "TX-3", 60000, 0.85, testNow.Add(-time.Hour))
	insert(t, store, "TX-4", 50, 0.05, testNow.Add(-time.Minute))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalTransactions)
	assert.Equal(t, 1, stats.SuspiciousCount)
	assert.Equal(t, 25.0, stats.FraudRate)
	assert.Equal(t, 2, stats.TodayCount)
	assert.InDelta(t, 0.375, stats.AverageRiskScore, 1e-9)

	require.Len(t, stats.Recent, 4)
	assert.Equal(t, "TX-4", stats.Recent[0].ID, "newest first")

	require.Len(t, stats.WeeklyActivity, 7)
	assert.Equal(t, "2025-06-09", stats.WeeklyActivity[0].Date)
	assert.Equal(t, 2, stats.WeeklyActivity[6].Count, "today's bucket")
	assert.Equal(t, 1, stats.WeeklyActivity[4].Count, "two days ago")
}

func TestStatsRecentCap(t *testing.T) {
	svc, store := newService(t)
	for i := 0; i < 8; i++ {
		insert(t, store, fmt.Sprintf("TX-%d", i), 10, 0.1, testNow.Add(time.Duration(i)*time.Minute))
	}

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Len(t, stats.Recent, 5)
	assert.Equal(t, "TX-7", stats.Recent[0].ID)
}

func TestReportWindows(t *testing.T) {
	svc, store := newService(t)

	insert(t, store, "TX-1", 100, 0.1, testNow.Add(-10*24*time.Hour))       // within month
	insert(t, store, "TX-2", 200, 0.8, testNow.Add(-60*24*time.Hour))      // within quarter
	insert(t, store, "TX-3", 300, 0.5, testNow.Add(-200*24*time.Hour))     // within year
	insert(t, store, "TX-4", 400, 0.2, testNow.Add(-400*24*time.Hour))     // outside all windows

	monthly, err := svc.Report(context.Background(), "month")
	require.NoError(t, err)
	assert.Equal(t, 1, monthly.Total)
	assert.Equal(t, 1, monthly.Distribution[transactions.LabelClear])

	quarterly, err := svc.Report(context.Background(), "quarter")
	require.NoError(t, err)
	assert.Equal(t, 2, quarterly.Total)
	assert.Equal(t, 1, quarterly.Distribution[transactions.LabelSuspicious])

	yearly, err := svc.Report(context.Background(), "year")
	require.NoError(t, err)
	assert.Equal(t, 3, yearly.Total)
	require.Len(t, yearly.Monthly, 3)
	assert.Less(t, yearly.Monthly[0].Month, yearly.Monthly[2].Month, "months sorted ascending")

	defaulted, err := svc.Report(context.Background(), "bogus")
	require.NoError(t, err)
	assert.Equal(t, "month", defaulted.Window)
}

func TestAlertsThreshold(t *testing.T) {
	svc, store := newService(t)

	insert(t, store, "TX-1", 100, 0.1, testNow)
	insert(t, store, "TX-2", 200, 0.7, testNow.Add(time.Minute))
	insert(t, store, "TX-3", 300, 0.9, testNow.Add(2*time.Minute))

	alerts, err := svc.Alerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "TX-3", alerts[0].ID, "newest first")
	assert.Equal(t, "TX-2", alerts[1].ID, "threshold is inclusive")
}
