// Package dashboard aggregates transaction history into the KPI stats,
// reports, and fraud alerts served to the monitoring UI.
package dashboard

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/securechain/securechain/internal/fraud"
	"github.com/securechain/securechain/internal/transactions"
)

const recentCount = 5

// Stats is the KPI summary for the dashboard landing page.
type Stats struct {
	TotalTransactions int                    `json:"totalTransactions"`
	SuspiciousCount   int                    `json:"suspiciousCount"`
	FraudRate         float64                `json:"fraudRate"` // percent
	TodayCount        int                    `json:"todayCount"`
	AverageRiskScore  float64                `json:"averageRiskScore"`
	WeeklyActivity    []DayActivity          `json:"weeklyActivity"`
	Recent            []*transactions.Record `json:"recentTransactions"`
	Model             fraud.Status           `json:"mlStatus"`
}

// DayActivity is one day of the weekly activity series.
type DayActivity struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// Report is the label distribution and monthly breakdown over a window.
type Report struct {
	Window       string         `json:"window"`
	Total        int            `json:"total"`
	Distribution map[string]int `json:"distribution"`
	Monthly      []MonthBucket  `json:"monthly"`
}

// MonthBucket is one month of report data.
type MonthBucket struct {
	Month      string  `json:"month"` // YYYY-MM
	Count      int     `json:"count"`
	Suspicious int     `json:"suspicious"`
	Volume     float64 `json:"volume"`
}

// Service computes dashboard aggregates from the transaction history.
type Service struct {
	records        transactions.Store
	engine         *fraud.Engine
	fraudThreshold float64
	now            func() time.Time
}

// NewService creates a dashboard service.
func NewService(records transactions.Store, engine *fraud.Engine, fraudThreshold float64) *Service {
	return &Service{records: records, engine: engine, fraudThreshold: fraudThreshold, now: time.Now}
}

// WithClock overrides the time source (for tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Stats computes the KPI summary over the full history.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	recs, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	weekStart := today.AddDate(0, 0, -6)

	stats := &Stats{
		TotalTransactions: len(recs),
		WeeklyActivity:    make([]DayActivity, 7),
		Recent:            []*transactions.Record{},
		Model:             s.engine.CurrentStatus(),
	}
	for i := range stats.WeeklyActivity {
		stats.WeeklyActivity[i].Date = weekStart.AddDate(0, 0, i).Format("2006-01-02")
	}

	var scoreSum float64
	for _, rec := range recs {
		scoreSum += rec.FraudScore
		if rec.Status == transactions.LabelSuspicious {
			stats.SuspiciousCount++
		}

		day := rec.CreatedAt.UTC().Truncate(24 * time.Hour)
		if !day.Before(today) {
			stats.TodayCount++
		}
		if !day.Before(weekStart) && !day.After(today) {
			idx := int(day.Sub(weekStart).Hours() / 24)
			if idx >= 0 && idx < 7 {
				stats.WeeklyActivity[idx].Count++
			}
		}
	}

	if len(recs) > 0 {
		stats.FraudRate = round2(float64(stats.SuspiciousCount) / float64(len(recs)) * 100)
		stats.AverageRiskScore = round3(scoreSum / float64(len(recs)))
	}

	// History is oldest first; the tail is the most recent.
	for i := len(recs) - 1; i >= 0 && len(stats.Recent) < recentCount; i-- {
		stats.Recent = append(stats.Recent, recs[i])
	}

	return stats, nil
}

// Report aggregates the window ("month", "quarter", or "year", default
// month) into a label distribution and per-month buckets.
func (s *Service) Report(ctx context.Context, window string) (*Report, error) {
	months := 1
	switch window {
	case "quarter":
		months = 3
	case "year":
		months = 12
	default:
		window = "month"
	}

	recs, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().UTC().AddDate(0, -months, 0)
	report := &Report{
		Window: window,
		Distribution: map[string]int{
			transactions.LabelClear:      0,
			transactions.LabelReview:     0,
			transactions.LabelSuspicious: 0,
		},
	}
	buckets := make(map[string]*MonthBucket)

	for _, rec := range recs {
		at := rec.CreatedAt.UTC()
		if at.Before(cutoff) {
			continue
		}
		report.Total++
		report.Distribution[rec.Status]++

		key := at.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &MonthBucket{Month: key}
			buckets[key] = b
		}
		b.Count++
		b.Volume += rec.Amount
		if rec.Status == transactions.LabelSuspicious {
			b.Suspicious++
		}
	}

	report.Monthly = make([]MonthBucket, 0, len(buckets))
	for _, b := range buckets {
		b.Volume = round2(b.Volume)
		report.Monthly = append(report.Monthly, *b)
	}
	sort.Slice(report.Monthly, func(i, j int) bool { return report.Monthly[i].Month < report.Monthly[j].Month })

	return report, nil
}

// Alerts returns transactions at or above the fraud threshold, newest first.
func (s *Service) Alerts(ctx context.Context) ([]*transactions.Record, error) {
	recs, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	alerts := []*transactions.Record{}
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].FraudScore >= s.fraudThreshold {
			alerts = append(alerts, recs[i])
		}
	}
	return alerts, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
