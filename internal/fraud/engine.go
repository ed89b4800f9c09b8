package fraud

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/securechain/securechain/internal/metrics"
	"github.com/securechain/securechain/internal/transactions"
)

// Scoring algorithm names reported by Status.
const (
	AlgorithmRules  = "rule_based"
	AlgorithmForest = "isolation_forest"
)

// Assessment is the result of scoring one transfer.
type Assessment struct {
	Score     float64 `json:"fraudScore"`
	Label     string  `json:"status"`
	Algorithm string  `json:"algorithm"`
}

// Status describes the current scoring mode.
type Status struct {
	Trained    bool      `json:"trained"`
	Algorithm  string    `json:"algorithm"`
	Samples    int       `json:"samples"`
	MinSamples int       `json:"minSamples"`
	TrainedAt  time.Time `json:"trainedAt,omitempty"`
}

type snapshot struct {
	forest    *Forest
	samples   int
	trainedAt time.Time
}

// Engine scores transfers. The model snapshot is swapped atomically so
// scoring never blocks on retraining.
type Engine struct {
	warnThreshold  float64
	fraudThreshold float64
	minSamples     int
	logger         *slog.Logger

	model atomic.Pointer[snapshot]
}

// NewEngine creates a fraud engine in rule-based mode.
func NewEngine(warnThreshold, fraudThreshold float64, minSamples int, logger *slog.Logger) *Engine {
	return &Engine{
		warnThreshold:  warnThreshold,
		fraudThreshold: fraudThreshold,
		minSamples:     minSamples,
		logger:         logger,
	}
}

// Score assesses one transfer. It uses the trained forest when available and
// falls back to the rule scorer otherwise. Scores are rounded to three
// decimals before labeling, so the label always matches the reported score.
func (e *Engine) Score(f Features) Assessment {
	var (
		score float64
		algo  string
	)
	if snap := e.model.Load(); snap != nil {
		raw := snap.forest.Decision(f.Vector())
		score = clamp(0.5-raw, 0, 1)
		algo = AlgorithmForest
	} else {
		score = ruleScore(f)
		algo = AlgorithmRules
	}

	score = math.Round(score*1000) / 1000
	label := transactions.LabelFor(score, e.warnThreshold, e.fraudThreshold)

	metrics.FraudScore.Observe(score)
	metrics.FraudLabelsTotal.WithLabelValues(strings.ToLower(label)).Inc()

	return Assessment{Score: score, Label: label, Algorithm: algo}
}

// Retrain rebuilds the forest from the full transaction history. It is a
// no-op below the minimum sample count. Failures leave the current model in
// place.
func (e *Engine) Retrain(ctx context.Context, store transactions.Store) {
	records, err := store.ListAll(ctx)
	if err != nil {
		e.logger.Error("fraud retrain aborted", "error", err)
		metrics.ModelRetrainsTotal.WithLabelValues("error").Inc()
		return
	}
	if len(records) < e.minSamples {
		e.logger.Debug("fraud retrain skipped",
			"samples", len(records), "min_samples", e.minSamples)
		metrics.ModelRetrainsTotal.WithLabelValues("skipped").Inc()
		return
	}

	start := time.Now()
	samples := BuildSamples(records)
	forest := TrainForest(samples)
	if forest == nil {
		metrics.ModelRetrainsTotal.WithLabelValues("error").Inc()
		return
	}

	e.model.Store(&snapshot{forest: forest, samples: len(samples), trainedAt: time.Now().UTC()})
	metrics.ModelRetrainsTotal.WithLabelValues("ok").Inc()
	metrics.ModelTrained.Set(1)
	e.logger.Info("fraud model retrained",
		"samples", len(samples), "duration_ms", time.Since(start).Milliseconds())
}

// Trained reports whether the forest is active.
func (e *Engine) Trained() bool {
	return e.model.Load() != nil
}

// CurrentStatus describes the active scoring mode.
func (e *Engine) CurrentStatus() Status {
	snap := e.model.Load()
	if snap == nil {
		return Status{Trained: false, Algorithm: AlgorithmRules, MinSamples: e.minSamples}
	}
	return Status{
		Trained:    true,
		Algorithm:  AlgorithmForest,
		Samples:    snap.samples,
		MinSamples: e.minSamples,
		TrainedAt:  snap.trainedAt,
	}
}

// BuildSamples converts the transaction history into feature vectors. The
// per-identity frequencies are replayed from the start of history so each
// sample carries the counts that were current when its transaction happened.
func BuildSamples(records []*transactions.Record) [][]float64 {
	sendCounts := make(map[string]int)
	recvCounts := make(map[string]int)

	samples := make([][]float64, 0, len(records))
	for _, rec := range records {
		sender := strings.ToLower(rec.Sender)
		receiver := strings.ToLower(rec.Receiver)
		sendCounts[sender]++
		recvCounts[receiver]++

		f := FeaturesAt(rec.Amount, sendCounts[sender], recvCounts[receiver], rec.CreatedAt)
		samples = append(samples, f.Vector())
	}
	return samples
}
