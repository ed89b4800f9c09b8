package fraud

import (
	"fmt"
	"hash/fnv"
	"strconv"
)

// jitterVersion tags the jitter hash input so the deterministic noise can be
// changed later without silently rescoring old traffic.
const jitterVersion = "v1"

// ruleScore is the fallback scorer used before the model has trained. It is
// fully deterministic for a given input.
func ruleScore(f Features) float64 {
	score := 0.0

	switch {
	case f.Amount > 50000:
		score += 0.35
	case f.Amount > 10000:
		score += 0.20
	case f.Amount > 5000:
		score += 0.10
	}

	// Round-number amounts are a weak structuring signal.
	if f.Amount > 0 && f.Amount == float64(int64(f.Amount)) && int64(f.Amount)%1000 == 0 {
		score += 0.05
	}

	switch {
	case f.SenderFreq > 10:
		score += 0.15
	case f.SenderFreq > 5:
		score += 0.08
	}

	switch {
	case f.ReceiverFreq > 10:
		score += 0.15
	case f.ReceiverFreq > 5:
		score += 0.08
	}

	if f.Hour < 6 || f.Hour > 22 {
		score += 0.10
	}

	score += jitter(f)

	return clamp(score, 0, 0.95)
}

// jitter adds deterministic pseudo-noise in [0, 0.2) derived from the input
// itself, so identical requests always score identically.
func jitter(f Features) float64 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%d|%d",
		jitterVersion, strconv.FormatFloat(f.Amount, 'f', 2, 64), f.SenderFreq, f.Hour)
	return float64(h.Sum32()%100) / 500.0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
