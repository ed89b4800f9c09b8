// Package fraud scores transfers for fraud risk. Scoring runs in two modes:
// a deterministic rule scorer used until enough history exists, and an
// isolation forest retrained from the full transaction history once the
// minimum sample count is reached.
package fraud

import (
	"math"
	"time"
)

// Features is the scoring input for one transfer.
type Features struct {
	Amount       float64
	SenderFreq   int // prior sends by this identity, including this one
	ReceiverFreq int // prior receives by this identity, including this one
	Hour         int // 0-23, local to the transfer timestamp
	Weekday      int // 0=Sunday .. 6=Saturday
}

// FeaturesAt derives time-of-day features from a timestamp.
func FeaturesAt(amount float64, senderFreq, receiverFreq int, at time.Time) Features {
	return Features{
		Amount:       amount,
		SenderFreq:   senderFreq,
		ReceiverFreq: receiverFreq,
		Hour:         at.Hour(),
		Weekday:      int(at.Weekday()),
	}
}

// Vector returns the model feature vector. The square root of the amount
// gives the forest a second, compressed view of transaction size so a single
// huge amount does not dominate every split.
func (f Features) Vector() []float64 {
	return []float64{
		f.Amount,
		float64(f.SenderFreq),
		float64(f.ReceiverFreq),
		float64(f.Hour),
		float64(f.Weekday),
		math.Sqrt(f.Amount),
	}
}
