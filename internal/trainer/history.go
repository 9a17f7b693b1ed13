package trainer

import (
	"fmt"
	"math"
	"time"
)

// EpochStats records the metrics of one epoch.
type EpochStats struct {
	Epoch         int
	Loss          float64
	Accuracy      float64
	ValidLoss     float64 // NaN without validation data
	ValidAccuracy float64 // NaN without validation data
	Samples       int
	Duration      time.Duration
}

// SamplesPerSec returns the training throughput of the epoch.
func (s EpochStats) SamplesPerSec() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Samples) / s.Duration.Seconds()
}

func (s EpochStats) String() string {
	line := fmt.Sprintf("Loss=%.4f, Train Acc=%.2f%%", s.Loss, s.Accuracy*100)
	if !math.IsNaN(s.ValidLoss) {
		line += fmt.Sprintf(", Val Loss=%.4f, Val Acc=%.2f%%", s.ValidLoss, s.ValidAccuracy*100)
	}
	return line + fmt.Sprintf(" (%s, %.1f samples/s)", s.Duration.Round(time.Millisecond), s.SamplesPerSec())
}

// History collects per-epoch metrics of a Fit call.
type History struct {
	Epochs []EpochStats
}

// Last returns the stats of the final epoch, or false when empty.
func (h *History) Last() (EpochStats, bool) {
	if len(h.Epochs) == 0 {
		return EpochStats{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Duration returns the total training time.
func (h *History) Duration() time.Duration {
	var d time.Duration
	for _, e := range h.Epochs {
		d += e.Duration
	}
	return d
}

// window accumulates batch metrics within an epoch.
type window struct {
	loss    float64
	correct int
	samples int
	batches int
}

func (w *window) record(loss float64, correct, samples int) {
	w.loss += loss * float64(samples)
	w.correct += correct
	w.samples += samples
	w.batches++
}

func (w *window) meanLoss() float64 {
	if w.samples == 0 {
		return 0
	}
	return w.loss / float64(w.samples)
}

func (w *window) accuracy() float64 {
	if w.samples == 0 {
		return 0
	}
	return float64(w.correct) / float64(w.samples)
}
