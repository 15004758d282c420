// ABOUTME: Stereo-linked peak limiter sitting between the instrument buses and master
// ABOUTME: Envelope follower with dB-domain gain computer and optional soft knee
package mixer

import (
	"math"
	"time"
)

// LimiterConfig describes the dynamics of the master limiter
type LimiterConfig struct {
	ThresholdDB float64
	KneeDB      float64
	Ratio       float64
	Attack      time.Duration
	Release     time.Duration
}

// DefaultLimiter is the piano's output protection: -10 dB, hard knee, 20:1, instant attack, 100ms release
var DefaultLimiter = LimiterConfig{
	ThresholdDB: -10,
	KneeDB:      0,
	Ratio:       20,
	Attack:      0,
	Release:     100 * time.Millisecond,
}

// Limiter reduces peaks above its threshold. Channels share one envelope.
type Limiter struct {
	cfg     LimiterConfig
	attack  float64 // coefficient
	release float64 // coefficient
	env     float64
}

// NewLimiter builds a limiter for the given sample rate
func NewLimiter(sampleRate int, cfg LimiterConfig) *Limiter {
	if cfg.Ratio < 1 {
		cfg.Ratio = 1
	}
	return &Limiter{
		cfg:     cfg,
		attack:  coefficient(cfg.Attack, sampleRate),
		release: coefficient(cfg.Release, sampleRate),
	}
}

func coefficient(d time.Duration, sampleRate int) float64 {
	if d <= 0 {
		return 1
	}
	return 1.0 - math.Exp(-1.0/(d.Seconds()*float64(sampleRate)))
}

// Process limits one interleaved frame in place
func (l *Limiter) Process(frame []float32) {
	peak := 0.0
	for _, v := range frame {
		if a := math.Abs(float64(v)); a > peak {
			peak = a
		}
	}
	if peak > l.env {
		l.env += l.attack * (peak - l.env)
	} else {
		l.env += l.release * (peak - l.env)
	}

	g := float32(l.computeGain(l.env))
	if g == 1 {
		return
	}
	for i := range frame {
		frame[i] *= g
	}
}

func (l *Limiter) computeGain(env float64) float64 {
	if env <= 0 {
		return 1
	}
	level := 20 * math.Log10(env)
	over := level - l.cfg.ThresholdDB
	knee := l.cfg.KneeDB
	slope := 1/l.cfg.Ratio - 1

	var reductionDB float64
	switch {
	case knee > 0 && math.Abs(over) <= knee/2:
		x := over + knee/2
		reductionDB = slope * x * x / (2 * knee)
	case over > knee/2:
		reductionDB = slope * over
	default:
		return 1
	}
	return math.Pow(10, reductionDB/20)
}

// Reset clears the envelope
func (l *Limiter) Reset() {
	l.env = 0
}
