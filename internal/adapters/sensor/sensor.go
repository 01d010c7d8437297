// Package sensor reads heart rate and body temperature for a profile.
package sensor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/pkg/metrics"
)

// Simulation defaults.
const (
	defaultMinLatency    = 20 * time.Millisecond
	defaultMaxLatency    = 60 * time.Millisecond
	defaultSeed          = 42
	defaultTempSamples   = 5
	pulseWindow          = 15 * time.Second
	pulseSampleInterval  = 10 * time.Millisecond
	pulseBaseline        = 512.0
	pulsePeak            = 300.0
	pulseWidth           = 50 * time.Millisecond
	restingHeartRateLow  = 58
	restingHeartRateHigh = 105
)

// Reader takes one measurement for a profile.
type Reader interface {
	// Read measures profileID, honoring ctx for cancellation.
	Read(ctx context.Context, profileID string) (model.Reading, error)
}

// Option applies a configuration option to the Simulated reader.
type Option func(*Simulated)

// WithLatencyRange sets the simulated measurement latency.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *Simulated) {
		if minLatency > 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithSeed makes the simulated signal reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Simulated) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Simulated) {
		if now != nil {
			s.now = now
		}
	}
}

// Simulated is a Reader that synthesizes a pulse waveform and temperature
// samples, then runs them through the same processing a hardware sensor
// would. Safe for concurrent use.
type Simulated struct {
	minLatency time.Duration
	maxLatency time.Duration
	now        func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated reader with configuration options.
func NewSimulated(opts ...Option) *Simulated {
	s := &Simulated{
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		now:        time.Now,
		rng:        rand.New(rand.NewPCG(defaultSeed, defaultSeed)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read implements Reader.
func (s *Simulated) Read(ctx context.Context, profileID string) (model.Reading, error) {
	start := time.Now()

	s.mu.Lock()
	latency := s.minLatency + time.Duration(s.rng.Int64N(int64(s.maxLatency-s.minLatency)))
	bpm := restingHeartRateLow + s.rng.IntN(restingHeartRateHigh-restingHeartRateLow+1)
	pulse := s.pulseWave(bpm)
	temps := make([]float64, defaultTempSamples)
	base := 36.1 + s.rng.Float64()*1.0
	for i := range temps {
		temps[i] = base + (s.rng.Float64()-0.5)*0.2
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return model.Reading{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(latency):
	}

	heartRate, ok := DetectBPM(pulse, pulseSampleInterval)
	if !ok {
		heartRate = compat.DefaultHeartRate
	}

	r := model.Reading{
		ReadingID:   uuid.NewString(),
		ProfileID:   profileID,
		HeartRate:   heartRate,
		Temperature: AverageTemperature(temps),
		TS:          s.now().UTC(),
	}
	metrics.RecordSensorRead(float64(time.Since(start).Milliseconds()))
	return r, nil
}

// pulseWave renders pulseWindow of samples with one short peak per beat.
// Caller holds s.mu.
func (s *Simulated) pulseWave(bpm int) []float64 {
	n := int(pulseWindow / pulseSampleInterval)
	period := time.Minute / time.Duration(bpm)
	offset := time.Duration(s.rng.Int64N(int64(period)))

	out := make([]float64, n)
	for i := range out {
		at := time.Duration(i)*pulseSampleInterval + offset
		v := pulseBaseline + (s.rng.Float64()-0.5)*10
		if at%period < pulseWidth {
			v += pulsePeak
		}
		out[i] = v
	}
	return out
}
