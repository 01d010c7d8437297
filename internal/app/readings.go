package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/reachyou/internal/domain/matching"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/pkg/logger"
	"github.com/okian/reachyou/pkg/metrics"
)

// IngestReading validates r and queues it for asynchronous application.
// It reports duplicate=true, with no error, when the reading id was already
// seen. A full queue surfaces queue.ErrFull and the id is released so the
// client can retry.
func (s *Service) IngestReading(ctx context.Context, r model.Reading) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if err := r.Validate(); err != nil {
		metrics.RecordReading(metrics.ReadingRejected)
		return false, err
	}
	if _, err := s.store.GetProfile(ctx, r.ProfileID); err != nil {
		metrics.RecordReading(metrics.ReadingRejected)
		return false, err
	}
	r.Temperature = model.RoundTemperature(r.Temperature)
	if r.TS.IsZero() {
		r.TS = s.timestamp()
	}

	if s.deduper.SeenAndRecord(ctx, r.ReadingID) {
		metrics.RecordReading(metrics.ReadingDuplicate)
		s.logger.Debug(ctx, "duplicate reading skipped", logger.String("reading_id", r.ReadingID))
		return true, nil
	}

	if err := s.queue.Enqueue(ctx, r); err != nil {
		s.deduper.Unrecord(ctx, r.ReadingID)
		metrics.RecordReading(metrics.ReadingRejected)
		return false, fmt.Errorf("enqueue reading %s: %w", r.ReadingID, err)
	}

	metrics.RecordReading(metrics.ReadingAccepted)
	metrics.UpdateQueueSize(s.queue.Len(ctx))
	return false, nil
}

// ApplyReading stores the reading on its profile and refreshes that
// profile's fated matches. It is the worker pool's Applier and runs
// without the started check so queued readings drain during Stop.
func (s *Service) ApplyReading(ctx context.Context, r model.Reading) error {
	if err := r.Validate(); err != nil {
		return err
	}
	temp := model.RoundTemperature(r.Temperature)
	at := r.TS
	if at.IsZero() {
		at = s.timestamp()
	}

	if _, err := s.store.UpdateVitals(ctx, r.ProfileID, r.HeartRate, temp, at.UTC()); err != nil {
		return fmt.Errorf("update vitals: %w", err)
	}

	_, err := s.refreshMatches(ctx, r.ProfileID)
	if errors.Is(err, matching.ErrInsufficientPopulation) {
		s.logger.Debug(ctx, "fated matches skipped, population too small",
			logger.String("profile_id", r.ProfileID),
		)
		return nil
	}
	return err
}

// Measure takes a reading through the sensor and applies it synchronously.
// It returns the updated profile and the reading that was stored.
func (s *Service) Measure(ctx context.Context, profileID string) (model.Profile, model.Reading, error) {
	if err := s.ready(); err != nil {
		return model.Profile{}, model.Reading{}, err
	}
	if _, err := s.store.GetProfile(ctx, profileID); err != nil {
		return model.Profile{}, model.Reading{}, err
	}

	r, err := s.sensor.Read(ctx, profileID)
	if err != nil {
		metrics.RecordErrorByComponent("sensor", "read")
		return model.Profile{}, model.Reading{}, fmt.Errorf("read sensor: %w", err)
	}
	// The reading is returned to the caller; posting it back to the
	// ingest path must count as a duplicate, not a second update.
	_ = s.deduper.SeenAndRecord(ctx, r.ReadingID)

	if err := s.ApplyReading(ctx, r); err != nil {
		return model.Profile{}, model.Reading{}, err
	}
	metrics.RecordReading(metrics.ReadingApplied)

	p, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return model.Profile{}, model.Reading{}, err
	}
	return p, r, nil
}
