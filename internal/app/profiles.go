package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/internal/domain/types"
	"github.com/okian/reachyou/pkg/logger"
	"github.com/okian/reachyou/pkg/metrics"
)

// CreateProfile validates in and stores a new profile without readings.
func (s *Service) CreateProfile(ctx context.Context, in types.ProfileInput) (model.Profile, error) {
	if err := s.ready(); err != nil {
		return model.Profile{}, err
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return model.Profile{}, fmt.Errorf("%w: username is required", model.ErrInvalidProfile)
	}
	code, err := compat.ParseTypeCode(in.TypeCode)
	if err != nil {
		return model.Profile{}, err
	}

	at := s.timestamp()
	p := model.Profile{
		ID:        uuid.NewString(),
		Username:  username,
		TypeCode:  code,
		ImageURL:  strings.TrimSpace(in.ImageURL),
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		return model.Profile{}, fmt.Errorf("create profile: %w", err)
	}

	s.refreshProfileGauge(ctx)
	s.logger.Debug(ctx, "profile created",
		logger.String("profile_id", p.ID),
		logger.String("type_code", p.TypeCode.String()),
	)
	return p, nil
}

// GetProfile returns one profile.
func (s *Service) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	if err := s.ready(); err != nil {
		return model.Profile{}, err
	}
	return s.store.GetProfile(ctx, id)
}

// ListProfiles returns every profile, or only those of typeCode when it is
// not empty.
func (s *Service) ListProfiles(ctx context.Context, typeCode string) ([]model.Profile, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var code compat.TypeCode
	if strings.TrimSpace(typeCode) != "" {
		parsed, err := compat.ParseTypeCode(typeCode)
		if err != nil {
			return nil, err
		}
		code = parsed
	}
	return s.store.ListProfiles(ctx, code)
}

// UpdateProfile applies a partial update. Stored fated matches are left
// as they are until the next recomputation.
func (s *Service) UpdateProfile(ctx context.Context, id string, in types.ProfileUpdate) (model.Profile, error) {
	if err := s.ready(); err != nil {
		return model.Profile{}, err
	}

	var patch model.ProfilePatch
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return model.Profile{}, fmt.Errorf("%w: username cannot be empty", model.ErrInvalidProfile)
		}
		patch.Username = &username
	}
	if in.TypeCode != nil {
		code, err := compat.ParseTypeCode(*in.TypeCode)
		if err != nil {
			return model.Profile{}, err
		}
		patch.TypeCode = &code
	}
	if in.ImageURL != nil {
		url := strings.TrimSpace(*in.ImageURL)
		patch.ImageURL = &url
	}
	if patch.Empty() {
		return model.Profile{}, fmt.Errorf("%w: nothing to update", model.ErrInvalidProfile)
	}

	cur, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return model.Profile{}, err
	}
	next := patch.Apply(cur, s.timestamp())
	if err := s.store.UpdateProfile(ctx, next); err != nil {
		return model.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return next, nil
}

// DeleteProfile removes the profile and its fated matches.
func (s *Service) DeleteProfile(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.store.DeleteProfile(ctx, id); err != nil {
		return err
	}
	s.refreshProfileGauge(ctx)
	return nil
}

// TypeCounts returns how many profiles carry each type code. Codes without
// profiles are reported as zero.
func (s *Service) TypeCounts(ctx context.Context) (map[compat.TypeCode]int, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	counts, err := s.store.CountByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("count profiles by type: %w", err)
	}
	for _, code := range compat.TypeCodes() {
		if _, ok := counts[code]; !ok {
			counts[code] = 0
		}
	}
	return counts, nil
}

func (s *Service) refreshProfileGauge(ctx context.Context) {
	n, err := s.store.CountProfiles(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to count profiles", logger.Error(err))
		return
	}
	metrics.UpdateProfilesTotal(n)
}
