package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/model"
)

// MemoryStore is an in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
	matches  map[string][]model.FatedMatch
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]model.Profile),
		matches:  make(map[string][]model.FatedMatch),
	}
}

func (s *MemoryStore) CreateProfile(_ context.Context, p model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrProfileExists, p.ID)
	}
	s.profiles[p.ID] = cloneProfile(p)
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, id string) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return cloneProfile(p), nil
}

func (s *MemoryStore) ListProfiles(_ context.Context, typeCode compat.TypeCode) ([]model.Profile, error) {
	s.mu.RLock()
	out := make([]model.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if typeCode != "" && p.TypeCode != typeCode {
			continue
		}
		out = append(out, cloneProfile(p))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, p model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.profiles[p.ID]
	if !ok {
		return fmt.Errorf("profile %s: %w", p.ID, ErrNotFound)
	}
	cur.Username = p.Username
	cur.TypeCode = p.TypeCode
	cur.ImageURL = p.ImageURL
	cur.UpdatedAt = p.UpdatedAt
	s.profiles[p.ID] = cur
	return nil
}

func (s *MemoryStore) UpdateVitals(_ context.Context, id string, heartRate int, temperature float64, at time.Time) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	cur = cur.WithVitals(heartRate, temperature, at)
	s.profiles[id] = cur
	return cloneProfile(cur), nil
}

func (s *MemoryStore) DeleteProfile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	delete(s.profiles, id)
	delete(s.matches, id)

	for owner, list := range s.matches {
		kept := list[:0:0]
		for _, m := range list {
			if m.MatchedProfileID != id {
				kept = append(kept, m)
			}
		}
		if len(kept) != len(list) {
			s.matches[owner] = kept
		}
	}
	return nil
}

func (s *MemoryStore) CountProfiles(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), nil
}

func (s *MemoryStore) CountByType(_ context.Context) (map[compat.TypeCode]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[compat.TypeCode]int)
	for _, p := range s.profiles {
		out[p.TypeCode]++
	}
	return out, nil
}

func (s *MemoryStore) ReplaceMatches(_ context.Context, profileID string, matches []model.FatedMatch) error {
	list := make([]model.FatedMatch, len(matches))
	copy(list, matches)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profileID]; !ok {
		return fmt.Errorf("profile %s: %w", profileID, ErrNotFound)
	}
	s.matches[profileID] = list
	return nil
}

func (s *MemoryStore) Matches(_ context.Context, profileID string) ([]model.FatedMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.matches[profileID]
	out := make([]model.FatedMatch, len(list))
	copy(out, list)
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// cloneProfile detaches the reading pointers from the stored record.
func cloneProfile(p model.Profile) model.Profile {
	if p.HeartRate != nil {
		hr := *p.HeartRate
		p.HeartRate = &hr
	}
	if p.Temperature != nil {
		t := *p.Temperature
		p.Temperature = &t
	}
	return p
}
