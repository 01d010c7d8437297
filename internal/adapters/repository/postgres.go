package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/model"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE postgres reports for duplicate keys.
const uniqueViolation = "23505"

const profileColumns = `id, username, type_code, image_url, heart_rate, temperature, created_at, updated_at`

// PostgresStore is a Store backed by database/sql and the lib/pq driver.
type PostgresStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewPostgres wraps an open database handle. The caller owns the handle
// unless it later calls Close on the store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, queryTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenPostgres connects to dsn, checks the connection and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := NewPostgres(db, opts...)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables and indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var (
		p    model.Profile
		code string
		hr   sql.NullInt64
		temp sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.Username, &code, &p.ImageURL, &hr, &temp, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Profile{}, err
	}
	p.TypeCode = compat.TypeCode(code)
	if hr.Valid {
		v := int(hr.Int64)
		p.HeartRate = &v
	}
	if temp.Valid {
		v := temp.Float64
		p.Temperature = &v
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p model.Profile) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var hr sql.NullInt64
	if p.HeartRate != nil {
		hr = sql.NullInt64{Int64: int64(*p.HeartRate), Valid: true}
	}
	var temp sql.NullFloat64
	if p.Temperature != nil {
		temp = sql.NullFloat64{Float64: *p.Temperature, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Username, string(p.TypeCode), p.ImageURL, hr, temp, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrProfileExists, p.ID)
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context, typeCode compat.TypeCode) ([]model.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 WHERE $1::text = '' OR type_code = $1::text
		 ORDER BY created_at, id`, string(typeCode))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := []model.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, p model.Profile) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET username = $2, type_code = $3, image_url = $4, updated_at = $5 WHERE id = $1`,
		p.ID, p.Username, string(p.TypeCode), p.ImageURL, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireAffected(res, "profile "+p.ID)
}

func (s *PostgresStore) UpdateVitals(ctx context.Context, id string, heartRate int, temperature float64, at time.Time) (model.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := scanProfile(s.db.QueryRowContext(ctx,
		`UPDATE profiles SET heart_rate = $2, temperature = $3, updated_at = $4
		 WHERE id = $1 RETURNING `+profileColumns, id, heartRate, temperature, at))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("update vitals: %w", err)
	}
	return p, nil
}

// DeleteProfile relies on the cascading foreign keys to drop match rows.
func (s *PostgresStore) DeleteProfile(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return requireAffected(res, "profile "+id)
}

func (s *PostgresStore) CountProfiles(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountByType(ctx context.Context) (map[compat.TypeCode]int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT type_code, count(*) FROM profiles GROUP BY type_code`)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer rows.Close()

	out := make(map[compat.TypeCode]int)
	for rows.Next() {
		var (
			code string
			n    int
		)
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		out[compat.TypeCode(code)] = n
	}
	return out, rows.Err()
}

// ReplaceMatches swaps the list inside one transaction. The profile row is
// locked first so concurrent replacements for the same profile serialize.
func (s *PostgresStore) ReplaceMatches(ctx context.Context, profileID string, matches []model.FatedMatch) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = $1 FOR UPDATE`, profileID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("profile %s: %w", profileID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fated_matches WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fated_matches (profile_id, matched_profile_id, rank, score, type_score, heart_rate_score, temperature_score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("prepare match insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		if _, err := stmt.ExecContext(ctx, profileID, m.MatchedProfileID, m.Rank, m.Score,
			m.TypeScore, m.HeartRateScore, m.TemperatureScore, m.CreatedAt); err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit matches: %w", err)
	}
	return nil
}

func (s *PostgresStore) Matches(ctx context.Context, profileID string) ([]model.FatedMatch, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT profile_id, matched_profile_id, rank, score, type_score, heart_rate_score, temperature_score, created_at
		 FROM fated_matches WHERE profile_id = $1 ORDER BY rank`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	out := []model.FatedMatch{}
	for rows.Next() {
		var m model.FatedMatch
		if err := rows.Scan(&m.ProfileID, &m.MatchedProfileID, &m.Rank, &m.Score,
			&m.TypeScore, &m.HeartRateScore, &m.TemperatureScore, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
