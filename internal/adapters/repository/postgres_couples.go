package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/reachyou/internal/domain/model"
)

const coupleColumns = `id, profile_a, profile_b, name, base_score, score, rating_sum, rating_count, created_at`

// PostgresCoupleStore is a CoupleStore on the same database as the
// PostgresStore. Scores are ranked by the fixed-point score_key column so
// ties behave exactly as on the in-memory leaderboard.
type PostgresCoupleStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Couples returns the couple store sharing s's handle. Closing it leaves
// the handle open; the PostgresStore owns it.
func (s *PostgresStore) Couples() *PostgresCoupleStore {
	return &PostgresCoupleStore{db: s.db, queryTimeout: s.queryTimeout}
}

func (s *PostgresCoupleStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func scanCouple(row rowScanner) (model.Couple, error) {
	var c model.Couple
	if err := row.Scan(&c.ID, &c.ProfileA, &c.ProfileB, &c.Name, &c.BaseScore, &c.Score,
		&c.RatingSum, &c.RatingCount, &c.CreatedAt); err != nil {
		return model.Couple{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (s *PostgresCoupleStore) CreateCouple(ctx context.Context, c model.Couple) (model.Couple, error) {
	a, b, err := model.NormalizePair(c.ProfileA, c.ProfileB)
	if err != nil {
		return model.Couple{}, err
	}
	c.ProfileA, c.ProfileB = a, b
	if c.RatingCount == 0 {
		c.Score = float64(c.BaseScore)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO couples (`+coupleColumns+`, score_key) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.ProfileA, c.ProfileB, c.Name, c.BaseScore, c.Score,
		c.RatingSum, c.RatingCount, c.CreatedAt, int64(toFixedPoint(c.Score)))
	if isUniqueViolation(err) {
		return model.Couple{}, fmt.Errorf("%w: %s & %s", ErrDuplicateCouple, a, b)
	}
	if err != nil {
		return model.Couple{}, fmt.Errorf("insert couple: %w", err)
	}
	return c, nil
}

func (s *PostgresCoupleStore) GetCouple(ctx context.Context, id string) (model.Couple, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := scanCouple(s.db.QueryRowContext(ctx, `SELECT `+coupleColumns+` FROM couples WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Couple{}, fmt.Errorf("couple %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Couple{}, fmt.Errorf("get couple: %w", err)
	}
	return c, nil
}

// AddRating locks the couple row, folds the rating into the aggregate and
// stores both in one transaction.
func (s *PostgresCoupleStore) AddRating(ctx context.Context, coupleID string, r model.Rating) (model.Couple, error) {
	r, err := r.Normalize()
	if err != nil {
		return model.Couple{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Couple{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	cur, err := scanCouple(tx.QueryRowContext(ctx,
		`SELECT `+coupleColumns+` FROM couples WHERE id = $1 FOR UPDATE`, coupleID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Couple{}, fmt.Errorf("couple %s: %w", coupleID, ErrNotFound)
	}
	if err != nil {
		return model.Couple{}, fmt.Errorf("lock couple: %w", err)
	}
	next := cur.AddRating(r.Rating)

	if _, err := tx.ExecContext(ctx,
		`UPDATE couples SET score = $2, score_key = $3, rating_sum = $4, rating_count = $5 WHERE id = $1`,
		coupleID, next.Score, int64(toFixedPoint(next.Score)), next.RatingSum, next.RatingCount); err != nil {
		return model.Couple{}, fmt.Errorf("rescore couple: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO couple_ratings (couple_id, rating, comment, nickname, created_at) VALUES ($1, $2, $3, $4, $5)`,
		coupleID, r.Rating, r.Comment, r.Nickname, r.CreatedAt); err != nil {
		return model.Couple{}, fmt.Errorf("insert rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Couple{}, fmt.Errorf("commit rating: %w", err)
	}
	return next, nil
}

func (s *PostgresCoupleStore) Ratings(ctx context.Context, coupleID string) ([]model.Rating, error) {
	if _, err := s.GetCouple(ctx, coupleID); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT couple_id, rating, comment, nickname, created_at FROM couple_ratings
		 WHERE couple_id = $1 ORDER BY created_at DESC, id DESC`, coupleID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	out := []model.Rating{}
	for rows.Next() {
		var r model.Rating
		if err := rows.Scan(&r.CoupleID, &r.Rating, &r.Comment, &r.Nickname, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresCoupleStore) countAbove(ctx context.Context, key scoreFP) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM couples WHERE score_key > $1`, int64(key)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count higher couples: %w", err)
	}
	return n, nil
}

func (s *PostgresCoupleStore) Rank(ctx context.Context, coupleID string) (Entry, error) {
	c, err := s.GetCouple(ctx, coupleID)
	if err != nil {
		return Entry{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	above, err := s.countAbove(ctx, toFixedPoint(c.Score))
	if err != nil {
		return Entry{}, err
	}
	return Entry{Rank: above + 1, Couple: c}, nil
}

// Page reads one window. Only the first row needs a count query: after it,
// a lower score ranks at its position and an equal one shares the rank
// above it.
func (s *PostgresCoupleStore) Page(ctx context.Context, offset, limit int) ([]Entry, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidLimit, offset, limit)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+coupleColumns+`, score_key FROM couples
		 ORDER BY score_key DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("page couples: %w", err)
	}
	defer rows.Close()

	var (
		out  []Entry
		keys []int64
	)
	for rows.Next() {
		var (
			c   model.Couple
			key int64
		)
		if err := rows.Scan(&c.ID, &c.ProfileA, &c.ProfileB, &c.Name, &c.BaseScore, &c.Score,
			&c.RatingSum, &c.RatingCount, &c.CreatedAt, &key); err != nil {
			return nil, fmt.Errorf("scan couple: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, Entry{Couple: c})
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("page couples: %w", err)
	}
	if len(out) == 0 {
		return []Entry{}, nil
	}

	above, err := s.countAbove(ctx, scoreFP(keys[0]))
	if err != nil {
		return nil, err
	}
	out[0].Rank = above + 1
	for i := 1; i < len(out); i++ {
		if keys[i] == keys[i-1] {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = offset + i + 1
		}
	}
	return out, nil
}

// Count reports 0 when the database cannot be read.
func (s *PostgresCoupleStore) Count(ctx context.Context) int {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM couples`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close is a no-op; the owning PostgresStore closes the handle.
func (s *PostgresCoupleStore) Close() error { return nil }
