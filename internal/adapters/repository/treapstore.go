package repository

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/okian/reachyou/internal/domain/model"
	"github.com/okian/reachyou/pkg/metrics"
)

// Treap-backed CoupleStore.
//
// Ordering: score DESC, then couple id ASC. "less" means ranks earlier, so an
// in-order walk yields the leaderboard from best to worst. Every node keeps
// its subtree size, which makes offset paging and rank lookups logarithmic.

// scoreScale keeps four decimals of a 0-100 score exact.
const scoreScale = 10_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	if math.IsNaN(x) {
		return 0
	}
	return scoreFP(math.Round(x * scoreScale))
}

type node struct {
	id    string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore scoreFP, aID string, bScore scoreFP, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score scoreFP, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes carry a score strictly above score.
func countAbove(n *node, score scoreFP) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectRange appends up to limit nodes in rank order after skipping the
// first *skip of them.
func collectRange(n *node, skip *int, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	if *skip >= n.size {
		*skip -= n.size
		return
	}
	collectRange(n.left, skip, limit, out)
	if len(*out) >= limit {
		return
	}
	if *skip > 0 {
		*skip--
	} else {
		*out = append(*out, n)
	}
	collectRange(n.right, skip, limit, out)
}

// TreapStore is an in-memory couple leaderboard.
type TreapStore struct {
	mu      sync.RWMutex
	root    *node
	byID    map[string]model.Couple
	byPair  map[string]string
	ratings map[string][]model.Rating

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs the leaderboard and starts its metrics updater,
// which stops when ctx is done or Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:                  make(map[string]model.Couple),
		byPair:                make(map[string]string),
		ratings:               make(map[string][]model.Rating),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.startMetricsUpdater(ctx)
	return s
}

func pairKey(a, b string) string { return a + "|" + b }

// CreateCouple implements CoupleStore.CreateCouple in O(log n) expected time.
func (s *TreapStore) CreateCouple(_ context.Context, c model.Couple) (model.Couple, error) {
	a, b, err := model.NormalizePair(c.ProfileA, c.ProfileB)
	if err != nil {
		return model.Couple{}, err
	}
	c.ProfileA, c.ProfileB = a, b
	if c.RatingCount == 0 {
		c.Score = float64(c.BaseScore)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPair[pairKey(a, b)]; ok {
		return model.Couple{}, fmt.Errorf("%w: %s", ErrDuplicateCouple, id)
	}
	if _, ok := s.byID[c.ID]; ok {
		return model.Couple{}, fmt.Errorf("%w: %s", ErrDuplicateCouple, c.ID)
	}

	s.root = insert(s.root, c.ID, toFixedPoint(c.Score), rand.Uint64())
	s.byID[c.ID] = c
	s.byPair[pairKey(a, b)] = c.ID
	return c, nil
}

func (s *TreapStore) GetCouple(_ context.Context, id string) (model.Couple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return model.Couple{}, fmt.Errorf("couple %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// AddRating implements CoupleStore.AddRating. The couple is re-keyed in the
// treap because its score may move in either direction.
func (s *TreapStore) AddRating(_ context.Context, coupleID string, r model.Rating) (model.Couple, error) {
	r, err := r.Normalize()
	if err != nil {
		return model.Couple{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[coupleID]
	if !ok {
		return model.Couple{}, fmt.Errorf("couple %s: %w", coupleID, ErrNotFound)
	}
	next := cur.AddRating(r.Rating)

	s.root = deleteNode(s.root, cur.ID, toFixedPoint(cur.Score))
	s.root = insert(s.root, next.ID, toFixedPoint(next.Score), rand.Uint64())
	s.byID[coupleID] = next

	r.CoupleID = coupleID
	s.ratings[coupleID] = append(s.ratings[coupleID], r)
	return next, nil
}

func (s *TreapStore) Ratings(_ context.Context, coupleID string) ([]model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byID[coupleID]; !ok {
		return nil, fmt.Errorf("couple %s: %w", coupleID, ErrNotFound)
	}
	list := s.ratings[coupleID]
	out := make([]model.Rating, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Rank implements CoupleStore.Rank in O(log n) expected time.
func (s *TreapStore) Rank(_ context.Context, coupleID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[coupleID]
	if !ok {
		return Entry{}, fmt.Errorf("couple %s: %w", coupleID, ErrNotFound)
	}
	return Entry{Rank: countAbove(s.root, toFixedPoint(c.Score)) + 1, Couple: c}, nil
}

// Page implements CoupleStore.Page. Tied scores share a rank.
func (s *TreapStore) Page(_ context.Context, offset, limit int) ([]Entry, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidLimit, offset, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*node, 0, min(limit, len(s.byID)))
	skip := offset
	collectRange(s.root, &skip, limit, &nodes)

	out := make([]Entry, 0, len(nodes))
	for i, n := range nodes {
		rank := 0
		if i > 0 && n.score == nodes[i-1].score {
			rank = out[i-1].Rank
		} else {
			rank = countAbove(s.root, n.score) + 1
		}
		out = append(out, Entry{Rank: rank, Couple: s.byID[n.id]})
	}
	return out, nil
}

func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close stops the metrics updater.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateCouplesTotal(s.Count(ctx))
			}
		}
	}()
}
