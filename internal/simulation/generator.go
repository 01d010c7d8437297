package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/reachyou/internal/domain/compat"
)

// Reading ranges for generated data. Temperatures stay in the band a
// healthy adult reports.
const (
	minHeartRate   = 55
	maxHeartRate   = 110
	minTemperature = 35.8
	maxTemperature = 37.6
)

// generator produces reproducible request bodies from a seed.
type generator struct {
	rng   *rand.Rand
	codes []compat.TypeCode
	now   func() time.Time
}

func newGenerator(seed uint64) *generator {
	return &generator{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		codes: compat.TypeCodes(),
		now:   time.Now,
	}
}

func (g *generator) profiles(n int) []profileRequest {
	out := make([]profileRequest, n)
	for i := range out {
		out[i] = profileRequest{
			Username: fmt.Sprintf("sim-%04d", i),
			TypeCode: g.codes[g.rng.IntN(len(g.codes))].String(),
		}
	}
	return out
}

// readings returns perProfile readings for each id, interleaved so no
// profile's readings arrive back to back. Every third reading is a replay
// of the one before it.
func (g *generator) readings(ids []string, perProfile int) []readingRequest {
	out := make([]readingRequest, 0, len(ids)*perProfile)
	for round := 0; round < perProfile; round++ {
		for _, id := range ids {
			r := readingRequest{
				ReadingID:   uuid.NewString(),
				ProfileID:   id,
				HeartRate:   minHeartRate + g.rng.IntN(maxHeartRate-minHeartRate+1),
				Temperature: math.Round((minTemperature+g.rng.Float64()*(maxTemperature-minTemperature))*10) / 10,
				TS:          g.now().UTC().Format(time.RFC3339),
			}
			if len(out)%3 == 2 {
				r = out[len(out)-1]
			}
			out = append(out, r)
		}
	}
	return out
}

// pairs picks n distinct unordered pairs of ids. It returns fewer when the
// population cannot supply n.
func (g *generator) pairs(ids []string, n int) [][2]string {
	if len(ids) < 2 {
		return nil
	}
	seen := make(map[[2]string]struct{}, n)
	out := make([][2]string, 0, n)
	for attempts := 0; len(out) < n && attempts < n*20; attempts++ {
		i, j := g.rng.IntN(len(ids)), g.rng.IntN(len(ids))
		if i == j {
			continue
		}
		key := [2]string{min(ids[i], ids[j]), max(ids[i], ids[j])}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, [2]string{ids[i], ids[j]})
	}
	return out
}

func (g *generator) rating() int { return 1 + g.rng.IntN(5) }
