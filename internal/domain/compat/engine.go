package compat

// Composite weights. They sum to 1.
const (
	TypeWeight        = 0.5
	HeartRateWeight   = 0.3
	TemperatureWeight = 0.2
)

// Result is the composite score and its three parts.
type Result struct {
	Total       int `json:"total_score"`
	Type        int `json:"type_score"`
	HeartRate   int `json:"heart_rate_score"`
	Temperature int `json:"temperature_score"`
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithTable sets the type table used for the categorical part.
func WithTable(t *Table) Option {
	return func(e *Engine) {
		if t != nil {
			e.table = t
		}
	}
}

// Engine computes composite compatibility scores. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	table *Table
}

// NewEngine creates an engine backed by the canonical table unless
// overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{table: Canonical()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the type table the engine scores with.
func (e *Engine) Table() *Table { return e.table }

// Score computes the compatibility of a and b.
func (e *Engine) Score(a, b Profile) Result {
	hrDiff := a.HeartRate - b.HeartRate
	if hrDiff < 0 {
		hrDiff = -hrDiff
	}

	r := Result{
		Type:        e.table.Lookup(a.Type, b.Type),
		HeartRate:   HeartRateSimilarity(hrDiff),
		Temperature: TemperatureSimilarity(a.Temperature - b.Temperature),
	}
	r.Total = weightedTotal(r.Type, r.HeartRate, r.Temperature)
	return r
}

// weightedTotal truncates the weighted sum toward zero. Each product is
// converted explicitly so it is rounded on its own and never fused, which
// keeps totals identical to previously stored scores.
func weightedTotal(typeScore, heartRate, temperature int) int {
	sum := float64(float64(typeScore)*TypeWeight) +
		float64(float64(heartRate)*HeartRateWeight) +
		float64(float64(temperature)*TemperatureWeight)
	return int(sum)
}

var defaultEngine = NewEngine()

// Score computes the compatibility of a and b with the canonical table.
func Score(a, b Profile) Result {
	return defaultEngine.Score(a, b)
}
