package compat

// Default scores used when a pair is missing from the directional rows.
const (
	DefaultSameTypeScore = 75
	DefaultFallbackScore = 60
)

// canonicalRows holds the directional type scores. Rows omit same-type
// pairs and a few cross pairs (ENFJ->ENTJ is absent while ENTJ->ENFJ is
// present); those resolve through the fallback rule when the table is built.
var canonicalRows = map[TypeCode]map[TypeCode]int{
	INFJ: {ENFP: 100, ENTP: 89, INFP: 86, INTJ: 75, INTP: 86, ENFJ: 89, ENTJ: 89, ISFJ: 50, ISFP: 61, ISTJ: 50, ISTP: 61, ESFJ: 64, ESFP: 75, ESTJ: 64, ESTP: 75},
	INFP: {ENFJ: 100, ENTJ: 89, INFJ: 86, INTJ: 86, INTP: 75, ENFP: 89, ENTP: 89, ISFJ: 61, ISFP: 50, ISTJ: 61, ISTP: 50, ESFJ: 75, ESFP: 64, ESTJ: 75, ESTP: 64},
	ENFJ: {INFP: 100, INTP: 100, INFJ: 89, INTJ: 89, ENFP: 100, ENTP: 100, ISFJ: 64, ISFP: 75, ISTJ: 64, ISTP: 75, ESFJ: 100, ESFP: 89, ESTJ: 100, ESTP: 89},
	ENFP: {INFJ: 100, INTJ: 100, INFP: 89, INTP: 89, ENFJ: 100, ENTJ: 100, ISFJ: 75, ISFP: 64, ISTJ: 75, ISTP: 64, ESFJ: 89, ESFP: 100, ESTJ: 89, ESTP: 100},
	INTJ: {ENFP: 100, ENTP: 100, INFJ: 75, INFP: 86, INTP: 86, ENFJ: 89, ENTJ: 89, ISFJ: 50, ISFP: 61, ISTJ: 50, ISTP: 61, ESFJ: 64, ESFP: 75, ESTJ: 64, ESTP: 75},
	INTP: {ENFJ: 100, ENTJ: 100, INFJ: 86, INFP: 75, INTJ: 86, ENFP: 89, ENTP: 89, ISFJ: 61, ISFP: 50, ISTJ: 61, ISTP: 50, ESFJ: 75, ESFP: 64, ESTJ: 75, ESTP: 64},
	ENTJ: {INFP: 100, INTP: 100, INFJ: 89, INTJ: 89, ENFJ: 100, ENTP: 100, ISFJ: 64, ISFP: 75, ISTJ: 64, ISTP: 75, ESFJ: 100, ESFP: 89, ESTJ: 100, ESTP: 89},
	ENTP: {INFJ: 100, INTJ: 100, INFP: 89, INTP: 89, ENFJ: 100, ENTJ: 100, ISFJ: 75, ISFP: 64, ISTJ: 75, ISTP: 64, ESFJ: 89, ESFP: 100, ESTJ: 89, ESTP: 100},
	ISFJ: {ESFP: 100, ESTP: 89, ISFP: 86, ISTJ: 75, ISTP: 86, ESFJ: 89, ESTJ: 89, INFJ: 50, INFP: 61, INTJ: 50, INTP: 61, ENFJ: 64, ENFP: 75, ENTJ: 64, ENTP: 75},
	ISFP: {ESFJ: 100, ESTJ: 89, ISFJ: 86, ISTJ: 86, ISTP: 75, ESFP: 89, ESTP: 89, INFJ: 61, INFP: 50, INTJ: 61, INTP: 50, ENFJ: 75, ENFP: 64, ENTJ: 75, ENTP: 64},
	ESFJ: {ISFP: 100, ISTP: 100, ISFJ: 89, ISTJ: 89, ESFP: 100, ESTP: 100, INFJ: 64, INFP: 75, INTJ: 64, INTP: 75, ENFJ: 100, ENFP: 89, ENTJ: 100, ENTP: 89},
	ESFP: {ISFJ: 100, ISTJ: 100, ISFP: 89, ISTP: 89, ESFJ: 100, ESTJ: 100, INFJ: 75, INFP: 64, INTJ: 75, INTP: 64, ENFJ: 89, ENFP: 100, ENTJ: 89, ENTP: 100},
	ISTJ: {ESFP: 100, ESTP: 89, ISFJ: 75, ISFP: 86, ISTP: 86, ESFJ: 89, ESTJ: 89, INFJ: 50, INFP: 61, INTJ: 50, INTP: 61, ENFJ: 64, ENFP: 75, ENTJ: 64, ENTP: 75},
	ISTP: {ESFJ: 100, ESTJ: 100, ISFJ: 86, ISFP: 75, ISTJ: 86, ESFP: 89, ESTP: 89, INFJ: 61, INFP: 50, INTJ: 61, INTP: 50, ENFJ: 75, ENFP: 64, ENTJ: 75, ENTP: 64},
	ESTJ: {ISFP: 100, ISTP: 100, ISFJ: 89, ISTJ: 89, ESFJ: 100, ESTP: 100, INFJ: 64, INFP: 75, INTJ: 64, INTP: 75, ENFJ: 100, ENFP: 89, ENTJ: 100, ENTP: 89},
	ESTP: {ISFJ: 100, ISTJ: 100, ISFP: 89, ISTP: 89, ESFJ: 100, ESTJ: 100, INFJ: 75, INFP: 64, INTJ: 75, INTP: 64, ENFJ: 89, ENFP: 100, ENTJ: 89, ENTP: 100},
}

// Table is a fully materialized 16x16 type score table. Every ordered pair
// of canonical codes has a stored value, so lookups never depend on row
// direction.
type Table struct {
	scores   [numTypes][numTypes]int
	explicit [numTypes][numTypes]bool
	sameType int
	fallback int
}

// TableOption configures table construction.
type TableOption func(*Table)

// WithSameTypeScore overrides the score for a type paired with itself.
func WithSameTypeScore(score int) TableOption {
	return func(t *Table) {
		if score >= 0 && score <= maxScore {
			t.sameType = score
		}
	}
}

// WithFallbackScore overrides the score for pairs absent from the rows.
func WithFallbackScore(score int) TableOption {
	return func(t *Table) {
		if score >= 0 && score <= maxScore {
			t.fallback = score
		}
	}
}

// NewTable materializes rows into a full table. Pairs missing from rows
// resolve to the same-type score when both codes match and to the
// fallback score otherwise. Unknown codes in rows are ignored.
func NewTable(rows map[TypeCode]map[TypeCode]int, opts ...TableOption) *Table {
	t := &Table{
		sameType: DefaultSameTypeScore,
		fallback: DefaultFallbackScore,
	}
	for _, opt := range opts {
		opt(t)
	}

	for i, a := range typeOrder {
		for j, b := range typeOrder {
			if v, ok := rows[a][b]; ok {
				t.scores[i][j] = v
				t.explicit[i][j] = true
				continue
			}
			t.scores[i][j] = t.defaultFor(a, b)
		}
	}
	return t
}

var canonicalTable = NewTable(canonicalRows)

// Canonical returns the shared canonical table. It is immutable and safe
// for concurrent use.
func Canonical() *Table { return canonicalTable }

// Lookup returns the type score for the ordered pair (a, b). Codes outside
// the canonical 16 fall through the default rule instead of failing.
func (t *Table) Lookup(a, b TypeCode) int {
	i, okA := typeIndex[a]
	j, okB := typeIndex[b]
	if !okA || !okB {
		return t.defaultFor(a, b)
	}
	return t.scores[i][j]
}

func (t *Table) defaultFor(a, b TypeCode) int {
	if a == b {
		return t.sameType
	}
	return t.fallback
}

// Explicit reports whether (a, b) came from the source rows rather than the
// fallback rule.
func (t *Table) Explicit(a, b TypeCode) bool {
	i, okA := typeIndex[a]
	j, okB := typeIndex[b]
	if !okA || !okB {
		return false
	}
	return t.explicit[i][j]
}

// Chart returns every pair score keyed by row then column code.
func (t *Table) Chart() map[TypeCode]map[TypeCode]int {
	chart := make(map[TypeCode]map[TypeCode]int, numTypes)
	for i, a := range typeOrder {
		row := make(map[TypeCode]int, numTypes)
		for j, b := range typeOrder {
			row[b] = t.scores[i][j]
		}
		chart[a] = row
	}
	return chart
}

// Asymmetry describes an unordered pair whose two directions disagree.
type Asymmetry struct {
	A       TypeCode `json:"a"`
	B       TypeCode `json:"b"`
	Forward int      `json:"forward"` // Lookup(A, B)
	Reverse int      `json:"reverse"` // Lookup(B, A)
}

// Asymmetries lists the pairs where Lookup(a, b) != Lookup(b, a), in
// display order.
func (t *Table) Asymmetries() []Asymmetry {
	var out []Asymmetry
	for i := 0; i < numTypes; i++ {
		for j := i + 1; j < numTypes; j++ {
			if t.scores[i][j] != t.scores[j][i] {
				out = append(out, Asymmetry{
					A:       typeOrder[i],
					B:       typeOrder[j],
					Forward: t.scores[i][j],
					Reverse: t.scores[j][i],
				})
			}
		}
	}
	return out
}

// Band classifies a type score for display.
type Band string

// Score bands, best first.
const (
	BandBest        Band = "best"
	BandVeryGood    Band = "very_good"
	BandGood        Band = "good"
	BandAverage     Band = "average"
	BandChallenging Band = "challenging"
)

// Describe maps a type score to its band and a short description.
func Describe(score int) (Band, string) {
	switch {
	case score >= 90:
		return BandBest, "Best match! A fantastic couple."
	case score >= 80:
		return BandVeryGood, "Very good match. You understand each other well."
	case score >= 70:
		return BandGood, "Good match. It works out with some effort."
	case score >= 60:
		return BandAverage, "Average match. Both sides need to work at understanding."
	default:
		return BandChallenging, "A challenging match, but love can get past it."
	}
}
