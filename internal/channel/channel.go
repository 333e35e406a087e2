// Package channel classifies nearby points into good, bad, and neutral
// distance channels according to a category preference map.
package channel

import (
	"strings"

	"github.com/sells-group/habitability/internal/spatial"
)

// Sign marks how a point's category bears on habitability.
type Sign int

// Channel signs.
const (
	Bad     Sign = -1
	Neutral Sign = 0
	Good    Sign = 1
)

// Preference values recognized in a Preferences map.
const (
	PreferenceGood = "good"
	PreferenceBad  = "bad"
)

// Preferences maps a point category to "good" or "bad". Any other value, or
// a category missing from the map, is neutral.
type Preferences map[string]string

// SignOf returns the sign for a category.
func (p Preferences) SignOf(category string) Sign {
	switch p[category] {
	case PreferenceGood:
		return Good
	case PreferenceBad:
		return Bad
	default:
		return Neutral
	}
}

// Normalize returns a copy of p with values trimmed and lowercased, so "Good"
// and " good" both read as good. Category keys are only trimmed; entries with
// an empty key are dropped.
func (p Preferences) Normalize() Preferences {
	out := make(Preferences, len(p))
	for k, v := range p {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

// Merge returns a normalized copy of p with every entry of override applied
// on top.
func (p Preferences) Merge(override Preferences) Preferences {
	out := p.Normalize()
	for k, v := range override.Normalize() {
		out[k] = v
	}
	return out
}

// Pair is one point's distance and sign.
type Pair struct {
	DistanceKm float64 `json:"distance_km"`
	Sign       Sign    `json:"sign"`
}

// Channels holds every pair plus the distances split by sign.
type Channels struct {
	Pairs      []Pair    `json:"pairs"`
	PositiveKm []float64 `json:"positive_km"`
	NegativeKm []float64 `json:"negative_km"`
	NeutralKm  []float64 `json:"neutral_km"`
}

// Build emits one pair per hit, in input order, and appends each distance to
// the list for its sign. A hit's category is its own label, falling back to
// its nested label when the own label is empty.
func Build(hits []spatial.PointHit, prefs Preferences) Channels {
	ch := Channels{
		Pairs:      make([]Pair, 0, len(hits)),
		PositiveKm: make([]float64, 0),
		NegativeKm: make([]float64, 0),
		NeutralKm:  make([]float64, 0),
	}
	for _, h := range hits {
		category := h.Category
		if category == "" {
			category = h.NestedCategory
		}
		sign := prefs.SignOf(category)
		km := h.DistanceKm()

		ch.Pairs = append(ch.Pairs, Pair{DistanceKm: km, Sign: sign})
		switch sign {
		case Good:
			ch.PositiveKm = append(ch.PositiveKm, km)
		case Bad:
			ch.NegativeKm = append(ch.NegativeKm, km)
		default:
			ch.NeutralKm = append(ch.NeutralKm, km)
		}
	}
	return ch
}

// Split divides pairs into positive, negative, and neutral distance lists,
// preserving relative order.
func Split(pairs []Pair) (positive, negative, neutral []float64) {
	for _, p := range pairs {
		switch {
		case p.Sign > 0:
			positive = append(positive, p.DistanceKm)
		case p.Sign < 0:
			negative = append(negative, p.DistanceKm)
		default:
			neutral = append(neutral, p.DistanceKm)
		}
	}
	return positive, negative, neutral
}
