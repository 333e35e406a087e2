package scorer

import (
	"github.com/sells-group/habitability/internal/channel"
	"github.com/sells-group/habitability/internal/config"
)

// Input carries the raw measurements for one scoring call. A nil statistic
// means the aspect is out of bounds and contributes no term.
type Input struct {
	Air    *float64
	Crime  *float64
	Rent   *float64
	School *float64

	TransitKm []float64
	Pairs     []channel.Pair
}

// Result is the final score plus every component utility.
type Result struct {
	Score float64 `json:"score"`

	Air    *float64 `json:"air,omitempty"`
	Crime  *float64 `json:"crime,omitempty"`
	Rent   *float64 `json:"rent,omitempty"`
	School *float64 `json:"school,omitempty"`

	Transit          float64 `json:"transit"`
	Positive         float64 `json:"positive"`
	Negative         float64 `json:"negative"`
	NegativeGoodness float64 `json:"negative_goodness"`
	// Neutral is reported for display and never enters the score.
	Neutral float64 `json:"neutral"`
}

// Components returns the terms that were averaged into Score, keyed by name.
func (r Result) Components() map[string]float64 {
	out := map[string]float64{
		"transit":           r.Transit,
		"positive":          r.Positive,
		"negative_goodness": r.NegativeGoodness,
	}
	for name, v := range map[string]*float64{
		"air":    r.Air,
		"crime":  r.Crime,
		"rent":   r.Rent,
		"school": r.School,
	} {
		if v != nil {
			out[name] = *v
		}
	}
	return out
}

// ScoreV3 scores with the default intensities.
func ScoreV3(air, crime, rent, school *float64, transitKm []float64, pairs []channel.Pair) Result {
	return Compute(Input{
		Air:       air,
		Crime:     crime,
		Rent:      rent,
		School:    school,
		TransitKm: transitKm,
		Pairs:     pairs,
	}, DefaultScorerConfig())
}

// Compute averages the present statistic utilities with the transit, positive,
// and negative-goodness terms and scales the mean to 0-100. Transit and the
// two element terms are always included. An empty list contributes 0, and
// negative goodness is 0 when there are no element pairs at all so that a
// query with no data scores 0.
func Compute(in Input, cfg config.ScorerConfig) Result {
	var r Result
	var terms []float64

	lower := func(x *float64) *float64 {
		if x == nil {
			return nil
		}
		u := LowerIsBetter(*x)
		terms = append(terms, u)
		return &u
	}
	r.Air = lower(in.Air)
	r.Crime = lower(in.Crime)
	r.Rent = lower(in.Rent)
	if in.School != nil {
		u := SchoolUtility(*in.School, cfg.SchoolBand)
		terms = append(terms, u)
		r.School = &u
	}

	r.Transit = Saturating(in.TransitKm, cfg.TransitRho)

	positive, negative, neutral := channel.Split(in.Pairs)
	r.Positive = Saturating(positive, cfg.ElementRho)
	r.Negative = Saturating(negative, cfg.ElementRho)
	if len(in.Pairs) > 0 {
		r.NegativeGoodness = 1 - r.Negative
	}
	r.Neutral = Saturating(neutral, cfg.ElementRho)

	terms = append(terms, r.Transit, r.Positive, r.NegativeGoodness)

	var sum float64
	for _, t := range terms {
		sum += t
	}
	r.Score = 100 * sum / float64(len(terms))
	return r
}
