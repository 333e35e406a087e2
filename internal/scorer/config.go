package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/habitability/internal/config"
)

// DefaultScorerConfig returns the standard curve intensities.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		TransitRho: 1.0,
		ElementRho: 0.6,
		SchoolBand: 10,
	}
}

// ValidateConfig checks that a ScorerConfig is usable by Compute.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	fields := []struct {
		name string
		v    float64
	}{
		{"transit_rho", c.TransitRho},
		{"element_rho", c.ElementRho},
		{"school_band", c.SchoolBand},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a finite number > 0", f.name))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
