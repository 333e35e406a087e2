package habitat

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/habitability/internal/channel"
	"github.com/sells-group/habitability/internal/geo"
)

// ErrInvalidQuery is returned for queries that fail validation.
var ErrInvalidQuery = eris.New("habitat: invalid query")

// Query is one habitability request.
type Query struct {
	Center       geo.Coordinate      `json:"center"`
	RadiusMeters float64             `json:"radius_m"`
	Preferences  channel.Preferences `json:"preferences,omitempty"`
}

// ValidateCenter checks that c is a finite WGS84 position.
func ValidateCenter(c geo.Coordinate) error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return eris.Wrapf(ErrInvalidQuery, "latitude %v out of range [-90, 90]", c.Lat)
	}
	if math.IsNaN(c.Lng) || c.Lng < -180 || c.Lng > 180 {
		return eris.Wrapf(ErrInvalidQuery, "longitude %v out of range [-180, 180]", c.Lng)
	}
	return nil
}

// ValidateRadius checks that 0 < r <= maxRadius. A maxRadius of 0 means no
// upper bound.
func ValidateRadius(r, maxRadius float64) error {
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return eris.Wrapf(ErrInvalidQuery, "radius %v must be > 0", r)
	}
	if maxRadius > 0 && r > maxRadius {
		return eris.Wrapf(ErrInvalidQuery, "radius %v exceeds maximum %v", r, maxRadius)
	}
	return nil
}
