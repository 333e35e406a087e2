// Package locate turns client IP addresses into coordinates using a MaxMind
// City database.
package locate

import (
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/rotisserie/eris"

	"github.com/sells-group/habitability/internal/geo"
)

var (
	// ErrInvalidIP is returned for strings that do not parse as an IP.
	ErrInvalidIP = eris.New("locate: invalid ip")
	// ErrNotLocated is returned when the database has no position for an IP,
	// including private and loopback addresses.
	ErrNotLocated = eris.New("locate: ip not located")
)

// cityReader is the part of *geoip2.Reader used here.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// GeoIP resolves IPs to coordinates.
type GeoIP struct {
	db cityReader
}

// Open loads the .mmdb file at path.
func Open(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "locate: open %s", path)
	}
	return &GeoIP{db: db}, nil
}

// Close releases the database.
func (g *GeoIP) Close() error {
	return g.db.Close()
}

// Locate returns the coordinate recorded for ip. ip may carry a port
// ("1.2.3.4:5678", "[::1]:80") as found in http.Request.RemoteAddr.
func (g *GeoIP) Locate(ip string) (geo.Coordinate, error) {
	parsed := ParseIP(ip)
	if parsed == nil {
		return geo.Coordinate{}, eris.Wrapf(ErrInvalidIP, "%q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return geo.Coordinate{}, eris.Wrapf(ErrNotLocated, "%s is not routable", parsed)
	}

	rec, err := g.db.City(parsed)
	if err != nil {
		return geo.Coordinate{}, eris.Wrapf(err, "locate: lookup %s", parsed)
	}
	// MaxMind reports a zero radius when it holds no location for the range.
	if rec.Location.AccuracyRadius == 0 && rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return geo.Coordinate{}, eris.Wrapf(ErrNotLocated, "%s", parsed)
	}
	return geo.Coordinate{Lat: rec.Location.Latitude, Lng: rec.Location.Longitude}, nil
}

// ParseIP parses an address with or without a port. It returns nil when s is
// not an IP.
func ParseIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	return net.ParseIP(strings.Trim(s, "[]"))
}
