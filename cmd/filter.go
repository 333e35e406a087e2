package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/habitability/internal/geo"
	"github.com/sells-group/habitability/internal/habitat"
	"github.com/sells-group/habitability/internal/spatial"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "List points and zones within a radius of a location",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		radius, _ := cmd.Flags().GetFloat64("radius")
		format, _ := cmd.Flags().GetString("format")

		if format != "table" && format != "geojson" {
			return eris.Errorf("filter: --format must be table or geojson (got %q)", format)
		}

		env, err := initQueryEnv(ctx, cfg, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		if radius == 0 {
			radius = env.Evaluator.DefaultRadius()
		}
		near, err := env.Evaluator.Nearby(ctx, geo.Coordinate{Lat: lat, Lng: lng}, radius)
		if err != nil {
			return err
		}

		return withOutput("", func(w io.Writer) error {
			if format == "geojson" {
				return writeNearbyGeoJSON(w, near)
			}
			return writeNearbyTable(w, near)
		})
	},
}

func init() {
	f := filterCmd.Flags()
	f.Float64("lat", 0, "latitude of the location")
	f.Float64("lng", 0, "longitude of the location")
	f.Float64("radius", 0, "radius in meters (default from config)")
	f.String("format", "table", "output format: table or geojson")
	_ = filterCmd.MarkFlagRequired("lat")
	_ = filterCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(filterCmd)
}

func writeNearbyTable(w io.Writer, near *habitat.Nearby) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%-30s %-18s %10s\n", "Point", "Category", "Distance")
	fmt.Fprintln(&b, strings.Repeat("-", 60))
	for _, h := range near.Points {
		name := h.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		fmt.Fprintf(&b, "%-30s %-18s %8.0f m\n", name, strings.Join(h.Categories(), "/"), h.DistanceMeters)
	}
	fmt.Fprintf(&b, "\n%d points, %d zones within %.0f m\n", len(near.Points), len(near.Zones), near.RadiusMeters)
	groups := spatial.GroupZonesByAspect(near.Zones)
	aspects := make([]string, 0, len(groups))
	for a := range groups {
		aspects = append(aspects, a)
	}
	sort.Strings(aspects)
	for _, a := range aspects {
		fmt.Fprintf(&b, "  %-18s %d\n", a, len(groups[a]))
	}

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "filter: write table")
}

func writeNearbyGeoJSON(w io.Writer, near *habitat.Nearby) error {
	points := make([]spatial.Point, len(near.Points))
	for i, h := range near.Points {
		points[i] = h.Point
	}
	fc := spatial.PointCollection(points)
	fc.Features = append(fc.Features, spatial.ZoneCollection(near.Zones).Features...)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(fc), "filter: encode geojson")
}
