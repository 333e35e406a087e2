package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/habitability/internal/geo"
	"github.com/sells-group/habitability/internal/habitat"
	"github.com/sells-group/habitability/internal/locate"
	"github.com/sells-group/habitability/internal/spatial"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the habitability of a location",
	Long: `Score a location against the configured dataset.

Nearby points within --radius are classified by the preference map into
good, bad, and neutral channels; zone statistics are resolved at the
center; the result is a 0-100 score plus every component utility.

Examples:
  # Score a point with the default radius
  score --lat 40.7128 --lng -74.0060

  # Override preferences for this run
  score --lat 40.7128 --lng -74.0060 --radius 800 --prefs "Park=good,Bar=bad"

  # Score wherever an IP address is (needs geoip.path)
  score --ip 81.2.69.142

  # Export components as CSV
  score --lat 40.7128 --lng -74.0060 --format csv --output score.csv`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.Float64("lat", 0, "latitude of the location")
	f.Float64("lng", 0, "longitude of the location")
	f.Float64("radius", 0, "search radius in meters (default from config)")
	f.String("ip", "", "locate the center from an IP address instead of --lat/--lng")
	f.String("prefs", "", "comma-separated Category=good|bad overrides")
	f.String("format", "table", "output format: table, json, or csv")
	f.String("output", "", "output file path (default stdout)")
	scoreCmd.MarkFlagsRequiredTogether("lat", "lng")
	scoreCmd.MarkFlagsOneRequired("lat", "ip")
	scoreCmd.MarkFlagsMutuallyExclusive("lat", "ip")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	lat, _ := cmd.Flags().GetFloat64("lat")
	lng, _ := cmd.Flags().GetFloat64("lng")
	radius, _ := cmd.Flags().GetFloat64("radius")
	ip, _ := cmd.Flags().GetString("ip")
	prefsFlag, _ := cmd.Flags().GetString("prefs")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	if format != "table" && format != "json" && format != "csv" {
		return eris.Errorf("score: --format must be table, json, or csv (got %q)", format)
	}
	prefs, err := parsePreferences(prefsFlag)
	if err != nil {
		return err
	}

	env, err := initQueryEnv(ctx, cfg, "query")
	if err != nil {
		return err
	}
	defer env.Close()

	center := geo.Coordinate{Lat: lat, Lng: lng}
	if ip != "" {
		if center, err = locateIP(cfg.GeoIP.Path, ip); err != nil {
			return err
		}
	}

	report, err := env.Evaluator.Evaluate(ctx, habitat.Query{
		Center:       center,
		RadiusMeters: radius,
		Preferences:  prefs,
	})
	if err != nil {
		return err
	}

	return withOutput(outputPath, func(w io.Writer) error {
		return writeReport(w, report, format)
	})
}

func locateIP(dbPath, ip string) (geo.Coordinate, error) {
	if dbPath == "" {
		return geo.Coordinate{}, eris.New("score: --ip needs geoip.path to be configured")
	}
	locator, err := locate.Open(dbPath)
	if err != nil {
		return geo.Coordinate{}, err
	}
	defer locator.Close() //nolint:errcheck
	return locator.Locate(ip)
}

// withOutput runs fn against the output file, or stdout when path is empty.
func withOutput(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create output file %s", path)
	}
	defer f.Close() //nolint:errcheck
	return fn(f)
}

func writeReport(w io.Writer, r *habitat.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(r), "score: encode report")
	case "csv":
		return writeReportCSV(w, r)
	case "table":
		return writeReportTable(w, r)
	default:
		return eris.Errorf("score: unsupported format %q", format)
	}
}

// sortedComponents returns the component names in a stable order.
func sortedComponents(r *habitat.Report) ([]string, map[string]float64) {
	comps := r.Score.Components()
	names := make([]string, 0, len(comps))
	for name := range comps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, comps
}

func writeReportCSV(w io.Writer, r *habitat.Report) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"component", "utility"}); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}
	names, comps := sortedComponents(r)
	for _, name := range names {
		if err := cw.Write([]string{name, fmt.Sprintf("%.4f", comps[name])}); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	rows := [][]string{
		{"neutral", fmt.Sprintf("%.4f", r.Score.Neutral)},
		{"score", fmt.Sprintf("%.2f", r.Score.Score)},
	}
	if err := cw.WriteAll(rows); err != nil {
		return eris.Wrap(err, "score: write CSV totals")
	}
	return nil
}

func writeReportTable(w io.Writer, r *habitat.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Location  %.6f, %.6f  radius %.0f m\n", r.Query.Center.Lat, r.Query.Center.Lng, r.Query.RadiusMeters)
	fmt.Fprintf(&b, "Nearby    %d points, %d zones\n\n", r.NearbyPoints, r.NearbyZones)

	fmt.Fprintf(&b, "%-18s %-18s %10s\n", "Aspect", "Status", "Value")
	fmt.Fprintln(&b, strings.Repeat("-", 48))
	aspects := make([]string, 0, len(r.Resolutions))
	for a := range r.Resolutions {
		aspects = append(aspects, a)
	}
	sort.Strings(aspects)
	for _, a := range aspects {
		res := r.Resolutions[a]
		value := "-"
		if res.Value != nil {
			value = fmt.Sprintf("%.2f", *res.Value)
		}
		fmt.Fprintf(&b, "%-18s %-18s %10s\n", a, res.Status, value)
	}
	fmt.Fprintf(&b, "%-18s %-18s %10s\n\n", spatial.AspectTransitAccess, r.Transit.Status, fmt.Sprintf("%d inputs", len(r.TransitKm)))

	fmt.Fprintf(&b, "%-18s %8s\n", "Component", "Utility")
	fmt.Fprintln(&b, strings.Repeat("-", 27))
	names, comps := sortedComponents(r)
	for _, name := range names {
		fmt.Fprintf(&b, "%-18s %8.4f\n", name, comps[name])
	}
	fmt.Fprintf(&b, "%-18s %8.4f  (display only)\n", "neutral", r.Score.Neutral)
	fmt.Fprintln(&b, strings.Repeat("-", 27))
	fmt.Fprintf(&b, "%-18s %8.2f\n", "SCORE", r.Score.Score)

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "score: write table")
}
