package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/habitability/internal/geo"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve which zone of an aspect covers or is nearest to a location",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		radius, _ := cmd.Flags().GetFloat64("radius")
		aspect, _ := cmd.Flags().GetString("aspect")

		env, err := initQueryEnv(ctx, cfg, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Evaluator.Resolve(ctx, geo.Coordinate{Lat: lat, Lng: lng}, radius, aspect)
		if err != nil {
			return err
		}

		return withOutput("", func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(res), "resolve: encode result")
		})
	},
}

func init() {
	f := resolveCmd.Flags()
	f.Float64("lat", 0, "latitude of the location")
	f.Float64("lng", 0, "longitude of the location")
	f.Float64("radius", 0, "candidate search radius in meters (default from config)")
	f.String("aspect", "", "aspect to resolve (air_quality, crime_rate, rent, school_quality, transit_access)")
	_ = resolveCmd.MarkFlagRequired("lat")
	_ = resolveCmd.MarkFlagRequired("lng")
	_ = resolveCmd.MarkFlagRequired("aspect")
	rootCmd.AddCommand(resolveCmd)
}
