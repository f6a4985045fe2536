package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wildfire-lab/firetour/internal/export"
	"github.com/wildfire-lab/firetour/internal/store"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

var tourismCmd = &cobra.Command{
	Use:   "tourism",
	Short: "Tourism points of interest from OpenStreetMap",
}

var tourismLoadCmd = &cobra.Command{
	Use:   "load <extract.osm.pbf|extract.osm>",
	Short: "Load tourism POIs from an OSM extract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		out, _ := cmd.Flags().GetString("out")
		save, _ := cmd.Flags().GetBool("save")
		kinds, _ := cmd.Flags().GetStringSlice("kind")
		if len(kinds) == 0 {
			kinds = cfg.Tourism.Kinds
		}

		res, err := tourism.Load(ctx, args[0], tourism.Options{Kinds: kinds, SkipWays: cfg.Tourism.SkipWays})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "KIND\tCOUNT")
		for _, k := range res.SortedKinds() {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", k, res.Kinds[k])
		}
		_, _ = fmt.Fprintf(w, "total\t%d\nuncounted\t%d\n", len(res.Points), res.Uncounted)
		if err := w.Flush(); err != nil {
			return err
		}

		if out != "" {
			if err := export.POIs(out, res.Points); err != nil {
				return err
			}
		}
		if save {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			n, err := st.SavePOIs(ctx, res.Points)
			if err != nil {
				return err
			}
			zap.L().Info("tourism: saved", zap.Int64("count", n))
		}
		return nil
	},
}

var tourismActivityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Count stored POIs within a radius of a location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		radius, _ := cmd.Flags().GetFloat64("radius")
		kind, _ := cmd.Flags().GetString("kind")
		if radius <= 0 {
			radius = cfg.Tourism.RadiusKm
		}
		if radius <= 0 {
			return eris.New("tourism: radius must be positive")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pois, err := st.ListPOIs(ctx, store.POIFilter{Kind: kind})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), tourism.Activity(pois, lat, lon, radius))
		return nil
	},
}

func init() {
	tourismLoadCmd.Flags().StringP("out", "o", "", "output file; format from extension")
	tourismLoadCmd.Flags().Bool("save", false, "save POIs to the store")
	tourismLoadCmd.Flags().StringSlice("kind", nil, "tourism values to keep, e.g. hotel,museum (default all)")

	tourismActivityCmd.Flags().Float64("lat", 0, "latitude in degrees")
	tourismActivityCmd.Flags().Float64("lon", 0, "longitude in degrees")
	tourismActivityCmd.Flags().Float64("radius", 0, "radius in km (default from config)")
	tourismActivityCmd.Flags().String("kind", "", "only count this tourism value")

	tourismCmd.AddCommand(tourismLoadCmd, tourismActivityCmd)
	rootCmd.AddCommand(tourismCmd)
}
