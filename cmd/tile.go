package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wildfire-lab/firetour/internal/modis"
)

var tileCmd = &cobra.Command{
	Use:   "tile",
	Short: "MODIS sinusoidal grid conversions",
}

var tileForwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Map a lat/lon in degrees to tile and cell indices",
	RunE: func(cmd *cobra.Command, _ []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		res, _ := cmd.Flags().GetInt("res")

		c, err := modis.ForwardDegrees(lat, lon, modis.Resolution(res))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "v=%d h=%d row=%d col=%d\n", c.V, c.H, c.Row, c.Col)
		return nil
	},
}

var tileInverseCmd = &cobra.Command{
	Use:   "inverse",
	Short: "Map tile and cell indices to the lat/lon of the cell centre",
	Long:  "Each index flag takes one value or a comma-separated list. Lists must share a length; single values apply to every element.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var lists [4][]int
		for i, name := range []string{"v", "h", "row", "col"} {
			raw, _ := cmd.Flags().GetString(name)
			vals, err := parseInts(raw)
			if err != nil {
				return eris.Wrapf(err, "--%s", name)
			}
			lists[i] = vals
		}
		res, _ := cmd.Flags().GetInt("res")

		lats, lons, err := modis.InverseMany(lists[0], lists[1], lists[2], lists[3], modis.Resolution(res))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "LAT\tLON")
		for i := range lats {
			_, _ = fmt.Fprintf(w, "%.6f\t%.6f\n", lats[i], lons[i])
		}
		return w.Flush()
	},
}

var tileBBoxCmd = &cobra.Command{
	Use:   "bbox",
	Short: "List the tiles covering a bounding box",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, _ := cmd.Flags().GetString("bbox")
		bbox, err := parseBBox(raw)
		if err != nil {
			return err
		}
		set, err := modis.TilesForBBox(bbox)
		if err != nil {
			return err
		}
		for _, t := range set.Sorted() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.String())
		}
		return nil
	},
}

func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, eris.New("no values")
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, eris.Wrapf(err, "parse %q", p)
		}
		out[i] = n
	}
	return out, nil
}

func init() {
	tileForwardCmd.Flags().Float64("lat", 0, "latitude in degrees")
	tileForwardCmd.Flags().Float64("lon", 0, "longitude in degrees")
	tileForwardCmd.Flags().Int("res", 1, "resolution factor: 1 (1 km), 2 (500 m) or 4 (250 m)")

	for _, name := range []string{"v", "h", "row", "col"} {
		tileInverseCmd.Flags().String(name, "", name+" index or comma-separated indices")
	}
	tileInverseCmd.Flags().Int("res", 1, "resolution factor: 1 (1 km), 2 (500 m) or 4 (250 m)")

	tileBBoxCmd.Flags().String("bbox", "", "minLon,minLat,maxLon,maxLat (default: configured region)")

	tileCmd.AddCommand(tileForwardCmd, tileInverseCmd, tileBBoxCmd)
	rootCmd.AddCommand(tileCmd)
}
