package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wildfire-lab/firetour/internal/density"
	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/modis"
	"github.com/wildfire-lab/firetour/internal/store"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

// layerFlags are the selection flags shared by density, correlate, render
// and export.
func layerFlags(cmd *cobra.Command) {
	cmd.Flags().String("bbox", "", "minLon,minLat,maxLon,maxLat (default: configured region)")
	cmd.Flags().String("from", "", "first fire date, YYYY-MM-DD")
	cmd.Flags().String("to", "", "last fire date, YYYY-MM-DD (inclusive)")
	cmd.Flags().String("kind", "", "only POIs of this tourism value")
}

type selection struct {
	bbox    modis.BBox
	fires   store.DetectionFilter
	tourism store.POIFilter
}

func selectionFrom(cmd *cobra.Command) (selection, error) {
	rawBBox, _ := cmd.Flags().GetString("bbox")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	kind, _ := cmd.Flags().GetString("kind")

	var sel selection
	var err error
	if sel.bbox, err = parseBBox(rawBBox); err != nil {
		return sel, err
	}
	sel.fires.BBox = sel.bbox
	if sel.fires.From, err = parseDate(from); err != nil {
		return sel, err
	}
	if sel.fires.To, err = parseDate(to); err != nil {
		return sel, err
	}
	sel.tourism = store.POIFilter{Kind: kind, BBox: sel.bbox}
	return sel, nil
}

func loadLayers(ctx context.Context, st store.Store, sel selection) ([]fire.Detection, []tourism.POI, error) {
	fires, err := st.ListDetections(ctx, sel.fires)
	if err != nil {
		return nil, nil, err
	}
	pois, err := st.ListPOIs(ctx, sel.tourism)
	if err != nil {
		return nil, nil, err
	}
	return fires, pois, nil
}

var densityCmd = &cobra.Command{
	Use:   "density",
	Short: "Count stored fires and POIs per H3 hexagon",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("density"); err != nil {
			return err
		}
		res, _ := cmd.Flags().GetInt("res")
		out, _ := cmd.Flags().GetString("out")
		if res <= 0 {
			res = cfg.Density.Resolution
		}
		sel, err := selectionFrom(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fires, pois, err := loadLayers(ctx, st, sel)
		if err != nil {
			return err
		}
		table, err := density.Table(firePoints(fires), poiPoints(pois), res)
		if err != nil {
			return err
		}
		if out != "" {
			return writeCellsCSV(out, table)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CELL\tLAT\tLON\tFIRES\tPOIS")
		for _, c := range table {
			_, _ = fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%d\t%d\n", c.Cell, c.Lat, c.Lon, c.Fires, c.POIs)
		}
		return w.Flush()
	},
}

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Pearson correlation of fire and POI counts per H3 hexagon",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("density"); err != nil {
			return err
		}
		res, _ := cmd.Flags().GetInt("res")
		out, _ := cmd.Flags().GetString("out")
		if res <= 0 {
			res = cfg.Density.Resolution
		}
		sel, err := selectionFrom(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fires, pois, err := loadLayers(ctx, st, sel)
		if err != nil {
			return err
		}
		corr, err := density.Correlate(firePoints(fires), poiPoints(pois), res)
		if err != nil {
			return err
		}
		if out != "" {
			if err := writeCellsCSV(out, corr.Cells); err != nil {
				return err
			}
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "r=%.4f cells=%d fires=%d pois=%d resolution=%d\n",
			corr.R, len(corr.Cells), len(fires), len(pois), corr.Resolution)
		return nil
	},
}

func writeCellsCSV(path string, cells []density.CellCount) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"cell", "lat", "lon", "fires", "pois"})
	for _, c := range cells {
		_ = w.Write([]string{
			c.Cell,
			strconv.FormatFloat(c.Lat, 'f', 6, 64),
			strconv.FormatFloat(c.Lon, 'f', 6, 64),
			strconv.Itoa(c.Fires),
			strconv.Itoa(c.POIs),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "write %s", path)
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	for _, c := range []*cobra.Command{densityCmd, correlateCmd} {
		layerFlags(c)
		c.Flags().Int("res", 0, "H3 resolution (default from config)")
		c.Flags().StringP("out", "o", "", "write the cell table as CSV")
		rootCmd.AddCommand(c)
	}
}
