package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wildfire-lab/firetour/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored fires or POIs to csv, geojson, shp or xlsx",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		what, _ := cmd.Flags().GetString("what")
		out, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")
		if out == "" {
			return eris.New("export: --out is required")
		}
		sel, err := selectionFrom(cmd)
		if err != nil {
			return err
		}
		sel.fires.Limit = limit
		sel.tourism.Limit = limit

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var n int
		switch what {
		case "fires":
			fires, err := st.ListDetections(ctx, sel.fires)
			if err != nil {
				return err
			}
			n = len(fires)
			err = export.Fires(out, fires)
			if err != nil {
				return err
			}
		case "tourism":
			pois, err := st.ListPOIs(ctx, sel.tourism)
			if err != nil {
				return err
			}
			n = len(pois)
			err = export.POIs(out, pois)
			if err != nil {
				return err
			}
		default:
			return eris.Errorf("export: unknown --what %q (want fires or tourism)", what)
		}
		zap.L().Info("export: written", zap.String("what", what), zap.String("out", out), zap.Int("count", n))
		return nil
	},
}

func init() {
	layerFlags(exportCmd)
	exportCmd.Flags().String("what", "fires", "fires or tourism")
	exportCmd.Flags().StringP("out", "o", "", "output file; format follows the extension")
	exportCmd.Flags().Int("limit", 0, "maximum rows (0: all)")
	rootCmd.AddCommand(exportCmd)
}
