package main

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wildfire-lab/firetour/internal/export"
	"github.com/wildfire-lab/firetour/internal/fire"
)

var firesCmd = &cobra.Command{
	Use:   "fires <file.hdf|glob>...",
	Short: "Extract fire pixels from MOD14A1/MYD14A1 granules",
	Long:  "Reads the FireMask subdataset of each granule and keeps pixels at or above the threshold. Detections are written to --out (csv, geojson, shp, xlsx) and/or saved to the store.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		if err := cfg.Validate("fires"); err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		save, _ := cmd.Flags().GetBool("save")
		threshold, _ := cmd.Flags().GetInt("threshold")
		rawBBox, _ := cmd.Flags().GetString("bbox")
		if out == "" && !save {
			return eris.New("fires: nothing to do, give --out or --save")
		}

		files, err := expandGlobs(args)
		if err != nil {
			return err
		}
		bbox, err := parseBBox(rawBBox)
		if err != nil {
			return err
		}
		if threshold <= 0 {
			threshold = cfg.Fire.Threshold
		}

		ex := fire.NewExtractor(fire.Options{Threshold: threshold, BBox: bbox})
		ex.Concurrency = cfg.Fire.Concurrency
		ex.Quiet = quiet
		fires, err := ex.Extract(ctx, files)
		if err != nil {
			return err
		}

		if out != "" {
			if err := export.Fires(out, fires); err != nil {
				return err
			}
			zap.L().Info("fires: written", zap.String("out", out), zap.Int("count", len(fires)))
		}
		if save {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			n, err := st.SaveDetections(ctx, fires)
			if err != nil {
				return err
			}
			zap.L().Info("fires: saved", zap.Int64("new", n), zap.Int("total", len(fires)))
		}
		return nil
	},
}

// expandGlobs expands shell-style patterns; arguments without matches are
// kept as given so that a missing file surfaces as an open error.
func expandGlobs(args []string) ([]string, error) {
	var files []string
	for _, a := range args {
		matches, err := filepath.Glob(a)
		if err != nil {
			return nil, eris.Wrapf(err, "bad pattern %q", a)
		}
		if len(matches) == 0 {
			files = append(files, a)
			continue
		}
		files = append(files, matches...)
	}
	return files, nil
}

func init() {
	firesCmd.Flags().StringP("out", "o", "", "output file; format from extension")
	firesCmd.Flags().Bool("save", false, "save detections to the store")
	firesCmd.Flags().Int("threshold", 0, "lowest FireMask class counted as fire (default from config)")
	firesCmd.Flags().String("bbox", "", "minLon,minLat,maxLon,maxLat (default: configured region)")
	rootCmd.AddCommand(firesCmd)
}
