package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wildfire-lab/firetour/internal/download"
	"github.com/wildfire-lab/firetour/internal/modis"
)

var indexCmd = &cobra.Command{
	Use:   "index [file|url|glob]...",
	Short: "Tabulate HDF files by date, satellite and tile",
	RunE: func(cmd *cobra.Command, args []string) error {
		urlsFile, _ := cmd.Flags().GetString("urls")
		allTiles, _ := cmd.Flags().GetBool("all-tiles")

		paths, err := expandGlobs(args)
		if err != nil {
			return err
		}
		if urlsFile != "" {
			lines, err := download.ReadLines(urlsFile)
			if err != nil {
				return err
			}
			paths = append(paths, lines...)
		}
		if len(paths) == 0 {
			return eris.New("index: no files given")
		}

		entries, err := modis.BuildIndex(paths)
		if err != nil {
			zap.L().Warn("index: skipped files", zap.Error(err))
		}
		if !allTiles && !cfg.Region.IsZero() {
			tiles, err := modis.TilesForBBox(cfg.Region)
			if err != nil {
				return err
			}
			entries = modis.FilterTiles(entries, tiles)
		}
		modis.SortByDate(entries)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "DATE\tSAT\tPRODUCT\tTILE\tFILE")
		for _, e := range entries {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Date.Format(time.DateOnly), e.Satellite, e.Product, e.Tile(), e.URL)
		}
		return w.Flush()
	},
}

func init() {
	indexCmd.Flags().String("urls", "", "file with one path or URL per line")
	indexCmd.Flags().Bool("all-tiles", false, "do not restrict to tiles covering the configured region")
	rootCmd.AddCommand(indexCmd)
}
