package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wildfire-lab/firetour/internal/download"
	"github.com/wildfire-lab/firetour/internal/lpdaac"
	"github.com/wildfire-lab/firetour/internal/modis"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Collect HDF file URLs from the LP DAAC archive",
	Long:  "Scrapes the date directories of a MODIS product on LP DAAC (HTTP or FTP) and writes the matching HDF URLs, one per line.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		product, _ := cmd.Flags().GetString("product")
		collection, _ := cmd.Flags().GetString("collection")
		root, _ := cmd.Flags().GetString("root")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		allTiles, _ := cmd.Flags().GetBool("all-tiles")
		out, _ := cmd.Flags().GetString("out")

		if product == "" {
			product = cfg.LPDAAC.Product
		}
		if collection == "" {
			collection = cfg.LPDAAC.Collection
		}
		if root == "" {
			r, err := lpdaac.ProductRoot(cfg.LPDAAC.BaseURL, product, collection)
			if err != nil {
				return err
			}
			root = r
		}

		opts := lpdaac.Options{
			DateRegex:   cfg.LPDAAC.DateRegex,
			HDFRegex:    cfg.LPDAAC.HDFRegex,
			Concurrency: cfg.LPDAAC.Concurrency,
			Verbose:     !quiet,
		}
		var err error
		if opts.MinDate, err = parseDate(from); err != nil {
			return err
		}
		if opts.MaxDate, err = parseDate(to); err != nil {
			return err
		}
		if !allTiles && !cfg.Region.IsZero() {
			if opts.Tiles, err = modis.TilesForBBox(cfg.Region); err != nil {
				return err
			}
		}

		f := newFetcher()
		client := lpdaac.New(f.HTTP, f.FTP)
		urls, err := client.CollectHDFURLs(ctx, root, opts)
		if err != nil {
			return err
		}

		if out == "" || out == "-" {
			for _, u := range urls {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		}
		if err := download.WriteLines(urls, out); err != nil {
			return err
		}
		zap.L().Info("list: wrote urls", zap.String("root", root), zap.String("out", out), zap.Int("count", len(urls)))
		return nil
	},
}

func init() {
	listCmd.Flags().String("product", "", "product short name (default from config)")
	listCmd.Flags().String("collection", "", "collection (default from config)")
	listCmd.Flags().String("root", "", "product root URL, overrides --product")
	listCmd.Flags().String("from", "", "first date directory, YYYY-MM-DD")
	listCmd.Flags().String("to", "", "last date directory, YYYY-MM-DD (inclusive)")
	listCmd.Flags().Bool("all-tiles", false, "do not restrict to tiles covering the configured region")
	listCmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(listCmd)
}
