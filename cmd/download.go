package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wildfire-lab/firetour/internal/download"
	"github.com/wildfire-lab/firetour/internal/resilience"
	"github.com/wildfire-lab/firetour/internal/store"
)

var downloadCmd = &cobra.Command{
	Use:   "download [url...]",
	Short: "Download HDF files into the data root",
	Long:  "Downloads each URL to {data_root}/{product.collection}/{date}/{file}. URLs come from the arguments or from --urls, one per line.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		if err := cfg.Validate("download"); err != nil {
			return err
		}

		urlsFile, _ := cmd.Flags().GetString("urls")
		dataRoot, _ := cmd.Flags().GetString("data-root")
		parallel, _ := cmd.Flags().GetInt("parallel")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		record, _ := cmd.Flags().GetBool("record")

		urls := args
		if urlsFile != "" {
			lines, err := download.ReadLines(urlsFile)
			if err != nil {
				return err
			}
			urls = append(urls, lines...)
		}
		if len(urls) == 0 {
			return eris.New("download: no urls given")
		}
		if dataRoot == "" {
			dataRoot = cfg.Download.DataRoot
		}
		if parallel <= 0 {
			parallel = cfg.Download.Parallel
		}

		targets, err := download.TargetsFor(urls, dataRoot)
		if err != nil {
			return err
		}

		opts := download.Options{
			Overwrite:      overwrite || cfg.Download.Overwrite,
			ReturnIfExists: true,
			Parallel:       parallel,
			Quiet:          quiet,
			Breakers: download.NewBreakers(resilience.BreakerConfig{
				FailureThreshold: cfg.Download.BreakerThreshold,
				ResetTimeout:     time.Duration(cfg.Download.BreakerResetSecs) * time.Second,
			}),
		}
		results, err := download.FetchMany(ctx, newFetcher(), urls, targets, opts)
		if err != nil {
			return err
		}

		if record {
			if err := recordDownloads(cmd, urls, targets, results); err != nil {
				return err
			}
		}

		if s := download.Summarize(results); s.OK < s.Total {
			return eris.Errorf("download: %d of %d files failed", s.Total-s.OK, s.Total)
		}
		return nil
	},
}

func recordDownloads(cmd *cobra.Command, urls, targets []string, results []bool) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	for i, u := range urls {
		if err := st.RecordDownload(ctx, store.Download{URL: u, Target: targets[i], OK: results[i]}); err != nil {
			return err
		}
	}
	zap.L().Debug("download: recorded", zap.Int("count", len(urls)))
	return nil
}

func init() {
	downloadCmd.Flags().String("urls", "", "file with one URL per line")
	downloadCmd.Flags().String("data-root", "", "download directory (default from config)")
	downloadCmd.Flags().IntP("parallel", "j", 0, "concurrent downloads (default from config)")
	downloadCmd.Flags().Bool("overwrite", false, "download files that already exist")
	downloadCmd.Flags().Bool("record", false, "log each download in the store")
	rootCmd.AddCommand(downloadCmd)
}
