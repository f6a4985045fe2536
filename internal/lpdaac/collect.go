package lpdaac

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wildfire-lab/firetour/internal/modis"
	"github.com/wildfire-lab/firetour/internal/progress"
)

// Data Pool defaults.
const (
	DefaultBaseURL     = "https://e4ftl01.cr.usgs.gov"
	DefaultDateRegex   = `/\d{4}\.\d{2}\.\d{2}/?$`
	DefaultHDFRegex    = `\.hdf$`
	DefaultConcurrency = 4
)

var dirDateRe = regexp.MustCompile(`[12]\d{3}\.[01]\d\.[0-3]\d`)

// Options filters CollectHDFURLs.
type Options struct {
	// DateRegex selects the date directories on the product page.
	DateRegex string
	// HDFRegex selects the granule links inside a date directory.
	HDFRegex string
	// MinDate and MaxDate bound the directory date, inclusive. Zero means
	// unbounded. Directory dates are the first day of multi-day
	// composites, so the bound is approximate for 8-day products.
	MinDate time.Time
	MaxDate time.Time
	// Tiles keeps only granules on these tiles. Nil keeps everything.
	Tiles modis.TileSet
	// Concurrency bounds parallel directory listings.
	Concurrency int
	// Verbose draws a progress bar.
	Verbose bool
}

// CollectHDFURLs lists every granule URL under a product directory such as
// https://e4ftl01.cr.usgs.gov/MOLT/MOD14A1.006/. The result is ordered by
// date directory, then by link order within the directory.
func (c *Client) CollectHDFURLs(ctx context.Context, productRootURL string, opts Options) ([]string, error) {
	dateRe, hdfRe, err := compile(opts)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "lpdaac"), zap.String("product", productRootURL))

	links, err := c.CollectHyperlinks(ctx, productRootURL)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, u := range links {
		if !dateRe.MatchString(u) || !inRange(u, opts.MinDate, opts.MaxDate) {
			continue
		}
		dirs = append(dirs, u)
	}
	log.Info("lpdaac: listing date directories", zap.Int("dirs", len(dirs)))

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	perDir := make([][]string, len(dirs))
	bar := progress.New(len(dirs), "listing", !opts.Verbose)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, d := range dirs {
		g.Go(func() error {
			entries, err := c.CollectHyperlinks(gctx, d)
			if err != nil {
				return err
			}
			for _, u := range entries {
				if hdfRe.MatchString(u) && onTiles(u, opts.Tiles) {
					perDir[i] = append(perDir[i], u)
				}
			}
			bar.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "lpdaac: collect hdf urls")
	}
	bar.Finish()

	var urls []string
	for _, u := range perDir {
		urls = append(urls, u...)
	}
	log.Info("lpdaac: collected granules", zap.Int("urls", len(urls)))
	return urls, nil
}

func compile(opts Options) (dateRe, hdfRe *regexp.Regexp, err error) {
	ds, hs := opts.DateRegex, opts.HDFRegex
	if ds == "" {
		ds = DefaultDateRegex
	}
	if hs == "" {
		hs = DefaultHDFRegex
	}
	if dateRe, err = regexp.Compile(ds); err != nil {
		return nil, nil, eris.Wrap(err, "lpdaac: compile date regex")
	}
	if hdfRe, err = regexp.Compile(hs); err != nil {
		return nil, nil, eris.Wrap(err, "lpdaac: compile hdf regex")
	}
	return dateRe, hdfRe, nil
}

// DirDate parses the YYYY.MM.DD directory date contained in url.
func DirDate(url string) (time.Time, error) {
	s := dirDateRe.FindString(url)
	if s == "" {
		return time.Time{}, eris.Errorf("lpdaac: no directory date in %s", url)
	}
	t, err := time.Parse("2006.01.02", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "lpdaac: parse directory date %s", s)
	}
	return t, nil
}

func inRange(url string, minDate, maxDate time.Time) bool {
	if minDate.IsZero() && maxDate.IsZero() {
		return true
	}
	d, err := DirDate(url)
	if err != nil {
		zap.L().Debug("lpdaac: skipping directory without date", zap.String("url", url))
		return false
	}
	if !minDate.IsZero() && d.Before(minDate) {
		return false
	}
	if !maxDate.IsZero() && d.After(maxDate) {
		return false
	}
	return true
}

func onTiles(url string, tiles modis.TileSet) bool {
	if tiles == nil {
		return true
	}
	m, err := modis.ParseFilename(url)
	if err != nil {
		return false
	}
	return tiles.Has(m.H, m.V)
}

// satelliteDirs maps a product prefix to its Data Pool platform directory.
var satelliteDirs = map[string]string{
	"MOD": "MOLT",
	"MYD": "MOLA",
	"MCD": "MOTA",
}

// ProductRoot builds the Data Pool directory URL of a product, for example
// ProductRoot("", "MOD14A1", "006") gives
// https://e4ftl01.cr.usgs.gov/MOLT/MOD14A1.006/.
func ProductRoot(baseURL, product, collection string) (string, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if len(product) < 3 {
		return "", eris.Errorf("lpdaac: invalid product %q", product)
	}
	dir, ok := satelliteDirs[strings.ToUpper(product[:3])]
	if !ok {
		return "", eris.Errorf("lpdaac: unknown platform for product %q", product)
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + dir + "/" + product + "." + collection + "/", nil
}
