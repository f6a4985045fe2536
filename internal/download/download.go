// Package download fetches batches of remote files to local paths.
package download

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wildfire-lab/firetour/internal/fetcher"
	"github.com/wildfire-lab/firetour/internal/modis"
	"github.com/wildfire-lab/firetour/internal/progress"
	"github.com/wildfire-lab/firetour/internal/resilience"
)

// DefaultParallel is the number of concurrent downloads used when
// Options.Parallel is zero.
const DefaultParallel = 10

// ErrDuplicateTargets is returned when two URLs would be written to the
// same path.
var ErrDuplicateTargets = eris.New("download: duplicate target paths")

// Options controls FetchFile and FetchMany.
type Options struct {
	// Overwrite re-downloads files that already exist.
	Overwrite bool
	// ReturnIfExists is reported for a target that exists and is not
	// overwritten. Set it to report what is available locally; clear it to
	// report what this run fetched.
	ReturnIfExists bool
	// Parallel bounds concurrent downloads in FetchMany.
	Parallel int
	// Breakers stops requests to a host after repeated failures. Optional.
	Breakers *resilience.HostBreakers
	// Quiet hides the progress bar.
	Quiet bool
}

// NewBreakers returns host breakers that trip on transport errors and
// server-side statuses but not on a missing file.
func NewBreakers(cfg resilience.BreakerConfig) *resilience.HostBreakers {
	cfg.ShouldTrip = shouldTrip
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("download: host circuit changed",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return resilience.NewHostBreakers(cfg)
}

func shouldTrip(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var le *fetcher.LocalError
	if errors.As(err, &le) {
		return false
	}
	var se *fetcher.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// FetchFile downloads url to target. It reports true when the file was
// written, false when the server refused it or the transfer failed. An
// existing target is left alone unless opts.Overwrite is set, and then
// opts.ReturnIfExists is reported. The body is written to target+".part"
// and renamed into place so an interrupted transfer never leaves a
// truncated target. Only context cancellation and local filesystem
// failures are returned as errors.
func FetchFile(ctx context.Context, f fetcher.Fetcher, url, target string, opts Options) (bool, error) {
	log := zap.L().With(zap.String("component", "download"), zap.String("url", url))

	if _, err := os.Stat(target); err == nil && !opts.Overwrite {
		log.Debug("download: file already exists", zap.String("target", target))
		return opts.ReturnIfExists, nil
	}

	part := target + ".part"
	fetch := func(ctx context.Context) (int64, error) {
		return f.DownloadToFile(ctx, url, part)
	}

	var (
		n   int64
		err error
	)
	if opts.Breakers != nil {
		n, err = resilience.ExecuteVal(ctx, opts.Breakers.For(url), fetch)
	} else {
		n, err = fetch(ctx)
	}
	if err != nil {
		_ = os.Remove(part)
		if ctx.Err() != nil {
			return false, eris.Wrap(ctx.Err(), "download: fetch file")
		}
		var le *fetcher.LocalError
		if errors.As(err, &le) {
			return false, eris.Wrapf(err, "download: write %s", target)
		}
		log.Warn("download: fetch failed", zap.Error(err))
		return false, nil
	}

	if err := os.Rename(part, target); err != nil {
		_ = os.Remove(part)
		return false, eris.Wrapf(err, "download: move %s into place", target)
	}
	log.Debug("download: fetched", zap.String("target", target), zap.Int64("bytes", n))
	return true, nil
}

// FetchMany downloads urls[i] to targets[i] with at most opts.Parallel
// transfers in flight. results[i] is the FetchFile outcome of the i-th
// pair. A failed file does not stop the batch; cancellation does.
func FetchMany(ctx context.Context, f fetcher.Fetcher, urls, targets []string, opts Options) ([]bool, error) {
	if len(urls) != len(targets) {
		return nil, eris.Errorf("download: %d urls but %d targets", len(urls), len(targets))
	}
	if dup, ok := firstDuplicate(targets); ok {
		return nil, eris.Wrap(ErrDuplicateTargets, dup)
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = DefaultParallel
	}

	n := len(urls)
	zap.L().Info("download: starting batch", zap.Int("files", n), zap.Int("parallel", parallel))

	results := make([]bool, n)
	bar := progress.New(n, "downloading", opts.Quiet)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i := range urls {
		g.Go(func() error {
			ok, err := FetchFile(gctx, f, urls[i], targets[i], opts)
			if err != nil {
				return err
			}
			results[i] = ok
			bar.Add(1)
			return nil
		})
	}
	err := g.Wait()
	bar.Finish()

	s := Summarize(results)
	zap.L().Info("download: batch finished",
		zap.Int("downloaded", s.OK),
		zap.Int("total", s.Total),
		zap.Float64("percent", s.Percent()),
	)
	if err != nil {
		return results, eris.Wrap(err, "download: fetch many")
	}
	return results, nil
}

// Summary counts the successful entries of a FetchMany result.
type Summary struct {
	OK    int
	Total int
}

// Summarize counts successful downloads.
func Summarize(results []bool) Summary {
	s := Summary{Total: len(results)}
	for _, ok := range results {
		if ok {
			s.OK++
		}
	}
	return s
}

// Percent returns the success rate rounded to two decimals.
func (s Summary) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(int(10000*float64(s.OK)/float64(s.Total)+0.5)) / 100
}

// TargetsFor maps each URL to its local path under dataRoot.
func TargetsFor(urls []string, dataRoot string) ([]string, error) {
	targets := make([]string, len(urls))
	for i, u := range urls {
		t, err := modis.TargetPath(u, dataRoot)
		if err != nil {
			return nil, eris.Wrapf(err, "download: target for %s", u)
		}
		targets[i] = t
	}
	return targets, nil
}

func firstDuplicate(paths []string) (string, bool) {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			return p, true
		}
		seen[p] = struct{}{}
	}
	return "", false
}
