package fire

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wildfire-lab/firetour/internal/modis"
	"github.com/wildfire-lab/firetour/internal/progress"
	"github.com/wildfire-lab/firetour/internal/raster"
)

// Opener opens the FireMask layer of a granule file.
type Opener func(path string) (raster.Layer, error)

// Extractor reads detections from many granules.
type Extractor struct {
	Open        Opener
	Options     Options
	Concurrency int
	Quiet       bool
}

// NewExtractor returns an Extractor that opens granules with GDAL.
func NewExtractor(opts Options) *Extractor {
	return &Extractor{Open: raster.OpenFireMask, Options: opts, Concurrency: 4}
}

// Extract returns the detections of all files concatenated in file order.
// Tile and satellite are taken from each file name when it follows the
// NASA naming scheme.
func (e *Extractor) Extract(ctx context.Context, files []string) ([]Detection, error) {
	concurrency := e.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	perFile := make([][]Detection, len(files))
	bar := progress.New(len(files), "extracting fires", e.Quiet)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dets, err := e.extractFile(f)
			if err != nil {
				return err
			}
			perFile[i] = dets
			bar.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "fire: extract")
	}
	bar.Finish()

	total := 0
	for _, d := range perFile {
		total += len(d)
	}
	out := make([]Detection, 0, total)
	for _, d := range perFile {
		out = append(out, d...)
	}
	zap.L().Info("fire: extracted detections",
		zap.Int("files", len(files)),
		zap.Int("detections", len(out)),
	)
	return out, nil
}

func (e *Extractor) extractFile(path string) ([]Detection, error) {
	layer, err := e.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fire: open %s", path)
	}
	defer layer.Close() //nolint:errcheck

	dets, err := FromLayer(layer, e.Options)
	if err != nil {
		return nil, eris.Wrapf(err, "fire: %s", path)
	}

	meta, metaErr := modis.ParseFilename(path)
	for i := range dets {
		dets[i].Source = path
		if metaErr == nil {
			dets[i].Tile = meta.Tile()
			dets[i].Satellite = meta.Satellite
		}
	}
	return dets, nil
}
