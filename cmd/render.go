package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wildfire-lab/firetour/internal/density"
	"github.com/wildfire-lab/firetour/internal/render"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Draw maps of stored fires and tourism",
}

func loadStyle(path string) (render.Style, error) {
	if path == "" {
		path = cfg.Render.Style
	}
	if path == "" {
		return render.DefaultStyle(), nil
	}
	return render.LoadStyle(path)
}

var renderHeatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Write an interactive Leaflet heat map as a standalone HTML page",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out, _ := cmd.Flags().GetString("out")
		stylePath, _ := cmd.Flags().GetString("style")

		style, err := loadStyle(stylePath)
		if err != nil {
			return err
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

		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return eris.Wrapf(err, "render: mkdir for %s", out)
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "render: create %s", out)
		}
		if err := render.Leaflet(f, render.Map{Style: style, Fires: firePoints(fires), Tourism: poiPoints(pois)}); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "render: close %s", out)
		}
		zap.L().Info("render: heat map written",
			zap.String("out", out), zap.Int("fires", len(fires)), zap.Int("pois", len(pois)))
		return nil
	},
}

var renderContourCmd = &cobra.Command{
	Use:   "contour",
	Short: "Write a static KDE contour map (png, svg or pdf by extension)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("density"); err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		layer, _ := cmd.Flags().GetString("layer")
		bandwidth, _ := cmd.Flags().GetFloat64("bandwidth")
		overlay, _ := cmd.Flags().GetBool("overlay")
		if !cmd.Flags().Changed("bandwidth") {
			bandwidth = cfg.Density.Bandwidth
		}
		if layer != "fires" && layer != "tourism" {
			return eris.Errorf("render: unknown layer %q (want fires or tourism)", layer)
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
		pts, title := firePoints(fires), "Forest fire density"
		if layer == "tourism" {
			pts, title = poiPoints(pois), "Tourism density"
		}

		surface, err := density.KDE(pts, densityGrid(sel.bbox), bandwidth)
		if err != nil {
			return err
		}
		opts := render.ContourOptions{
			Title:    title,
			Extent:   sel.bbox,
			Levels:   cfg.Render.Levels,
			MaxAlpha: cfg.Render.MaxAlpha,
		}
		if overlay {
			opts.Overlay = pts
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return eris.Wrapf(err, "render: mkdir for %s", out)
		}
		if err := render.Contour(out, surface, opts); err != nil {
			return err
		}
		zap.L().Info("render: contour map written",
			zap.String("out", out), zap.String("layer", layer), zap.Int("points", len(pts)))
		return nil
	},
}

func init() {
	layerFlags(renderHeatmapCmd)
	renderHeatmapCmd.Flags().StringP("out", "o", "map.html", "output HTML file")
	renderHeatmapCmd.Flags().String("style", "", "YAML style file (default from config)")

	layerFlags(renderContourCmd)
	renderContourCmd.Flags().StringP("out", "o", "density.png", "output image")
	renderContourCmd.Flags().String("layer", "fires", "fires or tourism")
	renderContourCmd.Flags().Float64("bandwidth", 0, "kernel bandwidth in degrees (0: Scott's rule)")
	renderContourCmd.Flags().Bool("overlay", false, "draw the raw points over the density")

	renderCmd.AddCommand(renderHeatmapCmd, renderContourCmd)
	rootCmd.AddCommand(renderCmd)
}
