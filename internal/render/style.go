// Package render draws fire and tourism densities as an interactive web
// map or a static contour image.
package render

import (
	"os"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// HeatLayer styles one heat layer of the web map.
type HeatLayer struct {
	Name     string             `yaml:"name"`
	Radius   int                `yaml:"radius"`
	Blur     int                `yaml:"blur"`
	Gradient map[float64]string `yaml:"gradient"`
}

// GradientJS returns the gradient keyed by stop as strings, the form
// leaflet.heat expects.
func (h HeatLayer) GradientJS() map[string]string {
	if len(h.Gradient) == 0 {
		return nil
	}
	out := make(map[string]string, len(h.Gradient))
	for k, v := range h.Gradient {
		out[strconv.FormatFloat(k, 'f', -1, 64)] = v
	}
	return out
}

// Stops returns the gradient stops in ascending order.
func (h HeatLayer) Stops() []float64 {
	stops := make([]float64, 0, len(h.Gradient))
	for k := range h.Gradient {
		stops = append(stops, k)
	}
	sort.Float64s(stops)
	return stops
}

// Style configures the web map.
type Style struct {
	Title       string     `yaml:"title"`
	Center      [2]float64 `yaml:"center"` // lat, lon
	Zoom        int        `yaml:"zoom"`
	MinZoom     int        `yaml:"min_zoom"`
	MaxZoom     int        `yaml:"max_zoom"`
	Tiles       string     `yaml:"tiles"`
	Attribution string     `yaml:"attribution"`
	Tourism     HeatLayer  `yaml:"tourism"`
	Fires       HeatLayer  `yaml:"fires"`
}

// DefaultStyle is a terrain map of Galicia locked at zoom 8.
func DefaultStyle() Style {
	return Style{
		Title:       "Forest fires and tourism",
		Center:      [2]float64{42.5, -5.0},
		Zoom:        8,
		MinZoom:     8,
		MaxZoom:     8,
		Tiles:       "https://tiles.stadiamaps.com/tiles/stamen_terrain/{z}/{x}/{y}.png",
		Attribution: `&copy; Stadia Maps &copy; Stamen Design &copy; OpenStreetMap contributors`,
		Tourism: HeatLayer{
			Name:   "Tourism",
			Radius: 8,
			Blur:   15,
		},
		Fires: HeatLayer{
			Name:     "Forest Fires",
			Radius:   12,
			Blur:     15,
			Gradient: map[float64]string{0.33: "red", 0.66: "brown", 1: "yellow"},
		},
	}
}

// LoadStyle reads a YAML style file over DefaultStyle. Keys missing from
// the file keep their defaults.
func LoadStyle(path string) (Style, error) {
	s := DefaultStyle()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, eris.Wrap(err, "render: read style")
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, eris.Wrap(err, "render: parse style")
	}
	if s.MinZoom > s.MaxZoom {
		return s, eris.Errorf("render: min_zoom %d above max_zoom %d", s.MinZoom, s.MaxZoom)
	}
	return s, nil
}
