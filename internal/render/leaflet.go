package render

import (
	"html/template"
	"io"

	"github.com/rotisserie/eris"

	"github.com/wildfire-lab/firetour/internal/density"
)

// Map is the content of the web map.
type Map struct {
	Style   Style
	Tourism []density.Point
	Fires   []density.Point
}

type heatView struct {
	Name     string
	Radius   int
	Blur     int
	Gradient map[string]string
	Points   [][2]float64
}

type mapView struct {
	Style  Style
	Layers []heatView
}

func newHeatView(l HeatLayer, pts []density.Point) heatView {
	latlons := make([][2]float64, len(pts))
	for i, p := range pts {
		latlons[i] = [2]float64{p.Lat, p.Lon}
	}
	return heatView{Name: l.Name, Radius: l.Radius, Blur: l.Blur, Gradient: l.GradientJS(), Points: latlons}
}

var leafletTmpl = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Style.Title}}</title>
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script src="https://unpkg.com/leaflet.heat@0.2.0/dist/leaflet-heat.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map("map", {
  center: {{.Style.Center}},
  zoom: {{.Style.Zoom}},
  minZoom: {{.Style.MinZoom}},
  maxZoom: {{.Style.MaxZoom}}
});
var base = L.tileLayer({{.Style.Tiles}}, {attribution: {{.Style.Attribution}}}).addTo(map);
var overlays = {};
{{range $layer := .Layers}}
overlays[{{$layer.Name}}] = L.layerGroup([
  L.heatLayer({{$layer.Points}}, {radius: {{$layer.Radius}}, blur: {{$layer.Blur}}{{if $layer.Gradient}}, gradient: {{$layer.Gradient}}{{end}}})
]).addTo(map);
{{end}}
L.control.layers({"Terrain": base}, overlays).addTo(map);
</script>
</body>
</html>
`))

// Leaflet writes a standalone HTML page with a tourism heat layer and a
// fire heat layer that can be toggled from a layer control.
func Leaflet(w io.Writer, m Map) error {
	v := mapView{
		Style: m.Style,
		Layers: []heatView{
			newHeatView(m.Style.Tourism, m.Tourism),
			newHeatView(m.Style.Fires, m.Fires),
		},
	}
	if err := leafletTmpl.Execute(w, v); err != nil {
		return eris.Wrap(err, "render: leaflet map")
	}
	return nil
}
