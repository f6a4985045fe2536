package modis

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Meta is the metadata encoded in a NASA MODIS file name such as
// MOD14A1.A2019257.h11v12.006.2019269172641.hdf.
type Meta struct {
	FileName   string    `json:"fname"`
	Product    string    `json:"product"`
	Satellite  string    `json:"sat_name"`
	Date       time.Time `json:"date"`
	H          int       `json:"h"`
	V          int       `json:"v"`
	Collection string    `json:"collection"`
}

// Tile returns the tile the file covers.
func (m Meta) Tile() Tile {
	return Tile{H: m.H, V: m.V}
}

var filenameRe = regexp.MustCompile(`^([^.]+)\.A(\d{7})\.h(\d{2})v(\d{2})\.(\d{3})\.`)

// baseName strips a directory or URL prefix.
func baseName(p string) string {
	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ParseFilename extracts metadata from a MODIS file name, path or URL.
func ParseFilename(name string) (Meta, error) {
	fname := baseName(name)
	m := filenameRe.FindStringSubmatch(fname)
	if m == nil {
		return Meta{}, eris.Errorf("modis: not a MODIS file name: %q", fname)
	}

	date, err := time.Parse("2006002", m[2])
	if err != nil {
		return Meta{}, eris.Wrapf(err, "modis: parse date of %q", fname)
	}
	h, _ := strconv.Atoi(m[3])
	v, _ := strconv.Atoi(m[4])

	return Meta{
		FileName:   fname,
		Product:    m[1],
		Satellite:  fname[:3],
		Date:       date,
		H:          h,
		V:          v,
		Collection: m[5],
	}, nil
}

// ProductName returns everything before the first dot of the base name.
func ProductName(name string) string {
	fname := baseName(name)
	if i := strings.IndexByte(fname, '.'); i >= 0 {
		return fname[:i]
	}
	return fname
}

// TargetPath maps a download URL onto {dataRoot}/{product}/{date}/{file}.
// The part of the URL from the product directory onwards is kept, so
// .../MOTA/MCD12Q1.006/2001.01.01/MCD12Q1.A2001001.h00v08.006.2018142182903.hdf
// becomes {dataRoot}/MCD12Q1.006/2001.01.01/MCD12Q1.A2001001.h00v08.006.2018142182903.hdf.
func TargetPath(rawURL, dataRoot string) (string, error) {
	root, err := ExpandHome(dataRoot)
	if err != nil {
		return "", err
	}
	product := ProductName(rawURL)
	if product == "" {
		return "", eris.Errorf("modis: no product name in %q", rawURL)
	}

	re := regexp.MustCompile(regexp.QuoteMeta(product) + `.+[/\\].+`)
	suffix := re.FindString(rawURL)
	if suffix == "" {
		return "", eris.Errorf("modis: url %q has no product directory", rawURL)
	}
	suffix = path.Clean(strings.ReplaceAll(suffix, `\`, "/"))
	return filepath.Join(root, filepath.FromSlash(suffix)), nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "modis: resolve home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
