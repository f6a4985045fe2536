package download

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadLines reads a text file into one string per line, without line
// endings.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "download: open list")
	}
	defer f.Close() //nolint:errcheck

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "download: read list")
	}
	return lines, nil
}

// WriteLines writes one line per element, creating parent directories.
func WriteLines(lines []string, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "download: create list dir")
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "download: create list")
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		_, _ = w.WriteString(l)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "download: write list")
	}
	return eris.Wrap(f.Close(), "download: close list")
}
