// Package fetcher downloads remote files and directory listings over HTTP and FTP.
package fetcher

import (
	"context"
	"io"
	"strings"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// LocalError reports a failure to write a fetched body to the local
// filesystem, as opposed to a failure to fetch it.
type LocalError struct {
	Path string
	Err  error
}

func (e *LocalError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *LocalError) Unwrap() error { return e.Err }

// Lister lists the entries of a remote directory as absolute URLs.
// Subdirectories end with a slash.
type Lister interface {
	List(ctx context.Context, dirURL string) ([]string, error)
}

// Multi dispatches on the URL scheme: ftp:// goes to FTP, everything else to HTTP.
type Multi struct {
	HTTP *HTTPFetcher
	FTP  *FTPFetcher
}

// Download fetches the URL with the fetcher for its scheme.
func (m *Multi) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	if isFTP(url) {
		return m.FTP.Download(ctx, url)
	}
	return m.HTTP.Download(ctx, url)
}

// DownloadToFile writes the URL to path with the fetcher for its scheme.
func (m *Multi) DownloadToFile(ctx context.Context, url string, path string) (int64, error) {
	if isFTP(url) {
		return m.FTP.DownloadToFile(ctx, url, path)
	}
	return m.HTTP.DownloadToFile(ctx, url, path)
}

func isFTP(url string) bool {
	return strings.HasPrefix(strings.ToLower(url), "ftp://")
}
