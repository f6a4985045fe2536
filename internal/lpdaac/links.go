// Package lpdaac scrapes the LP DAAC Data Pool directory listings for the
// URLs of MODIS granules.
package lpdaac

import (
	"context"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/wildfire-lab/firetour/internal/fetcher"
)

// PageFetcher fetches a page and reports its Content-Type.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// Client lists remote directories. HTTP(S) pages are scraped for anchors;
// ftp:// directories are listed with Dirs.
type Client struct {
	Pages PageFetcher
	Dirs  fetcher.Lister
}

// New returns a Client over the given fetchers.
func New(pages PageFetcher, dirs fetcher.Lister) *Client {
	return &Client{Pages: pages, Dirs: dirs}
}

// CollectHyperlinks returns the target of every <a href> on pageURL,
// resolved against pageURL. Duplicates are dropped; first-seen order is kept.
func (c *Client) CollectHyperlinks(ctx context.Context, pageURL string) ([]string, error) {
	if strings.HasPrefix(strings.ToLower(pageURL), "ftp://") {
		if c.Dirs == nil {
			return nil, eris.Errorf("lpdaac: no ftp lister for %s", pageURL)
		}
		links, err := c.Dirs.List(ctx, pageURL)
		if err != nil {
			return nil, eris.Wrapf(err, "lpdaac: list %s", pageURL)
		}
		return dedupe(links), nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "lpdaac: parse page url %s", pageURL)
	}

	body, contentType, err := c.Pages.Fetch(ctx, pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "lpdaac: fetch %s", pageURL)
	}
	defer body.Close() //nolint:errcheck

	r, err := decodeBody(body, contentType)
	if err != nil {
		return nil, err
	}
	links, err := extractLinks(r, base)
	if err != nil {
		return nil, eris.Wrapf(err, "lpdaac: parse %s", pageURL)
	}
	return links, nil
}

// decodeBody converts a non-UTF-8 page to UTF-8 using the charset from the
// Content-Type header.
func decodeBody(r io.Reader, contentType string) (io.Reader, error) {
	if contentType == "" {
		return r, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r, nil
	}
	cs := params["charset"]
	if cs == "" || strings.EqualFold(cs, "utf-8") {
		return r, nil
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return nil, eris.Wrapf(err, "lpdaac: unsupported charset %q", cs)
	}
	return enc.NewDecoder().Reader(r), nil
}

func extractLinks(r io.Reader, base *url.URL) ([]string, error) {
	var links []string
	seen := make(map[string]struct{})

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return links, nil
			}
			return nil, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			for _, a := range tok.Attr {
				if a.Key != "href" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(a.Val))
				if err != nil {
					continue
				}
				u := base.ResolveReference(ref).String()
				if _, ok := seen[u]; !ok {
					seen[u] = struct{}{}
					links = append(links, u)
				}
			}
		}
	}
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
