// Package image caches base cloud images and checks them for updates.
package image

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

// Metadata describes a remote image without its content.
type Metadata struct {
	// Filename is the name advertised by the Content-Disposition header,
	// empty when the server sends none.
	Filename string

	// Size is the Content-Length, 0 when unknown.
	Size int64

	// LastModified is the remote modification time, zero when unknown.
	LastModified time.Time
}

// Fetcher retrieves remote images and their metadata. The HTTP transport
// is behind this interface so cache and update logic test with fakes.
type Fetcher interface {
	// Probe performs a metadata-only request, following redirects.
	Probe(ctx context.Context, url string) (Metadata, error)

	// Fetch opens a streamed download. The caller must close the reader.
	Fetch(ctx context.Context, url string) (io.ReadCloser, Metadata, error)
}

// HTTPFetcher implements Fetcher over plain HTTP(S).
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher using a default client. Downloads have
// no overall timeout; metadata probes should be bounded by the caller's
// context instead.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{}}
}

func (f *HTTPFetcher) Probe(ctx context.Context, url string) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return Metadata{}, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return Metadata{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("probe failed: %s", resp.Status)
	}

	return metadataFromHeader(resp), nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Metadata{}, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, Metadata{}, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, Metadata{}, fmt.Errorf("download failed: %s", resp.Status)
	}

	return resp.Body, metadataFromHeader(resp), nil
}

func metadataFromHeader(resp *http.Response) Metadata {
	md := Metadata{Size: resp.ContentLength}
	if md.Size < 0 {
		md.Size = 0
	}

	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			md.Filename = params["filename"]
		}
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			md.LastModified = t
		}
	}

	return md
}
