package image

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
)

// Cache stores downloaded base images in a flat directory. File presence
// is the only completion marker: a file of the derived name counts as
// cached without content validation.
type Cache struct {
	dir     string
	fetcher Fetcher

	// Progress receives download progress lines; nil disables reporting.
	Progress io.Writer
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string, fetcher Fetcher) *Cache {
	return &Cache{dir: dir, fetcher: fetcher, Progress: os.Stdout}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// FetchError wraps a transport failure. Any partial file has been
// removed by the time it is returned.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// EnsureCached makes sure the image at url exists in the cache and
// returns its local path. A metadata probe decides the canonical
// filename; an existing file of that name is returned as-is. Concurrent
// first fetches of one filename serialize on an advisory lock, and the
// download itself goes to a temp name with an atomic rename so racing
// writers that bypass the lock degrade to last-writer-wins.
func (c *Cache) EnsureCached(ctx context.Context, imageURL string) (string, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	md, err := c.fetcher.Probe(ctx, imageURL)
	if err != nil {
		return "", &FetchError{URL: imageURL, Err: err}
	}

	filename := DeriveFilename(md, imageURL)
	dest := filepath.Join(c.dir, filename)

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	unlock, err := c.lockFilename(filename)
	if err != nil {
		return "", err
	}
	defer unlock()

	// Another invocation may have completed the download while we
	// waited on the lock.
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := c.download(ctx, imageURL, dest, md.Size); err != nil {
		return "", err
	}

	return dest, nil
}

func (c *Cache) download(ctx context.Context, imageURL, dest string, expectSize int64) error {
	body, md, err := c.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return &FetchError{URL: imageURL, Err: err}
	}
	defer body.Close()

	if md.Size > 0 {
		expectSize = md.Size
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	var w io.Writer = f
	if c.Progress != nil {
		w = io.MultiWriter(f, &progressWriter{out: c.Progress, total: expectSize})
	}

	_, err = io.Copy(w, body)
	f.Close()
	if err != nil {
		os.Remove(tmp)
		return &FetchError{URL: imageURL, Err: err}
	}

	if c.Progress != nil {
		fmt.Fprintln(c.Progress)
	}

	// Disk-side failures stay plain wrapped errors; FetchError is
	// reserved for the transport.
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store %s: %w", dest, err)
	}
	return nil
}

func (c *Cache) lockFilename(filename string) (func(), error) {
	lockDir := filepath.Join(c.dir, ".locks")
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(filepath.Join(lockDir, filename+".lock"))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", filename, err)
	}
	return func() { fl.Unlock() }, nil
}

// Matches returns cached filenames matching the glob pattern, sorted by
// filepath.Glob order.
func (c *Cache) Matches(pattern string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(c.dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return names, nil
}

// DeriveFilename picks the canonical cache filename for an image.
// Precedence: Content-Disposition name, then the URL's last path segment
// when it carries an extension, then a hash-derived fallback.
func DeriveFilename(md Metadata, imageURL string) string {
	if md.Filename != "" {
		return filepath.Base(md.Filename)
	}

	if u, err := url.Parse(imageURL); err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" && strings.Contains(base, ".") {
			return base
		}
	}

	h := fnv.New32a()
	h.Write([]byte(imageURL))
	return fmt.Sprintf("image_%04d.qcow2", h.Sum32()%10000)
}

// progressWriter prints a single self-overwriting progress line.
type progressWriter struct {
	out     io.Writer
	total   int64
	written int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 {
		percent := float64(p.written) / float64(p.total) * 100
		fmt.Fprintf(p.out, "\rProgress: %.1f%% (%s / %s)", percent,
			humanize.Bytes(uint64(p.written)), humanize.Bytes(uint64(p.total)))
	} else {
		fmt.Fprintf(p.out, "\rDownloaded %s", humanize.Bytes(uint64(p.written)))
	}
	return len(b), nil
}
