package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/javanstorm/cloudvm/internal/catalog"
)

// Outcome classifies a cached image against its remote source.
type Outcome int

const (
	// UpToDate means size and modification time are consistent.
	UpToDate Outcome = iota
	// UpdatedSameName means the remote changed under an unchanged filename.
	UpdatedSameName
	// Superseded means the remote advertises a filename not cached yet;
	// the old cached file(s) are obsolete.
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case UpToDate:
		return "up-to-date"
	case UpdatedSameName:
		return "updated"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// UpdateCandidate is the result of comparing one catalog entry's cached
// file(s) against remote metadata. Stale lists local filenames that an
// apply pass removes before re-fetching.
type UpdateCandidate struct {
	Distro   string
	Arch     string
	URL      string
	Filename string // remote canonical filename
	Outcome  Outcome
	Stale    []string

	LocalSize  int64
	RemoteSize int64
}

// Checker compares cached base images against their catalog sources.
type Checker struct {
	cache   *Cache
	catalog *catalog.Catalog
	fetcher Fetcher
}

// NewChecker creates an update checker over an image cache.
func NewChecker(cache *Cache, cat *catalog.Catalog, fetcher Fetcher) *Checker {
	return &Checker{cache: cache, catalog: cat, fetcher: fetcher}
}

// Check probes remote metadata for every catalog entry that has at least
// one cached file matching the entry's filename pattern. Architectures
// the operator never used are skipped, never proactively fetched.
func (c *Checker) Check(ctx context.Context) ([]UpdateCandidate, error) {
	var candidates []UpdateCandidate
	var firstErr error

	c.catalog.Entries(func(distro, arch string, src catalog.Source) {
		// Override files can carry entries with no pattern or no URLs;
		// such sources cannot be checked.
		if firstErr != nil || src.Pattern == "" || len(src.URLs) == 0 {
			return
		}

		cached, err := c.cache.Matches(src.Pattern)
		if err != nil {
			firstErr = err
			return
		}
		if len(cached) == 0 {
			return
		}

		cand, err := c.classify(ctx, distro, arch, src.URLs[0], cached)
		if err != nil {
			firstErr = err
			return
		}
		candidates = append(candidates, cand)
	})

	return candidates, firstErr
}

func (c *Checker) classify(ctx context.Context, distro, arch, url string, cached []string) (UpdateCandidate, error) {
	md, err := c.fetcher.Probe(ctx, url)
	if err != nil {
		return UpdateCandidate{}, &FetchError{URL: url, Err: err}
	}

	remoteName := DeriveFilename(md, url)
	cand := UpdateCandidate{
		Distro:     distro,
		Arch:       arch,
		URL:        url,
		Filename:   remoteName,
		RemoteSize: md.Size,
	}

	local := ""
	for _, name := range cached {
		if name == remoteName {
			local = name
			break
		}
	}

	if local == "" {
		// New remote version coexisting with obsolete cached file(s).
		cand.Outcome = Superseded
		cand.Stale = cached
		return cand, nil
	}

	info, err := os.Stat(filepath.Join(c.cache.Dir(), local))
	if err != nil {
		return UpdateCandidate{}, fmt.Errorf("stat %s: %w", local, err)
	}
	cand.LocalSize = info.Size()

	if md.Size > 0 && md.Size != info.Size() {
		cand.Outcome = UpdatedSameName
		cand.Stale = []string{local}
		return cand, nil
	}
	if !md.LastModified.IsZero() && md.LastModified.After(info.ModTime()) {
		cand.Outcome = UpdatedSameName
		cand.Stale = []string{local}
		return cand, nil
	}

	cand.Outcome = UpToDate
	return cand, nil
}

// Apply removes the candidate's stale files and re-fetches through the
// cache's normal path. Calling it on an up-to-date candidate is a no-op.
func (c *Checker) Apply(ctx context.Context, cand UpdateCandidate) error {
	if cand.Outcome == UpToDate {
		return nil
	}

	for _, name := range cand.Stale {
		if err := os.Remove(filepath.Join(c.cache.Dir(), name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale %s: %w", name, err)
		}
	}

	_, err := c.cache.EnsureCached(ctx, cand.URL)
	return err
}
