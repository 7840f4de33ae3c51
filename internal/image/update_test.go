package image

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/javanstorm/cloudvm/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCatalog builds a single-entry catalog pointing at a fake source.
func testCatalog(t *testing.T, pattern string) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `images:
  testos:
    amd64:
      urls: ["https://example.com/testos.qcow2"]
      pattern: "` + pattern + `"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	cat, err := catalog.Load(path)
	require.NoError(t, err)
	return cat
}

func writeCached(t *testing.T, dir, name string, size int, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	if !modTime.IsZero() {
		require.NoError(t, os.Chtimes(path, modTime, modTime))
	}
}

func findCandidate(t *testing.T, cands []UpdateCandidate, distro string) UpdateCandidate {
	t.Helper()
	for _, c := range cands {
		if c.Distro == distro {
			return c
		}
	}
	t.Fatalf("no candidate for %s in %v", distro, cands)
	return UpdateCandidate{}
}

func TestCheckSkipsUncached(t *testing.T) {
	cacheDir := t.TempDir()
	fetcher := &fakeFetcher{md: Metadata{Filename: "testos.qcow2", Size: 100}}
	cache := NewCache(cacheDir, fetcher)
	checker := NewChecker(cache, testCatalog(t, "testos*.qcow2"), fetcher)

	cands, err := checker.Check(context.Background())
	require.NoError(t, err)

	// Nothing cached for testos; the built-in entries have no cached
	// files either, so no probes and no candidates.
	for _, c := range cands {
		assert.NotEqual(t, "testos", c.Distro)
	}
	assert.Zero(t, fetcher.probeCalls, "uncached entries must not be probed")
}

func TestCheckSkipsSourceWithoutURLs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `images:
  testos:
    amd64:
      urls: []
      pattern: "testos*.qcow2"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	cat, err := catalog.Load(path)
	require.NoError(t, err)

	// A cached file matches the pattern, but there is no URL to probe.
	cacheDir := t.TempDir()
	writeCached(t, cacheDir, "testos.qcow2", 100, time.Time{})

	fetcher := &fakeFetcher{}
	cache := NewCache(cacheDir, fetcher)
	checker := NewChecker(cache, cat, fetcher)

	cands, err := checker.Check(context.Background())
	require.NoError(t, err)
	for _, c := range cands {
		assert.NotEqual(t, "testos", c.Distro)
	}
	assert.Zero(t, fetcher.probeCalls)
}

func TestCheckUpdatedSameName(t *testing.T) {
	cacheDir := t.TempDir()
	writeCached(t, cacheDir, "testos.qcow2", 100, time.Time{})

	fetcher := &fakeFetcher{md: Metadata{Filename: "testos.qcow2", Size: 150}}
	cache := NewCache(cacheDir, fetcher)
	checker := NewChecker(cache, testCatalog(t, "testos*.qcow2"), fetcher)

	cands, err := checker.Check(context.Background())
	require.NoError(t, err)

	cand := findCandidate(t, cands, "testos")
	assert.Equal(t, UpdatedSameName, cand.Outcome)
	assert.Equal(t, []string{"testos.qcow2"}, cand.Stale)
	assert.Equal(t, int64(100), cand.LocalSize)
	assert.Equal(t, int64(150), cand.RemoteSize)
}

func TestCheckSuperseded(t *testing.T) {
	cacheDir := t.TempDir()
	writeCached(t, cacheDir, "testos-old.qcow2", 100, time.Time{})

	fetcher := &fakeFetcher{md: Metadata{Filename: "testos-new.qcow2", Size: 100}}
	cache := NewCache(cacheDir, fetcher)
	checker := NewChecker(cache, testCatalog(t, "testos-*.qcow2"), fetcher)

	cands, err := checker.Check(context.Background())
	require.NoError(t, err)

	cand := findCandidate(t, cands, "testos")
	assert.Equal(t, Superseded, cand.Outcome)
	assert.Equal(t, "testos-new.qcow2", cand.Filename)
	assert.Equal(t, []string{"testos-old.qcow2"}, cand.Stale, "old file listed for removal")
}

func TestCheckUpToDate(t *testing.T) {
	cacheDir := t.TempDir()
	local := time.Now()
	writeCached(t, cacheDir, "testos.qcow2", 100, local)

	// Same size, remote not newer than local.
	fetcher := &fakeFetcher{md: Metadata{
		Filename:     "testos.qcow2",
		Size:         100,
		LastModified: local.Add(-time.Hour),
	}}
	cache := NewCache(cacheDir, fetcher)
	checker := NewChecker(cache, testCatalog(t, "testos*.qcow2"), fetcher)

	cands, err := checker.Check(context.Background())
	require.NoError(t, err)

	cand := findCandidate(t, cands, "testos")
	assert.Equal(t, UpToDate, cand.Outcome)
	assert.Empty(t, cand.Stale)
}

func TestCheckNewerModTime(t *testing.T) {
	cacheDir := t.TempDir()
	local := time.Now().Add(-24 * time.Hour)
	writeCached(t, cacheDir, "testos.qcow2", 100, local)

	fetcher := &fakeFetcher{md: Metadata{
		Filename:     "testos.qcow2",
		Size:         100,
		LastModified: time.Now(),
	}}
	cache := NewCache(cacheDir, fetcher)
	checker := NewChecker(cache, testCatalog(t, "testos*.qcow2"), fetcher)

	cands, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UpdatedSameName, findCandidate(t, cands, "testos").Outcome)
}

func TestApplyRemovesStaleAndRefetches(t *testing.T) {
	cacheDir := t.TempDir()
	writeCached(t, cacheDir, "testos-old.qcow2", 100, time.Time{})

	fetcher := &fakeFetcher{
		md:      Metadata{Filename: "testos-new.qcow2"},
		content: "new-bytes",
	}
	cache := NewCache(cacheDir, fetcher)
	cache.Progress = nil
	checker := NewChecker(cache, testCatalog(t, "testos-*.qcow2"), fetcher)

	cand := UpdateCandidate{
		Distro:   "testos",
		Arch:     "amd64",
		URL:      "https://example.com/testos.qcow2",
		Filename: "testos-new.qcow2",
		Outcome:  Superseded,
		Stale:    []string{"testos-old.qcow2"},
	}
	require.NoError(t, checker.Apply(context.Background(), cand))

	assert.NoFileExists(t, filepath.Join(cacheDir, "testos-old.qcow2"))
	assert.FileExists(t, filepath.Join(cacheDir, "testos-new.qcow2"))
}

func TestApplyUpToDateNoOp(t *testing.T) {
	cacheDir := t.TempDir()
	writeCached(t, cacheDir, "testos.qcow2", 100, time.Time{})

	fetcher := &fakeFetcher{md: Metadata{Filename: "testos.qcow2", Size: 100}}
	cache := NewCache(cacheDir, fetcher)
	checker := NewChecker(cache, testCatalog(t, "testos*.qcow2"), fetcher)

	require.NoError(t, checker.Apply(context.Background(), UpdateCandidate{Outcome: UpToDate}))
	assert.Zero(t, fetcher.fetchCalls)
	assert.FileExists(t, filepath.Join(cacheDir, "testos.qcow2"))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "up-to-date", UpToDate.String())
	assert.Equal(t, "updated", UpdatedSameName.String())
	assert.Equal(t, "superseded", Superseded.String())
}
