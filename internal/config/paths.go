// Package config provides configuration and filesystem namespaces for cloudvm.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// appDir is the per-application subdirectory under the XDG base directories.
const appDir = "cloudvm"

// Paths holds the filesystem namespaces the manager works in.
type Paths struct {
	// CacheDir holds immutable base images, one file per image.
	// Linux: ~/.cache/cloudvm (or XDG_CACHE_HOME).
	CacheDir string

	// DataDir holds per-instance overlays and seed directories.
	// Linux: ~/.local/share/cloudvm (or XDG_DATA_HOME).
	DataDir string

	// ConfigDir holds config.yaml and the optional catalog.yaml.
	ConfigDir string

	// RunDir holds per-instance monitor sockets. Shared temp location
	// so out-of-band tools can find them by name.
	RunDir string
}

// GetPaths resolves the cache/data/config namespaces from the XDG
// base directory conventions.
func GetPaths() *Paths {
	return &Paths{
		CacheDir:  filepath.Join(xdg.CacheHome, appDir),
		DataDir:   filepath.Join(xdg.DataHome, appDir),
		ConfigDir: filepath.Join(xdg.ConfigHome, appDir),
		RunDir:    os.TempDir(),
	}
}

// EnsureDirectories creates the cache, data and config namespaces if missing.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.CacheDir, p.DataDir, p.ConfigDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// MonitorSocketPath returns the monitor socket path for an instance name.
// The socket is owned by the hypervisor process for its lifetime; the
// manager only probes it for existence.
func (p *Paths) MonitorSocketPath(name string) string {
	return filepath.Join(p.RunDir, "cloudvm-monitor-"+name+".sock")
}

// SessionDBPath returns the path of the session metadata store.
func (p *Paths) SessionDBPath() string {
	return filepath.Join(p.DataDir, "sessions.db")
}

// CatalogFile returns the path of the optional catalog override file.
func (p *Paths) CatalogFile() string {
	return filepath.Join(p.ConfigDir, "catalog.yaml")
}
