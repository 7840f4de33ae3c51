// Package catalog maps (distribution, architecture) pairs to cloud image sources.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Source describes where a base image for one (distro, arch) pair comes from.
type Source struct {
	// URLs are candidate download locations, first one authoritative.
	// The remainder are reserved for mirror fallback.
	URLs []string `yaml:"urls"`

	// Pattern is a filename glob matching cached files that belong to
	// this source. Used by the update checker to find local candidates.
	Pattern string `yaml:"pattern"`
}

// Catalog is the process-wide mapping of distributions to image sources.
// Immutable after Load.
type Catalog struct {
	images map[string]map[string]Source
}

// defaults returns the built-in catalog.
func defaults() map[string]map[string]Source {
	return map[string]map[string]Source{
		"arch": {
			// Basic image with ssh running and user:pw arch:arch.
			"amd64": {
				URLs:    []string{"https://gitlab.archlinux.org/archlinux/arch-boxes/-/package_files/10674/download"},
				Pattern: "Arch-Linux-x86_64-cloudimg*.qcow2",
			},
		},
		"fedora": {
			"amd64": {
				URLs:    []string{"https://download.fedoraproject.org/pub/fedora/linux/releases/43/Cloud/x86_64/images/Fedora-Cloud-Base-Generic-43-1.6.x86_64.qcow2"},
				Pattern: "Fedora-Cloud-Base-*.x86_64.qcow2",
			},
			"arm64": {
				URLs:    []string{"https://download.fedoraproject.org/pub/fedora/linux/releases/43/Cloud/aarch64/images/Fedora-Cloud-Base-Generic-43-1.6.aarch64.qcow2"},
				Pattern: "Fedora-Cloud-Base-*.aarch64.qcow2",
			},
		},
		"debian": {
			"amd64": {
				URLs:    []string{"https://cloud.debian.org/images/cloud/sid/daily/latest/debian-sid-nocloud-amd64-daily.qcow2"},
				Pattern: "debian-*-amd64-*.qcow2",
			},
			"arm64": {
				URLs:    []string{"https://cloud.debian.org/images/cloud/sid/daily/latest/debian-sid-nocloud-arm64-daily.qcow2"},
				Pattern: "debian-*-arm64-*.qcow2",
			},
		},
	}
}

// catalogFile is the on-disk override format.
type catalogFile struct {
	Images map[string]map[string]Source `yaml:"images"`
}

// Load builds the catalog from built-in defaults, merged with the YAML
// file at path if it exists. File entries replace defaults per
// (distro, arch) pair; unknown pairs in the file add new entries.
func Load(path string) (*Catalog, error) {
	c := &Catalog{images: defaults()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	for distro, arches := range file.Images {
		if c.images[distro] == nil {
			c.images[distro] = make(map[string]Source)
		}
		for arch, src := range arches {
			c.images[distro][arch] = src
		}
	}

	return c, nil
}

// Lookup returns the source for a (distro, arch) pair.
func (c *Catalog) Lookup(distro, arch string) (Source, error) {
	arches, ok := c.images[distro]
	if !ok {
		return Source{}, &UnknownImageError{Distro: distro, Available: c.Distros()}
	}
	src, ok := arches[arch]
	if !ok || len(src.URLs) == 0 {
		return Source{}, &UnknownImageError{Distro: distro, Arch: arch, Available: c.Arches(distro)}
	}
	return src, nil
}

// Distros returns all known distribution names, sorted.
func (c *Catalog) Distros() []string {
	names := make([]string, 0, len(c.images))
	for name := range c.images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Arches returns the architectures known for a distribution, sorted.
func (c *Catalog) Arches(distro string) []string {
	arches := make([]string, 0, len(c.images[distro]))
	for arch := range c.images[distro] {
		arches = append(arches, arch)
	}
	sort.Strings(arches)
	return arches
}

// Entries calls fn for every (distro, arch, source) triple in
// deterministic order.
func (c *Catalog) Entries(fn func(distro, arch string, src Source)) {
	for _, distro := range c.Distros() {
		for _, arch := range c.Arches(distro) {
			fn(distro, arch, c.images[distro][arch])
		}
	}
}

// UnknownImageError is returned when a (distro, arch) pair is not in the
// catalog. Arch is empty when the distribution itself is unknown.
type UnknownImageError struct {
	Distro    string
	Arch      string
	Available []string
}

func (e *UnknownImageError) Error() string {
	if e.Arch == "" {
		return fmt.Sprintf("unknown distribution %q, available: %v", e.Distro, e.Available)
	}
	return fmt.Sprintf("architecture %q not available for %s, available: %v", e.Arch, e.Distro, e.Available)
}
