package instance

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ProvisionError wraps an overlay copy failure. No partial overlay is
// left behind when it is returned.
type ProvisionError struct {
	Name string
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision %s: %v", e.Name, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Materialize creates the instance's writable overlay disk as a full
// copy of the cached base image and returns its path plus the computed
// instance name. An existing overlay is returned unchanged, so
// re-running with the same hostname costs nothing. A stale overlay is
// never refreshed from a newer base image either.
//
// The copy goes to a temp name with a final rename, so the overlay is
// atomic-or-absent from the caller's view.
func Materialize(cachedImage, distro, arch, hostname, dataDir string) (string, string, error) {
	name := Name(distro, arch, hostname)
	overlay := filepath.Join(dataDir, OverlayFilename(name))

	if _, err := os.Stat(overlay); err == nil {
		return overlay, name, nil
	}

	if err := copyFile(cachedImage, overlay); err != nil {
		return "", "", &ProvisionError{Name: name, Err: err}
	}

	return overlay, name, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dst)
}
