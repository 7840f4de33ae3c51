package instance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// WithLock runs fn while holding the per-instance advisory lock.
// Create and destroy sequences take it so two invocations racing on the
// same name do not interleave; coordination beyond one host is out of
// scope.
func WithLock(dataDir, name string, fn func() error) error {
	lockDir := filepath.Join(dataDir, ".locks")
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(filepath.Join(lockDir, name+".lock"))
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("lock instance %s: %w", name, err)
	}
	defer fl.Unlock()

	return fn()
}
