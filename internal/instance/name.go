// Package instance materializes and destroys per-instance disk overlays.
//
// An instance's on-disk artifacts are the sole persistent record of its
// existence: one overlay disk, zero or one seed directory, and an
// ephemeral monitor socket owned by the hypervisor process.
package instance

import (
	"fmt"
	"math/rand"

	"github.com/javanstorm/cloudvm/internal/state"
)

// Name computes the composite instance name. It doubles as the -name
// argument of the hypervisor invocation, which is how the state
// inspector finds the process again.
func Name(distro, arch, hostname string) string {
	return distro + "-" + arch + "-" + hostname
}

// OverlayFilename returns the overlay disk filename for an instance.
func OverlayFilename(name string) string {
	return name + state.OverlayExt
}

// SeedDirname returns the seed directory name for an instance. The
// suffix keeps it distinguishable from overlay files in the shared
// data namespace.
func SeedDirname(name string) string {
	return name + "-seed"
}

// LogFilename returns the name of the file capturing the hypervisor's
// diagnostic stream for an instance.
func LogFilename(name string) string {
	return name + ".log"
}

// RandomHostname generates a hostname for runs where the operator
// omitted one.
func RandomHostname() string {
	return fmt.Sprintf("vm%04d", 1000+rand.Intn(9000))
}
