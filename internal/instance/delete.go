package instance

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/javanstorm/cloudvm/internal/state"
)

// NotFoundError is returned when no artifacts exist for the named
// instance. Nothing has been mutated when it is returned.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("instance %q not found", e.Name)
}

// Controller stops running instances and removes their artifacts.
type Controller struct {
	DataDir    string
	SocketPath func(name string) string
	Inspector  *state.Inspector
	Store      *state.Store // nil when no session store is open
	Grace      time.Duration

	// Confirm asks the operator a yes/no question. Nil means read
	// from stdin.
	Confirm func(prompt string) bool

	// Out receives progress output. Nil means stdout.
	Out io.Writer

	// Kill sends a signal to a process. Nil means syscall.Kill.
	Kill func(pid int, sig syscall.Signal) error
}

// Delete stops the instance if running and removes its artifacts.
// Unless force is set, the operator is prompted before stopping and
// again before deleting. Each artifact removal is best-effort: the
// result is true only if the primary overlay came off disk.
func (c *Controller) Delete(name string, force bool) (bool, error) {
	if !c.Inspector.Exists(name) {
		return false, &NotFoundError{Name: name}
	}

	running, pid := c.Inspector.IsRunning(name)
	if running {
		if !force && !c.confirm(fmt.Sprintf("Instance %s is running (PID %d). Stop it? [y/N] ", name, pid)) {
			return false, nil
		}
		c.terminate(name, pid)
	}

	// The seed server is torn down with the artifacts: declining the
	// prompt must leave the instance untouched beyond the confirmed stop.
	if !force && !c.confirm(fmt.Sprintf("Delete artifacts of %s? [y/N] ", name)) {
		return false, nil
	}

	c.stopSeedServer(name)

	return c.removeArtifacts(name), nil
}

// terminate signals the hypervisor process: graceful first, then an
// unconditional kill if it survives the grace interval.
func (c *Controller) terminate(name string, pid int) {
	fmt.Fprintf(c.out(), "Stopping %s (PID %d)...\n", name, pid)
	c.kill(pid, syscall.SIGTERM)
	time.Sleep(c.Grace)

	if alive, pid := c.Inspector.IsRunning(name); alive {
		fmt.Fprintf(c.out(), "Still running, sending SIGKILL...\n")
		c.kill(pid, syscall.SIGKILL)
		time.Sleep(c.Grace)
	}
}

// stopSeedServer kills the instance's seed server if the session record
// knows one. Best-effort: the record may be gone or stale.
func (c *Controller) stopSeedServer(name string) {
	if c.Store == nil {
		return
	}
	sess, err := c.Store.Get(name)
	if err != nil || sess == nil || sess.SeedPID <= 0 {
		return
	}
	if state.PIDAlive(sess.SeedPID) {
		c.kill(sess.SeedPID, syscall.SIGTERM)
	}
}

// removeArtifacts deletes the overlay, seed directory, monitor socket,
// diagnostic log and session record. Failures on one artifact do not
// block the others; only the overlay determines the result.
func (c *Controller) removeArtifacts(name string) bool {
	overlayGone := true
	overlay := filepath.Join(c.DataDir, OverlayFilename(name))
	if err := os.Remove(overlay); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: remove %s: %v\n", overlay, err)
		overlayGone = false
	}

	seedDir := filepath.Join(c.DataDir, SeedDirname(name))
	if err := os.RemoveAll(seedDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: remove %s: %v\n", seedDir, err)
	}

	if err := os.Remove(c.SocketPath(name)); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: remove socket: %v\n", err)
	}

	logFile := filepath.Join(c.DataDir, LogFilename(name))
	if err := os.Remove(logFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: remove %s: %v\n", logFile, err)
	}

	if c.Store != nil {
		c.Store.Delete(name)
	}

	return overlayGone
}

func (c *Controller) confirm(prompt string) bool {
	if c.Confirm != nil {
		return c.Confirm(prompt)
	}
	fmt.Fprint(c.out(), prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}

func (c *Controller) kill(pid int, sig syscall.Signal) error {
	if c.Kill != nil {
		return c.Kill(pid, sig)
	}
	return syscall.Kill(pid, sig)
}

func (c *Controller) out() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}
