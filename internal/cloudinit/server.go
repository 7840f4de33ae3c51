package cloudinit

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// Session is a started seed endpoint: an HTTP server process bound to a
// host-local port, serving the documents in Dir. Its process is
// independent of the hypervisor and must be stopped separately.
type Session struct {
	Port int
	PID  int
	Dir  string
}

// NoPortAvailableError is returned when the whole seed port range is
// exhausted.
type NoPortAvailableError struct {
	Min, Max int
}

func (e *NoPortAvailableError) Error() string {
	return fmt.Sprintf("no free port in range %d-%d", e.Min, e.Max)
}

// Start writes the seed documents for an instance into dir and spawns
// the seed server as a detached background process, re-executing the
// manager binary's hidden serve command. The endpoint binds loopback;
// the hypervisor's NAT gateway makes it reachable from inside the
// guest.
func Start(instanceName, hostname, dir string, keys []string, portMin, portMax int) (*Session, error) {
	if err := WriteDocs(dir, instanceName, hostname, keys); err != nil {
		return nil, err
	}

	port, err := findFreePort(portMin, portMax)
	if err != nil {
		return nil, err
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	cmd := exec.Command(self, "serve-seed",
		"--dir", dir,
		"--port", strconv.Itoa(port))
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	// The server must outlive this invocation; the guest fetches the
	// seed well after the manager has exited.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start seed server: %w", err)
	}

	return &Session{Port: port, PID: cmd.Process.Pid, Dir: dir}, nil
}

// findFreePort scans the range from the low bound upward and returns
// the first port that accepts a loopback bind.
func findFreePort(min, max int) (int, error) {
	for port := min; port <= max; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			continue
		}
		l.Close()
		return port, nil
	}
	return 0, &NoPortAvailableError{Min: min, Max: max}
}
