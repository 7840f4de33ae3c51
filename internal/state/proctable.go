package state

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Process is one live process as seen by the OS.
type Process struct {
	PID     int
	Command string // full invocation string
}

// ProcessTable is the narrow oracle over the OS process listing, so the
// inspector can be tested against a fake table.
type ProcessTable interface {
	Processes() ([]Process, error)
}

// OSProcessTable reads the real process table: /proc where available,
// falling back to ps output elsewhere.
type OSProcessTable struct{}

func (OSProcessTable) Processes() ([]Process, error) {
	procs, err := readProcFS()
	if err == nil {
		return procs, nil
	}
	return readPS()
}

func readProcFS() ([]Process, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var procs []Process
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err != nil || len(data) == 0 {
			continue
		}
		cmd := strings.TrimRight(strings.ReplaceAll(string(data), "\x00", " "), " ")
		procs = append(procs, Process{PID: pid, Command: cmd})
	}
	return procs, nil
}

func readPS() ([]Process, error) {
	out, err := exec.Command("ps", "-axo", "pid=,args=").Output()
	if err != nil {
		return nil, fmt.Errorf("ps: %w", err)
	}

	var procs []Process
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pidStr, cmd, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}
		procs = append(procs, Process{PID: pid, Command: strings.TrimSpace(cmd)})
	}
	return procs, nil
}

// PIDAlive reports whether a process with the given pid exists.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
