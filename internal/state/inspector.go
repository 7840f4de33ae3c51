package state

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// OverlayExt is the filename extension of per-instance overlay disks.
const OverlayExt = ".qcow2"

// hostfwdRe recovers the forwarded SSH port from a hypervisor
// invocation string. Best-effort: no match is a valid outcome.
var hostfwdRe = regexp.MustCompile(`hostfwd=tcp::(\d+)-:22`)

// InstanceStatus is one instance as derived from disk and process state.
type InstanceStatus struct {
	Name    string
	Running bool
	PID     int
	SSHPort int // 0 when unknown
}

// Inspector derives instance existence and liveness. All methods re-read
// the environment; nothing is cached between calls.
type Inspector struct {
	dataDir    string
	socketPath func(name string) string
	procs      ProcessTable
	store      *Store // nil skips the session-record fast path
}

// NewInspector creates an inspector over the data namespace. store may
// be nil, in which case only socket and process-table evidence is used.
func NewInspector(dataDir string, socketPath func(string) string, procs ProcessTable, store *Store) *Inspector {
	return &Inspector{dataDir: dataDir, socketPath: socketPath, procs: procs, store: store}
}

// ListInstances enumerates instances by scanning the data namespace for
// overlay files, then derives run state for each. Seed directories and
// the session database share the namespace but are not overlay files,
// so they never appear as instances.
func (i *Inspector) ListInstances() ([]InstanceStatus, error) {
	entries, err := os.ReadDir(i.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var statuses []InstanceStatus
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != OverlayExt {
			continue
		}
		name := strings.TrimSuffix(e.Name(), OverlayExt)

		status := InstanceStatus{Name: name}
		status.Running, status.PID = i.IsRunning(name)
		if status.Running {
			status.SSHPort = i.SSHPort(name)
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(a, b int) bool { return statuses[a].Name < statuses[b].Name })
	return statuses, nil
}

// Exists reports whether an overlay for name is present on disk.
func (i *Inspector) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(i.dataDir, name+OverlayExt))
	return err == nil
}

// IsRunning reports whether the instance's hypervisor process is alive,
// and its pid when it is. The session record is consulted first and
// back-verified against the process table; stale records are pruned.
// Without a usable record, the monitor socket is probed as a cheap
// pre-filter before the full process-table scan.
func (i *Inspector) IsRunning(name string) (bool, int) {
	if i.store != nil {
		if sess, err := i.store.Get(name); err == nil && sess != nil {
			if proc, ok := i.findProcess(sess.PID, name); ok {
				return true, proc.PID
			}
			// VM died or was killed out-of-band; drop the record.
			i.store.Delete(name)
		}
	}

	if _, err := os.Stat(i.socketPath(name)); err != nil {
		return false, 0
	}

	if proc, ok := i.scanFor(name); ok {
		return true, proc.PID
	}
	return false, 0
}

// SSHPort recovers the forwarded SSH port for a running instance, from
// the session record when fresh, otherwise by pattern-matching the live
// invocation string. Returns 0 when it cannot be determined.
func (i *Inspector) SSHPort(name string) int {
	if i.store != nil {
		if sess, err := i.store.Get(name); err == nil && sess != nil && sess.SSHPort > 0 {
			return sess.SSHPort
		}
	}

	proc, ok := i.scanFor(name)
	if !ok {
		return 0
	}
	m := hostfwdRe.FindStringSubmatch(proc.Command)
	if m == nil {
		return 0
	}
	port, _ := strconv.Atoi(m[1])
	return port
}

// findProcess checks that pid is alive and its invocation is the
// instance's hypervisor, guarding against pid reuse.
func (i *Inspector) findProcess(pid int, name string) (Process, bool) {
	procs, err := i.procs.Processes()
	if err != nil {
		// Degrade to a bare liveness check.
		if PIDAlive(pid) {
			return Process{PID: pid}, true
		}
		return Process{}, false
	}
	for _, p := range procs {
		if p.PID == pid && ownsInstance(p.Command, name) {
			return p, true
		}
	}
	return Process{}, false
}

// scanFor searches the process table for the instance's live
// hypervisor process.
func (i *Inspector) scanFor(name string) (Process, bool) {
	procs, err := i.procs.Processes()
	if err != nil {
		return Process{}, false
	}
	for _, p := range procs {
		if ownsInstance(p.Command, name) {
			return p, true
		}
	}
	return Process{}, false
}

// ownsInstance reports whether cmd is the hypervisor invocation for the
// named instance. Matching on the -name argument token keeps supporting
// processes whose argv merely embeds the name, like the seed server's
// --dir path, from being mistaken for the VM.
func ownsInstance(cmd, name string) bool {
	fields := strings.Fields(cmd)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "-name" && fields[i+1] == name {
			return true
		}
	}
	return false
}
