package hypervisor

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

// probeDelay is how long Launch watches the child before declaring it
// alive. The only feedback channel is the exit code and diagnostic
// stream, so a process that survives its first moments counts as up.
const probeDelay = 1500 * time.Millisecond

// Result describes a successfully launched hypervisor process.
type Result struct {
	PID     int
	SSHPort int
}

// Launch resolves the emulator binary, starts it detached from the
// calling process, and probes that it survived startup. The child owns
// the monitor socket and console from here on; stopping it is a later,
// separate operation.
//
// stderrPath receives the child's diagnostic stream; on LaunchFailed
// its tail is surfaced in the error.
func Launch(spec *LaunchSpec, stderrPath string) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	binary := spec.Binary()
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, &BinaryNotFoundError{Binary: binary}
	}

	stderr, err := os.Create(stderrPath)
	if err != nil {
		return nil, err
	}
	defer stderr.Close()

	cmd := exec.Command(path, spec.Args()...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = stderr
	// New session: the VM must outlive the invoking command and
	// ignore its terminal signals.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchFailedError{Name: spec.Name, Err: err}
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	select {
	case waitErr := <-exited:
		return nil, &LaunchFailedError{
			Name:   spec.Name,
			Output: tailFile(stderrPath, 2048),
			Err:    waitErr,
		}
	case <-time.After(probeDelay):
	}

	return &Result{PID: cmd.Process.Pid, SSHPort: spec.SSHPort}, nil
}

// tailFile returns up to limit trailing bytes of the file at path.
func tailFile(path string, limit int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	if info.Size() > limit {
		f.Seek(info.Size()-limit, 0)
	}

	buf := make([]byte, limit)
	n, _ := f.Read(buf)
	return string(buf[:n])
}
