package hypervisor

import (
	"errors"
	"fmt"
)

// Configuration errors
var (
	ErrInvalidCPUCount    = errors.New("hypervisor: CPU count must be at least 1")
	ErrInsufficientMemory = errors.New("hypervisor: memory must be at least 128MB")
	ErrMissingDisk        = errors.New("hypervisor: disk path is required")
	ErrMissingName        = errors.New("hypervisor: instance name is required")
)

// BinaryNotFoundError is returned when the architecture's emulator
// binary is not resolvable on PATH.
type BinaryNotFoundError struct {
	Binary string
}

func (e *BinaryNotFoundError) Error() string {
	return fmt.Sprintf("hypervisor: %s not found, install QEMU", e.Binary)
}

// LaunchFailedError is returned when the hypervisor process exited
// during the post-launch liveness probe. Output carries its captured
// diagnostic stream.
type LaunchFailedError struct {
	Name   string
	Output string
	Err    error
}

func (e *LaunchFailedError) Error() string {
	msg := fmt.Sprintf("hypervisor: %s exited at startup", e.Name)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *LaunchFailedError) Unwrap() error { return e.Err }
