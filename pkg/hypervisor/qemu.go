// Package hypervisor launches and supervises QEMU as an opaque
// subprocess: an argument vector in, a pid and port bindings out.
package hypervisor

import (
	"fmt"
	"math/rand"
)

// GatewayIP is the address QEMU's user-mode NAT exposes the host's
// loopback on inside the guest.
const GatewayIP = "10.0.2.2"

// qemuBinaries maps instance architectures to emulator executables.
var qemuBinaries = map[string]string{
	"amd64": "qemu-system-x86_64",
	"arm64": "qemu-system-aarch64",
	"i386":  "qemu-system-i386",
}

// kvmArches are architectures where KVM acceleration is requested.
// QEMU degrades to TCG on hosts without /dev/kvm.
var kvmArches = map[string]bool{
	"amd64": true,
	"i386":  true,
}

// LaunchSpec describes one VM launch.
type LaunchSpec struct {
	// Arch selects the emulator binary and machine tuning.
	Arch string

	// Name is the instance name, embedded in the invocation so the
	// state inspector can find the process again.
	Name string

	// DiskPath is the per-instance overlay disk (qcow2).
	DiskPath string

	// MemoryMB and CPUs are the fixed resource allotment.
	MemoryMB int
	CPUs     int

	// SSHPort is the host-side forwarded port for guest SSH.
	SSHPort int

	// MonitorSocket is the unix control socket path, owned by the
	// child process for its lifetime.
	MonitorSocket string

	// SeedURL, when set, is embedded as an SMBIOS serial hint so the
	// guest's first-boot agent finds its NoCloud datasource.
	SeedURL string
}

// Validate performs basic validation of the spec.
func (s *LaunchSpec) Validate() error {
	if s.CPUs < 1 {
		return ErrInvalidCPUCount
	}
	if s.MemoryMB < 128 {
		return ErrInsufficientMemory
	}
	if s.DiskPath == "" {
		return ErrMissingDisk
	}
	if s.Name == "" {
		return ErrMissingName
	}
	return nil
}

// Binary returns the emulator executable for the spec's architecture.
// Unknown architectures fall back to the amd64 emulator.
func (s *LaunchSpec) Binary() string {
	if bin, ok := qemuBinaries[s.Arch]; ok {
		return bin
	}
	return qemuBinaries["amd64"]
}

// Args builds the QEMU argument vector for the spec.
func (s *LaunchSpec) Args() []string {
	args := []string{
		"-m", fmt.Sprintf("%d", s.MemoryMB),
		"-smp", fmt.Sprintf("%d", s.CPUs),
		"-drive", fmt.Sprintf("file=%s,format=qcow2", s.DiskPath),
		"-netdev", fmt.Sprintf("user,id=net0,hostfwd=tcp::%d-:22", s.SSHPort),
		"-device", "virtio-net-pci,netdev=net0",
		"-nographic",
		"-name", s.Name,
		"-monitor", fmt.Sprintf("unix:%s,server,nowait", s.MonitorSocket),
		"-serial", "stdio",
	}

	if s.SeedURL != "" {
		args = append(args, "-smbios", fmt.Sprintf("type=1,serial=ds=nocloud;s=%s", s.SeedURL))
	}

	if kvmArches[s.Arch] {
		args = append(args, "-enable-kvm")
	}

	if s.Arch == "arm64" {
		args = append(args, "-machine", "virt", "-cpu", "cortex-a72")
	}

	return args
}

// PickSSHPort draws a uniformly random port from [min, max]. Random
// choice keeps collision probability low across concurrently launched
// instances; there is no collision detection.
func PickSSHPort(min, max int) int {
	return min + rand.Intn(max-min+1)
}
