package hypervisor

import (
	"errors"
	"slices"
	"testing"
)

func validSpec() LaunchSpec {
	return LaunchSpec{
		Arch:          "amd64",
		Name:          "debian-amd64-vm1234",
		DiskPath:      "/data/debian-amd64-vm1234.qcow2",
		MemoryMB:      2048,
		CPUs:          2,
		SSHPort:       22345,
		MonitorSocket: "/tmp/cloudvm-monitor-debian-amd64-vm1234.sock",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*LaunchSpec)
		want   error
	}{
		{"valid", func(s *LaunchSpec) {}, nil},
		{"zero cpus", func(s *LaunchSpec) { s.CPUs = 0 }, ErrInvalidCPUCount},
		{"negative cpus", func(s *LaunchSpec) { s.CPUs = -1 }, ErrInvalidCPUCount},
		{"tiny memory", func(s *LaunchSpec) { s.MemoryMB = 64 }, ErrInsufficientMemory},
		{"no disk", func(s *LaunchSpec) { s.DiskPath = "" }, ErrMissingDisk},
		{"no name", func(s *LaunchSpec) { s.Name = "" }, ErrMissingName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)
			if err := spec.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBinary(t *testing.T) {
	tests := []struct {
		arch string
		want string
	}{
		{"amd64", "qemu-system-x86_64"},
		{"arm64", "qemu-system-aarch64"},
		{"i386", "qemu-system-i386"},
		{"riscv64", "qemu-system-x86_64"},
		{"", "qemu-system-x86_64"},
	}

	for _, tt := range tests {
		spec := LaunchSpec{Arch: tt.arch}
		if got := spec.Binary(); got != tt.want {
			t.Errorf("Binary(%q) = %q, want %q", tt.arch, got, tt.want)
		}
	}
}

// argValue returns the argument following flag, or "" when absent.
func argValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestArgs(t *testing.T) {
	spec := validSpec()
	args := spec.Args()

	if got := argValue(args, "-m"); got != "2048" {
		t.Errorf("-m = %q", got)
	}
	if got := argValue(args, "-smp"); got != "2" {
		t.Errorf("-smp = %q", got)
	}
	if got := argValue(args, "-drive"); got != "file=/data/debian-amd64-vm1234.qcow2,format=qcow2" {
		t.Errorf("-drive = %q", got)
	}
	if got := argValue(args, "-netdev"); got != "user,id=net0,hostfwd=tcp::22345-:22" {
		t.Errorf("-netdev = %q", got)
	}
	if got := argValue(args, "-name"); got != spec.Name {
		t.Errorf("-name = %q", got)
	}
	if got := argValue(args, "-monitor"); got != "unix:"+spec.MonitorSocket+",server,nowait" {
		t.Errorf("-monitor = %q", got)
	}
	if !slices.Contains(args, "-nographic") {
		t.Error("missing -nographic")
	}
	if got := argValue(args, "-serial"); got != "stdio" {
		t.Errorf("-serial = %q", got)
	}
}

func TestArgsSeedHint(t *testing.T) {
	spec := validSpec()
	if slices.Contains(spec.Args(), "-smbios") {
		t.Error("-smbios present without seed URL")
	}

	spec.SeedURL = "http://10.0.2.2:8100/"
	got := argValue(spec.Args(), "-smbios")
	want := "type=1,serial=ds=nocloud;s=http://10.0.2.2:8100/"
	if got != want {
		t.Errorf("-smbios = %q, want %q", got, want)
	}
}

func TestArgsAcceleration(t *testing.T) {
	spec := validSpec()
	if !slices.Contains(spec.Args(), "-enable-kvm") {
		t.Error("amd64 missing -enable-kvm")
	}

	spec.Arch = "arm64"
	args := spec.Args()
	if slices.Contains(args, "-enable-kvm") {
		t.Error("arm64 requests kvm")
	}
	if got := argValue(args, "-machine"); got != "virt" {
		t.Errorf("-machine = %q, want virt", got)
	}
	if got := argValue(args, "-cpu"); got != "cortex-a72" {
		t.Errorf("-cpu = %q, want cortex-a72", got)
	}
}

func TestArgsNameEmbedded(t *testing.T) {
	// The state inspector rediscovers processes by the -name argument
	// of the invocation.
	spec := validSpec()
	args := spec.Args()
	i := slices.Index(args, "-name")
	if i < 0 || i+1 >= len(args) || args[i+1] != spec.Name {
		t.Errorf("invocation does not carry -name %s: %v", spec.Name, args)
	}
}

func TestPickSSHPort(t *testing.T) {
	for i := 0; i < 100; i++ {
		port := PickSSHPort(22222, 22999)
		if port < 22222 || port > 22999 {
			t.Fatalf("port %d outside range", port)
		}
	}

	// A single-port range is degenerate but allowed.
	if port := PickSSHPort(22222, 22222); port != 22222 {
		t.Errorf("port = %d, want 22222", port)
	}
}
