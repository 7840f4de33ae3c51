package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/javanstorm/cloudvm/internal/catalog"
	"github.com/javanstorm/cloudvm/internal/cloudinit"
	"github.com/javanstorm/cloudvm/internal/config"
	"github.com/javanstorm/cloudvm/internal/image"
	"github.com/javanstorm/cloudvm/internal/instance"
	"github.com/javanstorm/cloudvm/internal/state"
	"github.com/javanstorm/cloudvm/pkg/hypervisor"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <distro> [arch] [hostname]",
	Short: "Download, provision and boot a VM",
	Long: `Run a VM from a cloud image. The base image is downloaded to the
cache on first use; subsequent runs reuse it. Each (distro, arch,
hostname) triple owns one writable disk copy, so re-running with the
same hostname boots the same VM.

Examples:
  cloudvm run debian                  # default arch, generated hostname
  cloudvm run fedora arm64            # fedora on arm64
  cloudvm run debian amd64 localvm01  # fixed hostname`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Global
	paths := config.GetPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	distro := args[0]
	arch := cfg.DefaultArch
	if len(args) > 1 {
		arch = args[1]
	}
	hostname := instance.RandomHostname()
	if len(args) > 2 {
		hostname = args[2]
	}

	cat, err := catalog.Load(paths.CatalogFile())
	if err != nil {
		return err
	}
	src, err := cat.Lookup(distro, arch)
	if err != nil {
		return err
	}

	fmt.Printf("Distro: %s (%s), hostname: %s\n", distro, arch, hostname)
	fmt.Printf("Image URL: %s\n", src.URLs[0])

	ctx := context.Background()
	cache := image.NewCache(paths.CacheDir, image.NewHTTPFetcher())
	cachedImage, err := cache.EnsureCached(ctx, src.URLs[0])
	if err != nil {
		return err
	}
	fmt.Printf("Cached image: %s\n", cachedImage)

	name := instance.Name(distro, arch, hostname)
	return instance.WithLock(paths.DataDir, name, func() error {
		return launchInstance(cfg, paths, cachedImage, distro, arch, hostname)
	})
}

// launchInstance runs the provision → seed → launch pipeline under the
// instance lock. Any error aborts the remaining steps; the operator
// re-invokes run to retry.
func launchInstance(cfg *config.Config, paths *config.Paths, cachedImage, distro, arch, hostname string) error {
	overlay, name, err := instance.Materialize(cachedImage, distro, arch, hostname, paths.DataDir)
	if err != nil {
		return err
	}
	fmt.Printf("Overlay disk: %s\n", overlay)

	seed := startSeed(cfg, paths, name, hostname)

	spec := &hypervisor.LaunchSpec{
		Arch:          arch,
		Name:          name,
		DiskPath:      overlay,
		MemoryMB:      cfg.MemoryMB,
		CPUs:          cfg.CPUs,
		SSHPort:       hypervisor.PickSSHPort(cfg.SSHPortMin, cfg.SSHPortMax),
		MonitorSocket: paths.MonitorSocketPath(name),
	}
	if seed != nil {
		spec.SeedURL = fmt.Sprintf("http://%s:%d/", hypervisor.GatewayIP, seed.Port)
	}

	stderrPath := filepath.Join(paths.DataDir, instance.LogFilename(name))
	result, err := hypervisor.Launch(spec, stderrPath)
	if err != nil {
		return err
	}

	recordSession(paths, name, result, seed)

	fmt.Printf("\nVM %q started (PID %d).\n", name, result.PID)
	fmt.Println("Connection methods:")
	fmt.Printf("  SSH (once booted):  ssh -p %d %s@localhost\n", result.SSHPort, cloudinit.AdminUser)
	fmt.Printf("  Monitor:            socat - UNIX-CONNECT:%s\n", spec.MonitorSocket)
	fmt.Printf("  Status:             cloudvm ps\n")
	fmt.Printf("  Stop and remove:    cloudvm rm %s\n", name)
	return nil
}

// startSeed brings up the cloud-init endpoint. Both failure modes are
// degraded, not fatal: the VM boots without automated provisioning.
func startSeed(cfg *config.Config, paths *config.Paths, name, hostname string) *cloudinit.Session {
	keys, err := cloudinit.CollectKeys()
	if err != nil || len(keys) == 0 {
		fmt.Fprintf(os.Stderr, "Warning: no SSH public keys found in ~/.ssh; VM boots without key injection\n")
	}

	dir := filepath.Join(paths.DataDir, instance.SeedDirname(name))
	seed, err := cloudinit.Start(name, hostname, dir, keys, cfg.SeedPortMin, cfg.SeedPortMax)
	if err != nil {
		var noPort *cloudinit.NoPortAvailableError
		if errors.As(err, &noPort) {
			fmt.Fprintf(os.Stderr, "Warning: %v; launching without cloud-init\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: cloud-init seed failed (%v); launching without it\n", err)
		}
		return nil
	}

	fmt.Printf("Cloud-init seed: http://127.0.0.1:%d/ (PID %d)\n", seed.Port, seed.PID)
	return seed
}

// recordSession persists the typed launch record. Failure is
// non-critical: state queries fall back to socket and process-table
// evidence.
func recordSession(paths *config.Paths, name string, result *hypervisor.Result, seed *cloudinit.Session) {
	store, err := state.OpenStore(paths.SessionDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: record session: %v\n", err)
		return
	}
	defer store.Close()

	sess := &state.Session{
		Name:       name,
		PID:        result.PID,
		SSHPort:    result.SSHPort,
		SocketPath: paths.MonitorSocketPath(name),
		StartedAt:  time.Now(),
	}
	if seed != nil {
		sess.SeedPID = seed.PID
		sess.SeedPort = seed.Port
		sess.SeedDir = seed.Dir
	}
	if err := store.Put(sess); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: record session: %v\n", err)
	}
}
