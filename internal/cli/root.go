// Package cli provides the command-line interface for cloudvm.
package cli

import (
	"fmt"

	"github.com/javanstorm/cloudvm/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cloudvm",
	Short: "cloudvm - fast VM provisioning with cloud images",
	Long: `cloudvm provisions short-lived virtual machines from downloadable
cloud disk images. Base images are cached once, each VM gets its own
writable copy, and first-boot configuration (SSH keys, hostname) is
injected via cloud-init over a local seed endpoint.

There is no VM database: what exists and what is running is derived
from the filesystem and the process table on every invocation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "version", "completion", "serve-seed":
			return nil
		}
		return config.Load()
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(serveSeedCmd)
}
