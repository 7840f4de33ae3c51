package cli

import (
	"fmt"
	"os"

	"github.com/javanstorm/cloudvm/internal/config"
	"github.com/javanstorm/cloudvm/internal/instance"
	"github.com/javanstorm/cloudvm/internal/state"
	"github.com/spf13/cobra"
)

var rmForce bool

var rmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Stop a VM and remove its artifacts",
	Long: `Stop the named VM if it is running (graceful first, then forced) and
delete its overlay disk, cloud-init seed directory and monitor socket.
Prompts before stopping and before deleting unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runRM,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "skip confirmation prompts")
}

func runRM(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg := config.Global
	paths := config.GetPaths()

	store, err := state.OpenStore(paths.SessionDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: session store unavailable: %v\n", err)
		store = nil
	} else {
		defer store.Close()
	}

	ctrl := &instance.Controller{
		DataDir:    paths.DataDir,
		SocketPath: paths.MonitorSocketPath,
		Inspector:  state.NewInspector(paths.DataDir, paths.MonitorSocketPath, state.OSProcessTable{}, store),
		Store:      store,
		Grace:      cfg.GracePeriod,
	}

	var removed bool
	err = instance.WithLock(paths.DataDir, name, func() error {
		var err error
		removed, err = ctrl.Delete(name, rmForce)
		return err
	})
	if err != nil {
		return err
	}

	if removed {
		fmt.Printf("Removed %s.\n", name)
	} else {
		fmt.Println("Aborted.")
	}
	return nil
}
