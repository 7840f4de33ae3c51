package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/javanstorm/cloudvm/internal/config"
	"github.com/javanstorm/cloudvm/internal/state"
	"github.com/spf13/cobra"
)

var psCmd = &cobra.Command{
	Use:     "ps",
	Aliases: []string{"ls"},
	Short:   "List VMs and their run state",
	Long: `List all instances found in the data directory. Run state is derived
on the spot from the monitor socket and the process table; nothing is
cached between invocations.`,
	Args: cobra.NoArgs,
	RunE: runPS,
}

func runPS(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()

	store, err := state.OpenStore(paths.SessionDBPath())
	if err != nil {
		// Degrade to socket + process-table evidence only.
		fmt.Fprintf(os.Stderr, "Warning: session store unavailable: %v\n", err)
		store = nil
	} else {
		defer store.Close()
	}

	inspector := state.NewInspector(paths.DataDir, paths.MonitorSocketPath, state.OSProcessTable{}, store)
	statuses, err := inspector.ListInstances()
	if err != nil {
		return err
	}

	if len(statuses) == 0 {
		fmt.Println("No VMs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tPID\tSSH PORT")
	for _, s := range statuses {
		stateStr, pid, port := "stopped", "-", "-"
		if s.Running {
			stateStr = "running"
			pid = fmt.Sprintf("%d", s.PID)
			if s.SSHPort > 0 {
				port = fmt.Sprintf("%d", s.SSHPort)
			} else {
				port = "?"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, stateStr, pid, port)
	}
	return w.Flush()
}
