package cli

import (
	"github.com/javanstorm/cloudvm/internal/cloudinit"
	"github.com/spf13/cobra"
)

// serve-seed is the re-exec target for the background seed server. It
// is hidden: operators never run it directly.
var (
	serveSeedDir  string
	serveSeedPort int
)

var serveSeedCmd = &cobra.Command{
	Use:    "serve-seed",
	Hidden: true,
	Short:  "Serve a cloud-init seed directory over HTTP",
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cloudinit.Serve(serveSeedDir, serveSeedPort)
	},
}

func init() {
	serveSeedCmd.Flags().StringVar(&serveSeedDir, "dir", "", "seed directory to serve")
	serveSeedCmd.Flags().IntVar(&serveSeedPort, "port", 0, "port to bind on loopback")
	serveSeedCmd.MarkFlagRequired("dir")
	serveSeedCmd.MarkFlagRequired("port")
}
