package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/javanstorm/cloudvm/internal/catalog"
	"github.com/javanstorm/cloudvm/internal/config"
	"github.com/javanstorm/cloudvm/internal/image"
	"github.com/spf13/cobra"
)

var updateDownload bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check cached base images against their remote sources",
	Long: `Compare every cached base image against the remote metadata of its
catalog source. Only images the operator has actually used (present in
the cache) are checked; nothing is fetched proactively.

With --download, stale files are removed and replacements fetched.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateDownload, "download", false, "apply updates: remove stale files and re-fetch")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg := config.Global
	paths := config.GetPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	cat, err := catalog.Load(paths.CatalogFile())
	if err != nil {
		return err
	}

	fetcher := image.NewHTTPFetcher()
	cache := image.NewCache(paths.CacheDir, fetcher)
	checker := image.NewChecker(cache, cat, fetcher)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.MetadataTimeout)
	candidates, err := checker.Check(ctx)
	cancel()
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		fmt.Println("No cached images to check.")
		return nil
	}

	for _, cand := range candidates {
		switch cand.Outcome {
		case image.UpToDate:
			fmt.Printf("%s/%s: up-to-date (%s)\n", cand.Distro, cand.Arch, cand.Filename)
		case image.UpdatedSameName:
			fmt.Printf("%s/%s: update available for %s (local %s, remote %s)\n",
				cand.Distro, cand.Arch, cand.Filename,
				humanize.Bytes(uint64(cand.LocalSize)), humanize.Bytes(uint64(cand.RemoteSize)))
		case image.Superseded:
			fmt.Printf("%s/%s: new version %s supersedes %v\n",
				cand.Distro, cand.Arch, cand.Filename, cand.Stale)
		}

		if updateDownload && cand.Outcome != image.UpToDate {
			// The fetch itself is unbounded, like any first download.
			if err := checker.Apply(context.Background(), cand); err != nil {
				return err
			}
			fmt.Printf("%s/%s: updated\n", cand.Distro, cand.Arch)
		}
	}

	return nil
}
