package cmd

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/urls"
)

// newDedupeHostsCmd creates the 'dedupe-hosts' subcommand.
func newDedupeHostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe-hosts <cdx> [out]",
		Short: "Keeps one random CDX record per host",
		Long:  "Writes one uniformly chosen record per host of <cdx> to [out] (default <cdx>-unique).",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			in, out := args[0], args[0]+"-unique"
			if len(args) == 2 {
				out = args[1]
			}
			n, err := dedupeHosts(in, out, e.cfg.Crawl.Seed)
			if err != nil {
				return err
			}
			e.logger.Info("hosts deduplicated", zap.String("out", out), zap.Int("hosts", n))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().Int64("seed", 42, "sampling seed")
	bindFlag(cmd.Flags(), "seed", "crawl.seed")
	return cmd
}

func dedupeHosts(inPath, outPath string, seed int64) (n int, err error) {
	in, err := os.Open(inPath) //nolint:gosec // operator supplied path
	if err != nil {
		return 0, fmt.Errorf("open cdx: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(outPath) //nolint:gosec // operator supplied path
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output: %w", closeErr)
		}
	}()

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible sampling
	return urls.DistinctByHost(in, out, rng)
}
