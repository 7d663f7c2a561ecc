package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/element-crawler/internal/crawler"
	"github.com/JakeFAU/element-crawler/internal/storage/local"
)

// newVisitCmd creates the 'visit' subcommand, a single-page debug run.
func newVisitCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "visit <url>",
		Short: "Processes a single URL and writes its annotated screenshot",
		Long: `Runs the full pipeline for one URL with element boxes drawn onto the
screenshot. Records go to <out>/0_out.jsonl and the image to <out>/0_images.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := e.cfg
			if !cmd.Flags().Changed("draw-boxes") {
				cfg.Capture.DrawBoxes = true
			}
			cfg.Crawl.RestartInterval = 0

			if err := os.MkdirAll(outDir, 0o750); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			w, err := newWorker(0, cfg, nil, e.logger)
			if err != nil {
				return err
			}
			block := crawler.WorkerBlock{URLs: args, Paths: local.BlockPaths(outDir, 0)}
			if err := w.Run(cmd.Context(), block); err != nil {
				return err
			}
			if w.Stats().Failed > 0 {
				return fmt.Errorf("visit %s failed, see log", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), block.Paths.OutputFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "./visit", "output directory")
	addCaptureFlags(cmd)
	return cmd
}
