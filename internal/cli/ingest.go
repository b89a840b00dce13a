package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Build the persistent vector index from documents",
		Long:  "Clears the configured index and fills it from the given .txt/.md files, globs or directories.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}
	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, logger, closer, err := setup(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	if a.cfg.VectorStore.Type == "memory" {
		logger.Warn("the memory index is not persisted; configure sqlite, qdrant or pgvector to reuse it")
	}
	stats, err := a.ingest(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	fmt.Printf("indexed %d documents as %d chunks (dim %d, %s) into %s\n",
		stats.Documents, stats.Chunks, stats.Dimension, stats.Elapsed.Round(time.Millisecond), a.cfg.VectorStore.Type)
	if a.overview != "" {
		fmt.Println(a.overview)
	}
	return nil
}
