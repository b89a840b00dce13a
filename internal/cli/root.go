// Package cli implements the groundchat commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"groundchat/internal/config"
	"groundchat/internal/logging"
)

var (
	cfgPath string
	topK    int
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "groundchat",
	Short: "Chat with a document corpus, answering only from it",
	Long: "Ingests text documents into a vector index and answers questions strictly from the " +
		"retrieved passages, refusing when the documents do not contain the answer.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML config (default: ./config.yaml or ~/.config/groundchat/config.yaml)")
	RootCmd.PersistentFlags().IntVarP(&topK, "top-k", "k", 0, "Passages retrieved per question (overrides retrieval.top_k)")
}

func loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, err
	}
	if topK > 0 {
		cfg.Retrieval.TopK = topK
	}
	return cfg, nil
}

// setup loads configuration, the logger and the shared components.
// logFallback receives log output when no log file is configured. The
// returned closer releases the index and the log file.
func setup(cmd *cobra.Command, logFallback io.Writer) (*app, *log.Logger, io.Closer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, logCloser, err := logging.New(cfg.Log, logFallback)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("logger: %w", err)
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		logCloser.Close()
		return nil, nil, nil, fmt.Errorf("init: %w", err)
	}
	return a, logger, closers{a, logCloser}, nil
}

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// exitError carries a process exit code other than 1. Its message is
// printed as is.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return report(RootCmd.Execute(), os.Stderr)
}

func report(err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		fmt.Fprintln(w, ee.Error())
		return ee.code
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
