package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"groundchat/internal/tui"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat [files...]",
		Short: "Open the interactive chat",
		Long: "Ingests the given .txt/.md files, globs or directories and opens a chat session. " +
			"Without files a persistent index built by 'groundchat ingest' is reused.",
		RunE: runChat,
	}
	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	// the TUI owns the terminal, so logs default to a file
	logFile, err := os.OpenFile(filepath.Join(os.TempDir(), "groundchat.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	var fallback io.Writer = io.Discard
	if err == nil {
		defer logFile.Close()
		fallback = logFile
	}

	a, logger, closer, err := setup(cmd, fallback)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	header, err := a.prepare(ctx, args)
	if err != nil {
		return fmt.Errorf("prepare index: %w", err)
	}
	svc, err := a.chatService()
	if err != nil {
		return fmt.Errorf("init chat: %w", err)
	}
	session := svc.NewSession()
	logger.Info("chat session started", "session", session, "index", header)

	if _, err := tea.NewProgram(tui.New(ctx, svc, session, header), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
