package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"groundchat/internal/domain"
	"groundchat/internal/tui"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [files...]",
		Short: "Answer a single question and exit",
		RunE:  runAsk,
	}
	cmd.Flags().StringP("question", "q", "", "Question to answer")
	cmd.Flags().Bool("sources", false, "Print the retrieved passages after the answer")
	_ = cmd.MarkFlagRequired("question")
	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question, _ := cmd.Flags().GetString("question")
	showSources, _ := cmd.Flags().GetBool("sources")

	a, _, closer, err := setup(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	if _, err := a.prepare(ctx, args); err != nil {
		return fmt.Errorf("prepare index: %w", err)
	}
	svc, err := a.chatService()
	if err != nil {
		return fmt.Errorf("init chat: %w", err)
	}

	ans, err := svc.Ask(ctx, svc.NewSession(), question)
	if err != nil {
		if domain.IsTransient(err) {
			a.logger.Error("ask", "err", err)
			return &exitError{code: 2, err: errors.New(tui.UnavailableMessage)}
		}
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Println(ans.Display())
	if showSources {
		for i, s := range ans.Sources {
			fmt.Printf("\n[%d] %s (score %.3f)\n%s\n", i+1, s.Chunk.Source, s.Score, s.Chunk.Text)
		}
	}
	return nil
}
