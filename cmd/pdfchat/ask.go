package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askPDF string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question about a PDF",
	Long: `Index a PDF, answer one question about it and exit.

Examples:
  pdfchat ask --pdf handbook.pdf "How many vacation days do I get?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askPDF, "pdf", "", "PDF to index before answering")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, a, _, cleanup, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer cleanup()

	sess, _ := a.Sessions.GetOrCreate("")

	if askPDF != "" {
		if err := uploadFile(ctx, a, sess, askPDF, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	answer, err := a.Ask(ctx, sess, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
