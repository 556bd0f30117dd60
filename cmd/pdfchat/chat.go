package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pdf-chat-rag/internal/app"
	"pdf-chat-rag/internal/llm"
	"pdf-chat-rag/internal/session"
	"pdf-chat-rag/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	chatPDF   string
	chatPlain bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Long: `Chat about PDFs in the terminal. Type a question and press Enter, or
type /upload <path.pdf> to index a document.

Examples:
  # Start with a document already indexed
  pdfchat chat --pdf report.pdf

  # Line-oriented mode for pipes and dumb terminals
  pdfchat chat --plain`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatPDF, "pdf", "", "PDF to index before the chat starts")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "read questions line by line instead of the full-screen UI")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, a, _, cleanup, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer cleanup()

	sess, _ := a.Sessions.GetOrCreate("")

	if chatPDF != "" {
		if err := uploadFile(ctx, a, sess, chatPDF, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	if chatPlain {
		return runPlainChat(ctx, a, sess, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	_, err = tea.NewProgram(tui.New(ctx, a, sess), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func uploadFile(ctx context.Context, a *app.App, sess *session.Session, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	res, err := a.Upload(ctx, sess, filepath.Base(path), f)
	if err != nil {
		return err
	}

	if res.Duplicate {
		fmt.Fprintf(out, "%s was already indexed.\n", res.FileName)
	} else {
		fmt.Fprintf(out, "Indexed %s: %d pages, %d chunks.\n", res.FileName, res.Pages, res.Chunks)
	}
	return nil
}

// runPlainChat reads one question per line until EOF, "exit" or "quit"
func runPlainChat(ctx context.Context, a *app.App, sess *session.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "Chat with PDF - ask a question, /upload <path> to add a document, 'exit' to quit")

	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			break
		}
		if input == "" {
			continue
		}

		if path, ok := strings.CutPrefix(input, "/upload "); ok {
			if err := uploadFile(ctx, a, sess, strings.TrimSpace(path), out); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			continue
		}

		answer, err := a.Ask(ctx, sess, input)
		if err != nil && !errors.Is(err, llm.ErrGeneration) {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, answer)
	}

	return scanner.Err()
}
