package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/internal/service/reader"
	"github.com/sandevgo/readr/internal/service/ui"
	"github.com/sandevgo/readr/pkg/log"
)

var (
	askFile     string
	askTitle    string
	askFocus    string
	askPosition float64
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question about a text file",
	Long:  `Loads a text file, builds its index and answers a single question. Useful for trying READR without running the server.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()
		logger := log.FromCtx(ctx)

		text, err := os.ReadFile(askFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", askFile, err)
		}

		title := askTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(askFile), filepath.Ext(askFile))
		}

		application := newApp(ctx)
		defer func() {
			for _, s := range application.services {
				if err := s.Shutdown(ctx); err != nil {
					logger.Warn().Err(err).Msgf("%T failed to shutdown", s)
				}
			}
		}()
		svc := application.reader

		status, err := svc.LoadDocument(ctx, core.Document{Title: title, Text: string(text)})
		if err != nil {
			return err
		}
		docID := status.DocumentID
		logger.Info().Str("document", docID).Int("chunks", status.ChunkCount).Msg("building index")

		if status, err = awaitBuild(svc, docID); err != nil {
			return err
		}
		if len(status.FailedChunks) > 0 {
			fmt.Println(ui.WarnStyle.Render(
				fmt.Sprintf("warning: %d chunks failed to embed, answers may miss parts of the text", len(status.FailedChunks))))
		}

		readingMode := cmd.Flags().Changed("position")
		if readingMode {
			if err := svc.SetPosition(ctx, "cli", docID, askPosition); err != nil {
				return err
			}
		}

		turn, err := svc.Ask(ctx, reader.AskRequest{
			SessionID:   "cli",
			DocumentID:  docID,
			Query:       strings.Join(args, " "),
			Focus:       core.AnalysisFocus(askFocus),
			ReadingMode: readingMode,
		})
		if err != nil {
			return err
		}

		printTurn(turn)
		return nil
	},
}

func awaitBuild(svc *reader.Service, docID string) (core.BuildStatus, error) {
	for {
		status, err := svc.Status(docID)
		if err != nil {
			return core.BuildStatus{}, err
		}
		switch status.State {
		case core.BuildReady:
			return status, nil
		case core.BuildFailed:
			return core.BuildStatus{}, fmt.Errorf("index build failed: %s", status.Err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func printTurn(turn core.Turn) {
	fmt.Println(ui.AnswerStyle.Render(turn.Answer))

	if len(turn.DegradedAgents) > 0 {
		names := make([]string, 0, len(turn.DegradedAgents))
		for _, a := range turn.DegradedAgents {
			names = append(names, string(a))
		}
		fmt.Println(ui.WarnStyle.Render("reduced confidence: " + strings.Join(names, ", ") + " did not complete"))
	}
	if turn.ExternalDegraded {
		fmt.Println(ui.WarnStyle.Render("external sources were unavailable, answer is text-only"))
	}
	if refs := turn.EvidenceRefs(); len(refs) > 0 {
		fmt.Println(ui.RefStyle.Render("evidence: " + strings.Join(refs, ", ")))
	}
}

func init() {
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "path to the text file to read (required)")
	askCmd.Flags().StringVarP(&askTitle, "title", "t", "", "document title, defaults to the file name")
	askCmd.Flags().StringVar(&askFocus, "focus", string(core.FocusGeneral), "analysis focus: general, historical, character, symbolism, themes")
	askCmd.Flags().Float64VarP(&askPosition, "position", "p", 0, "reading position as a fraction of the text (0..1)")
	_ = askCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(askCmd)
}
