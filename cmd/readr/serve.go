package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sandevgo/readr/internal/transport/httpapi"
	"github.com/sandevgo/readr/pkg/log"
	"github.com/sandevgo/readr/pkg/srv"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the READR HTTP API",
	Long:  `Starts the HTTP API for uploading documents, asking questions and tracking reading positions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// logger setup
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting readr")

		application := newApp(ctx)
		services := append(application.services,
			httpapi.NewServer(application.cfg.ListenAddr, application.reader))

		srv.StartServices(ctx, services)

		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("readr has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
