package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sandevgo/readr/internal/service/reader"
	"github.com/sandevgo/readr/pkg/log"
)

// Server exposes the reading companion over HTTP. It implements the
// service lifecycle so it starts and shuts down with the rest of the
// process.
type Server struct {
	httpServer *http.Server
}

func NewServer(addr string, service *reader.Service) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(service).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.httpServer.Addr).Msg("http api listening")

	// Requests inherit the process context so the logger travels with them.
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
