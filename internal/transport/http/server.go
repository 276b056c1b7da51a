package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"paystreak/internal/service"
)

type Server struct {
	srv *http.Server
}

func NewServer(addr string, svc service.RewardService) *Server {
	mux := http.NewServeMux()
	h := NewHandler(svc)
	h.Register(mux)

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
