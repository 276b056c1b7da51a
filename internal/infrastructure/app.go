package infrastructure

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Server is a long-running component owned by the App: the HTTP API and the
// event subscriber both implement it.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type App struct {
	servers []Server
}

func NewApp(servers []Server) *App {
	return &App{servers: servers}
}

// Run starts every server and blocks until the context is cancelled or a
// server fails, then stops them all.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range a.servers {
		s := srv
		g.Go(func() error {
			return s.Start(ctx)
		})
	}

	<-ctx.Done()

	for _, srv := range a.servers {
		_ = srv.Stop(context.Background())
	}

	return g.Wait()
}
