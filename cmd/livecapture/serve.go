package main

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/livecapture/internal/app"
	"github.com/ayusman/livecapture/internal/logging"
	"github.com/ayusman/livecapture/internal/server"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	sourceOptions
	addr string
}

func newServeCmd(c *cli) *cobra.Command {
	var o serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the capture API, live preview and web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, o)
		},
	}
	o.sourceOptions.register(cmd)
	cmd.Flags().StringVar(&o.addr, "addr", "", "Listen address (default from config, :8080)")
	return cmd
}

func (c *cli) runServe(cmd *cobra.Command, o serveOptions) error {
	addr := c.cfg.Addr
	if cmd.Flags().Changed("addr") {
		addr = o.addr
	}

	a, err := c.buildApp(cmd, o.sourceOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := c.newServer(a)
	return serveUntil(cmd.Context(), srv, addr)
}

func (c *cli) newServer(a *app.App) *server.Server {
	if c.cfg.WebDir != "" {
		c.log.WithField("dir", c.cfg.WebDir).Info("serving static files")
	}
	return server.New(server.Config{
		StaticDir: c.cfg.WebDir,
		App:       a,
		Log:       logging.For("server"),
	})
}

// serveUntil runs srv until ctx is done or the listener fails.
func serveUntil(ctx context.Context, srv *server.Server, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}
