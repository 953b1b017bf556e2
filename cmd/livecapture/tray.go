package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ayusman/livecapture/internal/session"
	"github.com/ayusman/livecapture/internal/tray"
	"github.com/spf13/cobra"
)

func newTrayCmd(c *cli) *cobra.Command {
	var o serveOptions

	cmd := &cobra.Command{
		Use:   "tray",
		Short: "Run from the system tray with the preview server in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTray(cmd, o)
		},
	}
	o.sourceOptions.register(cmd)
	cmd.Flags().StringVar(&o.addr, "addr", "", "Preview server listen address (default from config, :8080)")
	return cmd
}

func (c *cli) runTray(cmd *cobra.Command, o serveOptions) error {
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
	tr := tray.New()
	a.AddPresenter(tr)
	a.RegisterResultCallback(tr.Result)

	tr.OnStart(func() error {
		_, err := a.StartSession(session.RandomChallenge())
		return err
	})
	tr.OnCancel(a.CancelSession)
	tr.OnOpen(func() {
		if err := openBrowser(previewURL(addr)); err != nil {
			c.log.WithError(err).Warn("failed to open browser")
		}
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := serveUntil(ctx, srv, addr); err != nil {
			c.log.WithError(err).Error("preview server stopped")
		}
		tr.Quit()
	}()

	// Run blocks on the main goroutine until Quit.
	tr.Run()
	cancel()
	<-served
	return nil
}

// previewURL turns a listen address into a browsable URL.
func previewURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "linux", "freebsd", "openbsd":
		name = "xdg-open"
	default:
		return fmt.Errorf("opening a browser is not supported on %s", runtime.GOOS)
	}
	return exec.Command(name, url).Start()
}
