package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayusman/livecapture/internal/config"
	"github.com/ayusman/livecapture/internal/logging"
	"github.com/ayusman/livecapture/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

// cli holds state shared by subcommands for one invocation.
type cli struct {
	dbPath   string
	envFile  string
	logLevel string
	logFile  string

	cfg   config.Config
	store *store.Store
	log   *logrus.Entry
}

// setup loads configuration, initializes logging and opens the store.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = c.dbPath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = c.logFile
	}

	logging.Init(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Quiet: drawsOnTerminal(cmd)})
	c.log = logging.For("cli")

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.cfg = cfg
	c.store = st
	return nil
}

// annotationTerminal marks commands that draw a progress display, during
// which console logging is suppressed.
const annotationTerminal = "livecapture/terminal"

func drawsOnTerminal(cmd *cobra.Command) bool {
	if cmd.Annotations[annotationTerminal] != "true" {
		return false
	}
	plain, _ := cmd.Flags().GetBool("no-progress")
	return !plain
}

func (c *cli) teardown() {
	if c.store != nil {
		c.store.Close()
		c.store = nil
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "livecapture",
		Short:         "Live face capture with motion-triggered stills",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.teardown()
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&c.dbPath, "db", "", "SQLite database path (default: ~/.livecapture/livecapture.db)")
	flags.StringVar(&c.envFile, "env-file", "", "Load environment from this file (default: .env if present)")
	flags.StringVar(&c.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&c.logFile, "log-file", "", "Also write logs to this rotated file")

	root.AddCommand(
		newCaptureCmd(c),
		newServeCmd(c),
		newTrayCmd(c),
		newSessionsCmd(c),
	)
	return root
}

// execute runs the CLI and returns the process exit code.
func execute(args []string) int {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	root := newRootCmd(c)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	// PersistentPostRun is skipped when RunE fails.
	c.teardown()
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintln(os.Stderr, exit.err)
		}
		return exit.code
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
