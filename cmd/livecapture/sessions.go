package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ayusman/livecapture/internal/session"
	"github.com/ayusman/livecapture/internal/store"
	"github.com/spf13/cobra"
)

func newSessionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored capture sessions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runList(cmd.OutOrStdout(), limit)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show")

	var exportDir string
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session and its stills",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runShow(cmd.OutOrStdout(), args[0], exportDir)
		},
	}
	show.Flags().StringVarP(&exportDir, "export", "o", "", "Write the session's JPEGs into this directory")

	del := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete sessions and their stills",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDelete(cmd.OutOrStdout(), args)
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func (c *cli) runList(w io.Writer, limit int) error {
	sessions, err := c.store.Sessions().List(limit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tCHALLENGE\tSTATUS\tDETAIL")
	fmt.Fprintln(tw, "--\t-------\t---------\t------\t------")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), orDash(s.Challenge), s.Status, sessionDetail(s))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts, err := c.store.Sessions().Counts()
	if err != nil {
		return fmt.Errorf("failed to count sessions: %w", err)
	}
	fmt.Fprintf(w, "\nStored: %d succeeded, %d failed, %d cancelled\n",
		counts[store.StatusSucceeded], counts[store.StatusFailed], counts[store.StatusCancelled])
	return nil
}

func (c *cli) runShow(w io.Writer, id, exportDir string) error {
	s, err := c.store.Sessions().GetByID(id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	stills, err := c.store.Stills().ListBySession(id)
	if err != nil {
		return fmt.Errorf("failed to list stills: %w", err)
	}

	fmt.Fprintf(w, "Session:   %s\n", s.ID)
	fmt.Fprintf(w, "Challenge: %s\n", orDash(s.Challenge))
	fmt.Fprintf(w, "Status:    %s\n", s.Status)
	fmt.Fprintf(w, "Detail:    %s\n", sessionDetail(s))
	fmt.Fprintf(w, "Started:   %s\n", s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if s.FinishedAt != nil {
		fmt.Fprintf(w, "Duration:  %s\n", s.FinishedAt.Sub(s.StartedAt).Round(10*time.Millisecond))
	}

	for _, st := range stills {
		fmt.Fprintf(w, "Image %d:   %dx%d, %d bytes, tags [%s]\n",
			st.Position, st.Width, st.Height, len(st.JPEG), strings.Join(st.Tags, ", "))
	}

	if exportDir == "" || len(stills) == 0 {
		return nil
	}
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return err
	}
	for _, st := range stills {
		path := filepath.Join(exportDir, fmt.Sprintf("%s-%d.jpg", s.ID, st.Position))
		if err := os.WriteFile(path, st.JPEG, 0644); err != nil {
			return fmt.Errorf("failed to export image %d: %w", st.Position, err)
		}
		fmt.Fprintf(w, "Exported:  %s\n", path)
	}
	return nil
}

func (c *cli) runDelete(w io.Writer, ids []string) error {
	for _, id := range ids {
		if err := c.store.Sessions().Delete(id); err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}
		fmt.Fprintf(w, "Deleted %s\n", id)
	}
	return nil
}

// sessionDetail summarizes how a session ended.
func sessionDetail(s *store.Session) string {
	switch s.Status {
	case store.StatusSucceeded:
		return fmt.Sprintf("%s trigger, motion %.3f", s.Trigger, s.MotionScore)
	case store.StatusFailed:
		if code, err := session.ParseFailureCode(s.FailureCode); err == nil {
			return code.String()
		}
		return fmt.Sprintf("code %d", s.FailureCode)
	default:
		return "-"
	}
}

// printResult reports a finished capture on w.
func printResult(w io.Writer, res session.Result, captureDir string) {
	if !res.Succeeded() {
		fmt.Fprintf(w, "Capture failed: %s (code %d)\n", res.Code, int(res.Code))
		return
	}

	fmt.Fprintf(w, "Captured session %s (%s trigger, motion %.3f)\n", res.SessionID, res.Trigger, res.MotionScore)
	if captureDir != "" {
		for pos := 1; pos <= 2; pos++ {
			fmt.Fprintf(w, "  %s\n", filepath.Join(captureDir, fmt.Sprintf("%s-%d.jpg", res.SessionID, pos)))
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
