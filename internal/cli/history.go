package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/ppiankov/pagedeck/internal/config"
	"github.com/ppiankov/pagedeck/internal/store"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historySince  string
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent dashboard activity",
	RunE:  historyAction,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of entries to show (0 = all)")
	historyCmd.Flags().StringVar(&historySince, "since", "30d", "window for action counts (e.g. 7d, 48h)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "terminal", "output format: terminal, json")
}

func historyAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	sinceDur, err := parseDuration(historySince)
	if err != nil {
		return fmt.Errorf("parse --since: %w", err)
	}

	ctx := cmd.Context()

	entries, err := db.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("get activity: %w", err)
	}
	counts, err := db.Counts(ctx, time.Now().Add(-sinceDur))
	if err != nil {
		return fmt.Errorf("count activity: %w", err)
	}

	switch historyFormat {
	case "json":
		return printHistoryJSON(os.Stdout, entries, counts)
	case "terminal", "":
		printHistory(os.Stdout, entries, counts, sinceDur, cfg.Display.Location)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", historyFormat)
	}
}

type historyJSON struct {
	Counts  map[string]int `json:"counts"`
	Entries []historyEntry `json:"entries"`
}

type historyEntry struct {
	Action string `json:"action"`
	PageID string `json:"page_id,omitempty"`
	PostID string `json:"post_id,omitempty"`
	Status string `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
	At     string `json:"at"`
}

func printHistoryJSON(w io.Writer, entries []store.Activity, counts map[string]int) error {
	out := historyJSON{Counts: counts, Entries: make([]historyEntry, 0, len(entries))}
	for _, a := range entries {
		out.Entries = append(out.Entries, historyEntry{
			Action: a.Action,
			PageID: a.PageID,
			PostID: a.PostID,
			Status: a.Status,
			Detail: a.Detail,
			At:     a.At.Format(time.RFC3339),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printHistory(w io.Writer, entries []store.Activity, counts map[string]int, since time.Duration, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No activity recorded yet. Run 'pagedeck serve' and log in.")
		return
	}

	fmt.Fprintf(w, "pagedeck history: last %s\n\n", formatHistoryDuration(since))

	actions := make([]string, 0, len(counts))
	for action := range counts {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	for _, action := range actions {
		fmt.Fprintf(w, "  %-8s %5d\n", action+":", counts[action])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Recent ---")
	fmt.Fprintln(w)
	for _, a := range entries {
		line := fmt.Sprintf("  %s  %-7s", a.At.In(loc).Format("2006-01-02 15:04"), a.Action)
		if a.PostID != "" {
			line += " " + a.PostID
		}
		if a.Status != "" {
			line += " (" + a.Status + ")"
		}
		if a.Detail != "" {
			line += " " + a.Detail
		}
		fmt.Fprintln(w, line)
	}
}

// parseDuration handles both Go durations and "Nd" day notation.
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func formatHistoryDuration(d time.Duration) string {
	hours := int(d.Hours())
	if hours >= 24 && hours%24 == 0 {
		return fmt.Sprintf("%d days", hours/24)
	}
	return fmt.Sprintf("%dh", hours)
}
