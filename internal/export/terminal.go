package export

import (
	"fmt"
	"io"
	"strings"
)

const terminalMessageWidth = 72

// TerminalFormatter formats an export for terminal output.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

// Format writes one block per post to w.
func (f *TerminalFormatter) Format(w io.Writer, input Input) error {
	header := fmt.Sprintf("pagedeck: %s, %d %s posts", pageLabel(input), len(input.Posts), input.Status)
	fmt.Fprintln(w, f.bold(header))
	fmt.Fprintln(w)

	if len(input.Posts) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}

	for _, p := range input.Posts {
		r := toRow(p)
		fmt.Fprintf(w, "  %s %s\n", f.bold(r.ID), f.dim(r.Created))
		fmt.Fprintf(w, "      %s\n", truncate(oneLine(r.Message), terminalMessageWidth))

		var meta []string
		if r.PromotionStatus != "" {
			meta = append(meta, "promotion: "+r.PromotionStatus)
		}
		if r.Scheduled != "" {
			meta = append(meta, f.yellow("scheduled: "+r.Scheduled))
		}
		if r.HasViews {
			meta = append(meta, f.green("views: "+r.viewsText()))
		}
		if len(meta) > 0 {
			fmt.Fprintf(w, "      %s\n", strings.Join(meta, "  "))
		}
		fmt.Fprintln(w)
	}

	if input.GeneratedAt != "" {
		fmt.Fprintln(w, f.dim("generated "+input.GeneratedAt))
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// ANSI helpers, no-op when color=false.

func (f *TerminalFormatter) bold(s string) string {
	if !f.color {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func (f *TerminalFormatter) green(s string) string {
	if !f.color {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func (f *TerminalFormatter) yellow(s string) string {
	if !f.color {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

func (f *TerminalFormatter) dim(s string) string {
	if !f.color {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}
