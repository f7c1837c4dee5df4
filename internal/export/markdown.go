package export

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownFormatter formats an export as a Markdown table.
type MarkdownFormatter struct{}

// NewMarkdown creates a Markdown formatter.
func NewMarkdown() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format writes the export as Markdown to w.
func (f *MarkdownFormatter) Format(w io.Writer, input Input) error {
	fmt.Fprintf(w, "# %s posts: %s\n\n", input.Status.Title(), pageLabel(input))
	if input.GeneratedAt != "" {
		fmt.Fprintf(w, "Generated %s\n\n", input.GeneratedAt)
	}

	if len(input.Posts) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}

	fmt.Fprintf(w, "| %s |\n", strings.Join(Columns, " | "))
	fmt.Fprintf(w, "|%s\n", strings.Repeat("---|", len(Columns)))
	for _, p := range input.Posts {
		r := toRow(p)
		cells := []string{r.ID, r.Created, r.Message, r.Status, r.PromotionStatus, r.Scheduled, r.viewsText()}
		for i, c := range cells {
			cells[i] = escapeCell(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	return nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "<br>")
	return strings.ReplaceAll(s, "\n", "<br>")
}

func pageLabel(input Input) string {
	if input.Page.Name != "" {
		return input.Page.Name
	}
	if input.Page.ID != "" {
		return input.Page.ID
	}
	return "page"
}
