// Package export renders post insights as spreadsheets, JSON, Markdown or
// terminal text.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/pagedeck/internal/post"
)

// Supported formats.
const (
	FormatXLSX     = "xlsx"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatTerminal = "terminal"
)

// Input is everything a formatter needs.
type Input struct {
	Page        post.Page
	Status      post.Status
	Posts       []post.Post
	GeneratedAt string // display format
}

// Formatter writes an export to w.
type Formatter interface {
	Format(w io.Writer, input Input) error
}

// Columns is the header row shared by every tabular format.
var Columns = []string{"Post ID", "Created", "Message", "Status", "Promotion Status", "Scheduled", "Views"}

// row is a post flattened to Columns.
type row struct {
	ID              string
	Created         string
	Message         string
	Status          string
	PromotionStatus string
	Scheduled       string
	Views           int64
	HasViews        bool
}

func toRow(p post.Post) row {
	base := p.Base()
	r := row{
		ID:      base.ID,
		Created: base.CreatedTime,
		Message: base.Message,
		Status:  p.Status().Title(),
	}
	switch v := p.(type) {
	case *post.Published:
		r.PromotionStatus = v.PromotionStatus
		r.Views = v.Views
		r.HasViews = v.HasViews()
	case *post.Scheduled:
		r.Scheduled = v.ScheduledTime
	case *post.Unpublished:
	}
	return r
}

func (r row) viewsText() string {
	if !r.HasViews {
		return ""
	}
	return strconv.FormatInt(r.Views, 10)
}

// New returns the formatter for format. color only affects terminal output.
func New(format string, color bool) (Formatter, error) {
	switch normalize(format) {
	case FormatXLSX:
		return NewXLSX(), nil
	case FormatJSON:
		return NewJSON(), nil
	case FormatMarkdown:
		return NewMarkdown(), nil
	case FormatTerminal:
		return NewTerminal(color), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// Extension returns the file extension for format, including the dot.
func Extension(format string) string {
	switch normalize(format) {
	case FormatXLSX:
		return ".xlsx"
	case FormatJSON:
		return ".json"
	case FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	switch normalize(format) {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

func normalize(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "md" {
		return FormatMarkdown
	}
	return f
}

// FileName builds "<prefix>_<stamp><ext>".
func FileName(prefix, stamp, format string) string {
	return prefix + "_" + stamp + Extension(format)
}

// WriteFile renders input into dir/name through a temp file and returns the
// final path.
func WriteFile(dir, name string, f Formatter, input Input) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("file name is required")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := f.Format(tmp, input); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("format export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename export: %w", err)
	}
	return path, nil
}
