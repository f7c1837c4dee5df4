package export

import (
	"encoding/json"
	"io"
)

type jsonExport struct {
	Meta  jsonMeta   `json:"meta"`
	Posts []jsonPost `json:"posts"`
}

type jsonMeta struct {
	PageID      string `json:"page_id"`
	PageName    string `json:"page_name"`
	Status      string `json:"status"`
	Count       int    `json:"count"`
	GeneratedAt string `json:"generated_at,omitempty"`
}

type jsonPost struct {
	ID              string `json:"id"`
	Created         string `json:"created"`
	Message         string `json:"message"`
	Status          string `json:"status"`
	PromotionStatus string `json:"promotion_status,omitempty"`
	Scheduled       string `json:"scheduled,omitempty"`
	Views           *int64 `json:"views,omitempty"`
}

// JSONFormatter formats an export as JSON.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes the export as indented JSON to w.
func (f *JSONFormatter) Format(w io.Writer, input Input) error {
	out := jsonExport{
		Meta: jsonMeta{
			PageID:      input.Page.ID,
			PageName:    input.Page.Name,
			Status:      string(input.Status),
			Count:       len(input.Posts),
			GeneratedAt: input.GeneratedAt,
		},
		Posts: make([]jsonPost, 0, len(input.Posts)),
	}
	for _, p := range input.Posts {
		r := toRow(p)
		jp := jsonPost{
			ID:              r.ID,
			Created:         r.Created,
			Message:         r.Message,
			Status:          r.Status,
			PromotionStatus: r.PromotionStatus,
			Scheduled:       r.Scheduled,
		}
		if r.HasViews {
			views := r.Views
			jp.Views = &views
		}
		out.Posts = append(out.Posts, jp)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
