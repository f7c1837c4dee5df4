// Package post models Facebook Page posts and builds them from Graph API records.
//
// A Post is one of three variants selected by publish status:
//   - *Published: live on the page, may carry a promotion status and view count
//   - *Unpublished: a draft
//   - *Scheduled: a draft with a future publish time
//
// Consumers switch over the concrete type; the variant set is closed.
package post

import "strings"

// Status is a post's publish state as used by the dashboard and the Graph API.
type Status string

const (
	StatusPublished   Status = "published"
	StatusUnpublished Status = "unpublished"
	StatusScheduled   Status = "scheduled"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPublished, StatusUnpublished, StatusScheduled}

// ParseStatus normalizes s. Unknown values behave like unpublished.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPublished:
		return StatusPublished
	case StatusScheduled:
		return StatusScheduled
	default:
		return StatusUnpublished
	}
}

// Title returns the capitalized status name ("Published").
func (s Status) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Page is a Facebook Page identity. It does not change after it is fetched.
type Page struct {
	ID   string
	Name string
}

// UnknownViews marks a published post whose view count has not been fetched.
const UnknownViews int64 = -1

// Post is implemented by *Published, *Unpublished and *Scheduled only.
type Post interface {
	Base() Common
	Status() Status
	isPost()
}

// Common holds the fields every variant carries.
type Common struct {
	ID          string
	CreatedTime string // display format
	Message     string
}

// Published is a post that is live on the page.
type Published struct {
	Common
	PromotionStatus string
	Views           int64
}

// Unpublished is a draft post.
type Unpublished struct {
	Common
}

// Scheduled is a draft with a scheduled publish time.
type Scheduled struct {
	Common
	ScheduledTime string // display format
	ScheduledUnix int64
}

func (p *Published) Base() Common   { return p.Common }
func (p *Unpublished) Base() Common { return p.Common }
func (p *Scheduled) Base() Common   { return p.Common }

func (p *Published) Status() Status   { return StatusPublished }
func (p *Unpublished) Status() Status { return StatusUnpublished }
func (p *Scheduled) Status() Status   { return StatusScheduled }

func (*Published) isPost()   {}
func (*Unpublished) isPost() {}
func (*Scheduled) isPost()   {}

// HasViews reports whether the view count has been fetched.
func (p *Published) HasViews() bool {
	return p.Views != UnknownViews
}

// Fields returns the Graph API fields to request for status. Build relies on
// these names.
func Fields(status Status) string {
	fields := "created_time,message"
	switch status {
	case StatusPublished:
		fields += ",promotion_status"
	case StatusScheduled:
		fields += ",scheduled_publish_time"
	}
	return fields
}
