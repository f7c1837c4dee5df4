package web

import (
	"html/template"
	"strconv"

	"github.com/ppiankov/pagedeck/internal/post"
	"github.com/ppiankov/pagedeck/internal/timefmt"
)

var templateFuncs = template.FuncMap{
	"title": func(s post.Status) string { return s.Title() },
}

// postView is a post flattened for templates.
type postView struct {
	ID              string
	Created         string
	Message         string
	Status          post.Status
	PromotionStatus string
	Scheduled       string
	// ScheduledInput pre-fills the datetime-local field of the edit form.
	ScheduledInput string
	Views          string
}

func toView(p post.Post, tf *timefmt.Formatter) postView {
	base := p.Base()
	v := postView{
		ID:      base.ID,
		Created: base.CreatedTime,
		Message: base.Message,
		Status:  p.Status(),
	}
	switch pp := p.(type) {
	case *post.Published:
		v.PromotionStatus = pp.PromotionStatus
		if pp.HasViews() {
			v.Views = strconv.FormatInt(pp.Views, 10)
		}
	case *post.Scheduled:
		v.Scheduled = pp.ScheduledTime
		v.ScheduledInput = tf.LocalDisplayFromUnix(pp.ScheduledUnix)
	case *post.Unpublished:
	}
	return v
}

func toViews(posts []post.Post, tf *timefmt.Formatter) []postView {
	out := make([]postView, 0, len(posts))
	for _, p := range posts {
		out = append(out, toView(p, tf))
	}
	return out
}

// allowedTargets lists the statuses a post may be moved to from the edit form.
func allowedTargets(from post.Status, can func(from, to post.Status) bool) []post.Status {
	var out []post.Status
	for _, to := range post.Statuses {
		if can(from, to) {
			out = append(out, to)
		}
	}
	return out
}
