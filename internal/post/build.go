package post

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ppiankov/pagedeck/internal/timefmt"
)

// record is the raw Graph shape. Pointers distinguish absent keys from empty values.
type record struct {
	ID                   *string         `json:"id"`
	CreatedTime          *string         `json:"created_time"`
	Message              *string         `json:"message"`
	PromotionStatus      *string         `json:"promotion_status"`
	ScheduledPublishTime json.RawMessage `json:"scheduled_publish_time"`
}

// Build turns raw Graph records into typed posts for status, preserving order.
// Records that cannot be constructed are skipped, never reported:
// no message, no id or created_time, or (scheduled only) a missing or
// unreadable scheduled_publish_time.
func Build(records []json.RawMessage, status Status, tf *timefmt.Formatter) []Post {
	posts := make([]Post, 0, len(records))
	for _, raw := range records {
		if p, ok := buildOne(raw, status, tf); ok {
			posts = append(posts, p)
		}
	}
	return posts
}

func buildOne(raw json.RawMessage, status Status, tf *timefmt.Formatter) (Post, bool) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false
	}
	if r.Message == nil || r.ID == nil || r.CreatedTime == nil {
		return nil, false
	}

	common := Common{
		ID:          *r.ID,
		CreatedTime: tf.DisplayFromISOUTC(*r.CreatedTime),
		Message:     *r.Message,
	}

	switch status {
	case StatusPublished:
		promotion := ""
		if r.PromotionStatus != nil {
			promotion = titleCase(*r.PromotionStatus)
		}
		return &Published{Common: common, PromotionStatus: promotion, Views: UnknownViews}, true
	case StatusScheduled:
		sec, ok := parseUnix(r.ScheduledPublishTime)
		if !ok {
			return nil, false
		}
		return &Scheduled{
			Common:        common,
			ScheduledTime: tf.DisplayFromUnix(sec),
			ScheduledUnix: sec,
		}, true
	default:
		return &Unpublished{Common: common}, true
	}
}

// titleCase capitalizes every run of letters on its own, so separators such
// as '_' and '-' start a new word: "not_boosted" becomes "Not_Boosted".
// A Caser is built per call; Casers are stateful.
func titleCase(s string) string {
	caser := cases.Title(language.Und)
	var b strings.Builder
	b.Grow(len(s))
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			b.WriteString(caser.String(s[start:i]))
			start = -1
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		b.WriteString(caser.String(s[start:]))
	}
	return b.String()
}

// parseUnix accepts a JSON number or a string of decimal seconds.
func parseUnix(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, false
	}
	return sec, true
}
