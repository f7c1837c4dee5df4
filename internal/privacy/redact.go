// Package privacy scrubs credentials from text before it is logged or shown.
package privacy

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

const redactedPlaceholder = "[REDACTED]"

// DefaultPatterns match Graph access tokens wherever they tend to leak:
// paging URLs, Authorization headers and bare page tokens. A first capture
// group, when present, is kept in front of the placeholder.
var DefaultPatterns = []string{
	`(access_token=)[^&\s"']+`,
	`(?i)(bearer\s+)[A-Za-z0-9._\-]+`,
	`\bEAA[A-Za-z0-9]{20,}`,
}

// Compile compiles a list of regex pattern strings into compiled regexps.
// Returns an error if any pattern is invalid.
func Compile(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Apply replaces all matches of the compiled patterns in text with [REDACTED].
func Apply(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		repl := redactedPlaceholder
		if re.NumSubexp() > 0 {
			repl = "${1}" + redactedPlaceholder
		}
		text = re.ReplaceAllString(text, repl)
	}
	return text
}

// Redactor applies DefaultPatterns plus any configured extras.
type Redactor struct {
	patterns []*regexp.Regexp
}

// New compiles DefaultPatterns followed by extra.
func New(extra []string) (*Redactor, error) {
	all := make([]string, 0, len(DefaultPatterns)+len(extra))
	all = append(all, DefaultPatterns...)
	all = append(all, extra...)
	patterns, err := Compile(all)
	if err != nil {
		return nil, err
	}
	return &Redactor{patterns: patterns}, nil
}

// Redact scrubs text. A nil Redactor returns text unchanged.
func (r *Redactor) Redact(text string) string {
	if r == nil {
		return text
	}
	return Apply(text, r.patterns)
}

// Hook returns a logrus hook that scrubs messages and string or error fields.
func (r *Redactor) Hook() logrus.Hook {
	return &redactHook{r: r}
}

type redactHook struct {
	r *Redactor
}

func (h *redactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *redactHook) Fire(entry *logrus.Entry) error {
	entry.Message = h.r.Redact(entry.Message)
	for k, v := range entry.Data {
		switch val := v.(type) {
		case string:
			entry.Data[k] = h.r.Redact(val)
		case error:
			entry.Data[k] = h.r.Redact(val.Error())
		}
	}
	return nil
}
