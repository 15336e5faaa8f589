// internal/workers/grants/normalize-grant/dates.go
package normalizegrant

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	apperrors "github.com/step-security-bot/usdr-gost/internal/common/errors"
	"github.com/step-security-bot/usdr-gost/internal/common/logger"
)

// TargetDateFormat is the canonical stored date shape.
const TargetDateFormat = "YYYY-MM-DD"

const targetLayout = "2006-01-02"

var tokenReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"MM", "01",
	"DD", "02",
)

// dateMatcher parses one named format strictly: exact length, exact
// separators, and a real calendar date.
type dateMatcher struct {
	name   string
	layout string
}

func newDateMatcher(name string) (dateMatcher, error) {
	layout := tokenReplacer.Replace(name)
	for _, r := range layout {
		if unicode.IsLetter(r) {
			return dateMatcher{}, fmt.Errorf("date format %q has unsupported token %q", name, r)
		}
	}
	if !strings.Contains(layout, "2006") || !strings.Contains(layout, "01") || !strings.Contains(layout, "02") {
		return dateMatcher{}, fmt.Errorf("date format %q must contain YYYY, MM and DD", name)
	}
	return dateMatcher{name: name, layout: layout}, nil
}

func (m dateMatcher) match(value string) (time.Time, bool) {
	if len(value) != len(m.layout) {
		return time.Time{}, false
	}
	t, err := time.Parse(m.layout, value)
	if err != nil {
		return time.Time{}, false
	}
	// reject anything time.Parse tolerated but would not print back identically
	if t.Format(m.layout) != value {
		return time.Time{}, false
	}
	return t, true
}

// DateNormalizer converts date strings to YYYY-MM-DD by trying an ordered
// list of formats. The first match wins.
type DateNormalizer struct {
	formats  []string
	matchers []dateMatcher
	logger   logger.Logger
}

// NewDateNormalizer compiles formats such as "YYYY-MM-DD" or "MM/DD/YYYY".
func NewDateNormalizer(formats []string, log logger.Logger) (*DateNormalizer, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("at least one date format is required")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	matchers := make([]dateMatcher, 0, len(formats))
	for _, f := range formats {
		m, err := newDateMatcher(f)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return &DateNormalizer{
		formats:  append([]string(nil), formats...),
		matchers: matchers,
		logger:   log,
	}, nil
}

// Formats returns the configured format names in priority order.
func (d *DateNormalizer) Formats() []string {
	return append([]string(nil), d.formats...)
}

// Normalize returns value in YYYY-MM-DD form, or a DATE_FORMAT_ERROR naming
// value and every attempted format.
func (d *DateNormalizer) Normalize(value string) (string, error) {
	log := d.logger.WithFields(map[string]interface{}{
		"target":  TargetDateFormat,
		"formats": d.formats,
		"input":   value,
	})

	for _, m := range d.matchers {
		t, ok := m.match(value)
		if !ok {
			log.Warn("Failed to parse input date string using format", map[string]interface{}{
				"attemptedFormat": m.name,
			})
			continue
		}
		result := t.Format(targetLayout)
		msg := "Normalized date string"
		if result == value {
			msg = "Input date string already in target format"
		}
		log.Debug(msg, map[string]interface{}{"inputFormat": m.name})
		return result, nil
	}

	return "", apperrors.NewDateFormatError(value, d.formats)
}
