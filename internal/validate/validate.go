// Package validate holds the pure input predicates used by the link service.
package validate

import (
	"errors"
	"net/url"
	"regexp"
	"time"
)

const (
	MinShortCodeLen = 3
	MaxShortCodeLen = 20
)

var shortCodeRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Zone-less layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

var ErrBadTimestamp = errors.New("unrecognized timestamp")

// Codes shadowed by fixed routes; a link under them could never be reached.
var reservedShortCodes = map[string]struct{}{
	"health":  {},
	"metrics": {},
}

func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func IsValidShortCode(s string) bool {
	return len(s) >= MinShortCodeLen && len(s) <= MaxShortCodeLen && shortCodeRE.MatchString(s)
}

func IsReservedShortCode(s string) bool {
	_, ok := reservedShortCodes[s]
	return ok
}

// ParseTimestamp accepts RFC 3339 and the HTML datetime-local/date forms.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrBadTimestamp
}

// IsFutureDate reports whether ts parses and lies strictly after now.
func IsFutureDate(ts string, now time.Time) bool {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return false
	}
	return t.After(now)
}
