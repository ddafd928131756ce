package parser

import (
	"net/mail"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// parseSentAt turns a Date header value into a timestamp. The strict RFC 5322
// parse is tried first, then a permissive parse that tolerates malformed and
// timezone-less values. A value no parser can make sense of yields nil.
func parseSentAt(header string) *time.Time {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	if t, err := mail.ParseDate(header); err == nil {
		return &t
	}

	if t, err := dateparse.ParseAny(header); err == nil {
		return &t
	}

	return nil
}
