package model

import "time"

// ContainerFormat identifies the on-disk container a message was decoded from.
type ContainerFormat string

const (
	FormatEML ContainerFormat = "eml"
	FormatMSG ContainerFormat = "msg"
)

// Message is the normalized representation of a single email message,
// extracted from either container format. It lives only for the duration of
// one conversion task.
type Message struct {
	SourcePath string
	Format     ContainerFormat

	Subject    string
	Sender     string
	Recipients []string

	// DateHeader is the raw Date header value as found in the container,
	// kept verbatim for display in the rendered header block.
	DateHeader string
	// SentAt is the parsed send time, or nil when no date could be parsed.
	// A nil SentAt is not an error; filename derivation substitutes a
	// fallback token.
	SentAt *time.Time

	BodyHTML string
	// BodyText is the plain-text body. When the source only carried HTML it
	// holds the stripped-markup rendition, so it is populated whenever
	// BodyHTML is.
	BodyText string
}
