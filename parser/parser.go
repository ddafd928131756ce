package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mailtools/eml-to-pdf/model"
)

// ParseError reports that a single container file could not be decoded.
// It is a per-file failure and never aborts the batch.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse decodes a message container into the normalized Message record.
// The container format is selected by file extension; only .eml and .msg
// are supported.
func Parse(path string) (model.Message, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eml":
		return parseEML(path)
	case ".msg":
		return parseMSG(path)
	default:
		return model.Message{}, &ParseError{Path: path, Err: fmt.Errorf("unrecognized container format %q", filepath.Ext(path))}
	}
}

// Eligible reports whether a file name carries one of the supported
// container extensions.
func Eligible(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".eml", ".msg":
		return true
	default:
		return false
	}
}
