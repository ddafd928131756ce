package parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"
)

var (
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
	blankLinePattern = regexp.MustCompile(`\n\s*\n\s*\n+`)
	spaceRunPattern  = regexp.MustCompile(`[ \t]+`)
	scriptStyleBlock = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
)

// HTMLToText strips markup from an HTML body and produces readable plain
// text: entities resolved, script/style content dropped, whitespace
// collapsed. Used both to derive the text body for HTML-only messages and
// as input to the text rendering tier.
func HTMLToText(markup string) string {
	markup = scriptStyleBlock.ReplaceAllString(markup, "")

	text, err := html2text.FromString(markup, html2text.Options{})
	if err != nil {
		// html2text chokes on badly broken markup; fall back to a crude
		// tag strip so the message still converts.
		text = tagPattern.ReplaceAllString(markup, " ")
		text = html.UnescapeString(text)
	}

	text = spaceRunPattern.ReplaceAllString(text, " ")
	text = blankLinePattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
