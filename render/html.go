package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/mailtools/eml-to-pdf/model"
)

var unsafeElements = regexp.MustCompile(`(?is)<(script|style|meta|link)[^>]*>(.*?</(script|style)>)?`)

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>%s</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background-color: #f9f9f9; }
.email-header { background-color: #ffffff; padding: 20px; margin-bottom: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
.email-header h1 { color: #2c3e50; margin: 0 0 10px 0; font-size: 18px; }
.email-header p { margin: 5px 0; color: #666; font-size: 14px; }
.email-content { background-color: #ffffff; padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
.email-content img { max-width: 100%%; height: auto; }
.email-content a { color: #3498db; text-decoration: none; }
.email-content blockquote { border-left: 4px solid #3498db; margin: 10px 0; padding-left: 15px; color: #666; }
</style>
</head>
<body>
<div class="email-header">
<h1>%s</h1>
<p><strong>From:</strong> %s</p>
<p><strong>To:</strong> %s</p>
<p><strong>Date:</strong> %s</p>
</div>
<div class="email-content">
%s
</div>
</body>
</html>`

// emailDocument wraps a message's HTML body in a styled standalone document
// with the header block on top, the way a mail client would present it.
// Script, style, meta and link elements are dropped from the body.
func emailDocument(msg model.Message) string {
	body := unsafeElements.ReplaceAllString(msg.BodyHTML, "")

	subject := html.EscapeString(orDefault(msg.Subject, "No Subject"))
	return fmt.Sprintf(documentTemplate,
		subject,
		subject,
		html.EscapeString(orDefault(msg.Sender, "Unknown Sender")),
		html.EscapeString(orDefault(strings.Join(msg.Recipients, ", "), "Unknown Recipient")),
		html.EscapeString(orDefault(msg.DateHeader, "No Date")),
		body,
	)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
