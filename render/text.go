package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/mailtools/eml-to-pdf/model"
	"github.com/mailtools/eml-to-pdf/parser"
)

// textPDF lays the message out as plain text on A4 pages: a header block
// (Subject/From/To/Date and a rule), then the word-wrapped body with
// automatic page breaks. A message with no body still yields a header-only
// PDF. The core fonts are cp1252, so other runes are mapped or replaced by
// the translator.
func textPDF(msg model.Message) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	translate := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(0, 6, translate("Subject: "+orDefault(msg.Subject, "No Subject")), "", "L", false)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 5, translate("From: "+orDefault(msg.Sender, "Unknown Sender")), "", "L", false)
	pdf.MultiCell(0, 5, translate("To: "+orDefault(strings.Join(msg.Recipients, ", "), "Unknown Recipient")), "", "L", false)
	pdf.MultiCell(0, 5, translate("Date: "+orDefault(msg.DateHeader, "No Date")), "", "L", false)

	pdf.Ln(2)
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	y := pdf.GetY()
	pdf.SetDrawColor(120, 120, 120)
	pdf.Line(left, y, pageWidth-right, y)
	pdf.Ln(4)

	body := msg.BodyText
	if body == "" && msg.BodyHTML != "" {
		body = parser.HTMLToText(msg.BodyHTML)
	}
	if body != "" {
		pdf.MultiCell(0, 5, translate(body), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
