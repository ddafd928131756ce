package parser

import (
	"net/mail"
	"os"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/mailtools/eml-to-pdf/model"
)

// parseEML decodes a MIME text container. enmime attempts the declared part
// charsets and falls back to a byte-safe decode with replacement runes, so
// legacy encodings degrade instead of failing.
func parseEML(path string) (model.Message, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.Message{}, &ParseError{Path: path, Err: err}
	}
	defer file.Close()

	envelope, err := enmime.ReadEnvelope(file)
	if err != nil {
		return model.Message{}, &ParseError{Path: path, Err: err}
	}

	dateHeader := strings.TrimSpace(envelope.GetHeader("Date"))

	msg := model.Message{
		SourcePath: path,
		Format:     model.FormatEML,
		Subject:    strings.TrimSpace(envelope.GetHeader("Subject")),
		Sender:     strings.TrimSpace(envelope.GetHeader("From")),
		Recipients: recipientList(envelope),
		DateHeader: dateHeader,
		SentAt:     parseSentAt(dateHeader),
		BodyHTML:   envelope.HTML,
		BodyText:   strings.TrimSpace(envelope.Text),
	}

	if msg.BodyText == "" && msg.BodyHTML != "" {
		msg.BodyText = HTMLToText(msg.BodyHTML)
	}

	return msg, nil
}

func recipientList(envelope *enmime.Envelope) []string {
	addresses, err := envelope.AddressList("To")
	if err != nil || len(addresses) == 0 {
		if raw := strings.TrimSpace(envelope.GetHeader("To")); raw != "" {
			return []string{raw}
		}
		return nil
	}

	recipients := make([]string, 0, len(addresses))
	for _, address := range addresses {
		recipients = append(recipients, formatAddress(address))
	}
	return recipients
}

func formatAddress(address *mail.Address) string {
	if address == nil {
		return ""
	}
	if address.Name != "" {
		return address.Name + " <" + address.Address + ">"
	}
	return address.Address
}
