package parser

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/mailtools/eml-to-pdf/model"
)

// MAPI property ids carried in __substg streams.
const (
	propSubject          = 0x0037
	propTransportHeaders = 0x007D
	propSenderName       = 0x0C1A
	propSenderEmail      = 0x0C1F
	propDisplayTo        = 0x0E04
	propBodyText         = 0x1000
	propBodyHTML         = 0x1013

	recipPropDisplayName = 0x3001
	recipPropEmail       = 0x3003
)

// MAPI property types.
const (
	typeString8  = 0x001E
	typeUnicode  = 0x001F
	typeSystime  = 0x0040
	typeBinary   = 0x0102
	substgPrefix = "__substg1.0_"
	recipPrefix  = "__recip_version1.0_#"
	propsStream  = "__properties_version1.0"
)

// FILETIME counts 100ns ticks since 1601-01-01; Unix time starts
// 11644473600 seconds later.
const filetimeEpochDiff = 11644473600

type msgRecipient struct {
	index int
	name  string
	email string
}

// parseMSG decodes an Outlook compound-document container by walking its
// property streams.
func parseMSG(path string) (model.Message, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.Message{}, &ParseError{Path: path, Err: err}
	}
	defer file.Close()

	doc, err := mscfb.New(file)
	if err != nil {
		return model.Message{}, &ParseError{Path: path, Err: err}
	}

	props := make(map[uint16]string)
	recipients := make(map[int]*msgRecipient)
	var htmlBody []byte
	var sentAt *time.Time

	for entry, err := doc.Next(); ; entry, err = doc.Next() {
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return model.Message{}, &ParseError{Path: path, Err: err}
		}

		switch {
		case entry.Name == propsStream && len(entry.Path) == 0:
			data, err := io.ReadAll(entry)
			if err != nil {
				continue
			}
			if t := fixedSystimeProperty(data); t != nil {
				sentAt = t
			}

		case strings.HasPrefix(entry.Name, substgPrefix):
			id, typ, ok := parsePropertyTag(entry.Name)
			if !ok {
				continue
			}

			if ri, isRecip := recipientIndex(entry.Path); isRecip {
				if id != recipPropDisplayName && id != recipPropEmail {
					continue
				}
				data, err := io.ReadAll(entry)
				if err != nil {
					continue
				}
				r := recipients[ri]
				if r == nil {
					r = &msgRecipient{index: ri}
					recipients[ri] = r
				}
				value := decodePropertyString(typ, data)
				if id == recipPropDisplayName {
					r.name = value
				} else {
					r.email = value
				}
				continue
			}

			if len(entry.Path) != 0 {
				// Attachment and embedded-message storages are ignored.
				continue
			}

			switch id {
			case propSubject, propSenderName, propSenderEmail, propDisplayTo, propBodyText, propTransportHeaders:
				data, err := io.ReadAll(entry)
				if err != nil {
					continue
				}
				props[id] = decodePropertyString(typ, data)
			case propBodyHTML:
				data, err := io.ReadAll(entry)
				if err != nil {
					continue
				}
				if typ == typeBinary {
					htmlBody = data
				} else {
					htmlBody = []byte(decodePropertyString(typ, data))
				}
			}
		}
	}

	dateHeader := headerFromTransport(props[propTransportHeaders], "Date")
	if sentAt == nil {
		sentAt = parseSentAt(dateHeader)
	}
	if dateHeader == "" && sentAt != nil {
		dateHeader = sentAt.Format(time.RFC1123Z)
	}

	msg := model.Message{
		SourcePath: path,
		Format:     model.FormatMSG,
		Subject:    strings.TrimSpace(props[propSubject]),
		Sender:     formatSender(props[propSenderName], props[propSenderEmail]),
		Recipients: collectRecipients(recipients, props[propDisplayTo]),
		DateHeader: dateHeader,
		SentAt:     sentAt,
		BodyHTML:   strings.TrimSpace(decodeBytes(htmlBody)),
		BodyText:   strings.TrimSpace(props[propBodyText]),
	}

	if msg.BodyText == "" && msg.BodyHTML != "" {
		msg.BodyText = HTMLToText(msg.BodyHTML)
	}

	return msg, nil
}

// parsePropertyTag splits a __substg1.0_XXXXYYYY stream name into property
// id and type.
func parsePropertyTag(name string) (id, typ uint16, ok bool) {
	hexPart := strings.TrimPrefix(name, substgPrefix)
	if len(hexPart) != 8 {
		return 0, 0, false
	}
	idVal, err := strconv.ParseUint(hexPart[:4], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	typVal, err := strconv.ParseUint(hexPart[4:], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(idVal), uint16(typVal), true
}

// recipientIndex reports whether the stream lives in a recipient storage
// and returns that storage's index.
func recipientIndex(path []string) (int, bool) {
	if len(path) != 1 || !strings.HasPrefix(path[0], recipPrefix) {
		return 0, false
	}
	idx, err := strconv.ParseUint(strings.TrimPrefix(path[0], recipPrefix), 16, 32)
	if err != nil {
		return 0, false
	}
	return int(idx), true
}

// fixedSystimeProperty scans the fixed-size records of a properties stream
// for the client submit time, falling back to the delivery time. Records
// are 16 bytes: type, id, flags, value; the stream opens with a 32 byte
// header on the top-level message.
func fixedSystimeProperty(data []byte) *time.Time {
	var submit, delivery *time.Time
	for offset := 32; offset+16 <= len(data); offset += 16 {
		typ := binary.LittleEndian.Uint16(data[offset:])
		id := binary.LittleEndian.Uint16(data[offset+2:])
		if typ != typeSystime {
			continue
		}
		filetime := binary.LittleEndian.Uint64(data[offset+8:])
		if filetime == 0 {
			continue
		}
		t := filetimeToTime(filetime)
		switch id {
		case 0x0039: // PR_CLIENT_SUBMIT_TIME
			submit = &t
		case 0x0E06: // PR_MESSAGE_DELIVERY_TIME
			delivery = &t
		}
	}
	if submit != nil {
		return submit
	}
	return delivery
}

func filetimeToTime(filetime uint64) time.Time {
	secs := int64(filetime/10_000_000) - filetimeEpochDiff
	nanos := int64(filetime%10_000_000) * 100
	return time.Unix(secs, nanos).UTC()
}

// decodePropertyString decodes a string property stream. Unicode properties
// are UTF-16LE; 8-bit properties are decoded as Windows-1252, which maps
// every byte, so legacy codepages degrade instead of failing.
func decodePropertyString(typ uint16, data []byte) string {
	switch typ {
	case typeUnicode:
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
		if err != nil {
			return strings.ToValidUTF8(string(data), "�")
		}
		return strings.TrimRight(string(decoded), "\x00")
	case typeString8:
		return decodeBytes(data)
	default:
		return ""
	}
}

func decodeBytes(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return strings.TrimRight(string(decoded), "\x00")
}

// headerFromTransport pulls a single header value out of the transport
// headers property.
func headerFromTransport(headers, name string) string {
	if headers == "" {
		return ""
	}
	scanner := bufio.NewScanner(strings.NewReader(headers))
	prefix := strings.ToLower(name) + ":"
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

func formatSender(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	switch {
	case name != "" && email != "" && !strings.EqualFold(name, email):
		return name + " <" + email + ">"
	case email != "":
		return email
	default:
		return name
	}
}

func collectRecipients(recipients map[int]*msgRecipient, displayTo string) []string {
	if len(recipients) == 0 {
		displayTo = strings.TrimSpace(displayTo)
		if displayTo == "" {
			return nil
		}
		var out []string
		for _, part := range strings.Split(displayTo, ";") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}

	ordered := make([]*msgRecipient, 0, len(recipients))
	for _, r := range recipients {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

	out := make([]string, 0, len(ordered))
	for _, r := range ordered {
		out = append(out, formatSender(r.name, r.email))
	}
	return out
}
