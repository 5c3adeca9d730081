package file

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
)

// Message is the renderable part of a parsed MIME email
type Message struct {
	Sender      string
	Recipient   string
	Subject     string
	Date        time.Time
	Body        string
	ContentType string
}

var headerLinePattern = regexp.MustCompile(`(?i)^(received|return-path|delivered-to|from|to|subject|date|mime-version|message-id|content-type):[ \t]`)

// LooksLikeMIME reports whether data starts with a mail header line.
func LooksLikeMIME(data []byte) bool {
	first, _, _ := strings.Cut(string(data[:min(len(data), 1024)]), "\n")
	return headerLinePattern.MatchString(first)
}

// ParseMessage reads a MIME message. The HTML part is preferred; a message
// with only text is returned as text for the renderer to convert.
func ParseMessage(r io.Reader) (*Message, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &Message{
		Sender:    env.GetHeader("From"),
		Recipient: env.GetHeader("To"),
		Subject:   env.GetHeader("Subject"),
	}
	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		msg.Date = date
	}

	switch {
	case strings.TrimSpace(env.HTML) != "":
		msg.Body = inlineContentIDs(env.HTML, append(env.Inlines, env.OtherParts...))
		msg.ContentType = "html"
	default:
		msg.Body = env.Text
		msg.ContentType = "text"
	}
	return msg, nil
}

// inlineContentIDs swaps cid: references to embedded images for data: URIs
// so the standalone document can show them.
func inlineContentIDs(html string, parts []*enmime.Part) string {
	if !strings.Contains(html, "cid:") {
		return html
	}

	pairs := make([]string, 0, len(parts)*2)
	for _, part := range parts {
		if part == nil || part.ContentID == "" || len(part.Content) == 0 {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(part.ContentType), "image/") {
			continue
		}
		id := strings.Trim(part.ContentID, "<>")
		uri := "data:" + strings.ToLower(part.ContentType) + ";base64," +
			base64.StdEncoding.EncodeToString(part.Content)
		pairs = append(pairs, "cid:"+id, uri)
	}
	if len(pairs) == 0 {
		return html
	}
	return strings.NewReplacer(pairs...).Replace(html)
}
