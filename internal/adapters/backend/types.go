package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/mailview/internal/core"
)

// emailDTO mirrors one email in the backend's JSON
type emailDTO struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	AccountID   string      `json:"account_id"`
	Folder      string      `json:"folder"`
	Sender      string      `json:"sender"`
	Recipient   string      `json:"recipient"`
	Subject     string      `json:"subject"`
	Content     string      `json:"content"`
	ContentType string      `json:"content_type"`
	Preview     string      `json:"preview"`
	Date        backendTime `json:"date"`
	Read        bool        `json:"read"`
	Important   bool        `json:"important"`
	Size        json.Number `json:"size"`
}

// emailListResponse is the body of GET /api/emails
type emailListResponse struct {
	Emails       []emailDTO     `json:"emails"`
	FolderCounts map[string]int `json:"folderCounts"`
}

// errorResponse is the backend's error body
type errorResponse struct {
	Detail string `json:"detail"`
}

func (d *emailDTO) toEmail() *core.Email {
	size, _ := d.Size.Int64()
	if size == 0 {
		if f, err := d.Size.Float64(); err == nil {
			size = int64(f)
		}
	}
	return &core.Email{
		ID:          d.ID,
		AccountID:   d.AccountID,
		Folder:      d.Folder,
		Sender:      d.Sender,
		Recipient:   d.Recipient,
		Subject:     d.Subject,
		Content:     d.Content,
		ContentType: d.ContentType,
		Preview:     d.Preview,
		Date:        time.Time(d.Date),
		Read:        d.Read,
		Important:   d.Important,
		Size:        size,
	}
}

// backendTime accepts ISO 8601 timestamps with or without a zone. Zoneless
// values are taken as UTC.
type backendTime time.Time

var backendTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *backendTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*t = backendTime{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}

	for _, layout := range backendTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = backendTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognized date %q", s)
}
