package core

import (
	"time"

	"github.com/mikey/mailview/internal/render"
	"github.com/mikey/mailview/internal/sanitizer"
)

// Email represents an email record as returned by a content source
type Email struct {
	ID          string
	AccountID   string
	Folder      string
	Sender      string
	Recipient   string
	Subject     string
	Content     string
	ContentType string
	Preview     string
	Date        time.Time
	Read        bool
	Important   bool
	Size        int64
}

// EmailList is one folder listing from a content source
type EmailList struct {
	Emails       []*Email
	FolderCounts map[string]int
}

// RenderRequest carries raw content plus display hints
type RenderRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
	Sender      string `json:"sender"`
	ClassName   string `json:"className"`
	Style       string `json:"style"`
	Strategy    string `json:"strategy"`
}

// ViewOptions are the display hints for rendering a stored email
type ViewOptions struct {
	Folder    string
	Strategy  string
	ClassName string
	Style     string
}

// RenderedEmail represents the result of rendering one email body
type RenderedEmail struct {
	ID              string            `json:"id"`
	EmailID         string            `json:"emailId,omitempty"`
	Subject         string            `json:"subject,omitempty"`
	Strategy        render.Strategy   `json:"strategy"`
	Status          string            `json:"status"`
	Markup          string            `json:"markup"`
	Document        string            `json:"document,omitempty"`
	Height          int               `json:"height"`
	FrameState      render.FrameState `json:"frameState"`
	ScriptNonce     string            `json:"scriptNonce,omitempty"`
	RemoteResources int               `json:"remoteResources"`
	RemoteBlocked   int               `json:"remoteBlocked"`
	Truncated       bool              `json:"truncated"`
	RenderedAt      time.Time         `json:"renderedAt"`
}

// CacheEntry is sanitized, transformed content ready to render. Entries
// live in memory only.
type CacheEntry struct {
	Key             string
	HTML            string
	Status          sanitizer.Status
	RemoteResources int
	RemoteBlocked   int
	Truncated       bool
	CreatedAt       time.Time
	ExpiresAt       time.Time
}
