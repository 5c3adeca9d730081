package core

import (
	"context"

	"github.com/mikey/mailview/internal/render"
	"github.com/mikey/mailview/internal/sanitizer"
)

// ContentSource defines the interface for fetching stored emails
type ContentSource interface {
	// GetEmail returns the email with the given ID, or ErrEmailNotFound
	GetEmail(ctx context.Context, id string, folder string) (*Email, error)

	// ListEmails returns the emails in a folder
	ListEmails(ctx context.Context, folder string) (*EmailList, error)
}

// ReadMarker is implemented by sources that can flag an email as read
type ReadMarker interface {
	MarkRead(ctx context.Context, id string) error
}

// HealthChecker is implemented by sources that can report their availability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ContentSanitizer turns raw HTML into policy-conforming HTML
type ContentSanitizer interface {
	Sanitize(raw string) sanitizer.Content
}

// ContentTransformer rewrites sanitized fragments
type ContentTransformer interface {
	Apply(fragment string, opts render.TransformOptions) (render.TransformResult, error)
}

// ContentRenderer turns sanitized content into page markup
type ContentRenderer interface {
	Render(ctx context.Context, in render.Input) (*render.Output, error)
	Messages() render.Messages
}

// SenderPolicy decides whether a sender may load remote images
type SenderPolicy interface {
	IsTrusted(from string) bool
}

// RenderCache defines the interface for caching prepared content
type RenderCache interface {
	// Get retrieves a cached entry
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
