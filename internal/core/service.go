package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mailview/internal/render"
	"github.com/mikey/mailview/internal/sanitizer"
	"github.com/mikey/mailview/internal/utils"
)

var (
	// ErrEmailNotFound is returned when a source has no email with the requested ID
	ErrEmailNotFound = errors.New("email not found")
	// ErrInvalidRequest is returned for requests that cannot be rendered at all
	ErrInvalidRequest = errors.New("invalid render request")
	// ErrNoSource is returned by View when no content source is configured
	ErrNoSource = errors.New("no content source configured")
)

// ServiceConfig holds the view service settings
type ServiceConfig struct {
	CacheEnabled      bool
	CacheTTL          time.Duration
	MaxContentBytes   int
	BlockRemoteImages bool
	DefaultStrategy   render.Strategy
	MarkReadOnView    bool
}

// EmailViewService is the core service for rendering email content
type EmailViewService struct {
	source      ContentSource
	sanitizer   ContentSanitizer
	transformer ContentTransformer
	renderer    ContentRenderer
	cache       RenderCache
	senders     SenderPolicy
	text        *utils.TextProcessor
	logger      *zap.Logger
	cfg         ServiceConfig
	now         func() time.Time
}

// NewEmailViewService creates a new email view service. source, cache and
// senders may be nil.
func NewEmailViewService(
	source ContentSource,
	sanitizer ContentSanitizer,
	transformer ContentTransformer,
	renderer ContentRenderer,
	cache RenderCache,
	senders SenderPolicy,
	text *utils.TextProcessor,
	logger *zap.Logger,
	cfg ServiceConfig,
) *EmailViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if text == nil {
		text = utils.NewTextProcessor(logger)
	}
	if cache == nil {
		cfg.CacheEnabled = false
	}
	return &EmailViewService{
		source:      source,
		sanitizer:   sanitizer,
		transformer: transformer,
		renderer:    renderer,
		cache:       cache,
		senders:     senders,
		text:        text,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Render sanitizes and renders raw content. Empty or unprocessable content
// still renders a placeholder or notice; only invalid requests return errors.
func (s *EmailViewService) Render(ctx context.Context, req *RenderRequest) (*RenderedEmail, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}

	strategyName := req.Strategy
	if strings.TrimSpace(strategyName) == "" {
		strategyName = string(s.cfg.DefaultStrategy)
	}
	strategy, err := render.ParseStrategy(strategyName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	blockRemote := s.cfg.BlockRemoteImages && !s.isTrusted(req.Sender)
	entry := s.prepare(ctx, req, strategy, blockRemote)

	out, err := s.renderer.Render(ctx, render.Input{
		Content:       sanitizer.Content{HTML: entry.HTML, Status: entry.Status},
		Strategy:      strategy,
		Hints:         render.Hints{ClassName: req.ClassName, Style: req.Style},
		RemoteBlocked: blockRemote,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render content: %w", err)
	}

	return &RenderedEmail{
		ID:              out.ID,
		Strategy:        out.Strategy,
		Status:          entry.Status.String(),
		Markup:          out.Markup,
		Document:        out.Document,
		Height:          out.Height,
		FrameState:      out.FrameState,
		ScriptNonce:     out.ScriptNonce,
		RemoteResources: entry.RemoteResources,
		RemoteBlocked:   entry.RemoteBlocked,
		Truncated:       entry.Truncated,
		RenderedAt:      s.now(),
	}, nil
}

// View fetches an email from the content source and renders it
func (s *EmailViewService) View(ctx context.Context, emailID string, opts ViewOptions) (*RenderedEmail, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}
	if strings.TrimSpace(emailID) == "" {
		return nil, fmt.Errorf("%w: empty email id", ErrInvalidRequest)
	}

	email, err := s.source.GetEmail(ctx, emailID, opts.Folder)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch email %s: %w", emailID, err)
	}

	rendered, err := s.Render(ctx, &RenderRequest{
		Content:     email.Content,
		ContentType: email.ContentType,
		Sender:      email.Sender,
		ClassName:   opts.ClassName,
		Style:       opts.Style,
		Strategy:    opts.Strategy,
	})
	if err != nil {
		return nil, err
	}
	rendered.EmailID = email.ID
	rendered.Subject = email.Subject

	if s.cfg.MarkReadOnView && !email.Read {
		if marker, ok := s.source.(ReadMarker); ok {
			if err := marker.MarkRead(ctx, email.ID); err != nil {
				s.logger.Warn("Failed to mark email as read",
					zap.String("email_id", email.ID),
					zap.Error(err))
			}
		}
	}

	return rendered, nil
}

// ListEmails returns a folder listing from the content source
func (s *EmailViewService) ListEmails(ctx context.Context, folder string) (*EmailList, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}
	return s.source.ListEmails(ctx, folder)
}

// CheckSource reports whether the content source is reachable. Sources that
// cannot check themselves, and a missing source, count as healthy.
func (s *EmailViewService) CheckSource(ctx context.Context) error {
	checker, ok := s.source.(HealthChecker)
	if !ok {
		return nil
	}
	return checker.HealthCheck(ctx)
}

// prepare returns sanitized and transformed content, from cache when possible
func (s *EmailViewService) prepare(ctx context.Context, req *RenderRequest, strategy render.Strategy, blockRemote bool) *CacheEntry {
	contentType := normalizeContentType(req.ContentType, req.Content)
	key := cacheKey(strategy, contentType, blockRemote, req.Content)

	if s.cfg.CacheEnabled {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			s.logger.Debug("Cache hit for content", zap.String("key", key[:12]))
			return entry
		}
	}

	raw := req.Content
	truncated := s.cfg.MaxContentBytes > 0 && len(raw) > s.cfg.MaxContentBytes
	raw = s.text.ProcessText(raw, s.cfg.MaxContentBytes)
	if contentType == "text" {
		raw = utils.PlainTextToHTML(raw)
	}

	content := s.sanitizer.Sanitize(raw)
	now := s.now()
	entry := &CacheEntry{
		Key:       key,
		HTML:      content.HTML,
		Status:    content.Status,
		Truncated: truncated,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.CacheTTL),
	}

	if content.Status == sanitizer.StatusSanitized {
		opts := render.TransformOptions{
			BlockRemoteImages: blockRemote,
			BlockedAlt:        s.renderer.Messages().RemoteImageBlocked,
			Namespace:         strategy == render.Inline,
		}
		result, err := s.transformer.Apply(content.HTML, opts)
		switch {
		case err == nil:
			entry.HTML = result.HTML
			entry.RemoteResources = result.RemoteResources
			entry.RemoteBlocked = result.RemoteBlocked
		case blockRemote:
			// Showing the untransformed fragment would load blocked images.
			s.logger.Error("Failed to transform content", zap.Error(err))
			entry.HTML = ""
			entry.Status = sanitizer.StatusFailed
		default:
			s.logger.Warn("Failed to transform content, using sanitized fragment", zap.Error(err))
		}
	}

	if s.cfg.CacheEnabled && entry.Status != sanitizer.StatusFailed {
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	s.logger.Debug("Prepared content",
		zap.String("status", entry.Status.String()),
		zap.String("content_type", contentType),
		zap.Int("size", len(req.Content)),
		zap.Bool("truncated", truncated),
		zap.Int("remote_resources", entry.RemoteResources))

	return entry
}

func (s *EmailViewService) isTrusted(sender string) bool {
	return s.senders != nil && s.senders.IsTrusted(sender)
}

// normalizeContentType maps a declared content type to "html" or "text".
// Undeclared content is sniffed.
func normalizeContentType(declared, content string) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	switch {
	case ct == "html" || strings.HasPrefix(ct, "text/html"):
		return "html"
	case ct == "text" || ct == "plain" || strings.HasPrefix(ct, "text/plain"):
		return "text"
	case ct == "" && strings.TrimSpace(content) != "" && !utils.LooksLikeHTML(content):
		return "text"
	default:
		return "html"
	}
}

// cacheKey digests everything that changes prepared content
func cacheKey(strategy render.Strategy, contentType string, blockRemote bool, content string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%t\x00%d\x00", strategy, contentType, blockRemote, len(content))
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}
