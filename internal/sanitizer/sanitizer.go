// Package sanitizer turns untrusted HTML email bodies into markup that is safe
// to place in a page.
//
// Elements outside the policy are unwrapped and keep their text. Forbidden
// elements (script, object, embed, form, input, button) are removed together
// with everything inside them. Attributes outside the policy are dropped, and
// href/src values whose scheme is not allowed remove the attribute entirely.
//
// Sanitize never returns an error. Empty input yields StatusEmpty, and a
// failure inside the HTML engine yields StatusFailed with a safe notice in
// place of the content.
package sanitizer

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ErrEngineFailure wraps any error or panic raised by the HTML engine.
var ErrEngineFailure = errors.New("sanitizer engine failure")

// Status describes what Sanitize produced.
type Status int

const (
	// StatusSanitized means HTML holds sanitized content.
	StatusSanitized Status = iota
	// StatusEmpty means there was nothing to render; callers show a placeholder.
	StatusEmpty
	// StatusFailed means the engine failed; HTML holds a safe notice.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSanitized:
		return "sanitized"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Content is the result of sanitizing one email body.
type Content struct {
	HTML   string
	Status Status
	Err    error
}

// engine is the part of bluemonday the sanitizer relies on.
type engine interface {
	SanitizeReaderToWriter(r io.Reader, w io.Writer) error
}

// Sanitizer applies a Policy to raw email HTML. It holds no mutable state and
// is safe for concurrent use.
type Sanitizer struct {
	policy *Policy
	engine engine
	notice string
	logger *zap.Logger
}

// New creates a Sanitizer. failureNotice is the plain text shown when the
// engine fails; it is escaped before use.
func New(policy *Policy, failureNotice string, logger *zap.Logger) *Sanitizer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sanitizer{
		policy: policy,
		engine: policy.engine,
		notice: FailureNotice(failureNotice),
		logger: logger,
	}
}

// Policy returns the policy in use.
func (s *Sanitizer) Policy() *Policy {
	return s.policy
}

// Sanitize transforms raw into content that only contains what the policy allows.
func (s *Sanitizer) Sanitize(raw string) Content {
	if strings.TrimSpace(raw) == "" {
		return Content{Status: StatusEmpty}
	}

	out, err := s.run(raw)
	if err != nil {
		s.logger.Error("Failed to sanitize email content",
			zap.Error(err),
			zap.Int("content_size", len(raw)))
		return Content{HTML: s.notice, Status: StatusFailed, Err: err}
	}

	if out == "" {
		return Content{Status: StatusEmpty}
	}
	return Content{HTML: out, Status: StatusSanitized}
}

// run invokes the engine and converts panics into errors.
func (s *Sanitizer) run(raw string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrEngineFailure, r)
		}
	}()

	var buf bytes.Buffer
	if err := s.engine.SanitizeReaderToWriter(strings.NewReader(raw), &buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// FailureNotice renders the inline notice shown in place of content that could
// not be processed.
func FailureNotice(text string) string {
	if text == "" {
		text = "This content could not be processed."
	}
	return `<div class="mv-notice mv-notice-error" role="alert">` + html.EscapeString(text) + `</div>`
}
