// Package render places sanitized email content into a page.
//
// Two strategies are supported. Isolated wraps the content in a standalone
// document shown through a sandboxed iframe srcdoc, sized by a trusted host
// script. Inline injects the content into a scoped container whose styles
// and identifiers cannot reach the host page.
package render

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	sanitize "github.com/mrz1836/go-sanitize"
	"go.uber.org/zap"

	"github.com/mikey/mailview/internal/sanitizer"
)

// ErrUnknownStrategy is returned for strategy names other than isolated and inline.
var ErrUnknownStrategy = errors.New("unknown render strategy")

// Strategy selects how content is placed in the page.
type Strategy string

const (
	Isolated Strategy = "isolated"
	Inline   Strategy = "inline"
)

// ParseStrategy resolves a strategy name. The empty string means Isolated.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case "", Isolated:
		return Isolated, nil
	case Inline:
		return Inline, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Options configures a Renderer.
type Options struct {
	Locale         string
	MinHeight      int
	FallbackHeight int
	SettleDelays   []time.Duration
	ViewportWidth  int
}

// DefaultOptions returns the stock sizing: 100px minimum, 300px fallback and
// re-measurements after 100ms and 500ms.
func DefaultOptions() Options {
	return Options{
		Locale:         "en",
		MinHeight:      100,
		FallbackHeight: 300,
		SettleDelays:   []time.Duration{100 * time.Millisecond, 500 * time.Millisecond},
		ViewportWidth:  640,
	}
}

// Hints are optional caller supplied styling for the outer container.
type Hints struct {
	ClassName string
	Style     string
}

// Input is one piece of sanitized content to render.
type Input struct {
	Content  sanitizer.Content
	Strategy Strategy
	Hints    Hints
	// RemoteBlocked tightens the isolated document's image policy to inline sources.
	RemoteBlocked bool
}

// Output is rendered markup ready to place in a page.
type Output struct {
	ID       string
	Strategy Strategy
	// Markup is the host markup: the iframe wrapper, the scoped fragment, or a
	// placeholder or notice.
	Markup string
	// Document is the standalone document used as srcdoc. Empty for inline output.
	Document   string
	Height     int
	FrameState FrameState
	// ScriptNonce is set on the host resize script and must be allowed by the
	// embedding page's Content-Security-Policy.
	ScriptNonce string
}

// Renderer turns sanitized content into page markup. It is safe for concurrent use.
type Renderer struct {
	opts     Options
	messages Messages
	lang     string
	measurer Measurer
	logger   *zap.Logger
	newID    func() string
}

// NewRenderer creates a Renderer. A nil measurer selects a LayoutEstimator
// sized to opts.ViewportWidth.
func NewRenderer(opts Options, measurer Measurer, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = DefaultOptions().MinHeight
	}
	if opts.FallbackHeight <= 0 {
		opts.FallbackHeight = DefaultOptions().FallbackHeight
	}
	if measurer == nil {
		measurer = NewLayoutEstimator(opts.ViewportWidth)
	}
	return &Renderer{
		opts:     opts,
		messages: MessagesFor(opts.Locale),
		lang:     LocaleTag(opts.Locale),
		measurer: measurer,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Messages returns the localized strings in use.
func (r *Renderer) Messages() Messages {
	return r.messages
}

// Options returns the renderer configuration.
func (r *Renderer) Options() Options {
	return r.opts
}

// Render produces markup for in. Empty content renders a placeholder and
// failed content renders the localized failure notice. Only an unknown
// strategy or a template failure returns an error.
func (r *Renderer) Render(ctx context.Context, in Input) (*Output, error) {
	strategy, err := ParseStrategy(string(in.Strategy))
	if err != nil {
		return nil, err
	}

	out := &Output{
		ID:       r.newID(),
		Strategy: strategy,
	}
	class := CleanClassHint(in.Hints.ClassName)
	style := SplitStyleHint(in.Hints.Style)

	switch in.Content.Status {
	case sanitizer.StatusEmpty:
		out.Height = r.opts.MinHeight
		out.FrameState = FrameEmpty
		out.Markup, err = execute(placeholderTemplate, placeholderData{
			Class:  class,
			Style:  style,
			Height: r.opts.MinHeight,
			Text:   r.messages.NoContent,
		})
		return out, wrapTemplateErr(err)

	case sanitizer.StatusFailed:
		out.Height = r.opts.FallbackHeight
		out.FrameState = FrameError
		out.Markup, err = execute(noticeTemplate, noticeData{
			Class:  class,
			Style:  style,
			Notice: template.HTML(sanitizer.FailureNotice(r.messages.ProcessingFailed)),
		})
		return out, wrapTemplateErr(err)
	}

	switch strategy {
	case Inline:
		err = r.renderInline(ctx, out, in, class, style)
	default:
		err = r.renderIsolated(ctx, out, in, class, style)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Rendered email content",
		zap.String("render_id", out.ID),
		zap.String("strategy", string(strategy)),
		zap.Int("height", out.Height),
		zap.Stringer("frame_state", out.FrameState))
	return out, nil
}

func (r *Renderer) renderIsolated(ctx context.Context, out *Output, in Input, class string, style []string) error {
	doc, err := r.Document(in.Content.HTML, in.RemoteBlocked)
	if err != nil {
		return err
	}

	// Settle measurements happen in the browser; the server only needs the
	// initial height.
	frame := NewFrame(r.measurer, FrameConfig{
		MinHeight:      r.opts.MinHeight,
		FallbackHeight: r.opts.FallbackHeight,
	}, r.logger)
	state := frame.Load(ctx, doc)
	frame.Close()

	nonce, err := newNonce()
	if err != nil {
		return err
	}

	out.Document = doc
	out.Height = frame.Height()
	out.FrameState = state
	out.ScriptNonce = nonce
	out.Markup, err = execute(hostTemplate, hostData{
		ID:             out.ID,
		Class:          class,
		Style:          style,
		Title:          r.messages.FrameTitle,
		Document:       doc,
		Height:         out.Height,
		MinHeight:      r.opts.MinHeight,
		FallbackHeight: r.opts.FallbackHeight,
		Settle:         settleAttr(r.opts.SettleDelays),
		State:          state.String(),
		Nonce:          nonce,
	})
	return wrapTemplateErr(err)
}

func (r *Renderer) renderInline(ctx context.Context, out *Output, in Input, class string, style []string) error {
	body, err := balanceFragment(in.Content.HTML)
	if err != nil {
		return err
	}

	height, err := r.measurer.Measure(ctx, body)
	if err != nil || height < r.opts.MinHeight {
		height = r.opts.MinHeight
	}

	out.Height = height
	out.FrameState = FrameRendered
	out.Markup, err = execute(fragmentTemplate, fragmentData{
		ID:    out.ID,
		Class: class,
		Style: style,
		CSS:   scopedCSS(out.ID),
		Body:  template.HTML(body),
	})
	return wrapTemplateErr(err)
}

// Document wraps sanitized HTML in the standalone isolated document.
func (r *Renderer) Document(sanitizedHTML string, remoteBlocked bool) (string, error) {
	doc, err := execute(documentTemplate, documentData{
		Lang:          r.lang,
		Title:         r.messages.FrameTitle,
		RemoteBlocked: remoteBlocked,
		Body:          template.HTML(sanitizedHTML),
	})
	return doc, wrapTemplateErr(err)
}

// balanceFragment runs fragment through the HTML parser so unmatched end
// tags are dropped and open elements are closed before it is embedded.
func balanceFragment(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("failed to parse fragment: %w", err)
	}
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize fragment: %w", err)
	}
	return body, nil
}

var classNameStrip = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// CleanClassHint reduces a caller class hint to space-separated names made
// of letters, digits, dashes and underscores.
func CleanClassHint(hint string) string {
	var names []string
	for _, field := range strings.Fields(hint) {
		name, err := sanitize.CustomCompiled(field, classNameStrip)
		if err != nil || name == "" {
			continue
		}
		names = append(names, name)
	}
	return strings.Join(names, " ")
}

// SplitStyleHint breaks a style hint into declarations. Positioning
// declarations are dropped; html/template neutralizes anything else unsafe.
func SplitStyleHint(hint string) []string {
	var out []string
	for _, decl := range strings.Split(hint, ";") {
		decl = strings.TrimSpace(decl)
		prop, _, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(prop)) {
		case "position", "z-index", "top", "left", "right", "bottom", "inset":
			continue
		}
		out = append(out, decl)
	}
	return out
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate script nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func wrapTemplateErr(err error) error {
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}
	return nil
}
