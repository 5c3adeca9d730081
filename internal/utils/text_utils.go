package utils

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// TruncationMarker is appended to content cut at the size limit.
const TruncationMarker = "\n[... Content truncated due to size limits ...]"

var htmlTagPattern = regexp.MustCompile(`(?i)<\s*(!doctype|html|head|body|div|p|br|table|span|a|img|font|center|b|i|u|strong|em|h[1-6]|ul|ol|li|blockquote|pre)\b`)

// TextProcessor provides utilities for processing email content
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]

	// Drop bytes of a rune split by the cut.
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Content truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + TruncationMarker
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	cleaned := strings.ToValidUTF8(text, "")

	tp.logger.Debug("Invalid UTF-8 removed",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(cleaned)))

	return cleaned
}

// ProcessText truncates and sanitizes text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.SanitizeUTF8(tp.TruncateText(text, maxSize))
}

// DecodeCharset converts data in the named charset (a MIME or HTML label such
// as "iso-8859-9" or "windows-1254") to UTF-8.
func (tp *TextProcessor) DecodeCharset(data []byte, label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "us-ascii") {
		return tp.SanitizeUTF8(string(data)), nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", fmt.Errorf("unsupported charset %q: %w", label, err)
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s content: %w", label, err)
	}
	return tp.SanitizeUTF8(string(out)), nil
}

// DecodeHTML converts an HTML document to UTF-8. The encoding comes from a
// BOM, the Content-Type parameter, a <meta> declaration, or a guess, in that order.
func (tp *TextProcessor) DecodeHTML(data []byte, contentType string) (string, error) {
	enc, name, certain := charset.DetermineEncoding(data, contentType)

	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("failed to decode HTML as %s: %w", name, err)
	}

	tp.logger.Debug("Decoded HTML content",
		zap.String("charset", name),
		zap.Bool("certain", certain),
		zap.Int("size", len(data)))

	// A UTF-8 BOM survives the nop decoder.
	out = bytes.TrimPrefix(out, []byte("\xef\xbb\xbf"))
	return tp.SanitizeUTF8(string(out)), nil
}

// PlainTextToHTML escapes text and turns blank-line separated blocks into
// paragraphs and single newlines into <br>.
func PlainTextToHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(line)
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

// LooksLikeHTML reports whether s contains common HTML markup.
func LooksLikeHTML(s string) bool {
	return htmlTagPattern.MatchString(s)
}
