package render

import (
	"context"
	"errors"
	"html"
	"regexp"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mailview/internal/sanitizer"
)

func newTestRenderer(t *testing.T, opts Options, m Measurer) *Renderer {
	t.Helper()
	r := NewRenderer(opts, m, zap.NewNop())
	r.newID = func() string { return "0f8fad5b-d9cb-469f-a165-70867728950e" }
	return r
}

func sanitized(s string) sanitizer.Content {
	return sanitizer.Content{HTML: s, Status: sanitizer.StatusSanitized}
}

var srcdocPattern = regexp.MustCompile(`srcdoc="([^"]*)"`)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
		err  bool
	}{
		{"", Isolated, false},
		{"isolated", Isolated, false},
		{" Inline ", Inline, false},
		{"shadow", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, ErrUnknownStrategy)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRender_IsolatedDocument(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), constHeight(480))

	out, err := r.Render(context.Background(), Input{Content: sanitized(`<p>Hello <b>World</b></p>`)})
	require.NoError(t, err)

	assert.Equal(t, Isolated, out.Strategy)
	assert.Equal(t, FrameRendered, out.FrameState)
	assert.Equal(t, 480, out.Height)
	assert.NotEmpty(t, out.ScriptNonce)

	assert.True(t, strings.HasPrefix(out.Document, "<!DOCTYPE html>"))
	assert.Contains(t, out.Document, `<base target="_blank">`)
	assert.Contains(t, out.Document, "img{max-width:100%;height:auto}")
	assert.Contains(t, out.Document, "<body><p>Hello <b>World</b></p></body>")
	assert.Contains(t, out.Document, "img-src * data: cid:")

	assert.Contains(t, out.Markup, `sandbox="allow-same-origin allow-popups allow-popups-to-escape-sandbox"`)
	assert.NotContains(t, out.Markup, "allow-scripts")
	assert.Contains(t, out.Markup, "height:480px")
	assert.Contains(t, out.Markup, `data-mv-min-height="100"`)
	assert.Contains(t, out.Markup, `data-mv-fallback-height="300"`)
	assert.Contains(t, out.Markup, `data-mv-settle="100,500"`)
	assert.Contains(t, out.Markup, `title="Email content"`)
	assert.Contains(t, out.Markup, `<script nonce="`+out.ScriptNonce+`">`)

	m := srcdocPattern.FindStringSubmatch(out.Markup)
	require.Len(t, m, 2)
	assert.Equal(t, out.Document, html.UnescapeString(m[1]))
}

func TestRender_IsolatedMeasurementFailureUsesFallback(t *testing.T) {
	failing := MeasurerFunc(func(context.Context, string) (int, error) { return 0, errors.New("no layout") })
	r := newTestRenderer(t, DefaultOptions(), failing)

	out, err := r.Render(context.Background(), Input{Content: sanitized("<p>x</p>")})
	require.NoError(t, err)
	assert.Equal(t, FrameError, out.FrameState)
	assert.Equal(t, 300, out.Height)
	assert.Contains(t, out.Markup, `data-mv-state="error"`)
}

func TestRender_IsolatedRemoteBlockedTightensImagePolicy(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), constHeight(200))

	out, err := r.Render(context.Background(), Input{Content: sanitized("<p>x</p>"), RemoteBlocked: true})
	require.NoError(t, err)
	assert.Contains(t, out.Document, "img-src data: cid:;")
	assert.NotContains(t, out.Document, "img-src *")
}

func TestRender_InlineFragment(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), constHeight(50))

	out, err := r.Render(context.Background(), Input{
		Content:  sanitized(`<p>Hello</p>`),
		Strategy: Inline,
		Hints:    Hints{ClassName: "email-body", Style: "color: #111; position: fixed; max-width: 600px"},
	})
	require.NoError(t, err)

	assert.Equal(t, Inline, out.Strategy)
	assert.Empty(t, out.Document)
	assert.Equal(t, 100, out.Height)
	assert.True(t, strings.HasPrefix(out.Markup, `<div class="mv-scope mv-0f8fad5b-d9cb-469f-a165-70867728950e email-body"`))
	assert.Contains(t, out.Markup, `style="color: #111;max-width: 600px;"`)
	assert.NotContains(t, out.Markup, "position: fixed")
	assert.Contains(t, out.Markup, ".mv-scope.mv-0f8fad5b-d9cb-469f-a165-70867728950e img{max-width:100%;height:auto}")
	assert.Contains(t, out.Markup, "position:static !important")
	assert.Contains(t, out.Markup, "<p>Hello</p></div>")
}

func TestRender_InlineBalancesStrayEndTags(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), constHeight(100))

	out, err := r.Render(context.Background(), Input{
		Content:  sanitized(`<p>a</p></div></div><div>x</div><b>open`),
		Strategy: Inline,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.Markup, `<p>a</p><div>x</div><b>open</b></div>`), out.Markup)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div id="host">` + out.Markup + `</div>`))
	require.NoError(t, err)
	host := doc.Find("#host")
	require.Equal(t, 1, host.Children().Length())
	assert.True(t, host.Children().Is(".mv-scope"))
	assert.Equal(t, "axopen", host.Find(".mv-scope").Children().Not("style").Text())
}

func TestRender_EmptyContentShowsPlaceholder(t *testing.T) {
	for _, strategy := range []Strategy{Isolated, Inline} {
		r := newTestRenderer(t, DefaultOptions(), constHeight(500))

		out, err := r.Render(context.Background(), Input{
			Content:  sanitizer.Content{Status: sanitizer.StatusEmpty},
			Strategy: strategy,
		})
		require.NoError(t, err)
		assert.Equal(t, FrameEmpty, out.FrameState)
		assert.Contains(t, out.Markup, "No content available")
		assert.Contains(t, out.Markup, `role="status"`)
		assert.NotContains(t, out.Markup, "<iframe")
		assert.Equal(t, 100, out.Height)
	}
}

func TestRender_FailedContentShowsLocalizedNotice(t *testing.T) {
	opts := DefaultOptions()
	opts.Locale = "tr-TR"
	r := newTestRenderer(t, opts, constHeight(500))

	out, err := r.Render(context.Background(), Input{
		Content: sanitizer.Content{HTML: "ignored", Status: sanitizer.StatusFailed},
	})
	require.NoError(t, err)
	assert.Equal(t, FrameError, out.FrameState)
	assert.Equal(t, 300, out.Height)
	assert.Contains(t, out.Markup, `role="alert"`)
	assert.Contains(t, out.Markup, "Bu e-postanın içeriği görüntülenemedi")
	assert.NotContains(t, out.Markup, "ignored")
}

func TestRender_UnknownStrategy(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), constHeight(100))

	_, err := r.Render(context.Background(), Input{Content: sanitized("<p>x</p>"), Strategy: "shadow"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRender_HintsCannotBreakOut(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions(), constHeight(100))

	out, err := r.Render(context.Background(), Input{
		Content:  sanitized("<p>x</p>"),
		Strategy: Inline,
		Hints: Hints{
			ClassName: `a" onclick="alert(1)`,
			Style:     `background: url(javascript:alert(1)); color: red`,
		},
	})
	require.NoError(t, err)
	assert.NotContains(t, out.Markup, "onclick=")
	assert.NotContains(t, out.Markup, "javascript")
	assert.Contains(t, out.Markup, "ZgotmplZ")
	assert.Contains(t, out.Markup, "color: red;")
}

func TestCleanClassHint(t *testing.T) {
	assert.Equal(t, "card shadow-lg my_mail", CleanClassHint("  card  shadow-lg\tmy_mail "))
	assert.Equal(t, "a b c", CleanClassHint("a\nb\r\nc"))
	assert.Equal(t, "aonclickalert1", CleanClassHint(`a"onclick=alert(1)`))
	assert.Empty(t, CleanClassHint(`<>"'`))
}

func TestSplitStyleHint(t *testing.T) {
	got := SplitStyleHint("color: red; position: absolute;; Z-Index: 9; padding:4px; junk")
	assert.Equal(t, []string{"color: red", "padding:4px"}, got)
}
