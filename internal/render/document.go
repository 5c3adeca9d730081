package render

import (
	"html/template"
	"strconv"
	"strings"
	"time"
)

// frameSandbox disables scripts inside the frame. Same-origin access stays so
// the host script can read the document height.
const frameSandbox = "allow-same-origin allow-popups allow-popups-to-escape-sandbox"

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
{{if .RemoteBlocked}}<meta http-equiv="Content-Security-Policy" content="default-src 'none'; img-src data: cid:; style-src 'unsafe-inline'; base-uri 'none'; form-action 'none'">{{else}}<meta http-equiv="Content-Security-Policy" content="default-src 'none'; img-src * data: cid:; style-src 'unsafe-inline'; base-uri 'none'; form-action 'none'">{{end}}
<meta name="viewport" content="width=device-width, initial-scale=1">
<base target="_blank">
<title>{{.Title}}</title>
<style>
body{margin:0;padding:16px;font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;line-height:1.6;color:#374151;word-wrap:break-word;overflow-wrap:break-word}
img{max-width:100%;height:auto}
a{color:#3b82f6;text-decoration:underline}
table{width:100%;max-width:100%;border-collapse:collapse}
td,th{padding:8px;border:1px solid #e5e7eb}
blockquote{border-left:4px solid #e5e7eb;margin:16px 0;padding-left:16px;color:#6b7280}
pre{background:#f3f4f6;padding:16px;border-radius:4px;overflow-x:auto;white-space:pre-wrap}
</style>
</head>
<body>{{.Body}}</body>
</html>
`))

// The host script runs in the embedding page, never inside the frame. It
// applies max(measured, min) on load and after each settle delay, and the
// fallback height when the first measurement throws.
var hostTemplate = template.Must(template.New("host").Parse(`<div class="mv-frame{{if .Class}} {{.Class}}{{end}}" data-mv-id="{{.ID}}"{{if .Style}} style="{{range .Style}}{{.}};{{end}}"{{end}}>` +
	`<iframe title="{{.Title}}" srcdoc="{{.Document}}" sandbox="` + frameSandbox + `" referrerpolicy="no-referrer" ` +
	`style="display:block;width:100%;border:0;height:{{.Height}}px" ` +
	`data-mv-min-height="{{.MinHeight}}" data-mv-fallback-height="{{.FallbackHeight}}" data-mv-settle="{{.Settle}}" data-mv-state="{{.State}}"></iframe>` +
	`<script nonce="{{.Nonce}}">
(function () {
  var f = document.currentScript && document.currentScript.previousElementSibling;
  if (!f || f.tagName !== "IFRAME") { return; }
  var min = parseInt(f.getAttribute("data-mv-min-height"), 10) || 100;
  var fallback = parseInt(f.getAttribute("data-mv-fallback-height"), 10) || 300;
  var settle = (f.getAttribute("data-mv-settle") || "").split(",");
  function measure() {
    try {
      var d = f.contentDocument || (f.contentWindow && f.contentWindow.document);
      if (!d || !d.body) { throw new Error("frame document unavailable"); }
      var b = d.body, e = d.documentElement;
      var h = Math.max(b.scrollHeight, b.offsetHeight, e.clientHeight, e.scrollHeight, e.offsetHeight);
      f.style.height = Math.max(h, min) + "px";
      f.setAttribute("data-mv-state", "rendered");
    } catch (err) {
      if (f.getAttribute("data-mv-state") !== "rendered") {
        f.style.height = fallback + "px";
        f.setAttribute("data-mv-state", "error");
      }
    }
  }
  f.addEventListener("load", function () {
    measure();
    for (var i = 0; i < settle.length; i++) {
      var ms = parseInt(settle[i], 10);
      if (ms >= 0) { setTimeout(measure, ms); }
    }
  });
})();
</script></div>`))

var placeholderTemplate = template.Must(template.New("placeholder").Parse(
	`<div class="mv-placeholder{{if .Class}} {{.Class}}{{end}}" role="status"` +
		` style="display:flex;align-items:center;justify-content:center;min-height:{{.Height}}px;color:#6b7280{{range .Style}};{{.}}{{end}}">{{.Text}}</div>`))

var noticeTemplate = template.Must(template.New("notice").Parse(
	`<div class="mv-container{{if .Class}} {{.Class}}{{end}}"{{if .Style}} style="{{range .Style}}{{.}};{{end}}"{{end}}>{{.Notice}}</div>`))

type documentData struct {
	Lang          string
	Title         string
	RemoteBlocked bool
	Body          template.HTML
}

type hostData struct {
	ID             string
	Class          string
	Style          []string
	Title          string
	Document       string
	Height         int
	MinHeight      int
	FallbackHeight int
	Settle         string
	State          string
	Nonce          string
}

type placeholderData struct {
	Class  string
	Style  []string
	Height int
	Text   string
}

type noticeData struct {
	Class  string
	Style  []string
	Notice template.HTML
}

func execute(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// settleAttr encodes settle delays as comma separated milliseconds.
func settleAttr(delays []time.Duration) string {
	parts := make([]string, 0, len(delays))
	for _, d := range delays {
		if d < 0 {
			continue
		}
		parts = append(parts, strconv.FormatInt(d.Milliseconds(), 10))
	}
	return strings.Join(parts, ",")
}
