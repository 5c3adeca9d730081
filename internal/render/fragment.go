package render

import (
	"html/template"
	"strings"
)

// scopedRules are applied under the fragment's own container class. Every
// selector starts with {scope}.
var scopedRules = []string{
	`{scope}{display:block;max-width:100%;overflow:auto;contain:content;position:relative;font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;line-height:1.6;color:#374151;word-wrap:break-word;overflow-wrap:break-word}`,
	`{scope} *{position:static !important;max-width:100%;box-sizing:border-box}`,
	`{scope} img{max-width:100%;height:auto}`,
	`{scope} table{max-width:100%;border-collapse:collapse}`,
	`{scope} td,{scope} th{padding:8px;border:1px solid #e5e7eb}`,
	`{scope} a{color:#3b82f6;text-decoration:underline}`,
	`{scope} blockquote{border-left:4px solid #e5e7eb;margin:16px 0;padding-left:16px;color:#6b7280}`,
	`{scope} pre{background:#f3f4f6;padding:16px;border-radius:4px;overflow-x:auto;white-space:pre-wrap}`,
}

var fragmentTemplate = template.Must(template.New("fragment").Parse(
	`<div class="mv-scope mv-{{.ID}}{{if .Class}} {{.Class}}{{end}}"{{if .Style}} style="{{range .Style}}{{.}};{{end}}"{{end}}>` +
		`<style>{{.CSS}}</style>{{.Body}}</div>`))

type fragmentData struct {
	ID    string
	Class string
	Style []string
	CSS   template.CSS
	Body  template.HTML
}

// scopedCSS returns the container rules for one fragment. id must be a
// render ID, which only holds hex digits and dashes.
func scopedCSS(id string) template.CSS {
	scope := ".mv-scope.mv-" + id
	var b strings.Builder
	for _, rule := range scopedRules {
		b.WriteString(strings.ReplaceAll(rule, "{scope}", scope))
	}
	return template.CSS(b.String())
}
