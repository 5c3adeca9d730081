package sanitizer

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// ErrEventHandlerAttribute is returned when a policy tries to allow an on* attribute
	ErrEventHandlerAttribute = errors.New("event handler attributes cannot be allowed")
	// ErrUnsafeScheme is returned when a policy tries to allow an executable URI scheme
	ErrUnsafeScheme = errors.New("executable URI schemes cannot be allowed")
)

// unsafeSchemes can never be added to a policy, whatever the configuration says.
var unsafeSchemes = map[string]struct{}{
	"javascript": {},
	"vbscript":   {},
	"livescript": {},
	"blob":       {},
	"file":       {},
}

// styleValuePattern accepts plain CSS values and rgb()/rgba() colours only, so
// url(), expression() and escape sequences never survive.
var styleValuePattern = regexp.MustCompile(`^(?:[a-z0-9#%.,\s'"/!+_-]|rgba?\(\s*[0-9.,\s%]*\))*$`)

// PolicyConfig is the mutable description a Policy is built from.
type PolicyConfig struct {
	AllowedTags       []string
	AllowedAttributes []string
	AllowedURISchemes []string
	ForbiddenTags     []string
	AllowedStyles     []string
	// AllowDataImages admits data: URIs carrying base64 image payloads. Listing
	// "data" in AllowedURISchemes has the same effect.
	AllowDataImages bool
}

// Policy is an immutable sanitization policy. It is safe for concurrent use.
type Policy struct {
	allowedTags       []string
	allowedAttributes []string
	allowedSchemes    []string
	forbiddenTags     []string
	allowedStyles     []string
	allowDataImages   bool

	engine *bluemonday.Policy
}

// DefaultConfig returns the allow-list used for email bodies.
func DefaultConfig() PolicyConfig {
	return PolicyConfig{
		AllowedTags: []string{
			"div", "span", "p", "br", "strong", "b", "em", "i", "u", "s", "strike",
			"h1", "h2", "h3", "h4", "h5", "h6",
			"ul", "ol", "li", "dl", "dt", "dd",
			"blockquote", "a", "img",
			"table", "thead", "tbody", "tfoot", "tr", "td", "th", "caption", "col", "colgroup",
			"font", "center", "pre", "code", "hr", "small", "big", "sub", "sup",
		},
		AllowedAttributes: []string{
			"href", "src", "alt", "title", "width", "height", "style", "color", "bgcolor",
			"align", "valign", "cellspacing", "cellpadding", "border", "class", "id",
			"target", "rel", "face", "size", "colspan", "rowspan", "dir", "lang",
		},
		AllowedURISchemes: []string{"http", "https", "mailto", "tel", "callto", "cid", "xmpp"},
		ForbiddenTags:     []string{"script", "object", "embed", "form", "input", "button"},
		AllowedStyles: []string{
			"color", "background-color", "font", "font-family", "font-size", "font-style", "font-weight",
			"line-height", "letter-spacing", "text-align", "text-decoration", "text-transform",
			"vertical-align", "white-space", "word-break", "word-wrap", "overflow-wrap",
			"width", "max-width", "min-width", "height", "max-height", "min-height",
			"margin", "margin-top", "margin-right", "margin-bottom", "margin-left",
			"padding", "padding-top", "padding-right", "padding-bottom", "padding-left",
			"border", "border-top", "border-right", "border-bottom", "border-left",
			"border-color", "border-style", "border-width", "border-collapse", "border-spacing", "border-radius",
			"display", "float", "clear", "list-style", "list-style-type", "table-layout",
		},
		AllowDataImages: true,
	}
}

// DefaultPolicy returns the email policy built from DefaultConfig.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultConfig())
	if err != nil {
		panic(fmt.Sprintf("sanitizer: default policy is invalid: %v", err))
	}
	return p
}

// NewPolicy validates cfg and compiles it into an immutable Policy.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	forbidden := normalize(cfg.ForbiddenTags)
	forbiddenSet := toSet(forbidden)

	var tags []string
	for _, tag := range normalize(cfg.AllowedTags) {
		if _, ok := forbiddenSet[tag]; ok {
			continue
		}
		tags = append(tags, tag)
	}

	attrs := normalize(cfg.AllowedAttributes)
	for _, attr := range attrs {
		if strings.HasPrefix(attr, "on") {
			return nil, fmt.Errorf("%w: %s", ErrEventHandlerAttribute, attr)
		}
	}

	dataImages := cfg.AllowDataImages
	var schemes []string
	for _, scheme := range normalize(cfg.AllowedURISchemes) {
		if _, ok := unsafeSchemes[scheme]; ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsafeScheme, scheme)
		}
		// data: is never allowed wholesale, only as an inline image payload.
		if scheme == "data" {
			dataImages = true
			continue
		}
		schemes = append(schemes, scheme)
	}

	styles := normalize(cfg.AllowedStyles)
	for _, prop := range styles {
		switch prop {
		case "position", "z-index", "top", "left", "right", "bottom", "behavior", "-moz-binding":
			return nil, fmt.Errorf("style property %q cannot be allowed", prop)
		}
	}

	p := &Policy{
		allowedTags:       tags,
		allowedAttributes: attrs,
		allowedSchemes:    schemes,
		forbiddenTags:     forbidden,
		allowedStyles:     styles,
		allowDataImages:   dataImages,
	}
	p.engine = p.compile()
	return p, nil
}

// compile turns the policy into a bluemonday policy.
func (p *Policy) compile() *bluemonday.Policy {
	bm := bluemonday.NewPolicy()
	bm.AllowElements(p.allowedTags...)

	// Attribute registrations on elements also allow the element itself in
	// bluemonday, so they are only made for tags the policy allows.
	tagSet := toSet(p.allowedTags)
	onAllowed := func(tags ...string) []string {
		var out []string
		for _, t := range tags {
			if _, ok := tagSet[t]; ok {
				out = append(out, t)
			}
		}
		return out
	}

	// bluemonday drops attribute-less elements outside its own default set;
	// these may lose every attribute and still carry text.
	if els := onAllowed("a", "font", "big"); len(els) > 0 {
		bm.AllowNoAttrs().OnElements(els...)
	}

	for _, attr := range p.allowedAttributes {
		switch attr {
		case "href":
			if els := onAllowed("a"); len(els) > 0 {
				bm.AllowAttrs("href").OnElements(els...)
			}
		case "src":
			if els := onAllowed("img"); len(els) > 0 {
				bm.AllowAttrs("src").OnElements(els...)
			}
		case "style":
			// Handled by the style policy below.
		default:
			bm.AllowAttrs(attr).Globally()
		}
	}

	bm.RequireParseableURLs(true)
	bm.AllowRelativeURLs(false)
	bm.AllowURLSchemes(p.allowedSchemes...)
	if p.allowDataImages {
		bm.AllowDataURIImages()
	}

	if len(p.allowedStyles) > 0 && contains(p.allowedAttributes, "style") {
		bm.AllowStyles(p.allowedStyles...).Matching(styleValuePattern).Globally()
	}

	// Void elements never close, so registering them would leave bluemonday
	// skipping everything after the first one.
	var skip []string
	for _, tag := range p.forbiddenTags {
		if !isVoidElement(tag) {
			skip = append(skip, tag)
		}
	}
	if len(skip) > 0 {
		bm.SkipElementsContent(skip...)
	}
	bm.SkipElementsContent("style", "title", "noscript", "iframe", "frameset", "noframes", "noembed", "textarea", "select", "template", "svg", "math")

	return bm
}

// AllowedTags returns the effective allowed tags, forbidden tags excluded.
func (p *Policy) AllowedTags() []string { return clone(p.allowedTags) }

// AllowedAttributes returns the allowed attribute names.
func (p *Policy) AllowedAttributes() []string { return clone(p.allowedAttributes) }

// AllowedURISchemes returns the allowed URI schemes. data: is reported when data images are on.
func (p *Policy) AllowedURISchemes() []string {
	out := clone(p.allowedSchemes)
	if p.allowDataImages {
		out = append(out, "data")
	}
	return out
}

// ForbiddenTags returns the tags removed together with their content.
func (p *Policy) ForbiddenTags() []string { return clone(p.forbiddenTags) }

// AllowsTag reports whether tag survives sanitization.
func (p *Policy) AllowsTag(tag string) bool {
	return contains(p.allowedTags, strings.ToLower(tag))
}

func isVoidElement(tag string) bool {
	switch tag {
	case "area", "base", "br", "col", "embed", "hr", "img", "input",
		"link", "meta", "param", "source", "track", "wbr", "keygen":
		return true
	}
	return false
}

func normalize(in []string) []string {
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func toSet(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, v := range in {
		set[v] = struct{}{}
	}
	return set
}

func contains(sorted []string, v string) bool {
	i := sort.SearchStrings(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
