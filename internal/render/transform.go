package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// namespacePrefix keeps ids and classes inside inline fragments from matching
// host page selectors.
const namespacePrefix = "mv-"

// TransformOptions selects the post-sanitize rewrites to apply.
type TransformOptions struct {
	// BlockRemoteImages removes http(s) and protocol-relative image sources.
	BlockRemoteImages bool
	// BlockedAlt is set as alt text on blocked images that have none.
	BlockedAlt string
	// Namespace prefixes id and class attributes.
	Namespace bool
}

// TransformResult is a rewritten fragment plus what was found in it.
type TransformResult struct {
	HTML            string
	RemoteResources int
	RemoteBlocked   int
}

// Transformer rewrites sanitized fragments. It never adds markup the
// sanitizer would reject.
type Transformer struct {
	logger *zap.Logger
}

// NewTransformer creates a Transformer.
func NewTransformer(logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{logger: logger}
}

// Apply runs the requested rewrites over fragment. When nothing changes the
// fragment is returned byte for byte, unless Namespace is set: namespaced
// fragments are always re-serialized so stray end tags cannot close the
// container they are placed in.
func (t *Transformer) Apply(fragment string, opts TransformOptions) (TransformResult, error) {
	result := TransformResult{HTML: fragment}
	if strings.TrimSpace(fragment) == "" {
		return result, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return result, fmt.Errorf("failed to parse fragment: %w", err)
	}
	body := doc.Find("body")

	modified := opts.Namespace

	body.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if !isRemoteURL(src) {
			return
		}
		result.RemoteResources++
		if !opts.BlockRemoteImages {
			return
		}
		img.RemoveAttr("src")
		if alt, ok := img.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			if opts.BlockedAlt != "" {
				img.SetAttr("alt", opts.BlockedAlt)
			}
		}
		img.AddClass(namespacePrefix + "blocked")
		result.RemoteBlocked++
		modified = true
	})

	if opts.Namespace {
		body.Find("[id]").Each(func(_ int, s *goquery.Selection) {
			id, _ := s.Attr("id")
			id = strings.TrimSpace(id)
			if id == "" {
				s.RemoveAttr("id")
			} else if !strings.HasPrefix(id, namespacePrefix) {
				s.SetAttr("id", namespacePrefix+id)
			}
		})
		body.Find("[class]").Each(func(_ int, s *goquery.Selection) {
			class, _ := s.Attr("class")
			names := strings.Fields(class)
			for i, name := range names {
				if !strings.HasPrefix(name, namespacePrefix) {
					names[i] = namespacePrefix + name
				}
			}
			if len(names) == 0 {
				s.RemoveAttr("class")
			} else {
				s.SetAttr("class", strings.Join(names, " "))
			}
		})
	}

	if !modified {
		return result, nil
	}

	out, err := body.Html()
	if err != nil {
		return result, fmt.Errorf("failed to serialize fragment: %w", err)
	}
	result.HTML = out

	t.logger.Debug("Transformed fragment",
		zap.Int("remote_resources", result.RemoteResources),
		zap.Int("remote_blocked", result.RemoteBlocked),
		zap.Bool("namespaced", opts.Namespace))
	return result, nil
}

func isRemoteURL(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "//")
}
