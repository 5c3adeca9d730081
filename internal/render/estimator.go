package render

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Layout constants mirror the base styling of the isolated document.
const (
	bodyPadding        = 16.0
	fontSize           = 16.0
	lineHeightRatio    = 1.6
	avgCharWidth       = fontSize * 0.5
	cellPadding        = 8.0
	defaultImageHeight = 150.0
	preBoxPadding      = 32.0
	ruleHeight         = 18.0
)

// blockMargins lists the block elements the estimator breaks lines on, with
// the vertical margin each one adds.
var blockMargins = map[string]float64{
	"div": 0, "center": 0, "li": 0, "dt": 0, "dd": 0, "caption": 0,
	"p": 16, "ul": 16, "ol": 16, "dl": 16, "blockquote": 16,
	"h1": 21, "h2": 20, "h3": 19, "h4": 21, "h5": 22, "h6": 25,
}

var blockIndents = map[string]float64{
	"ul": 40, "ol": 40, "dd": 40,
	"blockquote": 20,
}

var fontScales = map[string]float64{
	"h1": 2, "h2": 1.5, "h3": 1.17, "h5": 0.83, "h6": 0.67,
	"small": 0.83, "big": 1.2,
}

// LayoutEstimator approximates the rendered height of a document without a
// browser. It gives isolated frames a sensible initial height that the
// in-page script refines later.
type LayoutEstimator struct {
	viewportWidth int
}

// NewLayoutEstimator creates an estimator for the given viewport width in pixels.
func NewLayoutEstimator(viewportWidth int) *LayoutEstimator {
	if viewportWidth <= 0 {
		viewportWidth = 640
	}
	return &LayoutEstimator{viewportWidth: viewportWidth}
}

// Measure implements Measurer.
func (e *LayoutEstimator) Measure(ctx context.Context, doc string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return 0, fmt.Errorf("failed to parse document: %w", err)
	}

	body := d.Find("body")
	if body.Length() == 0 {
		body = d.Selection
	}

	l := &layout{
		width:      float64(e.viewportWidth) - 2*bodyPadding,
		lineHeight: fontSize * lineHeightRatio,
		charWidth:  avgCharWidth,
	}
	for _, n := range body.Nodes {
		l.walk(n)
	}
	l.flush()

	return int(math.Ceil(l.height + 2*bodyPadding)), nil
}

// layout accumulates block heights for one containing block.
type layout struct {
	width      float64
	lineHeight float64
	charWidth  float64

	height float64
	// run is the width of inline content not yet broken into lines.
	run float64
}

func (l *layout) child(width, scale float64) *layout {
	if width < l.charWidth {
		width = l.charWidth
	}
	return &layout{
		width:      width,
		lineHeight: l.lineHeight * scale,
		charWidth:  l.charWidth * scale,
	}
}

func (l *layout) flush() {
	if l.run > 0 {
		l.height += math.Ceil(l.run/l.width) * l.lineHeight
		l.run = 0
	}
}

func (l *layout) walk(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			text := strings.Join(strings.Fields(c.Data), " ")
			l.run += float64(utf8.RuneCountInString(text)) * l.charWidth
		case html.ElementNode:
			l.element(c)
		}
	}
}

func (l *layout) element(n *html.Node) {
	switch n.Data {
	case "head", "style", "script", "title", "template":
		return
	case "br":
		if l.run == 0 {
			l.height += l.lineHeight
		}
		l.flush()
	case "img":
		l.flush()
		l.height += l.image(n)
	case "hr":
		l.flush()
		l.height += ruleHeight
	case "pre":
		l.flush()
		text := goquery.NewDocumentFromNode(n).Text()
		lines := strings.Count(strings.TrimRight(text, "\n"), "\n") + 1
		l.height += float64(lines)*l.lineHeight + preBoxPadding + 16
	case "table":
		l.flush()
		l.height += l.table(n)
	default:
		margin, block := blockMargins[n.Data]
		if !block {
			if scale, ok := fontScales[n.Data]; ok {
				inner := l.child(l.width, scale)
				inner.walk(n)
				l.run += inner.run
				l.height += inner.height
				return
			}
			l.walk(n)
			return
		}
		l.flush()
		scale, ok := fontScales[n.Data]
		if !ok {
			scale = 1
		}
		inner := l.child(l.width-blockIndents[n.Data], scale)
		inner.walk(n)
		inner.flush()
		l.height += inner.height + margin
	}
}

// image returns the rendered height of an img, scaled down when it is wider
// than the containing block.
func (l *layout) image(n *html.Node) float64 {
	w := pixelAttr(n, "width")
	h := pixelAttr(n, "height")
	switch {
	case w > 0 && h > 0:
		if w > l.width {
			return h * l.width / w
		}
		return h
	case h > 0:
		return h
	case w > 0:
		return math.Min(w, l.width) / 2
	default:
		return defaultImageHeight
	}
}

func (l *layout) table(n *html.Node) float64 {
	t := goquery.NewDocumentFromNode(n).Selection
	rows := t.ChildrenFiltered("tr").AddSelection(t.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr"))

	var height float64
	t.ChildrenFiltered("caption").Each(func(_ int, c *goquery.Selection) {
		inner := l.child(l.width, 1)
		inner.walk(c.Get(0))
		inner.flush()
		height += inner.height
	})

	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td, th")
		count := cells.Length()
		if count == 0 {
			return
		}
		cellWidth := l.width/float64(count) - 2*cellPadding
		var rowHeight float64
		cells.Each(func(_ int, cell *goquery.Selection) {
			inner := l.child(cellWidth, 1)
			inner.walk(cell.Get(0))
			inner.flush()
			rowHeight = math.Max(rowHeight, inner.height)
		})
		height += rowHeight + 2*cellPadding + 1
	})
	return height
}

// pixelAttr parses "600" or "600px". Percentages and other units give 0.
func pixelAttr(n *html.Node, name string) float64 {
	for _, a := range n.Attr {
		if a.Key != name {
			continue
		}
		v := strings.TrimSuffix(strings.TrimSpace(a.Val), "px")
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return 0
		}
		return f
	}
	return 0
}
