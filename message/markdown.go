package message

import (
	"bytes"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// Rich regions (links, emphasis, inline code) are converted to Markdown
// before translation so the formatting survives the round trip. The
// fragment is sanitized down to inline formatting first: host chat HTML
// carries event handlers, generated classes, and tracking attributes that
// must not leak into the translation payload.

var (
	mdOnce sync.Once
	mdConv *converter.Converter
	mdSan  *bluemonday.Policy
)

func mdInit() {
	mdConv = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	mdSan = bluemonday.NewPolicy()
	mdSan.AllowElements("a", "b", "strong", "i", "em", "u", "s", "del",
		"code", "pre", "blockquote", "br", "p", "span")
	mdSan.AllowAttrs("href").OnElements("a")
}

// markdownIfRich returns the Markdown rendition of el when it contains
// formatting worth preserving, or "" for plain regions. Conversion is
// best-effort: any failure degrades to plain text.
func markdownIfRich(el *html.Node) string {
	if el == nil || !hasRichFormatting(el) {
		return ""
	}
	mdOnce.Do(mdInit)

	var buf bytes.Buffer
	if err := html.Render(&buf, el); err != nil {
		return ""
	}

	clean := mdSan.Sanitize(buf.String())
	md, err := mdConv.ConvertString(clean)
	if err != nil {
		return ""
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	return md
}

// RenderMarkdown renders translated Markdown back to sanitized HTML for
// display, so a rich region shows real links and emphasis instead of
// literal Markdown source. Returns "" on failure; callers fall back to
// plain text.
func RenderMarkdown(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	mdOnce.Do(mdInit)

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return ""
	}
	return strings.TrimSpace(mdSan.Sanitize(buf.String()))
}

func hasRichFormatting(el *html.Node) bool {
	rich := false
	var f func(*html.Node)
	f = func(n *html.Node) {
		if rich {
			return
		}
		if n != el && n.Type == html.ElementNode {
			switch n.Data {
			case "a", "b", "strong", "i", "em", "u", "s", "del", "code", "pre", "blockquote":
				rich = true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(el)
	return rich
}
