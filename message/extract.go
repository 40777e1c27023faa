package message

import (
	"bytes"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/chatglot/chatglot/selector"
)

// KeyAttr is the addressing attribute the injected page runtime assigns to
// discovered message nodes. It is a handle only; no processing flags are
// ever stored in the DOM.
const KeyAttr = "data-cg-key"

// Extractor validates candidate DOM nodes and produces Records.
type Extractor struct {
	sel    *selector.Registry
	states *Table
}

// NewExtractor creates an Extractor using the given registry and state table.
func NewExtractor(sel *selector.Registry, states *Table) *Extractor {
	return &Extractor{sel: sel, states: states}
}

// Extract validates node and returns its Record. The bool result is false
// when the node is not a message, has no extractable text, or was already
// processed. On success the record's Processed flag is set in the state
// table before returning, so repeated mutation callbacks for the same node
// are idempotent.
func (e *Extractor) Extract(node *html.Node) (*Record, bool) {
	item := e.messageNode(node)
	if item == nil {
		return nil, false
	}

	contents := e.FindAllContents(item)
	main := mainContent(contents)
	if main == nil || main.Text == "" {
		return nil, false
	}

	id := nodeAttr(item, "id")
	if id == "" {
		id = newID()
	}

	// Dedup by the runtime's addressing key when present: it is stable
	// across repeated observations of the same element, DOM ids are not
	// guaranteed and synthesized ids never repeat.
	dedup := nodeAttr(item, KeyAttr)
	if dedup == "" {
		dedup = id
	}
	if !e.states.MarkProcessed(dedup) {
		return nil, false
	}

	rec := &Record{
		ID:        id,
		Key:       nodeAttr(item, KeyAttr),
		Text:      main.Text,
		Author:    e.author(item),
		Timestamp: e.timestamp(item),
		Contents:  contents,
	}
	return rec, true
}

// FindAllContents returns the message's translatable regions in reading
// order: the reply preview first when present, then the main body. Regions
// with empty text are omitted.
func (e *Extractor) FindAllContents(node *html.Node) []Content {
	item := e.messageNode(node)
	if item == nil {
		return nil
	}
	base := nodeAttr(item, KeyAttr)
	if base == "" {
		base = nodeAttr(item, "id")
	}

	var out []Content

	if wrapper := e.sel.FirstMatch(item, selector.Reply); wrapper != nil {
		el := e.sel.FirstMatch(wrapper, selector.ReplyContent)
		if el == nil {
			el = e.sel.FirstMatch(wrapper, selector.Content)
		}
		if el == nil {
			el = wrapper
		}
		if text := collectText(el); text != "" {
			out = append(out, Content{
				Key:      regionKey(base, KindReply),
				Element:  el,
				Text:     text,
				HTML:     innerHTML(el),
				Markdown: markdownIfRich(el),
				Kind:     KindReply,
			})
		}
	}

	if el, text := e.mainText(item); text != "" {
		out = append(out, Content{
			Key:      regionKey(base, KindMain),
			Element:  el,
			Text:     text,
			HTML:     innerHTML(el),
			Markdown: markdownIfRich(el),
			Kind:     KindMain,
		})
	}

	return out
}

// mainText applies the text selection policy: content patterns in registry
// order, skipping elements nested in a reply wrapper; when none match,
// fall back to a detached clone with non-text UI subtrees stripped. The
// live tree is never mutated.
func (e *Extractor) mainText(item *html.Node) (*html.Node, string) {
	for _, pat := range e.sel.Resolve(selector.Content) {
		var found *html.Node
		selector.Walk(item, func(n *html.Node) {
			if found == nil && selector.Match(n, pat) && !e.inReply(item, n) {
				found = n
			}
		})
		if found != nil {
			if text := collectText(found); text != "" {
				return found, text
			}
		}
	}

	// Fallback: strip chrome and reply subtrees from a clone and take what
	// text remains.
	clone := cloneTree(item)
	e.stripSubtrees(clone)
	return item, collectText(clone)
}

// inReply reports whether n sits inside a reply wrapper, stopping the
// ancestor walk at item.
func (e *Extractor) inReply(item, n *html.Node) bool {
	for p := n.Parent; p != nil && p != item.Parent; p = p.Parent {
		if e.sel.Matches(p, selector.Reply) {
			return true
		}
	}
	return false
}

func (e *Extractor) stripSubtrees(root *html.Node) {
	var doomed []*html.Node
	selector.Walk(root, func(n *html.Node) {
		if n == root {
			return
		}
		if e.sel.Matches(n, selector.Chrome) || e.sel.Matches(n, selector.Reply) {
			doomed = append(doomed, n)
		}
	})
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// messageNode normalizes a candidate to the message item element: the node
// itself when it matches, the nearest matching descendant otherwise.
func (e *Extractor) messageNode(node *html.Node) *html.Node {
	if node == nil {
		return nil
	}
	if e.sel.Matches(node, selector.Message) || e.sel.Matches(node, selector.Group) {
		return node
	}
	if n := e.sel.FirstMatch(node, selector.Message); n != nil {
		return n
	}
	return e.sel.FirstMatch(node, selector.Group)
}

// author finds the message author, skipping the reply preview's username.
func (e *Extractor) author(item *html.Node) string {
	for _, pat := range e.sel.Resolve(selector.Username) {
		var found *html.Node
		selector.Walk(item, func(n *html.Node) {
			if found == nil && selector.Match(n, pat) && !e.inReply(item, n) {
				found = n
			}
		})
		if found != nil {
			if name := collectText(found); name != "" {
				return name
			}
		}
	}
	return AuthorUnknown
}

func (e *Extractor) timestamp(item *html.Node) string {
	n := e.sel.FirstMatch(item, selector.Timestamp)
	if n == nil {
		return ""
	}
	if dt := nodeAttr(n, "datetime"); dt != "" {
		return dt
	}
	return collectText(n)
}

func mainContent(contents []Content) *Content {
	for i := range contents {
		if contents[i].Kind == KindMain {
			return &contents[i]
		}
	}
	return nil
}

func regionKey(base string, kind Kind) string {
	return base + ":" + string(kind)
}

// collectText extracts trimmed visible text from a subtree, joining text
// nodes with single spaces.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

// innerHTML serializes el's children. The result is what a restore writes
// back into the region, so nothing is trimmed or normalized here.
func innerHTML(el *html.Node) string {
	var buf bytes.Buffer
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}

// cloneTree deep-copies a node subtree so fallback extraction can prune
// without touching the live tree.
func cloneTree(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      slices.Clone(n.Attr),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneTree(child))
	}
	return c
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
