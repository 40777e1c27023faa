// Package selector is the structural pattern registry for locating elements
// in the host chat DOM.
//
// The host page's class names are build-generated and unstable, so patterns
// match by token prefix and substring rather than exact value. Each category
// holds an ordered pattern list; the first pattern that matches wins.
// Absence of a match is a normal outcome, not an error; callers retry or
// fall back.
package selector

import (
	"strings"

	"golang.org/x/net/html"
)

// Category names a structural role in the chat DOM.
type Category string

const (
	// Scroller is the root messages container the watcher observes.
	Scroller Category = "scroller"
	// Message is a single message list item.
	Message Category = "message"
	// Group is a message group wrapper (several messages by one author).
	Group Category = "group"
	// Content is the primary text region of a message.
	Content Category = "content"
	// Reply is the quoted reply-preview wrapper inside a message.
	Reply Category = "reply"
	// ReplyContent is the text region inside a reply wrapper.
	ReplyContent Category = "reply_content"
	// Username is the message author element.
	Username Category = "username"
	// Timestamp is the message timestamp element.
	Timestamp Category = "timestamp"
	// Editor is the rich-text compose box.
	Editor Category = "editor"
	// EditorLeaf marks the editor's internal leaf text nodes.
	EditorLeaf Category = "editor_leaf"
	// Chrome lists non-text UI subtrees stripped during text extraction
	// (buttons, embeds, hover toolbars, reactions).
	Chrome Category = "chrome"
)

// Registry resolves categories to ordered pattern lists.
type Registry struct {
	patterns map[Category][]string
}

// New returns a Registry with the built-in defaults, overridden per
// category by overrides (a nil or empty list keeps the defaults).
func New(overrides map[Category][]string) *Registry {
	r := &Registry{patterns: make(map[Category][]string, len(defaults))}
	for cat, pats := range defaults {
		r.patterns[cat] = pats
	}
	for cat, pats := range overrides {
		if len(pats) > 0 {
			r.patterns[cat] = pats
		}
	}
	return r
}

// Resolve returns the ordered pattern list for a category.
func (r *Registry) Resolve(cat Category) []string {
	return r.patterns[cat]
}

// FirstMatch returns the first element under root (including root itself)
// matched by the category's patterns, trying patterns in order. Returns nil
// when nothing matches.
func (r *Registry) FirstMatch(root *html.Node, cat Category) *html.Node {
	for _, pat := range r.patterns[cat] {
		if n := firstMatch(root, pat); n != nil {
			return n
		}
	}
	return nil
}

// AllMatches returns every element under root matched by any of the
// category's patterns, in document order, without duplicates.
func (r *Registry) AllMatches(root *html.Node, cat Category) []*html.Node {
	seen := make(map[*html.Node]bool)
	var out []*html.Node
	walk(root, func(n *html.Node) {
		if seen[n] {
			return
		}
		for _, pat := range r.patterns[cat] {
			if matchesPattern(n, pat) {
				seen[n] = true
				out = append(out, n)
				return
			}
		}
	})
	return out
}

// Matches reports whether n itself matches any pattern of the category.
func (r *Registry) Matches(n *html.Node, cat Category) bool {
	for _, pat := range r.patterns[cat] {
		if matchesPattern(n, pat) {
			return true
		}
	}
	return false
}

// CSS renders the category's patterns as a single standards CSS selector
// list for in-page querySelectorAll use. Token-prefix class patterns become
// [class*=...] substring selectors, the closest expressible equivalent.
func (r *Registry) CSS(cat Category) string {
	pats := r.patterns[cat]
	parts := make([]string, 0, len(pats))
	for _, pat := range pats {
		parts = append(parts, toCSS(pat))
	}
	return strings.Join(parts, ", ")
}

// defaults target a Discord-style chat DOM. Every category is overridable
// from configuration when the host page drifts.
var defaults = map[Category][]string{
	Scroller: {
		"ol[data-list-id=chat-messages]",
		"ol[class^=scrollerInner]",
		"div[class^=messagesWrapper]",
	},
	Message: {
		"li[id^=chat-messages]",
		"li[class^=messageListItem]",
	},
	Group: {
		"div[class^=groupStart]",
		"div[class*=message][class*=cozy]",
	},
	Content: {
		"div[id^=message-content]",
		"div[class^=messageContent]",
		"div[class*=markup]",
	},
	Reply: {
		"div[id^=message-reply-context]",
		"div[class^=repliedMessage]",
	},
	ReplyContent: {
		"div[class^=repliedTextContent]",
		"div[class^=repliedTextPreview] div[class*=markup]",
	},
	Username: {
		"span[class^=username]",
		"h3[class^=header] span[class*=username]",
	},
	Timestamp: {
		"time",
		"span[class^=timestamp]",
	},
	Editor: {
		"div[role=textbox][class*=slateTextArea]",
		"div[class^=editor] div[role=textbox]",
		"div[contenteditable=true][class*=editor]",
	},
	EditorLeaf: {
		"span[data-slate-string]",
		"span[data-slate-leaf]",
	},
	Chrome: {
		"button",
		"svg",
		"img",
		"video",
		"div[class^=buttonContainer]",
		"div[class^=embedWrapper]",
		"div[class^=attachment]",
		"div[class^=reactions]",
		"div[class^=hoverBar]",
		"div[id^=message-accessories]",
	},
}
