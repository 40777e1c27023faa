// Package message turns raw DOM candidates into normalized message records
// and owns the per-region processing state.
//
// The extractor never trusts the host DOM to be stable: it pattern-matches
// structure through the selector registry, and all processing flags live in
// an explicit side-table keyed by region key instead of attributes scribbled
// onto host elements.
package message

import (
	"golang.org/x/net/html"

	"github.com/chatglot/chatglot/idgen"
)

// Kind tags one translatable region of a message.
type Kind string

const (
	// KindMain is the primary message body.
	KindMain Kind = "main"
	// KindReply is the quoted reply-preview region.
	KindReply Kind = "reply"
)

// AuthorUnknown is the sentinel author when no username element is found.
const AuthorUnknown = "unknown"

// Record is a normalized chat message.
type Record struct {
	// ID is derived from the host DOM id when present, otherwise synthesized
	// (time-sortable UUID). Unique enough to avoid duplicate processing of
	// the same visual content within one DOM lifetime.
	ID string
	// Key is the page addressing handle assigned by the injected runtime
	// (data attribute on the live node). Empty for detached fixtures.
	Key string
	// Text is the primary region's trimmed text. Never empty.
	Text string
	// Author is the display name, or AuthorUnknown.
	Author string
	// Timestamp is ISO-8601 when the host exposes one, raw display text
	// otherwise.
	Timestamp string
	// Contents are the translatable regions, reply preview first.
	Contents []Content
}

// Content is one independently translatable region.
type Content struct {
	// Key addresses the region: record key (or ID) plus kind suffix.
	Key string
	// Element is a non-owning reference into the candidate's parsed tree.
	Element *html.Node
	// Text is the trimmed plain text of the region.
	Text string
	// HTML is the region's serialized inner markup at extraction time.
	// Restores write these exact bytes back so line breaks, links and
	// emphasis survive a translate-and-revert round trip.
	HTML string
	// Markdown is the Markdown rendition when the region carries rich
	// formatting worth preserving through translation; empty for plain text.
	Markdown string
	Kind     Kind
}

// Payload returns what should be sent for translation: Markdown when the
// region is rich, plain text otherwise.
func (c Content) Payload() string {
	if c.Markdown != "" {
		return c.Markdown
	}
	return c.Text
}

// newID synthesizes a record ID when the host DOM offers none.
var generate = idgen.Prefixed("msg_", idgen.UUIDv7())

func newID() string {
	return generate()
}
