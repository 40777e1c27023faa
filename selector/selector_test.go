package selector

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const fixtureMessage = `
<li id="chat-messages-1188-9932" class="messageListItem_d5deea">
  <div class="message_d5deea cozy_d5deea groupStart_d5deea">
    <div id="message-reply-context-9932" class="repliedMessage_d5deea">
      <span class="username_f9f2ca">alice</span>
      <div class="repliedTextContent_d5deea markup_f8f345">original question</div>
    </div>
    <h3 class="header_f9f2ca">
      <span class="username_f9f2ca">bob</span>
      <time datetime="2026-02-12T10:00:00.000Z">Today at 10:00</time>
    </h3>
    <div id="message-content-9932" class="markup_f8f345 messageContent_f9f2ca">
      the actual answer
    </div>
    <div class="buttonContainer_d5deea"><button>react</button></div>
  </div>
</li>`

func parseFixture(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestFirstMatchOrderedPatterns(t *testing.T) {
	doc := parseFixture(t, fixtureMessage)
	r := New(nil)

	n := r.FirstMatch(doc, Content)
	if n == nil {
		t.Fatal("expected content match")
	}
	// First pattern (div[id^=message-content]) must win over the markup
	// class pattern even though both match elements in the tree.
	if got := attr(n, "id"); got != "message-content-9932" {
		t.Errorf("content id = %q, want message-content-9932", got)
	}
}

func TestFirstMatchAbsenceIsNil(t *testing.T) {
	doc := parseFixture(t, `<div class="unrelated">hi</div>`)
	r := New(nil)
	if n := r.FirstMatch(doc, Message); n != nil {
		t.Errorf("expected nil for no match, got %v", n.Data)
	}
}

func TestLooseClassAndIDMatching(t *testing.T) {
	doc := parseFixture(t, fixtureMessage)
	r := New(nil)

	// Class tokens carry generated suffixes; prefix matching must still hit.
	if n := r.FirstMatch(doc, Username); n == nil {
		t.Fatal("username_f9f2ca should match username prefix pattern")
	}
	if n := r.FirstMatch(doc, Reply); n == nil {
		t.Fatal("repliedMessage_d5deea should match reply pattern")
	}
	if n := r.FirstMatch(doc, Message); n == nil {
		t.Fatal("chat-messages id prefix should match message pattern")
	}
}

func TestMatchesDescendantCombinator(t *testing.T) {
	doc := parseFixture(t, fixtureMessage)
	r := New(map[Category][]string{
		Username: {"h3[class^=header] span[class^=username]"},
	})

	all := r.AllMatches(doc, Username)
	if len(all) != 1 {
		t.Fatalf("descendant pattern matched %d nodes, want 1 (header child only)", len(all))
	}
	if all[0].Parent == nil || !strings.HasPrefix(attr(all[0].Parent, "class"), "header") {
		t.Error("matched username outside the header")
	}
}

func TestStackedAttributeGroups(t *testing.T) {
	doc := parseFixture(t, fixtureMessage)
	pat := "div[class*=message][class*=cozy]"
	var hit *html.Node
	walk(doc, func(n *html.Node) {
		if hit == nil && matchesPattern(n, pat) {
			hit = n
		}
	})
	if hit == nil {
		t.Fatal("stacked attribute groups did not match")
	}
}

func TestOverridesReplaceDefaults(t *testing.T) {
	r := New(map[Category][]string{Content: {"p.bubble"}})
	got := r.Resolve(Content)
	if len(got) != 1 || got[0] != "p.bubble" {
		t.Errorf("Resolve(Content) = %v, want [p.bubble]", got)
	}
	// Untouched categories keep defaults.
	if len(r.Resolve(Message)) == 0 {
		t.Error("Message defaults lost after override")
	}
}

func TestCSSRendering(t *testing.T) {
	r := New(map[Category][]string{
		Content: {"div[id^=message-content]", "div.markup"},
	})
	css := r.CSS(Content)
	for _, want := range []string{`div[id*="message-content"]`, `div[class*="markup"]`, ", "} {
		if !strings.Contains(css, want) {
			t.Errorf("CSS() = %q, missing %q", css, want)
		}
	}
}
