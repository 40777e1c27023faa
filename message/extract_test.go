package message

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/chatglot/chatglot/selector"
)

const replyFixture = `
<li id="chat-messages-7" class="messageListItem_d5deea" data-cg-key="k7">
  <div id="message-reply-context-7" class="repliedMessage_d5deea">
    <span class="username_f9f2ca">alice</span>
    <div class="repliedTextContent_d5deea">where are you?</div>
  </div>
  <h3 class="header_f9f2ca">
    <span class="username_f9f2ca">bob</span>
    <time datetime="2026-02-12T10:00:00.000Z">Today at 10:00</time>
  </h3>
  <div id="message-content-7" class="markup_f8f345">on my way</div>
</li>`

const plainFixture = `
<li id="chat-messages-8" class="messageListItem_d5deea">
  <div id="message-content-8" class="markup_f8f345">hello there</div>
</li>`

// No content-class elements at all: only the clone-and-strip fallback
// can produce text.
const fallbackFixture = `
<li id="chat-messages-9" class="messageListItem_d5deea">
  <div class="somethingNew_ab12cd">
    surviving text
    <div class="buttonContainer_d5deea"><button>react</button></div>
    <div class="embedWrapper_d5deea">embed junk</div>
  </div>
</li>`

func parseBody(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Descend to the first element inside <body>.
	var body *html.Node
	var f func(*html.Node)
	f = func(n *html.Node) {
		if body == nil && n.Type == html.ElementNode && n.Data == "body" {
			body = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	t.Fatal("no element in fixture body")
	return nil
}

func newTestExtractor() (*Extractor, *Table) {
	states := NewTable()
	return NewExtractor(selector.New(nil), states), states
}

func TestExtractBasic(t *testing.T) {
	e, _ := newTestExtractor()
	rec, ok := e.Extract(parseBody(t, replyFixture))
	if !ok {
		t.Fatal("expected extraction")
	}
	if rec.ID != "chat-messages-7" {
		t.Errorf("ID = %q, want chat-messages-7", rec.ID)
	}
	if rec.Key != "k7" {
		t.Errorf("Key = %q, want k7", rec.Key)
	}
	if rec.Text != "on my way" {
		t.Errorf("Text = %q, want %q", rec.Text, "on my way")
	}
	if rec.Author != "bob" {
		t.Errorf("Author = %q, want bob", rec.Author)
	}
	if rec.Timestamp != "2026-02-12T10:00:00.000Z" {
		t.Errorf("Timestamp = %q", rec.Timestamp)
	}
}

func TestExtractIdempotent(t *testing.T) {
	e, _ := newTestExtractor()
	node := parseBody(t, plainFixture)

	if _, ok := e.Extract(node); !ok {
		t.Fatal("first extraction should succeed")
	}
	// Same visual content re-inserted: same DOM id, fresh parse.
	if _, ok := e.Extract(parseBody(t, plainFixture)); ok {
		t.Error("second extraction of the same node must be rejected")
	}
}

func TestFindAllContentsReplyThenMain(t *testing.T) {
	e, _ := newTestExtractor()
	contents := e.FindAllContents(parseBody(t, replyFixture))

	if len(contents) != 2 {
		t.Fatalf("got %d regions, want 2", len(contents))
	}
	if contents[0].Kind != KindReply || contents[0].Text != "where are you?" {
		t.Errorf("region 0 = %v %q, want reply region", contents[0].Kind, contents[0].Text)
	}
	if contents[1].Kind != KindMain || contents[1].Text != "on my way" {
		t.Errorf("region 1 = %v %q, want main region", contents[1].Kind, contents[1].Text)
	}
	if contents[0].Key == contents[1].Key {
		t.Error("regions must have independent keys")
	}
	if contents[0].Key != "k7:reply" || contents[1].Key != "k7:main" {
		t.Errorf("keys = %q, %q", contents[0].Key, contents[1].Key)
	}
}

func TestMainContentSkipsReplyWrapper(t *testing.T) {
	// The reply preview also matches content patterns; the main region
	// must not be resolved to it.
	fixture := `
<li id="chat-messages-5" class="messageListItem_d5deea">
  <div class="repliedMessage_d5deea">
    <div class="markup_f8f345">quoted text</div>
  </div>
  <div class="markup_f8f345">real text</div>
</li>`
	e, _ := newTestExtractor()
	rec, ok := e.Extract(parseBody(t, fixture))
	if !ok {
		t.Fatal("expected extraction")
	}
	if rec.Text != "real text" {
		t.Errorf("Text = %q, want %q (reply content must be skipped)", rec.Text, "real text")
	}
}

func TestFallbackStripsChromeWithoutMutatingLiveTree(t *testing.T) {
	e, _ := newTestExtractor()
	node := parseBody(t, fallbackFixture)

	rec, ok := e.Extract(node)
	if !ok {
		t.Fatal("expected fallback extraction")
	}
	if strings.Contains(rec.Text, "react") || strings.Contains(rec.Text, "embed junk") {
		t.Errorf("Text = %q, chrome subtrees not stripped", rec.Text)
	}
	if !strings.Contains(rec.Text, "surviving text") {
		t.Errorf("Text = %q, want surviving text", rec.Text)
	}

	// The live tree still contains the chrome elements.
	if selector.New(nil).FirstMatch(node, selector.Chrome) == nil {
		t.Error("live tree was mutated by fallback extraction")
	}
}

func TestExtractRejectsEmptyAndForeignNodes(t *testing.T) {
	e, _ := newTestExtractor()

	if _, ok := e.Extract(parseBody(t, `<div class="popout">not a message</div>`)); ok {
		t.Error("non-message node must be rejected")
	}
	empty := `<li id="chat-messages-6" class="messageListItem_x"><div id="message-content-6">   </div></li>`
	if _, ok := e.Extract(parseBody(t, empty)); ok {
		t.Error("empty-text message must be rejected")
	}
}

func TestExtractSynthesizesIDWhenAbsent(t *testing.T) {
	e, _ := newTestExtractor()
	fixture := `<li class="messageListItem_d5deea"><div class="messageContent_x">hi</div></li>`
	rec, ok := e.Extract(parseBody(t, fixture))
	if !ok {
		t.Fatal("expected extraction")
	}
	if rec.ID == "" {
		t.Error("ID must be synthesized when the DOM has none")
	}
}

func TestContentCapturesInnerMarkup(t *testing.T) {
	fixture := `<li id="chat-messages-11" class="messageListItem_d5deea"><div id="message-content-11" class="markup_f8f345">line one<br/>line two</div></li>`
	e, _ := newTestExtractor()
	rec, ok := e.Extract(parseBody(t, fixture))
	if !ok {
		t.Fatal("expected extraction")
	}
	main := rec.Contents[len(rec.Contents)-1]
	if main.HTML != "line one<br/>line two" {
		t.Errorf("HTML = %q, want the region markup verbatim", main.HTML)
	}
	// The joined text and the markup differ; restores must use the markup.
	if main.Text == main.HTML {
		t.Error("fixture must exercise text/markup divergence")
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := RenderMarkdown("**bold** text")
	if got != "<p><strong>bold</strong> text</p>" {
		t.Errorf("RenderMarkdown = %q", got)
	}
	if RenderMarkdown("   ") != "" {
		t.Error("blank input must render to empty")
	}

	// Raw HTML in the model output must not pass through.
	if out := RenderMarkdown(`<script>alert(1)</script>hi`); strings.Contains(out, "<script") {
		t.Errorf("RenderMarkdown = %q, script must be stripped", out)
	}
}

func TestMarkdownForRichContent(t *testing.T) {
	fixture := `
<li id="chat-messages-10" class="messageListItem_d5deea">
  <div id="message-content-10" class="markup_f8f345">
    see <a href="https://example.com">this</a> and <strong>hurry</strong>
  </div>
</li>`
	e, _ := newTestExtractor()
	rec, ok := e.Extract(parseBody(t, fixture))
	if !ok {
		t.Fatal("expected extraction")
	}
	main := rec.Contents[len(rec.Contents)-1]
	if main.Markdown == "" {
		t.Fatal("rich region should carry a Markdown payload")
	}
	if !strings.Contains(main.Markdown, "**hurry**") {
		t.Errorf("Markdown = %q, want bold marker", main.Markdown)
	}
	if main.Payload() != main.Markdown {
		t.Error("Payload() must prefer Markdown for rich regions")
	}

	// Plain regions carry no Markdown.
	e2, _ := newTestExtractor()
	rec2, _ := e2.Extract(parseBody(t, plainFixture))
	if rec2.Contents[0].Markdown != "" {
		t.Errorf("plain region Markdown = %q, want empty", rec2.Contents[0].Markdown)
	}
}
