package selector

import (
	"strings"

	"golang.org/x/net/html"
)

// Pattern syntax, a small CSS subset:
//
//	tag            element name
//	#id            id token, substring match
//	.class         class token, prefix match
//	[attr]         attribute present
//	[attr=val]     exact attribute value
//	[attr^=val]    attribute value prefix
//	[attr*=val]    attribute value substring
//
// Parts may stack attribute groups ("div[role=textbox][class*=slate]") and
// combine with spaces as descendant combinators. class/id comparisons are
// loose on purpose: the host build mangles "username" into "username_c19a55"
// and the suffix changes per release.

type attrCond struct {
	key string
	op  byte // 0 = present, '=' exact, '^' prefix, '*' substring
	val string
}

type part struct {
	tag   string
	id    string // substring match on id attr
	class string // prefix match on any class token
	attrs []attrCond
}

// parsePattern splits a pattern into descendant parts.
func parsePattern(pat string) []part {
	fields := strings.Fields(pat)
	parts := make([]part, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, parsePart(f))
	}
	return parts
}

func parsePart(sel string) part {
	var p part

	// Peel attribute groups off the tail.
	for {
		open := strings.LastIndexByte(sel, '[')
		if open < 0 || !strings.HasSuffix(sel, "]") {
			break
		}
		group := sel[open+1 : len(sel)-1]
		sel = sel[:open]

		var c attrCond
		if eq := strings.IndexByte(group, '='); eq >= 0 {
			c.key = group[:eq]
			c.val = strings.Trim(group[eq+1:], `"'`)
			c.op = '='
			switch {
			case strings.HasSuffix(c.key, "^"):
				c.key = c.key[:len(c.key)-1]
				c.op = '^'
			case strings.HasSuffix(c.key, "*"):
				c.key = c.key[:len(c.key)-1]
				c.op = '*'
			}
		} else {
			c.key = group
		}
		p.attrs = append([]attrCond{c}, p.attrs...)
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		p.id = sel[idx+1:]
		sel = sel[:idx]
	}
	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		p.class = sel[idx+1:]
		sel = sel[:idx]
	}
	p.tag = sel
	return p
}

// matchesPattern reports whether n matches the full pattern: the last part
// must match n and earlier parts must match ancestors in order.
func matchesPattern(n *html.Node, pat string) bool {
	parts := parsePattern(pat)
	if len(parts) == 0 {
		return false
	}
	if !matchesPart(n, parts[len(parts)-1]) {
		return false
	}

	anc := n.Parent
	for i := len(parts) - 2; i >= 0; i-- {
		for anc != nil && !matchesPart(anc, parts[i]) {
			anc = anc.Parent
		}
		if anc == nil {
			return false
		}
		anc = anc.Parent
	}
	return true
}

func matchesPart(n *html.Node, p part) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if p.tag != "" && n.Data != p.tag {
		return false
	}
	if p.id != "" && !strings.Contains(attr(n, "id"), p.id) {
		return false
	}
	if p.class != "" {
		found := false
		for _, c := range strings.Fields(attr(n, "class")) {
			if strings.HasPrefix(c, p.class) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, c := range p.attrs {
		val, ok := lookupAttr(n, c.key)
		if !ok {
			return false
		}
		switch c.op {
		case '=':
			if val != c.val {
				return false
			}
		case '^':
			if !strings.HasPrefix(val, c.val) && !tokenPrefix(val, c.val) {
				return false
			}
		case '*':
			if !strings.Contains(val, c.val) {
				return false
			}
		}
	}
	return true
}

// tokenPrefix reports whether any whitespace-separated token of val starts
// with prefix. [class^=messageContent] must match class="messageContent_ab
// cozy_cd" regardless of token order.
func tokenPrefix(val, prefix string) bool {
	for _, tok := range strings.Fields(val) {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

// Match reports whether n matches a single pattern. Exported for callers
// that combine pattern checks with their own tree walks.
func Match(n *html.Node, pattern string) bool {
	return matchesPattern(n, pattern)
}

// Walk visits root and every descendant in document order.
func Walk(root *html.Node, fn func(*html.Node)) {
	walk(root, fn)
}

// firstMatch walks root in document order and returns the first matching
// element, or nil.
func firstMatch(root *html.Node, pat string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) {
		if found == nil && matchesPattern(n, pat) {
			found = n
		}
	})
	return found
}

// walk visits root and every descendant element in document order.
func walk(root *html.Node, fn func(*html.Node)) {
	if root == nil {
		return
	}
	fn(root)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// toCSS converts one pattern to a standards CSS selector. Loose class/id
// parts become substring attribute selectors, the closest real-CSS
// equivalent of token-prefix matching.
func toCSS(pat string) string {
	fields := strings.Fields(pat)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		p := parsePart(f)
		var sb strings.Builder
		sb.WriteString(p.tag)
		if p.id != "" {
			sb.WriteString(`[id*="` + p.id + `"]`)
		}
		if p.class != "" {
			sb.WriteString(`[class*="` + p.class + `"]`)
		}
		for _, c := range p.attrs {
			switch c.op {
			case 0:
				sb.WriteString("[" + c.key + "]")
			case '=':
				sb.WriteString(`[` + c.key + `="` + c.val + `"]`)
			case '^':
				// Token-prefix degrades to substring in real CSS.
				sb.WriteString(`[` + c.key + `*="` + c.val + `"]`)
			case '*':
				sb.WriteString(`[` + c.key + `*="` + c.val + `"]`)
			}
		}
		out = append(out, sb.String())
	}
	return strings.Join(out, " ")
}
