package compose

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"github.com/chatglot/chatglot/selector"
)

// RodDriver delivers input to the editor of a live page. Key and text
// events go through CDP so the page sees trusted input; selection and
// paste are simulated in-page because CDP has no clipboard primitive.
type RodDriver struct {
	page      *rod.Page
	editorCSS string
	leafCSS   string
}

// NewRodDriver creates a driver addressing the editor resolved by reg.
func NewRodDriver(page *rod.Page, reg *selector.Registry) *RodDriver {
	return &RodDriver{
		page:      page,
		editorCSS: reg.CSS(selector.Editor),
		leafCSS:   reg.CSS(selector.EditorLeaf),
	}
}

func (d *RodDriver) Focus(ctx context.Context) error {
	res, err := d.page.Context(ctx).Eval(`(q) => {
		const el = document.querySelector(q);
		if (!el) return false;
		el.focus();
		return true;
	}`, d.editorCSS)
	if err != nil {
		return fmt.Errorf("compose: focus editor: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("compose: editor not found: %s", d.editorCSS)
	}
	return nil
}

func (d *RodDriver) Text(ctx context.Context) (string, error) {
	res, err := d.page.Context(ctx).Eval(`(q, leafQ) => {
		const el = document.querySelector(q);
		if (!el) return '';
		const leaves = el.querySelectorAll(leafQ);
		if (leaves.length > 0) {
			let out = '';
			for (const leaf of leaves) out += leaf.textContent;
			return out;
		}
		return el.innerText !== undefined ? el.innerText : (el.textContent || '');
	}`, d.editorCSS, d.leafCSS)
	if err != nil {
		return "", fmt.Errorf("compose: read editor: %w", err)
	}
	return res.Value.Str(), nil
}

func (d *RodDriver) SelectAll(ctx context.Context) error {
	res, err := d.page.Context(ctx).Eval(`(q) => {
		const el = document.querySelector(q);
		if (!el) return false;
		const sel = window.getSelection();
		const range = document.createRange();
		range.selectNodeContents(el);
		sel.removeAllRanges();
		sel.addRange(range);
		return true;
	}`, d.editorCSS)
	if err != nil {
		return fmt.Errorf("compose: select all: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("compose: editor not found: %s", d.editorCSS)
	}
	return nil
}

func (d *RodDriver) Backspace(ctx context.Context) error {
	if err := d.page.Context(ctx).Keyboard.Type(input.Backspace); err != nil {
		return fmt.Errorf("compose: backspace: %w", err)
	}
	return nil
}

func (d *RodDriver) InsertRune(ctx context.Context, r rune) error {
	if err := d.page.Context(ctx).InsertText(string(r)); err != nil {
		return fmt.Errorf("compose: insert %q: %w", r, err)
	}
	return nil
}

func (d *RodDriver) Paste(ctx context.Context, text string) error {
	res, err := d.page.Context(ctx).Eval(`(q, text) => {
		const el = document.querySelector(q);
		if (!el) return false;
		const data = new DataTransfer();
		data.setData('text/plain', text);
		const ev = new ClipboardEvent('paste', {
			clipboardData: data,
			bubbles: true,
			cancelable: true,
		});
		el.dispatchEvent(ev);
		return true;
	}`, d.editorCSS, text)
	if err != nil {
		return fmt.Errorf("compose: paste: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("compose: editor not found: %s", d.editorCSS)
	}
	return nil
}
