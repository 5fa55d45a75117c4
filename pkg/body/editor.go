// Package body maintains the rich-text document of a composer session.  The
// document is held as an HTML string with a plain-text projection derived on
// every edit.
package body

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// ChangeFunc receives the document after every edit, in edit order.  The
// same value may be emitted more than once; consumers must treat emissions
// as idempotent.
type ChangeFunc func(html, text string)

// Editor is a continuously editable rich-text document.  It is not
// goroutine safe; the owning session serializes access.
type Editor struct {
	html     string
	text     string
	focused  bool
	selStart int // rune offsets into the plain-text projection
	selEnd   int
	onChange ChangeFunc
}

// NewEditor returns a ready Editor that reports edits to onChange.
func NewEditor(onChange ChangeFunc) *Editor {
	if onChange == nil {
		onChange = func(string, string) {}
	}
	return &Editor{onChange: onChange}
}

// HTML returns the current document markup.
func (e *Editor) HTML() string { return e.html }

// Text returns the current plain-text projection.
func (e *Editor) Text() string { return e.text }

// Focus records that the user placed the caret, as rune offsets into the
// plain-text projection.
func (e *Editor) Focus(start, end int) {
	e.focused = true
	e.selStart, e.selEnd = clampRange(start, end, e.text)
}

// Blur records that the editor lost focus.
func (e *Editor) Blur() {
	e.focused = false
}

// Selection returns the current caret range.
func (e *Editor) Selection() (start, end int) {
	return e.selStart, e.selEnd
}

// SetContent replaces the document with a user edit and emits the result.
func (e *Editor) SetContent(html string) {
	e.html = html
	e.text = Text(html)
	e.selStart, e.selEnd = clampRange(e.selStart, e.selEnd, e.text)
	e.emit()
}

// Replace swaps in programmatically produced content, such as a generated
// body.  When the editor is focused the caret position is preserved,
// clamped to the new document's valid range.
func (e *Editor) Replace(html string) {
	e.html = html
	e.text = Text(html)
	if e.focused {
		e.selStart, e.selEnd = clampRange(e.selStart, e.selEnd, e.text)
	} else {
		e.selStart, e.selEnd = 0, 0
	}
	e.emit()
}

// InsertImage reads an image file to completion, encodes it as an embedded
// base64 data URI and appends it to the document.  The read cannot be
// cancelled mid flight; if it fails no image is inserted and the error is
// returned to be surfaced.
func (e *Editor) InsertImage(r io.Reader, name, contentType string) error {
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("cannot embed %q: not an image type", contentType)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading image %q: %w", name, err)
	}
	uri := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	log.Debug().Str("module", "body").Str("name", name).Int("bytes", len(data)).
		Msg("Embedding image")
	e.insertTag(uri, name)
	return nil
}

// InsertImageURL appends an externally hosted image reference.  Unlike
// InsertImage this is synchronous, nothing needs to be read.
func (e *Editor) InsertImageURL(url string) {
	e.insertTag(url, "")
}

func (e *Editor) insertTag(src, alt string) {
	tag := `<img src="` + src + `"`
	if alt != "" {
		tag += ` alt="` + alt + `"`
	}
	tag += ` />`
	e.html += tag
	e.text = Text(e.html)
	e.emit()
}

func (e *Editor) emit() {
	e.onChange(e.html, e.text)
}

// clampRange keeps a caret range ordered and inside the document.
func clampRange(start, end int, text string) (int, int) {
	max := len([]rune(text))
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}
	if start > max {
		start = max
	}
	if end > max {
		end = max
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}
