package shader_go

import (
	"bytes"
	"strings"
)

// / A mutable, growable script text buffer. All rewriting done by the
// / preprocessor goes through Splice / ReplaceSection so that outstanding
// / cursors can be re-indexed by the returned delta.
type TextBuffer struct {
	Data []byte
}

func NewTextBuffer(text string) *TextBuffer {
	ret := TextBuffer{}
	ret.Data = []byte(text)
	return &ret
}

func (this *TextBuffer) String() string { return string(this.Data) }

func (this *TextBuffer) Len() int { return len(this.Data) }

func (this *TextBuffer) At(i int) byte {
	if i < 0 || i >= len(this.Data) {
		return 0
	}
	return this.Data[i]
}

// / Substring [start, start+length), clamped to the buffer.
func (this *TextBuffer) Slice(start, length int) string {
	if start < 0 {
		start = 0
	}
	end := start + length
	if end > len(this.Data) {
		end = len(this.Data)
	}
	if start >= end {
		return ""
	}
	return string(this.Data[start:end])
}

// / First index >= from of any byte in chars, or -1.
func (this *TextBuffer) IndexAny(chars string, from int) int {
	if from >= len(this.Data) || from < 0 {
		return -1
	}
	idx := bytes.IndexAny(this.Data[from:], chars)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// / First index >= from of sub, or -1.
func (this *TextBuffer) Index(sub string, from int) int {
	if from >= len(this.Data) || from < 0 {
		return -1
	}
	idx := bytes.Index(this.Data[from:], []byte(sub))
	if idx < 0 {
		return -1
	}
	return from + idx
}

// / First index >= from of a byte not in chars, or -1.
func (this *TextBuffer) IndexNotAny(chars string, from int) int {
	for i := max(from, 0); i < len(this.Data); i++ {
		if strings.IndexByte(chars, this.Data[i]) < 0 {
			return i
		}
	}
	return -1
}

// / Replace [start, start+oldLen) with text. Returns the signed change in
// / buffer length which the caller applies to every cursor positioned after
// / the splice.
func (this *TextBuffer) Splice(start, oldLen int, text string) int {
	end := start + oldLen
	tail := append([]byte{}, this.Data[end:]...)
	this.Data = append(append(this.Data[:start], text...), tail...)
	return len(text) - oldLen
}

// / Overwrite every character in the span except line breaks with spaces.
func (this *TextBuffer) Overwrite(start, length int) {
	end := min(start+length, len(this.Data))
	for i := max(start, 0); i < end; i++ {
		if this.Data[i] != '\n' {
			this.Data[i] = ' '
		}
	}
}

// / Replace a section in place following the three size cases: an exact
// / fit is copied over, a shorter replacement is copied and the remainder
// / blanked (the buffer keeps its length and line count), and a longer one
// / is spliced in. Returns the growth delta, zero unless the buffer grew.
func (this *TextBuffer) ReplaceSection(start, oldLen int, text string) int {
	newLen := len(text)
	if newLen <= oldLen {
		copy(this.Data[start:], text)
		this.Overwrite(start+newLen, oldLen-newLen)
		return 0
	}
	return this.Splice(start, oldLen, text)
}

// / Like ReplaceSection, but the buffer keeps its line count: text is
// / padded with the line breaks it covers, and a blanked remainder drops
// / its own.
func (this *TextBuffer) ReplaceLines(start, oldLen int, text string) int {
	covered := bytes.Count(this.Data[start:start+oldLen], []byte{'\n'})
	if have := strings.Count(text, "\n"); have < covered {
		text += strings.Repeat("\n", covered-have)
	}
	if len(text) <= oldLen {
		copy(this.Data[start:], text)
		for i := start + len(text); i < start+oldLen; i++ {
			this.Data[i] = ' '
		}
		return 0
	}
	return this.Splice(start, oldLen, text)
}

// / Count of '\n' characters, used to check that rewriting never shifts lines.
func (this *TextBuffer) LineCount() int {
	return bytes.Count(this.Data, []byte{'\n'})
}

// / Scan state over a section of a TextBuffer. SectionEnd is inclusive,
// / so an empty section has SectionEnd == SectionBegin-1.
type Cursor struct {
	SectionBegin int
	SectionEnd   int
	Position     int

	TokenStart  int
	TokenLength int
	TokenClass  TokenClass
}

// / A cursor covering [begin, end] positioned at begin.
func NewCursor(begin, end int) Cursor {
	return Cursor{SectionBegin: begin, SectionEnd: end, Position: begin}
}

// / A cursor covering the whole buffer.
func CursorOver(buf *TextBuffer) Cursor {
	return NewCursor(0, buf.Len()-1)
}

// / Apply a splice delta to the end of the section.
func (this *Cursor) Reindex(delta int) {
	this.SectionEnd += delta
}

func (this *Cursor) AtEnd() bool {
	return this.Position > this.SectionEnd
}

// / Read the next token, optionally skipping comments and whitespace.
// / Returns false at the end of the section.
func (this *Cursor) Next(tok Tokenizer, buf *TextBuffer, skipCommentAndWS bool) bool {
	if this.Position > this.SectionEnd {
		return false
	}
	for this.Position <= this.SectionEnd {
		end := min(this.SectionEnd+1, buf.Len())
		if this.Position >= end {
			return false
		}
		class, length := tok.ParseToken(buf.Data[this.Position:end])
		if length <= 0 {
			length = 1
		}
		this.TokenClass = class
		this.TokenStart = this.Position
		this.TokenLength = length
		this.Position += length
		if skipCommentAndWS && (class == TOKEN_COMMENT || class == TOKEN_WHITESPACE) {
			continue
		}
		return true
	}
	// Only skipped tokens remained.
	return false
}

// / Text of the current token.
func (this *Cursor) Token(buf *TextBuffer) string {
	return buf.Slice(this.TokenStart, this.TokenLength)
}

// / Whether the current token is the single punctuation character c.
func (this *Cursor) IsPunct(buf *TextBuffer, c byte) bool {
	return this.TokenLength == 1 && this.TokenClass == TOKEN_KEYWORD && buf.At(this.TokenStart) == c
}
