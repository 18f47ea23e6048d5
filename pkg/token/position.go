package token

import "fmt"

// Location is a zero-based line and column.
type Location struct {
	Line uint `json:"line"`
	Col  uint `json:"col"`
}

// String renders the location 1-based, the way diagnostics print it.
func (l Location) String() string { return fmt.Sprintf("%d:%d", l.Line+1, l.Col+1) }

// Advance returns the location after consuming b.
func (l Location) Advance(b byte) Location {
	if b == '\n' {
		return Location{Line: l.Line + 1}
	}
	l.Col++
	return l
}

// Cursor is a position in the source: a byte offset plus its Location.
// Rules take and return cursors by value; nothing shares a mutable cursor.
type Cursor struct {
	Offset uint
	Loc    Location
}

// Advance moves the cursor over source[c.Offset:c.Offset+n].
func (c Cursor) Advance(source string, n uint) Cursor {
	end := c.Offset + n
	if end > uint(len(source)) {
		end = uint(len(source))
	}
	for ; c.Offset < end; c.Offset++ {
		c.Loc = c.Loc.Advance(source[c.Offset])
	}
	return c
}

// AtEnd reports whether the cursor has consumed all of source.
func (c Cursor) AtEnd(source string) bool { return c.Offset >= uint(len(source)) }

// Peek returns the byte at the cursor, and false past the end.
func (c Cursor) Peek(source string) (byte, bool) {
	if c.AtEnd(source) {
		return 0, false
	}
	return source[c.Offset], true
}
