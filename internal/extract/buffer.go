package extract

import (
	"unicode/utf8"
)

var replacement = []byte(string(utf8.RuneError))

// carry holds decoded text that has not yet been consumed by a match.
//
// Invalid byte sequences are replaced with U+FFFD one byte at a time. An
// incomplete sequence at the end of a chunk is kept in pending and decoded
// together with the next chunk.
type carry struct {
	buf     []byte
	pending []byte
	limit   int
}

func newCarry(limit int) *carry {
	return &carry{limit: limit}
}

// write decodes chunk and appends it to the buffer.
func (c *carry) write(chunk []byte) {
	data := chunk
	if len(c.pending) > 0 {
		data = append(c.pending, chunk...)
		c.pending = nil
	} else if utf8.Valid(chunk) {
		c.buf = append(c.buf, chunk...)
		return
	}

	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(data[i:]) {
				c.pending = append([]byte(nil), data[i:]...)
				return
			}
			c.buf = append(c.buf, replacement...)
			i++
			continue
		}
		c.buf = append(c.buf, data[i:i+size]...)
		i += size
	}
}

// flush replaces a held incomplete sequence with U+FFFD, one per byte. It
// reports whether anything was pending.
func (c *carry) flush() bool {
	if len(c.pending) == 0 {
		return false
	}
	for range c.pending {
		c.buf = append(c.buf, replacement...)
	}
	c.pending = nil
	return true
}

func (c *carry) bytes() []byte {
	return c.buf
}

func (c *carry) len() int {
	return len(c.buf)
}

// consume discards the first n bytes.
func (c *carry) consume(n int) {
	if n <= 0 {
		return
	}
	if n >= len(c.buf) {
		c.buf = c.buf[:0]
		return
	}
	m := copy(c.buf, c.buf[n:])
	c.buf = c.buf[:m]
}

// trim enforces the size cap by dropping the oldest bytes. The cut is moved
// forward to a rune boundary. It returns the number of bytes dropped.
func (c *carry) trim() int {
	if c.limit <= 0 || len(c.buf) <= c.limit {
		return 0
	}
	cut := len(c.buf) - c.limit
	for cut < len(c.buf) && !utf8.RuneStart(c.buf[cut]) {
		cut++
	}
	c.consume(cut)
	return cut
}
