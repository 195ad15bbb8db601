package dkim

import (
	"bytes"
	"context"
)

// chunker splits a raw message stream into header fields and body.
type chunker struct {
	headerDone bool
	eohDone    bool
	lastCR     bool
	pending    []byte // unconsumed header bytes, or body bytes held while EOH is retried
	field      []byte // header field being unfolded
}

// Chunk feeds a piece of the raw message, headers and body alike. Bare LF line
// endings are converted to CRLF. A nil buf marks the end of the message; it
// must be sent before EOM when the message has no body.
//
// When EOH asks to try again, Chunk returns StatCBTryAgain and keeps the data
// it has seen. Calling Chunk again (with more data or nil) retries EOH first.
func (h *Handle) Chunk(ctx context.Context, buf []byte) Stat {
	if st := h.usable(); st != StatOK {
		return st
	}
	c := &h.chunk
	data := c.fixLineEndings(buf)

	if c.eohDone {
		if len(data) == 0 {
			return StatOK
		}
		return h.Body(data)
	}

	c.pending = append(c.pending, data...)
	if !c.headerDone {
		if st := c.consumeHeaders(h, buf == nil); st != StatOK {
			return st
		}
		if !c.headerDone {
			return StatOK
		}
	}

	switch st := h.EOH(ctx); st {
	case StatOK, StatNoSig:
	default:
		return st
	}
	c.eohDone = true

	if len(c.pending) > 0 {
		body := c.pending
		c.pending = nil
		return h.Body(body)
	}
	return StatOK
}

// consumeHeaders hands every complete header field in pending to Header.
// At the end of the stream a final field without CRLF is accepted.
func (c *chunker) consumeHeaders(h *Handle, eof bool) Stat {
	for {
		i := bytes.Index(c.pending, crlf)
		if i < 0 {
			break
		}
		line := c.pending[:i+2]
		c.pending = c.pending[i+2:]
		if i == 0 {
			c.headerDone = true
			return c.flushField(h)
		}
		if st := c.addLine(h, line); st != StatOK {
			return st
		}
	}

	if !eof {
		return StatOK
	}
	if len(c.pending) > 0 {
		line := c.pending
		c.pending = nil
		if st := c.addLine(h, line); st != StatOK {
			return st
		}
	}
	c.headerDone = true
	return c.flushField(h)
}

func (c *chunker) addLine(h *Handle, line []byte) Stat {
	if line[0] == ' ' || line[0] == '\t' {
		c.field = append(c.field, line...)
		return StatOK
	}
	if st := c.flushField(h); st != StatOK {
		return st
	}
	c.field = append(c.field[:0], line...)
	return StatOK
}

func (c *chunker) flushField(h *Handle) Stat {
	if len(c.field) == 0 {
		return StatOK
	}
	st := h.Header(c.field)
	c.field = c.field[:0]
	return st
}

// fixLineEndings returns buf with every bare LF preceded by CR, taking a CR
// at the end of the previous chunk into account.
func (c *chunker) fixLineEndings(buf []byte) []byte {
	if len(buf) == 0 {
		return nil
	}
	out := make([]byte, 0, len(buf)+len(buf)/32)
	for i, b := range buf {
		if b == '\n' {
			prevCR := c.lastCR
			if i > 0 {
				prevCR = buf[i-1] == '\r'
			}
			if !prevCR {
				out = append(out, '\r')
			}
		}
		out = append(out, b)
	}
	c.lastCR = buf[len(buf)-1] == '\r'
	return out
}
