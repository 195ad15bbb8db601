package dkim

import (
	"bytes"
	"crypto"
	"hash"
	"strings"
)

var crlf = []byte("\r\n")

// canonicalizeHeaderRelaxed returns the header in relaxed canonicalization
// (RFC 6376 Section 3.4.2): lowercase name, unfolded value, runs of WSP
// compressed to one space, no WSP around the colon or at the end.
func canonicalizeHeaderRelaxed(header string) (string, error) {
	name, value, ok := strings.Cut(header, ":")
	if !ok {
		return "", ErrHeaderMalformed
	}
	name = strings.ToLower(strings.TrimRight(name, " \t"))

	var b strings.Builder
	b.Grow(len(name) + len(value) + 1)
	b.WriteString(name)
	b.WriteByte(':')
	b.Write(compressWSP([]byte(strings.Trim(unfoldHeader(value), " \t"))))
	return b.String(), nil
}

// canonicalizeHeader writes one header in the given canonicalization followed by CRLF.
func canonicalizeHeader(w hash.Hash, c Canonicalization, raw []byte, terminate bool) error {
	raw = bytes.TrimSuffix(raw, crlf)
	if c == CanonRelaxed {
		canonical, err := canonicalizeHeaderRelaxed(string(raw))
		if err != nil {
			return err
		}
		w.Write([]byte(canonical))
	} else {
		w.Write(raw)
	}
	if terminate {
		w.Write(crlf)
	}
	return nil
}

// compressWSP replaces each run of spaces and tabs with a single space.
func compressWSP(line []byte) []byte {
	out := make([]byte, 0, len(line))
	prevWS := false
	for _, c := range line {
		if c == ' ' || c == '\t' {
			if !prevWS {
				out = append(out, ' ')
			}
			prevWS = true
			continue
		}
		out = append(out, c)
		prevWS = false
	}
	return out
}

// bodyCanonicalizer hashes a message body as it streams in.
//
// Empty lines are held back until a non-empty line follows, so trailing empty
// lines never reach the hash. When limit is non-negative only the first limit
// canonical bytes are hashed, but written keeps counting.
type bodyCanonicalizer struct {
	canon      Canonicalization
	h          hash.Hash
	limit      int64
	written    int64
	partial    []byte
	emptyLines int
	done       bool
	sum        []byte
}

func newBodyCanonicalizer(c Canonicalization, h crypto.Hash, limit int64) *bodyCanonicalizer {
	return &bodyCanonicalizer{canon: c, h: h.New(), limit: limit}
}

func (b *bodyCanonicalizer) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			b.partial = append(b.partial, p...)
			break
		}
		line := p[:i]
		if len(b.partial) > 0 {
			line = append(b.partial, line...)
			b.partial = b.partial[:0]
		}
		b.line(bytes.TrimSuffix(line, []byte("\r")))
		p = p[i+1:]
	}
	return n, nil
}

// line processes one body line without its line terminator.
func (b *bodyCanonicalizer) line(line []byte) {
	if b.canon == CanonRelaxed {
		line = compressWSP(bytes.TrimRight(line, " \t"))
	}
	if len(line) == 0 {
		b.emptyLines++
		return
	}
	for ; b.emptyLines > 0; b.emptyLines-- {
		b.hash(crlf)
	}
	b.hash(line)
	b.hash(crlf)
}

func (b *bodyCanonicalizer) hash(p []byte) {
	b.written += int64(len(p))
	if b.limit >= 0 {
		room := b.limit - (b.written - int64(len(p)))
		if room <= 0 {
			return
		}
		p = p[:min(int64(len(p)), room)]
	}
	b.h.Write(p)
}

// finish flushes a final unterminated line and returns the body hash.
// An empty simple body hashes as a single CRLF; an empty relaxed body as nothing.
func (b *bodyCanonicalizer) finish() []byte {
	if b.done {
		return b.sum
	}
	if len(b.partial) > 0 {
		b.line(bytes.TrimSuffix(b.partial, []byte("\r")))
		b.partial = nil
	}
	if b.canon == CanonSimple && b.written == 0 {
		b.hash(crlf)
	}
	b.done = true
	b.sum = b.h.Sum(nil)
	return b.sum
}

// getHash returns the crypto.Hash for the given algorithm name.
func getHash(algorithm string) (crypto.Hash, bool) {
	switch strings.ToLower(algorithm) {
	case "sha256":
		return crypto.SHA256, true
	case "sha1":
		return crypto.SHA1, true
	default:
		return 0, false
	}
}

func validCanon(c Canonicalization) bool {
	return c == CanonSimple || c == CanonRelaxed
}
