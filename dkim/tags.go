package dkim

import (
	"fmt"
	"strings"
)

type tag struct {
	name  string
	value string
}

// parseTagList splits an unfolded tag-list (RFC 6376 Section 3.2) into tags.
// Parts without "=" are skipped. A repeated tag name is an error.
func parseTagList(s string) ([]tag, error) {
	var tags []tag
	seen := make(map[string]bool)

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTag, name)
		}
		seen[name] = true
		tags = append(tags, tag{name: name, value: strings.TrimSpace(value)})
	}
	return tags, nil
}

// splitList splits a separator-delimited tag value, dropping empty items.
func splitList(value string, sep string) []string {
	var out []string
	for _, item := range strings.Split(value, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// removeFWS drops all folding whitespace, as required for base64 tag values.
func removeFWS(s string) string {
	return strings.Map(func(r rune) rune {
		if isFWS(byte(r)) {
			return -1
		}
		return r
	}, s)
}

func isFWS(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// unfoldHeader replaces each CRLF (or bare LF) followed by whitespace with a space.
func unfoldHeader(s string) string {
	s = strings.ReplaceAll(s, "\r\n\t", " ")
	s = strings.ReplaceAll(s, "\r\n ", " ")
	s = strings.ReplaceAll(s, "\n\t", " ")
	s = strings.ReplaceAll(s, "\n ", " ")
	return s
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c - 'A' + 10)
	case c >= 'a' && c <= 'f':
		return int(c - 'a' + 10)
	}
	return -1
}

// decodeQP decodes DKIM quoted-printable (RFC 6376 Section 2.11).
func decodeQP(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '=' && i+2 < len(s) {
			hi, lo := hexVal(s[i+1]), hexVal(s[i+2])
			if hi >= 0 && lo >= 0 {
				b.WriteByte(byte(hi<<4 | lo))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// encodeQP encodes s as DKIM quoted-printable.
func encodeQP(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for _, c := range []byte(s) {
		if c > ' ' && c < 0x7f && c != ';' && c != '=' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('=')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}
