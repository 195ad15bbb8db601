package dkim

import (
	"bytes"
	"fmt"
	"hash"
	"strings"
)

// headerField is one header field as handed to Handle.Header.
type headerField struct {
	name  string // original case
	lname string
	raw   []byte // complete field without the final CRLF
}

func parseHeaderField(line []byte) (headerField, error) {
	raw := bytes.TrimSuffix(line, crlf)
	colon := bytes.IndexByte(raw, ':')
	if colon <= 0 {
		return headerField{}, fmt.Errorf("%w: missing colon", ErrHeaderMalformed)
	}
	name := strings.TrimRight(string(raw[:colon]), " \t")
	if name == "" {
		return headerField{}, fmt.Errorf("%w: empty field name", ErrHeaderMalformed)
	}
	for _, c := range []byte(name) {
		if c <= ' ' || c >= 0x7f {
			return headerField{}, fmt.Errorf("%w: invalid field name %q", ErrHeaderMalformed, name)
		}
	}
	return headerField{
		name:  name,
		lname: strings.ToLower(name),
		raw:   bytes.Clone(raw),
	}, nil
}

// selectHeaders picks the instances named by h=, walking the message from the
// bottom up for repeated names (RFC 6376 Section 5.4.2). Names with no
// remaining instance select nothing.
func selectHeaders(headers []headerField, signed []string) []headerField {
	byName := make(map[string][]headerField)
	for i := len(headers) - 1; i >= 0; i-- {
		byName[headers[i].lname] = append(byName[headers[i].lname], headers[i])
	}

	var out []headerField
	for _, name := range signed {
		lname := strings.ToLower(name)
		if hdrs := byName[lname]; len(hdrs) > 0 {
			out = append(out, hdrs[0])
			byName[lname] = hdrs[1:]
		}
	}
	return out
}

// computeDataHash hashes the selected headers followed by the DKIM-Signature
// header with an empty b= value and no trailing CRLF.
func computeDataHash(h hash.Hash, c Canonicalization, headers []headerField, signed []string, sigHeader []byte) ([]byte, error) {
	for _, hdr := range selectHeaders(headers, signed) {
		if err := canonicalizeHeader(h, c, hdr.raw, true); err != nil {
			return nil, err
		}
	}
	if err := canonicalizeHeader(h, c, sigHeader, false); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func countHeaders(headers []headerField, lname string) int {
	n := 0
	for _, h := range headers {
		if h.lname == lname {
			n++
		}
	}
	return n
}
