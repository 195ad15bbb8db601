package dkim

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Signature represents a parsed DKIM-Signature header (RFC 6376 Section 3.5).
type Signature struct {
	// Required fields
	Version       int      // v=
	Algorithm     string   // a=
	Signature     []byte   // b=
	BodyHash      []byte   // bh=
	Domain        string   // d=
	SignedHeaders []string // h=
	Selector      string   // s=

	// Optional fields
	Canonicalization string   // c=
	Identity         string   // i=
	Length           int64    // l=, -1 if not set
	QueryMethods     []string // q=
	SignTime         int64    // t=, -1 if not set
	ExpireTime       int64    // x=, -1 if not set
}

// NewSignature creates a new Signature with default values.
func NewSignature() *Signature {
	return &Signature{
		Version:          1,
		Canonicalization: "simple/simple",
		Length:           -1,
		SignTime:         -1,
		ExpireTime:       -1,
	}
}

// AlgorithmSign returns the key type part of a= (e.g., "rsa" from "rsa-sha256").
func (s *Signature) AlgorithmSign() string {
	k, _, _ := strings.Cut(s.Algorithm, "-")
	return k
}

// AlgorithmHash returns the hash part of a= (e.g., "sha256" from "rsa-sha256").
func (s *Signature) AlgorithmHash() string {
	_, h, _ := strings.Cut(s.Algorithm, "-")
	return h
}

// HeaderCanon returns the header canonicalization algorithm.
func (s *Signature) HeaderCanon() Canonicalization {
	h, _, _ := strings.Cut(s.Canonicalization, "/")
	if h == "" {
		return CanonSimple
	}
	return Canonicalization(strings.ToLower(h))
}

// BodyCanon returns the body canonicalization algorithm.
func (s *Signature) BodyCanon() Canonicalization {
	_, b, ok := strings.Cut(s.Canonicalization, "/")
	if !ok || b == "" {
		return CanonSimple
	}
	return Canonicalization(strings.ToLower(b))
}

// IsExpired returns true if the signature has expired.
func (s *Signature) IsExpired() bool {
	return s.ExpireTime >= 0 && timeNow().Unix() > s.ExpireTime
}

// headerWriter folds a header at 76 columns (RFC 5322).
type headerWriter struct {
	b        strings.Builder
	lineLen  int
	nonfirst bool
}

const foldColumn = 76

func (w *headerWriter) add(sep, text string) {
	if w.nonfirst && w.lineLen > 1 && w.lineLen+len(sep)+len(text) > foldColumn {
		w.b.WriteString("\r\n\t")
		w.lineLen = 1
	} else if w.nonfirst && sep != "" {
		w.b.WriteString(sep)
		w.lineLen += len(sep)
	}
	w.b.WriteString(text)
	w.lineLen += len(text)
	w.nonfirst = true
}

func (w *headerWriter) addf(sep, format string, args ...any) {
	w.add(sep, fmt.Sprintf(format, args...))
}

// addWrap adds data that may be broken at any position, such as base64.
func (w *headerWriter) addWrap(data string) {
	for len(data) > 0 {
		n := foldColumn - w.lineLen
		if n <= 0 {
			w.b.WriteString("\r\n\t")
			w.lineLen = 1
			n = foldColumn - 1
		}
		n = min(n, len(data))
		w.b.WriteString(data[:n])
		w.lineLen += n
		data = data[n:]
	}
}

// Header renders the complete DKIM-Signature header field without trailing CRLF.
// If includeSignature is false the b= value is left empty, which is the form
// that is hashed while signing.
func (s *Signature) Header(includeSignature bool) string {
	w := &headerWriter{}

	w.addf("", "%s: v=%d;", SignatureHeader, s.Version)
	w.addf(" ", "a=%s;", s.Algorithm)
	if c := strings.ToLower(s.Canonicalization); c != "" && c != "simple" && c != "simple/simple" {
		w.addf(" ", "c=%s;", c)
	}
	w.addf(" ", "d=%s;", s.Domain)
	w.addf(" ", "s=%s;", s.Selector)
	if s.Identity != "" {
		w.addf(" ", "i=%s;", encodeQP(s.Identity))
	}
	if len(s.QueryMethods) > 0 && !(len(s.QueryMethods) == 1 && strings.EqualFold(s.QueryMethods[0], "dns/txt")) {
		w.addf(" ", "q=%s;", strings.Join(s.QueryMethods, ":"))
	}
	if s.SignTime >= 0 {
		w.addf(" ", "t=%d;", s.SignTime)
	}
	if s.ExpireTime >= 0 {
		w.addf(" ", "x=%d;", s.ExpireTime)
	}
	if s.Length >= 0 {
		w.addf(" ", "l=%d;", s.Length)
	}
	for i, h := range s.SignedHeaders {
		sep := ""
		if i == 0 {
			h = "h=" + h
			sep = " "
		}
		if i < len(s.SignedHeaders)-1 {
			h += ":"
		} else {
			h += ";"
		}
		w.add(sep, h)
	}
	w.addf(" ", "bh=%s;", base64.StdEncoding.EncodeToString(s.BodyHash))
	w.add(" ", "b=")
	if includeSignature && len(s.Signature) > 0 {
		w.addWrap(base64.StdEncoding.EncodeToString(s.Signature))
	}

	return w.b.String()
}

// ParseSignature parses a complete DKIM-Signature header field (name included).
// It returns the signature and the header with the b= value removed, which is
// the form hashed during verification.
func ParseSignature(header string) (*Signature, []byte, error) {
	raw := strings.TrimSuffix(header, "\r\n")

	name, value, ok := strings.Cut(raw, ":")
	if !ok || !strings.EqualFold(strings.Trim(name, " \t"), SignatureHeader) {
		return nil, nil, fmt.Errorf("%w: not a DKIM-Signature header", ErrHeaderMalformed)
	}

	tags, err := parseTagList(unfoldHeader(value))
	if err != nil {
		return nil, nil, err
	}

	sig := NewSignature()
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		seen[t.name] = true
		if err := sig.setTag(t); err != nil {
			return nil, nil, err
		}
	}

	for _, tag := range []string{"v", "a", "b", "bh", "d", "h", "s"} {
		if !seen[tag] {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingTag, tag)
		}
	}

	want := map[string]int{"sha1": 20, "sha256": 32}[strings.ToLower(sig.AlgorithmHash())]
	if want > 0 && len(sig.BodyHash) != want {
		return nil, nil, fmt.Errorf("%w: got %d bytes, expected %d for %s",
			ErrBodyHashLength, len(sig.BodyHash), want, sig.AlgorithmHash())
	}

	if sig.SignTime >= 0 && sig.ExpireTime >= 0 && sig.SignTime >= sig.ExpireTime {
		return nil, nil, fmt.Errorf("%w: sign time >= expire time", ErrSigExpired)
	}

	if at := strings.LastIndex(sig.Identity, "@"); at >= 0 {
		idDomain := strings.ToLower(sig.Identity[at+1:])
		if idDomain != sig.Domain && !strings.HasSuffix(idDomain, "."+sig.Domain) {
			return nil, nil, fmt.Errorf("%w: identity domain %s not under signing domain %s",
				ErrDomainIdentityMismatch, idDomain, sig.Domain)
		}
	}

	return sig, []byte(stripSignatureValue(raw)), nil
}

func (sig *Signature) setTag(t tag) error {
	switch t.name {
	case "v":
		v, err := strconv.Atoi(t.value)
		if err != nil || v != 1 {
			return fmt.Errorf("%w: %s", ErrInvalidVersion, t.value)
		}
		sig.Version = v
	case "a":
		sig.Algorithm = strings.ToLower(t.value)
	case "b", "bh":
		decoded, err := base64.StdEncoding.DecodeString(removeFWS(t.value))
		if err != nil {
			return fmt.Errorf("%w: invalid %s= encoding: %v", ErrHeaderMalformed, t.name, err)
		}
		if t.name == "b" {
			sig.Signature = decoded
		} else {
			sig.BodyHash = decoded
		}
	case "c":
		sig.Canonicalization = strings.ToLower(t.value)
	case "d":
		sig.Domain = strings.ToLower(t.value)
	case "h":
		sig.SignedHeaders = splitList(t.value, ":")
	case "i":
		sig.Identity = decodeQP(t.value)
	case "l", "t", "x":
		n, err := strconv.ParseInt(t.value, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: invalid %s= value %q", ErrHeaderMalformed, t.name, t.value)
		}
		switch t.name {
		case "l":
			sig.Length = n
		case "t":
			sig.SignTime = n
		case "x":
			sig.ExpireTime = n
		}
	case "q":
		sig.QueryMethods = splitList(t.value, ":")
	case "s":
		sig.Selector = strings.ToLower(t.value)
	}
	return nil
}

// stripSignatureValue returns the raw header with everything between "b=" and
// the following ";" (or the end) removed.
func stripSignatureValue(raw string) string {
	colon := strings.IndexByte(raw, ':')
	if colon < 0 {
		return raw
	}
	for i := colon + 1; i < len(raw); {
		start := i
		for start < len(raw) && isFWS(raw[start]) {
			start++
		}
		end := strings.IndexByte(raw[start:], ';')
		if end < 0 {
			end = len(raw)
		} else {
			end += start
		}
		if eq := strings.IndexByte(raw[start:end], '='); eq >= 0 {
			name := strings.TrimRight(raw[start:start+eq], " \t\r\n")
			if name == "b" {
				return raw[:start+eq+1] + raw[end:]
			}
		}
		i = end + 1
	}
	return raw
}
