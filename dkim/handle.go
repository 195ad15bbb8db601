package dkim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

type handleState int

const (
	stateHeader handleState = iota
	stateBody
	stateDone
)

// Handle is a single signing or verifying operation on one message.
// A Handle is not safe for concurrent use.
type Handle struct {
	lib    *Library
	id     string
	mode   Mode
	logger *slog.Logger

	state   handleState
	freed   bool
	headers []headerField
	userCtx any
	errText string
	signer  string
	chunk   chunker

	sign *signState

	sigs          []*SigInfo
	sigsParsed    bool
	prescreenDone bool
	verified      bool
	finalDone     bool

	result  Stat
	testKey bool
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) Mode() Mode { return h.mode }

// SetUserContext attaches an arbitrary value that callbacks can retrieve.
func (h *Handle) SetUserContext(v any) { h.userCtx = v }

func (h *Handle) UserContext() any { return h.userCtx }

// GetError returns the description of the most recent failure.
func (h *Handle) GetError() string { return h.errText }

// Signatures returns the signatures found at EOH. Callers must not modify the slice.
func (h *Handle) Signatures() []*SigInfo { return h.sigs }

// Signer returns the signing identity set with SetSigner.
func (h *Handle) Signer() string { return h.signer }

// SetSigner sets the i= identity of a signing handle before EOM.
func (h *Handle) SetSigner(signer string) Stat {
	if st := h.usable(); st != StatOK {
		return st
	}
	if h.mode != ModeSign || h.state == stateDone {
		return h.fail(StatInvalid, errors.New("dkim: signer can only be set on a signing handle before EOM"))
	}
	_, domain, ok := strings.Cut(signer, "@")
	domain = strings.ToLower(domain)
	d := h.sign.sig.Domain
	if !ok || (domain != d && !strings.HasSuffix(domain, "."+d)) {
		return h.fail(StatInvalid, fmt.Errorf("%w: %s not under %s", ErrDomainIdentityMismatch, signer, d))
	}
	h.signer = signer
	return StatOK
}

// Header adds one header field, which may be folded. A trailing CRLF is optional.
func (h *Handle) Header(line []byte) Stat {
	if st := h.usable(); st != StatOK {
		return st
	}
	if h.state != stateHeader {
		return h.fail(StatInvalid, errors.New("dkim: header after end of headers"))
	}
	f, err := parseHeaderField(line)
	if err != nil {
		return h.fail(StatSyntax, err)
	}
	h.headers = append(h.headers, f)
	return StatOK
}

// EOH marks the end of the header block. In verify mode it locates the
// signatures, runs the prescreen callback and retrieves keys.
// A verifying handle with no signatures returns StatNoSig but still accepts the body.
func (h *Handle) EOH(ctx context.Context) Stat {
	if st := h.usable(); st != StatOK {
		return st
	}
	if h.state != stateHeader {
		return h.fail(StatInvalid, errors.New("dkim: EOH already processed"))
	}
	if h.mode == ModeSign {
		return h.eohSign()
	}
	return h.eohVerify(ctx)
}

// Body adds a piece of the message body.
func (h *Handle) Body(buf []byte) Stat {
	if st := h.usable(); st != StatOK {
		return st
	}
	if h.state != stateBody {
		return h.fail(StatInvalid, errors.New("dkim: body outside of body phase"))
	}
	if h.mode == ModeSign {
		h.sign.body.Write(buf)
		return StatOK
	}
	for _, si := range h.sigs {
		if si.body != nil {
			si.body.Write(buf)
		}
	}
	return StatOK
}

// EOM completes the message. A signing handle computes its signature; a
// verifying handle verifies every signature and runs the final callback.
// testKey reports whether the deciding key is marked as a test key.
func (h *Handle) EOM(ctx context.Context) (Stat, bool) {
	if st := h.usable(); st != StatOK {
		return st, false
	}
	switch h.state {
	case stateHeader:
		return h.fail(StatInvalid, errors.New("dkim: EOM before EOH")), false
	case stateDone:
		return h.result, h.testKey
	}
	if h.mode == ModeSign {
		return h.eomSign(), false
	}
	return h.eomVerify(ctx)
}

// GetSigHdr returns the generated DKIM-Signature value without the field name.
func (h *Handle) GetSigHdr() (string, Stat) {
	if st := h.usable(); st != StatOK {
		return "", st
	}
	if h.mode != ModeSign || h.state != stateDone || h.result != StatOK {
		return "", h.fail(StatInvalid, errors.New("dkim: no signature generated"))
	}
	return strings.TrimPrefix(h.sign.header, SignatureHeader+": "), StatOK
}

// Free releases the handle. Only the first call succeeds.
func (h *Handle) Free() Stat {
	if h.freed {
		return StatInvalid
	}
	h.freed = true
	h.userCtx = nil
	h.headers = nil
	h.chunk = chunker{}
	return StatOK
}

func (h *Handle) usable() Stat {
	if h.freed || h.lib.isClosed() {
		return StatInvalid
	}
	return StatOK
}

func (h *Handle) fail(st Stat, err error) Stat {
	h.errText = err.Error()
	return st
}

// cbResult maps a callback answer to the status of the processing call.
func (h *Handle) cbResult(name string, r CBStat) Stat {
	switch r {
	case CBContinue, CBDefault:
		return StatOK
	case CBTryAgain:
		h.errText = name + " callback requested retry"
		h.logger.Debug("callback try again", slog.String("callback", name))
		return StatCBTryAgain
	case CBReject:
		h.errText = name + " callback requested reject"
		return StatCBReject
	case CBError:
		h.errText = name + " callback failed"
		return StatCBError
	}
	h.errText = fmt.Sprintf("%s callback returned invalid result %d", name, int(r))
	return StatCBInvalid
}

func (h *Handle) eohSign() Stat {
	if countHeaders(h.headers, "from") != 1 {
		return h.fail(StatSyntax, fmt.Errorf("%w: need exactly one From header", ErrFromRequired))
	}
	s := h.sign
	s.body = newBodyCanonicalizer(s.sig.BodyCanon(), s.hash, s.length)
	h.state = stateBody
	return StatOK
}

// signedHeaderNames returns the configured headers present in the message, From first.
func (h *Handle) signedHeaderNames() []string {
	names := h.lib.cfg.SignedHeaders
	if !slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, "from") }) {
		names = append([]string{"From"}, names...)
	}
	var out []string
	for _, n := range names {
		if countHeaders(h.headers, strings.ToLower(n)) > 0 {
			out = append(out, n)
		}
	}
	return out
}

func (h *Handle) eomSign() Stat {
	s := h.sign
	sig := s.sig

	sig.BodyHash = s.body.finish()
	if s.length >= 0 {
		sig.Length = min(s.length, s.body.written)
	}
	sig.SignedHeaders = h.signedHeaderNames()
	if h.signer != "" {
		sig.Identity = h.signer
	}
	sig.SignTime = timeNow().Unix()

	unsigned := sig.Header(false)
	dataHash, err := computeDataHash(s.hash.New(), sig.HeaderCanon(), h.headers, sig.SignedHeaders, []byte(unsigned))
	if err != nil {
		return h.fail(StatSyntax, err)
	}
	signature, err := signWithKey(s.key, s.hash, dataHash)
	if err != nil {
		return h.fail(StatSigGen, err)
	}
	sig.Signature = signature
	s.header = sig.Header(true)

	metricSign.WithLabelValues(sig.Algorithm).Inc()
	h.state = stateDone
	h.result = StatOK
	return StatOK
}

func (h *Handle) eohVerify(ctx context.Context) Stat {
	if !h.sigsParsed {
		h.parseSignatures()
		h.sigsParsed = true
	}
	if len(h.sigs) == 0 {
		h.state = stateBody
		return h.fail(StatNoSig, errors.New("dkim: no signatures"))
	}

	_, keyLookup, prescreen := h.lib.callbacks()
	if prescreen != nil && !h.prescreenDone {
		if st := h.cbResult("prescreen", prescreen(h, h.sigs)); st != StatOK {
			return st
		}
		h.prescreenDone = true
	}

	for _, si := range h.sigs {
		if si.keyDone || si.err != nil || si.flags&SigFlagIgnore != 0 {
			continue
		}
		if keyLookup == nil {
			si.setKey(h.lib.fetchKey(ctx, si.sig.Selector, si.sig.Domain))
			continue
		}
		buf := make([]byte, MaxKeyRecordSize)
		switch r := keyLookup(h, si, buf); r {
		case CBContinue:
			si.setKey(parseKeyBuffer(buf))
		case CBNotFound:
			si.setKey(nil, fmt.Errorf("%w: %s._domainkey.%s", ErrNoRecord, si.sig.Selector, si.sig.Domain))
		case CBDefault:
			si.setKey(h.lib.fetchKey(ctx, si.sig.Selector, si.sig.Domain))
		default:
			return h.cbResult("key lookup", r)
		}
	}

	for _, si := range h.sigs {
		if si.err != nil || si.flags&SigFlagIgnore != 0 {
			continue
		}
		if err := si.checkKey(h.lib.cfg.MinRSAKeyBits); err != nil {
			si.err = err
			continue
		}
		si.body = newBodyCanonicalizer(si.sig.BodyCanon(), si.hash, si.sig.Length)
	}

	h.state = stateBody
	return StatOK
}

// parseKeyBuffer parses the NUL-terminated record a key lookup callback wrote.
func parseKeyBuffer(buf []byte) (*Record, error) {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, ErrNoRecord
	}
	rec, _, err := ParseRecord(string(buf))
	if err != nil {
		if !errors.Is(err, ErrSyntax) {
			err = fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return nil, err
	}
	return rec, nil
}

// parseSignatures builds a SigInfo for each DKIM-Signature header, top to bottom.
func (h *Handle) parseSignatures() {
	lname := strings.ToLower(SignatureHeader)
	for _, f := range h.headers {
		if f.lname != lname {
			continue
		}
		si := &SigInfo{index: len(h.sigs), bh: BodyHashUntested}
		h.sigs = append(h.sigs, si)

		sig, data, err := ParseSignature(string(f.raw))
		if err != nil {
			si.err = err
			continue
		}
		si.sig = sig
		si.signedData = data
		si.err = validateSignature(sig)
		si.hash, _ = getHash(sig.AlgorithmHash())
	}
}

// validateSignature applies the checks that need no key (RFC 6376 Section 6.1.1).
func validateSignature(sig *Signature) error {
	if _, ok := getHash(sig.AlgorithmHash()); !ok {
		return fmt.Errorf("%w: %s", ErrHashAlgorithmUnknown, sig.Algorithm)
	}
	switch sig.AlgorithmSign() {
	case "rsa", "ed25519":
	default:
		return fmt.Errorf("%w: %s", ErrSigAlgorithmUnknown, sig.Algorithm)
	}
	if !validCanon(sig.HeaderCanon()) || !validCanon(sig.BodyCanon()) {
		return fmt.Errorf("%w: %s", ErrCanonicalizationUnknown, sig.Canonicalization)
	}
	if len(sig.QueryMethods) > 0 && !slices.ContainsFunc(sig.QueryMethods, func(q string) bool {
		return strings.EqualFold(q, "dns/txt") || strings.EqualFold(q, "dns")
	}) {
		return ErrQueryMethod
	}
	if !slices.ContainsFunc(sig.SignedHeaders, func(n string) bool { return strings.EqualFold(n, "from") }) {
		return ErrFromRequired
	}
	if sig.IsExpired() {
		return ErrSigExpired
	}
	if isTLD(sig.Domain) {
		return fmt.Errorf("%w: %s", ErrTLD, sig.Domain)
	}
	return nil
}

func (h *Handle) eomVerify(ctx context.Context) (Stat, bool) {
	if !h.verified {
		for _, si := range h.sigs {
			if si.body != nil {
				h.verifySignature(si)
			}
		}
		h.verified = true
	}

	final, _, _ := h.lib.callbacks()
	if final != nil && !h.finalDone && len(h.sigs) > 0 {
		if st := h.cbResult("final", final(h, h.sigs)); st != StatOK {
			return st, false
		}
		h.finalDone = true
	}

	h.result, h.testKey = h.decide()
	h.state = stateDone
	return h.result, h.testKey
}

func (h *Handle) verifySignature(si *SigInfo) {
	si.flags |= SigFlagProcessed

	bh := si.body.finish()
	if si.sig.Length >= 0 && si.body.written < si.sig.Length {
		si.bh = BodyHashMismatch
		si.err = fmt.Errorf("%w: body shorter than l=%d", ErrBodyHashMismatch, si.sig.Length)
		return
	}
	if !bytes.Equal(bh, si.sig.BodyHash) {
		si.bh = BodyHashMismatch
		si.err = ErrBodyHashMismatch
		return
	}
	si.bh = BodyHashMatch

	dataHash, err := computeDataHash(si.hash.New(), si.sig.HeaderCanon(), h.headers, si.sig.SignedHeaders, si.signedData)
	if err != nil {
		si.err = err
		return
	}
	if err := verifyWithKey(si.record.PublicKey, si.hash, dataHash, si.sig.Signature); err != nil {
		si.err = fmt.Errorf("%w: %v", ErrSigVerify, err)
		return
	}
	si.flags |= SigFlagPassed
}

// decide picks the overall result: success if any signature passed, otherwise
// the failure of the first signature that was not ignored.
func (h *Handle) decide() (Stat, bool) {
	var first *SigInfo
	for _, si := range h.sigs {
		if si.flags&SigFlagIgnore != 0 {
			continue
		}
		if si.flags&SigFlagPassed != 0 {
			metricVerify.WithLabelValues(string(StatusPass)).Inc()
			return StatOK, si.flags&SigFlagTestKey != 0
		}
		if first == nil {
			first = si
		}
	}
	if first == nil {
		metricVerify.WithLabelValues(string(StatusNone)).Inc()
		return h.fail(StatNoSig, errors.New("dkim: no signatures")), false
	}

	metricVerify.WithLabelValues(string(first.Status())).Inc()
	st := errStat(first.err)
	if first.err != nil {
		h.errText = first.err.Error()
	}
	h.logger.Debug("verification failed",
		slog.String("domain", first.Domain()),
		slog.Any("error", first.err))
	return st, first.flags&SigFlagTestKey != 0
}
