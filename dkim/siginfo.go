package dkim

import (
	"crypto"
	"errors"
	"strings"
)

// SigInfo is one DKIM-Signature found on a message being verified.
// Its identity is stable for the lifetime of the Handle that produced it.
type SigInfo struct {
	index      int
	sig        *Signature
	signedData []byte // header with the b= value removed
	hash       crypto.Hash

	flags   SigFlag
	err     error
	bh      BodyHashStatus
	record  *Record
	keyDone bool
	body    *bodyCanonicalizer
}

// Index is the position of the signature among the message's DKIM-Signature headers.
func (s *SigInfo) Index() int { return s.index }

// Signature returns the parsed header, or nil if it could not be parsed.
func (s *SigInfo) Signature() *Signature { return s.sig }

// Err returns why the signature did not verify, nil if it passed or is still pending.
func (s *SigInfo) Err() error { return s.err }

// BodyHash reports the body hash comparison result.
func (s *SigInfo) BodyHash() BodyHashStatus { return s.bh }

func (s *SigInfo) Flags() SigFlag { return s.flags }

// Record returns the key record once it has been retrieved.
func (s *SigInfo) Record() *Record { return s.record }

func (s *SigInfo) Domain() string {
	if s.sig == nil {
		return ""
	}
	return s.sig.Domain
}

func (s *SigInfo) Selector() string {
	if s.sig == nil {
		return ""
	}
	return s.sig.Selector
}

// Identity returns the i= value, defaulting to "@" plus the signing domain.
func (s *SigInfo) Identity() string {
	if s.sig == nil {
		return ""
	}
	if s.sig.Identity != "" {
		return s.sig.Identity
	}
	return "@" + s.sig.Domain
}

func (s *SigInfo) Algorithm() string {
	if s.sig == nil {
		return ""
	}
	return s.sig.Algorithm
}

// Ignore excludes the signature from key retrieval and verification.
// It is meant to be called from a prescreen callback.
func (s *SigInfo) Ignore() {
	s.flags |= SigFlagIgnore
	if s.err == nil {
		s.err = ErrIgnored
	}
}

// Status returns the RFC 8601 result for this signature.
func (s *SigInfo) Status() Status {
	switch {
	case s.flags&SigFlagPassed != 0:
		return StatusPass
	case s.flags&SigFlagIgnore != 0, s.err == nil:
		return StatusNone
	case errors.Is(s.err, ErrDNS):
		return StatusTemperror
	case errors.Is(s.err, ErrBodyHashMismatch), errors.Is(s.err, ErrSigVerify):
		return StatusFail
	}
	return StatusPermerror
}

// setKey records the outcome of key retrieval.
func (s *SigInfo) setKey(rec *Record, err error) {
	s.keyDone = true
	if err != nil {
		s.err = err
		return
	}
	s.record = rec
	s.flags |= SigFlagKeyLoaded
	if rec.IsTesting() {
		s.flags |= SigFlagTestKey
	}
}

// checkKey validates a retrieved key against the signature (RFC 6376 Section 6.1.2).
func (s *SigInfo) checkKey(minRSABits int) error {
	rec := s.record
	switch {
	case len(rec.Pubkey) == 0 || rec.PublicKey == nil:
		return ErrKeyRevoked
	case !rec.ServiceAllowed("email"):
		return ErrKeyNotForEmail
	case !rec.HashAllowed(s.sig.AlgorithmHash()):
		return ErrHashAlgNotAllowed
	case !strings.EqualFold(rec.Key, s.sig.AlgorithmSign()):
		return ErrSigAlgMismatch
	}
	if k, ok := rec.PublicKey.(interface{ Size() int }); ok && rec.Key == "rsa" && k.Size()*8 < minRSABits {
		return ErrWeakKey
	}
	if rec.RequireStrictAlignment() && s.sig.Identity != "" {
		_, idDomain, _ := strings.Cut(s.sig.Identity, "@")
		if !strings.EqualFold(idDomain, s.sig.Domain) {
			return ErrDomainIdentityMismatch
		}
	}
	return nil
}

// errStat maps a signature error to the status reported by EOM.
func errStat(err error) Stat {
	switch {
	case errors.Is(err, ErrNoRecord):
		return StatNoKey
	case errors.Is(err, ErrDNS):
		return StatKeyFail
	case errors.Is(err, ErrMultipleRecords):
		return StatMultiDNSReply
	case errors.Is(err, ErrKeyRevoked):
		return StatRevoked
	case errors.Is(err, ErrBodyHashMismatch), errors.Is(err, ErrSigVerify):
		return StatBadSig
	}
	return StatCantVrfy
}
