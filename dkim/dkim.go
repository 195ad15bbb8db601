// Package dkim is a streaming DomainKeys Identified Mail engine (RFC 6376).
//
// The engine is organized around three objects:
//
//   - Library holds process-wide state: the key resolver, the key cache and the
//     optional callbacks for prescreening, key lookup and finalization.
//   - Handle is one signing or verification operation bound to one message.
//     Messages are fed with Header, EOH, Body and EOM, or as a raw stream with Chunk.
//   - SigInfo describes one DKIM-Signature of a message being verified.
//
// Signing a message:
//
//	lib, _ := dkim.NewLibrary(dkim.LibraryConfig{})
//	h, stat, err := lib.Sign(dkim.SignParams{
//	    ID:         "msg-1",
//	    PrivateKey: pemKey,
//	    Selector:   "selector1",
//	    Domain:     "example.com",
//	})
//	for _, line := range headerLines {
//	    h.Header(line)
//	}
//	h.EOH(ctx)
//	h.Body(body)
//	h.EOM(ctx)
//	value, _ := h.GetSigHdr()
//
// Callbacks may return CBTryAgain. The processing call that invoked the callback
// then returns StatCBTryAgain and can be repeated later; the engine resumes where
// it stopped and invokes the same callback again with identical arguments.
package dkim

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"time"
)

// Status represents the verification result of one signature per RFC 8601.
type Status string

const (
	StatusNone      Status = "none"
	StatusPass      Status = "pass"
	StatusFail      Status = "fail"
	StatusPolicy    Status = "policy"
	StatusNeutral   Status = "neutral"
	StatusTemperror Status = "temperror"
	StatusPermerror Status = "permerror"
)

// Algorithm represents a DKIM signing algorithm.
type Algorithm string

const (
	AlgRSASHA256     Algorithm = "rsa-sha256"
	AlgRSASHA1       Algorithm = "rsa-sha1"
	AlgEd25519SHA256 Algorithm = "ed25519-sha256"
)

// Canonicalization represents header/body canonicalization algorithms.
type Canonicalization string

const (
	CanonSimple  Canonicalization = "simple"
	CanonRelaxed Canonicalization = "relaxed"
)

// SignatureHeader is the name of the header field carrying a signature.
const SignatureHeader = "DKIM-Signature"

// MaxKeyRecordSize is the size of the buffer handed to key lookup callbacks.
const MaxKeyRecordSize = 4096

// Key retrieval errors.
var (
	ErrNoRecord        = errors.New("dkim: no DKIM DNS record found")
	ErrMultipleRecords = errors.New("dkim: multiple DKIM DNS records found")
	ErrDNS             = errors.New("dkim: DNS lookup failed")
	ErrSyntax          = errors.New("dkim: syntax error in DKIM record")
)

// Signature verification errors.
var (
	ErrSigAlgMismatch          = errors.New("dkim: signature algorithm mismatch with DNS record")
	ErrHashAlgNotAllowed       = errors.New("dkim: hash algorithm not allowed by DNS record")
	ErrKeyNotForEmail          = errors.New("dkim: DNS record not allowed for email")
	ErrDomainIdentityMismatch  = errors.New("dkim: domain and identity mismatch")
	ErrSigExpired              = errors.New("dkim: signature has expired")
	ErrHashAlgorithmUnknown    = errors.New("dkim: unknown hash algorithm")
	ErrBodyHashMismatch        = errors.New("dkim: body hash does not match")
	ErrSigVerify               = errors.New("dkim: signature verification failed")
	ErrSigAlgorithmUnknown     = errors.New("dkim: unknown signature algorithm")
	ErrCanonicalizationUnknown = errors.New("dkim: unknown canonicalization")
	ErrHeaderMalformed         = errors.New("dkim: mail header is malformed")
	ErrFromRequired            = errors.New("dkim: From header is required")
	ErrQueryMethod             = errors.New("dkim: no recognized query method")
	ErrKeyRevoked              = errors.New("dkim: key has been revoked")
	ErrWeakKey                 = errors.New("dkim: key is too weak")
	ErrMissingTag              = errors.New("dkim: missing required tag")
	ErrDuplicateTag            = errors.New("dkim: duplicate tag")
	ErrInvalidVersion          = errors.New("dkim: invalid version")
	ErrTLD                     = errors.New("dkim: signed domain is top-level domain")
	ErrBodyHashLength          = errors.New("dkim: body hash length mismatch")
	ErrIgnored                 = errors.New("dkim: signature ignored by prescreen")
)

// DefaultSignedHeaders is the default list of headers to sign.
var DefaultSignedHeaders = []string{
	"From",
	"To",
	"Cc",
	"Subject",
	"Date",
	"Message-ID",
	"In-Reply-To",
	"References",
	"MIME-Version",
	"Content-Type",
	"Content-Transfer-Encoding",
	"Reply-To",
}

// timeNow is used for testing.
var timeNow = time.Now

func signWithKey(key crypto.Signer, hash crypto.Hash, data []byte) ([]byte, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k.Sign(rand.Reader, data, hash)
	case ed25519.PrivateKey:
		// Ed25519 signs the digest itself (RFC 8463), not a pre-hashed value.
		return k.Sign(rand.Reader, data, crypto.Hash(0))
	default:
		return nil, ErrSigAlgorithmUnknown
	}
}

func verifyWithKey(key any, hash crypto.Hash, data, signature []byte) error {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(k, hash, data, signature)
	case ed25519.PublicKey:
		if !ed25519.Verify(k, data, signature) {
			return ErrSigVerify
		}
		return nil
	default:
		return ErrSigAlgorithmUnknown
	}
}
