package dkim

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/synqronlabs/opendkim/dns"
)

// FinalFunc is called during verify-mode EOM with every signature of the message.
type FinalFunc func(h *Handle, sigs []*SigInfo) CBStat

// KeyLookupFunc is called during EOH for each signature that still needs a key.
// It writes the TXT record into buf, NUL-terminated.
type KeyLookupFunc func(h *Handle, sig *SigInfo, buf []byte) CBStat

// PrescreenFunc is called during verify-mode EOH before any key is fetched.
// It may mark signatures with SigInfo.Ignore.
type PrescreenFunc func(h *Handle, sigs []*SigInfo) CBStat

// LibraryConfig configures a Library.
type LibraryConfig struct {
	// Resolver fetches key records when no key lookup callback is installed.
	// Default: dns.NewResolver(dns.ResolverConfig{}).
	Resolver dns.Resolver

	// KeyCacheSize is the number of key records kept. Negative disables the cache.
	// Default: 2048.
	KeyCacheSize int

	// KeyCacheTTL bounds how long a cached key record is used. Default: 1h.
	KeyCacheTTL time.Duration

	// MinRSAKeyBits rejects smaller RSA keys. Default: 1024.
	MinRSAKeyBits int

	// SignedHeaders lists the headers signed by new signing handles.
	// Default: DefaultSignedHeaders.
	SignedHeaders []string

	Logger *slog.Logger
}

// Library holds the state shared by all handles: resolver, key cache and callbacks.
type Library struct {
	cfg      LibraryConfig
	resolver dns.Resolver
	cache    *keyCache
	logger   *slog.Logger

	mu        sync.RWMutex
	final     FinalFunc
	keyLookup KeyLookupFunc
	prescreen PrescreenFunc
	closed    bool
}

// SignParams describes a signing operation.
type SignParams struct {
	ID         string
	PrivateKey []byte // PEM or base64 DER
	Selector   string
	Domain     string

	HeaderCanon Canonicalization // default simple
	BodyCanon   Canonicalization // default simple
	Algorithm   Algorithm        // default rsa-sha256, or ed25519-sha256 for Ed25519 keys

	// Length is the number of canonical body bytes to sign, -1 for all of it.
	// Zero also means the whole body.
	Length int64
}

// NewLibrary creates a Library.
func NewLibrary(cfg LibraryConfig) (*Library, error) {
	if cfg.Resolver == nil {
		cfg.Resolver = dns.NewResolver(dns.ResolverConfig{})
	}
	if cfg.KeyCacheSize == 0 {
		cfg.KeyCacheSize = 2048
	}
	if cfg.KeyCacheTTL <= 0 {
		cfg.KeyCacheTTL = time.Hour
	}
	if cfg.MinRSAKeyBits <= 0 {
		cfg.MinRSAKeyBits = 1024
	}
	if len(cfg.SignedHeaders) == 0 {
		cfg.SignedHeaders = DefaultSignedHeaders
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	lib := &Library{
		cfg:      cfg,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
	}
	if cfg.KeyCacheSize > 0 {
		c, err := newKeyCache(cfg.KeyCacheSize, cfg.KeyCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("dkim: creating key cache: %w", err)
		}
		lib.cache = c
	}
	return lib, nil
}

// Close releases the library. Handles created from it must not be used afterwards.
func (l *Library) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.cache != nil {
		l.cache.flush()
	}
}

// SetFinal installs the final callback and returns the previous one.
func (l *Library) SetFinal(fn FinalFunc) FinalFunc {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.final
	l.final = fn
	return prev
}

// SetKeyLookup installs the key lookup callback and returns the previous one.
func (l *Library) SetKeyLookup(fn KeyLookupFunc) KeyLookupFunc {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.keyLookup
	l.keyLookup = fn
	return prev
}

// SetPrescreen installs the prescreen callback and returns the previous one.
func (l *Library) SetPrescreen(fn PrescreenFunc) PrescreenFunc {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.prescreen
	l.prescreen = fn
	return prev
}

func (l *Library) callbacks() (FinalFunc, KeyLookupFunc, PrescreenFunc) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.final, l.keyLookup, l.prescreen
}

func (l *Library) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// Sign creates a signing handle. On failure the handle is nil and the error
// carries the description.
func (l *Library) Sign(p SignParams) (*Handle, Stat, error) {
	if l.isClosed() {
		return nil, StatInvalid, errors.New("dkim: library closed")
	}
	if p.Selector == "" || p.Domain == "" {
		return nil, StatInvalid, errors.New("dkim: selector and domain are required")
	}
	domain := strings.ToLower(strings.TrimSuffix(p.Domain, "."))
	if isTLD(domain) {
		return nil, StatInvalid, fmt.Errorf("%w: %s", ErrTLD, domain)
	}

	key, err := ParsePrivateKey(p.PrivateKey)
	if err != nil {
		return nil, StatInvalid, err
	}
	if k, ok := key.(*rsa.PrivateKey); ok && k.N.BitLen() < l.cfg.MinRSAKeyBits {
		return nil, StatInvalid, fmt.Errorf("%w: %d bits", ErrWeakKey, k.N.BitLen())
	}

	alg := p.Algorithm
	if alg == "" {
		alg = AlgRSASHA256
		if _, ok := key.(ed25519.PrivateKey); ok {
			alg = AlgEd25519SHA256
		}
	}
	sig := NewSignature()
	sig.Algorithm = string(alg)
	if sig.AlgorithmSign() != keyAlgorithm(key) {
		return nil, StatInvalid, fmt.Errorf("%w: %s with %s key", ErrSigAlgMismatch, alg, keyAlgorithm(key))
	}
	hash, ok := getHash(sig.AlgorithmHash())
	if !ok {
		return nil, StatInvalid, fmt.Errorf("%w: %s", ErrHashAlgorithmUnknown, alg)
	}

	hc, bc := p.HeaderCanon, p.BodyCanon
	if hc == "" {
		hc = CanonSimple
	}
	if bc == "" {
		bc = CanonSimple
	}
	if !validCanon(hc) || !validCanon(bc) {
		return nil, StatInvalid, fmt.Errorf("%w: %s/%s", ErrCanonicalizationUnknown, hc, bc)
	}
	sig.Canonicalization = string(hc) + "/" + string(bc)
	sig.Domain = domain
	sig.Selector = p.Selector

	length := p.Length
	if length == 0 {
		length = -1
	}

	h := l.newHandle(p.ID, ModeSign)
	h.sign = &signState{
		key:    key,
		hash:   hash,
		sig:    sig,
		length: length,
	}
	return h, StatOK, nil
}

// Verify creates a verifying handle.
func (l *Library) Verify(id string) (*Handle, Stat, error) {
	if l.isClosed() {
		return nil, StatInvalid, errors.New("dkim: library closed")
	}
	return l.newHandle(id, ModeVerify), StatOK, nil
}

func (l *Library) newHandle(id string, mode Mode) *Handle {
	return &Handle{
		lib:    l,
		id:     id,
		mode:   mode,
		logger: l.logger.With(slog.String("id", id), slog.String("mode", mode.String())),
	}
}

// FlushCache empties the key cache and returns the number of entries removed,
// or -1 when caching is disabled.
func (l *Library) FlushCache() int {
	if l.cache == nil {
		return -1
	}
	return l.cache.flush()
}

// CacheStats returns key cache counters, optionally resetting them.
func (l *Library) CacheStats(reset bool) (CacheStats, Stat) {
	if l.cache == nil {
		return CacheStats{}, StatNotImplement
	}
	return l.cache.snapshot(reset), StatOK
}

// LibFeature reports whether the library supports a feature.
func (l *Library) LibFeature(f Feature) bool {
	switch f {
	case FeatureSHA256, FeatureED25519, FeatureRSASHA1:
		return true
	case FeatureKeyCache:
		return l.cache != nil
	case FeatureDNSSEC:
		if r, ok := l.resolver.(*dns.DNSResolver); ok {
			return r.Config().DNSSEC
		}
	}
	return false
}

// fetchKey retrieves and parses the key record for selector and domain,
// consulting the key cache first.
func (l *Library) fetchKey(ctx context.Context, selector, domain string) (*Record, error) {
	name := selector + "._domainkey." + domain + "."
	if l.cache != nil {
		if rec, ok := l.cache.get(name); ok {
			return rec, nil
		}
	}

	res, err := l.resolver.LookupTXT(ctx, name)
	if err != nil {
		if dns.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRecord, name)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDNS, name, err)
	}

	var found *Record
	for _, txt := range res.Records {
		rec, isDKIM, err := ParseRecord(txt)
		if !isDKIM {
			continue
		}
		if err != nil {
			return nil, err
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %s", ErrMultipleRecords, name)
		}
		found = rec
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, name)
	}

	if l.cache != nil {
		l.cache.add(name, found)
	}
	return found, nil
}

// isTLD reports whether domain is empty or itself a public suffix.
func isTLD(domain string) bool {
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" {
		return true
	}
	_, err := publicsuffix.EffectiveTLDPlusOne(domain)
	return err != nil
}

type signState struct {
	key    crypto.Signer
	hash   crypto.Hash
	sig    *Signature
	length int64
	body   *bodyCanonicalizer
	header string
}
