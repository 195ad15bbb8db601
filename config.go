package opendkim

import (
	"log/slog"
	"time"

	"github.com/synqronlabs/opendkim/dkim"
	"github.com/synqronlabs/opendkim/dns"
)

// Config contains configuration options for an Engine.
type Config struct {
	// Resolver fetches key records when no key lookup handler is registered.
	// Default: dns.NewResolver(dns.ResolverConfig{})
	Resolver dns.Resolver

	// KeyCacheSize is the number of key records the engine caches.
	// Negative disables the cache.
	// Default: 2048
	KeyCacheSize int

	// KeyCacheTTL is how long a cached key record stays valid.
	// Default: 1 hour
	KeyCacheTTL time.Duration

	// MinRSAKeyBits is the smallest RSA key accepted for signing or verifying.
	// Default: 1024
	MinRSAKeyBits int

	// SignedHeaders lists the header fields covered by new signatures, when present.
	// Default: dkim.DefaultSignedHeaders
	SignedHeaders []string

	// MaxRetries bounds how often Session.Run repeats a step that asked to try again.
	// Default: 32
	MaxRetries int

	// Logger is used for engine and session logging.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Resolver:      dns.NewResolver(dns.ResolverConfig{}),
		KeyCacheSize:  2048,
		KeyCacheTTL:   time.Hour,
		MinRSAKeyBits: 1024,
		SignedHeaders: dkim.DefaultSignedHeaders,
		MaxRetries:    32,
		Logger:        slog.Default(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Resolver == nil {
		c.Resolver = d.Resolver
	}
	if c.KeyCacheSize == 0 {
		c.KeyCacheSize = d.KeyCacheSize
	}
	if c.KeyCacheTTL <= 0 {
		c.KeyCacheTTL = d.KeyCacheTTL
	}
	if c.MinRSAKeyBits <= 0 {
		c.MinRSAKeyBits = d.MinRSAKeyBits
	}
	if len(c.SignedHeaders) == 0 {
		c.SignedHeaders = d.SignedHeaders
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}
