// Package dns provides the TXT record lookups used to retrieve DKIM public keys.
//
// Two resolvers are provided: DNSResolver, built on github.com/miekg/dns with
// optional DNSSEC validation, and StdResolver, built on the standard library.
// MockResolver serves fixed records in tests.
package dns

import (
	"context"
	"errors"
)

// Resolver looks up TXT records.
type Resolver interface {
	// LookupTXT returns the TXT records for name. Character strings of a
	// single record are concatenated.
	LookupTXT(ctx context.Context, name string) (Result[string], error)
}

// Result holds the records of a lookup.
type Result[T any] struct {
	Records []T

	// Authentic is true if the response was DNSSEC-validated by the upstream resolver.
	Authentic bool
}

var (
	ErrDNSNotFound = errors.New("dns: name not found")
	ErrDNSServFail = errors.New("dns: server failure")
	ErrDNSTimeout  = errors.New("dns: timeout")
	ErrDNSRefused  = errors.New("dns: query refused")
	ErrDNSBogus    = errors.New("dns: dnssec validation failed")
)

// IsNotFound reports whether err indicates that the name or record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDNSNotFound)
}

// IsTimeout reports whether err is a lookup timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrDNSTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsServFail reports whether err is a server failure.
func IsServFail(err error) bool {
	return errors.Is(err, ErrDNSServFail)
}

// IsTemporary reports whether a later attempt of the same lookup may succeed.
func IsTemporary(err error) bool {
	return IsTimeout(err) || IsServFail(err) || errors.Is(err, ErrDNSRefused)
}
