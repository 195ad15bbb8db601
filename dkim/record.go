package dkim

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var errNotDKIM = errors.New("dkim: not a DKIM record")

// Record represents a DKIM DNS TXT record (RFC 6376 Section 3.6.1).
// The record is retrieved from <selector>._domainkey.<domain>.
type Record struct {
	// Version is the record version, must be "DKIM1".
	Version string

	// Hashes is the list of acceptable hash algorithms (e.g., "sha256", "sha1").
	// Empty means all algorithms are acceptable.
	Hashes []string

	// Key is the key type: "rsa" (default) or "ed25519".
	Key string

	Notes string

	// Pubkey is the raw public key data (base64-decoded).
	// Empty means the key has been revoked.
	Pubkey []byte

	// Services lists acceptable service types.
	// Empty or containing "*" means all services.
	Services []string

	// Flags contains key flags:
	//   "y" - Domain is testing DKIM
	//   "s" - i= domain must exactly match d= domain
	Flags []string

	// PublicKey is *rsa.PublicKey or ed25519.PublicKey, nil when revoked.
	PublicKey any
}

// ServiceAllowed returns true if the given service is allowed by this key.
func (r *Record) ServiceAllowed(service string) bool {
	return len(r.Services) == 0 || slices.ContainsFunc(r.Services, func(s string) bool {
		return s == "*" || strings.EqualFold(s, service)
	})
}

// IsTesting returns true if the key is marked for testing (t=y).
func (r *Record) IsTesting() bool {
	return r.hasFlag("y")
}

// RequireStrictAlignment returns true if strict alignment is required (t=s).
func (r *Record) RequireStrictAlignment() bool {
	return r.hasFlag("s")
}

func (r *Record) hasFlag(flag string) bool {
	return slices.ContainsFunc(r.Flags, func(f string) bool { return strings.EqualFold(f, flag) })
}

// HashAllowed returns true if the given hash algorithm is allowed.
func (r *Record) HashAllowed(hash string) bool {
	return len(r.Hashes) == 0 || slices.ContainsFunc(r.Hashes, func(h string) bool {
		return strings.EqualFold(h, hash)
	})
}

// ToTXT generates a DNS TXT record string from this Record.
func (r *Record) ToTXT() (string, error) {
	if r.Version != "DKIM1" {
		return "", fmt.Errorf("%w: invalid version %s", ErrSyntax, r.Version)
	}
	parts := []string{"v=DKIM1"}

	if len(r.Hashes) > 0 {
		parts = append(parts, "h="+strings.Join(r.Hashes, ":"))
	}
	if r.Key != "" && !strings.EqualFold(r.Key, "rsa") {
		parts = append(parts, "k="+r.Key)
	}
	if r.Notes != "" {
		parts = append(parts, "n="+encodeQP(r.Notes))
	}
	if len(r.Services) > 0 && !(len(r.Services) == 1 && r.Services[0] == "*") {
		parts = append(parts, "s="+strings.Join(r.Services, ":"))
	}
	if len(r.Flags) > 0 {
		parts = append(parts, "t="+strings.Join(r.Flags, ":"))
	}

	pk := r.Pubkey
	if len(pk) == 0 && r.PublicKey != nil {
		var err error
		if pk, err = marshalPublicKey(r.PublicKey); err != nil {
			return "", err
		}
	}
	parts = append(parts, "p="+base64.StdEncoding.EncodeToString(pk))

	return strings.Join(parts, "; "), nil
}

func marshalPublicKey(key any) ([]byte, error) {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return x509.MarshalPKIXPublicKey(k)
	case ed25519.PublicKey:
		return []byte(k), nil
	default:
		return nil, fmt.Errorf("unsupported public key type: %T", key)
	}
}

// ParseRecord parses a DKIM DNS TXT record.
// The boolean result tells whether txt looked like a DKIM record at all, so
// callers can skip unrelated TXT records published at the same name.
func ParseRecord(txt string) (*Record, bool, error) {
	tags, err := parseTagList(txt)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	record := &Record{
		Version:  "DKIM1",
		Key:      "rsa",
		Services: []string{"*"},
	}

	isDKIM := false
	hasKey := false
	for i, t := range tags {
		switch t.name {
		case "v":
			// v= must be first when present.
			if t.value != "DKIM1" || i != 0 {
				return nil, false, errNotDKIM
			}
		case "h":
			record.Hashes = splitList(t.value, ":")
		case "k":
			record.Key = strings.ToLower(t.value)
		case "n":
			record.Notes = decodeQP(t.value)
		case "p":
			hasKey = true
			if cleaned := removeFWS(t.value); cleaned != "" {
				decoded, err := base64.StdEncoding.DecodeString(cleaned)
				if err != nil {
					return nil, true, fmt.Errorf("%w: invalid public key encoding: %v", ErrSyntax, err)
				}
				record.Pubkey = decoded
			}
		case "s":
			record.Services = splitList(t.value, ":")
		case "t":
			record.Flags = splitList(t.value, ":")
		default:
			continue
		}
		isDKIM = true
	}

	if !isDKIM {
		return nil, false, errNotDKIM
	}
	if !hasKey {
		return nil, true, fmt.Errorf("%w: missing public key (p=)", ErrSyntax)
	}

	if len(record.Pubkey) > 0 {
		pk, err := parsePublicKey(record.Key, record.Pubkey)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		record.PublicKey = pk
	}

	return record, true, nil
}

func parsePublicKey(keyType string, data []byte) (any, error) {
	switch strings.ToLower(keyType) {
	case "", "rsa":
		pk, err := x509.ParsePKIXPublicKey(data)
		if err != nil {
			// Some publishers use a bare PKCS#1 key.
			if rsaPK, err1 := x509.ParsePKCS1PublicKey(data); err1 == nil {
				return rsaPK, nil
			}
			return nil, fmt.Errorf("invalid RSA public key: %w", err)
		}
		rsaPK, ok := pk.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("expected RSA public key, got %T", pk)
		}
		return rsaPK, nil

	case "ed25519":
		if len(data) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid Ed25519 public key size: %d", len(data))
		}
		return ed25519.PublicKey(data), nil

	default:
		return nil, fmt.Errorf("unsupported key type: %s", keyType)
	}
}
