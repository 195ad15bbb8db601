package dkim

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

var ErrPrivateKey = errors.New("dkim: unusable private key")

// ParsePrivateKey parses a signing key. PEM blocks of type "PRIVATE KEY"
// (PKCS#8, RSA or Ed25519) and "RSA PRIVATE KEY" (PKCS#1) are accepted, as is
// bare base64 DER.
func ParsePrivateKey(data []byte) (crypto.Signer, error) {
	var der []byte
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(removeFWS(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: neither PEM nor base64 DER", ErrPrivateKey)
		}
		der = decoded
	}

	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		switch k := key.(type) {
		case *rsa.PrivateKey:
			return k, nil
		case ed25519.PrivateKey:
			return k, nil
		default:
			return nil, fmt.Errorf("%w: unsupported key type %T", ErrPrivateKey, key)
		}
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: not a PKCS#1 or PKCS#8 key", ErrPrivateKey)
}

// keyAlgorithm returns the a= key type for a signing key.
func keyAlgorithm(key crypto.Signer) string {
	switch key.(type) {
	case *rsa.PrivateKey:
		return "rsa"
	case ed25519.PrivateKey:
		return "ed25519"
	}
	return ""
}

// MarshalPrivateKey encodes key as a PKCS#8 PEM block.
func MarshalPrivateKey(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// RecordForKey builds the DNS record publishing the public half of key.
func RecordForKey(key crypto.Signer) (*Record, error) {
	kt := keyAlgorithm(key)
	if kt == "" {
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrPrivateKey, key)
	}
	return &Record{
		Version:   "DKIM1",
		Key:       kt,
		PublicKey: key.Public(),
	}, nil
}
