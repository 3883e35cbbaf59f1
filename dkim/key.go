package dkim

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"
)

// PublicKey is the key material a signature is checked against: the k= key
// type of a DKIM record, the raw p= bytes, and the parsed key.
type PublicKey struct {
	// Type is "rsa" or "ed25519".
	Type string

	// Bytes is the base64-decoded p= value.
	Bytes []byte

	// Key is *rsa.PublicKey or ed25519.PublicKey.
	Key crypto.PublicKey
}

// NewPublicKey parses key bytes of the given type. RSA keys are accepted in
// SubjectPublicKeyInfo form (RFC 6376) and, for compatibility with older
// publishers, as a bare PKCS#1 RSAPublicKey. An empty type means "rsa".
func NewPublicKey(keyType string, data []byte) (*PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrKeyRevoked)
	}

	keyType = strings.ToLower(strings.TrimSpace(keyType))
	switch keyType {
	case "", "rsa":
		key, err := parseRSAKey(data)
		if err != nil {
			return nil, err
		}
		return &PublicKey{Type: "rsa", Bytes: data, Key: key}, nil

	case "ed25519":
		if len(data) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: ed25519 key is %d bytes", ErrKeyMaterial, len(data))
		}
		return &PublicKey{Type: keyType, Bytes: data, Key: ed25519.PublicKey(data)}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrKeyType, keyType)
	}
}

func parseRSAKey(data []byte) (*rsa.PublicKey, error) {
	pk, err := x509.ParsePKIXPublicKey(data)
	if err != nil {
		rsaPK, err2 := x509.ParsePKCS1PublicKey(data)
		if err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyMaterial, err)
		}
		return rsaPK, nil
	}
	rsaPK, ok := pk.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: expected RSA public key, got %T", ErrKeyMaterial, pk)
	}
	return rsaPK, nil
}

// Bits returns the RSA modulus size, or 0 for other key types.
func (k *PublicKey) Bits() int {
	if rsaPK, ok := k.Key.(*rsa.PublicKey); ok {
		return rsaPK.N.BitLen()
	}
	return 0
}

// marshalPublicKey converts a public key to bytes for the p= tag.
func marshalPublicKey(key crypto.PublicKey) ([]byte, error) {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return x509.MarshalPKIXPublicKey(k)
	case ed25519.PublicKey:
		return []byte(k), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrKeyType, key)
	}
}

// verify checks sig over digest. Ed25519 signs the digest bytes themselves
// (RFC 8463 Section 3).
func (k *PublicKey) verify(hash crypto.Hash, digest, sig []byte) error {
	switch pub := k.Key.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, hash, digest, sig); err != nil {
			return fmt.Errorf("%w: %v", ErrSigVerify, err)
		}
	case ed25519.PublicKey:
		if !ed25519.Verify(pub, digest, sig) {
			return ErrSigVerify
		}
	default:
		return fmt.Errorf("%w: %T", ErrSigAlgorithmUnknown, k.Key)
	}
	return nil
}
