package dkim

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"strings"
	"time"
)

// Signer produces DKIM-Signature fields for test fixtures and the sign
// command. Unset optional fields mean relaxed/relaxed, sha256 and
// DefaultSignedHeaders.
type Signer struct {
	Domain   string // d=
	Selector string // s=

	// PrivateKey is an *rsa.PrivateKey or an ed25519.PrivateKey.
	PrivateKey crypto.Signer

	// Headers are the field names to sign. From is always added.
	Headers []string

	HeaderCanonicalization Canonicalization
	BodyCanonicalization   Canonicalization

	// Hash is "sha256" or "sha1". Ed25519 keys always use sha256.
	Hash string

	// Identity is the i= value, left out when empty.
	Identity string

	// Expiration sets x= this long after t=. Zero omits x=.
	Expiration time.Duration

	// OversignHeaders lists each signed name once more than the message
	// has fields of that name, so no such field can be added later.
	OversignHeaders bool

	// Now is the clock for t=. Nil means time.Now.
	Now func() time.Time
}

// Sign returns the DKIM-Signature field for message, ending in CRLF. The
// message must use CRLF line endings and carry exactly one From field.
func (s *Signer) Sign(message []byte) (string, error) {
	fields, bodyStart, err := splitHeader(message)
	if err != nil {
		return "", fmt.Errorf("parsing message headers: %w", err)
	}
	if n := countFields(fields, "from"); n != 1 {
		return "", fmt.Errorf("%w: message has %d From fields", ErrFromRequired, n)
	}

	alg, err := s.algorithm()
	if err != nil {
		return "", err
	}
	sig := newSignature()
	sig.Algorithm = string(alg)
	h, ok := hashByName(sig.AlgorithmHash())
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrHashAlgorithmUnknown, sig.AlgorithmHash())
	}

	hc := orDefault(s.HeaderCanonicalization, CanonRelaxed)
	bc := orDefault(s.BodyCanonicalization, CanonRelaxed)
	sig.Canonicalization = string(hc) + "/" + string(bc)
	sig.Domain = s.Domain
	sig.Selector = s.Selector
	sig.Identity = s.Identity
	sig.SignedHeaders = s.signedHeaders(fields)

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	sig.SignTime = now().Unix()
	if s.Expiration > 0 {
		sig.ExpireTime = sig.SignTime + int64(s.Expiration/time.Second)
	}
	sig.BodyHash = bodyHash(h.New(), bc, message[bodyStart:])

	digest, err := dataHash(h.New(), hc, fields, sig.SignedHeaders, []byte(sig.format(false)))
	if err != nil {
		return "", fmt.Errorf("computing data hash: %w", err)
	}
	if sig.Signature, err = s.signDigest(h, digest); err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	return sig.format(true) + "\r\n", nil
}

// SignMessage returns message with its DKIM-Signature field prepended.
func (s *Signer) SignMessage(message []byte) ([]byte, error) {
	field, err := s.Sign(message)
	if err != nil {
		return nil, err
	}
	return append([]byte(field), message...), nil
}

// Record returns the DNS TXT record that publishes the signer's public key.
func (s *Signer) Record() (string, error) {
	var pub *PublicKey
	switch k := s.PrivateKey.(type) {
	case *rsa.PrivateKey:
		pub = &PublicKey{Type: "rsa", Key: &k.PublicKey}
	case ed25519.PrivateKey:
		pub = &PublicKey{Type: "ed25519", Key: k.Public()}
	default:
		return "", fmt.Errorf("%w: %T", ErrSigAlgorithmUnknown, s.PrivateKey)
	}
	r := &Record{Key: pub.Type, PublicKey: pub}
	return r.TXT()
}

func (s *Signer) signDigest(h crypto.Hash, digest []byte) ([]byte, error) {
	opts := crypto.SignerOpts(h)
	if _, ok := s.PrivateKey.(ed25519.PrivateKey); ok {
		opts = crypto.Hash(0)
	}
	return s.PrivateKey.Sign(rand.Reader, digest, opts)
}

func (s *Signer) algorithm() (Algorithm, error) {
	switch s.PrivateKey.(type) {
	case *rsa.PrivateKey:
		switch hash := strings.ToLower(s.Hash); hash {
		case "", "sha256":
			return AlgRSASHA256, nil
		case "sha1":
			return AlgRSASHA1, nil
		default:
			return "", fmt.Errorf("%w: %s", ErrHashAlgorithmUnknown, hash)
		}
	case ed25519.PrivateKey:
		return AlgEd25519SHA256, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrSigAlgorithmUnknown, s.PrivateKey)
	}
}

// signedHeaders picks the configured names that occur in the message, with
// From first when it was not configured.
func (s *Signer) signedHeaders(fields []field) []string {
	names := s.Headers
	if len(names) == 0 {
		names = DefaultSignedHeaders
	}
	if !containsFold(names, "from") {
		names = append([]string{"From"}, names...)
	}

	var signed []string
	for _, name := range names {
		if countFields(fields, strings.ToLower(name)) > 0 {
			signed = append(signed, name)
		}
	}
	if !s.OversignHeaders {
		return signed
	}

	listed := make(map[string]int)
	for _, name := range signed {
		listed[strings.ToLower(name)]++
	}
	for _, name := range signed {
		lname := strings.ToLower(name)
		for ; listed[lname] <= countFields(fields, lname); listed[lname]++ {
			signed = append(signed, name)
		}
	}
	return signed
}

func countFields(fields []field, lname string) int {
	n := 0
	for _, f := range fields {
		if f.lname == lname {
			n++
		}
	}
	return n
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func orDefault(c, def Canonicalization) Canonicalization {
	if c == "" {
		return def
	}
	return c
}
