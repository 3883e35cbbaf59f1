// Package dkim verifies DomainKeys Identified Mail signatures (RFC 6376)
// against a public key supplied by the caller.
//
// Verification is split from key discovery so that it can run where no
// network is available: LookupKey resolves and parses the DNS record on
// the host, and VerifyWithKey checks a message against the resulting
// key material without performing any I/O or reading the clock.
//
// Supported algorithms:
//   - RSA-SHA256
//   - RSA-SHA1 (deprecated, accepted for old signatures)
//   - Ed25519-SHA256 (RFC 8463)
//
// # Basic Usage
//
//	rec, err := dkim.LookupKey(ctx, resolver, "example.com", "sel1")
//	outcome, err := dkim.VerifyWithKey("example.com", message, rec.PublicKey)
//	if outcome.Passed() {
//	    // message was signed by example.com
//	}
//
// A Signer is included for producing signed fixtures.
package dkim

import "errors"

// Status represents the result of DKIM verification per RFC 8601.
type Status string

const (
	// StatusNone indicates the message was not signed by the domain.
	StatusNone Status = "none"

	// StatusPass indicates the signature was verified successfully.
	StatusPass Status = "pass"

	// StatusFail indicates the signature or body hash did not verify.
	StatusFail Status = "fail"

	// StatusNeutral indicates the signature could not be evaluated for the domain.
	StatusNeutral Status = "neutral"

	// StatusTemperror indicates a temporary error (e.g., DNS timeout).
	StatusTemperror Status = "temperror"

	// StatusPermerror indicates a permanent error (e.g., invalid syntax).
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

// Common errors.
var (
	// DNS lookup errors.
	ErrNoRecord        = errors.New("dkim: no DKIM DNS record found")
	ErrMultipleRecords = errors.New("dkim: multiple DKIM DNS records found")
	ErrDNS             = errors.New("dkim: DNS lookup failed")
	ErrSyntax          = errors.New("dkim: syntax error in DKIM record")

	// Key errors.
	ErrKeyType           = errors.New("dkim: unsupported key type")
	ErrKeyMaterial       = errors.New("dkim: invalid public key material")
	ErrKeyRevoked        = errors.New("dkim: key has been revoked")
	ErrWeakKey           = errors.New("dkim: key is too weak")
	ErrKeyNotForEmail    = errors.New("dkim: key not allowed for email")
	ErrKeyHashNotAllowed = errors.New("dkim: key record does not allow the signature hash")

	// Signature verification errors.
	ErrNoSignature             = errors.New("dkim: no DKIM-Signature for domain")
	ErrSigAlgMismatch          = errors.New("dkim: signature algorithm does not match key type")
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
	ErrBodyLength              = errors.New("dkim: body length limit (l=) not supported")
	ErrMissingTag              = errors.New("dkim: missing required tag")
	ErrDuplicateTag            = errors.New("dkim: duplicate tag")
	ErrInvalidVersion          = errors.New("dkim: invalid version")
	ErrTLD                     = errors.New("dkim: signed domain is top-level domain")
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
