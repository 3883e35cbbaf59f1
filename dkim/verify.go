package dkim

import (
	"bytes"
	"cmp"
	"crypto"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Outcome is the result of checking a message against one key.
type Outcome struct {
	Status Status

	// Signature is the DKIM-Signature the status applies to, nil when no
	// signature for the domain was present.
	Signature *Signature

	// Err describes why Status is not StatusPass.
	Err error
}

// Passed reports whether the message authenticated without error.
func (o *Outcome) Passed() bool {
	return o != nil && o.Status == StatusPass && o.Err == nil
}

// KeyVerifier checks DKIM signatures against caller-supplied key material.
// The zero value is ready to use and never reads the clock.
type KeyVerifier struct {
	// Now enables x= expiration checks when set.
	Now func() time.Time

	// MinRSAKeyBits rejects smaller RSA keys. Zero means the RFC 8301
	// floor of 1024.
	MinRSAKeyBits int
}

// VerifyWithKey checks message with a zero KeyVerifier.
func VerifyWithKey(domain string, message []byte, key *PublicKey) (*Outcome, error) {
	var v KeyVerifier
	return v.Verify(domain, message, key)
}

// Verify checks the DKIM-Signature headers of message whose d= equals
// domain against key. Signatures for other domains are ignored. The first
// passing signature wins; otherwise the outcome of the first signature for
// the domain is returned.
//
// An error is returned only when verification cannot run at all: a nil key
// or a header block that cannot be parsed. Authentication failures are
// reported in the Outcome.
func (v *KeyVerifier) Verify(domain string, message []byte, key *PublicKey) (*Outcome, error) {
	if key == nil || key.Key == nil {
		return nil, fmt.Errorf("%w: no key", ErrKeyMaterial)
	}

	headers, bodyOffset, err := splitHeader(message)
	if err != nil {
		return nil, err
	}

	domain = strings.TrimSuffix(domain, ".")
	var first *Outcome

	for _, hdr := range headers {
		if hdr.lname != "dkim-signature" {
			continue
		}

		sig, verifySig, err := ParseSignature(string(hdr.raw))
		if err != nil {
			if first == nil {
				first = &Outcome{Status: StatusPermerror, Err: fmt.Errorf("parsing signature: %w", err)}
			}
			continue
		}
		if !strings.EqualFold(sig.Domain, domain) {
			continue
		}

		outcome := v.verifySignature(sig, verifySig, headers, message[bodyOffset:], key)
		if outcome.Passed() {
			return outcome, nil
		}
		if first == nil || first.Signature == nil {
			first = outcome
		}
	}

	if first == nil {
		return &Outcome{Status: StatusNone, Err: fmt.Errorf("%w: %s", ErrNoSignature, domain)}, nil
	}
	return first, nil
}

func (v *KeyVerifier) verifySignature(sig *Signature, verifySig []byte, headers []field, body []byte, key *PublicKey) *Outcome {
	fail := func(status Status, err error) *Outcome {
		return &Outcome{Status: status, Signature: sig, Err: err}
	}

	p, err := v.params(sig)
	if err != nil {
		return fail(StatusPermerror, err)
	}

	if !strings.EqualFold(key.Type, sig.AlgorithmSign()) {
		return fail(StatusPermerror, fmt.Errorf("%w: key is %s, signature uses %s",
			ErrSigAlgMismatch, key.Type, sig.AlgorithmSign()))
	}

	minBits := cmp.Or(v.MinRSAKeyBits, 1024)
	if bits := key.Bits(); bits > 0 && bits < minBits {
		return fail(StatusPermerror, fmt.Errorf("%w: %d bits, minimum %d", ErrWeakKey, bits, minBits))
	}

	// l= lets anything be appended to a signed body.
	if sig.Length >= 0 {
		return fail(StatusPermerror, ErrBodyLength)
	}

	digest, err := dataHash(p.hash.New(), p.headerCanon, headers, sig.SignedHeaders, verifySig)
	if err != nil {
		return fail(StatusPermerror, fmt.Errorf("computing data hash: %w", err))
	}
	if err := key.verify(p.hash, digest, sig.Signature); err != nil {
		return fail(StatusFail, err)
	}

	if got := bodyHash(p.hash.New(), p.bodyCanon, body); !bytes.Equal(sig.BodyHash, got) {
		return fail(StatusFail, fmt.Errorf("%w: expected %x, got %x", ErrBodyHashMismatch, sig.BodyHash, got))
	}

	return &Outcome{Status: StatusPass, Signature: sig}
}

// sigParams is what a parsed signature selects for verification.
type sigParams struct {
	hash        crypto.Hash
	headerCanon Canonicalization
	bodyCanon   Canonicalization
}

// params checks the signature tags this verifier can act on. Failures here
// are permanent errors for the signature.
func (v *KeyVerifier) params(sig *Signature) (sigParams, error) {
	var p sigParams
	if !slices.ContainsFunc(sig.SignedHeaders, func(h string) bool { return strings.EqualFold(h, "from") }) {
		return p, fmt.Errorf("%w: From header must be signed", ErrFromRequired)
	}
	if v.Now != nil && sig.IsExpired(v.Now()) {
		return p, fmt.Errorf("%w: expired at %d", ErrSigExpired, sig.ExpireTime)
	}
	if isTLD(sig.Domain) {
		return p, fmt.Errorf("%w: %s", ErrTLD, sig.Domain)
	}

	var ok bool
	if p.hash, ok = hashByName(sig.AlgorithmHash()); !ok {
		return p, fmt.Errorf("%w: %s", ErrHashAlgorithmUnknown, sig.AlgorithmHash())
	}

	p.headerCanon, p.bodyCanon = sig.HeaderCanon(), sig.BodyCanon()
	for _, c := range []Canonicalization{p.headerCanon, p.bodyCanon} {
		if c != CanonSimple && c != CanonRelaxed {
			return p, fmt.Errorf("%w: %s", ErrCanonicalizationUnknown, c)
		}
	}

	// q= absent means dns/txt.
	if len(sig.QueryMethods) > 0 && !slices.ContainsFunc(sig.QueryMethods, func(m string) bool { return strings.EqualFold(m, "dns/txt") }) {
		return p, fmt.Errorf("%w: %s", ErrQueryMethod, strings.Join(sig.QueryMethods, ":"))
	}
	return p, nil
}

// isTLD reports whether domain is itself a public suffix, such as "com" or
// "co.uk", and so cannot sign. Unknown TLDs count as public suffixes.
func isTLD(domain string) bool {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if domain == "" {
		return true
	}
	suffix, _ := publicsuffix.PublicSuffix(domain)
	return suffix == domain
}
