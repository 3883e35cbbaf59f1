// Package zkmail proves that an email was DKIM-signed by a domain without
// revealing the email.
//
// A Manager runs the whole lifecycle for one message: it picks the
// DKIM-Signature of the configured domain, resolves the signing key, runs
// the verification program under a prover, checks the resulting receipt and
// stores it.
//
//	m, err := zkmail.New("hdfcbank.net").
//		Resolver(dns.NewStdResolver()).
//		Store(fileStore).
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	outcome, err := m.RunFile(ctx, "payment.eml")
//
// Authentication failure is not an error: the receipt is still produced
// and its claim carries Result=false. Errors are returned only when no
// trustworthy receipt can be produced.
package zkmail

import (
	"errors"

	"github.com/oklog/ulid/v2"

	"github.com/synqronlabs/zkmail/claim"
	"github.com/synqronlabs/zkmail/zkvm"
)

var (
	// ErrInputMalformed is returned when the message or its DKIM-Signature
	// headers cannot be parsed.
	ErrInputMalformed = errors.New("zkmail: malformed input")
	// ErrInvalidDomain is reported when no DKIM-Signature is from the
	// configured domain.
	ErrInvalidDomain = errors.New("zkmail: invalid domain")
	// ErrResolve is returned when the signing key cannot be retrieved.
	ErrResolve = errors.New("zkmail: resolving signing key")
	// ErrProve is returned when the program or the prover fails.
	ErrProve = errors.New("zkmail: proof generation failed")
	// ErrProofInvalid is returned when the receipt does not verify.
	ErrProofInvalid = errors.New("zkmail: proof verification failed")
	// ErrPersist is returned when the verified receipt cannot be stored.
	ErrPersist = errors.New("zkmail: persisting receipt")
)

// Status summarizes a run that did not fail.
type Status string

const (
	// StatusVerified means the message authenticated.
	StatusVerified Status = "verified"
	// StatusNotVerified means a receipt was produced but the message did
	// not authenticate.
	StatusNotVerified Status = "not_verified"
	// StatusInvalidDomain means no signature matched and no proof was attempted.
	StatusInvalidDomain Status = "invalid_domain"
)

// Outcome is the result of a run.
type Outcome struct {
	ID     ulid.ULID
	Status Status

	// Domain and Selector identify the signature that was proven.
	Domain   string
	Selector string

	// Claim is the decoded public claim. Zero for StatusInvalidDomain.
	Claim claim.PublicClaim

	Receipt *zkvm.Receipt

	// Artifact is where the receipt was stored.
	Artifact string

	// Testing is set when the key record marks the domain as testing
	// DKIM (t=y).
	Testing bool

	// Diagnostics are host-side observations, only collected for verified
	// messages. They are not part of the proof.
	Diagnostics *Diagnostics
}

// Verified reports whether the proven claim says the message authenticated.
func (o *Outcome) Verified() bool {
	return o != nil && o.Status == StatusVerified
}
