// Package guest is the verification program that runs inside the zkvm.
//
// It reads the signing domain, the raw message and the signer's public key,
// commits the digests of the domain and key, checks the message's DKIM
// signature with that key, extracts the payment fields and commits the
// encoded claim. An authentication failure is reported in the claim; only
// unparseable input aborts the run.
package guest

import (
	"errors"
	"fmt"

	"github.com/synqronlabs/zkmail/claim"
	"github.com/synqronlabs/zkmail/dkim"
	"github.com/synqronlabs/zkmail/mime"
	"github.com/synqronlabs/zkmail/zkvm"
)

// ProgramName names the program for executors that need one.
const ProgramName = "zkmail-guest"

var (
	// ErrParse is returned when the message cannot be parsed.
	ErrParse = errors.New("guest: cannot parse message")
	// ErrKey is returned when the key type or key bytes are unusable.
	ErrKey = errors.New("guest: unusable public key")
	// ErrAuthenticate is returned when the authenticator could not run.
	ErrAuthenticate = errors.New("guest: authenticator failed")
	// ErrInput is returned when the program input is incomplete.
	ErrInput = errors.New("guest: reading input")
)

// Inputs are the values the host hands the program, in read order.
type Inputs struct {
	Domain   string
	RawEmail []byte
	KeyType  string
	KeyBytes []byte
}

// Committer receives the program's public output.
type Committer interface {
	CommitSlice([]byte)
}

// Authenticator checks a message's DKIM signature for domain with key.
// Authentication failure is reported in the Outcome; an error means the
// check could not be carried out.
type Authenticator interface {
	Authenticate(domain string, message []byte, key *dkim.PublicKey) (*dkim.Outcome, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(domain string, message []byte, key *dkim.PublicKey) (*dkim.Outcome, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(domain string, message []byte, key *dkim.PublicKey) (*dkim.Outcome, error) {
	return f(domain, message, key)
}

// DKIMAuthenticator verifies with dkim.VerifyWithKey.
var DKIMAuthenticator Authenticator = AuthenticatorFunc(dkim.VerifyWithKey)

// Pipeline is the verification routine.
type Pipeline struct {
	Authenticator Authenticator
	Extractor     Extractor
}

// DefaultPipeline uses DKIM verification and the payment notification pattern.
func DefaultPipeline() *Pipeline {
	return &Pipeline{
		Authenticator: DKIMAuthenticator,
		Extractor:     PaymentExtractor,
	}
}

// Run verifies in and commits the signing identity digests followed by the
// encoded claim. On error nothing after the digests is committed and the
// caller must discard the output.
func (p *Pipeline) Run(in Inputs, c Committer) (claim.PublicClaim, error) {
	msg, err := mime.ParseMessage(in.RawEmail)
	if err != nil {
		return claim.PublicClaim{}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	key, err := dkim.NewPublicKey(in.KeyType, in.KeyBytes)
	if err != nil {
		return claim.PublicClaim{}, fmt.Errorf("%w: %w", ErrKey, err)
	}

	id := claim.NewSigningIdentity(in.Domain, in.KeyBytes)
	c.CommitSlice(id.DomainHash[:])
	c.CommitSlice(id.PublicKeyHash[:])

	outcome, err := p.Authenticator.Authenticate(in.Domain, msg.Raw, key)
	if err != nil {
		return claim.PublicClaim{}, fmt.Errorf("%w: %w", ErrAuthenticate, err)
	}

	fact := p.Extractor.Extract(msg.Text())
	result := claim.New(id, outcome.Passed(), fact)

	encoded, err := claim.Encode(result)
	if err != nil {
		return claim.PublicClaim{}, err
	}
	c.CommitSlice(encoded)
	return result, nil
}

// ReadInputs reads the four program inputs from env.
func ReadInputs(env *zkvm.Env) (Inputs, error) {
	var in Inputs
	var err error
	if in.Domain, err = env.ReadString(); err != nil {
		return in, fmt.Errorf("%w: domain: %w", ErrInput, err)
	}
	if in.RawEmail, err = env.ReadBytes(); err != nil {
		return in, fmt.Errorf("%w: message: %w", ErrInput, err)
	}
	if in.KeyType, err = env.ReadString(); err != nil {
		return in, fmt.Errorf("%w: key type: %w", ErrInput, err)
	}
	if in.KeyBytes, err = env.ReadBytes(); err != nil {
		return in, fmt.Errorf("%w: key: %w", ErrInput, err)
	}
	return in, nil
}

// WriteInputs writes in to stdin in the order ReadInputs expects.
func WriteInputs(stdin *zkvm.Stdin, in Inputs) {
	stdin.WriteString(in.Domain)
	stdin.WriteBytes(in.RawEmail)
	stdin.WriteString(in.KeyType)
	stdin.WriteBytes(in.KeyBytes)
}

// Main is the program entry point.
func Main(env *zkvm.Env) error {
	in, err := ReadInputs(env)
	if err != nil {
		return err
	}
	_, err = DefaultPipeline().Run(in, env)
	return err
}
