// Package claim defines the public claim committed by the verification
// program and its Solidity ABI encoding.
//
// The encoding is the one produced by abi.encode(PublicValuesStruct) for
//
//	struct PublicValuesStruct {
//	    bytes32 domainHash;
//	    bytes32 publicKeyHash;
//	    bool result;
//	    string receiver;
//	    string amount;
//	    string sender;
//	}
//
// so a contract can read it back with abi.decode(data, (PublicValuesStruct)).
package claim

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrMalformedClaim is returned when bytes are not a canonical claim encoding.
	ErrMalformedClaim = errors.New("claim: malformed encoding")
	// ErrDigestMismatch is returned when a journal's standalone digests
	// disagree with the claim it carries.
	ErrDigestMismatch = errors.New("claim: journal digests do not match claim")
)

// Digest is a SHA-256 commitment.
type Digest [32]byte

// String returns the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// SigningIdentity binds a claim to the signing domain and key without
// revealing the key material.
type SigningIdentity struct {
	DomainHash    Digest
	PublicKeyHash Digest
}

// NewSigningIdentity hashes the UTF-8 domain and the raw key bytes.
func NewSigningIdentity(domain string, publicKey []byte) SigningIdentity {
	return SigningIdentity{
		DomainHash:    sha256.Sum256([]byte(domain)),
		PublicKeyHash: sha256.Sum256(publicKey),
	}
}

// PaymentFact holds the fields extracted from a payment notification.
// Absent fields are empty strings.
type PaymentFact struct {
	Receiver string
	Amount   string
	Sender   string
}

// Found reports whether any field was extracted.
func (f PaymentFact) Found() bool {
	return f.Receiver != "" || f.Amount != "" || f.Sender != ""
}

// PublicClaim is the single record committed per run.
type PublicClaim struct {
	DomainHash    Digest
	PublicKeyHash Digest
	Result        bool
	Receiver      string
	Amount        string
	Sender        string
}

// New returns the claim for id with the given verification result and facts.
func New(id SigningIdentity, result bool, fact PaymentFact) PublicClaim {
	return PublicClaim{
		DomainHash:    id.DomainHash,
		PublicKeyHash: id.PublicKeyHash,
		Result:        result,
		Receiver:      fact.Receiver,
		Amount:        fact.Amount,
		Sender:        fact.Sender,
	}
}

// Identity returns the digests the claim is bound to.
func (c PublicClaim) Identity() SigningIdentity {
	return SigningIdentity{DomainHash: c.DomainHash, PublicKeyHash: c.PublicKeyHash}
}

// Fact returns the extracted payment fields.
func (c PublicClaim) Fact() PaymentFact {
	return PaymentFact{Receiver: c.Receiver, Amount: c.Amount, Sender: c.Sender}
}
