package claim

import (
	"fmt"
)

// JournalHeaderSize is the length of the two digests that precede the
// encoded claim in the public output.
const JournalHeaderSize = 64

// Journal is the decoded public output of one run.
type Journal struct {
	// Identity holds the digests committed before verification ran.
	Identity SigningIdentity
	// Claim is the decoded claim.
	Claim PublicClaim
	// Encoded is the claim encoding exactly as committed.
	Encoded []byte
}

// EncodeJournal returns DomainHash || PublicKeyHash || Encode(c).
func EncodeJournal(c PublicClaim) ([]byte, error) {
	encoded, err := Encode(c)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, JournalHeaderSize+len(encoded))
	out = append(out, c.DomainHash[:]...)
	out = append(out, c.PublicKeyHash[:]...)
	return append(out, encoded...), nil
}

// DecodeJournal parses a public output. The standalone digests must equal
// the ones inside the claim.
func DecodeJournal(data []byte) (*Journal, error) {
	if len(data) < JournalHeaderSize {
		return nil, fmt.Errorf("%w: journal is %d bytes", ErrMalformedClaim, len(data))
	}

	var j Journal
	copy(j.Identity.DomainHash[:], data[:32])
	copy(j.Identity.PublicKeyHash[:], data[32:JournalHeaderSize])
	j.Encoded = data[JournalHeaderSize:]

	c, err := Decode(j.Encoded)
	if err != nil {
		return nil, err
	}
	if c.Identity() != j.Identity {
		return nil, ErrDigestMismatch
	}
	j.Claim = c
	return &j, nil
}
