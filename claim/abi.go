package claim

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// abiClaim mirrors PublicValuesStruct. Field names must match the
// camel-cased component names for go-ethereum's tuple packing.
type abiClaim struct {
	DomainHash    [32]byte
	PublicKeyHash [32]byte
	Result        bool
	Receiver      string
	Amount        string
	Sender        string
}

var claimArgs = mustClaimArgs()

func mustClaimArgs() abi.Arguments {
	tuple, err := abi.NewType("tuple", "struct PublicValuesStruct", []abi.ArgumentMarshaling{
		{Name: "domainHash", Type: "bytes32"},
		{Name: "publicKeyHash", Type: "bytes32"},
		{Name: "result", Type: "bool"},
		{Name: "receiver", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "sender", Type: "string"},
	})
	if err != nil {
		panic(fmt.Sprintf("claim: building ABI type: %v", err))
	}
	return abi.Arguments{{Name: "publicValues", Type: tuple}}
}

// Encode returns the ABI encoding of c as a single dynamic tuple value.
func Encode(c PublicClaim) ([]byte, error) {
	out, err := claimArgs.Pack(abiClaim{
		DomainHash:    c.DomainHash,
		PublicKeyHash: c.PublicKeyHash,
		Result:        c.Result,
		Receiver:      c.Receiver,
		Amount:        c.Amount,
		Sender:        c.Sender,
	})
	if err != nil {
		return nil, fmt.Errorf("claim: encoding: %w", err)
	}
	return out, nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(c PublicClaim) []byte {
	out, err := Encode(c)
	if err != nil {
		panic(err)
	}
	return out
}

// Decode parses an encoding produced by Encode. Input that decodes but is
// not byte-for-byte canonical (trailing data, dirty padding) is rejected.
func Decode(data []byte) (PublicClaim, error) {
	values, err := claimArgs.Unpack(data)
	if err != nil {
		return PublicClaim{}, fmt.Errorf("%w: %v", ErrMalformedClaim, err)
	}
	if len(values) != 1 {
		return PublicClaim{}, fmt.Errorf("%w: %d values", ErrMalformedClaim, len(values))
	}

	decoded, ok := abi.ConvertType(values[0], new(abiClaim)).(*abiClaim)
	if !ok {
		return PublicClaim{}, fmt.Errorf("%w: unexpected tuple layout", ErrMalformedClaim)
	}

	c := PublicClaim{
		DomainHash:    decoded.DomainHash,
		PublicKeyHash: decoded.PublicKeyHash,
		Result:        decoded.Result,
		Receiver:      decoded.Receiver,
		Amount:        decoded.Amount,
		Sender:        decoded.Sender,
	}

	canonical, err := Encode(c)
	if err != nil {
		return PublicClaim{}, fmt.Errorf("%w: %v", ErrMalformedClaim, err)
	}
	if !bytes.Equal(canonical, data) {
		return PublicClaim{}, fmt.Errorf("%w: non-canonical encoding", ErrMalformedClaim)
	}
	return c, nil
}
