// Package zkvm runs the verification program in an isolated environment and
// seals its public output.
//
// A run takes a Stdin, an Executor that produces the program's journal from
// it, and a Prover that wraps execution in a proof:
//
//	stdin := zkvm.NewStdin()
//	stdin.WriteString(domain)
//	stdin.WriteBytes(raw)
//	receipt, err := prover.Prove(ctx, executor, stdin)
//	if err != nil { ... }
//	err = prover.Verify(receipt, executor.ImageID())
package zkvm

import (
	"context"
	"errors"
)

var (
	// ErrInputExhausted is returned when the program reads past its input.
	ErrInputExhausted = errors.New("zkvm: input exhausted")
	// ErrInputType is returned when the next input value has another type.
	ErrInputType = errors.New("zkvm: unexpected input type")
	// ErrExecution is returned when the program aborts.
	ErrExecution = errors.New("zkvm: program execution failed")
	// ErrMalformedReceipt is returned for receipt bytes that cannot be decoded.
	ErrMalformedReceipt = errors.New("zkvm: malformed receipt")
	// ErrImageMismatch is returned when a receipt was produced by another program.
	ErrImageMismatch = errors.New("zkvm: receipt image id does not match")
	// ErrSealInvalid is returned when a receipt's seal does not verify.
	ErrSealInvalid = errors.New("zkvm: seal verification failed")
)

// Executor runs one program image.
type Executor interface {
	// ImageID identifies the program. Receipts are only valid for the image
	// that produced them.
	ImageID() [32]byte

	// Execute runs the program on the framed input and returns its journal.
	// The journal of an aborted run is discarded.
	Execute(ctx context.Context, input []byte) ([]byte, error)
}

// Prover seals executions.
type Prover interface {
	Prove(ctx context.Context, exec Executor, stdin *Stdin) (*Receipt, error)
	Verify(receipt *Receipt, imageID [32]byte) error
}
