package zkvm

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Stdin collects the values handed to a program. Values are MessagePack
// encoded one after another and must be read back in the same order.
type Stdin struct {
	buf []byte
}

// NewStdin returns an empty Stdin.
func NewStdin() *Stdin {
	return &Stdin{}
}

// WriteString appends a string value.
func (s *Stdin) WriteString(v string) {
	s.buf = msgp.AppendString(s.buf, v)
}

// WriteBytes appends a byte slice value.
func (s *Stdin) WriteBytes(v []byte) {
	s.buf = msgp.AppendBytes(s.buf, v)
}

// Bytes returns the framed input.
func (s *Stdin) Bytes() []byte {
	return s.buf
}

// Env is the program's view of a run: the input values in order and the
// journal it commits to.
type Env struct {
	input   []byte
	journal []byte
}

// NewEnv returns an environment reading from framed input.
func NewEnv(input []byte) *Env {
	return &Env{input: input}
}

// ReadString reads the next value as a string.
func (e *Env) ReadString() (string, error) {
	if len(e.input) == 0 {
		return "", ErrInputExhausted
	}
	v, rest, err := msgp.ReadStringBytes(e.input)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInputType, err)
	}
	e.input = rest
	return v, nil
}

// ReadBytes reads the next value as a byte slice.
func (e *Env) ReadBytes() ([]byte, error) {
	if len(e.input) == 0 {
		return nil, ErrInputExhausted
	}
	v, rest, err := msgp.ReadBytesBytes(e.input, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputType, err)
	}
	e.input = rest
	return v, nil
}

// CommitSlice appends raw bytes to the journal.
func (e *Env) CommitSlice(b []byte) {
	e.journal = append(e.journal, b...)
}

// Journal returns everything committed so far.
func (e *Env) Journal() []byte {
	return e.journal
}
