// Command zkmail-guest is the verification program built for the wasm
// executor:
//
//	GOOS=wasip1 GOARCH=wasm go build -o zkmail-guest.wasm ./cmd/zkmail-guest
//
// It reads the framed inputs from stdin and writes the public output to
// stdout. A non-zero exit aborts the run.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/synqronlabs/zkmail/guest"
	"github.com/synqronlabs/zkmail/zkvm"
)

func run(stdin io.Reader, stdout io.Writer) error {
	input, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	env := zkvm.NewEnv(input)
	if err := guest.Main(env); err != nil {
		return err
	}
	_, err = stdout.Write(env.Journal())
	return err
}

func main() {
	if err := run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "zkmail-guest:", err)
		os.Exit(1)
	}
}
