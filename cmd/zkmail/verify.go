package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/synqronlabs/zkmail/claim"
	"github.com/synqronlabs/zkmail/store"
)

func newVerifyCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <receipt.bin>",
		Short: "Check a stored receipt",
		Long:  "Check that a stored receipt was produced by the verification program for the configured domain and print the facts it proves.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			receipt, err := store.ReadFile(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			c, err := a.manager.Check(receipt)
			if err != nil {
				return err
			}
			printClaim(cmd.OutOrStdout(), c)
			return nil
		},
	}
}

func printClaim(w io.Writer, c claim.PublicClaim) {
	fmt.Fprintln(w, "Receipt is valid")
	fmt.Fprintf(w, "Domain hash: %s\n", c.DomainHash)
	fmt.Fprintf(w, "Public key hash: %s\n", c.PublicKeyHash)
	fmt.Fprintf(w, "Result: %t\n", c.Result)
	fmt.Fprintf(w, "Receiver: %s\n", c.Receiver)
	fmt.Fprintf(w, "Amount: %s\n", c.Amount)
	fmt.Fprintf(w, "Sender: %s\n", c.Sender)
}
