package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/synqronlabs/zkmail"
)

func newProveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "prove [email.eml]",
		Short: "Prove a message and store its receipt",
		Long:  "Prove that the message was DKIM-signed by the configured domain, print the extracted payment facts and store the receipt. The message defaults to the email path from the config file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			path := cfg.Email
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no message given: pass a path or set email in the config file")
			}

			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			outcome, err := a.manager.RunFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), outcome)
			return nil
		},
	}
}

func printOutcome(w io.Writer, o *zkmail.Outcome) {
	switch o.Status {
	case zkmail.StatusInvalidDomain:
		fmt.Fprintf(w, "Invalid domain: no DKIM-Signature from %s.\n", o.Domain)
		return
	case zkmail.StatusNotVerified:
		fmt.Fprintln(w, "Email is not verified")
	default:
		fmt.Fprintln(w, "Email is verified")
		fmt.Fprintf(w, "Receiver: %s\n", o.Claim.Receiver)
		fmt.Fprintf(w, "Amount: ₹%s\n", o.Claim.Amount)
		fmt.Fprintf(w, "Sender: %s\n", o.Claim.Sender)
		if d := o.Diagnostics; d != nil {
			if d.TxnID != "" {
				fmt.Fprintf(w, "Extracted Transaction ID: %s\n", d.TxnID)
			} else {
				fmt.Fprintln(w, "Transaction ID not found")
			}
			if d.Amount != "" {
				fmt.Fprintf(w, "Extracted Amount: ₹%s\n", d.Amount)
			} else {
				fmt.Fprintln(w, "Amount not found")
			}
		}
	}
	if o.Testing {
		fmt.Fprintln(w, "Note: the signing domain marks this key as testing (t=y)")
	}
	fmt.Fprintf(w, "Run: %s\n", o.ID)
	fmt.Fprintf(w, "Receipt: %s\n", o.Artifact)
}
