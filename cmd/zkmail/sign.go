package main

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/synqronlabs/zkmail"
	"github.com/synqronlabs/zkmail/dkim"
)

func newSignCmd() *cobra.Command {
	var (
		domain   string
		selector string
		keyFile  string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "sign <email.eml>",
		Short: "DKIM-sign a message",
		Long:  "DKIM-sign a message with a PEM private key (RSA or Ed25519). The signed message goes to stdout or --output; the DNS TXT record for the key goes to stderr.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := readPrivateKey(keyFile)
			if err != nil {
				return err
			}
			raw, err := zkmail.LoadEmail(args[0])
			if err != nil {
				return err
			}

			signer := &dkim.Signer{
				Domain:     domain,
				Selector:   selector,
				PrivateKey: key,
				Headers:    []string{"From", "To", "Subject", "Date", "Message-ID", "Content-Type"},
				Now:        time.Now,
			}
			signed, err := signer.SignMessage(zkmail.NormalizeCRLF(raw))
			if err != nil {
				return err
			}
			record, err := signer.Record()
			if err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, signed, 0o644); err != nil {
					return err
				}
			} else if _, err := cmd.OutOrStdout().Write(signed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s IN TXT %q\n", dkim.RecordName(domain, selector)+".", record)
			return nil
		},
	}
	cmd.Flags().StringVar(&domain, "sign-domain", "", "signing domain (d= tag)")
	cmd.Flags().StringVarP(&selector, "selector", "s", "default", "selector (s= tag)")
	cmd.Flags().StringVarP(&keyFile, "key", "k", "", "PEM private key")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default is stdout)")
	_ = cmd.MarkFlagRequired("sign-domain")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func readPrivateKey(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	key, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, errors.New("private key cannot sign")
	}
	return key, nil
}
