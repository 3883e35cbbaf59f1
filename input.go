package zkmail

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/synqronlabs/zkmail/dkim"
	"github.com/synqronlabs/zkmail/mime"
)

// NormalizeCRLF rewrites bare LF and bare CR line endings as CRLF.
func NormalizeCRLF(raw []byte) []byte {
	if !bytes.ContainsAny(raw, "\r\n") {
		return raw
	}
	out := make([]byte, 0, len(raw)+bytes.Count(raw, []byte("\n")))
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; c {
		case '\r':
			out = append(out, '\r', '\n')
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
			out = append(out, '\r', '\n')
		default:
			out = append(out, c)
		}
	}
	return out
}

// LoadEmail reads a message file and normalizes its line endings.
func LoadEmail(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zkmail: reading email: %w", err)
	}
	return NormalizeCRLF(raw), nil
}

// SelectSignature returns the first DKIM-Signature whose d= equals domain,
// ignoring case. Signatures of other domains are skipped. Every
// DKIM-Signature must parse, so a header missing a required tag is an
// ErrInputMalformed error.
func SelectSignature(msg *mime.Message, domain string) (*dkim.Signature, error) {
	domain = strings.TrimSuffix(domain, ".")

	var found *dkim.Signature
	for _, h := range msg.Headers.Fields("DKIM-Signature") {
		sig, _, err := dkim.ParseSignature(h.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInputMalformed, err)
		}
		if found == nil && strings.EqualFold(strings.TrimSuffix(sig.Domain, "."), domain) {
			found = sig
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no DKIM-Signature for %s", ErrInvalidDomain, domain)
	}
	return found, nil
}
