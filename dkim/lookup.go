package dkim

import (
	"context"
	"errors"
	"fmt"

	"github.com/synqronlabs/zkmail/dns"
)

// RecordName returns the DNS name of the key record for selector and domain.
func RecordName(domain, selector string) string {
	return selector + "._domainkey." + domain
}

// LookupKey resolves <selector>._domainkey.<domain> and returns the single
// DKIM record published there. Revoked keys and keys restricted to services
// other than email are rejected.
func LookupKey(ctx context.Context, resolver dns.Resolver, domain, selector string) (*Record, error) {
	name := RecordName(domain, selector)

	result, err := resolver.LookupTXT(ctx, name)
	if err != nil {
		if dns.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRecord, name)
		}
		return nil, fmt.Errorf("%w: %w", ErrDNS, err)
	}

	var record *Record
	for _, txt := range result.Records {
		r, isDKIM, err := ParseRecord(txt)
		if err != nil && isDKIM {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err != nil || !isDKIM {
			continue
		}
		if record != nil {
			return nil, fmt.Errorf("%w: %s", ErrMultipleRecords, name)
		}
		record = r
	}

	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, name)
	}
	if record.PublicKey == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyRevoked, name)
	}
	if !record.ServiceAllowed("email") {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotForEmail, name)
	}

	return record, nil
}

// IsTemporaryError reports whether a LookupKey error may succeed on retry.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}
	if dns.IsTemporary(err) {
		return true
	}
	return errors.Is(err, ErrMultipleRecords)
}
