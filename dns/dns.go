// Package dns resolves the DNS TXT records that publish DKIM signing keys.
//
// Two Resolver implementations are provided: DNSResolver, built on
// github.com/miekg/dns with optional DNSSEC awareness, and StdResolver,
// built on the standard library. MockResolver serves fixed records in tests.
package dns

import (
	"context"
	"errors"
)

// Common DNS errors.
var (
	ErrDNSNotFound = errors.New("dns: record not found")
	ErrDNSTimeout  = errors.New("dns: query timed out")
	ErrDNSServFail = errors.New("dns: server failure")
	ErrDNSRefused  = errors.New("dns: query refused")
	ErrDNSBogus    = errors.New("dns: DNSSEC validation failed")
)

// Result holds the records returned by a lookup.
type Result struct {
	// Records are the TXT strings, with multi-string records joined.
	Records []string

	// Authentic is true when the upstream resolver set the AD bit.
	Authentic bool
}

// Resolver looks up TXT records.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) (Result, error)
}

// IsNotFound reports whether err is an NXDOMAIN or empty answer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDNSNotFound)
}

// IsTimeout reports whether err is a query timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrDNSTimeout)
}

// IsServFail reports whether err is a SERVFAIL response.
func IsServFail(err error) bool {
	return errors.Is(err, ErrDNSServFail)
}

// IsTemporary reports whether retrying the query later may succeed.
func IsTemporary(err error) bool {
	return IsTimeout(err) || IsServFail(err) || errors.Is(err, context.DeadlineExceeded)
}
