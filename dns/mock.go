package dns

import (
	"context"
	"slices"
)

// MockResolver is a Resolver used for testing.
// TXT maps FQDNs (with trailing dot) to record strings.
type MockResolver struct {
	TXT map[string][]string

	// Fail lists FQDNs whose lookup returns ErrDNSServFail.
	Fail []string

	// AllAuthentic sets Authentic on every answer unless the name is
	// listed in Inauthentic.
	AllAuthentic bool
	Authentic    []string
	Inauthentic  []string
}

var _ Resolver = MockResolver{}

// ensureFQDN ensures the name ends with a dot.
func ensureFQDN(name string) string {
	if len(name) == 0 || name[len(name)-1] != '.' {
		return name + "."
	}
	return name
}

// LookupTXT returns the configured TXT records for name.
func (r MockResolver) LookupTXT(ctx context.Context, name string) (Result, error) {
	fqdn := ensureFQDN(name)
	result := Result{Authentic: r.AllAuthentic}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if slices.Contains(r.Fail, fqdn) {
		return result, ErrDNSServFail
	}
	if slices.Contains(r.Authentic, fqdn) {
		result.Authentic = true
	}
	if slices.Contains(r.Inauthentic, fqdn) {
		result.Authentic = false
	}

	records := r.TXT[fqdn]
	if len(records) == 0 {
		return result, ErrDNSNotFound
	}

	result.Records = records
	return result, nil
}
