package dns

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
)

// Public resolvers used when /etc/resolv.conf is unusable.
var fallbackNameservers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// ResolverConfig configures DNSResolver.
type ResolverConfig struct {
	// Nameservers are host or host:port addresses. Port 53 is added when
	// missing. Empty means the servers in /etc/resolv.conf.
	Nameservers []string

	// DNSSEC sets the DO bit on queries. The Authentic field in Result
	// then reflects the AD bit of the upstream answer.
	DNSSEC bool

	// Timeout bounds a single exchange. Zero means 5 seconds.
	Timeout time.Duration

	// Retries is how many extra passes are made over Nameservers. Zero
	// means 2.
	Retries int
}

// DNSResolver implements Resolver using github.com/miekg/dns.
type DNSResolver struct {
	config ResolverConfig
	client *mdns.Client
}

var _ Resolver = (*DNSResolver)(nil)

// NewResolver returns a resolver for config with defaults filled in.
func NewResolver(config ResolverConfig) *DNSResolver {
	config.Timeout = cmp.Or(config.Timeout, 5*time.Second)
	config.Retries = cmp.Or(config.Retries, 2)

	servers := config.Nameservers
	if len(servers) == 0 {
		servers = systemNameservers("/etc/resolv.conf")
	}
	config.Nameservers = make([]string, len(servers))
	for i, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		config.Nameservers[i] = s
	}

	return &DNSResolver{config: config, client: &mdns.Client{Timeout: config.Timeout}}
}

func systemNameservers(path string) []string {
	conf, err := mdns.ClientConfigFromFile(path)
	if err != nil || len(conf.Servers) == 0 {
		return fallbackNameservers
	}
	servers := make([]string, len(conf.Servers))
	for i, s := range conf.Servers {
		servers[i] = net.JoinHostPort(s, conf.Port)
	}
	return servers
}

// Config returns the configuration after defaults were applied.
func (r *DNSResolver) Config() ResolverConfig {
	return r.config
}

// LookupTXT returns the TXT records at name, with the character strings of
// each record joined.
func (r *DNSResolver) LookupTXT(ctx context.Context, name string) (Result, error) {
	resp, err := r.query(ctx, name, mdns.TypeTXT)
	var res Result
	if resp != nil {
		res.Authentic = r.config.DNSSEC && resp.AuthenticatedData
	}
	if err != nil {
		return res, err
	}

	for _, rr := range resp.Answer {
		if txt, ok := rr.(*mdns.TXT); ok {
			res.Records = append(res.Records, strings.Join(txt.Txt, ""))
		}
	}
	if len(res.Records) == 0 {
		return res, ErrDNSNotFound
	}
	return res, nil
}

// query asks each nameserver in turn, Retries+1 times over, until one gives
// a definite answer. NXDOMAIN is definite and returns the response with
// ErrDNSNotFound.
func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	req := new(mdns.Msg)
	req.SetQuestion(mdns.Fqdn(name), qtype)
	req.RecursionDesired = true
	if r.config.DNSSEC {
		req.SetEdns0(4096, true)
	}

	lastErr := ErrDNSServFail
	for pass := 0; pass <= r.config.Retries; pass++ {
		for _, server := range r.config.Nameservers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			resp, _, err := r.client.ExchangeContext(ctx, req, server)
			if err != nil {
				lastErr = exchangeError(server, err)
				continue
			}
			switch err := r.rcodeError(resp.Rcode); {
			case err == nil:
				return resp, nil
			case errors.Is(err, ErrDNSNotFound):
				return resp, err
			default:
				lastErr = err
			}
		}
	}
	return nil, lastErr
}

func exchangeError(server string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s", ErrDNSTimeout, server)
	}
	return fmt.Errorf("dns: exchange with %s: %w", server, err)
}

// rcodeError maps a response code to the package errors. A validating
// resolver answers SERVFAIL for bogus data, so with DNSSEC on it becomes
// ErrDNSBogus.
func (r *DNSResolver) rcodeError(rcode int) error {
	switch rcode {
	case mdns.RcodeSuccess:
		return nil
	case mdns.RcodeNameError:
		return ErrDNSNotFound
	case mdns.RcodeServerFailure:
		if r.config.DNSSEC {
			return ErrDNSBogus
		}
		return ErrDNSServFail
	case mdns.RcodeRefused:
		return ErrDNSRefused
	default:
		return fmt.Errorf("dns: unexpected rcode %s", mdns.RcodeToString[rcode])
	}
}
