package zkmail

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/synqronlabs/zkmail/dns"
	"github.com/synqronlabs/zkmail/guest"
	"github.com/synqronlabs/zkmail/metrics"
	"github.com/synqronlabs/zkmail/store"
	"github.com/synqronlabs/zkmail/zkvm"
	"github.com/synqronlabs/zkmail/zkvm/groth16"
)

// Builder configures a Manager.
type Builder struct {
	domain   string
	resolver dns.Resolver
	executor zkvm.Executor
	prover   zkvm.Prover
	store    store.Store
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New creates a Builder for messages signed by domain.
func New(domain string) *Builder {
	return &Builder{domain: domain}
}

// Resolver sets the DNS resolver for signing keys.
// Default is dns.NewStdResolver().
func (b *Builder) Resolver(r dns.Resolver) *Builder {
	b.resolver = r
	return b
}

// Executor sets how the verification program is run.
// Default runs it in-process.
func (b *Builder) Executor(e zkvm.Executor) *Builder {
	b.executor = e
	return b
}

// Prover sets the prover. Default is a groth16 prover with in-memory keys.
func (b *Builder) Prover(p zkvm.Prover) *Builder {
	b.prover = p
	return b
}

// Store sets where verified receipts are written. Required.
func (b *Builder) Store(s store.Store) *Builder {
	b.store = s
	return b
}

// Metrics sets the collectors runs are recorded in.
func (b *Builder) Metrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration and returns a Manager.
func (b *Builder) Build() (*Manager, error) {
	domain := strings.TrimSuffix(strings.TrimSpace(b.domain), ".")
	if domain == "" {
		return nil, errors.New("zkmail: domain is required")
	}
	if b.store == nil {
		return nil, errors.New("zkmail: store is required")
	}

	m := &Manager{
		domain:   domain,
		resolver: b.resolver,
		executor: b.executor,
		prover:   b.prover,
		store:    b.store,
		metrics:  b.metrics,
		logger:   b.logger,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.resolver == nil {
		m.resolver = dns.NewStdResolver()
	}
	if m.executor == nil {
		m.executor = NativeGuest()
	}
	if m.prover == nil {
		m.prover = groth16.New(groth16.Config{Logger: m.logger.Named("groth16")})
	}
	return m, nil
}

// NativeGuest returns an executor running the verification program
// in-process.
func NativeGuest() *zkvm.NativeExecutor {
	return zkvm.NewNativeExecutor(guest.ProgramName, guest.Main)
}
