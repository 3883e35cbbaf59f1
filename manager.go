package zkmail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/synqronlabs/zkmail/claim"
	"github.com/synqronlabs/zkmail/dkim"
	"github.com/synqronlabs/zkmail/dns"
	"github.com/synqronlabs/zkmail/guest"
	"github.com/synqronlabs/zkmail/metrics"
	"github.com/synqronlabs/zkmail/mime"
	"github.com/synqronlabs/zkmail/store"
	"github.com/synqronlabs/zkmail/zkvm"
)

// Manager runs proofs for one signing domain. It holds no per-run state
// and may be used concurrently.
type Manager struct {
	domain   string
	resolver dns.Resolver
	executor zkvm.Executor
	prover   zkvm.Prover
	store    store.Store
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Domain returns the signing domain the manager accepts.
func (m *Manager) Domain() string {
	return m.domain
}

// ImageID identifies the verification program receipts are checked against.
func (m *Manager) ImageID() [32]byte {
	return m.executor.ImageID()
}

// RunFile loads the message at path and runs it.
func (m *Manager) RunFile(ctx context.Context, path string) (*Outcome, error) {
	raw, err := LoadEmail(path)
	if err != nil {
		m.metrics.RunFinished(metrics.OutcomeError)
		return nil, err
	}
	return m.Run(ctx, raw)
}

// Run proves raw. A message without a signature from the domain yields an
// Outcome with StatusInvalidDomain and no error; nothing is proven or
// stored in that case.
func (m *Manager) Run(ctx context.Context, raw []byte) (*Outcome, error) {
	outcome, err := m.run(ctx, raw)
	switch {
	case err != nil:
		m.metrics.RunFinished(metrics.OutcomeError)
	case outcome.Status == StatusVerified:
		m.metrics.RunFinished(metrics.OutcomeVerified)
	case outcome.Status == StatusNotVerified:
		m.metrics.RunFinished(metrics.OutcomeNotVerified)
	default:
		m.metrics.RunFinished(metrics.OutcomeInvalidDomain)
	}
	return outcome, err
}

func (m *Manager) run(ctx context.Context, raw []byte) (*Outcome, error) {
	id := ulid.Make()
	logger := m.logger.With(zap.Stringer("run_id", id))
	raw = NormalizeCRLF(raw)

	msg, err := mime.ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputMalformed, err)
	}

	sig, err := SelectSignature(msg, m.domain)
	if errors.Is(err, ErrInvalidDomain) {
		logger.Info("no signature from domain", zap.String("domain", m.domain))
		return &Outcome{ID: id, Status: StatusInvalidDomain, Domain: m.domain}, nil
	}
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("domain", m.domain), zap.String("selector", sig.Selector))

	start := time.Now()
	record, err := dkim.LookupKey(ctx, m.resolver, m.domain, sig.Selector)
	m.metrics.ObserveStage(metrics.StageResolve, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	if hash := sig.AlgorithmHash(); !record.HashAllowed(hash) {
		return nil, fmt.Errorf("%w: %w: %s not in h=%s", ErrResolve, dkim.ErrKeyHashNotAllowed,
			hash, strings.Join(record.Hashes, ":"))
	}
	key := record.PublicKey
	if record.IsTesting() {
		logger.Info("signing key is in testing mode")
	}

	stdin := zkvm.NewStdin()
	guest.WriteInputs(stdin, guest.Inputs{
		Domain:   m.domain,
		RawEmail: raw,
		KeyType:  key.Type,
		KeyBytes: key.Bytes,
	})

	logger.Debug("proving", zap.String("key_type", key.Type), zap.Int("message_bytes", len(raw)))
	start = time.Now()
	receipt, err := m.prover.Prove(ctx, m.executor, stdin)
	m.metrics.ObserveStage(metrics.StageProve, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProve, err)
	}

	journal, err := claim.DecodeJournal(receipt.Journal)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProofInvalid, err)
	}
	if journal.Identity != claim.NewSigningIdentity(m.domain, key.Bytes) {
		return nil, fmt.Errorf("%w: journal is bound to another domain or key", ErrProofInvalid)
	}
	if journal.Claim.Result {
		logger.Info("email verified",
			zap.String("receiver", journal.Claim.Receiver),
			zap.String("amount", journal.Claim.Amount),
			zap.String("sender", journal.Claim.Sender),
		)
	} else {
		logger.Info("email is not verified")
	}

	start = time.Now()
	err = m.prover.Verify(receipt, m.executor.ImageID())
	m.metrics.ObserveStage(metrics.StageVerify, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProofInvalid, err)
	}

	start = time.Now()
	artifact, err := m.store.Save(ctx, id.String(), receipt)
	m.metrics.ObserveStage(metrics.StagePersist, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	logger.Info("receipt stored", zap.String("artifact", artifact))

	outcome := &Outcome{
		ID:       id,
		Status:   StatusNotVerified,
		Domain:   m.domain,
		Selector: sig.Selector,
		Claim:    journal.Claim,
		Receipt:  receipt,
		Artifact: artifact,
		Testing:  record.IsTesting(),
	}
	if journal.Claim.Result {
		outcome.Status = StatusVerified
		outcome.Diagnostics = Diagnose(raw)
	}
	return outcome, nil
}

// Check verifies a stored receipt against the manager's program and domain
// and returns its claim.
func (m *Manager) Check(receipt *zkvm.Receipt) (claim.PublicClaim, error) {
	if err := m.prover.Verify(receipt, m.executor.ImageID()); err != nil {
		return claim.PublicClaim{}, fmt.Errorf("%w: %w", ErrProofInvalid, err)
	}
	journal, err := claim.DecodeJournal(receipt.Journal)
	if err != nil {
		return claim.PublicClaim{}, fmt.Errorf("%w: %w", ErrProofInvalid, err)
	}
	if journal.Identity.DomainHash != claim.NewSigningIdentity(m.domain, nil).DomainHash {
		return claim.PublicClaim{}, fmt.Errorf("%w: receipt is for another domain", ErrProofInvalid)
	}
	return journal.Claim, nil
}
