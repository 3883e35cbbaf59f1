// Package groth16 seals zkvm executions with a Groth16 proof over BN254.
//
// The proof binds the program image, the private input and the journal:
// a receipt verifies only if its Binding is the MiMC commitment of the
// image id, a hidden input digest and the journal digest, and the seal is
// a valid proof of knowledge of that input digest.
package groth16

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	nativemimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"github.com/synqronlabs/zkmail/zkvm"
)

const (
	provingKeyFile   = "seal.pk"
	verifyingKeyFile = "seal.vk"
)

// sealCircuit proves Binding = MiMC(ImageID, InputHash, JournalHash) for a
// private InputHash.
type sealCircuit struct {
	ImageID     frontend.Variable `gnark:",public"`
	JournalHash frontend.Variable `gnark:",public"`
	Binding     frontend.Variable `gnark:",public"`
	InputHash   frontend.Variable
}

func (c *sealCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.ImageID, c.InputHash, c.JournalHash)
	api.AssertIsEqual(h.Sum(), c.Binding)
	return nil
}

// Config configures a Prover.
type Config struct {
	// KeyDir holds the proving and verifying keys. When it contains no
	// keys, a setup is run and its keys are written there. When empty, keys
	// live only in memory and receipts can only be verified by the same
	// Prover.
	KeyDir string

	Logger *zap.Logger
}

// Prover implements zkvm.Prover.
type Prover struct {
	keyDir string
	logger *zap.Logger

	setupOnce sync.Once
	setupErr  error
	ccs       constraint.ConstraintSystem
	pk        groth16.ProvingKey
	vk        groth16.VerifyingKey
}

var _ zkvm.Prover = (*Prover)(nil)

// New returns a Prover. Circuit setup is deferred to first use.
func New(cfg Config) *Prover {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prover{keyDir: cfg.KeyDir, logger: logger}
}

var silenceOnce sync.Once

// silenceGnark mutes gnark's own logger for the whole process; gnark reads
// it from every proving goroutine.
func silenceGnark() {
	silenceOnce.Do(func() {
		gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))
	})
}

func (p *Prover) setup() error {
	p.setupOnce.Do(func() {
		silenceGnark()
		p.setupErr = p.loadOrCreateKeys()
	})
	return p.setupErr
}

func (p *Prover) loadOrCreateKeys() error {
	var err error
	p.ccs, err = frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &sealCircuit{})
	if err != nil {
		return fmt.Errorf("compiling seal circuit: %w", err)
	}

	if p.keyDir != "" {
		pk, vk, err := readKeys(p.keyDir)
		switch {
		case err == nil:
			p.pk, p.vk = pk, vk
			p.logger.Debug("loaded seal keys", zap.String("dir", p.keyDir))
			return nil
		case !errors.Is(err, os.ErrNotExist):
			return err
		}
	}

	start := time.Now()
	p.pk, p.vk, err = groth16.Setup(p.ccs)
	if err != nil {
		return fmt.Errorf("groth16 setup: %w", err)
	}
	p.logger.Info("generated seal keys",
		zap.Int("constraints", p.ccs.GetNbConstraints()),
		zap.Duration("duration", time.Since(start)),
	)

	if p.keyDir != "" {
		if err := writeKeys(p.keyDir, p.pk, p.vk); err != nil {
			return err
		}
	}
	return nil
}

func readKeys(dir string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pkData, err := os.ReadFile(filepath.Join(dir, provingKeyFile))
	if err != nil {
		return nil, nil, err
	}
	vkData, err := os.ReadFile(filepath.Join(dir, verifyingKeyFile))
	if err != nil {
		return nil, nil, err
	}

	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(bytes.NewReader(pkData)); err != nil {
		return nil, nil, fmt.Errorf("reading proving key: %w", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(vkData)); err != nil {
		return nil, nil, fmt.Errorf("reading verifying key: %w", err)
	}
	return pk, vk, nil
}

func writeKeys(dir string, pk groth16.ProvingKey, vk groth16.VerifyingKey) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating key dir: %w", err)
	}
	for name, key := range map[string]io.WriterTo{provingKeyFile: pk, verifyingKeyFile: vk} {
		var buf bytes.Buffer
		if _, err := key.WriteTo(&buf); err != nil {
			return fmt.Errorf("serializing %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// fieldElement reduces a digest into the scalar field.
func fieldElement(digest [32]byte) fr.Element {
	var e fr.Element
	e.SetBytes(digest[:])
	return e
}

// binding computes MiMC(imageID, inputHash, journalHash) outside the circuit.
func binding(imageID, inputHash, journalHash fr.Element) ([]byte, error) {
	h := nativemimc.NewMiMC()
	for _, e := range []fr.Element{imageID, inputHash, journalHash} {
		b := e.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return nil, err
		}
	}
	return h.Sum(nil), nil
}

func bigInt(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

// Prove executes the program and seals its journal.
func (p *Prover) Prove(ctx context.Context, exec zkvm.Executor, stdin *zkvm.Stdin) (*zkvm.Receipt, error) {
	if err := p.setup(); err != nil {
		return nil, err
	}

	journal, err := exec.Execute(ctx, stdin.Bytes())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	imageID := exec.ImageID()
	image := fieldElement(imageID)
	input := fieldElement(sha256.Sum256(stdin.Bytes()))
	journalHash := fieldElement(sha256.Sum256(journal))

	bind, err := binding(image, input, journalHash)
	if err != nil {
		return nil, fmt.Errorf("computing binding: %w", err)
	}

	assignment := &sealCircuit{
		ImageID:     bigInt(image),
		JournalHash: bigInt(journalHash),
		Binding:     new(big.Int).SetBytes(bind),
		InputHash:   bigInt(input),
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("building witness: %w", err)
	}

	start := time.Now()
	proof, err := groth16.Prove(p.ccs, p.pk, witness)
	if err != nil {
		return nil, fmt.Errorf("groth16 prove: %w", err)
	}

	var seal bytes.Buffer
	if _, err := proof.WriteTo(&seal); err != nil {
		return nil, fmt.Errorf("serializing proof: %w", err)
	}
	p.logger.Debug("sealed execution",
		zap.Int("journal_bytes", len(journal)),
		zap.Int("seal_bytes", seal.Len()),
		zap.Duration("duration", time.Since(start)),
	)

	return &zkvm.Receipt{
		ImageID: imageID,
		Journal: journal,
		Seal:    seal.Bytes(),
		Binding: bind,
	}, nil
}

// Verify checks that receipt was produced by the program imageID and that
// its seal proves the binding of its journal.
func (p *Prover) Verify(receipt *zkvm.Receipt, imageID [32]byte) error {
	if receipt == nil {
		return fmt.Errorf("%w: nil receipt", zkvm.ErrMalformedReceipt)
	}
	if receipt.ImageID != imageID {
		return zkvm.ErrImageMismatch
	}
	var bind fr.Element
	if err := bind.SetBytesCanonical(receipt.Binding); err != nil {
		return fmt.Errorf("%w: binding: %w", zkvm.ErrMalformedReceipt, err)
	}
	if err := p.setup(); err != nil {
		return err
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(receipt.Seal)); err != nil {
		return fmt.Errorf("%w: reading seal: %w", zkvm.ErrMalformedReceipt, err)
	}

	public := &sealCircuit{
		ImageID:     bigInt(fieldElement(receipt.ImageID)),
		JournalHash: bigInt(fieldElement(sha256.Sum256(receipt.Journal))),
		Binding:     bigInt(bind),
	}
	witness, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("%w: %w", zkvm.ErrSealInvalid, err)
	}

	if err := groth16.Verify(proof, p.vk, witness); err != nil {
		return fmt.Errorf("%w: %w", zkvm.ErrSealInvalid, err)
	}
	return nil
}
