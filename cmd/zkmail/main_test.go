package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synqronlabs/zkmail"
	"github.com/synqronlabs/zkmail/claim"
	"github.com/synqronlabs/zkmail/config"
	"github.com/synqronlabs/zkmail/dkim"
	"github.com/synqronlabs/zkmail/dns"
	"github.com/synqronlabs/zkmail/store"
)

const plainMessage = "From: alerts@hdfcbank.net\r\nTo: jane@example.com\r\nSubject: alert\r\n\r\nhello\r\n"

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	return writeFile(t, dir, "zkmail.yaml", strings.Join([]string{
		"domain: hdfcbank.net",
		"prover:",
		"  keyDir: " + filepath.Join(dir, "keys"),
		"store:",
		"  kind: file",
		"  dir: " + filepath.Join(dir, "artifacts"),
		"log:",
		"  level: error",
		"  format: json",
	}, "\n"))
}

func TestSignCommand(t *testing.T) {
	dir := t.TempDir()
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{7}, 32))
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyFile := writeFile(t, dir, "key.pem", string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})))
	msgFile := writeFile(t, dir, "msg.eml", plainMessage)

	stdout, stderr, err := execute(t, "sign", msgFile, "--sign-domain", "hdfcbank.net", "-s", "sel", "-k", keyFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "DKIM-Signature:"))
	assert.Contains(t, stderr, "sel._domainkey.hdfcbank.net. IN TXT")

	pub, err := dkim.NewPublicKey("ed25519", key.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	outcome, err := dkim.VerifyWithKey("hdfcbank.net", []byte(stdout), pub)
	require.NoError(t, err)
	assert.True(t, outcome.Passed())
}

func TestSignCommandErrors(t *testing.T) {
	dir := t.TempDir()
	msgFile := writeFile(t, dir, "msg.eml", plainMessage)
	notPEM := writeFile(t, dir, "key.pem", "not a key")

	_, _, err := execute(t, "sign", msgFile, "--sign-domain", "hdfcbank.net")
	assert.Error(t, err)

	_, _, err = execute(t, "sign", msgFile, "--sign-domain", "hdfcbank.net", "-k", notPEM)
	assert.ErrorContains(t, err, "no PEM block")
}

func TestProveInvalidDomain(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeConfig(t, dir)
	msgFile := writeFile(t, dir, "msg.eml", plainMessage)

	stdout, _, err := execute(t, "prove", "-c", cfgFile, msgFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Invalid domain")

	entries, _ := os.ReadDir(filepath.Join(dir, "artifacts"))
	assert.Empty(t, entries)
}

func TestProveErrors(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeConfig(t, dir)

	_, _, err := execute(t, "prove", "-c", cfgFile)
	assert.ErrorContains(t, err, "no message given")

	_, _, err = execute(t, "prove", "-c", cfgFile, filepath.Join(dir, "missing.eml"))
	assert.Error(t, err)

	garbage := writeFile(t, dir, "bad.eml", "not a header line\r\n\r\n")
	_, _, err = execute(t, "prove", "-c", cfgFile, garbage)
	assert.ErrorIs(t, err, zkmail.ErrInputMalformed)

	_, _, err = execute(t, "prove", "-c", filepath.Join(dir, "missing.yaml"), garbage)
	assert.Error(t, err)
}

func TestProveDomainFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeConfig(t, dir)
	msgFile := writeFile(t, dir, "msg.eml", plainMessage)

	stdout, _, err := execute(t, "prove", "-c", cfgFile, "-d", "example.org", msgFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "no DKIM-Signature from example.org")
}

func TestVerifyErrors(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeConfig(t, dir)

	_, _, err := execute(t, "verify", "-c", cfgFile, filepath.Join(dir, "missing.bin"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	junk := writeFile(t, dir, "junk.bin", "junk")
	_, _, err = execute(t, "verify", "-c", cfgFile, junk)
	assert.Error(t, err)
}

func TestNewAppValidates(t *testing.T) {
	cfg := config.Default()
	_, err := newApp(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "domain is required")

	cfg.Domain = "hdfcbank.net"
	cfg.Guest.Executor = config.ExecutorWasm
	cfg.Guest.Image = filepath.Join(t.TempDir(), "missing.wasm")
	_, err = newApp(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "reading guest image")
}

func TestNewResolver(t *testing.T) {
	assert.IsType(t, &dns.StdResolver{}, newResolver(config.DNSConfig{Std: true}))

	r := newResolver(config.DNSConfig{Nameservers: []string{"192.0.2.1"}, DNSSEC: true})
	require.IsType(t, &dns.DNSResolver{}, r)
	got := r.(*dns.DNSResolver).Config()
	assert.Equal(t, []string{"192.0.2.1:53"}, got.Nameservers)
	assert.True(t, got.DNSSEC)
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	st, err := newStore(context.Background(), config.StoreConfig{Kind: config.StoreFile, Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &store.FileStore{}, st)

	st, err = newStore(context.Background(), config.StoreConfig{
		Kind:   config.StoreS3,
		Bucket: "receipts",
		Region: "us-east-1",
		Key:    "k",
		Secret: "s",
	})
	require.NoError(t, err)
	assert.IsType(t, &store.S3Store{}, st)
}

func TestPrintOutcome(t *testing.T) {
	verified := &zkmail.Outcome{
		ID:       ulid.Make(),
		Status:   zkmail.StatusVerified,
		Claim:    claim.PublicClaim{Result: true, Receiver: "Jane Doe", Amount: "500.00", Sender: "ACCT123"},
		Artifact: "artifacts/x.bin",
		Diagnostics: &zkmail.Diagnostics{
			TxnID: "412345678901",
		},
	}

	var buf bytes.Buffer
	printOutcome(&buf, verified)
	out := buf.String()
	assert.Contains(t, out, "Email is verified")
	assert.Contains(t, out, "Receiver: Jane Doe")
	assert.Contains(t, out, "Amount: ₹500.00")
	assert.Contains(t, out, "Sender: ACCT123")
	assert.Contains(t, out, "Extracted Transaction ID: 412345678901")
	assert.Contains(t, out, "Amount not found")
	assert.Contains(t, out, "Receipt: artifacts/x.bin")
	assert.NotContains(t, out, "testing (t=y)")

	buf.Reset()
	printOutcome(&buf, &zkmail.Outcome{Status: zkmail.StatusNotVerified, Artifact: "artifacts/y.bin", Testing: true})
	assert.Contains(t, buf.String(), "Email is not verified")
	assert.Contains(t, buf.String(), "marks this key as testing (t=y)")
	assert.NotContains(t, buf.String(), "Receiver")
	assert.Contains(t, buf.String(), "Receipt: artifacts/y.bin")
}

func TestPrintClaim(t *testing.T) {
	var buf bytes.Buffer
	printClaim(&buf, claim.PublicClaim{Result: true, Amount: "1.00"})
	assert.Contains(t, buf.String(), "Receipt is valid")
	assert.Contains(t, buf.String(), "Result: true")
	assert.Contains(t, buf.String(), "Amount: 1.00")
}
