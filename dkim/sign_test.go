package dkim

import (
	"crypto"
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"
	"time"
)

const signTestMessage = "From: sender@example.com\r\n" +
	"To: recipient@example.org\r\n" +
	"Subject: Test Message\r\n" +
	"Date: Thu, 18 Dec 2025 12:00:00 +0000\r\n" +
	"\r\n" +
	"This is a test message.\r\n"

var signTestTime = time.Date(2025, 12, 18, 12, 0, 0, 0, time.UTC)

func signAndParse(t *testing.T, s *Signer, message string) *Signature {
	t.Helper()
	if s.Now == nil {
		s.Now = func() time.Time { return signTestTime }
	}
	header, err := s.Sign([]byte(message))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.HasSuffix(header, "\r\n") {
		t.Errorf("signature field does not end in CRLF: %q", header)
	}
	sig, _, err := ParseSignature(header)
	if err != nil {
		t.Fatalf("parsing own signature: %v", err)
	}
	return sig
}

func TestSignerAlgorithms(t *testing.T) {
	tests := []struct {
		name string
		key  crypto.Signer
		hash string
		want Algorithm
	}{
		{"rsa default hash", getRSAKey(t), "", AlgRSASHA256},
		{"rsa sha1", getRSAKey(t), "SHA1", AlgRSASHA1},
		{"ed25519", ed25519.NewKeyFromSeed(make([]byte, 32)), "", AlgEd25519SHA256},
		{"ed25519 ignores hash", ed25519.NewKeyFromSeed(make([]byte, 32)), "sha1", AlgEd25519SHA256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Signer{Domain: "example.com", Selector: "sel", PrivateKey: tt.key, Hash: tt.hash}
			sig := signAndParse(t, s, signTestMessage)
			if Algorithm(sig.Algorithm) != tt.want {
				t.Errorf("a=%s, want %s", sig.Algorithm, tt.want)
			}
			if sig.HeaderCanon() != CanonRelaxed || sig.BodyCanon() != CanonRelaxed {
				t.Errorf("c=%s, want relaxed/relaxed", sig.Canonicalization)
			}
			if sig.SignTime != signTestTime.Unix() || sig.ExpireTime != -1 {
				t.Errorf("t=%d x=%d", sig.SignTime, sig.ExpireTime)
			}
		})
	}
}

func TestSignerHeaders(t *testing.T) {
	key := ed25519.NewKeyFromSeed(make([]byte, 32))

	// From is added when missing; names absent from the message are dropped.
	sig := signAndParse(t, &Signer{
		Domain:     "example.com",
		Selector:   "sel",
		PrivateKey: key,
		Headers:    []string{"Subject", "Cc", "To"},
	}, signTestMessage)
	if got := strings.Join(sig.SignedHeaders, ":"); got != "From:Subject:To" {
		t.Errorf("h=%s", got)
	}

	sig = signAndParse(t, &Signer{Domain: "example.com", Selector: "sel", PrivateKey: key}, signTestMessage)
	if got := strings.Join(sig.SignedHeaders, ":"); got != "From:To:Subject:Date" {
		t.Errorf("default h=%s", got)
	}
}

func TestSignerOversign(t *testing.T) {
	sig := signAndParse(t, &Signer{
		Domain:          "example.com",
		Selector:        "sel",
		PrivateKey:      ed25519.NewKeyFromSeed(make([]byte, 32)),
		Headers:         []string{"From", "To", "Subject"},
		OversignHeaders: true,
	}, "From: a@example.com\r\nTo: b@example.org\r\nTo: c@example.org\r\nSubject: s\r\n\r\nbody\r\n")

	counts := make(map[string]int)
	for _, h := range sig.SignedHeaders {
		counts[strings.ToLower(h)]++
	}
	want := map[string]int{"from": 2, "to": 3, "subject": 2}
	for name, n := range want {
		if counts[name] != n {
			t.Errorf("%s signed %d times, want %d", name, counts[name], n)
		}
	}
}

func TestSignerExpirationAndIdentity(t *testing.T) {
	sig := signAndParse(t, &Signer{
		Domain:     "example.com",
		Selector:   "sel",
		PrivateKey: getRSAKey(t),
		Identity:   "alerts@mail.example.com",
		Expiration: 24 * time.Hour,
	}, signTestMessage)

	if sig.ExpireTime != signTestTime.Add(24*time.Hour).Unix() {
		t.Errorf("x=%d, want t= plus a day", sig.ExpireTime)
	}
	if sig.IsExpired(signTestTime.Add(time.Hour)) || !sig.IsExpired(signTestTime.Add(25*time.Hour)) {
		t.Error("IsExpired disagrees with x=")
	}
	if sig.Identity != "alerts@mail.example.com" {
		t.Errorf("i=%s", sig.Identity)
	}
}

func TestSignerErrors(t *testing.T) {
	rsaKey := getRSAKey(t)
	tests := []struct {
		name    string
		signer  Signer
		message string
		want    error
	}{
		{
			name:    "no From",
			signer:  Signer{PrivateKey: rsaKey},
			message: "To: recipient@example.org\r\n\r\nTest\r\n",
			want:    ErrFromRequired,
		},
		{
			name:    "two From",
			signer:  Signer{PrivateKey: rsaKey},
			message: "From: a@example.com\r\nFrom: b@example.com\r\n\r\nTest\r\n",
			want:    ErrFromRequired,
		},
		{
			name:    "unterminated header",
			signer:  Signer{PrivateKey: rsaKey},
			message: "From: sender@example.com",
			want:    ErrHeaderMalformed,
		},
		{
			name:    "leading continuation",
			signer:  Signer{PrivateKey: rsaKey},
			message: " From: sender@example.com\r\n\r\nTest\r\n",
			want:    ErrHeaderMalformed,
		},
		{
			name:    "unknown hash",
			signer:  Signer{PrivateKey: rsaKey, Hash: "md5"},
			message: signTestMessage,
			want:    ErrHashAlgorithmUnknown,
		},
		{
			name:    "unsupported key",
			signer:  Signer{PrivateKey: nil},
			message: signTestMessage,
			want:    ErrSigAlgorithmUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.signer.Domain, tt.signer.Selector = "example.com", "sel"
			if _, err := tt.signer.Sign([]byte(tt.message)); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSignMessage(t *testing.T) {
	key := ed25519.NewKeyFromSeed(make([]byte, 32))
	s := &Signer{Domain: "example.com", Selector: "sel", PrivateKey: key, Now: func() time.Time { return signTestTime }}

	signed, err := s.SignMessage([]byte(signTestMessage))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(signed), "DKIM-Signature: ") || !strings.HasSuffix(string(signed), signTestMessage) {
		t.Errorf("signed message = %q", signed)
	}

	pub := &PublicKey{Type: "ed25519", Bytes: key.Public().(ed25519.PublicKey), Key: key.Public()}
	outcome, err := VerifyWithKey("example.com", signed, pub)
	if err != nil || !outcome.Passed() {
		t.Fatalf("own signature does not verify: %+v, %v", outcome, err)
	}
}
