package dkim

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/synqronlabs/zkmail/dns"
)

func TestLookupKey(t *testing.T) {
	edKey := ed25519.NewKeyFromSeed(make([]byte, 32))
	recordTxt := makeRecord(t, "ed25519", edKey.Public())
	const name = "test._domainkey.mox.example."

	tests := []struct {
		name    string
		txt     map[string][]string
		fail    []string
		wantErr error
		temp    bool
	}{
		{
			name: "found",
			txt:  map[string][]string{name: {recordTxt}},
		},
		{
			name: "non-dkim records are skipped",
			txt:  map[string][]string{name: {"google-site-verification=abc", recordTxt}},
		},
		{
			name:    "no record",
			wantErr: ErrNoRecord,
		},
		{
			name:    "dns failure",
			fail:    []string{name},
			wantErr: ErrDNS,
			temp:    true,
		},
		{
			name:    "invalid dkim record syntax",
			txt:     map[string][]string{name: {"v=DKIM1; bogus"}},
			wantErr: ErrSyntax,
		},
		{
			name:    "not dkim record",
			txt:     map[string][]string{name: {"bogus"}},
			wantErr: ErrNoRecord,
		},
		{
			name:    "multiple records",
			txt:     map[string][]string{name: {recordTxt, recordTxt}},
			wantErr: ErrMultipleRecords,
			temp:    true,
		},
		{
			name:    "revoked key",
			txt:     map[string][]string{name: {"v=DKIM1; k=ed25519; p="}},
			wantErr: ErrKeyRevoked,
		},
		{
			name:    "key not for email",
			txt:     map[string][]string{name: {recordTxt + "; s=other"}},
			wantErr: ErrKeyNotForEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := dns.MockResolver{TXT: tt.txt, Fail: tt.fail}
			record, err := LookupKey(context.Background(), resolver, "mox.example", "test")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if IsTemporaryError(err) != tt.temp {
					t.Errorf("IsTemporaryError = %v, want %v", IsTemporaryError(err), tt.temp)
				}
				return
			}
			if err != nil {
				t.Fatalf("LookupKey: %v", err)
			}
			if record.Key != "ed25519" || record.PublicKey == nil {
				t.Fatalf("unexpected record %+v", record)
			}
			if !ed25519.PublicKey(record.PublicKey.Bytes).Equal(edKey.Public()) {
				t.Error("published key does not match")
			}
		})
	}
}

func TestRecordName(t *testing.T) {
	if got := RecordName("example.com", "sel1"); got != "sel1._domainkey.example.com" {
		t.Errorf("RecordName = %q", got)
	}
}

func TestSignerRecord(t *testing.T) {
	edKey := ed25519.NewKeyFromSeed(make([]byte, 32))
	signer := &Signer{Domain: "mox.example", Selector: "test", PrivateKey: edKey}

	txt, err := signer.Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	key := keyFromTXT(t, txt)
	if key.Type != "ed25519" {
		t.Errorf("type = %s, want ed25519", key.Type)
	}
}
