package dkim

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
)

func TestRelaxedHeader(t *testing.T) {
	tests := map[string]string{
		"SUBJECT: Test":                        "subject:Test",
		"Subject:  Test   Value  ":             "subject:Test Value",
		"Subject: Test\r\n\t continuation":     "subject:Test continuation",
		"Subject: Test\r\n":                    "subject:Test",
		"Subject \t: Test":                     "subject:Test",
		"To:\r\n a@example.com,\r\n\tb@x.test": "to:a@example.com, b@x.test",
		"X-Empty:":                             "x-empty:",
	}
	for in, want := range tests {
		got, err := relaxedHeader(in)
		if err != nil {
			t.Errorf("relaxedHeader(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("relaxedHeader(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := relaxedHeader("no colon"); !errors.Is(err, ErrHeaderMalformed) {
		t.Errorf("error = %v, want ErrHeaderMalformed", err)
	}
}

func TestCanonicalBody(t *testing.T) {
	tests := []struct {
		body    string
		simple  string
		relaxed string
	}{
		{"", "\r\n", ""},
		{"\r\n\r\n", "\r\n", ""},
		{"Body", "Body\r\n", "Body\r\n"},
		{"Body\r\n\r\n\r\n", "Body\r\n", "Body\r\n"},
		{"Hello \t  World  \r\n", "Hello \t  World  \r\n", "Hello World\r\n"},
		{"a\r\n \r\n\r\nb\r\n", "a\r\n \r\n\r\nb\r\n", "a\r\n\r\n\r\nb\r\n"},
		{"Body\r\n  ", "Body\r\n  \r\n", "Body\r\n"},
	}
	for _, tt := range tests {
		if got := string(canonicalBody(CanonSimple, []byte(tt.body))); got != tt.simple {
			t.Errorf("simple %q = %q, want %q", tt.body, got, tt.simple)
		}
		if got := string(canonicalBody(CanonRelaxed, []byte(tt.body))); got != tt.relaxed {
			t.Errorf("relaxed %q = %q, want %q", tt.body, got, tt.relaxed)
		}
	}
}

func TestBodyHashOfEmptyBody(t *testing.T) {
	// RFC 6376 Section 3.4.3 and 3.4.4 examples.
	tests := map[Canonicalization]string{
		CanonSimple:  "frcCV1k9oG9oKj3dpUqdJg1PxRT2RSN/XKdLCPjaYaY=",
		CanonRelaxed: "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=",
	}
	for c, want := range tests {
		got := bodyHash(sha256.New(), c, nil)
		if b64 := base64.StdEncoding.EncodeToString(got); b64 != want {
			t.Errorf("%s: %s, want %s", c, b64, want)
		}
	}
}

func TestSplitHeader(t *testing.T) {
	msg := []byte("From: a@example.com\r\nSubject: one\r\n two\r\nX-Empty:\r\n\r\nbody\r\n")
	fields, offset, err := splitHeader(msg)
	if err != nil {
		t.Fatalf("splitHeader: %v", err)
	}
	if got := string(msg[offset:]); got != "body\r\n" {
		t.Errorf("body = %q", got)
	}
	wantRaw := []string{"From: a@example.com\r\n", "Subject: one\r\n two\r\n", "X-Empty:\r\n"}
	if len(fields) != len(wantRaw) {
		t.Fatalf("got %d fields, want %d", len(fields), len(wantRaw))
	}
	for i, want := range wantRaw {
		if string(fields[i].raw) != want {
			t.Errorf("field %d = %q, want %q", i, fields[i].raw, want)
		}
	}
	if fields[1].name != "Subject" || fields[1].lname != "subject" {
		t.Errorf("names %q %q", fields[1].name, fields[1].lname)
	}

	fields, offset, err = splitHeader([]byte("From: a\r\n\r\n"))
	if err != nil || len(fields) != 1 || offset != 11 {
		t.Errorf("empty body: %d fields, offset %d, err %v", len(fields), offset, err)
	}
}

func TestSplitHeaderMalformed(t *testing.T) {
	for _, bad := range []string{
		"From: a\r\n",
		"From: a\n\n",
		" leading\r\n\r\n",
		"no colon\r\n\r\n",
		"Bad Name: x\r\n\r\n",
		": empty name\r\n\r\n",
	} {
		if _, _, err := splitHeader([]byte(bad)); !errors.Is(err, ErrHeaderMalformed) {
			t.Errorf("splitHeader(%q) error = %v, want ErrHeaderMalformed", bad, err)
		}
	}
}

func TestDataHash(t *testing.T) {
	fields, _, err := splitHeader([]byte("X-A: first\r\nX-A: second\r\nFrom:  f\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	sigField := []byte("DKIM-Signature: a=b; b=\r\n")

	tests := []struct {
		name   string
		canon  Canonicalization
		signed []string
		want   string
	}{
		{
			// Repeated names walk upwards; a name with no field left
			// contributes nothing.
			name:   "relaxed bottom-up",
			canon:  CanonRelaxed,
			signed: []string{"X-A", "From", "x-a", "X-A"},
			want:   "x-a:second\r\nfrom:f\r\nx-a:first\r\ndkim-signature:a=b; b=",
		},
		{
			name:   "simple",
			canon:  CanonSimple,
			signed: []string{"from"},
			want:   "From:  f\r\nDKIM-Signature: a=b; b=",
		},
		{
			name:   "absent field",
			canon:  CanonSimple,
			signed: []string{"Subject"},
			want:   "DKIM-Signature: a=b; b=",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dataHash(sha256.New(), tt.canon, fields, tt.signed, sigField)
			if err != nil {
				t.Fatal(err)
			}
			want := sha256.Sum256([]byte(tt.want))
			if hex.EncodeToString(got) != hex.EncodeToString(want[:]) {
				t.Errorf("hash differs from sha256(%q)", tt.want)
			}
		})
	}
}

func TestHashByName(t *testing.T) {
	for name, want := range map[string]crypto.Hash{"sha256": crypto.SHA256, "SHA1": crypto.SHA1} {
		if h, ok := hashByName(name); !ok || h != want {
			t.Errorf("hashByName(%q) = %v, %v", name, h, ok)
		}
	}
	if _, ok := hashByName("md5"); ok {
		t.Error("md5 accepted")
	}
}

func TestBodyHashExamples(t *testing.T) {
	// RFC 6376 Section 3.4.5. Trailing whitespace is significant.
	const example = " c \r\nd \t e \r\n\r\n\r\n"
	tests := []struct {
		canon Canonicalization
		body  string
		want  string
	}{
		{CanonSimple, example, " c \r\nd \t e \r\n"},
		{CanonRelaxed, example, " c\r\nd e\r\n"},
	}
	for _, tt := range tests {
		want := sha256.Sum256([]byte(tt.want))
		if got := bodyHash(sha256.New(), tt.canon, []byte(tt.body)); !bytes.Equal(got, want[:]) {
			t.Errorf("%s: hash of %q differs from hash of %q", tt.canon, tt.body, tt.want)
		}
	}

	// The RFC 8463 message body, bh= of both its signatures.
	body := "Hi.\r\n\r\nWe lost the game.  Are you hungry yet?\r\n\r\nJoe.\r\n\r\n"
	got := base64.StdEncoding.EncodeToString(bodyHash(sha256.New(), CanonRelaxed, []byte(body)))
	if got != "2jUSOH9NhtVGCQWNr9BrIAPreKQjO6Sn7XIkfJVOzv8=" {
		t.Errorf("bh=%s", got)
	}
}
