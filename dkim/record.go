package dkim

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Record is a DKIM key record as published at <selector>._domainkey.<domain>
// (RFC 6376 Section 3.6.1).
type Record struct {
	// Key is the k= key type, "rsa" when absent.
	Key string

	// Hashes are the h= hash algorithms the key may be used with. Nil
	// allows all.
	Hashes []string

	// Services are the s= service types. Nil allows all.
	Services []string

	// Flags are the t= flags.
	Flags []string

	// PublicKey is nil when p= is empty, which revokes the key.
	PublicKey *PublicKey
}

func hasFold(list []string, v string) bool {
	return slices.ContainsFunc(list, func(item string) bool {
		return item == "*" || strings.EqualFold(item, v)
	})
}

// ServiceAllowed reports whether s= permits the service.
func (r *Record) ServiceAllowed(service string) bool {
	return len(r.Services) == 0 || hasFold(r.Services, service)
}

// HashAllowed reports whether h= permits the hash algorithm of a=.
func (r *Record) HashAllowed(hash string) bool {
	return len(r.Hashes) == 0 || hasFold(r.Hashes, hash)
}

// IsTesting reports whether the domain marks the key as under test (t=y).
func (r *Record) IsTesting() bool {
	return slices.ContainsFunc(r.Flags, func(f string) bool {
		return strings.EqualFold(f, "y")
	})
}

// TXT renders the record for publication in DNS. Only v=, k= and p= are
// written.
func (r *Record) TXT() (string, error) {
	if r.PublicKey == nil {
		return "", fmt.Errorf("%w: no public key", ErrKeyMaterial)
	}
	data, err := marshalPublicKey(r.PublicKey.Key)
	if err != nil {
		return "", err
	}

	txt := "v=DKIM1"
	key := r.Key
	if key == "" {
		key = r.PublicKey.Type
	}
	if key != "" && !strings.EqualFold(key, "rsa") {
		txt += "; k=" + key
	}
	return txt + "; p=" + base64.StdEncoding.EncodeToString(data), nil
}

var errNotDKIM = errors.New("dkim: not a DKIM record")

// ParseRecord parses the text of a DNS TXT record. The boolean reports
// whether txt looks like a DKIM record at all, so a caller can skip other
// TXT records published at the same name.
func ParseRecord(txt string) (*Record, bool, error) {
	tags, err := parseTagList(txt)
	if err != nil {
		isDKIM := strings.HasPrefix(strings.TrimSpace(txt), "v=DKIM1")
		return nil, isDKIM, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	r := &Record{Key: "rsa"}
	var (
		isDKIM, hasKey bool
		keyData        []byte
	)
	for _, t := range tags {
		switch t.name {
		case "v":
			if t.value != "DKIM1" {
				return nil, false, fmt.Errorf("%w: v=%s", errNotDKIM, t.value)
			}
		case "h":
			r.Hashes = splitList(t.value)
		case "k":
			r.Key = strings.ToLower(t.value)
		case "n":
			// notes are for humans
		case "p":
			hasKey = true
			if keyData, err = base64.StdEncoding.DecodeString(stripWSP(t.value)); err != nil {
				return nil, true, fmt.Errorf("%w: p=: %v", ErrSyntax, err)
			}
		case "s":
			r.Services = splitList(t.value)
		case "t":
			r.Flags = splitList(t.value)
		default:
			continue
		}
		isDKIM = true
	}

	switch {
	case !isDKIM:
		return nil, false, errNotDKIM
	case !hasKey:
		return nil, true, fmt.Errorf("%w: missing p=", ErrSyntax)
	case len(keyData) > 0:
		if r.PublicKey, err = NewPublicKey(r.Key, keyData); err != nil {
			return nil, true, fmt.Errorf("%w: %w", ErrSyntax, err)
		}
	}
	return r, true, nil
}
