package dkim

import (
	"bytes"
	"crypto"
	"fmt"
	"hash"
	"strings"
)

var crlf = []byte("\r\n")

// field is one header field of a message.
type field struct {
	name  string
	lname string
	// raw is the field as written: name, colon, value, folding and CRLF.
	raw []byte
}

// splitHeader returns the header fields of message and the offset at which
// the body starts. Lines must end in CRLF; a bare LF is part of the line.
func splitHeader(message []byte) ([]field, int, error) {
	var fields []field
	offset := 0
	for {
		end := bytes.Index(message[offset:], crlf)
		if end < 0 {
			return nil, 0, fmt.Errorf("%w: header not terminated by an empty line", ErrHeaderMalformed)
		}
		line := message[offset : offset+end+2]
		offset += end + 2

		if len(line) == 2 {
			return fields, offset, nil
		}

		if line[0] == ' ' || line[0] == '\t' {
			if len(fields) == 0 {
				return nil, 0, fmt.Errorf("%w: continuation before first field", ErrHeaderMalformed)
			}
			last := &fields[len(fields)-1]
			last.raw = append(last.raw, line...)
			continue
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, 0, fmt.Errorf("%w: field without colon", ErrHeaderMalformed)
		}
		name := strings.TrimRight(string(line[:colon]), " \t")
		if name == "" || strings.ContainsFunc(name, func(r rune) bool { return r <= ' ' || r >= 0x7f }) {
			return nil, 0, fmt.Errorf("%w: invalid field name %q", ErrHeaderMalformed, name)
		}
		fields = append(fields, field{
			name:  name,
			lname: strings.ToLower(name),
			raw:   bytes.Clone(line),
		})
	}
}

// relaxedHeader applies relaxed header canonicalization (RFC 6376 3.4.2) to
// one field. The result has no line ending.
func relaxedHeader(raw string) (string, error) {
	name, value, ok := strings.Cut(raw, ":")
	if !ok {
		return "", ErrHeaderMalformed
	}
	name = strings.ToLower(strings.TrimRight(name, " \t"))

	value = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, value)
	value = strings.TrimSpace(string(compressWSP([]byte(value))))
	return name + ":" + value, nil
}

// compressWSP replaces every run of spaces and tabs with a single space.
func compressWSP(b []byte) []byte {
	out := make([]byte, 0, len(b))
	inWSP := false
	for _, c := range b {
		if c == ' ' || c == '\t' {
			if !inWSP {
				out = append(out, ' ')
			}
			inWSP = true
			continue
		}
		out = append(out, c)
		inWSP = false
	}
	return out
}

// canonicalBody returns body in the given canonical form (RFC 6376 3.4.3,
// 3.4.4).
func canonicalBody(c Canonicalization, body []byte) []byte {
	if c == CanonSimple {
		for bytes.HasSuffix(body, crlf) {
			body = body[:len(body)-2]
		}
		out := make([]byte, 0, len(body)+2)
		out = append(out, body...)
		return append(out, crlf...)
	}

	var out []byte
	blank := 0
	open := false
	for rest := body; len(rest) > 0; {
		line := rest
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i+1], rest[i+1:]
		} else {
			rest = nil
		}

		terminated := bytes.HasSuffix(line, crlf)
		if terminated {
			line = line[:len(line)-2]
		}
		line = compressWSP(bytes.TrimRight(line, " \t"))

		if len(line) == 0 {
			if terminated {
				blank++
			}
			continue
		}
		for ; blank > 0; blank-- {
			out = append(out, crlf...)
		}
		out = append(out, line...)
		open = !terminated
		if terminated {
			out = append(out, crlf...)
		}
	}

	// A non-empty body that does not end in CRLF gets one.
	if open {
		out = append(out, crlf...)
	}
	return out
}

// bodyHash hashes the canonical form of body.
func bodyHash(h hash.Hash, c Canonicalization, body []byte) []byte {
	h.Write(canonicalBody(c, body))
	return h.Sum(nil)
}

// dataHash hashes the signed header fields followed by the DKIM-Signature
// field being signed or verified. Each name in signed consumes the
// bottom-most unused field of that name; names with no field left are
// skipped (RFC 6376 5.4.2).
func dataHash(h hash.Hash, c Canonicalization, fields []field, signed []string, sigField []byte) ([]byte, error) {
	byName := make(map[string][]field)
	for i := len(fields) - 1; i >= 0; i-- {
		byName[fields[i].lname] = append(byName[fields[i].lname], fields[i])
	}

	write := func(raw []byte, terminate bool) error {
		raw = bytes.TrimSuffix(raw, crlf)
		if c == CanonSimple {
			h.Write(raw)
		} else {
			canon, err := relaxedHeader(string(raw))
			if err != nil {
				return err
			}
			h.Write([]byte(canon))
		}
		if terminate {
			h.Write(crlf)
		}
		return nil
	}

	for _, name := range signed {
		lname := strings.ToLower(name)
		candidates := byName[lname]
		if len(candidates) == 0 {
			continue
		}
		byName[lname] = candidates[1:]
		if err := write(candidates[0].raw, true); err != nil {
			return nil, err
		}
	}

	if err := write(sigField, false); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// hashByName returns the hash for an a= hash name.
func hashByName(name string) (crypto.Hash, bool) {
	switch strings.ToLower(name) {
	case "sha256":
		return crypto.SHA256, true
	case "sha1":
		return crypto.SHA1, true
	default:
		return 0, false
	}
}
