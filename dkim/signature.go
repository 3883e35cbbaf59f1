package dkim

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature is a parsed DKIM-Signature field (RFC 6376 Section 3.5).
type Signature struct {
	Version       int
	Algorithm     string   // a=, lower case, e.g. "rsa-sha256"
	Signature     []byte   // b=
	BodyHash      []byte   // bh=
	Domain        string   // d=
	SignedHeaders []string // h=
	Selector      string   // s=

	Canonicalization string   // c=, "header/body"
	Identity         string   // i=
	QueryMethods     []string // q=

	// Length, SignTime and ExpireTime are -1 when the tag is absent.
	Length     int64 // l=
	SignTime   int64 // t=
	ExpireTime int64 // x=
}

func newSignature() *Signature {
	return &Signature{
		Version:          1,
		Canonicalization: "simple/simple",
		Length:           -1,
		SignTime:         -1,
		ExpireTime:       -1,
	}
}

// AlgorithmSign returns the key type half of a=, "rsa" for "rsa-sha256".
func (s *Signature) AlgorithmSign() string {
	sign, _, _ := strings.Cut(s.Algorithm, "-")
	return sign
}

// AlgorithmHash returns the hash half of a=, "sha256" for "rsa-sha256".
func (s *Signature) AlgorithmHash() string {
	_, hash, _ := strings.Cut(s.Algorithm, "-")
	return hash
}

// HeaderCanon returns the header half of c=.
func (s *Signature) HeaderCanon() Canonicalization {
	header, _, _ := strings.Cut(s.Canonicalization, "/")
	return Canonicalization(strings.ToLower(header))
}

// BodyCanon returns the body half of c=, simple when c= names only the
// header algorithm.
func (s *Signature) BodyCanon() Canonicalization {
	_, body, ok := strings.Cut(s.Canonicalization, "/")
	if !ok {
		return CanonSimple
	}
	return Canonicalization(strings.ToLower(body))
}

// IsExpired reports whether x= lies before now.
func (s *Signature) IsExpired(now time.Time) bool {
	return s.ExpireTime >= 0 && now.Unix() > s.ExpireTime
}

// foldAt is the column past which format continues on a new line.
const foldAt = 76

// folder writes a field as words and starts a continuation line when the
// next word would pass foldAt.
type folder struct {
	b   strings.Builder
	col int
}

func (f *folder) word(sep, w string) {
	if f.col > 1 && f.col+len(sep)+len(w) > foldAt {
		f.b.WriteString("\r\n\t")
		f.col, sep = 1, ""
	}
	f.b.WriteString(sep)
	f.b.WriteString(w)
	f.col += len(sep) + len(w)
}

// split writes s over as many lines as it needs. Used for base64, which may
// break anywhere.
func (f *folder) split(s string) {
	for s != "" {
		if f.col >= foldAt {
			f.b.WriteString("\r\n\t")
			f.col = 1
		}
		n := min(foldAt-f.col, len(s))
		f.b.WriteString(s[:n])
		f.col += n
		s = s[n:]
	}
}

// format renders the tags a Signer sets as a DKIM-Signature field with no
// line ending. Without withB the b= value is empty; that is the form which
// gets hashed.
func (s *Signature) format(withB bool) string {
	var f folder
	tag := func(name, value string) {
		f.word(" ", name+"="+value+";")
	}

	f.word("", "DKIM-Signature: v="+strconv.Itoa(s.Version)+";")
	tag("d", s.Domain)
	tag("s", s.Selector)
	tag("a", s.Algorithm)
	if c := s.Canonicalization; c != "" && c != "simple" && c != "simple/simple" {
		tag("c", c)
	}
	if s.Identity != "" {
		tag("i", s.Identity)
	}
	if s.SignTime >= 0 {
		tag("t", strconv.FormatInt(s.SignTime, 10))
	}
	if s.ExpireTime >= 0 {
		tag("x", strconv.FormatInt(s.ExpireTime, 10))
	}
	for i, h := range s.SignedHeaders {
		sep, end := "", ":"
		if i == 0 {
			sep, h = " ", "h="+h
		}
		if i == len(s.SignedHeaders)-1 {
			end = ";"
		}
		f.word(sep, h+end)
	}
	tag("bh", base64.StdEncoding.EncodeToString(s.BodyHash))
	f.word(" ", "b=")
	if withB {
		f.split(base64.StdEncoding.EncodeToString(s.Signature))
	}
	return f.b.String()
}

// tag is one entry of a tag=value list (RFC 6376 Section 3.2).
type tag struct {
	name string
	// value has folding removed and surrounding whitespace trimmed.
	value string
	// start and end delimit the raw value in the list, whitespace included.
	start, end int
}

// parseTagList splits list at semicolons. An entry without "=" and a
// repeated tag name are errors; empty entries are skipped.
func parseTagList(list string) ([]tag, error) {
	var tags []tag
	seen := make(map[string]bool)
	for pos := 0; pos < len(list); {
		end := strings.IndexByte(list[pos:], ';')
		if end < 0 {
			end = len(list)
		} else {
			end += pos
		}
		entry := list[pos:end]
		start := pos
		pos = end + 1

		if strings.TrimSpace(entry) == "" {
			continue
		}
		eq := strings.IndexByte(entry, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%q is not a tag=value pair", strings.TrimSpace(entry))
		}
		name := strings.TrimSpace(entry[:eq])
		if name == "" {
			return nil, fmt.Errorf("empty tag name in %q", strings.TrimSpace(entry))
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTag, name)
		}
		seen[name] = true

		tags = append(tags, tag{
			name:  name,
			value: strings.TrimSpace(unfold(entry[eq+1:])),
			start: start + eq + 1,
			end:   end,
		})
	}
	return tags, nil
}

func unfold(s string) string {
	return strings.NewReplacer("\r\n", "", "\n", "").Replace(s)
}

// stripWSP drops all whitespace, for base64 values.
func stripWSP(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, s)
}

// splitList splits a colon separated value and drops empty items.
func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ":") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseCount(v string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err == nil && n < 0 {
		err = fmt.Errorf("negative value %d", n)
	}
	return n, err
}

var requiredSignatureTags = []string{"v", "a", "b", "bh", "d", "h", "s"}

// ParseSignature parses a DKIM-Signature field, name included. It also
// returns the field with the b= value deleted, which is what the signer
// hashed.
func ParseSignature(header string) (*Signature, []byte, error) {
	raw := strings.TrimSuffix(header, "\r\n")
	name, list, ok := strings.Cut(raw, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), "DKIM-Signature") {
		return nil, nil, fmt.Errorf("%w: not a DKIM-Signature field", ErrHeaderMalformed)
	}
	tags, err := parseTagList(list)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrHeaderMalformed, err)
	}

	sig := newSignature()
	unsigned := raw
	present := make(map[string]bool, len(tags))
	for _, t := range tags {
		present[t.name] = true
		if err := sig.set(t); err != nil {
			return nil, nil, err
		}
		if t.name == "b" {
			off := len(name) + 1
			unsigned = raw[:off+t.start] + raw[off+t.end:]
		}
	}
	for _, req := range requiredSignatureTags {
		if !present[req] {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingTag, req)
		}
	}
	if err := sig.check(); err != nil {
		return nil, nil, err
	}
	return sig, []byte(unsigned), nil
}

// set stores one tag. Unknown tags are ignored.
func (s *Signature) set(t tag) error {
	var err error
	switch t.name {
	case "v":
		if t.value != "1" {
			return fmt.Errorf("%w: %q", ErrInvalidVersion, t.value)
		}
		s.Version = 1
	case "a":
		s.Algorithm = strings.ToLower(t.value)
	case "b":
		s.Signature, err = base64.StdEncoding.DecodeString(stripWSP(t.value))
	case "bh":
		s.BodyHash, err = base64.StdEncoding.DecodeString(stripWSP(t.value))
	case "c":
		s.Canonicalization = strings.ToLower(t.value)
	case "d":
		s.Domain = strings.ToLower(t.value)
	case "h":
		s.SignedHeaders = splitList(t.value)
	case "i":
		s.Identity = t.value
	case "l":
		s.Length, err = parseCount(t.value)
	case "q":
		s.QueryMethods = splitList(t.value)
	case "s":
		s.Selector = strings.ToLower(t.value)
	case "t":
		s.SignTime, err = parseCount(t.value)
	case "x":
		s.ExpireTime, err = parseCount(t.value)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=: %v", ErrHeaderMalformed, t.name, err)
	}
	return nil
}

// check applies the rules that span several tags.
func (s *Signature) check() error {
	if h, ok := hashByName(s.AlgorithmHash()); ok && len(s.BodyHash) != h.Size() {
		return fmt.Errorf("%w: bh= is %d bytes, %s digests are %d",
			ErrHeaderMalformed, len(s.BodyHash), s.AlgorithmHash(), h.Size())
	}
	if s.SignTime >= 0 && s.ExpireTime >= 0 && s.SignTime >= s.ExpireTime {
		return fmt.Errorf("%w: x= %d is not after t= %d", ErrSigExpired, s.ExpireTime, s.SignTime)
	}
	if at := strings.LastIndexByte(s.Identity, '@'); at >= 0 {
		idDomain := strings.ToLower(s.Identity[at+1:])
		if idDomain != s.Domain && !strings.HasSuffix(idDomain, "."+s.Domain) {
			return fmt.Errorf("%w: i= domain %s is not under d= %s", ErrDomainIdentityMismatch, idDomain, s.Domain)
		}
	}
	return nil
}
