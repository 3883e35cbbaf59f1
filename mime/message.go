package mime

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"
)

var (
	// ErrEmptyMessage is returned for input without any header.
	ErrEmptyMessage = errors.New("mime: empty message")
	// ErrMalformedHeader is returned for a header block that is not RFC 5322.
	ErrMalformedHeader = errors.New("mime: malformed header")
)

// Headers is an ordered list of header fields.
type Headers []Header

// Get returns the value of the first field with the given name, compared
// case-insensitively, or "" if there is none.
func (h Headers) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Fields returns every field with the given name in message order.
func (h Headers) Fields(name string) []Header {
	var out []Header
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	return out
}

// Message is a parsed RFC 5322 message.
type Message struct {
	// Raw is the input the message was parsed from.
	Raw []byte
	// Headers are the top-level header fields.
	Headers Headers
	// Body is everything after the blank line that ends the header block.
	Body []byte
	// Part is the MIME structure of Body.
	Part *Part
	// BodyErr is set when the MIME structure of Body could not be read.
	// Part then holds Body as a single text/plain part.
	BodyErr error
}

// ParseMessage splits raw into its header block and body and parses the
// MIME structure of the body. Lines may end in CRLF or LF. A message without
// a blank line is all header and has an empty body. Only a malformed header
// block is an error.
func ParseMessage(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyMessage
	}

	msg := &Message{Raw: raw}
	rest := raw
	for len(rest) > 0 {
		end := bytes.IndexByte(rest, '\n')
		var line []byte
		if end < 0 {
			line, rest = rest, nil
		} else {
			line, rest = rest[:end+1], rest[end+1:]
		}

		content := bytes.TrimRight(line, "\r\n")
		if len(content) == 0 {
			msg.Body = rest
			break
		}

		if content[0] == ' ' || content[0] == '\t' {
			if len(msg.Headers) == 0 {
				return nil, fmt.Errorf("%w: continuation line before first field", ErrMalformedHeader)
			}
			last := &msg.Headers[len(msg.Headers)-1]
			last.Raw += string(line)
			last.Value += " " + strings.TrimSpace(string(content))
			continue
		}

		colon := bytes.IndexByte(content, ':')
		if colon <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedHeader, truncate(content, 40))
		}
		name := strings.TrimRight(string(content[:colon]), " \t")
		if strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("%w: invalid field name %q", ErrMalformedHeader, name)
		}
		msg.Headers = append(msg.Headers, Header{
			Name:  name,
			Value: strings.TrimSpace(string(content[colon+1:])),
			Raw:   string(line),
		})
	}

	if len(msg.Headers) == 0 {
		return nil, ErrEmptyMessage
	}

	part, err := Parse(msg.Headers, msg.Body)
	if err != nil {
		// Only the header block is required. A body whose MIME structure
		// cannot be read is kept as one plain text part.
		part = plainPart(msg.Body)
		msg.BodyErr = err
	}
	part.Headers = msg.Headers
	msg.Part = part

	return msg, nil
}

// Text returns the decoded content of the message's text/* parts joined by
// CRLF. Quoted-printable and base64 transfer encodings are undone; parts that
// fail to decode are used as-is. When the message has no text part the raw
// body is returned.
func (m *Message) Text() []byte {
	var texts [][]byte
	collectText(m.Part, &texts)
	if len(texts) == 0 {
		return m.Body
	}
	return bytes.Join(texts, []byte("\r\n"))
}

func collectText(p *Part, out *[][]byte) {
	if p == nil {
		return
	}
	if p.IsMultipart() {
		for _, child := range p.Parts {
			collectText(child, out)
		}
		return
	}
	if !strings.HasPrefix(p.ContentType, "text/") || p.Filename != "" {
		return
	}
	*out = append(*out, p.Decoded())
}

// Decoded returns the body with its Content-Transfer-Encoding removed.
func (p *Part) Decoded() []byte {
	switch p.ContentTransferEncoding {
	case EncodingQuotedPrintable:
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(p.Body)))
		if err != nil {
			return p.Body
		}
		return decoded
	case EncodingBase64:
		cleaned := bytes.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, p.Body)
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(cleaned)))
		n, err := base64.StdEncoding.Decode(decoded, cleaned)
		if err != nil {
			return p.Body
		}
		return decoded[:n]
	default:
		return p.Body
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
