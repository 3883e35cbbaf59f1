// Package mime parses the header block and MIME structure of an email.
package mime

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"slices"
	"strings"
)

// ContentTransferEncoding is a Content-Transfer-Encoding value, lower case.
type ContentTransferEncoding string

// RFC 2045 Section 6.1 encodings. Only quoted-printable and base64 change
// the body when decoded.
const (
	Encoding7Bit            ContentTransferEncoding = "7bit"
	Encoding8Bit            ContentTransferEncoding = "8bit"
	EncodingBinary          ContentTransferEncoding = "binary"
	EncodingQuotedPrintable ContentTransferEncoding = "quoted-printable"
	EncodingBase64          ContentTransferEncoding = "base64"
)

var (
	// ErrMissingBoundary is returned for a multipart Content-Type without a boundary.
	ErrMissingBoundary = errors.New("mime: multipart Content-Type missing boundary parameter")
	// ErrTooDeep is returned when multipart bodies nest more than maxDepth levels.
	ErrTooDeep = errors.New("mime: multipart nested too deep")
	// ErrNoParts is returned for a multipart body without any section.
	ErrNoParts = errors.New("mime: multipart body has no parts")
)

const maxDepth = 16

// Header is one header field.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`

	// Raw is the field as it appeared in the message, folding and line
	// ending included. Empty for parts of a multipart body.
	Raw string `json:"-"`
}

// Part is a node of the MIME tree. Leaves carry Body; multipart nodes carry
// Parts.
type Part struct {
	Headers                 Headers                 `json:"headers,omitempty"`
	ContentType             string                  `json:"content_type,omitempty"`
	ContentTransferEncoding ContentTransferEncoding `json:"content_transfer_encoding,omitempty"`
	Charset                 string                  `json:"charset,omitempty"`
	Filename                string                  `json:"filename,omitempty"`
	Body                    []byte                  `json:"body,omitempty"`
	Parts                   []*Part                 `json:"parts,omitempty"`
}

// plainPart is the RFC 2045 Section 5.2 default: text/plain in us-ascii.
func plainPart(body []byte) *Part {
	return &Part{
		ContentType:             "text/plain",
		Charset:                 "us-ascii",
		ContentTransferEncoding: Encoding7Bit,
		Body:                    body,
	}
}

// IsMultipart reports whether p is a multipart node with at least one child.
func (p *Part) IsMultipart() bool {
	return len(p.Parts) > 0 && strings.HasPrefix(p.ContentType, "multipart/")
}

// Parse builds the MIME tree of body as described by headers. A missing or
// unparsable Content-Type leaves the text/plain default.
func Parse(headers Headers, body []byte) (*Part, error) {
	return parse(headers, body, 0)
}

func parse(headers Headers, body []byte, depth int) (*Part, error) {
	part := plainPart(body)

	mediaType, params, ctErr := mime.ParseMediaType(headers.Get("Content-Type"))
	if ctErr == nil {
		part.ContentType = mediaType
		part.Charset = params["charset"]
	}
	if cte := strings.TrimSpace(headers.Get("Content-Transfer-Encoding")); cte != "" {
		part.ContentTransferEncoding = ContentTransferEncoding(strings.ToLower(cte))
	}
	if _, disp, err := mime.ParseMediaType(headers.Get("Content-Disposition")); err == nil {
		part.Filename = disp["filename"]
	}

	if !strings.HasPrefix(part.ContentType, "multipart/") {
		return part, nil
	}
	if depth >= maxDepth {
		return nil, fmt.Errorf("%w: more than %d levels", ErrTooDeep, maxDepth)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, ErrMissingBoundary
	}

	var err error
	if part.Parts, err = parseSections(body, boundary, depth+1); err != nil {
		return nil, err
	}
	return part, nil
}

func parseSections(body []byte, boundary string, depth int) ([]*Part, error) {
	var parts []*Part
	r := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		section, err := r.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mime: reading multipart section: %w", err)
		}

		content, err := io.ReadAll(section)
		if err != nil {
			return nil, fmt.Errorf("mime: reading part body: %w", err)
		}
		headers := sectionHeaders(section)
		child, err := parse(headers, content, depth)
		if err != nil {
			return nil, err
		}
		child.Headers = headers
		parts = append(parts, child)
	}
	if len(parts) == 0 {
		return nil, ErrNoParts
	}
	return parts, nil
}

// sectionHeaders flattens the section's header map in name order, since the
// original field order is lost by multipart.Reader.
func sectionHeaders(section *multipart.Part) Headers {
	headers := make(Headers, 0, len(section.Header))
	for _, name := range slices.Sorted(maps.Keys(section.Header)) {
		for _, value := range section.Header[name] {
			headers = append(headers, Header{Name: name, Value: value})
		}
	}
	return headers
}
