package guest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/synqronlabs/zkmail/claim"
)

// Extractor pulls payment fields out of message text.
type Extractor interface {
	Extract(text []byte) claim.PaymentFact
}

// PatternExtractor extracts with a single regular expression whose first
// three groups are receiver, amount and sender.
type PatternExtractor struct {
	re *regexp.Regexp
}

// ErrPattern is returned for an extraction pattern with fewer than three
// capture groups.
var ErrPattern = errors.New("guest: extraction pattern needs three capture groups")

// NewPatternExtractor compiles expr. It must have at least three groups.
func NewPatternExtractor(expr string) (*PatternExtractor, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	if n := re.NumSubexp(); n < 3 {
		return nil, fmt.Errorf("%w: %q has %d", ErrPattern, expr, n)
	}
	return &PatternExtractor{re: re}, nil
}

// PaymentPattern matches bank debit notifications of the form
//
//	Paid to: <receiver>
//	...
//	₹<amount>
//	...
//	Debited from: <account>
//
// The rupee sign may also appear as the HTML entity &#8377;.
const PaymentPattern = `Paid to\s*:\s*([^\r\n]+?)\s*[\r\n](?s:.*?)(?:₹|&#8377;)\s*(\d+(?:\.\d{2})?)(?s:.*?)Debited from\s*:\s*([A-Z0-9]+)`

// PaymentExtractor uses PaymentPattern.
var PaymentExtractor = &PatternExtractor{re: regexp.MustCompile(PaymentPattern)}

// Extract returns the first match. Invalid UTF-8 is replaced before
// matching; a miss yields empty fields.
func (e *PatternExtractor) Extract(text []byte) claim.PaymentFact {
	s := strings.ToValidUTF8(string(text), "�")
	m := e.re.FindStringSubmatch(s)
	if len(m) < 4 {
		return claim.PaymentFact{}
	}
	return claim.PaymentFact{
		Receiver: strings.TrimSpace(m[1]),
		Amount:   strings.TrimSpace(m[2]),
		Sender:   strings.TrimSpace(m[3]),
	}
}
