package zkmail

import "regexp"

var (
	// Bank alerts are quoted-printable, so the id usually follows two soft
	// line breaks.
	txnIDPattern      = regexp.MustCompile(`Txn\.\s*ID\s*=\s*\n\s*:\s*=\s*\n\s*(\S+)`)
	htmlAmountPattern = regexp.MustCompile(`&#8377;\s*(\d+)`)
)

// Diagnostics are details read from the raw message for the operator.
// Empty fields were not found.
type Diagnostics struct {
	TxnID  string
	Amount string
}

// Diagnose scans the raw message for the transaction id and the HTML
// rupee amount.
func Diagnose(raw []byte) *Diagnostics {
	d := &Diagnostics{}
	if m := txnIDPattern.FindSubmatch(raw); m != nil {
		d.TxnID = string(m[1])
	}
	if m := htmlAmountPattern.FindSubmatch(raw); m != nil {
		d.Amount = string(m[1])
	}
	return d
}
