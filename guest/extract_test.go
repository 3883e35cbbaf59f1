package guest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synqronlabs/zkmail/claim"
)

func TestPaymentExtractor(t *testing.T) {
	full := claim.PaymentFact{Receiver: "Jane Doe", Amount: "500.00", Sender: "ACCT123"}

	tests := []struct {
		name string
		text string
		want claim.PaymentFact
	}{
		{"notification", paymentBody, full},
		{"LF line endings", "Paid to: Jane Doe\nyou paid ₹500.00\nDebited from: ACCT123\n", full},
		{"spacing around colons", "Paid to :   Jane Doe  \r\n₹ 500.00\r\nDebited from :ACCT123", full},
		{"html entity", "<td>Paid to: Jane Doe</td>\r\n<td>&#8377;500.00</td><td>Debited from: ACCT123</td>", claim.PaymentFact{Receiver: "Jane Doe</td>", Amount: "500.00", Sender: "ACCT123"}},
		{"integer amount", "Paid to: Shop\r\n₹75\r\nDebited from: XX99", claim.PaymentFact{Receiver: "Shop", Amount: "75", Sender: "XX99"}},
		{"one decimal keeps integer part", "Paid to: Shop\r\n₹75.5\r\nDebited from: XX99", claim.PaymentFact{Receiver: "Shop", Amount: "75", Sender: "XX99"}},
		{"first match wins", paymentBody + "Paid to: Other\r\n₹1.00\r\nDebited from: ZZZ\r\n", full},
		{"absent", "Hello, nothing to see here.", claim.PaymentFact{}},
		{"missing sender", "Paid to: Jane Doe\r\n₹500.00\r\n", claim.PaymentFact{}},
		{"lowercase account rejected", "Paid to: Jane\r\n₹5\r\nDebited from: acct", claim.PaymentFact{}},
		{"empty", "", claim.PaymentFact{}},
		{"invalid utf-8", "Paid to: Jane\xff Doe\r\n₹500.00\r\nDebited from: ACCT123", claim.PaymentFact{Receiver: "Jane� Doe", Amount: "500.00", Sender: "ACCT123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PaymentExtractor.Extract([]byte(tt.text)))
		})
	}
}

func TestNewPatternExtractor(t *testing.T) {
	e, err := NewPatternExtractor(`To: (\w+) Amt: (\d+) From: (\w+)`)
	require.NoError(t, err)
	assert.Equal(t,
		claim.PaymentFact{Receiver: "a", Amount: "1", Sender: "b"},
		e.Extract([]byte("To: a Amt: 1 From: b")))

	_, err = NewPatternExtractor(`(a)(b)`)
	assert.ErrorIs(t, err, ErrPattern)

	_, err = NewPatternExtractor(`no groups`)
	assert.ErrorIs(t, err, ErrPattern)

	_, err = NewPatternExtractor(`(`)
	assert.Error(t, err)
}
