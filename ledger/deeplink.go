package ledger

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentDeepLink formats a pre-filled payment URI for a known external
// payment app, or a generic web fallback for anything else. It is a pure
// formatting function with no ledger side effects.
func PaymentDeepLink(app, recipientInfo string, amount decimal.Decimal, description string) string {
	amt := amount.StringFixed(2)
	note := description
	if note == "" {
		note = "Settlement"
	}

	switch strings.ToLower(app) {
	case "gpay", "googlepay":
		return fmt.Sprintf("gpay://pay?pa=%s&pn=%s&am=%s&cu=USD&tn=%s",
			url.QueryEscape(recipientInfo), url.QueryEscape("Splitledger User"), amt, url.QueryEscape(note))
	case "paypal":
		return fmt.Sprintf("paypal://paypalme/%s/%s", url.PathEscape(recipientInfo), amt)
	case "venmo":
		return fmt.Sprintf("venmo://pay?txn=pay&recipients=%s&amount=%s&note=%s",
			url.QueryEscape(recipientInfo), amt, url.QueryEscape(note))
	case "cashapp":
		return fmt.Sprintf("cashapp://pay/%s/%s", url.PathEscape(recipientInfo), amt)
	default:
		return fmt.Sprintf("https://splitledger.app/pay?to=%s&amount=%s&note=%s",
			url.QueryEscape(recipientInfo), amt, url.QueryEscape(note))
	}
}
