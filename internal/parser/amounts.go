package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

var amountNoise = strings.NewReplacer(
	"£", "", "$", "", "€", "", "₹", "",
	"Rs.", "", "Rs", "", "INR", "", "SGD", "", "GBP", "",
	",", "", " ", "", "\u00a0", "",
)

// parseAmount converts printed amounts such as "1,234.56", "-£1,234.56",
// "(45.00)" or "45.00-" to a decimal. Parentheses and a trailing minus mean
// negative.
func parseAmount(s string) (decimal.Decimal, error) {
	s = amountNoise.Replace(strings.TrimSpace(s))

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", models.ErrInvalidFormat, s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

type polarity int

const (
	polarityNone polarity = iota
	polarityCredit
	polarityDebit
)

func parsePolarity(s string) polarity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CR", "C":
		return polarityCredit
	case "DR", "D":
		return polarityDebit
	default:
		return polarityNone
	}
}

// signedAmount applies the statement kind's sign convention. Positive amounts
// always increase the printed statement balance: the amount due on a credit
// card, the funds held on a bank account.
func signedAmount(kind models.StatementKind, amount decimal.Decimal, p polarity) decimal.Decimal {
	switch kind {
	case models.KindCredit:
		switch p {
		case polarityCredit:
			return amount.Abs().Neg()
		case polarityDebit:
			return amount.Abs()
		}
	case models.KindDebit:
		switch p {
		case polarityCredit:
			return amount.Abs()
		case polarityDebit:
			return amount.Abs().Neg()
		}
	}
	return amount
}
