package bank

import "github.com/insightdelivered/statement-ingest/internal/models"

// Amount columns as printed by the supported institutions.
const (
	amountPattern       = `[\d,]+\.\d{2}`
	signedAmountPattern = `-?[\d,]+\.\d{2}`
	parenAmountPattern  = `\(?[\d,]+\.\d{2}\)?`
)

// Builtin returns the institutions supported out of the box. Each call returns
// fresh values, so callers may attach credentials without affecting others.
func Builtin() []Profile {
	return []Profile{hdfc(), metro(), hsbc(), barclays(), ocbc()}
}

// HDFC credit card statements carry a timestamped transaction table with
// payments marked Cr, and print the total due rounded to the rupee.
func hdfc() Profile {
	return Profile{
		Name:         "HDFC",
		Fingerprints: []string{"HDFC"},
		Currency:     "INR",
		Formats: []StatementFormat{{
			Kind:                   models.KindCredit,
			StatementDatePattern:   `Statement\s+Date\s*:\s*(?P<date>\d{2}/\d{2}/\d{4})`,
			StatementDateLayout:    "02/01/2006",
			TransactionPattern:     `^\s*(?P<date>\d{2}/\d{2}/\d{4})(?:\s+\d{2}:\d{2}:\d{2})?\s+(?P<description>.+?)\s+(?P<amount>` + amountPattern + `)(?:\s*(?P<polarity>(?i:cr)))?\s*$`,
			TransactionDateLayout:  "02/01/2006",
			BalancePattern:         `(?i)opening\s+balance\s+(?:(?:rs\.?|inr|₹)\s*)?(?P<amount>` + amountPattern + `)`,
			OnlyOnePreviousBalance: true,
			RoundOffFinalBalance:   true,
			TransactionDateHasYear: true,
		}},
	}
}

// Metro Bank current accounts: DD/MM/YYYY rows with the running balance as the
// last column.
func metro() Profile {
	return Profile{
		Name:         "Metro Bank",
		Fingerprints: []string{"Metro Bank"},
		Currency:     "GBP",
		Formats: []StatementFormat{{
			Kind:                   models.KindDebit,
			StatementDatePattern:   `(?i)statement\s+period:?\s+\d{2}/\d{2}/\d{4}\s+to\s+(?P<date>\d{2}/\d{2}/\d{4})`,
			StatementDateLayout:    "02/01/2006",
			TransactionPattern:     `^\s*(?P<date>\d{1,2}/\d{1,2}/\d{4})\s+(?P<description>.+?)\s+£?(?P<amount>` + amountPattern + `)\s+£?(?P<balance>` + signedAmountPattern + `)\s*$`,
			TransactionDateLayout:  "2/1/2006",
			BalancePattern:         `(?i)(?:opening\s+balance|balance\s+brought\s+forward)\s+£?(?P<amount>` + signedAmountPattern + `)`,
			SkipPattern:            `(?i)opening balance|closing balance|brought forward|carried forward`,
			TransactionDateHasYear: true,
		}},
	}
}

// HSBC UK current accounts: "15 Jan 24" dates, balance printed on the last row
// of each day only.
func hsbc() Profile {
	return Profile{
		Name:         "HSBC",
		Fingerprints: []string{"HSBC UK"},
		Currency:     "GBP",
		Formats: []StatementFormat{{
			Kind:                   models.KindDebit,
			StatementDatePattern:   `(?i)\d{1,2}\s+[a-z]+\s+(?:\d{4}\s+)?to\s+(?P<date>\d{1,2}\s+[a-z]+\s+\d{4})`,
			StatementDateLayout:    "2 January 2006",
			TransactionPattern:     `^\s*(?P<date>\d{1,2}\s+[A-Z][a-z]{2}\s+\d{2})\s+(?P<description>.+?)\s+£?(?P<amount>` + amountPattern + `)(?:\s+£?(?P<balance>` + signedAmountPattern + `))?\s*$`,
			TransactionDateLayout:  "2 Jan 06",
			BalancePattern:         `(?i)balance\s+brought\s+forward\s+£?(?P<amount>` + signedAmountPattern + `)`,
			SkipPattern:            `(?i)brought forward|carried forward`,
			TransactionDateHasYear: true,
		}},
	}
}

// Barclays business accounts print transaction dates without a year.
func barclays() Profile {
	return Profile{
		Name:         "Barclays",
		Fingerprints: []string{"Barclays Bank UK PLC"},
		Currency:     "GBP",
		Formats: []StatementFormat{{
			Kind:                  models.KindDebit,
			StatementDatePattern:  `(?i)statement\s+date\s*:?\s*(?P<date>\d{1,2}\s+[a-z]{3}\s+\d{4})`,
			StatementDateLayout:   "2 Jan 2006",
			TransactionPattern:    `^\s*(?P<date>\d{1,2}\s+[A-Z][a-z]{2})\s+(?P<description>.+?)\s+£?(?P<amount>` + amountPattern + `)(?:\s+£?(?P<balance>` + signedAmountPattern + `))?\s*$`,
			TransactionDateLayout: "2 Jan",
			BalancePattern:        `(?i)start\s+balance\s+£?(?P<amount>` + signedAmountPattern + `)`,
			SkipPattern:           `(?i)start balance|end balance|brought forward|carried forward`,
		}},
	}
}

// OCBC credit cards print payments and refunds in parentheses and transaction
// dates as DD/MM.
func ocbc() Profile {
	return Profile{
		Name:         "OCBC",
		Fingerprints: []string{"OCBC"},
		Currency:     "SGD",
		Formats: []StatementFormat{{
			Kind:                  models.KindCredit,
			StatementDatePattern:  `(?i)statement\s+date\s*:?\s*(?P<date>\d{2}-\d{2}-\d{4})`,
			StatementDateLayout:   "02-01-2006",
			TransactionPattern:    `^\s*(?P<date>\d{2}/\d{2})\s+(?P<description>.+?)\s+(?P<amount>` + parenAmountPattern + `)\s*$`,
			TransactionDateLayout: "02/01",
			BalancePattern:        `(?i)last\s+month'?s\s+balance\s+(?P<amount>` + parenAmountPattern + `)`,
			SkipPattern:           `(?i)last month'?s balance|subtotal|total amount due`,
		}},
	}
}
