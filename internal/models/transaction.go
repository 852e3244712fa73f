package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementKind distinguishes credit card statements from bank account statements.
// It decides how CR/DR markers on transaction amounts are read.
type StatementKind string

const (
	KindCredit StatementKind = "credit"
	KindDebit  StatementKind = "debit"
)

// Transaction represents a single statement transaction.
type Transaction struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"` // signed, positive increases the statement balance
	Page        int             `json:"page"`   // source page index in the document
	Line        int             `json:"line"`   // 1-based line number within the page
}

// ParseResult holds everything parsed out of one statement.
type ParseResult struct {
	StatementDate   time.Time       `json:"statementDate"`
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	ClosingBalance  decimal.Decimal `json:"closingBalance"`
	Transactions    []Transaction   `json:"transactions"`
}

// Total returns the sum of all transaction amounts.
func (r *ParseResult) Total() decimal.Decimal {
	total := decimal.Zero
	for _, txn := range r.Transactions {
		total = total.Add(txn.Amount)
	}
	return total
}
