// Package writer serializes parsed statements to CSV, XLSX and JSON.
package writer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// DateLayout is how dates are printed in every output format.
const DateLayout = "02/01/2006"

// Statement is a parsed statement together with what is known about where it
// came from.
type Statement struct {
	Source      string
	Institution string
	Currency    string
	Kind        models.StatementKind
	Result      *models.ParseResult
}

// Writer serializes one statement.
type Writer interface {
	Write(out io.Writer, s Statement) error
}

// Format names an output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want csv, xlsx or json)", s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string { return "." + string(f) }

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv"
	}
}

// New returns the writer for f. includeHeader adds the statement summary rows
// to tabular formats.
func New(f Format, includeHeader bool) Writer {
	switch f {
	case FormatXLSX:
		return &XLSXWriter{IncludeHeader: includeHeader}
	case FormatJSON:
		return &JSONWriter{}
	default:
		return &CSVWriter{IncludeHeader: includeHeader}
	}
}

// WriteToFile writes s to a new file at path.
func WriteToFile(path string, w Writer, s Statement) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.Write(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// row is one transaction as it appears in tabular output.
type row struct {
	Date        string `csv:"Date" json:"date"`
	Description string `csv:"Description" json:"description"`
	Type        string `csv:"Type" json:"type"`
	Amount      string `csv:"Amount" json:"amount"`
	Balance     string `csv:"Balance" json:"balance"`
	Page        int    `csv:"Page" json:"page"`
	Line        int    `csv:"Line" json:"line"`

	amount  decimal.Decimal
	balance decimal.Decimal
}

var columns = []string{"Date", "Description", "Type", "Amount", "Balance", "Page", "Line"}

// rows flattens the transactions, carrying the statement balance forward from
// the previous balance.
func rows(s Statement) []row {
	if s.Result == nil {
		return nil
	}
	balance := s.Result.PreviousBalance
	out := make([]row, 0, len(s.Result.Transactions))
	for _, txn := range s.Result.Transactions {
		balance = balance.Add(txn.Amount)
		out = append(out, row{
			Date:        formatDate(txn.Date),
			Description: txn.Description,
			Type:        direction(s.Kind, txn.Amount),
			Amount:      txn.Amount.Abs().StringFixed(2),
			Balance:     balance.StringFixed(2),
			Page:        txn.Page,
			Line:        txn.Line,
			amount:      txn.Amount.Abs(),
			balance:     balance,
		})
	}
	return out
}

// direction labels an amount from the account holder's side: money spent or
// paid out is a DEBIT. On a card statement that is a positive amount, on a bank
// statement a negative one.
func direction(kind models.StatementKind, amount decimal.Decimal) string {
	spent := amount.IsPositive()
	if kind == models.KindDebit {
		spent = amount.IsNegative()
	}
	if spent {
		return "DEBIT"
	}
	return "CREDIT"
}

// summary returns the metadata rows printed above the transaction table.
func summary(s Statement) [][2]string {
	var out [][2]string
	add := func(k, v string) {
		if v != "" {
			out = append(out, [2]string{k, v})
		}
	}
	add("Bank", s.Institution)
	add("Source", s.Source)
	add("Statement Type", string(s.Kind))
	if s.Result != nil {
		add("Statement Date", formatDate(s.Result.StatementDate))
		add("Previous Balance", displayAmount(s.Result.PreviousBalance, s.Currency))
		add("Closing Balance", displayAmount(s.Result.ClosingBalance, s.Currency))
		add("Transactions", fmt.Sprint(len(s.Result.Transactions)))
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// displayAmount renders d in the currency's own notation, such as £1,234.56.
// Unknown or missing currencies fall back to two decimal places.
func displayAmount(d decimal.Decimal, code string) string {
	currency := money.GetCurrency(code)
	if code == "" || currency == nil {
		return d.StringFixed(2)
	}
	minor := d.Mul(decimal.New(1, int32(currency.Fraction))).Round(0).IntPart()
	return money.New(minor, currency.Code).Display()
}
