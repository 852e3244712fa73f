package parser

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/bank"
	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Parse turns extracted pages into a reconciled statement using format.
//
// The statement date is the first match of the statement date pattern. With
// OnlyOnePreviousBalance the balance pattern must match exactly once; otherwise
// the first match is used and no match means a zero balance. Every line matching
// the transaction pattern becomes a transaction, in the order it appears.
// Parse returns either a complete result or an error, never a partial result.
func Parse(pages []models.ExtractedPage, format bank.StatementFormat) (*models.ParseResult, error) {
	if !format.Compiled() {
		if err := format.Compile(); err != nil {
			return nil, err
		}
	}

	statementDate, err := findStatementDate(pages, &format)
	if err != nil {
		return nil, err
	}

	previous, hasBalance, err := findBalance(pages, &format)
	if err != nil {
		return nil, err
	}

	txns, err := parseTransactions(pages, &format, statementDate, previous, hasBalance)
	if err != nil {
		return nil, err
	}

	closing := previous
	for _, t := range txns {
		closing = closing.Add(t.Amount)
	}
	if format.RoundOffFinalBalance {
		closing = closing.Round(0)
	}

	return &models.ParseResult{
		StatementDate:   statementDate,
		PreviousBalance: previous,
		ClosingBalance:  closing,
		Transactions:    txns,
	}, nil
}

func findStatementDate(pages []models.ExtractedPage, format *bank.StatementFormat) (time.Time, error) {
	re := format.StatementDateRegexp()
	group := re.SubexpIndex("date")
	if group < 0 {
		group = 1
	}

	for _, page := range pages {
		for _, line := range page.Lines() {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			date, err := parseDate(format.StatementDateLayout, m[group])
			if err != nil {
				slog.Debug("statement date candidate did not parse", "page", page.Number(), "value", m[group], "error", err)
				continue
			}
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: pattern %q", models.ErrStatementDateNotFound, format.StatementDatePattern)
}

func findBalance(pages []models.ExtractedPage, format *bank.StatementFormat) (decimal.Decimal, bool, error) {
	re := format.BalanceRegexp()
	if re == nil {
		return decimal.Zero, false, nil
	}
	group := re.SubexpIndex("amount")

	var found []string
	for _, page := range pages {
		for _, line := range page.Lines() {
			for _, m := range re.FindAllStringSubmatch(line, -1) {
				found = append(found, m[group])
			}
		}
	}

	if format.OnlyOnePreviousBalance {
		switch {
		case len(found) == 0:
			return decimal.Zero, false, fmt.Errorf("%w: pattern %q", models.ErrBalanceNotFound, format.BalancePattern)
		case len(found) > 1:
			return decimal.Zero, false, fmt.Errorf("%w: pattern %q matched %d times", models.ErrAmbiguousBalance, format.BalancePattern, len(found))
		}
	}
	if len(found) == 0 {
		return decimal.Zero, false, nil
	}

	balance, err := parseAmount(found[0])
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("balance: %w", err)
	}
	return balance, true, nil
}

// parseTransactions walks every line in order. When the pattern captures the
// running balance, unsigned amounts on bank statements take their direction
// from how the balance moved.
func parseTransactions(pages []models.ExtractedPage, format *bank.StatementFormat, statementDate time.Time, previous decimal.Decimal, balanceKnown bool) ([]models.Transaction, error) {
	re := format.TransactionRegexp()
	var (
		dateGroup     = re.SubexpIndex("date")
		descGroup     = re.SubexpIndex("description")
		amountGroup   = re.SubexpIndex("amount")
		polarityGroup = re.SubexpIndex("polarity")
		balanceGroup  = re.SubexpIndex("balance")
	)

	running := previous
	var txns []models.Transaction
	for _, page := range pages {
		for i, line := range page.Lines() {
			if format.Skips(line) {
				continue
			}
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			date, err := parseDate(format.TransactionDateLayout, m[dateGroup])
			if err != nil {
				return nil, fmt.Errorf("%w: page %d line %d: date %q: %w", models.ErrInvalidFormat, page.Number(), i+1, m[dateGroup], err)
			}
			if !format.TransactionDateHasYear {
				date = withStatementYear(date, statementDate)
			}

			amount, err := parseAmount(m[amountGroup])
			if err != nil {
				return nil, fmt.Errorf("page %d line %d: %w", page.Number(), i+1, err)
			}
			pol := polarityNone
			if polarityGroup >= 0 {
				pol = parsePolarity(m[polarityGroup])
			}
			amount = signedAmount(format.Kind, amount, pol)

			if balanceGroup >= 0 && m[balanceGroup] != "" {
				balance, err := parseAmount(m[balanceGroup])
				if err != nil {
					return nil, fmt.Errorf("page %d line %d: running balance: %w", page.Number(), i+1, err)
				}
				if format.Kind == models.KindDebit && pol == polarityNone && balanceKnown && amount.IsPositive() {
					amount = directionFromBalance(amount, running, balance)
				}
				running, balanceKnown = balance, true
			} else {
				running = running.Add(amount)
			}

			txns = append(txns, models.Transaction{
				Date:        date,
				Description: strings.Join(strings.Fields(m[descGroup]), " "),
				Amount:      amount,
				Page:        page.Number(),
				Line:        i + 1,
			})
		}
	}
	return txns, nil
}

// directionFromBalance signs amount so that previous + amount lands on balance,
// falling back to the direction the balance moved.
func directionFromBalance(amount, previous, balance decimal.Decimal) decimal.Decimal {
	switch {
	case previous.Add(amount).Equal(balance):
		return amount
	case previous.Sub(amount).Equal(balance):
		return amount.Neg()
	case balance.LessThan(previous):
		return amount.Neg()
	default:
		return amount
	}
}
