package parser

import (
	"strings"
	"time"
)

// parseDate parses value with layout after collapsing runs of whitespace, which
// layout-preserving extraction leaves between date parts.
func parseDate(layout, value string) (time.Time, error) {
	return time.Parse(layout, strings.Join(strings.Fields(value), " "))
}

// withStatementYear gives a transaction date printed without a year the year
// that puts it closest to the statement date.
//
// A month more than six months after the statement month belongs to the year
// before (a January statement listing December purchases), and one more than
// six months before it belongs to the year after (a December statement listing
// early January postings). Anything else shares the statement's year.
func withStatementYear(txn, statement time.Time) time.Time {
	year := statement.Year()
	switch diff := int(txn.Month()) - int(statement.Month()); {
	case diff > 6:
		year--
	case diff < -6:
		year++
	}
	return time.Date(year, txn.Month(), txn.Day(), 0, 0, 0, 0, time.UTC)
}
