package bank

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Profile declares everything needed to recognise and parse one institution's
// statements.
type Profile struct {
	Name         string              `toml:"name"`
	Fingerprints []string            `toml:"fingerprints"`
	Credentials  []models.Credential `toml:"credentials"`
	// Currency is an ISO 4217 code used when displaying amounts.
	Currency string `toml:"currency"`
	// ProbePage is the page whose text is matched against fingerprints.
	// Negative values count from the end.
	ProbePage int               `toml:"probe_page"`
	Formats   []StatementFormat `toml:"formats"`
}

// StatementFormat describes one kind of statement an institution issues.
//
// TransactionPattern must define the named groups date, description and amount.
// It may also define polarity, matching a CR or DR marker, and balance, the
// running balance printed next to the amount.
type StatementFormat struct {
	Kind models.StatementKind `toml:"kind"`
	// Fingerprints pick this format among the profile's formats.
	Fingerprints []string             `toml:"fingerprints"`
	Pages        models.PageSelection `toml:"pages"`

	StatementDatePattern  string `toml:"statement_date_pattern"`
	StatementDateLayout   string `toml:"statement_date_layout"`
	TransactionPattern    string `toml:"transaction_pattern"`
	TransactionDateLayout string `toml:"transaction_date_layout"`
	BalancePattern        string `toml:"balance_pattern"`
	// SkipPattern marks summary lines that look like transactions, such as
	// balances brought forward, so they are never parsed as one.
	SkipPattern string `toml:"skip_pattern"`

	OnlyOnePreviousBalance bool `toml:"only_one_previous_balance"`
	RoundOffFinalBalance   bool `toml:"round_off_final_balance"`
	TransactionDateHasYear bool `toml:"transaction_date_has_year"`

	statementDate *regexp.Regexp
	transaction   *regexp.Regexp
	balance       *regexp.Regexp
	skip          *regexp.Regexp
}

// Compile validates the format and compiles its patterns. It is called by
// NewRegistry, so formats taken from a registry are always compiled.
func (f *StatementFormat) Compile() error {
	switch f.Kind {
	case models.KindCredit, models.KindDebit:
	default:
		return fmt.Errorf("%w: unknown statement kind %q", models.ErrInvalidFormat, f.Kind)
	}
	if f.StatementDateLayout == "" || f.TransactionDateLayout == "" {
		return fmt.Errorf("%w: date layouts are required", models.ErrInvalidFormat)
	}

	var err error
	if f.statementDate, err = compilePattern("statement date", f.StatementDatePattern); err != nil {
		return err
	}
	if f.statementDate.NumSubexp() == 0 {
		return fmt.Errorf("%w: statement date pattern has no capture group", models.ErrInvalidFormat)
	}
	if f.transaction, err = compilePattern("transaction", f.TransactionPattern, "date", "description", "amount"); err != nil {
		return err
	}
	if f.BalancePattern == "" {
		f.balance = nil
	} else if f.balance, err = compilePattern("balance", f.BalancePattern, "amount"); err != nil {
		return err
	}
	if f.SkipPattern == "" {
		f.skip = nil
	} else if f.skip, err = compilePattern("skip", f.SkipPattern); err != nil {
		return err
	}
	if f.OnlyOnePreviousBalance && f.balance == nil {
		return fmt.Errorf("%w: only_one_previous_balance needs a balance pattern", models.ErrInvalidFormat)
	}
	return nil
}

func compilePattern(what, pattern string, groups ...string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: %s pattern is required", models.ErrInvalidFormat, what)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %s pattern: %w", models.ErrInvalidFormat, what, err)
	}
	for _, g := range groups {
		if re.SubexpIndex(g) < 0 {
			return nil, fmt.Errorf("%w: %s pattern lacks named group %q", models.ErrInvalidFormat, what, g)
		}
	}
	return re, nil
}

// Compiled reports whether Compile has run successfully.
func (f *StatementFormat) Compiled() bool {
	return f.statementDate != nil && f.transaction != nil
}

// StatementDateRegexp returns the compiled statement date pattern.
func (f *StatementFormat) StatementDateRegexp() *regexp.Regexp { return f.statementDate }

// TransactionRegexp returns the compiled transaction line pattern.
func (f *StatementFormat) TransactionRegexp() *regexp.Regexp { return f.transaction }

// BalanceRegexp returns the compiled balance pattern, or nil when the format
// declares none.
func (f *StatementFormat) BalanceRegexp() *regexp.Regexp { return f.balance }

// Skips reports whether line is a summary line excluded from transactions.
func (f *StatementFormat) Skips(line string) bool {
	return f.skip != nil && f.skip.MatchString(line)
}

// SelectFormat returns the first format whose fingerprints all occur in text,
// falling back to the first format.
func (p Profile) SelectFormat(text string) StatementFormat {
	lower := strings.ToLower(text)
	for _, f := range p.Formats {
		if len(f.Fingerprints) > 0 && containsAll(lower, f.Fingerprints) {
			return f
		}
	}
	return p.Formats[0]
}

// ProbeSelection returns the page selection holding only the probe page.
func (p Profile) ProbeSelection() models.PageSelection {
	return ProbeSelection(p.ProbePage)
}

// ProbeSelection returns the page selection holding only page index i.
func ProbeSelection(i int) models.PageSelection {
	stop := i + 1
	return models.PageSelection{Range: models.PageRange{Start: i, Stop: stop}}
}

func (p *Profile) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: profile without a name", models.ErrInvalidFormat)
	}
	if len(p.Fingerprints) == 0 {
		return fmt.Errorf("%w: profile %s has no fingerprints", models.ErrInvalidFormat, p.Name)
	}
	if len(p.Formats) == 0 {
		return fmt.Errorf("%w: profile %s has no statement formats", models.ErrInvalidFormat, p.Name)
	}
	for i := range p.Formats {
		if err := p.Formats[i].Compile(); err != nil {
			return fmt.Errorf("profile %s format %d: %w", p.Name, i, err)
		}
	}
	return nil
}

func containsAll(lower string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(lower, strings.ToLower(n)) {
			return false
		}
	}
	return true
}
