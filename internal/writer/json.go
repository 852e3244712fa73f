package writer

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONWriter writes a statement as one indented JSON document.
type JSONWriter struct{}

type jsonStatement struct {
	Source          string `json:"source,omitempty"`
	Institution     string `json:"institution,omitempty"`
	Currency        string `json:"currency,omitempty"`
	Kind            string `json:"kind,omitempty"`
	StatementDate   string `json:"statementDate,omitempty"`
	PreviousBalance string `json:"previousBalance"`
	ClosingBalance  string `json:"closingBalance"`
	Transactions    []row  `json:"transactions"`
}

// Write encodes s to out.
func (w *JSONWriter) Write(out io.Writer, s Statement) error {
	doc := jsonStatement{
		Source:          s.Source,
		Institution:     s.Institution,
		Currency:        s.Currency,
		Kind:            string(s.Kind),
		PreviousBalance: "0.00",
		ClosingBalance:  "0.00",
		Transactions:    rows(s),
	}
	if s.Result != nil {
		doc.StatementDate = formatDate(s.Result.StatementDate)
		doc.PreviousBalance = s.Result.PreviousBalance.StringFixed(2)
		doc.ClosingBalance = s.Result.ClosingBalance.StringFixed(2)
	}
	if doc.Transactions == nil {
		doc.Transactions = []row{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
