package models

import (
	"context"
	"errors"
)

// Every error below is terminal for the document being processed.
var (
	// Authentication
	ErrMissingCredential   = errors.New("missing credential")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrWrongCredential     = errors.New("wrong credential")

	// Extraction
	ErrInvalidSource    = errors.New("invalid document source")
	ErrInvalidPageRange = errors.New("invalid page range")
	ErrExtractionFailed = errors.New("text extraction failed")

	// Identification
	ErrUnrecognizedInstitution = errors.New("unrecognized institution")

	// Parsing
	ErrInvalidFormat         = errors.New("invalid statement format")
	ErrStatementDateNotFound = errors.New("statement date not found")
	ErrBalanceNotFound       = errors.New("balance not found")
	ErrAmbiguousBalance      = errors.New("ambiguous balance")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrMissingCredential, "missing_credential"},
	{ErrMalformedCredential, "malformed_credential"},
	{ErrWrongCredential, "wrong_credential"},
	{ErrInvalidSource, "invalid_source"},
	{ErrInvalidPageRange, "invalid_page_range"},
	{ErrExtractionFailed, "extraction_failed"},
	{ErrUnrecognizedInstitution, "unrecognized_institution"},
	{ErrInvalidFormat, "invalid_format"},
	{ErrStatementDateNotFound, "statement_date_not_found"},
	{ErrBalanceNotFound, "balance_not_found"},
	{ErrAmbiguousBalance, "ambiguous_balance"},
	{context.DeadlineExceeded, "timeout"},
	{context.Canceled, "canceled"},
}

// ErrorKind returns a stable label for err, used in metrics and API responses.
// Unknown errors are "internal"; nil is "".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// IsAuthError reports whether err belongs to the credential family.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrWrongCredential)
}
