package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRangeResolve(t *testing.T) {
	tests := []struct {
		name      string
		r         PageRange
		count     int
		wantStart int
		wantStop  int
		wantOK    bool
	}{
		{"zero value is full range", PageRange{}, 4, 0, 4, true},
		{"all but last", PageRange{Start: 0, Stop: -1}, 4, 0, 3, true},
		{"last page only", PageRange{Start: -1}, 4, 3, 4, true},
		{"first page only", PageRange{Start: 0, Stop: 1}, 4, 0, 1, true},
		{"out of range", PageRange{Start: 99, Stop: -99}, 4, 4, 0, false},
		{"stop clamped", PageRange{Start: 1, Stop: 40}, 4, 1, 4, true},
		{"empty document", PageRange{}, 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, stop, ok := tt.r.Resolve(tt.count)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantStop, stop)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestExtractedPageLines(t *testing.T) {
	p := NewExtractedPage(2, "first\nsecond\n")

	assert.Equal(t, 2, p.Number())
	assert.Equal(t, []string{"first", "second", ""}, p.Lines())

	lines := p.Lines()
	lines[0] = "changed"
	assert.Equal(t, "first", p.Lines()[0], "Lines must not expose internal state")
}

func TestCredentialNeverPrintsSecret(t *testing.T) {
	c := NewCredential("hunter2")

	assert.Equal(t, "hunter2", c.Reveal())
	assert.NotContains(t, fmt.Sprintf("%v %s %#v %+v", c, c, c, c), "hunter2")

	b, err := json.Marshal(struct{ C Credential }{c})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hunter2")

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("open", "credential", c)
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestCredentialStates(t *testing.T) {
	assert.False(t, Credential{}.Valid())
	assert.False(t, Credential{}.Blank())
	assert.True(t, NewCredential("  ").Blank())
	assert.False(t, NewCredential("x").Blank())

	var c Credential
	require.NoError(t, c.UnmarshalText([]byte("from-config")))
	assert.True(t, c.Valid())
	assert.Equal(t, "from-config", c.Reveal())
}

func TestCredentialsFrom(t *testing.T) {
	tests := []struct {
		name      string
		raw       any
		wantLen   int
		malformed bool
	}{
		{"nil", nil, 0, false},
		{"typed list", NewCredentials("a", "b"), 2, false},
		{"untyped list of credentials", []any{NewCredential("a")}, 1, false},
		{"not a list", "not a list", 0, true},
		{"plain strings", []string{"password"}, 0, true},
		{"mixed items", []any{NewCredential("a"), "password"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := CredentialsFrom(tt.raw)
			if tt.malformed {
				require.ErrorIs(t, err, ErrMalformedCredential)
				return
			}
			require.NoError(t, err)
			assert.Len(t, creds, tt.wantLen)
		})
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "ambiguous_balance", ErrorKind(fmt.Errorf("parse: %w", ErrAmbiguousBalance)))
	assert.Equal(t, "wrong_credential", ErrorKind(fmt.Errorf("%w: could not open statement.pdf", ErrWrongCredential)))
	assert.Equal(t, "internal", ErrorKind(fmt.Errorf("boom")))
	assert.True(t, IsAuthError(ErrMissingCredential))
	assert.False(t, IsAuthError(ErrBalanceNotFound))
}

func TestParseResultTotal(t *testing.T) {
	r := ParseResult{Transactions: []Transaction{
		{Amount: decimal.RequireFromString("10.50")},
		{Amount: decimal.RequireFromString("-3.25")},
	}}
	assert.True(t, r.Total().Equal(decimal.RequireFromString("7.25")))
}
