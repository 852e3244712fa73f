package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-ingest/internal/bank"
	"github.com/insightdelivered/statement-ingest/internal/extractor"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/pdftest"
)

func acmeFormat() bank.StatementFormat {
	return bank.StatementFormat{
		Kind:                   models.KindCredit,
		StatementDatePattern:   `Statement Date: (?P<date>\d{2}/\d{2}/\d{4})`,
		StatementDateLayout:    "02/01/2006",
		TransactionPattern:     `^(?P<date>\d{2}/\d{2})\s+(?P<description>.+?)\s+(?P<amount>[\d,]+\.\d{2})$`,
		TransactionDateLayout:  "02/01",
		BalancePattern:         `Previous Balance\s+(?P<amount>[\d,]+\.\d{2})`,
		OnlyOnePreviousBalance: true,
	}
}

func testRegistry(t *testing.T) *bank.Registry {
	t.Helper()
	acme := bank.Profile{
		Name:         "Acme",
		Fingerprints: []string{"ACME CARD"},
		Credentials:  models.NewCredentials("s3cret"),
		Currency:     "GBP",
		Formats:      []bank.StatementFormat{acmeFormat()},
	}
	other := bank.Profile{
		Name:         "Other",
		Fingerprints: []string{"OTHER BANK"},
		Formats:      []bank.StatementFormat{acmeFormat()},
	}
	r, err := bank.NewRegistry(acme, other)
	require.NoError(t, err)
	return r
}

func acmeStatement(t *testing.T) []byte {
	return pdftest.BuildText(t,
		[]string{"ACME CARD SERVICES", "Statement Date: 15/12/2023", "Previous Balance 100.00", "01/12 Coffee 4.50"},
		[]string{"05/12 Books 20.00"},
	)
}

func TestProcessEncryptedStatement(t *testing.T) {
	p := New(testRegistry(t))
	data := pdftest.Encrypt(t, acmeStatement(t), "s3cret")

	res := p.Process(context.Background(), Job{Source: extractor.FromBytes("december.pdf", data)})
	require.NoError(t, res.Err)

	assert.NotEqual(t, "", res.ID.String())
	assert.Equal(t, "december.pdf", res.Source)
	assert.Equal(t, "Acme", res.Institution)
	assert.Equal(t, "GBP", res.Currency)
	assert.Equal(t, models.KindCredit, res.Kind)
	require.NotNil(t, res.Statement)
	require.Len(t, res.Statement.Transactions, 2)
	assert.Equal(t, "Coffee", res.Statement.Transactions[0].Description)
	assert.Equal(t, 1, res.Statement.Transactions[1].Page)
	assert.True(t, res.Statement.ClosingBalance.Equal(decimal.RequireFromString("124.50")), res.Statement.ClosingBalance.String())
}

func TestProcessFailures(t *testing.T) {
	encrypted := pdftest.Encrypt(t, acmeStatement(t), "s3cret")
	unknown := pdftest.BuildText(t, []string{"MYSTERY LENDER", "Statement Date: 15/12/2023"})
	ambiguous := pdftest.BuildText(t,
		[]string{"ACME CARD", "Statement Date: 15/12/2023", "Previous Balance 1.00"},
		[]string{"Previous Balance 2.00"},
	)

	tests := []struct {
		name     string
		job      Job
		wantErr  error
		wantKind string
	}{
		{
			name:     "wrong credential",
			job:      Job{Source: extractor.FromBytes("a.pdf", encrypted), Credentials: models.NewCredentials("hunter2")},
			wantErr:  models.ErrWrongCredential,
			wantKind: "wrong_credential",
		},
		{
			name:     "empty credential list",
			job:      Job{Source: extractor.FromBytes("a.pdf", encrypted), Credentials: []models.Credential{}},
			wantErr:  models.ErrMissingCredential,
			wantKind: "missing_credential",
		},
		{
			name:     "unrecognized institution",
			job:      Job{Source: extractor.FromBytes("b.pdf", unknown)},
			wantErr:  models.ErrUnrecognizedInstitution,
			wantKind: "unrecognized_institution",
		},
		{
			name:     "unknown institution name",
			job:      Job{Source: extractor.FromBytes("b.pdf", unknown), Institution: "Nope"},
			wantErr:  models.ErrUnrecognizedInstitution,
			wantKind: "unrecognized_institution",
		},
		{
			name:     "ambiguous balance",
			job:      Job{Source: extractor.FromBytes("c.pdf", ambiguous)},
			wantErr:  models.ErrAmbiguousBalance,
			wantKind: "ambiguous_balance",
		},
		{
			name:     "invalid source",
			job:      Job{Source: extractor.Source{}},
			wantErr:  models.ErrInvalidSource,
			wantKind: "invalid_source",
		},
	}

	p := New(testRegistry(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Process(context.Background(), tt.job)
			require.ErrorIs(t, res.Err, tt.wantErr)
			assert.Equal(t, tt.wantKind, models.ErrorKind(res.Err))
			assert.Nil(t, res.Statement)
			assert.NotContains(t, res.Err.Error(), "hunter2")
			assert.NotContains(t, res.Err.Error(), "s3cret")
		})
	}
}

func TestProcessNamedInstitution(t *testing.T) {
	// No fingerprint on the page: only the explicit institution can pick Acme.
	data := pdftest.BuildText(t, []string{"Statement Date: 15/12/2023", "Previous Balance 0.00", "02/12 Tea 2.00"})

	res := New(testRegistry(t)).Process(context.Background(), Job{
		Source:      extractor.FromBytes("tea.pdf", data),
		Institution: "acme",
	})
	require.NoError(t, res.Err)
	assert.Equal(t, "Acme", res.Institution)
	assert.True(t, res.Statement.ClosingBalance.Equal(decimal.RequireFromString("2.00")))
}

func TestProcessWarnsOnlyAboutStatementText(t *testing.T) {
	// The probe page holds just the fingerprint, far too little to pass as a statement.
	data := pdftest.BuildText(t,
		[]string{"ACME CARD"},
		[]string{"Statement Date: 15/12/2023", "Previous Balance 100.00", "01/12 Coffee 4.50"},
	)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	res := New(testRegistry(t), WithLogger(logger)).Process(context.Background(), Job{Source: extractor.FromBytes("december.pdf", data)})
	require.NoError(t, res.Err)
	assert.Equal(t, "Acme", res.Institution)
	assert.NotContains(t, logs.String(), "does not look like a statement")
}

func TestProcessIdentifiesFromWholeDocument(t *testing.T) {
	data := pdftest.BuildText(t,
		[]string{"Statement Date: 15/12/2023", "Previous Balance 10.00", "03/12 Lunch 8.00"},
		[]string{"Issued by OTHER BANK"},
	)

	res := New(testRegistry(t)).Process(context.Background(), Job{Source: extractor.FromBytes("other.pdf", data)})
	require.NoError(t, res.Err)
	assert.Equal(t, "Other", res.Institution)
}

func TestProcessCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(testRegistry(t)).Process(ctx, Job{Source: extractor.FromBytes("x.pdf", acmeStatement(t))})
	require.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, "canceled", models.ErrorKind(res.Err))
}

func TestBatchIsolatesFailures(t *testing.T) {
	good := acmeStatement(t)
	bad := pdftest.BuildText(t, []string{"MYSTERY LENDER"})

	jobs := []Job{
		{Source: extractor.FromBytes("1.pdf", good)},
		{Source: extractor.FromBytes("2.pdf", bad)},
		{Source: extractor.FromBytes("3.pdf", good)},
		{Source: extractor.FromBytes("4.pdf", pdftest.Encrypt(t, good, "s3cret"))},
	}

	results := New(testRegistry(t), WithWorkers(2)).Batch(context.Background(), jobs)
	require.Len(t, results, len(jobs))

	for i, res := range results {
		assert.Equal(t, jobs[i].Source.Label(), res.Source)
	}
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, models.ErrUnrecognizedInstitution)
	assert.NoError(t, results[2].Err)
	assert.NoError(t, results[3].Err)
	assert.NotEqual(t, results[0].ID, results[2].ID)
}
