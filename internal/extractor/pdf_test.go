package extractor

import (
	"fmt"
	"testing"

	"github.com/insightdelivered/statement-ingest/internal/pdftest"
)

type textLine = pdftest.Line

func line(x, y float64, s string) textLine { return pdftest.L(x, y, s) }

func pageContent(lines []textLine, extra ...string) string {
	return pdftest.Content(lines, extra...)
}

func rotatedText(x, y float64, s string) string { return pdftest.Rotated(x, y, s) }

func buildPDF(t *testing.T, contents ...string) []byte {
	t.Helper()
	return pdftest.Build(t, contents...)
}

func encryptPDF(t *testing.T, plain []byte, userPW string) []byte {
	t.Helper()
	return pdftest.Encrypt(t, plain, userPW)
}

func statementPages(n int) []string {
	pages := make([]string, n)
	for i := range pages {
		pages[i] = pageContent([]textLine{
			line(50, 740, fmt.Sprintf("Statement page %d", i+1)),
			line(50, 700, "01/12/2023 Opening balance 100.00"),
		})
	}
	return pages
}
