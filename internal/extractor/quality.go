package extractor

import (
	"strings"
	"unicode"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// textQuality returns the ratio of plain ASCII letters, digits, whitespace and
// common statement punctuation to all characters. Fonts with identity encodings
// decode to accented garbage, which unicode.IsLetter would accept.
func textQuality(text string) float64 {
	total, readable := 0, 0
	for _, r := range text {
		total++
		if isStatementRune(r) {
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

func isStatementRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', unicode.IsSpace(r):
		return true
	}
	return strings.ContainsRune(".,-/:;()'\"£$€₹%&@#!?+=*", r)
}

// commonWords appear in virtually every statement. Text containing none of them
// is most likely undecoded glyph ids.
var commonWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "sort code",
	"money", "paid", "opening", "closing", "transfer", "direct",
	"number", "page", "period", "card", "due",
}

func containsCommonWords(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range commonWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// Readable reports whether extracted pages look like real statement text: more
// than 50 characters, over 60% plain characters and at least one word every
// statement uses.
func Readable(pages []models.ExtractedPage) bool {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(strings.TrimSpace(p.Text()))
		b.WriteByte('\n')
	}
	text := b.String()
	if len(strings.TrimSpace(text)) <= 50 {
		return false
	}
	if textQuality(text) <= 0.6 {
		return false
	}
	return containsCommonWords(text)
}
