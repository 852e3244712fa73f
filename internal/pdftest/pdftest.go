// Package pdftest builds small statement PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/require"
)

var configDir sync.Once

// Line is one horizontal line of 10pt Courier, 6pt per character, with its
// baseline origin at (X, Y) in PDF user space.
type Line struct {
	X, Y float64
	S    string
}

// L is shorthand for a Line.
func L(x, y float64, s string) Line { return Line{X: x, Y: y, S: s} }

// Rows lays out texts top-down from y = 740, 12pt apart, at x = 50.
func Rows(texts ...string) []Line {
	lines := make([]Line, len(texts))
	for i, s := range texts {
		lines[i] = L(50, 740-12*float64(i), s)
	}
	return lines
}

var escaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

// Content renders lines as a content stream. Extra raw operators are appended
// unchanged, which lets tests draw rotated text.
func Content(lines []Line, extra ...string) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "BT /F1 10 Tf 1 0 0 1 %g %g Tm (%s) Tj ET\n", l.X, l.Y, escaper.Replace(l.S))
	}
	for _, e := range extra {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	return b.String()
}

// Rotated draws s turned a quarter turn counter-clockwise with its origin at
// (x, y).
func Rotated(x, y float64, s string) string {
	return fmt.Sprintf("BT /F1 10 Tf 0 1 -1 0 %g %g Tm (%s) Tj ET", x, y, escaper.Replace(s))
}

// Turned draws s rotated counter-clockwise by deg degrees with its origin at
// (x, y), like a diagonal "PAID" stamp.
func Turned(x, y, deg float64, s string) string {
	rad := deg * math.Pi / 180
	c, sn := math.Cos(rad), math.Sin(rad)
	return fmt.Sprintf("BT /F1 10 Tf %.4f %.4f %.4f %.4f %g %g Tm (%s) Tj ET", c, sn, -sn, c, x, y, escaper.Replace(s))
}

// Build writes a minimal Letter sized PDF with one page per content stream.
func Build(t testing.TB, contents ...string) []byte {
	t.Helper()

	n := len(contents)
	fontID := 3 + 2*n
	objects := make([]string, 0, fontID)

	kids := make([]string, n)
	for i := range contents {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> >>",
			strings.Join(kids, " "), n, fontID),
	)
	for i, c := range contents {
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R >>", 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(c)+1, c),
		)
	}
	widths := strings.TrimSpace(strings.Repeat("600 ", 95))
	objects = append(objects,
		fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>", widths))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// BuildText builds a PDF with one page per entry, each page holding its lines
// laid out with Rows.
func BuildText(t testing.TB, pages ...[]string) []byte {
	t.Helper()
	contents := make([]string, len(pages))
	for i, texts := range pages {
		contents[i] = Content(Rows(texts...))
	}
	return Build(t, contents...)
}

// Encrypt protects a document with an RC4 128 user password. pdfcpu writes it
// with a V4 crypt filter.
func Encrypt(t testing.TB, plain []byte, userPW string) []byte {
	t.Helper()
	return encrypt(t, plain, model.NewRC4Configuration(userPW, userPW+"-owner", 128))
}

// EncryptAES protects a document with an AES 256 user password.
func EncryptAES(t testing.TB, plain []byte, userPW string) []byte {
	t.Helper()
	return encrypt(t, plain, model.NewAESConfiguration(userPW, userPW+"-owner", 256))
}

func encrypt(t testing.TB, plain []byte, conf *model.Configuration) []byte {
	t.Helper()
	configDir.Do(api.DisableConfigDir)

	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	var out bytes.Buffer
	require.NoError(t, api.Encrypt(bytes.NewReader(plain), &out, conf))
	return out.Bytes()
}
