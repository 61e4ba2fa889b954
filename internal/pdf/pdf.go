// Package pdf renders clinical briefs as single-column PDF documents.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// MIMEType is the content type served for rendered documents.
const MIMEType = "application/pdf"

const (
	fontFamily = "Arial"
	fontSize   = 12
	lineHeight = 10
)

// Render lays text out on A4 pages in 12pt Arial, one wrapped flow of
// paragraphs. Characters outside Latin-1 are replaced with '?', so any input
// string yields a document.
func Render(text string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCreator("nexuscds", false)
	doc.AddPage()
	doc.SetFont(fontFamily, "", fontSize)
	doc.MultiCell(0, lineHeight, ToLatin1(normalizeNewlines(text)), "", "", false)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// ToLatin1 encodes s as ISO-8859-1 bytes, replacing every rune the charset
// cannot represent with '?'. The result is a byte string, not UTF-8.
func ToLatin1(s string) string {
	enc := charmap.ISO8859_1
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := enc.EncodeRune(r); ok {
			b.WriteByte(c)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// BriefFilename names the download offered right after a triage run:
// "{patient}_brief.pdf", or "Triage_{YYYYMMDD_HHMM}.pdf" without a patient ID.
func BriefFilename(patientID string, t time.Time) string {
	id := sanitize(patientID)
	if id == "" {
		return "Triage_" + t.Format("20060102_1504") + ".pdf"
	}
	return id + "_brief.pdf"
}

// RecallFilename names a document fetched again from history.
func RecallFilename(patientID string) string {
	id := sanitize(patientID)
	if id == "" {
		id = "anonymous"
	}
	return "Recall_" + id + ".pdf"
}

// sanitize keeps letters, digits, '-', '_' and '.'; everything else becomes '_'.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
