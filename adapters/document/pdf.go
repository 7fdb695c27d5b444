package document

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/Skryldev/fileforge/core"
)

const defaultFontSize = 11.0

// decodePDF extracts the text of every page.  Text runs are grouped into
// lines by their baseline.
func decodePDF(data []byte) (doc *core.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	doc = &core.Document{Title: strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text())}
	n := r.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("pdf: document has no pages")
	}
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			doc.Pages = append(doc.Pages, core.Page{})
			continue
		}
		doc.Pages = append(doc.Pages, core.Page{Text: pageText(p.Content().Text)})
	}
	return doc, nil
}

func pageText(runs []pdf.Text) string {
	var (
		b     strings.Builder
		lastY = math.NaN()
		lastX float64
	)
	for _, t := range runs {
		if !math.IsNaN(lastY) {
			tol := math.Max(t.FontSize/2, 1)
			switch {
			case math.Abs(t.Y-lastY) > tol:
				b.WriteByte('\n')
			case t.X-lastX > math.Max(t.FontSize/4, 1):
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		lastY, lastX = t.Y, t.X+t.W
	}
	return strings.TrimRight(b.String(), " \n")
}

// encodePDF lays out each page's text with a core font on A4, starting a
// new PDF page for every document page.
func encodePDF(doc *core.Document, fontSize float64) ([]byte, error) {
	if fontSize <= 0 {
		fontSize = defaultFontSize
	}
	f := fpdf.New("P", "mm", "A4", "")
	f.SetCompression(true)
	f.SetCreator("fileforge", true)
	if doc.Title != "" {
		f.SetTitle(doc.Title, true)
	}
	f.SetAutoPageBreak(true, 15)
	f.SetFont("Helvetica", "", fontSize)
	lineHeight := fontSize * 25.4 / 72 * 1.3

	pages := doc.Pages
	if len(pages) == 0 {
		pages = []core.Page{{}}
	}
	for _, p := range pages {
		f.AddPage()
		if p.Text != "" {
			f.MultiCell(0, lineHeight, toWinAnsi(p.Text), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toWinAnsi maps s onto the core fonts' Windows-1252 repertoire; runes
// outside it become '?'.
func toWinAnsi(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			out = append(out, byte(r))
			continue
		}
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
		} else {
			out = append(out, '?')
		}
	}
	return string(out)
}
