package document

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/Skryldev/fileforge/core"
)

// mdPageBreak separates pages in Markdown files.
const mdPageBreak = "<!-- pagebreak -->"

// decodeText turns raw bytes into normalised UTF-8.  Input that is not valid
// UTF-8 is read as Windows-1252.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var s string
	if utf8.Valid(data) {
		s = string(data)
	} else {
		b, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			b = bytes.ToValidUTF8(data, []byte("�"))
		}
		s = string(b)
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return norm.NFC.String(s)
}

// ── plain text ────────────────────────────────────────────────────────────────

func decodeTXT(data []byte) *core.Document {
	doc := &core.Document{}
	for _, p := range strings.Split(decodeText(data), "\f") {
		doc.Pages = append(doc.Pages, core.Page{Text: p})
	}
	return doc
}

func encodeTXT(doc *core.Document) []byte {
	parts := make([]string, len(doc.Pages))
	for i, p := range doc.Pages {
		parts[i] = p.Text
	}
	return []byte(strings.Join(parts, "\f"))
}

// ── markdown ──────────────────────────────────────────────────────────────────

func decodeMD(data []byte) *core.Document {
	doc := &core.Document{}
	var page []string
	flush := func() {
		doc.Pages = append(doc.Pages, core.Page{Text: strings.Trim(strings.Join(page, "\n"), "\n")})
		page = page[:0]
	}
	for _, line := range strings.Split(decodeText(data), "\n") {
		if strings.TrimSpace(line) == mdPageBreak {
			flush()
			continue
		}
		if doc.Title == "" && strings.HasPrefix(line, "# ") {
			doc.Title = strings.TrimSpace(line[2:])
		}
		page = append(page, line)
	}
	flush()
	return doc
}

func encodeMD(doc *core.Document) []byte {
	var b strings.Builder
	for i, p := range doc.Pages {
		if i > 0 {
			b.WriteString("\n\n" + mdPageBreak + "\n\n")
		}
		if i == 0 && doc.Title != "" && !strings.HasPrefix(p.Text, "# "+doc.Title) {
			b.WriteString("# " + doc.Title + "\n\n")
		}
		b.WriteString(p.Text)
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// ── HTML ──────────────────────────────────────────────────────────────────────

var blankRuns = regexp.MustCompile(`\n{3,}`)

func decodeHTML(data []byte) (*core.Document, error) {
	root, err := html.Parse(strings.NewReader(decodeText(data)))
	if err != nil {
		return nil, err
	}
	doc := &core.Document{}
	var sections []*html.Node
	var body *html.Node

	var find func(n *html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if doc.Title == "" {
					doc.Title = strings.TrimSpace(textOf(n))
				}
			case atom.Body:
				body = n
			case atom.Section:
				if hasClass(n, "page") {
					sections = append(sections, n)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)

	if len(sections) == 0 && body != nil {
		sections = []*html.Node{body}
	}
	for _, s := range sections {
		doc.Pages = append(doc.Pages, core.Page{Text: cleanBlocks(textOf(s))})
	}
	if len(doc.Pages) == 0 {
		doc.Pages = []core.Page{{}}
	}
	return doc, nil
}

// textOf renders the visible text below n, breaking lines at block elements.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if strings.TrimSpace(n.Data) == "" {
				if n.Data != "" {
					b.WriteByte(' ')
				}
				return
			}
			if isSpace(n.Data[0]) {
				b.WriteByte(' ')
			}
			b.WriteString(strings.Join(strings.Fields(n.Data), " "))
			if isSpace(n.Data[len(n.Data)-1]) {
				b.WriteByte(' ')
			}
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Noscript, atom.Template:
				return
			case atom.Br:
				b.WriteByte('\n')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Pre, atom.Blockquote, atom.Table:
				b.WriteString("\n\n")
			case atom.Div, atom.Li, atom.Tr, atom.Section, atom.Article, atom.Ul, atom.Ol:
				b.WriteByte('\n')
			}
		}
	}
	walk(n)
	return b.String()
}

func isSpace(c byte) bool { return c == ' ' || c == '\n' || c == '\t' || c == '\r' }

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// cleanBlocks trims every line and folds runs of blank lines.
func cleanBlocks(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Trim(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"), "\n")
}

func encodeHTML(doc *core.Document) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if doc.Title != "" {
		b.WriteString("<title>" + html.EscapeString(doc.Title) + "</title>\n")
	}
	b.WriteString("</head>\n<body>\n")
	for _, p := range doc.Pages {
		b.WriteString("<section class=\"page\">\n")
		for _, para := range strings.Split(p.Text, "\n\n") {
			if strings.TrimSpace(para) == "" {
				continue
			}
			lines := strings.Split(para, "\n")
			for i, l := range lines {
				lines[i] = html.EscapeString(l)
			}
			b.WriteString("<p>" + strings.Join(lines, "<br>\n") + "</p>\n")
		}
		b.WriteString("</section>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

// ── compaction ────────────────────────────────────────────────────────────────

var innerSpace = regexp.MustCompile(`[ \t]{2,}`)

// compact reduces whitespace by level: 0 trims line ends, 1 also folds
// blank-line runs, 2 also folds runs of inner spaces.
func compact(s string, level int) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if level >= 2 {
			l = innerSpace.ReplaceAllString(strings.TrimLeft(l, " \t"), " ")
		}
		if level >= 1 {
			if l == "" {
				if blank {
					continue
				}
				blank = true
			} else {
				blank = false
			}
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
