package document

import (
	"context"
	"strings"

	"github.com/Skryldev/fileforge/core"
	"github.com/Skryldev/fileforge/utils"
)

// Steps parses document edit parameters.  Edits run in a fixed order:
// pages, then title.
//
//	pages=1-3,5  title=New title
func (c *Codec) Steps(params map[string]string) ([]core.Step, error) {
	if err := utils.CheckKeys(params, "pages", "title"); err != nil {
		return nil, err
	}
	var steps []core.Step
	if v, ok := params["pages"]; ok {
		spans, err := utils.ParsePageSpans("pages", v)
		if err != nil {
			return nil, err
		}
		steps = append(steps, &PagesStep{Spans: spans})
	}
	if v, ok := params["title"]; ok {
		steps = append(steps, &TitleStep{Title: strings.TrimSpace(v)})
	}
	return steps, nil
}

// PagesStep keeps the selected 1-based pages in the order given.
type PagesStep struct {
	Spans []utils.PageSpan
}

func (s *PagesStep) Name() string { return "pages" }

func (s *PagesStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	doc, err := asDocument(c, "document.pages")
	if err != nil {
		return nil, err
	}
	pages, err := utils.SelectPages("pages", s.Spans, len(doc.Pages))
	if err != nil {
		return nil, err
	}
	out := &core.Document{Title: doc.Title, Pages: make([]core.Page, len(pages))}
	for i, n := range pages {
		out.Pages[i] = doc.Pages[n-1]
	}
	return out, nil
}

// TitleStep replaces the document title.
type TitleStep struct {
	Title string
}

func (s *TitleStep) Name() string { return "title" }

func (s *TitleStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	doc, err := asDocument(c, "document.title")
	if err != nil {
		return nil, err
	}
	out := *doc
	out.Title = s.Title
	return &out, nil
}
