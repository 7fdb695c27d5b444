// Package document is the document codec.  Documents are page-aware: plain
// text, Markdown, HTML and PDF all decode into an ordered page list.
package document

import (
	"context"
	"fmt"

	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

// Codec implements core.Codec for the document category.
type Codec struct{}

// New returns a document codec.
func New() *Codec { return &Codec{} }

func (c *Codec) Category() core.Category { return core.CategoryDocument }

func (c *Codec) Decode(ctx context.Context, data []byte, ext string) (core.Canonical, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "document.decode", err)
	}
	op := "document" + ext + ".decode"
	switch ext {
	case ".txt":
		return decodeTXT(data), nil
	case ".md":
		return decodeMD(data), nil
	case ".html":
		doc, err := decodeHTML(data)
		if err != nil {
			return nil, apperrors.New(apperrors.KindDecodeFailure, op, err)
		}
		return doc, nil
	case ".pdf":
		if len(data) == 0 {
			return nil, apperrors.New(apperrors.KindDecodeFailure, op, apperrors.ErrEmptyInput)
		}
		doc, err := decodePDF(data)
		if err != nil {
			return nil, apperrors.New(apperrors.KindDecodeFailure, op, err)
		}
		return doc, nil
	}
	return nil, apperrors.New(apperrors.KindUnsupportedFormat, "document.decode",
		fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, ext))
}

func (c *Codec) Encode(ctx context.Context, can core.Canonical, ext string, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "document.encode", err)
	}
	doc, err := asDocument(can, "document.encode")
	if err != nil {
		return nil, err
	}
	op := "document" + ext + ".encode"

	var out []byte
	switch ext {
	case ".txt":
		out = encodeTXT(doc)
	case ".md":
		out = encodeMD(doc)
	case ".html":
		out = encodeHTML(doc)
	case ".pdf":
		if out, err = encodePDF(doc, core.ProfileFor(opts.Level).PDFFontSize); err != nil {
			return nil, apperrors.New(apperrors.KindEncodeFailure, op, err)
		}
	default:
		return nil, apperrors.New(apperrors.KindIllegalConversion, "document.encode",
			fmt.Errorf("%w: cannot write %s", apperrors.ErrIllegalConversion, ext))
	}
	if err := core.CheckCapacity(op, len(out), opts.MaxBytes); err != nil {
		return nil, err
	}
	return out, nil
}

// Compress compacts whitespace on every page.  PDF output additionally uses
// the level's smaller font, applied by Encode.
func (c *Codec) Compress(ctx context.Context, can core.Canonical, level core.Level) (core.Canonical, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "document.compress", err)
	}
	doc, err := asDocument(can, "document.compress")
	if err != nil {
		return nil, err
	}
	n := core.ProfileFor(level).TextCompaction
	out := &core.Document{Title: doc.Title, Pages: make([]core.Page, len(doc.Pages))}
	for i, p := range doc.Pages {
		out.Pages[i] = core.Page{Text: compact(p.Text, n)}
	}
	return out, nil
}

func asDocument(c core.Canonical, op string) (*core.Document, error) {
	d, ok := c.(*core.Document)
	if !ok || d == nil {
		return nil, apperrors.New(apperrors.KindInternal, op,
			fmt.Errorf("expected document, got %T", c))
	}
	return d, nil
}
