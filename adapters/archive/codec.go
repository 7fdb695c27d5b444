// Package archive is the archive codec: zip, tar and gzip-compressed tar,
// decoded into an ordered list of file entries.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

// Codec implements core.Codec for the archive category.
type Codec struct {
	// MaxEntryBytes bounds a single decompressed entry; 0 = unbounded.
	MaxEntryBytes int64
}

// New returns an archive codec.  maxEntry bounds a decompressed entry.
func New(maxEntry int64) *Codec { return &Codec{MaxEntryBytes: maxEntry} }

func (c *Codec) Category() core.Category { return core.CategoryArchive }

// ── Decode ────────────────────────────────────────────────────────────────────

func (c *Codec) Decode(ctx context.Context, data []byte, ext string) (core.Canonical, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "archive.decode", err)
	}
	op := "archive" + ext + ".decode"

	var (
		b   *core.Bundle
		err error
	)
	switch ext {
	case ".zip":
		b, err = c.decodeZip(data)
	case ".tar":
		b, err = c.decodeTar(bytes.NewReader(data))
	case ".tgz":
		var zr *gzip.Reader
		if zr, err = gzip.NewReader(bytes.NewReader(data)); err == nil {
			b, err = c.decodeTar(zr)
			zr.Close()
		}
	default:
		return nil, apperrors.New(apperrors.KindUnsupportedFormat, "archive.decode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, ext))
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindDecodeFailure, op, err)
	}
	return b, nil
}

func (c *Codec) decodeZip(data []byte) (*core.Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	b := &core.Bundle{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := safeName(f.Name)
		if err != nil {
			return nil, err
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		content, err := c.readEntry(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		b.Entries = append(b.Entries, core.Entry{Name: name, Data: content, Modified: f.Modified})
	}
	return b, nil
}

func (c *Codec) decodeTar(r io.Reader) (*core.Bundle, error) {
	tr := tar.NewReader(r)
	b := &core.Bundle{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return b, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg && hdr.Typeflag != tar.TypeRegA {
			continue
		}
		name, err := safeName(hdr.Name)
		if err != nil {
			return nil, err
		}
		content, err := c.readEntry(tr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", hdr.Name, err)
		}
		b.Entries = append(b.Entries, core.Entry{Name: name, Data: content, Modified: hdr.ModTime})
	}
}

func (c *Codec) readEntry(r io.Reader) ([]byte, error) {
	if c.MaxEntryBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, c.MaxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.MaxEntryBytes {
		return nil, apperrors.ErrInputTooLarge
	}
	return data, nil
}

// safeName rejects entry names that would escape an extraction directory.
func safeName(name string) (string, error) {
	n := strings.ReplaceAll(name, "\\", "/")
	if n == "" || strings.HasPrefix(n, "/") || (len(n) > 1 && n[1] == ':') {
		return "", fmt.Errorf("unsafe entry name %q", name)
	}
	for _, part := range strings.Split(n, "/") {
		if part == ".." {
			return "", fmt.Errorf("unsafe entry name %q", name)
		}
	}
	return path.Clean(n), nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

func (c *Codec) Encode(ctx context.Context, can core.Canonical, ext string, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "archive.encode", err)
	}
	b, err := asBundle(can, "archive.encode")
	if err != nil {
		return nil, err
	}
	op := "archive" + ext + ".encode"
	level := flate.DefaultCompression
	if opts.Level != "" {
		level = core.ProfileFor(opts.Level).DeflateLevel
	}

	var buf bytes.Buffer
	switch ext {
	case ".zip":
		err = encodeZip(&buf, b, level)
	case ".tar":
		err = encodeTar(&buf, b)
	case ".tgz":
		var zw *gzip.Writer
		if zw, err = gzip.NewWriterLevel(&buf, level); err == nil {
			if err = encodeTar(zw, b); err == nil {
				err = zw.Close()
			}
		}
	default:
		return nil, apperrors.New(apperrors.KindIllegalConversion, "archive.encode",
			fmt.Errorf("%w: cannot write %s", apperrors.ErrIllegalConversion, ext))
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindEncodeFailure, op, err)
	}
	if err := core.CheckCapacity(op, buf.Len(), opts.MaxBytes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeZip(w io.Writer, b *core.Bundle, level int) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	for _, e := range b.Entries {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: modTime(e)})
		if err != nil {
			return err
		}
		if _, err := f.Write(e.Data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func encodeTar(w io.Writer, b *core.Bundle) error {
	tw := tar.NewWriter(w)
	for _, e := range b.Entries {
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     e.Name,
			Mode:     0o644,
			Size:     int64(len(e.Data)),
			ModTime:  modTime(e),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(e.Data); err != nil {
			return err
		}
	}
	return tw.Close()
}

// epoch stands in for a missing modification time; zip cannot date entries
// before 1980.
var epoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

func modTime(e core.Entry) time.Time {
	if e.Modified.IsZero() || e.Modified.Before(epoch) {
		return epoch
	}
	return e.Modified
}

// ── Compress ──────────────────────────────────────────────────────────────────

// Compress leaves the entries untouched; the level takes effect when Encode
// deflates them.
func (c *Codec) Compress(ctx context.Context, can core.Canonical, _ core.Level) (core.Canonical, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "archive.compress", err)
	}
	b, err := asBundle(can, "archive.compress")
	if err != nil {
		return nil, err
	}
	return b, nil
}

func asBundle(c core.Canonical, op string) (*core.Bundle, error) {
	b, ok := c.(*core.Bundle)
	if !ok || b == nil {
		return nil, apperrors.New(apperrors.KindInternal, op,
			fmt.Errorf("expected archive bundle, got %T", c))
	}
	return b, nil
}
