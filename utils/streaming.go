package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	apperrors "github.com/Skryldev/fileforge/errors"
)

// bufPool reuses byte buffers to reduce GC pressure.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// AcquireBuffer returns a reset buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool.  Callers must not use b after this call.
func ReleaseBuffer(b *bytes.Buffer) {
	// Cap large buffers to avoid pinning excessive memory.
	if b.Cap() > 8*1024*1024 {
		return
	}
	bufPool.Put(b)
}

// DrainReader reads all bytes from r into a pooled buffer and returns them.
// The caller owns the returned slice; pass the buffer back with ReleaseBuffer.
func DrainReader(ctx context.Context, r io.Reader, chunkSize int) (*bytes.Buffer, error) {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := AcquireBuffer()
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
	}
	return buf, nil
}

// ReadAll drains r through a pooled buffer and returns an owned copy of the
// bytes.  A positive max bounds the read with ErrInputTooLarge.
func ReadAll(ctx context.Context, r io.Reader, max int64, chunkSize int) ([]byte, error) {
	if max > 0 {
		r = &LimitedReader{R: r, Max: max}
	}
	buf, err := DrainReader(ctx, r, chunkSize)
	if err != nil {
		return nil, err
	}
	out := CloneBytes(buf.Bytes())
	ReleaseBuffer(buf)
	return out, nil
}

// LimitedReader wraps r and fails with ErrInputTooLarge once more than Max
// bytes are available.
type LimitedReader struct {
	R   io.Reader
	Max int64
	n   int64
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Max <= 0 {
		return l.R.Read(p)
	}
	if l.n >= l.Max {
		// Read one more byte to tell "exactly Max" from "too large".
		var one [1]byte
		n, err := l.R.Read(one[:])
		if n > 0 {
			return 0, apperrors.ErrInputTooLarge
		}
		return 0, err
	}
	remain := l.Max - l.n
	if int64(len(p)) > remain {
		p = p[:remain]
	}
	n, err := l.R.Read(p)
	l.n += int64(n)
	return n, err
}

// WriteSeekBuffer is an in-memory io.WriteSeeker for encoders that patch
// headers after writing the payload.
type WriteSeekBuffer struct {
	buf []byte
	pos int
}

func (w *WriteSeekBuffer) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		if end > cap(w.buf) {
			grown := make([]byte, end, max(end, 2*cap(w.buf)))
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:end]
		}
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *WriteSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("write seek buffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("write seek buffer: negative position")
	}
	w.pos = int(abs)
	return abs, nil
}

// Bytes returns the written content.
func (w *WriteSeekBuffer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *WriteSeekBuffer) Len() int { return len(w.buf) }
