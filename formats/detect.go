package formats

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

// sniffAliases maps extensions reported by content sniffing onto registry
// extensions where the two disagree.
var sniffAliases = map[string]string{
	".gz":  ".tgz",
	".htm": ".html",
}

// Identify resolves a file's descriptor.  The declared extension of name
// wins when the registry knows it; otherwise head (the first bytes of the
// content) is sniffed.
func (r *Registry) Identify(name string, head []byte) (Descriptor, error) {
	if ext := ExtOf(name); ext != "" {
		if d, err := r.Lookup(ext); err == nil {
			return d, nil
		}
	}
	if len(head) > 0 {
		if d, ok := r.sniff(head); ok {
			return d, nil
		}
	}
	return Descriptor{}, apperrors.New(apperrors.KindUnsupportedFormat, "identify",
		fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, name))
}

func (r *Registry) sniff(head []byte) (Descriptor, bool) {
	for m := mimetype.Detect(head); m != nil; m = m.Parent() {
		ext := m.Extension()
		if a, ok := sniffAliases[ext]; ok {
			ext = a
		}
		if d, err := r.Lookup(ext); err == nil {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Handle builds a FileHandle for in-memory content.
func (r *Registry) Handle(name string, data []byte) (core.FileHandle, error) {
	d, err := r.Identify(name, data)
	if err != nil {
		return core.FileHandle{}, err
	}
	return core.FileHandle{
		Name:     name,
		MIME:     d.MIME,
		Ext:      d.Ext,
		Category: d.Category,
	}.WithContent(data), nil
}

// PathHandle builds a FileHandle for a file on disk; head is its first
// bytes and size its length.
func (r *Registry) PathHandle(path string, size int64, head []byte) (core.FileHandle, error) {
	d, err := r.Identify(path, head)
	if err != nil {
		return core.FileHandle{}, err
	}
	return core.FileHandle{
		Path:     path,
		Name:     path,
		Size:     size,
		MIME:     d.MIME,
		Ext:      d.Ext,
		Category: d.Category,
	}, nil
}
