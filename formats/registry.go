// Package formats is the format registry: which extensions exist, what
// category they belong to, and which conversions, compression levels and
// merges are legal.  Lookups are pure; a Registry never changes after it is
// built.
package formats

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

// Descriptor declares one format.
type Descriptor struct {
	Ext      string
	MIME     string
	Category core.Category
	Targets  []string     // legal target extensions
	Levels   []core.Level // legal compression levels
	Decode   bool
	Encode   bool
}

// Registry is an immutable set of descriptors keyed by extension.
type Registry struct {
	byExt map[string]Descriptor
	order []string
}

// New builds a registry.  Later descriptors replace earlier ones with the
// same extension.
func New(descs ...Descriptor) *Registry {
	r := &Registry{byExt: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		d.Ext = Normalize(d.Ext)
		d.Targets = lo.Map(d.Targets, func(t string, _ int) string { return Normalize(t) })
		if _, seen := r.byExt[d.Ext]; !seen {
			r.order = append(r.order, d.Ext)
		}
		r.byExt[d.Ext] = d
	}
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry { return New(Builtin()...) })

// Default returns the process-wide registry of built-in formats.
func Default() *Registry { return defaultRegistry() }

// With returns a new registry extended by descs.  r is left untouched.
func (r *Registry) With(descs ...Descriptor) *Registry {
	all := make([]Descriptor, 0, len(r.order)+len(descs))
	for _, ext := range r.order {
		all = append(all, r.byExt[ext])
	}
	return New(append(all, descs...)...)
}

// Normalize lower-cases ext, ensures a leading dot and folds aliases
// (".jpeg" → ".jpg", ".tif" → ".tiff", ...).
func Normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if a, ok := aliases[ext]; ok {
		return a
	}
	return ext
}

// ExtOf returns the normalised extension of a file name.
func ExtOf(name string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".tar.gz") {
		return ".tgz"
	}
	return Normalize(filepath.Ext(lower))
}

// Lookup returns the descriptor for ext.
func (r *Registry) Lookup(ext string) (Descriptor, error) {
	n := Normalize(ext)
	d, ok := r.byExt[n]
	if !ok {
		return Descriptor{}, apperrors.New(apperrors.KindUnsupportedFormat, "registry.lookup",
			fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, ext))
	}
	d.Targets = slices.Clone(d.Targets)
	d.Levels = slices.Clone(d.Levels)
	return d, nil
}

// ResolveCategory maps an extension to its category.
func (r *Registry) ResolveCategory(ext string) (core.Category, error) {
	d, err := r.Lookup(ext)
	if err != nil {
		return "", err
	}
	return d.Category, nil
}

// IsConversionLegal reports whether from can be converted to to.
func (r *Registry) IsConversionLegal(from, to string) bool {
	src, ok := r.byExt[Normalize(from)]
	if !ok || !src.Decode {
		return false
	}
	return lo.Contains(src.Targets, Normalize(to))
}

// LegalCompressionLevels returns the levels any format of cat accepts.
func (r *Registry) LegalCompressionLevels(cat core.Category) []core.Level {
	var levels []core.Level
	for _, ext := range r.order {
		if d := r.byExt[ext]; d.Category == cat {
			levels = append(levels, d.Levels...)
		}
	}
	levels = lo.Uniq(levels)
	// Keep the canonical low → high order.
	return lo.Filter(core.Levels, func(l core.Level, _ int) bool { return lo.Contains(levels, l) })
}

// LevelLegalFor reports whether level may be used when writing ext.
func (r *Registry) LevelLegalFor(ext string, level core.Level) bool {
	d, ok := r.byExt[Normalize(ext)]
	return ok && lo.Contains(d.Levels, level)
}

// Extensions lists the known extensions of cat in registration order.
func (r *Registry) Extensions(cat core.Category) []string {
	return lo.Filter(r.order, func(ext string, _ int) bool { return r.byExt[ext].Category == cat })
}

// MergeTargetLegal checks that inputs of the given categories may be merged
// into target.  Archives accept anything; videos accept videos or images;
// every other target needs inputs of its own category.  The error names the
// first offending input.
func (r *Registry) MergeTargetLegal(inputs []core.Category, target string) error {
	if len(inputs) == 0 {
		return apperrors.New(apperrors.KindInvalidParameters, "merge", apperrors.ErrEmptyInput)
	}
	d, err := r.Lookup(target)
	if err != nil {
		return err
	}
	if !d.Encode {
		return apperrors.New(apperrors.KindIllegalConversion, "merge",
			fmt.Errorf("%w: cannot write %s", apperrors.ErrIllegalConversion, d.Ext))
	}

	switch d.Category {
	case core.CategoryArchive:
		return nil
	case core.CategoryVideo:
		if lo.EveryBy(inputs, func(c core.Category) bool { return c == core.CategoryImage }) {
			return nil
		}
	}

	_, idx, found := lo.FindIndexOf(inputs, func(c core.Category) bool { return c != d.Category })
	if !found {
		return nil
	}
	return apperrors.WithInput(apperrors.New(apperrors.KindIncompatibleMergeInputs, "merge",
		fmt.Errorf("%w: %s input cannot be merged into %s", apperrors.ErrIncompatibleMergeInputs, inputs[idx], d.Ext)), idx)
}
