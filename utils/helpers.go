package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ScaleDimensions computes output (w, h) preserving aspect ratio.
// Pass 0 for either axis to calculate it from the other.
func ScaleDimensions(srcW, srcH, targetW, targetH int) (int, int) {
	if targetW == 0 && targetH == 0 {
		return srcW, srcH
	}
	if targetW == 0 {
		ratio := float64(targetH) / float64(srcH)
		return max(1, int(float64(srcW)*ratio)), targetH
	}
	if targetH == 0 {
		ratio := float64(targetW) / float64(srcW)
		return targetW, max(1, int(float64(srcH)*ratio))
	}
	return targetW, targetH
}

// FitWithin shrinks (w, h) so that neither side exceeds maxDim, preserving
// aspect ratio.  Dimensions already inside the box, or maxDim <= 0, are
// returned unchanged.
func FitWithin(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return ScaleDimensions(w, h, maxDim, 0)
	}
	return ScaleDimensions(w, h, 0, maxDim)
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// UniqueName returns name if taken reports false for it, otherwise the first
// free "stem (n).ext" variant.
func UniqueName(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if !taken(candidate) {
			return candidate
		}
	}
}
