package core

import (
	"fmt"

	apperrors "github.com/Skryldev/fileforge/errors"
)

// Profile is the per-category meaning of one compression level.  Zero
// values mean "leave unchanged".
type Profile struct {
	ImageQuality       int
	ImageMaxDimension  int
	PNGBestCompression bool

	AudioMaxRate int
	AudioMono    bool

	VideoQuality      int
	VideoMaxDimension int
	VideoFrameStep    int

	DeflateLevel int

	TextCompaction int // 0 trims lines, 1 also folds blank runs, 2 also folds inner whitespace
	PDFFontSize    float64
}

var profiles = map[Level]Profile{
	LevelLow: {
		ImageQuality:   85,
		VideoQuality:   85,
		VideoFrameStep: 1,
		DeflateLevel:   3,
		TextCompaction: 0,
		PDFFontSize:    11,
	},
	LevelMedium: {
		ImageQuality:       70,
		ImageMaxDimension:  2048,
		PNGBestCompression: true,
		AudioMaxRate:       22050,
		VideoQuality:       70,
		VideoMaxDimension:  1280,
		VideoFrameStep:     1,
		DeflateLevel:       6,
		TextCompaction:     1,
		PDFFontSize:        10,
	},
	LevelHigh: {
		ImageQuality:       50,
		ImageMaxDimension:  1280,
		PNGBestCompression: true,
		AudioMaxRate:       11025,
		AudioMono:          true,
		VideoQuality:       50,
		VideoMaxDimension:  640,
		VideoFrameStep:     2,
		DeflateLevel:       9,
		TextCompaction:     2,
		PDFFontSize:        9,
	},
}

// ProfileFor returns the table row for level.  The empty level yields the
// zero Profile.
func ProfileFor(level Level) Profile { return profiles[level] }

// CompressionRatio is the percentage of bytes saved, clamped to [0,100].
// An empty original yields 0.
func CompressionRatio(original, output int64) float64 {
	if original <= 0 {
		return 0
	}
	r := float64(original-output) / float64(original) * 100
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	}
	return r
}

// CheckCapacity returns a BufferTooSmall error when n bytes exceed max.
// A max of 0 or less means unbounded.
func CheckCapacity(op string, n int, max int64) error {
	if max > 0 && int64(n) > max {
		return apperrors.New(apperrors.KindBufferTooSmall, op,
			fmt.Errorf("%w: %d bytes, capacity %d", apperrors.ErrBufferTooSmall, n, max))
	}
	return nil
}
