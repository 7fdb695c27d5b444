package utils_test

import (
	"slices"
	"testing"

	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/utils"
)

func TestParseSpan(t *testing.T) {
	start, dur, err := utils.ParseSpan("trim", "1.5:2")
	if err != nil || start != 1.5 || dur != 2 {
		t.Errorf("1.5:2 = %v, %v, %v", start, dur, err)
	}
	if _, dur, err := utils.ParseSpan("trim", "3"); err != nil || dur >= 0 {
		t.Errorf("open span: dur %v, err %v", dur, err)
	}

	for _, s := range []string{"NaN:1", "inf", "0:inf", "+Inf:1", "0:-Inf", "-1:2", "0:0", "x:1", "1:y"} {
		if _, _, err := utils.ParseSpan("trim", s); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
			t.Errorf("%q: got %v, want invalid parameters", s, err)
		}
	}
}

func TestParseFloatAndFPS(t *testing.T) {
	for _, s := range []string{"NaN", "Inf", "-Inf"} {
		if _, err := utils.ParseFloat("gain", s, false); err == nil {
			t.Errorf("ParseFloat(%q) accepted", s)
		}
	}
	if v, err := utils.ParseFloat("gain", "-6", false); err != nil || v != -6 {
		t.Errorf("ParseFloat(-6) = %v, %v", v, err)
	}

	tests := []struct {
		in string
		ok bool
	}{
		{"25", true},
		{"0.01", true},
		{"240", true},
		{"0", false},
		{"1e-300", false},
		{"240.5", false},
		{"Inf", false},
		{"NaN", false},
	}
	for _, tc := range tests {
		_, err := utils.ParseFPS("fps", tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("ParseFPS(%q): err %v, want ok=%v", tc.in, err, tc.ok)
		}
	}
}

func TestPageSpans(t *testing.T) {
	spans, err := utils.ParsePageSpans("pages", "4-, 1-2,3")
	if err != nil {
		t.Fatal(err)
	}
	got, err := utils.SelectPages("pages", spans, 5)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{4, 5, 1, 2, 3}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Syntax checks never expand the range.
	huge, err := utils.ParsePageSpans("pages", "1-2000000000")
	if err != nil || len(huge) != 1 {
		t.Fatalf("huge range: %v %v", huge, err)
	}
	if _, err := utils.SelectPages("pages", huge, 3); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
		t.Errorf("huge range against 3 pages: got %v", err)
	}

	for _, s := range []string{"", "0", "3-1", "a", "1-b", "-2"} {
		if _, err := utils.ParsePageSpans("pages", s); err == nil {
			t.Errorf("%q accepted", s)
		}
	}
}
