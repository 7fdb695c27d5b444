package utils_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/utils"
)

func TestScaleDimensions(t *testing.T) {
	tests := []struct {
		srcW, srcH, targetW, targetH int
		wantW, wantH                 int
	}{
		{800, 600, 400, 0, 400, 300},
		{800, 600, 0, 300, 400, 300},
		{800, 600, 200, 200, 200, 200},
		{800, 600, 0, 0, 800, 600},
		{1000, 1, 10, 0, 10, 1},
	}
	for _, tc := range tests {
		gotW, gotH := utils.ScaleDimensions(tc.srcW, tc.srcH, tc.targetW, tc.targetH)
		if gotW != tc.wantW || gotH != tc.wantH {
			t.Errorf("ScaleDimensions(%d,%d,%d,%d) = %d,%d; want %d,%d",
				tc.srcW, tc.srcH, tc.targetW, tc.targetH, gotW, gotH, tc.wantW, tc.wantH)
		}
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{4000, 3000, 2048, 2048, 1536},
		{3000, 4000, 2048, 1536, 2048},
		{640, 480, 2048, 640, 480},
		{640, 480, 0, 640, 480},
	}
	for _, tc := range tests {
		gotW, gotH := utils.FitWithin(tc.w, tc.h, tc.max)
		if gotW != tc.wantW || gotH != tc.wantH {
			t.Errorf("FitWithin(%d,%d,%d) = %d,%d; want %d,%d", tc.w, tc.h, tc.max, gotW, gotH, tc.wantW, tc.wantH)
		}
	}
}

func TestUniqueName(t *testing.T) {
	taken := map[string]bool{"a.txt": true, "a (1).txt": true}
	got := utils.UniqueName("a.txt", func(s string) bool { return taken[s] })
	if got != "a (2).txt" {
		t.Errorf("UniqueName: got %q, want %q", got, "a (2).txt")
	}
	if got := utils.UniqueName("b.txt", func(s string) bool { return taken[s] }); got != "b.txt" {
		t.Errorf("UniqueName: got %q, want b.txt", got)
	}
}

func TestReadAll_Limit(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100)

	got, err := utils.ReadAll(context.Background(), bytes.NewReader(data), 100, 7)
	if err != nil {
		t.Fatalf("exact limit: %v", err)
	}
	if len(got) != 100 {
		t.Errorf("length: got %d, want 100", len(got))
	}

	_, err = utils.ReadAll(context.Background(), bytes.NewReader(data), 99, 7)
	if !errors.Is(err, apperrors.ErrInputTooLarge) {
		t.Errorf("over limit: got %v, want ErrInputTooLarge", err)
	}
}

func TestWriteSeekBuffer(t *testing.T) {
	var w utils.WriteSeekBuffer
	if _, err := w.Write([]byte("hello world")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("HELLO"))
	if _, err := w.Seek(0, io.SeekEnd); err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("!"))
	if got := string(w.Bytes()); got != "HELLO world!" {
		t.Errorf("content: got %q", got)
	}
	if _, err := w.Seek(-1, io.SeekStart); err == nil {
		t.Error("negative seek accepted")
	}
}
