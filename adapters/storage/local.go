// Package storage reads job inputs from and writes job outputs to the local
// filesystem.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/formats"
	"github.com/Skryldev/fileforge/utils"
)

// sniffLen is how much of a file Open reads to identify its format.
const sniffLen = 3072

// Local stores outputs on the local filesystem.
type Local struct {
	rootDir     string
	permissions os.FileMode
	formats     *formats.Registry
}

// NewLocal creates a Local storage adapter rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}
	return &Local{rootDir: dir, permissions: perm, formats: formats.Default()}, nil
}

// WithFormats returns a copy of l identifying inputs against reg.
func (l *Local) WithFormats(reg *formats.Registry) *Local {
	cp := *l
	cp.formats = reg
	return &cp
}

// Root is the directory outputs are written to.
func (l *Local) Root() string { return l.rootDir }

func (l *Local) absPath(key core.StorageKey) (string, error) {
	// Bucket maps to a subdirectory; Path is the filename.
	rel := filepath.Join(filepath.Clean("/"+key.Bucket), filepath.Clean("/"+key.Path))
	if strings.Trim(rel, "/") == "" {
		return "", apperrors.New(apperrors.KindInvalidParameters, "local.key",
			fmt.Errorf("%w: empty storage key", apperrors.ErrInvalidParameters))
	}
	return filepath.Join(l.rootDir, rel), nil
}

// ── inputs ────────────────────────────────────────────────────────────────────

// Open identifies the file at path and returns a handle the pipeline reads
// lazily.  path is used as given, not relative to the root.
func (l *Local) Open(path string) (core.FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.FileHandle{}, apperrors.New(apperrors.KindInvalidParameters, "local.open", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return core.FileHandle{}, apperrors.New(apperrors.KindInvalidParameters, "local.open.stat", err)
	}
	if info.IsDir() {
		return core.FileHandle{}, apperrors.New(apperrors.KindInvalidParameters, "local.open",
			fmt.Errorf("%w: %s is a directory", apperrors.ErrInvalidParameters, path))
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return core.FileHandle{}, apperrors.New(apperrors.KindInvalidParameters, "local.open.read", err)
	}
	return l.formats.PathHandle(path, info.Size(), head[:n])
}

// ── outputs ───────────────────────────────────────────────────────────────────

// Save writes a finished job's output under the root as name with the
// result's extension.  An existing file is never overwritten: the first
// free "name (n).ext" is used instead.  It returns the written path.
func (l *Local) Save(ctx context.Context, name string, res *core.JobResult) (string, error) {
	if res == nil {
		return "", apperrors.New(apperrors.KindInvalidParameters, "local.save", apperrors.ErrEmptyInput)
	}
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	claimed := map[string]bool{}
	for {
		candidate := utils.UniqueName(stem+res.Format, func(n string) bool {
			if claimed[n] {
				return true
			}
			_, err := os.Lstat(filepath.Join(l.rootDir, n))
			return err == nil
		})
		key := core.StorageKey{Path: candidate}
		err := l.write(ctx, key, bytes.NewReader(res.Output), ResultMeta(res), os.O_EXCL)
		if errors.Is(err, fs.ErrExist) {
			// Created by someone else since the stat; try the next suffix.
			claimed[candidate] = true
			continue
		}
		if err != nil {
			return "", err
		}
		return filepath.Join(l.rootDir, candidate), nil
	}
}

// ResultMeta is the sidecar metadata stored next to a saved output.
func ResultMeta(res *core.JobResult) map[string]string {
	return map[string]string{
		"job_id":        res.JobID,
		"format":        res.Format,
		"mime":          res.MIME,
		"category":      string(res.Category),
		"original_size": strconv.FormatInt(res.OriginalSize, 10),
		"output_size":   strconv.FormatInt(res.OutputSize, 10),
		"ratio":         strconv.FormatFloat(res.Ratio, 'f', 2, 64),
	}
}

// Put writes r under key, replacing any existing object.
func (l *Local) Put(ctx context.Context, key core.StorageKey, r io.Reader, meta map[string]string) error {
	return l.write(ctx, key, r, meta, os.O_TRUNC)
}

// write stores r under key.  mode is os.O_TRUNC to replace or os.O_EXCL to
// fail with fs.ErrExist when the object is already there.
func (l *Local) write(ctx context.Context, key core.StorageKey, r io.Reader, meta map[string]string, mode int) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.KindCancelled, "local.put", err)
	}

	path, err := l.absPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "local.put.mkdir", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|mode, l.permissions)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "local.put.open", err)
	}
	defer f.Close()

	if _, err = io.Copy(f, r); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "local.put.copy", err)
	}

	// Persist metadata as a side-car JSON file.
	if len(meta) > 0 {
		mf, err := os.OpenFile(path+".meta.json", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, l.permissions)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "local.put.meta", err)
		}
		defer mf.Close()
		enc := json.NewEncoder(mf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(meta); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "local.put.meta", err)
		}
	}
	return nil
}

func (l *Local) Get(ctx context.Context, key core.StorageKey) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "local.get", err)
	}
	path, err := l.absPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.KindInvalidParameters, "local.get", fmt.Errorf("key not found: %v", key))
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "local.get.open", err)
	}
	return f, nil
}

// Meta returns the sidecar metadata stored with key, or nil if there is none.
func (l *Local) Meta(ctx context.Context, key core.StorageKey) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "local.meta", err)
	}
	path, err := l.absPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path + ".meta.json")
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "local.meta.read", err)
	}
	var meta map[string]string
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "local.meta.decode", err)
	}
	return meta, nil
}

func (l *Local) Delete(ctx context.Context, key core.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.KindCancelled, "local.delete", err)
	}
	path, err := l.absPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.KindInternal, "local.delete", err)
	}
	_ = os.Remove(path + ".meta.json")
	return nil
}

func (l *Local) Exists(ctx context.Context, key core.StorageKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Wrap(apperrors.KindCancelled, "local.exists", err)
	}
	path, err := l.absPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.KindInternal, "local.exists.stat", err)
}
