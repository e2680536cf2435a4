// Package payload turns user text and file references into the portable
// message list sent to a provider.
package payload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileRef refers to a file either by local path or by an already encoded
// inline payload. The zero value refers to nothing.
type FileRef struct {
	path     string
	filename string
	data     string
	inline   bool
}

// Path refers to a file on the local filesystem.
func Path(p string) FileRef {
	return FileRef{path: p}
}

// Inline refers to a file already held in memory as base64 (standard encoding).
func Inline(filename, base64Data string) FileRef {
	return FileRef{filename: filename, data: base64Data, inline: true}
}

// IsZero reports whether the reference refers to nothing.
func (r FileRef) IsZero() bool {
	return !r.inline && r.path == ""
}

// IsInline reports whether the reference carries its own payload.
func (r FileRef) IsInline() bool {
	return r.inline
}

// Name returns the filename the reference resolves to.
func (r FileRef) Name() string {
	if r.inline {
		return r.filename
	}
	return filepath.Base(r.path)
}

func (r FileRef) String() string {
	if r.inline {
		return fmt.Sprintf("inline:%s", r.filename)
	}
	return r.path
}

// ResolvedFile is a file ready to be attached or extracted.
type ResolvedFile struct {
	Filename string
	Data     string // base64, standard encoding
}

// Resolve reads a path reference and base64-encodes it, or passes an inline
// reference through.
func Resolve(ref FileRef) (ResolvedFile, error) {
	if ref.inline {
		if ref.filename == "" {
			return ResolvedFile{}, fmt.Errorf("%w: inline file has no filename", ErrInvalidInput)
		}
		return ResolvedFile{Filename: ref.filename, Data: ref.data}, nil
	}
	if ref.path == "" {
		return ResolvedFile{}, fmt.Errorf("%w: empty file reference", ErrInvalidInput)
	}

	info, err := os.Stat(ref.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ResolvedFile{}, fmt.Errorf("%w: %s", ErrNotFound, ref.path)
		}
		return ResolvedFile{}, fmt.Errorf("stat %s: %w", ref.path, err)
	}
	if !info.Mode().IsRegular() {
		return ResolvedFile{}, fmt.Errorf("%w: path is not a file: %s", ErrInvalidInput, ref.path)
	}

	raw, err := os.ReadFile(ref.path)
	if err != nil {
		return ResolvedFile{}, fmt.Errorf("read %s: %w", ref.path, err)
	}

	return ResolvedFile{
		Filename: filepath.Base(ref.path),
		Data:     base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// ResolveAll resolves refs in order. Zero references are skipped.
func ResolveAll(refs []FileRef) ([]ResolvedFile, error) {
	files := make([]ResolvedFile, 0, len(refs))
	for _, ref := range refs {
		if ref.IsZero() {
			continue
		}
		f, err := Resolve(ref)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// countRefs returns the number of non-zero references.
func countRefs(refs []FileRef) int {
	n := 0
	for _, ref := range refs {
		if !ref.IsZero() {
			n++
		}
	}
	return n
}
