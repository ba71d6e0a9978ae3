// Package archive opens input documents which may be stored either as
// regular files or inside zip archives.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("input source was not found")

var errFound = errors.New("found")

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to Walk
// The file argument is the zip.File structure for file in archive which satisfies
// match condition. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Walk walks the all files in the archive which satisfy match condition,
// calling walkFn for each item. Archives having entries with path traversal
// components ("..") or absolute paths are rejected.
func Walk(archive, pattern string, walkFn WalkFunc) error {

	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, pattern) {
			if err := walkFn(archive, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Source is opened input.
type Source struct {
	io.ReadCloser
	// Name is file path, for archive entries path inside archive is
	// appended to archive path.
	Name string
}

// Open opens src which is either path to a regular file or path to zip
// archive continued by path inside it: "pages.zip/site/index.html".
func Open(src string) (*Source, error) {
	src = filepath.Clean(src)
	for head := src; ; {
		fi, err := os.Stat(head)
		if err == nil {
			inner := strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			switch {
			case !fi.Mode().IsRegular():
				return nil, fmt.Errorf("%w (%s)", ErrNotFound, src)
			case len(inner) == 0:
				f, err := os.Open(head)
				if err != nil {
					return nil, err
				}
				return &Source{ReadCloser: f, Name: head}, nil
			default:
				return openEntry(head, filepath.ToSlash(inner))
			}
		}
		parent := filepath.Dir(head)
		if parent == head {
			return nil, fmt.Errorf("%w (%s)", ErrNotFound, src)
		}
		head = parent
	}
}

// openEntry reads archive entry into memory so archive could be closed
// right away.
func openEntry(archive, name string) (*Source, error) {
	var data []byte
	err := Walk(archive, name, func(_ string, f *zip.File) error {
		if f.Name != name {
			return nil
		}
		r, err := f.Open()
		if err != nil {
			return err
		}
		defer r.Close()
		if data, err = io.ReadAll(r); err != nil {
			return err
		}
		return errFound
	})
	switch {
	case errors.Is(err, errFound):
	case err != nil:
		return nil, fmt.Errorf("unable to read archive (%s): %w", archive, err)
	default:
		return nil, fmt.Errorf("%w (%s) => (%s)", ErrNotFound, archive, name)
	}
	return &Source{
		ReadCloser: io.NopCloser(bytes.NewReader(data)),
		Name:       filepath.Join(archive, filepath.FromSlash(name)),
	}, nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
