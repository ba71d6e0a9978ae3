package archive

import (
	"archive/zip"
	"errors"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func createZip(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), name)
	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer zipFile.Close()

	w := zip.NewWriter(zipFile)
	for _, name := range slices.Sorted(maps.Keys(files)) {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create file %s in zip: %v", name, err)
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			t.Fatalf("Failed to write content for %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return zipPath
}

func TestWalk(t *testing.T) {
	zipPath := createZip(t, "test.zip", map[string]string{
		"site/index.html": "<p>index</p>",
		"site/ads.html":   "<p>ads</p>",
		"rules.css":       "p { color: red }",
	})

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"prefix", "site/", []string{"site/ads.html", "site/index.html"}},
		{"exact", "rules.css", []string{"rules.css"}},
		{"no match", "missing/", nil},
		{"everything", "", []string{"rules.css", "site/ads.html", "site/index.html"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var visited []string
			err := Walk(zipPath, tt.pattern, func(archive string, file *zip.File) error {
				if archive != zipPath {
					t.Errorf("archive = %s, want %s", archive, zipPath)
				}
				visited = append(visited, file.Name)
				return nil
			})
			if err != nil {
				t.Fatalf("Walk() error = %v", err)
			}
			if !slices.Equal(visited, tt.want) {
				t.Errorf("visited = %v, want %v", visited, tt.want)
			}
		})
	}

	t.Run("walkFn returns error", func(t *testing.T) {
		stop := errors.New("stop")
		count := 0
		err := Walk(zipPath, "", func(string, *zip.File) error {
			count++
			return stop
		})
		if !errors.Is(err, stop) {
			t.Errorf("Walk() error = %v, want %v", err, stop)
		}
		if count != 1 {
			t.Errorf("walkFn called %d times, want 1", count)
		}
	})
}

func TestWalk_Invalid(t *testing.T) {
	if err := Walk(filepath.Join(t.TempDir(), "missing.zip"), "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("Expected error for nonexistent archive")
	}

	notZip := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(notZip, []byte("<p>not a zip</p>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Walk(notZip, "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("Expected error for invalid archive")
	}

	unsafe := createZip(t, "unsafe.zip", map[string]string{"../evil.html": "x"})
	if err := Walk(unsafe, "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("Expected error for archive with path traversal")
	}
}

func readSource(t *testing.T, src string) (string, string) {
	t.Helper()
	s, err := Open(src)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", src, err)
	}
	defer s.Close()
	data, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return s.Name, string(data)
}

func TestOpen(t *testing.T) {
	zipPath := createZip(t, "pages.zip", map[string]string{
		"site/index.html": "<p>index</p>",
		"site/index.htm":  "<p>short</p>",
	})
	page := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(page, []byte("<p>page</p>"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("regular file", func(t *testing.T) {
		name, data := readSource(t, page)
		if name != page || data != "<p>page</p>" {
			t.Errorf("Open() = %q, %q", name, data)
		}
	})

	t.Run("archive entry", func(t *testing.T) {
		src := filepath.Join(zipPath, "site", "index.html")
		name, data := readSource(t, src)
		if name != src || data != "<p>index</p>" {
			t.Errorf("Open() = %q, %q", name, data)
		}
	})

	t.Run("not found", func(t *testing.T) {
		for _, src := range []string{
			filepath.Join(zipPath, "site", "missing.html"),
			filepath.Join(zipPath, "site"),
			filepath.Join(filepath.Dir(page), "missing.html"),
			filepath.Dir(page),
		} {
			if _, err := Open(src); !errors.Is(err, ErrNotFound) {
				t.Errorf("Open(%q) error = %v, want %v", src, err, ErrNotFound)
			}
		}
	})

	t.Run("path inside regular file", func(t *testing.T) {
		_, err := Open(filepath.Join(page, "inner.html"))
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Open() error = %v, want archive error", err)
		}
	})
}
