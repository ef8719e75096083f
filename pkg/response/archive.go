package response

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ContentSource gives access to a delivery manifest and the files it lists.
type ContentSource interface {
	Info() (*Info, error)
	Content(path string) ([]byte, error)
}

// Reader is an opened delivery archive. It is not safe for concurrent use.
type Reader struct {
	path    string
	zip     *zip.ReadCloser
	entries map[string]*zip.File
	info    *Info
}

// OpenArchive opens the delivery archive at path. Close releases it.
func OpenArchive(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Reason: "does not exist or is not readable", Err: err}
	}
	f.Close()

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &FileError{Path: path, Reason: "can't open archive", Err: err}
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, file := range zr.File {
		if _, dup := entries[file.Name]; !dup {
			entries[file.Name] = file
		}
	}

	return &Reader{path: path, zip: zr, entries: entries}, nil
}

func (r *Reader) Path() string { return r.path }

// ManifestName is the manifest entry expected at the archive root:
// the archive base name with .zip replaced by .xml.
func (r *Reader) ManifestName() string {
	return strings.TrimSuffix(filepath.Base(r.path), ".zip") + ".xml"
}

// Info parses the manifest on first use and caches it.
func (r *Reader) Info() (*Info, error) {
	if r.info != nil {
		return r.info, nil
	}

	raw, err := r.Content(r.ManifestName())
	if err != nil {
		return nil, err
	}

	info, err := ParseInfo(raw)
	if err != nil {
		return nil, &FileError{Path: r.path, Entry: r.ManifestName(), Reason: "invalid manifest", Err: err}
	}
	r.info = info
	return info, nil
}

// Content reads the entry at path inside the archive.
func (r *Reader) Content(path string) ([]byte, error) {
	if r.zip == nil {
		return nil, &FileError{Path: r.path, Entry: path, Reason: "archive is closed"}
	}

	file, ok := r.entries[path]
	if !ok {
		return nil, &FileError{Path: r.path, Entry: path, Reason: "not found in archive"}
	}

	rc, err := file.Open()
	if err != nil {
		return nil, &FileError{Path: r.path, Entry: path, Reason: "can't read entry", Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &FileError{Path: r.path, Entry: path, Reason: "can't read entry", Err: err}
	}
	return data, nil
}

// Entries lists the entry names in archive order.
func (r *Reader) Entries() []string {
	if r.zip == nil {
		return nil
	}
	names := make([]string, 0, len(r.zip.File))
	for _, file := range r.zip.File {
		names = append(names, file.Name)
	}
	return names
}

func (r *Reader) Close() error {
	if r.zip == nil {
		return nil
	}
	err := r.zip.Close()
	r.zip = nil
	r.entries = nil
	if err != nil {
		return fmt.Errorf("close archive %s: %w", r.path, err)
	}
	return nil
}
