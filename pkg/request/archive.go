package request

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const OrderEntryName = "order.xml"

// Archive is a request zip on disk. It owns the file: Close removes it.
type Archive struct {
	path   string
	closed bool
}

func (a *Archive) Path() string { return a.path }

// FileName is the base name of the archive, {orderName}.zip.
func (a *Archive) FileName() string { return filepath.Base(a.path) }

// Close deletes the archive from disk. Calling it again is a no-op.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &ArchiveError{Path: a.path, Op: "remove", Err: err}
	}
	return nil
}

// BuildArchive writes {orderName}.zip into dir with the encoded order at the
// root and every attachment under Input/. On failure nothing is left behind.
func BuildArchive(req *Request, dir string) (*Archive, error) {
	return BuildArchiveWith(XMLEncoder{}, req, dir)
}

func BuildArchiveWith(encoder Encoder, req *Request, dir string) (*Archive, error) {
	path := filepath.Join(dir, req.Order().Name()+".zip")

	info, err := os.Stat(dir)
	if err != nil {
		return nil, &ArchiveError{Path: path, Op: "stat target directory", Err: err}
	}
	if !info.IsDir() {
		return nil, &ArchiveError{Path: path, Op: "stat target directory", Err: fmt.Errorf("%s is not a directory", dir)}
	}

	orderXML, err := encoder.Encode(req.Order())
	if err != nil {
		return nil, &ArchiveError{Path: path, Op: "encode order", Err: err}
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, &ArchiveError{Path: path, Op: "create", Err: err}
	}
	defer os.Remove(f.Name())

	if err := writeArchive(f, orderXML, req); err != nil {
		f.Close()
		return nil, &ArchiveError{Path: path, Op: "write", Err: err}
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return nil, &ArchiveError{Path: path, Op: "chmod", Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &ArchiveError{Path: path, Op: "close", Err: err}
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return nil, &ArchiveError{Path: path, Op: "rename", Err: err}
	}

	return &Archive{path: path}, nil
}

func writeArchive(w io.Writer, orderXML []byte, req *Request) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]bool)

	create := func(name string) (io.Writer, error) {
		if seen[name] {
			return nil, fmt.Errorf("duplicate archive entry %q", name)
		}
		seen[name] = true
		return zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	}

	entry, err := create(OrderEntryName)
	if err != nil {
		return err
	}
	if _, err := entry.Write(orderXML); err != nil {
		return err
	}

	for _, file := range req.Files() {
		entry, err := create(FileReference(file.Name))
		if err != nil {
			return err
		}
		if err := copyFile(entry, file.Path); err != nil {
			return err
		}
	}

	for _, content := range req.Contents() {
		entry, err := create(FileReference(content.Name))
		if err != nil {
			return err
		}
		if _, err := entry.Write(content.Content); err != nil {
			return err
		}
	}

	return zw.Close()
}

func copyFile(w io.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(w, src)
	return err
}
