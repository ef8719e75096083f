package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalService keeps the provider directories on the local file system.
// It serves tests, dry runs and the mock provider.
type LocalService struct {
	root string
	dirs Directories
}

// NewLocal creates the four directories under root if they are missing.
func NewLocal(root string, dirs Directories) (*LocalService, error) {
	if root == "" {
		return nil, &ServiceError{Op: "connect", Err: fmt.Errorf("local root is not set")}
	}
	s := &LocalService{root: root, dirs: dirs.withDefaults()}
	for _, dir := range []string{s.dirs.Send, s.dirs.SendProcessed, s.dirs.Receive, s.dirs.ReceiveProcessed} {
		if err := os.MkdirAll(s.dir(dir), 0o755); err != nil {
			return nil, &ServiceError{Op: "connect", Path: s.dir(dir), Err: err}
		}
	}
	return s, nil
}

func (s *LocalService) Root() string { return s.root }

func (s *LocalService) Directories() Directories { return s.dirs }

// dir resolves a service directory against the root.
func (s *LocalService) dir(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

func (s *LocalService) SendDir() string             { return s.dir(s.dirs.Send) }
func (s *LocalService) SendProcessedDir() string    { return s.dir(s.dirs.SendProcessed) }
func (s *LocalService) ReceiveDir() string          { return s.dir(s.dirs.Receive) }
func (s *LocalService) ReceiveProcessedDir() string { return s.dir(s.dirs.ReceiveProcessed) }

func (s *LocalService) Send(ctx context.Context, archive ArchiveFile) error {
	if err := ctx.Err(); err != nil {
		return &ServiceError{Op: "send", Path: archive.Path(), Err: err}
	}
	if err := remoteName("send", archive.FileName()); err != nil {
		return err
	}

	target := filepath.Join(s.SendDir(), archive.FileName())
	if err := copyFile(archive.Path(), target); err != nil {
		return &ServiceError{Op: "send", Path: target, Err: err}
	}
	return nil
}

func (s *LocalService) Scan(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ServiceError{Op: "scan", Path: s.ReceiveDir(), Err: err}
	}
	return scanDir(s.ReceiveDir())
}

func (s *LocalService) Receive(ctx context.Context, name, localDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ServiceError{Op: "receive", Path: name, Err: err}
	}
	if err := remoteName("receive", name); err != nil {
		return "", err
	}

	target := localTarget(localDir, name)
	if err := copyFile(filepath.Join(s.ReceiveDir(), name), target); err != nil {
		return "", &ServiceError{Op: "receive", Path: name, Err: err}
	}
	return target, nil
}

func (s *LocalService) Processed(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &ServiceError{Op: "processed", Path: name, Err: err}
	}
	if err := remoteName("processed", name); err != nil {
		return err
	}

	from := filepath.Join(s.ReceiveDir(), name)
	if err := os.Rename(from, filepath.Join(s.ReceiveProcessedDir(), name)); err != nil {
		return &ServiceError{Op: "processed", Path: from, Err: err}
	}
	return nil
}

func (s *LocalService) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &ServiceError{Op: "delete", Path: name, Err: err}
	}
	if err := remoteName("delete", name); err != nil {
		return err
	}

	target := filepath.Join(s.ReceiveDir(), name)
	if err := os.Remove(target); err != nil {
		return &ServiceError{Op: "delete", Path: target, Err: err}
	}
	return nil
}

func (s *LocalService) Close() error { return nil }

// scanDir lists regular files in name order, skipping dot files such as
// in-flight copies.
func scanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ServiceError{Op: "scan", Path: dir, Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()
	return writeLocal(to, src)
}

// writeLocal writes to a temporary name first so a reader never sees a
// partial file under the final name.
func writeLocal(to string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(to), "."+filepath.Base(to)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), to)
}
