package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"
	"strconv"

	"github.com/jlaffaye/ftp"
)

// ftpConn is the part of *ftp.ServerConn the service uses.
type ftpConn interface {
	Stor(path string, r io.Reader) error
	List(path string) ([]*ftp.Entry, error)
	Retrieve(path string) (io.ReadCloser, error)
	Rename(from, to string) error
	Delete(path string) error
	Quit() error
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retrieve(path string) (io.ReadCloser, error) {
	resp, err := c.Retr(path)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// FTPService talks to the provider over FTP in passive mode. Transfers are
// binary. A connection that fails below the FTP protocol level is dropped
// and dialed again by the next call.
type FTPService struct {
	conn ftpConn
	dial func(ctx context.Context) (ftpConn, error)
	addr string
	dirs Directories
}

func DialFTP(ctx context.Context, cfg Config) (*FTPService, error) {
	port := cfg.Port
	if port == 0 {
		port = DefaultFTPPort
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	dial := func(ctx context.Context) (ftpConn, error) {
		conn, err := ftp.Dial(addr,
			ftp.DialWithContext(ctx),
			ftp.DialWithTimeout(timeout),
			ftp.DialWithDisabledEPSV(true),
		)
		if err != nil {
			return nil, &ServiceError{Op: "connect", Path: addr, Err: err}
		}
		if err := conn.Login(cfg.Username, cfg.Password); err != nil {
			conn.Quit()
			return nil, &ServiceError{Op: "login", Path: addr, Err: fmt.Errorf("user %s: %w", cfg.Username, err)}
		}
		return serverConn{conn}, nil
	}

	s := newFTPService(addr, cfg.Directories, dial)
	if _, err := s.connection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newFTPService(addr string, dirs Directories, dial func(ctx context.Context) (ftpConn, error)) *FTPService {
	return &FTPService{dial: dial, addr: addr, dirs: dirs.withDefaults()}
}

func (s *FTPService) connection(ctx context.Context) (ftpConn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

// fail wraps err and forgets the connection when err did not come from an
// FTP reply. A 421 reply means the server is closing the connection.
func (s *FTPService) fail(op, path string, err error) error {
	var reply *textproto.Error
	if !errors.As(err, &reply) || reply.Code == ftp.StatusNotAvailable {
		if s.conn != nil {
			s.conn.Quit()
			s.conn = nil
		}
	}
	return &ServiceError{Op: op, Path: path, Err: err}
}

func (s *FTPService) Send(ctx context.Context, archive ArchiveFile) error {
	if err := ctx.Err(); err != nil {
		return &ServiceError{Op: "send", Path: archive.Path(), Err: err}
	}
	if err := remoteName("send", archive.FileName()); err != nil {
		return err
	}

	f, err := os.Open(archive.Path())
	if err != nil {
		return &ServiceError{Op: "send", Path: archive.Path(), Err: err}
	}
	defer f.Close()

	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}
	target := remotePath(s.dirs.Send, archive.FileName())
	if err := conn.Stor(target, f); err != nil {
		return s.fail("send", target, err)
	}
	return nil
}

func (s *FTPService) Scan(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ServiceError{Op: "scan", Path: s.dirs.Receive, Err: err}
	}

	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := conn.List(s.dirs.Receive)
	if err != nil {
		return nil, s.fail("scan", s.dirs.Receive, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type == ftp.EntryTypeFile {
			names = append(names, entry.Name)
		}
	}
	return names, nil
}

func (s *FTPService) Receive(ctx context.Context, name, localDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ServiceError{Op: "receive", Path: name, Err: err}
	}
	if err := remoteName("receive", name); err != nil {
		return "", err
	}

	conn, err := s.connection(ctx)
	if err != nil {
		return "", err
	}
	source := remotePath(s.dirs.Receive, name)
	resp, err := conn.Retrieve(source)
	if err != nil {
		return "", s.fail("receive", source, err)
	}

	target := localTarget(localDir, name)
	err = writeLocal(target, resp)
	if closeErr := resp.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return "", s.fail("receive", source, err)
	}
	return target, nil
}

func (s *FTPService) Processed(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &ServiceError{Op: "processed", Path: name, Err: err}
	}
	if err := remoteName("processed", name); err != nil {
		return err
	}

	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}
	from := remotePath(s.dirs.Receive, name)
	if err := conn.Rename(from, remotePath(s.dirs.ReceiveProcessed, name)); err != nil {
		return s.fail("processed", from, err)
	}
	return nil
}

func (s *FTPService) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &ServiceError{Op: "delete", Path: name, Err: err}
	}
	if err := remoteName("delete", name); err != nil {
		return err
	}

	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}
	target := remotePath(s.dirs.Receive, name)
	if err := conn.Delete(target); err != nil {
		return s.fail("delete", target, err)
	}
	return nil
}

func (s *FTPService) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Quit()
	s.conn = nil
	if err != nil {
		return &ServiceError{Op: "close", Path: s.addr, Err: err}
	}
	return nil
}
