package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPService talks to the provider over SFTP with password
// authentication. A connection that fails outside an SFTP status reply is
// dropped and dialed again by the next call.
type SFTPService struct {
	ssh  *ssh.Client
	sftp *sftp.Client
	addr string
	dirs Directories

	username string
	config   *ssh.ClientConfig
	timeout  time.Duration
}

func DialSFTP(ctx context.Context, cfg Config) (*SFTPService, error) {
	port := cfg.Port
	if port == 0 {
		port = DefaultSFTPPort
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		callback, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, &ServiceError{Op: "connect", Path: cfg.KnownHostsFile, Err: err}
		}
		hostKeys = callback
	}

	s := &SFTPService{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		dirs:     cfg.Directories.withDefaults(),
		username: cfg.Username,
		timeout:  timeout,
		config: &ssh.ClientConfig{
			User:            cfg.Username,
			Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
			HostKeyCallback: hostKeys,
			Timeout:         timeout,
		},
	}
	if _, err := s.connection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SFTPService) connection(ctx context.Context) (*sftp.Client, error) {
	if s.sftp != nil {
		return s.sftp, nil
	}

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, &ServiceError{Op: "connect", Path: s.addr, Err: err}
	}

	// ClientConfig.Timeout only covers ssh.Dial.
	conn.SetDeadline(time.Now().Add(s.timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, s.addr, s.config)
	if err != nil {
		conn.Close()
		return nil, &ServiceError{Op: "login", Path: s.addr, Err: fmt.Errorf("user %s: %w", s.username, err)}
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, &ServiceError{Op: "connect", Path: s.addr, Err: err}
	}
	conn.SetDeadline(time.Time{})

	s.ssh = client
	s.sftp = sftpClient
	return sftpClient, nil
}

// fail wraps err and forgets the connection unless the server answered with
// a status.
func (s *SFTPService) fail(op, path string, err error) error {
	var status *sftp.StatusError
	answered := errors.As(err, &status) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission)
	if !answered {
		s.disconnect()
	}
	return &ServiceError{Op: op, Path: path, Err: err}
}

func (s *SFTPService) disconnect() error {
	if s.sftp == nil {
		return nil
	}
	sftpErr := s.sftp.Close()
	sshErr := s.ssh.Close()
	s.sftp, s.ssh = nil, nil
	return errors.Join(sftpErr, sshErr)
}

func (s *SFTPService) Send(ctx context.Context, archive ArchiveFile) error {
	if err := ctx.Err(); err != nil {
		return &ServiceError{Op: "send", Path: archive.Path(), Err: err}
	}
	if err := remoteName("send", archive.FileName()); err != nil {
		return err
	}

	src, err := os.Open(archive.Path())
	if err != nil {
		return &ServiceError{Op: "send", Path: archive.Path(), Err: err}
	}
	defer src.Close()

	client, err := s.connection(ctx)
	if err != nil {
		return err
	}
	target := remotePath(s.dirs.Send, archive.FileName())
	dst, err := client.Create(target)
	if err != nil {
		return s.fail("send", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return s.fail("send", target, err)
	}
	if err := dst.Close(); err != nil {
		return s.fail("send", target, err)
	}
	return nil
}

func (s *SFTPService) Scan(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ServiceError{Op: "scan", Path: s.dirs.Receive, Err: err}
	}

	client, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	infos, err := client.ReadDir(s.dirs.Receive)
	if err != nil {
		return nil, s.fail("scan", s.dirs.Receive, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Mode().IsRegular() {
			names = append(names, info.Name())
		}
	}
	return names, nil
}

func (s *SFTPService) Receive(ctx context.Context, name, localDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ServiceError{Op: "receive", Path: name, Err: err}
	}
	if err := remoteName("receive", name); err != nil {
		return "", err
	}

	client, err := s.connection(ctx)
	if err != nil {
		return "", err
	}
	source := remotePath(s.dirs.Receive, name)
	src, err := client.Open(source)
	if err != nil {
		return "", s.fail("receive", source, err)
	}
	defer src.Close()

	target := localTarget(localDir, name)
	if err := writeLocal(target, src); err != nil {
		return "", s.fail("receive", source, err)
	}
	return target, nil
}

func (s *SFTPService) Processed(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &ServiceError{Op: "processed", Path: name, Err: err}
	}
	if err := remoteName("processed", name); err != nil {
		return err
	}

	client, err := s.connection(ctx)
	if err != nil {
		return err
	}
	from := remotePath(s.dirs.Receive, name)
	if err := client.Rename(from, remotePath(s.dirs.ReceiveProcessed, name)); err != nil {
		return s.fail("processed", from, err)
	}
	return nil
}

func (s *SFTPService) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &ServiceError{Op: "delete", Path: name, Err: err}
	}
	if err := remoteName("delete", name); err != nil {
		return err
	}

	client, err := s.connection(ctx)
	if err != nil {
		return err
	}
	target := remotePath(s.dirs.Receive, name)
	if err := client.Remove(target); err != nil {
		return s.fail("delete", target, err)
	}
	return nil
}

func (s *SFTPService) Close() error {
	if err := s.disconnect(); err != nil {
		return &ServiceError{Op: "close", Path: s.addr, Err: err}
	}
	return nil
}
