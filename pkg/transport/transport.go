// Package transport moves order archives to a language service provider
// and fetches delivery archives back.
//
// Every implementation works against four remote directories: orders are
// uploaded to Send and moved to SendProcessed by the provider; deliveries
// appear in Receive and are moved to ReceiveProcessed once handled.
package transport

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ArchiveFile is a local file ready to be uploaded, such as a request
// archive.
type ArchiveFile interface {
	Path() string
	FileName() string
}

// Service is one connection to a provider. Implementations are not safe
// for concurrent use.
type Service interface {
	// Send uploads the archive into the Send directory under its file name.
	Send(ctx context.Context, archive ArchiveFile) error
	// Scan lists the file names waiting in the Receive directory.
	Scan(ctx context.Context) ([]string, error)
	// Receive downloads a file from the Receive directory into localDir
	// and returns the local path.
	Receive(ctx context.Context, name, localDir string) (string, error)
	// Processed moves a received file to the ReceiveProcessed directory.
	Processed(ctx context.Context, name string) error
	// Delete removes a file from the Receive directory.
	Delete(ctx context.Context, name string) error
	Close() error
}

type Directories struct {
	Send             string `json:"send"`
	SendProcessed    string `json:"send_processed"`
	Receive          string `json:"receive"`
	ReceiveProcessed string `json:"receive_processed"`
}

func DefaultDirectories() Directories {
	return Directories{
		Send:             "To_LSP",
		SendProcessed:    "To_LSP_processed",
		Receive:          "From_LSP",
		ReceiveProcessed: "From_LSP_processed",
	}
}

// withDefaults fills empty directories from DefaultDirectories.
func (d Directories) withDefaults() Directories {
	def := DefaultDirectories()
	if d.Send == "" {
		d.Send = def.Send
	}
	if d.SendProcessed == "" {
		d.SendProcessed = def.SendProcessed
	}
	if d.Receive == "" {
		d.Receive = def.Receive
	}
	if d.ReceiveProcessed == "" {
		d.ReceiveProcessed = def.ReceiveProcessed
	}
	return d
}

const (
	ProtocolFTP   = "ftp"
	ProtocolSFTP  = "sftp"
	ProtocolLocal = "local"

	DefaultFTPPort  = 21
	DefaultSFTPPort = 22
	DefaultTimeout  = 90 * time.Second
)

type Config struct {
	Protocol    string
	Host        string
	Port        int
	Username    string
	Password    string
	Timeout     time.Duration
	Directories Directories
	// KnownHostsFile verifies SFTP host keys. Empty accepts any key.
	KnownHostsFile string
	// Root is the base directory of a local service.
	Root string
}

// New connects the service selected by cfg.Protocol.
func New(ctx context.Context, cfg Config) (Service, error) {
	switch strings.ToLower(cfg.Protocol) {
	case ProtocolFTP, "":
		return DialFTP(ctx, cfg)
	case ProtocolSFTP:
		return DialSFTP(ctx, cfg)
	case ProtocolLocal:
		return NewLocal(cfg.Root, cfg.Directories)
	default:
		return nil, &ServiceError{Op: "connect", Err: fmt.Errorf("unsupported protocol %q", cfg.Protocol)}
	}
}

// remoteName rejects names that would escape the remote directory.
func remoteName(op, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return &ServiceError{Op: op, Path: name, Err: ErrInvalidName}
	}
	return nil
}

func remotePath(dir, name string) string {
	return path.Join(dir, name)
}

func localTarget(dir, name string) string {
	return filepath.Join(dir, name)
}
