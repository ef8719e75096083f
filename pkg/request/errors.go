package request

import "fmt"

// ArchiveError reports a request archive that could not be created.
type ArchiveError struct {
	Path string
	Op   string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }
