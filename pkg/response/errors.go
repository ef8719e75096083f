package response

import "fmt"

// FileError reports an unreadable or invalid delivery archive, or a missing
// entry inside one. Entry is empty when the archive itself is at fault.
type FileError struct {
	Path   string
	Entry  string
	Reason string
	Err    error
}

func (e *FileError) Error() string {
	msg := fmt.Sprintf("file %q %s", e.Path, e.Reason)
	if e.Entry != "" {
		msg = fmt.Sprintf("file %q %s (archive %q)", e.Entry, e.Reason, e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FileError) Unwrap() error { return e.Err }
