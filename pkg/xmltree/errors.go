package xmltree

import "fmt"

// EncodingError reports a value that cannot be projected to XML. Path is the
// slash-separated element path where encoding stopped.
type EncodingError struct {
	Path   string
	Kind   Kind
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("xml encoding: %s (%s)", e.Reason, e.Kind)
	}
	return fmt.Sprintf("xml encoding %s: %s (%s)", e.Path, e.Reason, e.Kind)
}
