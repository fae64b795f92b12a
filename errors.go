package pagecat

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnmanagedDest is returned (wrapped in a FileWriteError) when the target
// path holds a file that pagecat did not generate and overwriting was not
// forced.
var ErrUnmanagedDest = errors.New("destination exists and was not generated by pagecat")

// DataRetrievalError reports that the content store could not be read. No
// file is written when it is returned.
type DataRetrievalError struct {
	// Op is the read that failed ("app name" or "active plans").
	Op string
	// Source names the content provider.
	Source string
	Err    error
}

func (e *DataRetrievalError) Error() string {
	return fmt.Sprintf("retrieving %s from %s: %s", e.Op, e.Source, e.Err)
}

func (e *DataRetrievalError) Unwrap() error { return e.Err }

// FileWriteError reports that the target path could not be atomically
// replaced. The previous content of Path, if any, is left in place.
type FileWriteError struct {
	Path string
	Err  error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("writing %s: %s", e.Path, e.Err)
}

func (e *FileWriteError) Unwrap() error { return e.Err }

// RenderError reports a failure executing the page template.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s: %s", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
