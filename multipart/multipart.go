// Package multipart implements a streaming reader for multipart/form-data
// request bodies. The boundary scanner (boundary.go) and header
// accumulator (headers.go) are hand-rolled state machines, not a layer
// over the standard library's mime/multipart, so header size limits and
// split-chunk boundaries are handled on the framework's own terms.
package multipart

import "errors"

// Errors returned while locating or reading a multipart body. They mirror
// the failure modes of a Content-Type header inspection: absent, not a
// multipart type, or missing its boundary parameter.
var (
	ErrNotMultipart         = errors.New("multipart: request Content-Type is not multipart/*")
	ErrBoundaryNotSpecified = errors.New("multipart: no boundary parameter in Content-Type")
)

// Options configures how a Reader decides to spill a Part's body to disk.
type Options struct {
	// TempDir is the directory file-backed Parts are created in. "" uses
	// the OS default temporary directory.
	TempDir string

	// MaxHeaderBytes caps the accumulated size of a single part's header
	// block while it is being read in pieces; exceeding it aborts the
	// part with ErrHeaderTooLong. Matches the teacher's bounded-buffer
	// convention for untrusted input (see Weft.MaxHeaderBytes).
	MaxHeaderBytes int64

	// AlwaysUseFiles, if true, spills every part to a temporary file
	// regardless of its Content-Disposition, instead of only those that
	// look like file uploads.
	AlwaysUseFiles bool

	// MaxMemoryPart caps how large a part that is kept in memory (rather
	// than spilled to disk) may grow before it is spilled anyway. Zero or
	// less means such a part is not buffered at all: its body is read
	// straight from the request body as the caller reads the Part.
	MaxMemoryPart int64
}

func (o Options) maxHeaderBytes() int64 {
	if o.MaxHeaderBytes <= 0 {
		return 1024
	}

	return o.MaxHeaderBytes
}
