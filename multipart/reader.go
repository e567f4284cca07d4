package multipart

import (
	"bytes"
	"io"
	"os"
)

// Reader streams the parts of a multipart/form-data body one at a time.
// Boundary scanning (boundary.go) and header framing (headers.go) are both
// hand-rolled rather than delegated to the standard library's
// mime/multipart package, so a split boundary, an oversized header block,
// and a quoted Content-Disposition parameter are all handled the same way
// this framework handles everything else reading off the wire.
type Reader struct {
	bf   *boundaryFinder
	opts Options
}

// NewReader returns a Reader over body, splitting on boundary.
func NewReader(body io.Reader, boundary string, opts Options) *Reader {
	return &Reader{
		bf:   newBoundaryFinder(body, boundary),
		opts: opts,
	}
}

// NextPart advances to and returns the next Part of the body, or io.EOF
// once the closing boundary has been consumed.
//
// A Part whose Content-Disposition identifies it as an attachment (or
// carries a filename), or any Part at all when Options.AlwaysUseFiles is
// set, is spilled to a temporary file as it is read so the framework never
// buffers an uploaded file's full content in memory. Calling NextPart
// again before the previous Part has been fully read discards the rest of
// its body automatically; consumeBoundary drains it before looking for the
// next delimiter.
func (r *Reader) NextPart() (*Part, error) {
	more, err := r.bf.consumeBoundary()
	if err != nil {
		return nil, err
	}
	if !more {
		return nil, io.EOF
	}

	hr := &headerReader{bf: r.bf, maxLen: r.opts.maxHeaderBytes()}
	fh, err := hr.readHeaders()
	if err != nil {
		return nil, err
	}

	isFile := r.opts.AlwaysUseFiles || fh.IsAttachment() || fh.Filename != ""

	if !isFile {
		if r.opts.MaxMemoryPart <= 0 {
			return &Part{FieldHeaders: fh, Size: -1, body: r.bf}, nil
		}
		return r.readMemoryPart(fh)
	}

	return r.spillPart(fh, r.bf)
}

// readMemoryPart buffers up to Options.MaxMemoryPart bytes of a part kept
// in memory; a part that grows past that cap is spilled to a temporary
// file instead, prefixed by what was already buffered.
func (r *Reader) readMemoryPart(fh FieldHeaders) (*Part, error) {
	buf := make([]byte, r.opts.MaxMemoryPart)

	n, err := io.ReadFull(r.bf, buf)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return &Part{FieldHeaders: fh, Size: int64(n), body: bytes.NewReader(buf[:n])}, nil
	case err != nil:
		return nil, err
	}

	return r.spillPart(fh, io.MultiReader(bytes.NewReader(buf[:n]), r.bf))
}

// spillPart copies body to a temporary file and returns a file-backed
// Part over it.
func (r *Reader) spillPart(fh FieldHeaders, body io.Reader) (*Part, error) {
	f, err := os.CreateTemp(r.opts.TempDir, "weft-multipart-*")
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}

	return &Part{FieldHeaders: fh, Size: n, body: f, file: f}, nil
}
