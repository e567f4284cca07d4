package multipart

import (
	"bytes"
	"io"
	"net/textproto"
	"os"
	"strings"
)

// FieldHeaders is a Part's parsed Content-Disposition and Content-Type,
// alongside whatever other headers the client sent with it.
//
// Note: Untrustworthy. These values come directly from the client and
// should never be used unsanitized on the filesystem, in a shell, or in a
// database, nor trusted as an accurate description of the body's contents.
type FieldHeaders struct {
	// Name is the form field name from the `name` Content-Disposition
	// parameter.
	Name string

	// Filename is the client-supplied filename, if the part carried one.
	Filename string

	// ContentType is the part's declared media type, "" if not given.
	ContentType string

	// Header holds every header the client sent on the part, including
	// Content-Disposition and Content-Type.
	Header textproto.MIMEHeader
}

// IsAttachment reports whether the Content-Disposition value identifies
// this part as an attachment, matching on "attachment" case-insensitively.
func (fh FieldHeaders) IsAttachment() bool {
	cd := fh.Header.Get("Content-Disposition")
	first, _, _ := strings.Cut(cd, ";")
	return strings.EqualFold(strings.TrimSpace(first), "attachment")
}

// Part is one decoded section of a multipart body: its headers and a reader
// positioned at the start of its content, already split at the boundary.
type Part struct {
	FieldHeaders

	// Size is the body length of a Part that NextPart buffered in memory or
	// copied to a temporary file. It is -1 for a Part whose body is streamed
	// straight from the request body, and stays -1 after that body is read.
	Size int64

	body   io.Reader
	file   *os.File
	buf    *bytes.Buffer
	closed bool
}

// Read implements io.Reader over the part's body.
func (p *Part) Read(b []byte) (int, error) {
	return p.body.Read(b)
}

// Close closes and removes the temporary file backing a file-backed Part;
// for any other Part it does nothing. Reading a Part to EOF does not remove
// its temporary file; only Close does.
func (p *Part) Close() error {
	if p.closed {
		return nil
	}

	p.closed = true

	if p.file != nil {
		name := p.file.Name()
		p.file.Close()
		return os.Remove(name)
	}

	return nil
}

// FileName returns the client-supplied filename, matching the
// Content-Disposition `filename` parameter, or "" if the part was not
// file-shaped.
func (p *Part) FileName() string {
	return p.Filename
}
