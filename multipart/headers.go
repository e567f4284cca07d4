package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strings"
)

var crlf2 = []byte("\r\n\r\n")

// ErrHeaderTooLong is returned when a part's header block exceeds
// Options.MaxHeaderBytes before its terminating blank line is seen.
var ErrHeaderTooLong = errors.New("multipart: part header block too long")

// headerReader accumulates a part's raw header bytes, chunk by chunk,
// until it has seen the blank line that ends them, then hands back
// whatever it over-read to the boundaryFinder so the body can pick up
// right where the headers left off.
//
// Ported from the Rust multipart crate's ReadHeaders accumulator.
type headerReader struct {
	bf          *boundaryFinder
	maxLen      int64
	accumulator []byte
}

func (hr *headerReader) readHeaders() (FieldHeaders, error) {
	pending := hr.bf.takeLeadingBytes()

	for {
		var chunk []byte
		if len(pending) > 0 {
			chunk, pending = pending, nil
		} else {
			c, err := hr.bf.pullChunk()
			if err != nil {
				if err == io.EOF {
					return FieldHeaders{}, fmt.Errorf(
						"multipart: unexpected end of stream while reading part headers: %q",
						hr.accumulator)
				}
				return FieldHeaders{}, err
			}
			chunk = c
		}

		// End of the header section is signalled by a blank line.
		if end := bytes.Index(chunk, crlf2); end >= 0 {
			headerBytes, rem := chunk[:end+4], chunk[end+4:]

			if int64(len(hr.accumulator)+len(headerBytes)) > hr.maxLen {
				return FieldHeaders{}, ErrHeaderTooLong
			}

			hr.bf.pushLeadingBytes(rem)

			if len(hr.accumulator) > 0 {
				hr.accumulator = append(hr.accumulator, headerBytes...)
				fh, err := parseFieldHeaders(hr.accumulator)
				hr.accumulator = nil
				return fh, err
			}
			return parseFieldHeaders(headerBytes)
		}

		// The blank line may straddle the accumulator and this chunk.
		if split := headerEndSplit(hr.accumulator, chunk); split >= 0 {
			if int64(len(hr.accumulator)+split) > hr.maxLen {
				return FieldHeaders{}, ErrHeaderTooLong
			}

			hr.accumulator = append(hr.accumulator, chunk[:split]...)
			hr.bf.pushLeadingBytes(chunk[split:])

			fh, err := parseFieldHeaders(hr.accumulator)
			hr.accumulator = nil
			return fh, err
		}

		if int64(len(hr.accumulator)+len(chunk)) > hr.maxLen {
			return FieldHeaders{}, ErrHeaderTooLong
		}

		hr.accumulator = append(hr.accumulator, chunk...)
	}
}

// headerEndSplit checks whether the double-CRLF ending a header block
// falls across the boundary between first (accumulated so far) and second
// (a freshly read chunk), returning the split index within second if so.
func headerEndSplit(first, second []byte) int {
	subcheck := func(tailLen int) bool {
		if len(first) < tailLen {
			return false
		}
		return isPrefixOfConcat(first[len(first)-tailLen:], second, crlf2)
	}

	switch {
	case subcheck(3):
		return 1
	case subcheck(2):
		return 2
	case subcheck(1):
		return 3
	default:
		return -1
	}
}

// parseFieldHeaders parses a raw header block (ending in "\r\n\r\n") into a
// FieldHeaders, by hand rather than through net/textproto's MIME reader,
// so a malformed Content-Disposition or Content-Type can be rejected with
// a framework-specific error instead of swallowed by the standard
// library's more permissive parser.
func parseFieldHeaders(raw []byte) (FieldHeaders, error) {
	fh := FieldHeaders{Header: textproto.MIMEHeader{}}

	body := bytes.TrimSuffix(raw, crlf2)

	var lines [][]byte
	if len(body) > 0 {
		lines = bytes.Split(body, crlf)
	}

	sawContentDisposition := false
	dupeContentType := false

	for _, line := range lines {
		name, value, ok := splitHeaderLine(line)
		if !ok {
			return FieldHeaders{}, fmt.Errorf("multipart: malformed part header line %q", line)
		}

		switch {
		case strings.EqualFold(name, "Content-Disposition"):
			if sawContentDisposition {
				return FieldHeaders{}, fmt.Errorf(
					"multipart: duplicate Content-Disposition header on field %q", fh.Name)
			}
			sawContentDisposition = true
			if err := parseContentDisposition(value, &fh); err != nil {
				return FieldHeaders{}, err
			}

		case strings.EqualFold(name, "Content-Type"):
			if fh.ContentType != "" {
				dupeContentType = true
				continue
			}
			fh.ContentType = value
		}

		fh.Header.Add(textproto.CanonicalMIMEHeaderKey(name), value)
	}

	if fh.Name == "" {
		switch {
		case fh.Filename != "":
			return FieldHeaders{}, fmt.Errorf(
				"multipart: missing Content-Disposition header on a field (filename: %s)", fh.Filename)
		case fh.ContentType != "":
			return FieldHeaders{}, fmt.Errorf(
				"multipart: missing Content-Disposition header on a field (Content-Type: %s)", fh.ContentType)
		default:
			return FieldHeaders{}, errors.New("multipart: missing Content-Disposition header on a field")
		}
	}

	if dupeContentType {
		return FieldHeaders{}, fmt.Errorf("multipart: duplicate Content-Type header on field %q", fh.Name)
	}

	return fh, nil
}

func splitHeaderLine(line []byte) (name, value string, ok bool) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return string(line[:idx]), strings.TrimSpace(string(line[idx+1:])), true
}

// parseContentDisposition parses a "form-data; name=...; filename=..."
// value by hand, including parameter values quoted to allow a literal ';'
// inside them (e.g. `x-attr="some;value"`), which mime.ParseMediaType
// does not permit. A disposition-type of "form-data" must carry a `name`
// parameter; any other disposition-type (e.g. a bare "attachment") passes
// this function without one, but parseFieldHeaders still rejects every
// part that ends up with no name, so a nameless part never reaches the
// caller.
//
// Ported from the Rust multipart crate's parse_cont_disp_val.
func parseContentDisposition(val string, fh *FieldHeaders) error {
	dispType, rest, _ := strings.Cut(val, ";")
	dispType = strings.TrimSpace(dispType)

	rem := rest
	for {
		key, value, tail, ok := parseKeyVal(rem)
		if !ok {
			break
		}
		rem = tail

		switch key {
		case "name":
			fh.Name = value
		case "filename":
			fh.Filename = value
		}
	}

	if fh.Name == "" && strings.EqualFold(dispType, "form-data") {
		return fmt.Errorf("multipart: expected name parameter in Content-Disposition %q", val)
	}

	return nil
}

func parseKeyVal(input string) (key, val, rest string, ok bool) {
	if strings.TrimSpace(input) == "" {
		return "", "", "", false
	}

	name, afterName := paramName(input)
	value, afterVal := paramVal(afterName)

	return name, value, afterVal, true
}

func paramName(input string) (name, rest string) {
	trimmed := strings.TrimLeft(input, " ;")
	eq := strings.IndexByte(trimmed, '=')
	if eq < 0 {
		return strings.TrimSpace(trimmed), ""
	}
	return strings.TrimSpace(trimmed[:eq]), trimmed[eq+1:]
}

// paramVal reads one parameter value, continuing until the opening quote
// or the terminating semicolon; a quoted value may itself contain a ';'.
func paramVal(input string) (val, rest string) {
	idx := strings.IndexAny(input, "\";")

	var token, rem string
	if idx < 0 {
		token, rem = input, ""
	} else {
		token, rem = input[:idx], input[idx+1:]
	}
	token = strings.TrimSpace(token)

	if token != "" {
		return token, strings.Trim(rem, " ;")
	}

	// token is empty: input was exhausted, or began with the delimiter
	// itself (an opening quote, or a stray semicolon). Assume a quote and
	// read up to its match.
	qidx := strings.IndexByte(rem, '"')
	if qidx < 0 {
		return strings.TrimSpace(rem), ""
	}
	return strings.TrimSpace(rem[:qidx]), strings.Trim(rem[qidx+1:], " ;")
}
