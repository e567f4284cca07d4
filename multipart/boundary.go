package multipart

import (
	"bytes"
	"fmt"
	"io"
)

// boundaryState is the tagged union driving boundaryFinder. Each value
// names what boundaryFinder is doing with the bytes it is currently
// holding, mirroring the state machine in the Rust multipart crate this
// reader is ported from.
type boundaryState int

const (
	// watching means no candidate boundary bytes are in hand; the next
	// step is to pull a fresh chunk from the stream.
	watching boundaryState = iota
	// partial means a chunk ended with what might be the start of the
	// boundary delimiter; one more chunk is needed to confirm it.
	partial
	// found means a complete boundary delimiter sits in a single chunk,
	// not yet confirmed as an end-of-stream marker.
	found
	// split means the boundary delimiter straddled the split between two
	// consecutive chunks.
	split
	// remainder means a chunk has bytes left over after a boundary (or a
	// header block) was consumed from its front.
	remainder
	// end means the terminating boundary has been seen; no more parts
	// follow.
	end
)

var crlf = []byte("\r\n")

// searchResult records where a candidate boundary begins within a chunk,
// and whether a preceding CRLF was folded into that span.
type searchResult struct {
	idx      int
	inclCRLF bool
}

func (r searchResult) boundaryStart() int {
	if r.inclCRLF {
		return r.idx + 2
	}
	return r.idx
}

// boundaryFinder turns a raw body stream into a sequence of chunks that
// stop just short of the next "--boundary" delimiter line, then lets the
// caller confirm whether that delimiter opens another part or terminates
// the body.
//
// Ported from the BoundaryFinder state machine in the Rust multipart
// crate's boundary scanner: the async poll loop there becomes a plain
// blocking loop here, since Go readers pull rather than push.
type boundaryFinder struct {
	src      io.Reader
	boundary []byte // "--" followed by the Content-Type boundary token

	state boundaryState

	partialChunk []byte
	partialRes   searchResult
	foundBnd     []byte
	splitFirst   []byte
	splitSecond  []byte
	remainderBuf []byte

	outstanding []byte // body bytes handed out by bodyChunk, not yet Read
	pendingErr  error
	readBuf     []byte
}

func newBoundaryFinder(src io.Reader, boundary string) *boundaryFinder {
	return &boundaryFinder{
		src:      src,
		boundary: append([]byte("--"), boundary...),
		state:    watching,
		readBuf:  make([]byte, 32*1024),
	}
}

// pullChunk reads one raw chunk from the underlying stream, following
// bufio's convention of never returning a zero-length chunk alongside a
// nil error.
func (bf *boundaryFinder) pullChunk() ([]byte, error) {
	if bf.pendingErr != nil {
		err := bf.pendingErr
		bf.pendingErr = nil
		return nil, err
	}

	for {
		n, err := bf.src.Read(bf.readBuf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, bf.readBuf[:n])
			if err != nil {
				bf.pendingErr = err
			}
			return chunk, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// takeLeadingBytes returns and clears bytes already pulled from the stream
// but not yet consumed past a boundary line, so a header reader can start
// from them before pulling fresh chunks of its own.
func (bf *boundaryFinder) takeLeadingBytes() []byte {
	if bf.state == remainder {
		b := bf.remainderBuf
		bf.remainderBuf = nil
		bf.state = watching
		return b
	}
	return nil
}

// pushLeadingBytes returns bytes read past a header block's terminating
// blank line to the stream, so the next bodyChunk call sees them.
func (bf *boundaryFinder) pushLeadingBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	bf.state = remainder
	bf.remainderBuf = b
}

// Read implements io.Reader over the body bytes of the part currently in
// progress, returning io.EOF once the next boundary delimiter is reached
// (without consuming it; that is consumeBoundary's job).
func (bf *boundaryFinder) Read(p []byte) (int, error) {
	if len(bf.outstanding) == 0 {
		chunk, err := bf.bodyChunk()
		if err != nil {
			return 0, err
		}
		bf.outstanding = chunk
	}

	n := copy(p, bf.outstanding)
	bf.outstanding = bf.outstanding[n:]
	return n, nil
}

// bodyChunk returns the next slice of body bytes before the boundary, or
// nil, io.EOF once the boundary (or end of stream) has been reached.
func (bf *boundaryFinder) bodyChunk() ([]byte, error) {
	for {
		switch bf.state {
		case found, split, end:
			return nil, io.EOF
		}

		st := bf.state
		bf.state = watching

		switch st {
		case watching:
			chunk, err := bf.pullChunk()
			if err != nil {
				if err == io.EOF {
					bf.state = end
					return nil, io.EOF
				}
				return nil, err
			}
			if ret := bf.checkChunk(chunk); ret != nil {
				return ret, nil
			}

		case remainder:
			rem := bf.remainderBuf
			bf.remainderBuf = nil
			if ret := bf.checkChunk(rem); ret != nil {
				return ret, nil
			}

		case partial:
			ret, err := bf.handlePartial()
			if ret != nil || err != nil {
				return ret, err
			}

		default:
			return nil, fmt.Errorf("multipart: invalid boundary state %d", st)
		}
	}
}

// checkChunk looks for the boundary delimiter in chunk, updating state to
// partial or found as needed. It returns a non-nil slice of body bytes to
// emit immediately, or nil if the caller should loop back to the top of
// bodyChunk and re-check state.
func (bf *boundaryFinder) checkChunk(chunk []byte) []byte {
	if len(chunk) == 0 {
		return nil
	}

	res, ok := bf.findBoundary(chunk)
	if !ok {
		return chunk
	}

	size := bf.boundarySize(res.inclCRLF)
	if len(chunk) < res.idx+size {
		bf.state = partial
		bf.partialChunk = chunk
		bf.partialRes = res
		return nil
	}

	ret := chunk[:res.idx]
	bnd := chunk[res.idx:]
	if res.inclCRLF {
		bnd = bnd[2:]
	}

	bf.state = found
	bf.foundBnd = bnd

	if len(ret) > 0 {
		return ret
	}
	return nil
}

func (bf *boundaryFinder) handlePartial() ([]byte, error) {
	partialChunk := bf.partialChunk
	res := bf.partialRes
	bf.partialChunk = nil

	chunk, err := bf.pullChunk()
	if err != nil {
		if err == io.EOF {
			bf.state = end
			return nil, fmt.Errorf(
				"multipart: unable to verify boundary; expected %q, found %q",
				bf.boundary, partialChunk)
		}
		return nil, err
	}

	if !bf.isBoundaryPrefix(partialChunk[res.idx:], chunk, res) {
		bf.state = remainder
		bf.remainderBuf = chunk
		return partialChunk, nil
	}

	neededLen := bf.boundarySize(res.inclCRLF) - len(partialChunk)
	if neededLen < 0 {
		neededLen = 0
	}
	if neededLen > len(chunk) {
		return nil, fmt.Errorf(
			"multipart: needed %d more bytes to verify boundary, got %d",
			neededLen, len(chunk))
	}

	bndStart := res.boundaryStart()

	isBoundary := bndStart > len(partialChunk) && bf.checkBoundary(chunk[bndStart-len(partialChunk):])
	if !isBoundary && bndStart <= len(partialChunk) {
		isBoundary = bf.checkBoundarySplit(partialChunk[bndStart:], chunk)
	}

	if !isBoundary {
		bf.state = remainder
		bf.remainderBuf = chunk
		return partialChunk, nil
	}

	var ret []byte

	switch {
	case res.inclCRLF && len(partialChunk) < bndStart:
		// partialChunk ended with a lone CR; chunk starts with LF--boundary.
		bf.state = found
		bf.foundBnd = chunk[bndStart-len(partialChunk):]
		ret = partialChunk[:res.idx]

	case res.inclCRLF:
		ret = partialChunk[:res.idx]
		first := partialChunk[res.idx+2:]
		bf.state = split
		bf.splitFirst = first
		bf.splitSecond = chunk

	default:
		ret = partialChunk[:res.idx]
		first := partialChunk[res.idx:]
		bf.state = split
		bf.splitFirst = first
		bf.splitSecond = chunk
	}

	if len(ret) > 0 {
		return ret, nil
	}
	return nil, io.EOF
}

func (bf *boundaryFinder) findBoundary(chunk []byte) (searchResult, bool) {
	if idx := bytes.Index(chunk, bf.boundary); idx >= 0 {
		return checkCRLF(chunk, idx), true
	}
	return bf.partialFindBoundary(chunk)
}

// partialFindBoundary looks for a tail of chunk that could be the start of
// the boundary delimiter split across a chunk boundary, including the two
// CRLF edge cases the spec calls out explicitly.
func (bf *boundaryFinder) partialFindBoundary(chunk []byte) (searchResult, bool) {
	if idx, ok := partialRMatch(chunk, bf.boundary); ok {
		return checkCRLF(chunk, idx), true
	}

	n := len(chunk)
	if n >= 2 && bytes.Equal(chunk[n-2:], crlf) {
		return searchResult{idx: n - 2, inclCRLF: true}, true
	}
	if n >= 1 && chunk[n-1] == '\r' {
		return searchResult{idx: n - 1, inclCRLF: true}, true
	}

	return searchResult{}, false
}

func (bf *boundaryFinder) isBoundaryPrefix(first, second []byte, res searchResult) bool {
	if res.inclCRLF {
		return isPrefixOfConcat(first, second, bf.crlfBoundary())
	}
	return isPrefixOfConcat(first, second, bf.boundary)
}

func (bf *boundaryFinder) crlfBoundary() []byte {
	out := make([]byte, 0, len(crlf)+len(bf.boundary))
	out = append(out, crlf...)
	return append(out, bf.boundary...)
}

func (bf *boundaryFinder) checkBoundary(b []byte) bool {
	if len(b) >= 2 && bytes.HasPrefix(b[2:], bf.boundary) {
		return true
	}
	return bytes.HasPrefix(b, bf.boundary)
}

func (bf *boundaryFinder) checkBoundarySplit(first, second []byte) bool {
	checkLen := len(bf.boundary) - len(first)
	if checkLen < 0 {
		checkLen = 0
	}
	if len(second) < checkLen {
		return false
	}
	return isPrefixOfConcat(first, second[:checkLen], bf.boundary)
}

// boundarySize is how many bytes are needed to verify a boundary,
// including the leading CRLF (if inclCRLF) and the trailing CRLF or "--"
// that follows every delimiter line.
func (bf *boundaryFinder) boundarySize(inclCRLF bool) int {
	if inclCRLF {
		return len(bf.boundary) + 4
	}
	return len(bf.boundary) + 2
}

// consumeBoundary drains any remaining body bytes up to the boundary
// line, then reports whether the stream continues with another part
// (true) or has reached its terminal "--" marker (false).
func (bf *boundaryFinder) consumeBoundary() (bool, error) {
	bf.outstanding = nil
	for {
		_, err := bf.bodyChunk()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false, err
		}
	}

	st := bf.state
	bf.state = watching

	switch st {
	case found:
		bnd := bf.foundBnd
		bf.foundBnd = nil
		return bf.confirmBoundary(bnd)
	case split:
		first, second := bf.splitFirst, bf.splitSecond
		bf.splitFirst, bf.splitSecond = nil, nil
		return bf.confirmBoundarySplit(first, second)
	case end:
		bf.state = end
		return false, nil
	default:
		return false, fmt.Errorf("multipart: invalid boundary state %d", st)
	}
}

func (bf *boundaryFinder) confirmBoundary(boundary []byte) (bool, error) {
	size := bf.boundarySize(false)
	if len(boundary) < size {
		return false, fmt.Errorf("multipart: boundary sequence too short: %q", boundary)
	}

	head, rem := boundary[:size], boundary[size:]

	if len(rem) > 0 {
		bf.state = remainder
		bf.remainderBuf = rem
	} else {
		bf.state = watching
	}

	isEnd := checkLastTwo(head)
	if isEnd {
		bf.state = end
	}

	return !isEnd, nil
}

func (bf *boundaryFinder) confirmBoundarySplit(first, second []byte) (bool, error) {
	checkLen := bf.boundarySize(false) - len(first)
	if checkLen < 0 {
		checkLen = 0
	}
	if len(second) < checkLen {
		return false, fmt.Errorf(
			"multipart: split boundary sequence too short: (%q, %q)", first, second)
	}

	secondHead, rem := second[:checkLen], second[checkLen:]

	bf.state = remainder
	bf.remainderBuf = rem

	isEnd := checkLastTwo(secondHead)
	if isEnd {
		bf.state = end
	}

	return !isEnd, nil
}

func checkCRLF(chunk []byte, idx int) searchResult {
	if idx >= 2 && bytes.Equal(chunk[idx-2:idx], crlf) {
		return searchResult{idx: idx - 2, inclCRLF: true}
	}
	return searchResult{idx: idx}
}

func checkLastTwo(boundary []byte) bool {
	return bytes.HasSuffix(boundary, []byte("--"))
}

// partialRMatch reports whether a tail of haystack is a prefix of needle,
// and if so, where that tail begins.
func partialRMatch(haystack, needle []byte) (int, bool) {
	if len(haystack) == 0 || len(needle) == 0 {
		return 0, false
	}

	trimStart := 0
	if len(haystack) > len(needle)-1 {
		trimStart = len(haystack) - (len(needle) - 1)
	}

	idx := bytes.IndexByte(haystack[trimStart:], needle[0])
	if idx < 0 {
		return 0, false
	}
	idx += trimStart

	if bytes.HasPrefix(needle, haystack[idx:]) {
		return idx, true
	}
	return 0, false
}

// isPrefixOfConcat reports whether prefix matches the concatenation of a
// and b over prefix's length, without allocating that concatenation.
func isPrefixOfConcat(a, b, prefix []byte) bool {
	for i := 0; i < len(prefix); i++ {
		var c byte
		switch {
		case i < len(a):
			c = a[i]
		case i-len(a) < len(b):
			c = b[i-len(a)]
		default:
			return false
		}
		if c != prefix[i] {
			return false
		}
	}
	return true
}
