package weft

import "strings"

// PathParams is an insertion-ordered map of named path parameters captured
// while matching a request against the router's filter tree.
//
// At most one entry may be a wildcard capture (the value of a `<*name>` or
// `<**name>` segment), and if present it is always the last inserted entry.
type PathParams struct {
	names  []string
	values []string
}

// newPathParams returns a pointer of a new, empty instance of the
// `PathParams`.
func newPathParams() *PathParams {
	return &PathParams{}
}

// reset clears all entries in the pp so it can be reused for the next
// request.
func (pp *PathParams) reset() {
	pp.names = pp.names[:0]
	pp.values = pp.values[:0]
}

// Set inserts or overwrites the value for the name. A later Set for a name
// already present overwrites its value in place, preserving insertion order.
func (pp *PathParams) Set(name, value string) {
	for i, n := range pp.names {
		if n == name {
			pp.values[i] = value
			return
		}
	}

	pp.names = append(pp.names, name)
	pp.values = append(pp.values, value)
}

// Get returns the value captured for the name, and whether it was captured.
func (pp *PathParams) Get(name string) (string, bool) {
	for i, n := range pp.names {
		if n == name {
			return pp.values[i], true
		}
	}

	return "", false
}

// Value returns the value captured for the name, or "" if it was not
// captured.
func (pp *PathParams) Value(name string) string {
	v, _ := pp.Get(name)
	return v
}

// Names returns the names captured, in insertion order.
func (pp *PathParams) Names() []string {
	return pp.names
}

// Len returns the number of parameters captured.
func (pp *PathParams) Len() int {
	return len(pp.names)
}

// copyFrom replaces the pp's entries with a copy of src's, preserving
// insertion order. Used to lift captures out of a pooled PathState into the
// Request's own, longer-lived PathParams.
func (pp *PathParams) copyFrom(src *PathParams) {
	pp.reset()
	pp.names = append(pp.names, src.names...)
	pp.values = append(pp.values, src.values...)
}

// pathCursor is a two-dimensional pointer into the remaining, unconsumed
// input of a `PathState`: row selects the path component and col a byte
// offset within it. Every segment consumes whole components, so advance
// resets col to 0 and nothing else moves it.
type pathCursor struct {
	row int
	col int
}

// PathState is the traversal state threaded through one request's router
// match attempt. It is created once per request, mutated in place by the
// filters as they descend the filter tree, and consumed by the pipeline once
// a goal is found.
type PathState struct {
	// Parts is the decoded, slash-trimmed sequence of URL path components.
	Parts []string

	cursor pathCursor

	// Params accumulates the named captures made while matching.
	Params *PathParams

	// EndSlash records whether the original URL path ended with "/".
	EndSlash bool

	// OnceEnded records whether at least one route reached the end of its
	// path segments during this traversal, even if it was ultimately
	// rejected by a non-path filter (most commonly the HTTP method). The
	// Service driver uses this to distinguish 404 from 405.
	OnceEnded bool
}

// newPathState parses the path into a `PathState` ready for matching.
//
// Consecutive slashes collapse; a leading slash is implied. Components are
// taken from path as given (the Service passes the already-decoded
// URL.Path); no further percent-decoding happens during matching, so Rest
// captures join the decoded components.
func newPathState(path string) *PathState {
	ps := &PathState{Params: newPathParams()}
	ps.reset(path)
	return ps
}

// reset re-initializes the ps for the path so it can be reused for the next
// request.
func (ps *PathState) reset(path string) {
	ps.EndSlash = strings.HasSuffix(path, "/") && path != "/"
	ps.OnceEnded = false
	ps.cursor = pathCursor{}
	ps.Params.reset()

	trimmed := strings.Trim(path, "/")

	ps.Parts = ps.Parts[:0]
	if trimmed == "" {
		return
	}

	for _, p := range strings.Split(trimmed, "/") {
		if p != "" {
			ps.Parts = append(ps.Parts, p)
		}
	}
}

// snapshot captures the cursor so a failed child match can be undone.
func (ps *PathState) snapshot() pathCursor {
	return ps.cursor
}

// restore undoes cursor advancement back to a previously captured snapshot.
func (ps *PathState) restore(c pathCursor) {
	ps.cursor = c
}

// isEnded reports whether the cursor has consumed every remaining path
// component, i.e. there is nothing left for a terminal handler to object to.
func (ps *PathState) isEnded() bool {
	return ps.cursor.row >= len(ps.Parts)
}

// current returns the path component the cursor currently points at, and
// whether one exists (false once the path is exhausted).
func (ps *PathState) current() (string, bool) {
	if ps.cursor.row >= len(ps.Parts) {
		return "", false
	}

	return ps.Parts[ps.cursor.row], true
}

// advance moves the cursor to the next whole path component.
func (ps *PathState) advance() {
	ps.cursor.row++
	ps.cursor.col = 0
}

// restComponents returns every path component from the cursor to the end,
// used by Rest segments to capture the remainder of the path in one shot.
func (ps *PathState) restComponents() []string {
	if ps.cursor.row >= len(ps.Parts) {
		return nil
	}

	return ps.Parts[ps.cursor.row:]
}

// consumeRest advances the cursor past every remaining component and returns
// their `/`-joined value, appending a trailing slash if the original URL had
// one. This is the value captured by a `<*name>`/`<**name>` segment.
func (ps *PathState) consumeRest() string {
	rest := strings.Join(ps.restComponents(), "/")
	ps.cursor.row = len(ps.Parts)

	if rest != "" && ps.EndSlash {
		rest += "/"
	}

	return rest
}
