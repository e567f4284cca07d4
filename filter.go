package weft

import "net/http"

// Filter decides whether a request may continue descending a `Router` node.
//
// A path filter additionally advances the `PathState` cursor on success;
// method and custom predicate filters inspect the request without touching
// the cursor.
type Filter interface {
	Filter(req *Request, ps *PathState) bool
}

// FilterFunc adapts a plain function to a Filter.
type FilterFunc func(req *Request, ps *PathState) bool

// Filter implements the Filter interface.
func (f FilterFunc) Filter(req *Request, ps *PathState) bool {
	return f(req, ps)
}

// pathFilter wraps a compiled pattern's segments as a single Filter that
// matches them in order against the PathState, restoring the cursor on any
// mid-pattern failure so the node's own snapshot/restore contract (taken by
// the caller) is unaffected by partial progress.
type pathFilter struct {
	pattern  string
	segments []Segment
}

// newPathFilter compiles the pattern into a pathFilter. It panics on a
// malformed pattern, matching the teacher's convention of rejecting invalid
// routes at registration time rather than at request time.
func newPathFilter(pattern string) *pathFilter {
	segs, err := ParsePathPattern(pattern)
	if err != nil {
		panic(err)
	}

	return &pathFilter{pattern: pattern, segments: segs}
}

func (pf *pathFilter) Filter(req *Request, ps *PathState) bool {
	start := ps.snapshot()

	for _, seg := range pf.segments {
		if !seg.match(ps) {
			ps.restore(start)
			return false
		}
	}

	return true
}

// methodFilter matches the request's HTTP method against a fixed set.
type methodFilter struct {
	methods map[string]bool
}

// newMethodFilter returns a Filter that accepts any of the methods.
func newMethodFilter(methods ...string) *methodFilter {
	set := make(map[string]bool, len(methods))
	for _, m := range methods {
		set[m] = true
	}

	return &methodFilter{methods: set}
}

func (mf *methodFilter) Filter(req *Request, ps *PathState) bool {
	if mf.methods[req.Method] {
		return true
	}

	// A structurally-matching path that was rejected only because of the
	// method tells the Service driver to answer 405 instead of 404.
	if ps.isEnded() {
		ps.OnceEnded = true
	}

	return false
}

// AnyMethod is the sentinel accepted by Router.Handle meaning "match every
// HTTP method".
var AnyMethod = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodConnect,
	http.MethodOptions,
	http.MethodTrace,
}
