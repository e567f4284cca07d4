package weft

import "net/http"

// Router is a node in the path filter tree described by the framework's
// routing model: an ordered sequence of filters, an ordered sequence of
// middleware handlers ("hoops"), an optional terminal handler ("goal"), and
// an ordered sequence of child routers.
//
// Invariants: only the goal produces a response body; hoops at a node apply
// to that node and every descendant; child order is match order (first
// child whose filters all succeed wins); backtracking is permitted only up
// to the cursor snapshot taken before descending into a child.
type Router struct {
	filters  []Filter
	hoops    []Handler
	goal     Handler
	children []*Router
}

// NewRouter returns the root of a new, empty filter tree.
func NewRouter() *Router {
	return &Router{}
}

// Filter appends a custom Filter to the r, to be evaluated in declaration
// order alongside any path/method filters already present.
func (r *Router) Filter(f Filter) *Router {
	r.filters = append(r.filters, f)
	return r
}

// Hoop appends one or more middleware handlers to the r. Hoops registered at
// a node apply to that node's own goal (if any) and to every descendant
// node's goal, in the order they were appended across the path from root to
// leaf.
func (r *Router) Hoop(hoops ...Handler) *Router {
	r.hoops = append(r.hoops, hoops...)
	return r
}

// Push creates and returns a new child Router matching the path pattern
// in addition to whatever filters/hoops the r already carries. Children are
// tried in the order Push was called — first match wins.
func (r *Router) Push(pattern string) *Router {
	child := &Router{}
	if pattern != "" {
		child.filters = append(child.filters, newPathFilter(pattern))
	}

	r.children = append(r.children, child)

	return child
}

// Handle registers goal as the terminal handler for requests matching both
// the pattern and one of methods at a new child of r, wrapped by hoops
// (run in the order given, i.e. hoops[0] runs first). It returns the new
// child so additional sub-routes may be pushed beneath it.
func (r *Router) Handle(methods []string, pattern string, goal Handler, hoops ...Handler) *Router {
	child := r.Push(pattern)
	child.filters = append(child.filters, newMethodFilter(methods...))
	child.hoops = append(child.hoops, hoops...)
	child.goal = goal

	return child
}

// GET registers goal for GET requests matching pattern.
func (r *Router) GET(pattern string, goal Handler, hoops ...Handler) *Router {
	return r.Handle([]string{http.MethodGet}, pattern, goal, hoops...)
}

// HEAD registers goal for HEAD requests matching pattern.
func (r *Router) HEAD(pattern string, goal Handler, hoops ...Handler) *Router {
	return r.Handle([]string{http.MethodHead}, pattern, goal, hoops...)
}

// POST registers goal for POST requests matching pattern.
func (r *Router) POST(pattern string, goal Handler, hoops ...Handler) *Router {
	return r.Handle([]string{http.MethodPost}, pattern, goal, hoops...)
}

// PUT registers goal for PUT requests matching pattern.
func (r *Router) PUT(pattern string, goal Handler, hoops ...Handler) *Router {
	return r.Handle([]string{http.MethodPut}, pattern, goal, hoops...)
}

// PATCH registers goal for PATCH requests matching pattern.
func (r *Router) PATCH(pattern string, goal Handler, hoops ...Handler) *Router {
	return r.Handle([]string{http.MethodPatch}, pattern, goal, hoops...)
}

// DELETE registers goal for DELETE requests matching pattern.
func (r *Router) DELETE(pattern string, goal Handler, hoops ...Handler) *Router {
	return r.Handle([]string{http.MethodDelete}, pattern, goal, hoops...)
}

// OPTIONS registers goal for OPTIONS requests matching pattern.
func (r *Router) OPTIONS(pattern string, goal Handler, hoops ...Handler) *Router {
	return r.Handle([]string{http.MethodOptions}, pattern, goal, hoops...)
}

// Any registers goal for every HTTP method matching pattern.
func (r *Router) Any(pattern string, goal Handler, hoops ...Handler) *Router {
	return r.Handle(AnyMethod, pattern, goal, hoops...)
}

// routerMatch is the result of a successful DetectMatched: the concatenation
// of every matched node's hoops, root to leaf, and the goal of the leaf.
type routerMatch struct {
	hoops []Handler
	goal  Handler
}

// DetectMatched walks the filter tree rooted at r against req/ps, implementing
// the algorithm from the routing model:
//
//  1. Apply each of this node's filters in order; any failure aborts this
//     node (path filters that partially advanced the cursor roll it back).
//  2. If this node has children, snapshot the cursor and try each in
//     declaration order; the first child to succeed wins, its hoops are
//     prefixed with this node's hoops.
//  3. Otherwise, if this node has a goal and the path is fully consumed,
//     that is the match.
//  4. Otherwise, no match — try the next sibling (handled by the caller).
func (r *Router) DetectMatched(req *Request, ps *PathState) (*routerMatch, bool) {
	for _, f := range r.filters {
		if !f.Filter(req, ps) {
			return nil, false
		}
	}

	if len(r.children) > 0 {
		snap := ps.snapshot()

		for _, child := range r.children {
			if m, ok := child.DetectMatched(req, ps); ok {
				m.hoops = append(append([]Handler{}, r.hoops...), m.hoops...)
				return m, true
			}

			ps.restore(snap)
		}
	}

	if r.goal != nil && ps.isEnded() {
		return &routerMatch{
			hoops: append([]Handler{}, r.hoops...),
			goal:  r.goal,
		}, true
	}

	return nil, false
}
