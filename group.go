package weft

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Group is a path prefix shared by a set of routes, along with the hoops
// that wrap every one of them.
type Group struct {
	// Weft is where the group's routes ultimately belong.
	Weft *Weft

	// Router is the sub-router rooted at the group's prefix.
	Router *Router

	// Hoops wrap every route and sub-group registered under the group.
	Hoops []Handler
}

// newGroup returns a Group rooted at Router with hoops installed on it, so
// Router.Hoop need not be called by every caller.
func newGroup(weft *Weft, router *Router, hoops []Handler) *Group {
	router.Hoop(hoops...)
	return &Group{Weft: weft, Router: router, Hoops: hoops}
}

// GET registers goal for GET requests matching pattern under the group.
func (g *Group) GET(pattern string, goal Handler, hoops ...Handler) {
	g.Router.GET(pattern, goal, hoops...)
}

// HEAD registers goal for HEAD requests matching pattern under the group.
func (g *Group) HEAD(pattern string, goal Handler, hoops ...Handler) {
	g.Router.HEAD(pattern, goal, hoops...)
}

// POST registers goal for POST requests matching pattern under the group.
func (g *Group) POST(pattern string, goal Handler, hoops ...Handler) {
	g.Router.POST(pattern, goal, hoops...)
}

// PUT registers goal for PUT requests matching pattern under the group.
func (g *Group) PUT(pattern string, goal Handler, hoops ...Handler) {
	g.Router.PUT(pattern, goal, hoops...)
}

// PATCH registers goal for PATCH requests matching pattern under the group.
func (g *Group) PATCH(pattern string, goal Handler, hoops ...Handler) {
	g.Router.PATCH(pattern, goal, hoops...)
}

// DELETE registers goal for DELETE requests matching pattern under the
// group.
func (g *Group) DELETE(pattern string, goal Handler, hoops ...Handler) {
	g.Router.DELETE(pattern, goal, hoops...)
}

// OPTIONS registers goal for OPTIONS requests matching pattern under the
// group.
func (g *Group) OPTIONS(pattern string, goal Handler, hoops ...Handler) {
	g.Router.OPTIONS(pattern, goal, hoops...)
}

// BATCH registers goal for every method in methods matching pattern under
// the group. A nil methods means every HTTP method.
func (g *Group) BATCH(methods []string, pattern string, goal Handler, hoops ...Handler) {
	if methods == nil {
		methods = AnyMethod
	}

	g.Router.Handle(methods, pattern, goal, hoops...)
}

// FILE registers a new GET and HEAD route pair under the group to serve a
// static file with the filename.
func (g *Group) FILE(pattern, filename string, hoops ...Handler) {
	goal := HandlerFunc(func(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
		err := res.WriteFile(filename)
		if os.IsNotExist(err) {
			g.Weft.NotFoundHandler.Handle(req, depot, res, ctrl)
		}
	})

	g.BATCH([]string{http.MethodGet, http.MethodHead}, pattern, goal, hoops...)
}

// FILES registers some new GET and HEAD route pairs under the group's
// prefix to serve the static files from the root.
func (g *Group) FILES(prefix, root string, hoops ...Handler) {
	prefix = strings.TrimSuffix(prefix, "/")
	pattern := prefix + "/<**weftStaticPath>"

	if root == "" {
		root = "."
	}

	goal := HandlerFunc(func(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
		path := req.Param("weftStaticPath")
		path = filepath.FromSlash(fmt.Sprint("/", path))
		path = filepath.Clean(path)

		err := res.WriteFile(filepath.Join(root, path))
		if os.IsNotExist(err) {
			g.Weft.NotFoundHandler.Handle(req, depot, res, ctrl)
		}
	})

	g.BATCH([]string{http.MethodGet, http.MethodHead}, pattern, goal, hoops...)
}

// Group returns a new sub-group nested under the g's prefix, inheriting
// none of g's hoops automatically — the router tree itself already applies
// them to every descendant.
func (g *Group) Group(prefix string, hoops ...Handler) *Group {
	return newGroup(g.Weft, g.Router.Push(prefix), hoops)
}
