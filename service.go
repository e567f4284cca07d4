package weft

import (
	"mime"
	"net/http"
	"sync"
)

// Service composes a Router with the cross-cutting concerns that sit
// outside of it: hoops that run on every request regardless of match,
// request Content-Type enforcement, the not-found/method-not-allowed
// goals, and the Catcher that renders a body for an otherwise-empty error
// response.
type Service struct {
	// Router is the root of the path filter tree this Service dispatches
	// through.
	Router *Router

	// Hoops run on every request, before any routed hoop, regardless of
	// whether a route matches.
	Hoops []Handler

	// AllowedMediaTypes, if non-empty, is the allowlist a request's
	// Content-Type must belong to; otherwise the request is answered with
	// 415 Unsupported Media Type before the router is even consulted. A
	// request with no body (no Content-Type) always passes.
	AllowedMediaTypes []string

	// NotFoundHandler answers a request whose path matched no route.
	NotFoundHandler Handler

	// MethodNotAllowedHandler answers a request whose path structurally
	// matched a route but not by the method requested.
	MethodNotAllowedHandler Handler

	// Catcher renders a body for a response that ended in an error status
	// with nothing written yet.
	Catcher Catcher

	pathStatePool *sync.Pool
}

// NewService returns a Service ready to dispatch through router, with the
// default not-found/method-not-allowed handlers and Catcher.
func NewService(router *Router) *Service {
	return &Service{
		Router:                  router,
		NotFoundHandler:         HandlerFunc(defaultNotFoundHandler),
		MethodNotAllowedHandler: HandlerFunc(defaultMethodNotAllowedHandler),
		Catcher:                 defaultCatcher{},
		pathStatePool: &sync.Pool{
			New: func() interface{} { return newPathState("") },
		},
	}
}

// defaultNotFoundHandler is the default goal for an unmatched path.
func defaultNotFoundHandler(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
	res.Status = http.StatusNotFound
}

// defaultMethodNotAllowedHandler is the default goal for a path that
// matched structurally but not by method.
func defaultMethodNotAllowedHandler(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
	res.Status = http.StatusMethodNotAllowed
}

// mediaTypeAllowed reports whether the request's Content-Type is in
// allowed, or whether the request carries no body at all.
func mediaTypeAllowed(req *Request, allowed []string) bool {
	ct := req.Header.Get("Content-Type")
	if ct == "" {
		return true
	}

	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}

	for _, a := range allowed {
		if a == mt {
			return true
		}
	}

	return false
}

// ServeHTTP dispatches one request through the s: media-type enforcement,
// route matching, the composed hoop/goal chain, and finally the Catcher for
// any error response left with an empty body.
func (s *Service) ServeHTTP(req *Request, depot *Depot, res *Response) {
	if len(s.AllowedMediaTypes) > 0 && !mediaTypeAllowed(req, s.AllowedMediaTypes) {
		res.Status = http.StatusUnsupportedMediaType
		s.catch(req, res)
		return
	}

	ps := s.pathStatePool.Get().(*PathState)
	ps.reset(req.URL.Path)
	defer s.pathStatePool.Put(ps)

	req.PathParams.reset()

	var handlers []Handler

	if match, ok := s.Router.DetectMatched(req, ps); ok {
		req.PathParams.copyFrom(ps.Params)
		handlers = append(handlers, s.Hoops...)
		handlers = append(handlers, match.hoops...)
		handlers = append(handlers, match.goal)
	} else {
		goal := s.NotFoundHandler
		if ps.OnceEnded {
			goal = s.MethodNotAllowedHandler
		}

		handlers = append(append([]Handler{}, s.Hoops...), goal)
	}

	ctrl := newFlowCtrl(handlers, res)
	ctrl.Next(req, depot, res)

	s.catch(req, res)
}

// catch invokes the Catcher when the response ended in an error status
// without a body.
func (s *Service) catch(req *Request, res *Response) {
	if res.Status >= http.StatusBadRequest && !res.Written && s.Catcher != nil {
		s.Catcher.Catch(req, res)
	}
}
