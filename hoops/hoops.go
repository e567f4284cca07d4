// Package hoops collects general-purpose hoops (middleware) for use with
// weft's FlowCtrl.
package hoops

import "github.com/weftkit/weft"

// Skipper decides whether a hoop should skip its own work for a request,
// deferring straight to the rest of the chain. Returning true skips it.
type Skipper func(req *weft.Request, depot *weft.Depot, res *weft.Response) bool

// defaultSkipper never skips.
func defaultSkipper(req *weft.Request, depot *weft.Depot, res *weft.Response) bool {
	return false
}
