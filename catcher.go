package weft

import (
	"fmt"
	"net/http"
)

// Catcher renders a response body for a request that ended in an error
// status with nothing written yet. It returns whether it actually wrote a
// body; a Catcher that declines (returns false) leaves the response as-is,
// letting the transport send an empty-bodied error response.
type Catcher interface {
	Catch(req *Request, res *Response) bool
}

// CatcherFunc adapts a plain function to a Catcher.
type CatcherFunc func(req *Request, res *Response) bool

// Catch implements the Catcher interface.
func (f CatcherFunc) Catch(req *Request, res *Response) bool {
	return f(req, res)
}

// defaultCatcher renders a minimal themed error page naming the status code
// and its canonical reason phrase. It is the Catcher every new Service
// starts with.
type defaultCatcher struct{}

func (defaultCatcher) Catch(req *Request, res *Response) bool {
	text := http.StatusText(res.Status)
	if text == "" {
		text = fmt.Sprintf("Error %d", res.Status)
	}

	body := fmt.Sprintf(
		"<!DOCTYPE html><html><head><title>%d %s</title></head>"+
			"<body><h1>%d %s</h1></body></html>",
		res.Status, text, res.Status, text,
	)

	res.WriteHTML(body)

	return true
}
