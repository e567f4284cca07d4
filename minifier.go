package weft

import (
	"bytes"
	"errors"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/tdewolff/minify"
	"github.com/tdewolff/minify/css"
	"github.com/tdewolff/minify/html"
	"github.com/tdewolff/minify/js"
	"github.com/tdewolff/minify/json"
	"github.com/tdewolff/minify/svg"
	"github.com/tdewolff/minify/xml"
)

// minifier minifies contents by their MIME type.
type minifier struct {
	a *Weft
	m *minify.M
}

// newMinifier returns a new instance of the `minifier` with the a.
func newMinifier(a *Weft) *minifier {
	return &minifier{
		a: a,
		m: minify.New(),
	}
}

// minify minifies the b by the mimeType.
func (m *minifier) minify(mimeType string, b []byte) ([]byte, error) {
	if ss := strings.Split(mimeType, ";"); len(ss) > 1 {
		mimeType = ss[0]
	}

	buf := &bytes.Buffer{}
	if err := m.m.Minify(mimeType, buf, bytes.NewReader(b)); err == minify.ErrNotExist {
		switch mimeType {
		case "text/html":
			m.m.Add(mimeType, html.DefaultMinifier)
		case "text/css":
			m.m.Add(mimeType, css.DefaultMinifier)
		case "application/javascript", "text/javascript":
			m.m.Add(mimeType, js.DefaultMinifier)
		case "application/json":
			m.m.Add(mimeType, json.DefaultMinifier)
		case "application/xml", "text/xml":
			m.m.Add(mimeType, xml.DefaultMinifier)
		case "image/svg+xml":
			m.m.Add(mimeType, svg.DefaultMinifier)
		case "image/jpeg":
			m.m.AddFunc(mimeType, func(
				_ *minify.M,
				w io.Writer,
				r io.Reader,
				_ map[string]string,
			) error {
				img, err := jpeg.Decode(r)
				if err != nil {
					return err
				}

				return jpeg.Encode(w, img, nil)
			})
		case "image/png":
			m.m.AddFunc(mimeType, func(
				_ *minify.M,
				w io.Writer,
				r io.Reader,
				_ map[string]string,
			) error {
				img, err := png.Decode(r)
				if err != nil {
					return err
				}

				return (&png.Encoder{
					CompressionLevel: png.BestCompression,
				}).Encode(w, img)
			})
		default:
			return nil, errors.New("weft: unsupported mime type")
		}

		return m.minify(mimeType, b)
	} else if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
