package weft

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"io/ioutil"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/fsnotify/fsnotify"
)

// coffer is a binary asset file manager that uses runtime memory to reduce
// disk I/O pressure.
type coffer struct {
	a *Weft

	loadOnce  *sync.Once
	loadError error
	assets    *sync.Map
	cache     *fastcache.Cache
	watcher   *fsnotify.Watcher
}

// newCoffer returns a new instance of the `coffer` with the a. It does no
// I/O; the cache and watcher are built lazily on first use by `load`.
func newCoffer(a *Weft) *coffer {
	return &coffer{
		a:        a,
		loadOnce: &sync.Once{},
		assets:   &sync.Map{},
	}
}

// load allocates the cache and starts the asset-file watcher.
func (c *coffer) load() {
	c.cache = fastcache.New(c.a.CofferMaxMemoryBytes)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		c.loadError = err
		c.a.ERROR("weft: failed to build coffer watcher", map[string]interface{}{
			"error": err.Error(),
		})

		return
	}

	c.watcher = w

	go func() {
		for {
			select {
			case e, ok := <-c.watcher.Events:
				if !ok {
					return
				}

				if c.a.CofferEnabled {
					c.a.DEBUG("weft: asset file event occurs", map[string]interface{}{
						"file":  e.Name,
						"event": e.Op.String(),
					})
				}

				if ai, ok := c.assets.Load(e.Name); ok {
					a := ai.(*asset)
					c.assets.Delete(a.name)
					c.cache.Del(a.contentChecksum[:])
					c.cache.Del(a.gzippedContentChecksum[:])
				}
			case err, ok := <-c.watcher.Errors:
				if !ok {
					return
				}

				if c.a.CofferEnabled {
					c.a.ERROR("weft: coffer watcher error", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}
		}
	}()
}

// asset returns an `asset` from the c for the name.
func (c *coffer) asset(name string) (*asset, error) {
	c.loadOnce.Do(c.load)
	if c.loadError != nil {
		return nil, c.loadError
	}

	if ai, ok := c.assets.Load(name); ok {
		return ai.(*asset), nil
	} else if ar, err := filepath.Abs(c.a.CofferAssetRoot); err != nil {
		return nil, err
	} else if !strings.HasPrefix(name, ar) {
		return nil, nil
	}

	ext := filepath.Ext(name)
	if !stringSliceContains(c.a.CofferAssetExts, ext, true) {
		return nil, nil
	}

	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}

	b, err := ioutil.ReadFile(name)
	if err != nil {
		return nil, err
	}

	var (
		mt       = mime.TypeByExtension(ext)
		minified bool
		gb       []byte
	)

	if mt != "" {
		mt, _, err := mime.ParseMediaType(mt)
		if err != nil {
			return nil, err
		}

		if c.a.MinifierEnabled &&
			stringSliceContains(c.a.MinifierMIMETypes, mt, true) {
			if b, err = c.a.minifier.minify(mt, b); err != nil {
				return nil, err
			}

			minified = true
		}

		if c.a.GzipEnabled &&
			stringSliceContains(c.a.GzipMIMETypes, mt, true) {
			buf := bytes.Buffer{}
			if gw, err := gzip.NewWriterLevel(
				&buf,
				c.a.GzipCompressionLevel,
			); err != nil {
				return nil, err
			} else if _, err = gw.Write(b); err != nil {
				return nil, err
			} else if err = gw.Close(); err != nil {
				return nil, err
			}

			gb = buf.Bytes()
		}
	}

	if err := c.watcher.Add(name); err != nil {
		return nil, err
	}

	a := &asset{
		coffer:          c,
		name:            name,
		mimeType:        mt,
		modTime:         fi.ModTime(),
		minified:        minified,
		contentChecksum: sha256.Sum256(b),
	}

	c.cache.Set(a.contentChecksum[:], b)
	if gb != nil {
		a.gzippedContentChecksum = sha256.Sum256(gb)
		c.cache.Set(a.gzippedContentChecksum[:], gb)
	}

	c.assets.Store(name, a)

	return a, nil
}

// asset is a binary asset file.
type asset struct {
	coffer                 *coffer
	name                   string
	mimeType               string
	modTime                time.Time
	minified               bool
	contentChecksum        [sha256.Size]byte
	gzippedContentChecksum [sha256.Size]byte
}

// content returns the content of the a, gzipped if requested.
func (a *asset) content(gzipped bool) []byte {
	var c []byte
	if gzipped {
		c = a.coffer.cache.Get(nil, a.gzippedContentChecksum[:])
	} else {
		c = a.coffer.cache.Get(nil, a.contentChecksum[:])
	}

	if len(c) == 0 {
		a.coffer.assets.Delete(a.name)
		a.coffer.cache.Del(a.contentChecksum[:])
		a.coffer.cache.Del(a.gzippedContentChecksum[:])
		return nil
	}

	return c
}
