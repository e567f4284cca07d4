package weft

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// renderer parses and renders the HTML templates found under a Weft's
// RendererTemplateRoot.
type renderer struct {
	a *Weft

	once     *sync.Once
	mutex    *sync.RWMutex
	template *template.Template
	watcher  *fsnotify.Watcher
}

// newRenderer returns a pointer of a new instance of the `renderer`.
func newRenderer(a *Weft) *renderer {
	return &renderer{
		a:     a,
		once:  &sync.Once{},
		mutex: &sync.RWMutex{},
	}
}

// render renders the named template with the data into the w, resolving
// localized strings via localize.
func (r *renderer) render(
	w io.Writer,
	name string,
	data map[string]interface{},
	localize func(string) string,
) error {
	r.once.Do(func() {
		if err := r.parseTemplates(); err != nil {
			r.a.logErrorf("weft: failed to parse templates: %v", err)
		}

		if r.watcher != nil {
			go r.watchTemplates()
		}
	})

	if data == nil {
		data = map[string]interface{}{}
	}

	data["L"] = localize

	r.mutex.RLock()
	t := r.template
	r.mutex.RUnlock()

	if t == nil {
		return fmt.Errorf("weft: no template named %q", name)
	}

	return t.ExecuteTemplate(w, name, data)
}

// parseTemplates (re)parses every template file under the a's
// RendererTemplateRoot matching one of RendererTemplateExts.
func (r *renderer) parseTemplates() error {
	root := filepath.Clean(r.a.RendererTemplateRoot)

	fi, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	} else if !fi.IsDir() {
		return nil
	}

	if r.watcher == nil {
		if w, err := fsnotify.NewWatcher(); err == nil {
			r.watcher = w
		}
	}

	t := template.New("template")
	t.Funcs(r.a.RendererTemplateFuncMap)
	t.Delims(r.a.RendererTemplateLeftDelim, r.a.RendererTemplateRightDelim)

	buf := &bytes.Buffer{}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if r.watcher != nil {
				r.watcher.Add(path)
			}

			return nil
		}

		if !stringSliceContains(r.a.RendererTemplateExts, filepath.Ext(path), false) {
			return nil
		}

		b, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}

		if r.a.MinifierEnabled {
			buf.Reset()
			if mb, err := r.a.minifier.minify("text/html", b); err == nil {
				b = mb
			}
		}

		name := filepath.ToSlash(path[len(root)+1:])

		_, err = t.New(name).Parse(string(b))

		return err
	})
	if err != nil {
		return err
	}

	r.mutex.Lock()
	r.template = t
	r.mutex.Unlock()

	return nil
}

// watchTemplates reparses the templates whenever a file changes under the
// watched directories.
func (r *renderer) watchTemplates() {
	for {
		select {
		case e, ok := <-r.watcher.Events:
			if !ok {
				return
			}

			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				if err := r.parseTemplates(); err != nil {
					r.a.logErrorf("weft: failed to reparse templates: %v", err)
				}
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}

			r.a.logErrorf("weft: renderer watcher error: %v", err)
		}
	}
}

// strlen returns the number of chars in the s.
func strlen(s string) int {
	return len([]rune(s))
}

// strcat returns a string that is catenated to the tail of the s by the ss.
func strcat(s string, ss ...string) string {
	for i := range ss {
		s = fmt.Sprintf("%s%s", s, ss[i])
	}

	return s
}

// substr returns the substring consisting of the chars of the s starting at
// the index i and continuing up to, but not including, the char at the
// index j.
func substr(s string, i, j int) string {
	rs := []rune(s)
	return string(rs[i:j])
}

// timefmt returns a textual representation of the t formatted according to
// the layout.
func timefmt(t time.Time, layout string) string {
	return t.Format(layout)
}
