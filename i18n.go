package weft

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/language"
)

// i18n is a locale manager that adapts to a request's preferred language, as
// advertised by its Accept-Language header.
type i18n struct {
	a *Weft

	loadOnce  *sync.Once
	loadError error
	locales   map[string]map[string]string
	matcher   language.Matcher
	watcher   *fsnotify.Watcher
}

// newI18n returns a new instance of the `i18n` with the a. It does no I/O;
// locale files are read lazily on first use by `load`.
func newI18n(a *Weft) *i18n {
	return &i18n{
		a:        a,
		loadOnce: &sync.Once{},
	}
}

// load reads every "*.toml" locale file under the a's I18nLocaleRoot and
// starts watching that directory for changes. Any failure is recorded in
// loadError rather than returned, since load only ever runs once per i18n
// instance via loadOnce.
func (i *i18n) load() {
	lr, err := filepath.Abs(i.a.I18nLocaleRoot)
	if err != nil {
		i.loadError = err
		i.a.ERROR("weft: failed to get absolute locale root", map[string]interface{}{
			"error": err.Error(),
		})

		return
	}

	lfns, err := filepath.Glob(filepath.Join(lr, "*.toml"))
	if err != nil {
		i.loadError = err
		i.a.ERROR("weft: failed to glob locale files", map[string]interface{}{
			"error": err.Error(),
		})

		return
	}

	ls := make(map[string]map[string]string, len(lfns))
	ts := make([]language.Tag, 0, len(lfns))
	for _, lfn := range lfns {
		b, err := ioutil.ReadFile(lfn)
		if err != nil {
			i.loadError = err
			i.a.ERROR("weft: failed to read locale file", map[string]interface{}{
				"error": err.Error(),
			})

			return
		}

		l := map[string]string{}
		if err := toml.Unmarshal(b, &l); err != nil {
			i.loadError = err
			i.a.ERROR("weft: failed to unmarshal locale file", map[string]interface{}{
				"error": err.Error(),
			})

			return
		}

		t, err := language.Parse(strings.TrimSuffix(filepath.Base(lfn), ".toml"))
		if err != nil {
			i.loadError = err
			i.a.ERROR("weft: failed to parse locale tag", map[string]interface{}{
				"error": err.Error(),
			})

			return
		}

		ls[t.String()] = l
		ts = append(ts, t)
	}

	i.locales = ls
	i.matcher = language.NewMatcher(ts)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		i.loadError = err
		i.a.ERROR("weft: failed to build i18n watcher", map[string]interface{}{
			"error": err.Error(),
		})

		return
	}

	i.watcher = w
	if err := i.watcher.Add(lr); err != nil {
		i.loadError = err
		i.a.ERROR("weft: failed to watch locale files", map[string]interface{}{
			"error": err.Error(),
		})

		return
	}

	go i.watch()
}

// watch reloads the locales whenever a file changes under the watched
// directory.
func (i *i18n) watch() {
	for {
		select {
		case e, ok := <-i.watcher.Events:
			if !ok {
				return
			}

			if i.a.I18nEnabled {
				i.a.DEBUG("weft: locale file event occurs", map[string]interface{}{
					"file":  e.Name,
					"event": e.Op.String(),
				})
			}

			i.loadOnce = &sync.Once{}
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}

			if i.a.I18nEnabled {
				i.a.ERROR("weft: i18n watcher error", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

// localize installs a localizer function onto r that resolves a key to the
// locale string matching r's Accept-Language header, falling back to
// I18nLocaleBase and then the key itself.
func (i *i18n) localize(r *Request) {
	if !i.a.I18nEnabled {
		r.localizedString = func(key string) string {
			return key
		}

		return
	}

	i.loadOnce.Do(i.load)

	t, _ := language.MatchStrings(i.matcher, r.Header["Accept-Language"]...)
	l := i.locales[t.String()]

	r.localizedString = func(key string) string {
		if v, ok := l[key]; ok {
			return v
		} else if v, ok := i.locales[i.a.I18nLocaleBase][key]; ok {
			return v
		}

		return key
	}
}
