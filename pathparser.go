package weft

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Path pattern syntax (see spec's external-interfaces grammar):
//
//	pattern    := ('/' segment)* '/'?
//	segment    := const | regex_seg | wildcard_seg
//	const      := <any byte except '/' '<' '>' ':'>+
//	regex_seg  := const? '<' name (':' '/' regex '/')? '>' const? (regex_seg | const)*
//	wildcard   := '<' ('*'|'**') name '>'    // terminal; only as last segment
//	name       := ident

// RestMode distinguishes the two flavors of trailing wildcard segment.
type RestMode int

const (
	// RestRequireNonEmpty is `<*name>`: the segment fails to match if no
	// path components remain.
	RestRequireNonEmpty RestMode = iota

	// RestAllowEmpty is `<**name>`: the segment always succeeds, capturing
	// "" when no path components remain.
	RestAllowEmpty
)

// Segment is one compiled piece of a path pattern.
type Segment interface {
	// match attempts to consume this segment's contribution from the ps,
	// reporting whether it matched.
	match(ps *PathState) bool
}

// ConstSegment matches exactly one path component, byte for byte.
type ConstSegment struct {
	Value string
}

func (s *ConstSegment) match(ps *PathState) bool {
	comp, ok := ps.current()
	if !ok || comp != s.Value {
		return false
	}

	ps.advance()

	return true
}

// RegexSegment matches exactly one path component against a compiled regular
// expression, capturing any named groups into the PathState's params.
type RegexSegment struct {
	Names []string
	Re    *regexp.Regexp
}

func (s *RegexSegment) match(ps *PathState) bool {
	comp, ok := ps.current()
	if !ok {
		return false
	}

	m := s.Re.FindStringSubmatch(comp)
	if m == nil {
		return false
	}

	for i, name := range s.Re.SubexpNames() {
		if name == "" || i >= len(m) {
			continue
		}

		ps.Params.Set(name, m[i])
	}

	ps.advance()

	return true
}

// RestSegment matches all remaining path components, joined by "/". It must
// be the last segment of any pattern it appears in.
type RestSegment struct {
	Name string
	Mode RestMode
}

func (s *RestSegment) match(ps *PathState) bool {
	if s.Mode == RestRequireNonEmpty {
		if _, ok := ps.current(); !ok {
			return false
		}
	}

	ps.Params.Set(s.Name, ps.consumeRest())

	return true
}

// Pattern-compile errors. Each aborts pattern construction immediately; a
// `Router` built from a bad pattern never serves a single request.
var (
	ErrUnbalancedBraces     = errors.New("weft: unbalanced '<'/'>' in path pattern")
	ErrEmptyParamName       = errors.New("weft: empty parameter name in path pattern")
	ErrUnterminatedRegex    = errors.New("weft: unterminated regex in path pattern")
	ErrBadRegex             = errors.New("weft: regex does not compile")
	ErrWildcardNotLast      = errors.New("weft: wildcard segment must be the final segment")
	ErrEmptySegment         = errors.New("weft: empty segment in path pattern")
	ErrMultipleWildcardKeys = errors.New("weft: at most one wildcard segment is allowed")
)

// ParsePathPattern compiles a user-provided pattern string into an ordered
// list of Segments.
func ParsePathPattern(pattern string) ([]Segment, error) {
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return nil, nil
	}

	var segs []Segment

	for _, comp := range strings.Split(trimmed, "/") {
		if comp == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptySegment, pattern)
		}

		seg, err := parseComponent(comp)
		if err != nil {
			return nil, fmt.Errorf("weft: path pattern %q: %w", pattern, err)
		}

		if _, isRest := seg.(*RestSegment); isRest {
			segs = append(segs, seg)
			continue
		}

		segs = append(segs, seg)
	}

	for i, seg := range segs {
		if _, ok := seg.(*RestSegment); ok && i != len(segs)-1 {
			return nil, fmt.Errorf("%w: %q", ErrWildcardNotLast, pattern)
		}
	}

	return segs, nil
}

// parseComponent compiles one `/`-delimited path component. A component may
// be a bare wildcard (`<*name>`/`<**name>`), a bare literal, or a mixture of
// literal text and one or more `<name>`/`<name:/regex/>` placeholders, which
// combine into a single anchored regex with named capture groups.
func parseComponent(comp string) (Segment, error) {
	if strings.HasPrefix(comp, "<*") {
		return parseWildcard(comp)
	}

	if !strings.ContainsAny(comp, "<>") {
		return &ConstSegment{Value: comp}, nil
	}

	return parseRegexComponent(comp)
}

func parseWildcard(comp string) (Segment, error) {
	if !strings.HasSuffix(comp, ">") {
		return nil, ErrUnbalancedBraces
	}

	inner := comp[1 : len(comp)-1] // strip leading '<' and trailing '>'

	mode := RestRequireNonEmpty
	switch {
	case strings.HasPrefix(inner, "**"):
		mode = RestAllowEmpty
		inner = inner[2:]
	case strings.HasPrefix(inner, "*"):
		inner = inner[1:]
	default:
		return nil, ErrUnbalancedBraces
	}

	if inner == "" {
		return nil, ErrEmptyParamName
	}

	if strings.ContainsAny(inner, "<>") {
		return nil, ErrUnbalancedBraces
	}

	return &RestSegment{Name: inner, Mode: mode}, nil
}

// parseRegexComponent scans a component that mixes literal text with one or
// more `<name>`/`<name:/regex/>` placeholders into a single regexp with named
// capture groups, anchored to match the whole component.
func parseRegexComponent(comp string) (Segment, error) {
	var (
		buf   strings.Builder
		names []string
		i     int
		n     = len(comp)
	)

	buf.WriteByte('^')

	for i < n {
		c := comp[i]
		switch c {
		case '<':
			end := strings.IndexByte(comp[i:], '>')
			if end < 0 {
				return nil, ErrUnbalancedBraces
			}

			inner := comp[i+1 : i+end]
			i += end + 1

			name, restr, err := splitNameAndRegex(inner)
			if err != nil {
				return nil, err
			}

			if name == "" {
				return nil, ErrEmptyParamName
			}

			for _, used := range names {
				if used == name {
					return nil, fmt.Errorf("weft: duplicate parameter name %q", name)
				}
			}

			names = append(names, name)

			fmt.Fprintf(&buf, "(?P<%s>%s)", name, restr)
		case '>':
			return nil, ErrUnbalancedBraces
		default:
			buf.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	buf.WriteByte('$')

	if len(names) == 0 {
		// No placeholder was actually found; this only happens for a
		// component containing a stray '<'/'>' that parseComponent's
		// cheap pre-check missed, which is already excluded above.
		return nil, ErrEmptySegment
	}

	re, err := regexp.Compile(buf.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRegex, err)
	}

	return &RegexSegment{Names: names, Re: re}, nil
}

// splitNameAndRegex splits the inside of a `<...>` placeholder into its name
// and, if present, its custom regex. `name` alone defaults to matching one
// non-slash component; `name:/regex/` supplies a custom pattern.
func splitNameAndRegex(inner string) (name, pattern string, err error) {
	colon := strings.IndexByte(inner, ':')
	if colon < 0 {
		return inner, `[^/]+`, nil
	}

	name = inner[:colon]
	rest := inner[colon+1:]

	if len(rest) < 2 || rest[0] != '/' || rest[len(rest)-1] != '/' {
		return "", "", ErrUnterminatedRegex
	}

	pattern = rest[1 : len(rest)-1]
	if pattern == "" {
		return "", "", ErrEmptySegment
	}

	return name, pattern, nil
}
