package extract

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// Source is the input an extractor reads from. It is implemented for a
// live HTTP request (plus its matched route variables) and for a single
// part of a multipart body, so the same extractor can pull a value from
// either.
type Source interface {
	Query() url.Values
	Header() http.Header
	Cookie(name string) (string, bool)
	PathVar(name string) (string, bool)
	Body() io.Reader
	ContentType() string
	MultipartReader() (*multipart.Reader, error)
}

type requestSource struct {
	r     *http.Request
	vars  map[string]string
	query url.Values
}

// RequestSource returns a Source for r. vars holds the path variables
// matched by the router and may be nil.
//
// The query string is parsed once here so that sibling extractors can read
// it concurrently.
func RequestSource(r *http.Request, vars map[string]string) Source {
	return &requestSource{
		r:     r,
		vars:  vars,
		query: r.URL.Query(),
	}
}

func (s *requestSource) Query() url.Values {
	return s.query
}

func (s *requestSource) Header() http.Header {
	return s.r.Header
}

func (s *requestSource) Cookie(name string) (string, bool) {
	c, err := s.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (s *requestSource) PathVar(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *requestSource) Body() io.Reader {
	if s.r.Body == nil {
		return http.NoBody
	}
	return s.r.Body
}

func (s *requestSource) ContentType() string {
	return s.r.Header.Get("Content-Type")
}

func (s *requestSource) MultipartReader() (*multipart.Reader, error) {
	return s.r.MultipartReader()
}

type partSource struct {
	part *multipart.Part
}

// PartSource returns a Source reading from a single multipart part. Only
// the header, content type and body are populated.
func PartSource(p *multipart.Part) Source {
	return partSource{part: p}
}

var emptyQuery = url.Values{}

func (s partSource) Query() url.Values {
	return emptyQuery
}

func (s partSource) Header() http.Header {
	return http.Header(s.part.Header)
}

func (s partSource) Cookie(string) (string, bool) {
	return "", false
}

func (s partSource) PathVar(string) (string, bool) {
	return "", false
}

func (s partSource) Body() io.Reader {
	return s.part
}

func (s partSource) ContentType() string {
	return s.part.Header.Get("Content-Type")
}

func (s partSource) MultipartReader() (*multipart.Reader, error) {
	mediaType, params, err := mime.ParseMediaType(s.ContentType())
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, http.ErrNotMultipart
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("no multipart boundary param in Content-Type")
	}
	return multipart.NewReader(s.part, boundary), nil
}
