package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/reqbind/extract"
)

type noteInput struct {
	Title  string `json:"title" validate:"required"`
	Rating int    `json:"rating" validate:"gte=0,lte=5"`
}

func serve(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, body))
	return w
}

func decodeFieldErrors(t *testing.T, w *httptest.ResponseRecorder) []extract.FieldError {
	t.Helper()
	var out []extract.FieldError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// echo writes the extracted arguments back as JSON.
func echo(names ...string) HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request, args *Args) {
		out := make(map[string]any, len(names))
		for _, n := range names {
			out[n] = args.Value(n)
		}
		WriteJSON(w, http.StatusOK, out)
	}
}

func TestFunc(t *testing.T) {
	t.Run("extracts arguments", func(t *testing.T) {
		reg := NewRegistry(Config{})
		h := reg.MustFunc(echo("limit", "q"), extract.NewSignature("list").
			Request("request").
			Arg("limit", extract.Query(extract.Int, 20)).
			Arg("q", extract.Query(extract.String)))

		r := mux.NewRouter()
		r.Handle("/notes", h).Methods(http.MethodGet)

		w := serve(r, http.MethodGet, "/notes?q=go", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"limit": 20, "q": "go"}`, w.Body.String())
	})

	t.Run("passes request positionally", func(t *testing.T) {
		reg := NewRegistry(Config{})
		var got []any
		h := reg.MustFunc(func(w http.ResponseWriter, r *http.Request, args *Args) {
			got = args.Positional()
			assert.Same(t, r, args.Value("request"))
			w.WriteHeader(http.StatusNoContent)
		}, extract.NewSignature("ping").Request("request"))

		w := serve(h, http.MethodGet, "/ping", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		require.Len(t, got, 1)
		assert.IsType(t, &http.Request{}, got[0])
	})

	t.Run("reports all field errors", func(t *testing.T) {
		reg := NewRegistry(Config{})
		called := false
		h := reg.MustFunc(func(http.ResponseWriter, *http.Request, *Args) { called = true },
			extract.NewSignature("list").
				Arg("offset", extract.Query(extract.Int)).
				Arg("limit", extract.Query(extract.Int, 20)).
				Arg("trace", extract.Header(extract.String, extract.Name("X-Trace-Id"))))

		w := serve(h, http.MethodGet, "/notes?limit=many", nil)
		assert.False(t, called)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		errs := decodeFieldErrors(t, w)
		require.Len(t, errs, 3)
		assert.Equal(t, extract.FieldError{
			In:   "query",
			Loc:  []string{"offset"},
			Msg:  `Parameter "offset" is required in query`,
			Type: "MissingValueError",
		}, errs[0])
		assert.Equal(t, "query", errs[1].In)
		assert.Equal(t, []string{"limit"}, errs[1].Loc)
		assert.Equal(t, "NumError", errs[1].Type)
		assert.Equal(t, "header", errs[2].In)
		assert.Equal(t, []string{"X-Trace-Id"}, errs[2].Loc)
	})

	t.Run("model body errors", func(t *testing.T) {
		reg := NewRegistry(Config{})
		h := reg.MustFunc(echo("note"), extract.NewSignature("create").
			Typed("note", reflect.TypeFor[noteInput]()))

		w := serve(h, http.MethodPost, "/notes", strings.NewReader(`{"rating": 9}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		errs := decodeFieldErrors(t, w)
		require.Len(t, errs, 2)
		assert.Equal(t, "body (json)", errs[0].In)
		assert.Equal(t, []string{"title"}, errs[0].Loc)
		assert.Equal(t, "field required", errs[0].Msg)
		assert.Equal(t, []string{"rating"}, errs[1].Loc)
	})

	t.Run("model body", func(t *testing.T) {
		reg := NewRegistry(Config{})
		var got noteInput
		h := reg.MustFunc(func(w http.ResponseWriter, _ *http.Request, args *Args) {
			got = Get[noteInput](args, "note")
			w.WriteHeader(http.StatusCreated)
		}, extract.NewSignature("create").Typed("note", reflect.TypeFor[noteInput]()))

		w := serve(h, http.MethodPost, "/notes", strings.NewReader(`{"title": "hello", "rating": 4}`))
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, noteInput{Title: "hello", Rating: 4}, got)
	})

	t.Run("custom error status", func(t *testing.T) {
		reg := NewRegistry(Config{ErrorStatus: http.StatusUnprocessableEntity})
		h := reg.MustFunc(echo("id"), extract.NewSignature("get").Arg("id", extract.Query(extract.UUID)))

		w := serve(h, http.MethodGet, "/note?id=nope", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("signature errors surface at declaration", func(t *testing.T) {
		reg := NewRegistry(Config{})
		_, err := reg.Func(echo(), extract.NewSignature("broken").
			Arg("a", extract.JSON(reflect.TypeFor[noteInput]())).
			Arg("b", extract.Text()))

		var serr *extract.SignatureError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "broken", serr.Handler)
		assert.Contains(t, serr.Msg, "more than one body parameter")

		assert.Panics(t, func() {
			reg.MustFunc(echo(), extract.NewSignature("broken").Bare("a").Bare("b").Bare("c"))
		})
	})

	t.Run("conflicting tags", func(t *testing.T) {
		reg := NewRegistry(Config{})
		_, err := reg.Func(echo(), extract.NewSignature("tagged"), Tag("a"), Tags("b", "c"))

		var serr *extract.SignatureError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "extract: cannot process tagged: cannot use both Tag and Tags", serr.Error())
	})
}

func multipartRequest(t *testing.T, target string, parts map[string]string) *http.Request {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for name, value := range parts {
		require.NoError(t, mw.WriteField(name, value))
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, target, buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestProtocolErrors(t *testing.T) {
	reg := NewRegistry(Config{})
	h := reg.MustFunc(func(w http.ResponseWriter, _ *http.Request, args *Args) {
		values := Get[*extract.MultipartValues](args, "form")
		_, _ = fmt.Fprint(w, values.Get("title"))
	}, extract.NewSignature("upload").
		Arg("form", extract.MultiPart(extract.PartOf("title", extract.Text()))))

	t.Run("accepts declared parts", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, multipartRequest(t, "/upload", map[string]string{"title": "hello"}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello", w.Body.String())
	})

	t.Run("unexpected part", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, multipartRequest(t, "/upload", map[string]string{"other": "x"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"msg": "Unexpected part: other", "in": "body (multipart)", "type": "WrongValueError"}`, w.Body.String())
	})

	t.Run("not multipart", func(t *testing.T) {
		w := serve(h, http.MethodPost, "/upload", strings.NewReader("plain"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "body (multipart)", body["in"])
		assert.True(t, strings.HasPrefix(body["msg"], "Expected a multipart body"))
	})
}

func TestWrap(t *testing.T) {
	reg := NewRegistry(Config{})

	t.Run("idempotent", func(t *testing.T) {
		h := reg.MustFunc(echo(), extract.NewSignature("h").Request("request"))

		wrapped, err := reg.Wrap(h)
		require.NoError(t, err)
		assert.Same(t, h, wrapped)
	})

	t.Run("plain handler", func(t *testing.T) {
		plain := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
		assert.False(t, IsOpenAPIHandler(plain))

		wrapped, err := reg.Wrap(plain, Tag("legacy"))
		require.NoError(t, err)
		assert.True(t, IsOpenAPIHandler(wrapped))

		h := wrapped.(*Handler)
		res, err := h.Resolve(nil)
		require.NoError(t, err)
		assert.Empty(t, res.Bindings)
		assert.Equal(t, []string{"request"}, res.Unmatched)
		assert.Equal(t, []string{"legacy"}, h.Meta().Tags)

		w := serve(wrapped, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})
}

func TestResolveMemo(t *testing.T) {
	reg := NewRegistry(Config{})
	h := reg.MustFunc(echo(), extract.NewSignature("get").Arg("id", extract.Param(extract.Int)))

	first, err := h.Resolve(extract.NewPathVars("id"))
	require.NoError(t, err)
	again, err := h.Resolve(extract.NewPathVars("id"))
	require.NoError(t, err)
	assert.Same(t, first, again)

	query, err := h.Resolve(extract.NewPathVars())
	require.NoError(t, err)
	assert.NotSame(t, first, query)
	assert.Equal(t, extract.KindPath, first.Bindings[0].Extractor.Kind())
	assert.Equal(t, extract.KindQuery, query.Bindings[0].Extractor.Kind())
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	reg := NewRegistry(Config{Registerer: registry})
	h := reg.MustFunc(echo("limit"), extract.NewSignature("list").
		Arg("limit", extract.Query(extract.Int)))

	serve(h, http.MethodGet, "/notes?limit=5", nil)
	serve(h, http.MethodGet, "/notes", nil)
	serve(h, http.MethodGet, "/notes?limit=x", nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(reg.metrics.validationFailures.WithLabelValues("query")))
	assert.Equal(t, float64(0), testutil.ToFloat64(reg.metrics.protocolViolations))
	assert.Equal(t, 2, testutil.CollectAndCount(reg.metrics.extractionDuration))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "reqbind_extraction_duration_seconds")
	assert.Contains(t, names, "reqbind_validation_failures_total")
}
