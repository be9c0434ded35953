package openapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/reqbind/extract"
	"github.com/vitalvas/reqbind/view"
)

type specNote struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body,omitempty"`
}

type specUpload struct {
	Title string `json:"title"`
	File  []byte `json:"file"`
}

type sortOrder string

type specNoteView struct{}

func (specNoteView) Signature(method string) *extract.Signature {
	switch method {
	case http.MethodGet:
		return extract.NewSignature("getNote").
			Bare("self").
			Arg("id", extract.Param(extract.Int)).
			Returns(reflect.TypeFor[specNote]()).
			Doc("Get a note")
	case http.MethodDelete:
		return extract.NewSignature("deleteNote").
			Bare("self").
			Arg("id", extract.Param(extract.Int))
	}
	return nil
}

func (specNoteView) Get(http.ResponseWriter, *http.Request, *view.Args)    {}
func (specNoteView) Delete(http.ResponseWriter, *http.Request, *view.Args) {}

func noop(w http.ResponseWriter, _ *http.Request, _ *view.Args) {
	w.WriteHeader(http.StatusNoContent)
}

func testSpec() (*Spec, *view.Registry, *mux.Router) {
	reg := view.NewRegistry(view.Config{})
	spec := NewSpec(Info{Title: "Notes", Version: "1.0.0"}, reg)
	return spec, reg, mux.NewRouter()
}

func build(t *testing.T, spec *Spec, r *mux.Router) *Document {
	t.Helper()
	doc, err := spec.Build(r)
	require.NoError(t, err)
	return doc
}

func findParam(t *testing.T, op *Operation, name string) *Parameter {
	t.Helper()
	for _, p := range op.Parameters {
		if p.Name == name {
			return p
		}
	}
	require.Failf(t, "parameter not found", "%s", name)
	return nil
}

func TestNewSpec(t *testing.T) {
	spec, _, r := testSpec()
	spec.AddServer(Server{URL: "https://api.example.com", Description: "Production"}).
		AddServer(Server{URL: "http://localhost:8080"}).
		SetLogger(nil)

	doc := build(t, spec, r)
	assert.Equal(t, Version, doc.OpenAPI)
	assert.Equal(t, "Notes", doc.Info.Title)
	assert.Len(t, doc.Servers, 2)
	assert.Empty(t, doc.Paths)
	assert.Nil(t, doc.Components)
	assert.Empty(t, doc.Tags)
	assert.NotNil(t, spec.logger)
}

func TestBuildParameters(t *testing.T) {
	spec, reg, r := testSpec()
	h := reg.MustFunc(noop, extract.NewSignature("listNotes").
		Request("request").
		Arg("id", extract.Param(extract.Int)).
		Arg("limit", extract.Query(extract.Int, 20, extract.Description("Page size"), extract.Maximum(100))).
		Arg("q", extract.Param(extract.String, "", extract.MinLength(2))).
		Arg("trace", extract.Header(extract.UUID, extract.Name("X-Trace-Id"))).
		Arg("session", extract.Cookie(extract.String, nil, extract.Deprecated())).
		Arg("order", extract.Query(extract.Enum[sortOrder]("asc", "desc"), sortOrder("asc"))).
		Arg("day", extract.Query(extract.Date, nil, extract.ExampleValue("2024-05-01"))).
		Arg("wait", extract.Query(extract.Duration, time.Second)).
		Arg("tag", extract.Query(extract.String, nil, extract.Examples(map[string]extract.Example{
			"work": {Summary: "Work notes", Value: "work"},
		}))))
	r.Handle("/notes/{id:[0-9]+}", h).Methods(http.MethodGet).Name("listNotes")

	doc := build(t, spec, r)
	item := doc.Paths["/notes/{id}"]
	require.NotNil(t, item)
	op := item.Get
	require.NotNil(t, op)
	assert.Equal(t, "listNotes", op.OperationID)
	assert.Nil(t, op.RequestBody)
	require.Len(t, op.Parameters, 9)

	t.Run("path parameter", func(t *testing.T) {
		p := op.Parameters[0]
		assert.Equal(t, "id", p.Name)
		assert.Equal(t, "path", p.In)
		assert.True(t, p.Required)
		assert.Equal(t, TypeString("integer"), p.Schema.Type)
	})

	t.Run("query with default", func(t *testing.T) {
		p := findParam(t, op, "limit")
		assert.Equal(t, "query", p.In)
		assert.False(t, p.Required)
		assert.Equal(t, "Page size", p.Description)
		assert.Equal(t, 20, p.Schema.Default)
		require.NotNil(t, p.Schema.Maximum)
		assert.InDelta(t, 100.0, *p.Schema.Maximum, 0)
	})

	t.Run("param outside the path is a query", func(t *testing.T) {
		p := findParam(t, op, "q")
		assert.Equal(t, "query", p.In)
		assert.Equal(t, "", p.Schema.Default)
		require.NotNil(t, p.Schema.MinLength)
		assert.Equal(t, 2, *p.Schema.MinLength)
	})

	t.Run("aliased header", func(t *testing.T) {
		p := findParam(t, op, "X-Trace-Id")
		assert.Equal(t, "header", p.In)
		assert.True(t, p.Required)
		assert.Equal(t, "uuid", p.Schema.Format)
	})

	t.Run("cookie without documented default", func(t *testing.T) {
		p := findParam(t, op, "session")
		assert.Equal(t, "cookie", p.In)
		assert.False(t, p.Required)
		assert.True(t, p.Deprecated)
		assert.Nil(t, p.Schema.Default)
	})

	t.Run("enum", func(t *testing.T) {
		p := findParam(t, op, "order")
		assert.Equal(t, TypeString("string"), p.Schema.Type)
		assert.Equal(t, []any{"asc", "desc"}, p.Schema.Enum)
		assert.Equal(t, sortOrder("asc"), p.Schema.Default)
	})

	t.Run("formatted parser", func(t *testing.T) {
		p := findParam(t, op, "day")
		assert.Equal(t, TypeString("string"), p.Schema.Type)
		assert.Equal(t, "date", p.Schema.Format)
		assert.Equal(t, "2024-05-01", p.Example)
	})

	t.Run("duration", func(t *testing.T) {
		p := findParam(t, op, "wait")
		assert.Equal(t, "duration", p.Schema.Format)
		assert.Equal(t, "1s", p.Schema.Default)
	})

	t.Run("named examples", func(t *testing.T) {
		p := findParam(t, op, "tag")
		require.Contains(t, p.Examples, "work")
		assert.Equal(t, "Work notes", p.Examples["work"].Summary)
		assert.Equal(t, "work", p.Examples["work"].Value)
	})
}

func TestBuildRequestBody(t *testing.T) {
	tests := []struct {
		name        string
		extractor   extract.Extractor
		contentType string
		required    bool
		check       func(t *testing.T, s *Schema, doc *Document)
	}{
		{
			name:        "json model",
			extractor:   extract.JSON(reflect.TypeFor[specNote](), extract.Description("The note")),
			contentType: extract.ContentTypeJSON,
			required:    true,
			check: func(t *testing.T, s *Schema, doc *Document) {
				assert.Equal(t, "#/components/schemas/specNote", s.Ref)
				require.NotNil(t, doc.Components)
				assert.Contains(t, doc.Components.Schemas, "specNote")
			},
		},
		{
			name:        "optional json",
			extractor:   extract.JSON(reflect.TypeFor[*specNote](), nil),
			contentType: extract.ContentTypeJSON,
			check: func(t *testing.T, s *Schema, _ *Document) {
				require.Len(t, s.AnyOf, 2)
			},
		},
		{
			name:        "text",
			extractor:   extract.Text(extract.MaxLength(140)),
			contentType: extract.ContentTypeText,
			required:    true,
			check: func(t *testing.T, s *Schema, _ *Document) {
				assert.Equal(t, TypeString("string"), s.Type)
				require.NotNil(t, s.MaxLength)
				assert.Equal(t, 140, *s.MaxLength)
			},
		},
		{
			name:        "file upload",
			extractor:   extract.FileUpload(),
			contentType: extract.ContentTypeBinary,
			required:    true,
			check: func(t *testing.T, s *Schema, _ *Document) {
				assert.Equal(t, "binary", s.Format)
			},
		},
		{
			name:        "file upload reader",
			extractor:   extract.FileUploadReader(),
			contentType: extract.ContentTypeBinary,
			required:    true,
			check: func(t *testing.T, s *Schema, _ *Document) {
				assert.Equal(t, "binary", s.Format)
			},
		},
		{
			name:        "multiple file upload",
			extractor:   extract.MultipleFileUpload(reflect.TypeFor[specUpload]()),
			contentType: extract.ContentTypeFormData,
			required:    true,
			check: func(t *testing.T, s *Schema, doc *Document) {
				assert.Empty(t, s.Ref)
				assert.Equal(t, TypeString("object"), s.Type)
				assert.Equal(t, "binary", s.Properties["file"].Format)
				assert.Equal(t, TypeString("string"), s.Properties["title"].Type)
				// The component keeps the JSON encoding of the field.
				assert.Equal(t, "byte", doc.Components.Schemas["specUpload"].Properties["file"].Format)
			},
		},
		{
			name: "multipart",
			extractor: extract.MultiPart(
				extract.PartOf("title", extract.Text()),
				extract.PartOf("meta", extract.JSON(reflect.TypeFor[specNote]())),
				extract.PartOf("file", extract.FileUpload(extract.Bytes, nil, extract.Name("attachment"))),
			),
			contentType: extract.ContentTypeMultipart,
			required:    true,
			check: func(t *testing.T, s *Schema, _ *Document) {
				assert.Equal(t, TypeString("object"), s.Type)
				require.Len(t, s.Properties, 3)
				assert.Equal(t, TypeString("string"), s.Properties["title"].Type)
				assert.Equal(t, "#/components/schemas/specNote", s.Properties["meta"].Ref)
				assert.Equal(t, "binary", s.Properties["attachment"].Format)
				assert.Equal(t, []string{"title", "meta"}, s.Required)
			},
		},
		{
			name: "multipart reader",
			extractor: extract.MultiPartReader(
				extract.PartOf("file", extract.FileUploadReader()),
			),
			contentType: extract.ContentTypeMultipart,
			required:    true,
			check: func(t *testing.T, s *Schema, _ *Document) {
				assert.Equal(t, "binary", s.Properties["file"].Format)
				assert.Equal(t, []string{"file"}, s.Required)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, reg, r := testSpec()
			h := reg.MustFunc(noop, extract.NewSignature("upload").Arg("body", tt.extractor))
			r.Handle("/upload", h).Methods(http.MethodPost)

			doc := build(t, spec, r)
			op := doc.Paths["/upload"].Post
			require.NotNil(t, op)
			assert.Empty(t, op.Parameters)
			require.NotNil(t, op.RequestBody)
			assert.Equal(t, tt.required, op.RequestBody.Required)
			require.Contains(t, op.RequestBody.Content, tt.contentType)
			tt.check(t, op.RequestBody.Content[tt.contentType].Schema, doc)
		})
	}

	t.Run("body description and example", func(t *testing.T) {
		spec, reg, r := testSpec()
		h := reg.MustFunc(noop, extract.NewSignature("create").Arg("note",
			extract.JSON(reflect.TypeFor[specNote](), extract.Description("The note"), extract.ExampleValue(specNote{Title: "a"}))))
		r.Handle("/notes", h).Methods(http.MethodPost)

		body := build(t, spec, r).Paths["/notes"].Post.RequestBody
		assert.Equal(t, "The note", body.Description)
		assert.Equal(t, specNote{Title: "a"}, body.Content[extract.ContentTypeJSON].Example)
	})
}

func TestBuildResponses(t *testing.T) {
	tests := []struct {
		name        string
		returns     reflect.Type
		opts        []view.MetaOption
		status      string
		description string
		contentType string
		check       func(t *testing.T, s *Schema)
	}{
		{
			name:        "return type",
			returns:     reflect.TypeFor[specNote](),
			status:      "200",
			contentType: extract.ContentTypeJSON,
			check: func(t *testing.T, s *Schema) {
				assert.Equal(t, "#/components/schemas/specNote", s.Ref)
			},
		},
		{
			name:        "no return type",
			status:      "204",
			description: "OK",
		},
		{
			name:        "explicit status",
			returns:     reflect.TypeFor[[]specNote](),
			opts:        []view.MetaOption{view.Status(http.StatusCreated), view.ResponseDescription("Created")},
			status:      "201",
			description: "Created",
			contentType: extract.ContentTypeJSON,
			check: func(t *testing.T, s *Schema) {
				assert.Equal(t, TypeString("array"), s.Type)
			},
		},
		{
			name:        "explicit status without body",
			opts:        []view.MetaOption{view.Status(http.StatusAccepted)},
			status:      "202",
			description: "",
		},
		{
			name:    "response writer",
			returns: reflect.TypeFor[http.ResponseWriter](),
			status:  "200",
		},
		{
			name:    "unsupported type",
			returns: reflect.TypeFor[chan int](),
			status:  "200",
		},
		{
			name:        "custom content type",
			returns:     reflect.TypeFor[string](),
			opts:        []view.MetaOption{view.ContentType("text/plain")},
			status:      "200",
			contentType: "text/plain",
			check: func(t *testing.T, s *Schema) {
				assert.Equal(t, TypeString("string"), s.Type)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, reg, r := testSpec()
			sig := extract.NewSignature("get")
			if tt.returns != nil {
				sig.Returns(tt.returns)
			}
			r.Handle("/notes", reg.MustFunc(noop, sig, tt.opts...)).Methods(http.MethodGet)

			op := build(t, spec, r).Paths["/notes"].Get
			require.NotNil(t, op)
			require.Len(t, op.Responses, 1)
			resp := op.Responses[tt.status]
			require.NotNil(t, resp, "status %s", tt.status)
			assert.Equal(t, tt.description, resp.Description)

			if tt.contentType == "" {
				assert.Empty(t, resp.Content)
				return
			}
			require.Contains(t, resp.Content, tt.contentType)
			tt.check(t, resp.Content[tt.contentType].Schema)
		})
	}

	t.Run("unsupported type is logged", func(t *testing.T) {
		var buf bytes.Buffer
		spec, reg, r := testSpec()
		spec.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
		sig := extract.NewSignature("get").Returns(reflect.TypeFor[func()]())
		r.Handle("/notes", reg.MustFunc(noop, sig)).Methods(http.MethodGet)

		build(t, spec, r)
		assert.Contains(t, buf.String(), "cannot determine schema for return type")
	})
}

func TestBuildOperations(t *testing.T) {
	t.Run("summary and description", func(t *testing.T) {
		spec, reg, r := testSpec()
		sig := extract.NewSignature("list").Doc("List notes\n\nReturns notes\npage by page.\n")
		r.Handle("/notes", reg.MustFunc(noop, sig, view.Tags("notes", "public"), view.Deprecated())).
			Methods(http.MethodGet)

		op := build(t, spec, r).Paths["/notes"].Get
		assert.Equal(t, "List notes", op.Summary)
		assert.Equal(t, "Returns notes\npage by page.", op.Description)
		assert.Equal(t, []string{"notes", "public"}, op.Tags)
		assert.True(t, op.Deprecated)
		assert.Empty(t, op.OperationID)
	})

	t.Run("single paragraph", func(t *testing.T) {
		summary, description := splitDoc("  Ping  ")
		assert.Equal(t, "Ping", summary)
		assert.Empty(t, description)
	})

	t.Run("several methods", func(t *testing.T) {
		spec, reg, r := testSpec()
		sig := extract.NewSignature("save").Arg("id", extract.Param(extract.Int))
		r.Handle("/notes/{id}", reg.MustFunc(noop, sig)).
			Methods(http.MethodPut, http.MethodPatch).
			Name("saveNote")

		item := build(t, spec, r).Paths["/notes/{id}"]
		require.NotNil(t, item.Put)
		require.NotNil(t, item.Patch)
		assert.Nil(t, item.Get)
		assert.Equal(t, "saveNote_put", item.Put.OperationID)
		assert.Equal(t, "saveNote_patch", item.Operation(http.MethodPatch).OperationID)
	})

	t.Run("head is left out", func(t *testing.T) {
		spec, reg, r := testSpec()
		r.Handle("/notes", reg.MustFunc(noop, extract.NewSignature("list"))).
			Methods(http.MethodGet, http.MethodHead).
			Name("listNotes")

		item := build(t, spec, r).Paths["/notes"]
		assert.NotNil(t, item.Get)
		assert.Nil(t, item.Head)

		spec.IncludeHead(true)
		item = build(t, spec, r).Paths["/notes"]
		require.NotNil(t, item.Head)
		assert.Equal(t, "listNotes_head", item.Head.OperationID)
	})

	t.Run("route without methods is left out", func(t *testing.T) {
		spec, reg, r := testSpec()
		r.Handle("/any", reg.MustFunc(noop, extract.NewSignature("any")))
		assert.Empty(t, build(t, spec, r).Paths)
	})

	t.Run("foreign handlers are left out", func(t *testing.T) {
		spec, _, r := testSpec()
		r.HandleFunc("/health", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodGet)
		assert.Empty(t, build(t, spec, r).Paths)
	})

	t.Run("wrapped handlers", func(t *testing.T) {
		spec, reg, r := testSpec()
		h, err := reg.Wrap(http.NotFoundHandler())
		require.NoError(t, err)
		r.Handle("/legacy", h).Methods(http.MethodGet)

		op := build(t, spec, r).Paths["/legacy"].Get
		require.NotNil(t, op)
		assert.Empty(t, op.Parameters)
		assert.Contains(t, op.Responses, "204")
	})

	t.Run("class view", func(t *testing.T) {
		spec, reg, r := testSpec()
		r.Handle("/notes/{id}", reg.MustClass(specNoteView{})).Name("note")

		item := build(t, spec, r).Paths["/notes/{id}"]
		require.NotNil(t, item.Get)
		require.NotNil(t, item.Delete)
		assert.Nil(t, item.Put)

		assert.Equal(t, "note_get", item.Get.OperationID)
		assert.Equal(t, "Get a note", item.Get.Summary)
		assert.Contains(t, item.Get.Responses, "200")
		assert.Contains(t, item.Delete.Responses, "204")
		require.Len(t, item.Delete.Parameters, 1)
		assert.Equal(t, "path", item.Delete.Parameters[0].In)
	})

	t.Run("missing path binding", func(t *testing.T) {
		spec, reg, r := testSpec()
		r.Handle("/notes/{slug}", reg.MustFunc(noop, extract.NewSignature("get"))).Methods(http.MethodGet)

		_, err := spec.Build(r)
		require.Error(t, err)
		var serr *extract.SignatureError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, "get", serr.Handler)
		assert.Contains(t, err.Error(), `path parameter "slug"`)
	})
}

func TestBuildTags(t *testing.T) {
	spec, reg, r := testSpec()
	spec.AddTag(Tag{Name: "notes", Description: "Note management"}).
		AddTag(Tag{Name: "admin"})
	r.Handle("/notes", reg.MustFunc(noop, extract.NewSignature("list"), view.Tag("notes"))).Methods(http.MethodGet)
	r.Handle("/users", reg.MustFunc(noop, extract.NewSignature("users"), view.Tags("users", "notes"))).Methods(http.MethodGet)

	doc := build(t, spec, r)
	assert.Equal(t, []Tag{
		{Name: "admin"},
		{Name: "notes", Description: "Note management"},
		{Name: "users"},
	}, doc.Tags)
}

func TestOperationID(t *testing.T) {
	assert.Empty(t, operationID("", http.MethodGet, 2))
	assert.Equal(t, "list", operationID("list", http.MethodGet, 1))
	assert.Equal(t, "list_get", operationID("list", http.MethodGet, 3))
}

func TestOpenAPIPath(t *testing.T) {
	tests := []struct {
		template string
		want     string
	}{
		{"/notes", "/notes"},
		{"/notes/{id}", "/notes/{id}"},
		{"/notes/{id:[0-9]+}", "/notes/{id}"},
		{"/notes/{id:[0-9]+}/tags/{tag}", "/notes/{id}/tags/{tag}"},
		{"/codes/{code:[a-z]{2}}/info", "/codes/{code}/info"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.want, openAPIPath(tt.template))
		})
	}
}

func TestDocumentEncoding(t *testing.T) {
	spec, reg, r := testSpec()
	sig := extract.NewSignature("get").
		Arg("id", extract.Param(extract.Int)).
		Returns(reflect.TypeFor[*specNote]())
	r.Handle("/notes/{id}", reg.MustFunc(noop, sig)).Methods(http.MethodGet).Name("getNote")

	var buf bytes.Buffer
	require.NoError(t, spec.WriteJSON(&buf, r))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "3.1.0", out["openapi"])

	paths := out["paths"].(map[string]any)
	get := paths["/notes/{id}"].(map[string]any)["get"].(map[string]any)
	assert.Equal(t, "getNote", get["operationId"])

	content := get["responses"].(map[string]any)["200"].(map[string]any)["content"].(map[string]any)
	schema := content["application/json"].(map[string]any)["schema"].(map[string]any)
	assert.Len(t, schema["anyOf"], 2)

	note := out["components"].(map[string]any)["schemas"].(map[string]any)["specNote"].(map[string]any)
	assert.Equal(t, "object", note["type"])
	assert.Equal(t, []any{"title"}, note["required"])

	t.Run("errors", func(t *testing.T) {
		r.Handle("/broken/{slug}", reg.MustFunc(noop, extract.NewSignature("broken"))).Methods(http.MethodGet)
		assert.Error(t, spec.WriteJSON(io.Discard, r))
	})
}
