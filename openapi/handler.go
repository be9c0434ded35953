package openapi

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// HandleConfig configures the endpoints registered by Handle.
type HandleConfig struct {
	// Title of the docs page (default: the document title).
	Title string

	// JSONFilename is the path of the JSON document (default: "schema.json").
	// Relative paths are joined with the base path; absolute paths are used
	// as they are. "-" disables the endpoint.
	JSONFilename string

	// YAMLFilename is the path of the YAML document (default: "schema.yaml"),
	// with the same rules as JSONFilename.
	YAMLFilename string

	// DisableDocs disables the Swagger UI page.
	DisableDocs bool

	// SwaggerUIConfig holds extra SwaggerUIBundle options, rendered next to
	// url and dom_id, e.g. {"docExpansion": "none"}.
	//
	// See: https://swagger.io/docs/open-source-tools/swagger-ui/usage/configuration/
	SwaggerUIConfig map[string]any
}

func (cfg HandleConfig) jsonFilename() string {
	if cfg.JSONFilename == "" {
		return "schema.json"
	}
	return cfg.JSONFilename
}

func (cfg HandleConfig) yamlFilename() string {
	if cfg.YAMLFilename == "" {
		return "schema.yaml"
	}
	return cfg.YAMLFilename
}

func resolvePath(basePath, filename string) string {
	if strings.HasPrefix(filename, "/") {
		return filename
	}
	return basePath + "/" + filename
}

// Handle registers the document endpoints on r:
//
//	<basePath>/          Swagger UI (unless DisableDocs)
//	<basePath>/schema.json
//	<basePath>/schema.yaml
//
// cfg may be nil. The document is built on the first request to either
// endpoint and cached, so every route must be registered before serving.
func (s *Spec) Handle(r *mux.Router, basePath string, cfg *HandleConfig) {
	if cfg == nil {
		cfg = &HandleConfig{}
	}
	basePath = strings.TrimRight(basePath, "/")

	var jsonPath, yamlPath string
	if name := cfg.jsonFilename(); name != "-" {
		jsonPath = resolvePath(basePath, name)
		s.registerDocument(r, jsonPath, "application/json", marshalJSON)
	}
	if name := cfg.yamlFilename(); name != "-" {
		yamlPath = resolvePath(basePath, name)
		s.registerDocument(r, yamlPath, "application/x-yaml", marshalYAML)
	}

	specURL := jsonPath
	if specURL == "" {
		specURL = yamlPath
	}
	if !cfg.DisableDocs && specURL != "" {
		s.registerDocs(r, basePath, cfg, specURL)
	}
}

// registerDocument serves the document encoded by marshal. A build failure
// is logged once and answered with 500.
func (s *Spec) registerDocument(r *mux.Router, path, contentType string, marshal func(*Document) ([]byte, error)) {
	var (
		once     sync.Once
		data     []byte
		buildErr error
	)
	r.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() {
			var doc *Document
			doc, buildErr = s.Build(r)
			if buildErr == nil {
				data, buildErr = marshal(doc)
			}
			if buildErr != nil {
				s.logger.Error("failed to build OpenAPI document",
					slog.String("path", path),
					slog.Any("error", buildErr))
			}
		})
		if buildErr != nil {
			http.Error(w, "failed to build OpenAPI document", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}).Methods(http.MethodGet)
}

func marshalJSON(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func marshalYAML(doc *Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

// WriteJSON builds the document for r and writes it to w as indented JSON.
func (s *Spec) WriteJSON(w io.Writer, r *mux.Router) error {
	doc, err := s.Build(r)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func (s *Spec) registerDocs(r *mux.Router, basePath string, cfg *HandleConfig, specURL string) {
	title := cfg.Title
	if title == "" {
		title = s.info.Title
	}
	page := []byte(swaggerUIPage(title, specURL, cfg.SwaggerUIConfig))

	handler := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
	}
	if basePath == "" {
		r.HandleFunc("/", handler).Methods(http.MethodGet)
		return
	}
	r.HandleFunc(basePath, handler).Methods(http.MethodGet)
	r.HandleFunc(basePath+"/", handler).Methods(http.MethodGet)
}

func swaggerUIPage(title, specURL string, config map[string]any) string {
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var extra strings.Builder
	for _, k := range keys {
		v, err := json.Marshal(config[k])
		if err != nil {
			continue
		}
		fmt.Fprintf(&extra, ", %q: %s", k, v)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
<script>
SwaggerUIBundle({url: %q, dom_id: "#swagger-ui"%s});
</script>
</body>
</html>`, html.EscapeString(title), specURL, extra.String())
}
