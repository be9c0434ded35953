package openapi

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vitalvas/reqbind/view"
)

// Version is the OpenAPI version of built documents.
const Version = "3.1.0"

// Spec builds OpenAPI documents for the routes of a gorilla/mux router
// whose handlers were created by a view.Registry.
type Spec struct {
	info        Info
	registry    *view.Registry
	logger      *slog.Logger
	servers     []Server
	tags        []Tag
	includeHead bool
}

// NewSpec creates a spec builder. Routes are described through reg.
func NewSpec(info Info, reg *view.Registry) *Spec {
	return &Spec{
		info:     info,
		registry: reg,
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger receiving schema warnings.
func (s *Spec) SetLogger(logger *slog.Logger) *Spec {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// AddServer adds a server to the document.
func (s *Spec) AddServer(server Server) *Spec {
	s.servers = append(s.servers, server)
	return s
}

// AddTag adds a tag description. Tags used by operations are listed even
// without one.
func (s *Spec) AddTag(tag Tag) *Spec {
	s.tags = append(s.tags, tag)
	return s
}

// IncludeHead documents HEAD operations, which are left out by default.
func (s *Spec) IncludeHead(include bool) *Spec {
	s.includeHead = include
	return s
}

// Build walks the router and assembles the document. Routes whose handler
// was not created by a view.Registry are left out. Resolution errors of
// documented handlers are returned.
func (s *Spec) Build(r *mux.Router) (*Document, error) {
	gen := NewSchemaGenerator(s.logger)
	doc := &Document{
		OpenAPI: Version,
		Info:    s.info,
		Servers: s.servers,
		Paths:   make(map[string]*PathItem),
	}

	err := r.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		if !view.IsOpenAPIHandler(route.GetHandler()) {
			return nil
		}
		infos, err := s.registry.Describe(route)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			return nil
		}

		template, _ := route.GetPathTemplate()
		path := openAPIPath(template)
		pathItem, ok := doc.Paths[path]
		if !ok {
			pathItem = &PathItem{}
			doc.Paths[path] = pathItem
		}

		for _, info := range infos {
			if info.Method == http.MethodHead && !s.includeHead {
				continue
			}
			slot := pathItem.slot(info.Method)
			if slot == nil {
				continue
			}
			*slot = buildOperation(gen, s.logger, operationID(route.GetName(), info.Method, len(infos)), info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if schemas := gen.Schemas(); len(schemas) > 0 {
		doc.Components = &Components{Schemas: schemas}
	}
	doc.Tags = s.mergeTags(doc.Paths)
	return doc, nil
}

// operationID derives the operation id from the route name. Routes serving
// several methods get the method appended.
func operationID(name, method string, methods int) string {
	if name == "" || methods <= 1 {
		return name
	}
	return name + "_" + strings.ToLower(method)
}

// mergeTags lists the tags used by operations together with the declared
// ones, sorted by name. Declared tags keep their description.
func (s *Spec) mergeTags(paths map[string]*PathItem) []Tag {
	declared := make(map[string]Tag, len(s.tags))
	for _, tag := range s.tags {
		declared[tag.Name] = tag
	}

	seen := make(map[string]bool)
	var tags []Tag
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		if tag, ok := declared[name]; ok {
			tags = append(tags, tag)
			return
		}
		tags = append(tags, Tag{Name: name})
	}

	for _, item := range paths {
		for _, op := range item.operations() {
			if op == nil {
				continue
			}
			for _, name := range op.Tags {
				add(name)
			}
		}
	}
	for _, tag := range s.tags {
		add(tag.Name)
	}

	sort.Slice(tags, func(i, j int) bool {
		return tags[i].Name < tags[j].Name
	})
	return tags
}

// openAPIPath converts a gorilla/mux path template to an OpenAPI path by
// dropping variable patterns: "/notes/{id:[0-9]+}" gives "/notes/{id}".
func openAPIPath(template string) string {
	var b strings.Builder
	level := 0
	skipping := false
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			level++
			if level > 1 {
				continue
			}
		case '}':
			level--
			if level > 0 {
				continue
			}
			skipping = false
		case ':':
			if level == 1 {
				skipping = true
				continue
			}
		}
		if !skipping {
			b.WriteByte(c)
		}
	}
	return b.String()
}
