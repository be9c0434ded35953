package view

import (
	"fmt"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vitalvas/reqbind/extract"
)

// RouteInfo is what the registry knows about one handler on one route.
type RouteInfo struct {
	*extract.Resolution
	Inspect extract.InspectInfo
	Meta    Meta
}

// MethodInfo is the RouteInfo of one HTTP method of a route.
type MethodInfo struct {
	Method string
	RouteInfo
}

// Bind resolves the handler of route against the route's variables and
// checks that each variable is read by a Path binding. Binding at route
// setup moves resolution errors out of the request path. Routes whose
// handler was not created by a Registry are ignored.
func (reg *Registry) Bind(route *mux.Route) error {
	_, err := reg.Describe(route)
	return err
}

// Describe returns the resolved bindings of every documented method of
// route. It returns nil for routes whose handler was not created by a
// Registry.
//
// Function handlers are described for each method the route matches, and
// not at all when the route matches any method. Class views are described
// for each method they implement, restricted to the route's methods when it
// has some.
func (reg *Registry) Describe(route *mux.Route) ([]MethodInfo, error) {
	handler := route.GetHandler()
	if !IsOpenAPIHandler(handler) {
		return nil, nil
	}

	// Routes matched by host or headers only have no template and no
	// variables.
	template, _ := route.GetPathTemplate()
	names, err := pathVarNames(template)
	if err != nil {
		return nil, err
	}
	vars := extract.NewPathVars(names...)
	routeMethods, _ := route.GetMethods()

	var handlers []methodHandler
	switch h := handler.(type) {
	case *Handler:
		for _, m := range routeMethods {
			handlers = append(handlers, methodHandler{method: m, handler: h})
		}
		if len(routeMethods) == 0 {
			// Still resolve so that mistakes are reported.
			handlers = append(handlers, methodHandler{handler: h})
		}
	case *ClassView:
		for _, m := range h.Methods() {
			if len(routeMethods) > 0 && !containsMethod(routeMethods, m) {
				continue
			}
			handlers = append(handlers, methodHandler{method: m, handler: h.handlers[m]})
		}
	}

	var out []MethodInfo
	for _, mh := range handlers {
		res, err := mh.handler.Resolve(vars)
		if err != nil {
			return nil, err
		}
		if err := checkPathBindings(template, names, res); err != nil {
			return nil, withHandler(err, mh.handler.Name())
		}
		if mh.method == "" {
			continue
		}
		out = append(out, MethodInfo{
			Method: mh.method,
			RouteInfo: RouteInfo{
				Resolution: res,
				Inspect:    mh.handler.Info(),
				Meta:       mh.handler.Meta(),
			},
		})
	}
	return out, nil
}

type methodHandler struct {
	method  string
	handler *Handler
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func checkPathBindings(template string, names []string, res *extract.Resolution) error {
	bound := make(map[string]bool, len(res.Bindings))
	for _, b := range res.Bindings {
		if b.Extractor.Kind() == extract.KindPath {
			bound[b.Alias()] = true
		}
	}
	for _, name := range names {
		if !bound[name] {
			return &extract.SignatureError{Msg: fmt.Sprintf(
				"route %s has path parameter %q without declared extractor like `%s=Param(...)` or `ham=Param(..., Name(%q))`",
				template, name, name, name)}
		}
	}
	return nil
}

// pathVarNames returns the variable names of a gorilla/mux path template in
// order of appearance. Variables are written {name} or {name:pattern}, and
// patterns may contain balanced braces.
func pathVarNames(template string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	level, start := 0, 0
	for i := 0; i < len(template); i++ {
		switch template[i] {
		case '{':
			if level == 0 {
				start = i + 1
			}
			level++
		case '}':
			level--
			if level < 0 {
				return nil, fmt.Errorf("view: unbalanced braces in %q", template)
			}
			if level == 0 {
				name, _, _ := strings.Cut(template[start:i], ":")
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
	}
	if level != 0 {
		return nil, fmt.Errorf("view: unbalanced braces in %q", template)
	}
	return names, nil
}

// Walk binds every route of router. It stops at the first error.
func (reg *Registry) Walk(router *mux.Router) error {
	return router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		if route.GetHandler() == nil {
			return nil
		}
		return reg.Bind(route)
	})
}
