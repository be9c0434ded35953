package extract

import (
	"log/slog"
	"reflect"
	"sort"
	"strings"
)

// Binding assigns an extractor to a handler parameter.
type Binding struct {
	Name      string
	Extractor Extractor
}

// Alias is the wire name the binding reads.
func (b Binding) Alias() string {
	return aliasFor(b.Extractor, b.Name)
}

// Resolution is the outcome of resolving a signature: the extracted
// parameters and the parameters passed through positionally, both in
// declaration order.
type Resolution struct {
	Bindings  []Binding
	Unmatched []string
}

// Binding returns the binding of the parameter called name.
func (r *Resolution) Binding(name string) (Binding, bool) {
	for _, b := range r.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// Body returns the body binding, if any.
func (r *Resolution) Body() (Binding, bool) {
	for _, b := range r.Bindings {
		if b.Extractor.Kind().IsBody() {
			return b, true
		}
	}
	return Binding{}, false
}

// PathVars is the set of variable names in a route template.
type PathVars map[string]struct{}

// NewPathVars returns the set of the given names. The result is never nil,
// even when empty, so Param bindings are still rewritten to Query.
func NewPathVars(names ...string) PathVars {
	vars := make(PathVars, len(names))
	for _, n := range names {
		vars[n] = struct{}{}
	}
	return vars
}

func (p PathVars) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Names returns the variable names sorted.
func (p PathVars) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Key is a stable identifier of the set.
func (p PathVars) Key() string {
	if p == nil {
		return "\x00"
	}
	return strings.Join(p.Names(), "\x00")
}

// maxUnmatched is the number of positional pass-through parameters a
// handler may have: a receiver and a request.
const maxUnmatched = 2

var extractorType = reflect.TypeFor[Extractor]()

// Resolve turns the inspected signature into extractor bindings.
//
// pathVars are the variables of the route the handler serves. Param
// bindings whose wire name is a path variable become Path bindings and the
// rest become Query bindings. With nil pathVars, as outside any route,
// Param bindings are left as they are.
func Resolve(info InspectInfo, pathVars PathVars) (*Resolution, error) {
	res, err := resolve(info, pathVars)
	if err != nil {
		if serr, ok := err.(*SignatureError); ok && serr.Handler == "" {
			serr.Handler = info.Name
		}
		return nil, err
	}
	slog.Debug("resolved handler signature",
		slog.String("handler", info.Name),
		slog.Any("bindings", res.Bindings),
		slog.Any("unmatched", res.Unmatched))
	return res, nil
}

func resolve(info InspectInfo, pathVars PathVars) (*Resolution, error) {
	res := &Resolution{}
	var requestSeen, bodySeen string

	for _, p := range info.Params {
		if err := checkDeclaration(p); err != nil {
			return nil, err
		}

		if isRequestAnnotation(p.Annotation) {
			if requestSeen != "" {
				return nil, signatureErrorf("no more than one request parameter is allowed: %s, previous was %s", p.Name, requestSeen)
			}
			requestSeen = p.Name
			res.Unmatched = append(res.Unmatched, p.Name)
			continue
		}

		e := extractorFor(p.ParamInfo)
		if e == nil {
			if requestSeen != "" {
				return nil, signatureErrorf("parameters without annotation or default are not allowed after the request parameter %s: %s", requestSeen, p.Name)
			}
			res.Unmatched = append(res.Unmatched, p.Name)
			continue
		}
		if err := e.Err(); err != nil {
			return nil, signatureErrorf("parameter %s: %v", p.Name, err)
		}

		if e.Kind().IsBody() {
			if bodySeen != "" {
				return nil, signatureErrorf("more than one body parameter is not allowed: %s, previous was %s", p.Name, bodySeen)
			}
			bodySeen = p.Name
		}

		if s, ok := e.(*ScalarExtractor); ok && s.kind == KindParam && pathVars != nil {
			if pathVars.Has(aliasFor(s, p.Name)) {
				e = s.bind(KindPath)
			} else {
				e = s.bind(KindQuery)
			}
		}

		res.Bindings = append(res.Bindings, Binding{Name: p.Name, Extractor: e})
	}

	if len(res.Unmatched) > maxUnmatched {
		return nil, signatureErrorf("more than two params without annotation or default: %s", strings.Join(res.Unmatched, ","))
	}
	return res, nil
}

// extractorFor applies the resolution rules to one parameter. It returns
// nil for a parameter passed through positionally.
func extractorFor(p ParamInfo) Extractor {
	if e, ok := p.Default.(Extractor); ok {
		return e
	}

	def := p.Default
	var args []any
	if p.HasDefault() {
		args = append(args, def)
	}

	if p.HasAnnotation() {
		if t, ok := p.Annotation.(reflect.Type); ok && (IsModel(t) || isModelCollection(t)) {
			return JSON(append([]any{t}, args...)...)
		}
		return Param(append([]any{p.Annotation}, args...)...)
	}

	if !p.HasDefault() {
		return nil
	}
	if def != nil && IsModel(reflect.TypeOf(def)) {
		return JSON(def)
	}
	return Param(def)
}

func isRequestAnnotation(annotation any) bool {
	t, ok := annotation.(reflect.Type)
	return ok && t == RequestType
}

// checkDeclaration rejects extractor types and constructors used in place
// of extractor instances, and extractor instances used as annotations.
func checkDeclaration(p NamedParam) error {
	if e, ok := p.Annotation.(Extractor); ok {
		return signatureErrorf("please use %s as the default of %s instead of its annotation", e.Kind(), p.Name)
	}
	for _, item := range []any{p.Annotation, p.Default} {
		if isExtractorLike(item) {
			return signatureErrorf("usage of extractor types or constructors is not allowed for %s: %v; use an instance such as Param(Int)", p.Name, item)
		}
	}
	switch a := p.Annotation.(type) {
	case undefined, reflect.Type, Parser:
	default:
		return signatureErrorf("unsupported annotation of %s: %T", p.Name, a)
	}
	return nil
}

func isExtractorLike(v any) bool {
	if v == nil || isUndefined(v) {
		return false
	}
	if t, ok := v.(reflect.Type); ok {
		return t.Implements(extractorType) || (t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(extractorType))
	}
	t := reflect.TypeOf(v)
	if t.Kind() != reflect.Func {
		return false
	}
	for i := range t.NumOut() {
		if t.Out(i).Implements(extractorType) {
			return true
		}
	}
	return false
}
