package extract

import (
	"net/http"
	"reflect"
)

type undefined struct{}

func (undefined) String() string { return "Undefined" }

// Undefined marks an absent annotation or default value. A nil default is
// a real default.
var Undefined any = undefined{}

func isUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// RequestType is the annotation of a parameter receiving the live request.
var RequestType = reflect.TypeFor[*http.Request]()

// ParamInfo is the declared annotation and default of one handler
// parameter. Either may be Undefined.
type ParamInfo struct {
	Annotation any
	Default    any
}

func (p ParamInfo) HasAnnotation() bool { return !isUndefined(p.Annotation) }
func (p ParamInfo) HasDefault() bool    { return !isUndefined(p.Default) }

// IsRequest reports whether the parameter receives the live request.
func (p ParamInfo) IsRequest() bool { return isRequestAnnotation(p.Annotation) }

// NamedParam is a ParamInfo with its parameter name.
type NamedParam struct {
	Name string
	ParamInfo
}

// Signature declares the parameter list of a handler. Handlers are plain
// Go functions receiving their arguments by name, so the list that a
// dynamic language would read from the function itself is written out:
//
//	sig := extract.NewSignature("get_notes").
//		Request("request").
//		Arg("limit", extract.Query(extract.Int, 20)).
//		Typed("author", reflect.TypeFor[uuid.UUID]()).
//		Returns(reflect.TypeFor[[]Note]()).
//		Doc("List notes.")
type Signature struct {
	name    string
	params  []NamedParam
	returns reflect.Type
	doc     string
}

// NewSignature starts a signature for the handler called name. The name
// only appears in error messages.
func NewSignature(name string) *Signature {
	return &Signature{name: name}
}

// Arg adds a parameter with a default and no annotation.
func (s *Signature) Arg(name string, def any) *Signature {
	return s.TypedArg(name, Undefined, def)
}

// Typed adds a required parameter with an annotation.
func (s *Signature) Typed(name string, annotation any) *Signature {
	return s.TypedArg(name, annotation, Undefined)
}

// TypedArg adds a parameter with both an annotation and a default.
func (s *Signature) TypedArg(name string, annotation, def any) *Signature {
	if annotation == nil {
		annotation = Undefined
	}
	s.params = append(s.params, NamedParam{Name: name, ParamInfo: ParamInfo{Annotation: annotation, Default: def}})
	return s
}

// Bare adds a parameter with neither annotation nor default, such as a
// method receiver.
func (s *Signature) Bare(name string) *Signature {
	return s.TypedArg(name, Undefined, Undefined)
}

// Request adds a parameter receiving the live *http.Request.
func (s *Signature) Request(name string) *Signature {
	return s.TypedArg(name, RequestType, Undefined)
}

// Returns sets the type of the response payload.
func (s *Signature) Returns(t reflect.Type) *Signature {
	s.returns = t
	return s
}

// Doc sets the handler documentation. The first paragraph is the summary.
func (s *Signature) Doc(doc string) *Signature {
	s.doc = doc
	return s
}

// InspectInfo is the result of inspecting a signature.
type InspectInfo struct {
	Name    string
	Params  []NamedParam
	Returns reflect.Type
	Doc     string
}

// Param returns the parameter called name.
func (i InspectInfo) Param(name string) (ParamInfo, bool) {
	for _, p := range i.Params {
		if p.Name == name {
			return p.ParamInfo, true
		}
	}
	return ParamInfo{}, false
}

// Inspect returns the parameters of sig in declaration order together with
// its return type and documentation. It never fails; a nil signature has
// no parameters.
func Inspect(sig *Signature) InspectInfo {
	if sig == nil {
		return InspectInfo{}
	}
	return InspectInfo{
		Name:    sig.name,
		Params:  append([]NamedParam(nil), sig.params...),
		Returns: sig.returns,
		Doc:     sig.doc,
	}
}
