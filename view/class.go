package view

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/vitalvas/reqbind/extract"
)

// classMethods maps handler method names to the HTTP methods they serve.
var classMethods = []struct {
	name   string
	method string
}{
	{"Get", http.MethodGet},
	{"Head", http.MethodHead},
	{"Post", http.MethodPost},
	{"Put", http.MethodPut},
	{"Patch", http.MethodPatch},
	{"Delete", http.MethodDelete},
	{"Options", http.MethodOptions},
	{"Trace", http.MethodTrace},
}

// Declarer is implemented by class view receivers declaring the parameters
// of their methods. A nil signature selects the default one, which passes
// the receiver and the request through.
type Declarer interface {
	Signature(method string) *extract.Signature
}

// ClassView serves one receiver whose methods named after HTTP methods
// handle the corresponding requests:
//
//	func (v *NoteView) Get(w http.ResponseWriter, r *http.Request, args *view.Args)
type ClassView struct {
	receiver any
	name     string
	handlers map[string]*Handler
	allow    string
}

// Class wraps receiver as a class view. Options apply to every method.
// Wrapping the same comparable receiver again returns the same view.
func (reg *Registry) Class(receiver any, opts ...MetaOption) (*ClassView, error) {
	rv := reflect.ValueOf(receiver)
	if !rv.IsValid() {
		return nil, &extract.SignatureError{Msg: "class view receiver is nil"}
	}
	cacheable := rv.Type().Comparable()
	if cacheable {
		if v, ok := reg.classes.Load(receiver); ok {
			return v.(*ClassView), nil
		}
	}

	name := rv.Type().String()
	cv := &ClassView{
		receiver: receiver,
		name:     name,
		handlers: make(map[string]*Handler),
	}
	declarer, _ := receiver.(Declarer)

	var allowed []string
	for _, m := range classMethods {
		mv := rv.MethodByName(m.name)
		if !mv.IsValid() {
			continue
		}
		fn, ok := mv.Interface().(func(http.ResponseWriter, *http.Request, *Args))
		if !ok {
			return nil, &extract.SignatureError{
				Handler: name + "." + m.name,
				Msg:     fmt.Sprintf("method has type %s, expected %s", mv.Type(), reflect.TypeFor[HandlerFunc]()),
			}
		}

		var sig *extract.Signature
		if declarer != nil {
			sig = declarer.Signature(m.method)
		}
		if sig == nil {
			sig = extract.NewSignature(name + "." + m.name).Bare("self").Request("request")
		}

		h, err := reg.Func(fn, sig, opts...)
		if err != nil {
			return nil, err
		}
		cv.handlers[m.method] = h
		allowed = append(allowed, m.method)
	}
	if len(allowed) == 0 {
		return nil, &extract.SignatureError{Handler: name, Msg: "class view has no HTTP method handlers"}
	}
	cv.allow = strings.Join(allowed, ", ")

	if cacheable {
		v, _ := reg.classes.LoadOrStore(receiver, cv)
		return v.(*ClassView), nil
	}
	return cv, nil
}

// MustClass is like Class but panics on error.
func (reg *Registry) MustClass(receiver any, opts ...MetaOption) *ClassView {
	cv, err := reg.Class(receiver, opts...)
	if err != nil {
		panic(err)
	}
	return cv
}

// Name is the receiver type name.
func (cv *ClassView) Name() string {
	return cv.name
}

// Methods returns the HTTP methods the view serves.
func (cv *ClassView) Methods() []string {
	methods := make([]string, 0, len(cv.handlers))
	for _, m := range classMethods {
		if _, ok := cv.handlers[m.method]; ok {
			methods = append(methods, m.method)
		}
	}
	return methods
}

// Handler returns the handler of an HTTP method.
func (cv *ClassView) Handler(method string) (*Handler, bool) {
	h, ok := cv.handlers[method]
	return h, ok
}

// ServeHTTP dispatches the request to the method handler.
func (cv *ClassView) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, ok := cv.handlers[r.Method]
	if !ok {
		w.Header().Set("Allow", cv.allow)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	h.serve(w, r, cv.receiver)
}
