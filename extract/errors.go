package extract

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RootField is the field path used when a whole body fails to decode.
const RootField = "__root__"

// FieldError is a single validation failure as written in error responses:
//
//	{"in": "query", "loc": ["offset"], "msg": "...", "type": "MissingValueError"}
type FieldError struct {
	In   string   `json:"in"`
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError is implemented by per-request errors that can be reported
// to the client as a list of field errors.
type ValidationError interface {
	error
	FieldErrors() []FieldError
}

// MissingValueError reports a required parameter absent from its source.
type MissingValueError struct {
	Name string
	In   Location
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("Parameter \"%s\" is required in %s", e.Name, e.In)
}

// FieldErrors implements ValidationError.
func (e *MissingValueError) FieldErrors() []FieldError {
	return []FieldError{{
		In:   e.In.String(),
		Loc:  []string{e.Name},
		Msg:  e.Error(),
		Type: "MissingValueError",
	}}
}

// WrongValueError reports a present value that failed to parse or validate.
// Err is the underlying parser or model error.
type WrongValueError struct {
	Name string
	In   Location
	Err  error
}

func (e *WrongValueError) Error() string {
	return e.Err.Error()
}

func (e *WrongValueError) Unwrap() error {
	return e.Err
}

// FieldErrors implements ValidationError. Model errors expand to one entry
// per offending field; any other cause yields a single entry carrying the
// cause's message and type name.
func (e *WrongValueError) FieldErrors() []FieldError {
	var modelErr *ModelError
	if errors.As(e.Err, &modelErr) {
		out := make([]FieldError, 0, len(modelErr.Fields))
		for _, f := range modelErr.Fields {
			out = append(out, FieldError{
				In:   e.In.String(),
				Loc:  append([]string(nil), f.Loc...),
				Msg:  f.Msg,
				Type: f.Type,
			})
		}
		return out
	}

	var valErrs validator.ValidationErrors
	if errors.As(e.Err, &valErrs) {
		return (&WrongValueError{Name: e.Name, In: e.In, Err: modelErrorFromValidator(valErrs, nil)}).FieldErrors()
	}

	return []FieldError{{
		In:   e.In.String(),
		Loc:  []string{e.Name},
		Msg:  e.Err.Error(),
		Type: errorTypeName(e.Err),
	}}
}

// ModelField is one field-level failure reported by structured model
// decoding or validation.
type ModelField struct {
	Loc  []string
	Msg  string
	Type string
}

// ModelError collects field-level failures of a structured model.
type ModelError struct {
	Fields []ModelField
}

func (e *ModelError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, strings.Join(f.Loc, ".")+": "+f.Msg)
	}
	return strings.Join(parts, "; ")
}

// ErrNullBody is reported at the body root when a required model body is
// the JSON literal null.
var ErrNullBody = errors.New("none is not an allowed value")

// EncodingError reports a body that is not valid in the expected text
// encoding.
type EncodingError struct {
	Encoding string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("body is not valid %s", e.Encoding)
}

// SignatureError reports an unsupported or ambiguous handler signature.
// It is raised once, when a handler is resolved, and never per request.
type SignatureError struct {
	Handler string
	Msg     string
}

func (e *SignatureError) Error() string {
	if e.Handler == "" {
		return "extract: " + e.Msg
	}
	return fmt.Sprintf("extract: cannot process %s: %s", e.Handler, e.Msg)
}

func signatureErrorf(format string, args ...any) *SignatureError {
	return &SignatureError{Msg: fmt.Sprintf(format, args...)}
}

// ProtocolError reports a request that does not conform to the wire
// protocol, for example a multipart part without a name. It aborts
// extraction instead of being collected with field errors.
type ProtocolError struct {
	Msg  string
	In   Location
	Type string
}

func (e *ProtocolError) Error() string {
	return e.Msg
}

// ExtractionErrors is the list of field errors collected while extracting
// the arguments of one request.
type ExtractionErrors []FieldError

func (e ExtractionErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fmt.Sprintf("%s %v: %s", fe.In, fe.Loc, fe.Msg))
	}
	return "extract: " + strings.Join(parts, "; ")
}

// FieldErrors implements ValidationError.
func (e ExtractionErrors) FieldErrors() []FieldError {
	return e
}

// errorTypeName derives the error kind reported to clients from the Go type
// of err. Plain errors created by errors.New or fmt.Errorf are reported
// as ValueError.
func errorTypeName(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.PkgPath() {
	case "errors", "fmt":
		return "ValueError"
	}
	if t.Name() == "" {
		return "ValueError"
	}
	return t.Name()
}
