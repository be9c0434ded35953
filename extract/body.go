package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"reflect"
	"strings"
	"unicode/utf8"
)

// JSONExtractor decodes the request body as JSON into its Type. Models are
// validated after decoding.
type JSONExtractor struct {
	spec
}

// JSON declares a JSON body. The first argument is the target type, or a
// default value whose type is used:
//
//	extract.JSON(reflect.TypeFor[Note]())
//	extract.JSON(reflect.TypeFor[*Note](), nil)
func JSON(args ...any) *JSONExtractor {
	e := &JSONExtractor{}
	switch p := e.declare(KindJSON, args).(type) {
	case reflect.Type:
		e.typ = p
	case Parser:
		e.fail("a JSON body is decoded into a type, got parser for %s", p.Type())
	default:
		switch {
		case e.required:
			e.fail("at least one argument needed: type or default")
		case e.def == nil:
			e.fail("cannot infer a type from a nil default")
		default:
			e.typ = reflect.TypeOf(e.def)
		}
	}
	return e
}

func (e *JSONExtractor) Extract(_ context.Context, src Source, _ string) (any, error) {
	data, err := io.ReadAll(src.Body())
	if err != nil {
		return nil, &WrongValueError{Name: RootField, In: LocationJSON, Err: err}
	}
	if !e.required && len(bytes.TrimSpace(data)) == 0 {
		return e.def, nil
	}
	if !utf8.Valid(data) {
		return nil, &WrongValueError{Name: RootField, In: LocationJSON, Err: &EncodingError{Encoding: "utf-8"}}
	}
	v, err := decodeJSON(data, e.typ)
	if err != nil {
		return nil, &WrongValueError{Name: RootField, In: LocationJSON, Err: err}
	}
	if e.required && isNilModel(v) {
		return nil, &WrongValueError{Name: RootField, In: LocationJSON, Err: ErrNullBody}
	}
	return v, nil
}

// isNilModel reports whether v is a nil pointer to a structured model, as
// decoded from a JSON null.
func isNilModel(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil() && IsModel(rv.Type())
}

// TextExtractor reads the whole body as UTF-8 text and parses it.
type TextExtractor struct {
	spec
}

// Text declares a text body. Without a parser the text is returned as is.
func Text(args ...any) *TextExtractor {
	e := &TextExtractor{}
	p := e.declare(KindText, args)
	if p == nil && e.required {
		p = String
	}
	e.scalarParser(p)
	return e
}

func (e *TextExtractor) Extract(_ context.Context, src Source, _ string) (any, error) {
	data, err := io.ReadAll(src.Body())
	if err != nil {
		return nil, &WrongValueError{Name: RootField, In: LocationText, Err: err}
	}
	if !e.required && len(data) == 0 {
		return e.def, nil
	}
	if !utf8.Valid(data) {
		return nil, &WrongValueError{Name: RootField, In: LocationText, Err: &EncodingError{Encoding: "utf-8"}}
	}
	v, err := e.parser.Parse(string(data))
	if err != nil {
		return nil, &WrongValueError{Name: RootField, In: LocationText, Err: err}
	}
	return v, nil
}

// FileExtractor reads the whole body into memory.
type FileExtractor struct {
	spec
}

// FileUpload declares a binary body. Without a parser the raw bytes are
// returned.
func FileUpload(args ...any) *FileExtractor {
	e := &FileExtractor{}
	p := e.declare(KindFileUpload, args)
	if p == nil && e.required {
		p = Bytes
	}
	e.scalarParser(p)
	return e
}

func (e *FileExtractor) Extract(_ context.Context, src Source, _ string) (any, error) {
	data, err := io.ReadAll(src.Body())
	if err != nil {
		return nil, &WrongValueError{Name: RootField, In: LocationBinary, Err: err}
	}
	if !e.required && len(data) == 0 {
		return e.def, nil
	}
	v, err := e.parser.Parse(string(data))
	if err != nil {
		return nil, &WrongValueError{Name: RootField, In: LocationBinary, Err: err}
	}
	return v, nil
}

// FileReaderExtractor hands the body stream to the handler without
// buffering it. The reader is only valid while the request is served.
type FileReaderExtractor struct {
	spec
}

// FileUploadReader declares a streamed binary body. The handler argument is
// an io.Reader.
func FileUploadReader(opts ...Option) *FileReaderExtractor {
	e := &FileReaderExtractor{}
	args := make([]any, len(opts))
	for i, opt := range opts {
		args[i] = opt
	}
	e.declare(KindFileUploadReader, args)
	e.typ = reflect.TypeFor[io.Reader]()
	return e
}

func (e *FileReaderExtractor) Extract(_ context.Context, src Source, _ string) (any, error) {
	return src.Body(), nil
}

// FormExtractor flattens a multipart form into one structured value.
type FormExtractor struct {
	spec
}

// MultipleFileUpload declares a multipart form decoded into a model or a
// map[string]any. Each part's value type follows its Content-Type:
// text/plain parts are text, application/json parts are decoded JSON and
// any other part is raw bytes.
func MultipleFileUpload(args ...any) *FormExtractor {
	e := &FormExtractor{}
	switch p := e.declare(KindMultipleFileUpload, args).(type) {
	case reflect.Type:
		e.typ = p
	case Parser:
		e.fail("a form is decoded into a type, got parser for %s", p.Type())
	default:
		if e.def == nil {
			e.fail("at least one argument needed: type or default")
			return e
		}
		e.typ = reflect.TypeOf(e.def)
	}
	if e.typ != nil && !IsModel(e.typ) && e.typ.Kind() != reflect.Map {
		e.fail("a form is decoded into a struct or map, got %s", e.typ)
	}
	return e
}

func (e *FormExtractor) Extract(_ context.Context, src Source, _ string) (any, error) {
	mr, err := src.MultipartReader()
	if err != nil {
		return nil, notMultipart(err)
	}

	text := url.Values{}
	other := map[string]any{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformedMultipart(err)
		}
		name := partName(part.Header.Get("Content-Disposition"))
		if name == "" {
			return nil, missingPartName(part.Header.Get("Content-Disposition"))
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return nil, &WrongValueError{Name: name, In: LocationMultipart, Err: err}
		}
		switch partValueKind(part.Header.Get("Content-Type")) {
		case KindText:
			if !utf8.Valid(data) {
				return nil, &WrongValueError{Name: name, In: LocationMultipart, Err: &EncodingError{Encoding: "utf-8"}}
			}
			text.Add(name, string(data))
		case KindJSON:
			if !json.Valid(data) {
				return nil, &WrongValueError{Name: name, In: LocationMultipart, Err: errors.New("part is not valid JSON")}
			}
			other[name] = json.RawMessage(data)
		default:
			other[name] = data
		}
	}

	var v any
	if IsModel(e.typ) {
		v, err = decodeForm(e.typ, text, other)
	} else {
		for name, values := range text {
			if len(values) == 1 {
				other[name] = values[0]
			} else {
				other[name] = values
			}
		}
		v, err = roundTrip(other, e.typ)
	}
	if err != nil {
		return nil, &WrongValueError{Name: RootField, In: LocationMultipart, Err: err}
	}
	return v, nil
}

func roundTrip(data map[string]any, t reflect.Type) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return decodeJSON(raw, t)
}

// partValueKind picks how a form part is read from its media type.
func partValueKind(contentType string) Kind {
	if contentType == "" {
		return KindText
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindFileUpload
	}
	switch {
	case mediaType == ContentTypeText:
		return KindText
	case mediaType == ContentTypeJSON, strings.HasSuffix(mediaType, "+json"):
		return KindJSON
	}
	return KindFileUpload
}

// partName returns the name parameter of a Content-Disposition header.
func partName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["name"]
}

func missingPartName(disposition string) *ProtocolError {
	return &ProtocolError{
		Msg:  fmt.Sprintf("Name is required in Content-Disposition header, got %s", disposition),
		In:   LocationMultipart,
		Type: "MissingValueError",
	}
}

func notMultipart(err error) *ProtocolError {
	return &ProtocolError{
		Msg:  fmt.Sprintf("Expected a multipart body: %v", err),
		In:   LocationMultipart,
		Type: "WrongValueError",
	}
}

func malformedMultipart(err error) *ProtocolError {
	return &ProtocolError{
		Msg:  fmt.Sprintf("Malformed multipart body: %v", err),
		In:   LocationMultipart,
		Type: "WrongValueError",
	}
}
