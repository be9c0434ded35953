package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"reflect"
)

// Part pairs a multipart sub-extractor with the handler-side name of the
// value it produces.
type Part struct {
	name      string
	extractor Extractor
}

// PartOf declares a named part of a multipart body. The wire part name is
// the extractor's Name option, or name when unset.
//
//	extract.MultiPart(
//		extract.PartOf("title", extract.Text()),
//		extract.PartOf("attachment", extract.FileUpload()),
//	)
func PartOf(name string, e Extractor) *Part {
	return &Part{name: name, extractor: e}
}

// Name is the handler-side name of the part value.
func (p *Part) Name() string { return p.name }

// Alias is the part name expected in Content-Disposition.
func (p *Part) Alias() string { return aliasFor(p.extractor, p.name) }

func (p *Part) Extractor() Extractor { return p.extractor }

// Extract runs the part's extractor against a single multipart part.
func (p *Part) Extract(ctx context.Context, part *multipart.Part) (any, error) {
	return p.extractor.Extract(ctx, PartSource(part), p.name)
}

// MultiPartReaderExtractor gives the handler a single-pass reader over the
// parts of a multipart body, each paired with its declared sub-extractor.
type MultiPartReaderExtractor struct {
	spec
	parts   []*Part
	byAlias map[string]*Part
}

// MultiPartReader declares a streamed multipart body. The handler argument
// is a *PartReader. Options may be mixed with parts.
func MultiPartReader(args ...any) *MultiPartReaderExtractor {
	e := &MultiPartReaderExtractor{}
	e.init(KindMultiPartReader, args)
	e.typ = reflect.TypeFor[*PartReader]()
	return e
}

func (e *MultiPartReaderExtractor) init(kind Kind, args []any) {
	var rest []any
	for _, arg := range args {
		if p, ok := arg.(*Part); ok {
			e.parts = append(e.parts, p)
			continue
		}
		rest = append(rest, arg)
	}
	if p := e.declare(kind, rest); p != nil || !e.required {
		e.fail("only parts and options are accepted")
	}

	e.byAlias = make(map[string]*Part, len(e.parts))
	for _, p := range e.parts {
		if p == nil || p.extractor == nil {
			e.fail("part without an extractor")
			continue
		}
		if err := p.extractor.Err(); err != nil {
			e.fail("part %q: %v", p.name, err)
		}
		if _, dup := e.byAlias[p.Alias()]; dup {
			e.fail("duplicate part %q", p.Alias())
		}
		e.byAlias[p.Alias()] = p
	}
}

// Parts returns the declared parts in declaration order.
func (e *MultiPartReaderExtractor) Parts() []*Part {
	return e.parts
}

// Lookup returns the part declared under the wire name alias.
func (e *MultiPartReaderExtractor) Lookup(alias string) (*Part, bool) {
	p, ok := e.byAlias[alias]
	return p, ok
}

func (e *MultiPartReaderExtractor) Extract(_ context.Context, src Source, _ string) (any, error) {
	return e.reader(src)
}

func (e *MultiPartReaderExtractor) reader(src Source) (*PartReader, error) {
	mr, err := src.MultipartReader()
	if err != nil {
		return nil, notMultipart(err)
	}
	return &PartReader{mr: mr, byAlias: e.byAlias}, nil
}

// PartReader iterates over the parts of one request body. It is bound to
// the request it was created for and can be consumed only once.
type PartReader struct {
	mr      *multipart.Reader
	byAlias map[string]*Part
}

// Next returns the next part and its declared sub-extractor, which is nil
// for undeclared parts. It returns io.EOF after the last part. Reading the
// next part invalidates the previous one.
func (r *PartReader) Next() (*multipart.Part, *Part, error) {
	p, err := r.mr.NextPart()
	if errors.Is(err, io.EOF) {
		return nil, nil, io.EOF
	}
	if err != nil {
		return nil, nil, malformedMultipart(err)
	}
	disposition := p.Header.Get("Content-Disposition")
	name := partName(disposition)
	if name == "" {
		return nil, nil, missingPartName(disposition)
	}
	return p, r.byAlias[name], nil
}

// MultiPartExtractor reads every part of a multipart body through its
// sub-extractor and collects the values.
type MultiPartExtractor struct {
	MultiPartReaderExtractor
}

// MultiPart declares a multipart body read eagerly into *MultipartValues.
// Parts that never arrive take their sub-extractor's default, or fail when
// it is required. Streaming sub-extractors such as FileUploadReader are
// only valid until the next part is read, so prefer MultiPartReader for
// them.
func MultiPart(args ...any) *MultiPartExtractor {
	e := &MultiPartExtractor{}
	e.init(KindMultiPart, args)
	e.typ = reflect.TypeFor[*MultipartValues]()
	return e
}

func (e *MultiPartExtractor) Extract(ctx context.Context, src Source, _ string) (any, error) {
	r, err := e.reader(src)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(e.parts))
	for {
		raw, part, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if part == nil {
			return nil, &ProtocolError{
				Msg:  fmt.Sprintf("Unexpected part: %s", partName(raw.Header.Get("Content-Disposition"))),
				In:   LocationMultipart,
				Type: "WrongValueError",
			}
		}
		v, err := part.Extract(ctx, raw)
		if err != nil {
			var verr ValidationError
			if errors.As(err, &verr) {
				return nil, &partError{alias: part.Alias(), cause: verr}
			}
			return nil, err
		}
		values[part.name] = v
	}

	var missing ExtractionErrors
	for _, p := range e.parts {
		if _, ok := values[p.name]; ok {
			continue
		}
		if p.extractor.Required() {
			missing = append(missing, (&MissingValueError{Name: p.Alias(), In: LocationMultipart}).FieldErrors()...)
			continue
		}
		values[p.name] = p.extractor.Default()
	}
	if len(missing) > 0 {
		return nil, missing
	}

	names := make([]string, len(e.parts))
	for i, p := range e.parts {
		names[i] = p.name
	}
	return &MultipartValues{names: names, values: values}, nil
}

// partError reports a sub-extractor failure under the multipart location,
// with the part name leading each field path.
type partError struct {
	alias string
	cause ValidationError
}

func (e *partError) Error() string {
	return fmt.Sprintf("part %q: %v", e.alias, e.cause)
}

func (e *partError) Unwrap() error {
	return e.cause
}

func (e *partError) FieldErrors() []FieldError {
	inner := e.cause.FieldErrors()
	out := make([]FieldError, 0, len(inner))
	for _, fe := range inner {
		loc := []string{e.alias}
		for _, l := range fe.Loc {
			if l != RootField && l != e.alias {
				loc = append(loc, l)
			}
		}
		out = append(out, FieldError{
			In:   LocationMultipart.String(),
			Loc:  loc,
			Msg:  fe.Msg,
			Type: fe.Type,
		})
	}
	return out
}

// MultipartValues holds the values of a MultiPart body keyed by the
// handler-side part names.
type MultipartValues struct {
	names  []string
	values map[string]any
}

// Get returns the value of the named part, or nil.
func (v *MultipartValues) Get(name string) any {
	return v.values[name]
}

// Lookup returns the value of the named part and whether it was declared.
func (v *MultipartValues) Lookup(name string) (any, bool) {
	val, ok := v.values[name]
	return val, ok
}

// Names returns the part names in declaration order.
func (v *MultipartValues) Names() []string {
	return v.names
}

func (v *MultipartValues) Len() int {
	return len(v.names)
}
