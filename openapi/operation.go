package openapi

import (
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/vitalvas/reqbind/extract"
	"github.com/vitalvas/reqbind/view"
)

// Documented response defaults.
const (
	statusWithBody    = http.StatusOK
	statusWithoutBody = http.StatusNoContent

	descriptionWithoutBody = "OK"
)

var (
	responseWriterType = reflect.TypeFor[http.ResponseWriter]()
	readerType         = reflect.TypeFor[io.Reader]()
)

// enumValues is implemented by enumeration parsers.
type enumValues interface {
	Values() []string
}

// partLister is implemented by multipart extractors.
type partLister interface {
	Parts() []*extract.Part
}

func buildOperation(gen *SchemaGenerator, logger *slog.Logger, id string, info view.MethodInfo) *Operation {
	op := &Operation{
		OperationID: id,
		Tags:        info.Meta.Tags,
		Deprecated:  info.Meta.Deprecated,
		Responses:   buildResponses(gen, logger, info.Meta, info.Inspect.Returns),
	}
	op.Summary, op.Description = splitDoc(info.Inspect.Doc)

	for _, b := range info.Bindings {
		e := b.Extractor
		if e.Kind().IsBody() {
			op.RequestBody = &RequestBody{
				Description: e.Extra().Description,
				Required:    e.Required(),
				Content: map[string]*MediaType{
					e.ContentType(): bodyMediaType(gen, e),
				},
			}
			continue
		}
		op.Parameters = append(op.Parameters, buildParameter(gen, b))
	}
	return op
}

// splitDoc returns the first paragraph of doc as summary and the rest as
// description.
func splitDoc(doc string) (summary, description string) {
	summary, description, _ = strings.Cut(doc, "\n\n")
	return strings.TrimSpace(summary), strings.TrimSpace(description)
}

func buildParameter(gen *SchemaGenerator, b extract.Binding) *Parameter {
	e := b.Extractor
	extra := e.Extra()
	p := &Parameter{
		Name:            b.Alias(),
		In:              e.Location().String(),
		Description:     extra.Description,
		Required:        e.Required() || e.Kind() == extract.KindPath,
		Deprecated:      extra.Deprecated,
		AllowEmptyValue: extra.AllowEmptyValue,
		Schema:          parameterSchema(gen, e),
		Example:         extra.Example,
	}
	if len(extra.Examples) > 0 {
		p.Examples = make(map[string]*Example, len(extra.Examples))
		for name, ex := range extra.Examples {
			p.Examples[name] = &Example{Summary: ex.Summary, Description: ex.Description, Value: ex.Value}
		}
	}
	return p
}

// parameterSchema describes the values a scalar extractor parses.
func parameterSchema(gen *SchemaGenerator, e extract.Extractor) *Schema {
	var schema *Schema
	if enum, ok := e.Parser().(enumValues); ok {
		schema = &Schema{Type: TypeString("string")}
		for _, v := range enum.Values() {
			schema.Enum = append(schema.Enum, v)
		}
	} else {
		schema = scalarSchema(gen, e.Parser())
	}

	if e.HasSchemaDefault() {
		schema.Default = e.Default()
		if d, ok := schema.Default.(time.Duration); ok {
			schema.Default = d.String()
		}
	}
	applyExtra(schema, e.Extra())
	return schema
}

// scalarSchema describes a value parsed from text: durations are written
// as "1m30s" and formatted parsers such as dates carry their format.
func scalarSchema(gen *SchemaGenerator, p extract.Parser) *Schema {
	if p == nil {
		return &Schema{Type: TypeString("string")}
	}
	t := p.Type()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	var schema *Schema
	switch {
	case t == durationType:
		schema = &Schema{Type: TypeString("string"), Format: "duration"}
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		schema = &Schema{Type: TypeString("string"), Format: "binary"}
	case t.Kind() == reflect.Struct && t != timeType:
		// Text unmarshalers read their own format.
		schema = &Schema{Type: TypeString("string")}
	default:
		schema = gen.Generate(t)
	}
	if f, ok := p.(extract.Formatter); ok {
		schema.Format = f.Format()
	}
	return schema
}

func applyExtra(schema *Schema, extra extract.Extra) {
	schema.Minimum = extra.Minimum
	schema.Maximum = extra.Maximum
	schema.ExclusiveMinimum = extra.ExclusiveMinimum
	schema.ExclusiveMaximum = extra.ExclusiveMaximum
	schema.MinLength = extra.MinLength
	schema.MaxLength = extra.MaxLength
	if extra.Pattern != "" {
		schema.Pattern = extra.Pattern
	}
}

func bodyMediaType(gen *SchemaGenerator, e extract.Extractor) *MediaType {
	mt := &MediaType{Schema: bodySchema(gen, e)}
	extra := e.Extra()
	mt.Example = extra.Example
	if len(extra.Examples) > 0 {
		mt.Examples = make(map[string]*Example, len(extra.Examples))
		for name, ex := range extra.Examples {
			mt.Examples[name] = &Example{Summary: ex.Summary, Description: ex.Description, Value: ex.Value}
		}
	}
	return mt
}

// bodySchema describes the payload of a body extractor. Multipart readers
// are objects with one property per declared part.
func bodySchema(gen *SchemaGenerator, e extract.Extractor) *Schema {
	if parts, ok := e.(partLister); ok && e.Kind().IsMultipart() {
		schema := &Schema{Type: TypeString("object"), Properties: make(map[string]*Schema)}
		for _, part := range parts.Parts() {
			schema.Properties[part.Alias()] = bodySchema(gen, part.Extractor())
			if part.Extractor().Required() {
				schema.Required = append(schema.Required, part.Alias())
			}
		}
		return schema
	}

	switch e.Kind() {
	case extract.KindFileUpload, extract.KindFileUploadReader:
		return &Schema{Type: TypeString("string"), Format: "binary"}
	case extract.KindText:
		schema := scalarSchema(gen, e.Parser())
		applyExtra(schema, e.Extra())
		return schema
	case extract.KindMultipleFileUpload:
		return formSchema(gen, e.Type())
	}

	if t := e.Type(); t != nil && t != readerType {
		return gen.Generate(t)
	}
	return &Schema{Type: TypeString("string")}
}

// formSchema describes a multipart form decoded into t. Byte fields are
// file parts.
func formSchema(gen *SchemaGenerator, t reflect.Type) *Schema {
	schema := gen.Generate(t)
	if schema.Ref == "" {
		return schema
	}
	name := strings.TrimPrefix(schema.Ref, "#/components/schemas/")
	if component, ok := gen.Schemas()[name]; ok {
		inline := *component
		inline.Properties = make(map[string]*Schema, len(component.Properties))
		for prop, s := range component.Properties {
			if s.Format == "byte" {
				s = &Schema{Type: TypeString("string"), Format: "binary"}
			}
			inline.Properties[prop] = s
		}
		return &inline
	}
	return schema
}

func buildResponses(gen *SchemaGenerator, logger *slog.Logger, meta view.Meta, returns reflect.Type) map[string]*Response {
	status := meta.Status
	description := meta.ResponseDescription
	if status == 0 {
		if returns != nil {
			status = statusWithBody
		} else {
			status = statusWithoutBody
			if description == "" {
				description = descriptionWithoutBody
			}
		}
	}

	resp := &Response{Description: description}
	responses := map[string]*Response{strconv.Itoa(status): resp}
	if returns == nil || returns == responseWriterType {
		return responses
	}
	if !gen.Supports(returns) {
		logger.Warn("cannot determine schema for return type, response content is left out",
			slog.String("type", returns.String()))
		return responses
	}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = extract.ContentTypeJSON
	}
	resp.Content = map[string]*MediaType{contentType: {Schema: gen.Generate(returns)}}
	return responses
}
