package openapi

import (
	"encoding"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Exampler can be implemented by models to provide an example value for
// their component schema.
//
//	func (n Note) OpenAPIExample() any {
//	    return Note{Title: "Groceries", Body: "Milk and eggs"}
//	}
type Exampler interface {
	OpenAPIExample() any
}

var (
	timeType          = reflect.TypeFor[time.Time]()
	durationType      = reflect.TypeFor[time.Duration]()
	uuidType          = reflect.TypeFor[uuid.UUID]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// SchemaGenerator converts Go types to JSON Schema objects and collects
// named structs into the component schemas, referenced with $ref.
//
// See: https://spec.openapis.org/oas/v3.1.0#schema-object
type SchemaGenerator struct {
	logger    *slog.Logger
	schemas   map[string]*Schema
	visited   map[reflect.Type]bool
	typeNames map[reflect.Type]string
	nameTypes map[string]reflect.Type
}

// NewSchemaGenerator creates a schema generator. A nil logger selects
// slog.Default().
func NewSchemaGenerator(logger *slog.Logger) *SchemaGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaGenerator{
		logger:    logger,
		schemas:   make(map[string]*Schema),
		visited:   make(map[reflect.Type]bool),
		typeNames: make(map[reflect.Type]string),
		nameTypes: make(map[string]reflect.Type),
	}
}

// Schemas returns the collected component schemas.
func (g *SchemaGenerator) Schemas() map[string]*Schema {
	return g.schemas
}

// Generate produces a schema for values of type t. Types without a JSON
// representation are described as string, with a warning.
func (g *SchemaGenerator) Generate(t reflect.Type) *Schema {
	if t == nil {
		return nil
	}
	if schema := g.generateType(t); schema != nil {
		return schema
	}
	g.logger.Warn("type has no known schema, describing it as string", slog.String("type", t.String()))
	return &Schema{Type: TypeString("string")}
}

// Supports reports whether t has a JSON representation the generator can
// describe.
func (g *SchemaGenerator) Supports(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer, reflect.Invalid:
		return false
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return g.Supports(t.Elem())
	}
	return true
}

func (g *SchemaGenerator) generateType(t reflect.Type) *Schema {
	nullable := false
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}

	if t.Kind() == reflect.Struct && !isOpaque(t) {
		if name := g.schemaName(t); name != "" {
			if !g.visited[t] {
				g.visited[t] = true
				schema := g.generateStructSchema(t)
				if ex, ok := reflect.New(t).Interface().(Exampler); ok {
					schema.Example = ex.OpenAPIExample()
				}
				g.schemas[name] = schema
			}

			ref := &Schema{Ref: "#/components/schemas/" + name}
			if nullable {
				return &Schema{AnyOf: []*Schema{ref, {Type: TypeString("null")}}}
			}
			return ref
		}
	}

	schema := g.generateInlineType(t)
	if nullable && schema != nil {
		applyNullable(schema)
	}
	return schema
}

// isOpaque reports whether a struct is encoded as a scalar instead of an
// object.
func isOpaque(t reflect.Type) bool {
	return t == timeType || t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType)
}

func (g *SchemaGenerator) generateInlineType(t reflect.Type) *Schema {
	switch t {
	case timeType:
		return &Schema{Type: TypeString("string"), Format: "date-time"}
	case uuidType:
		return &Schema{Type: TypeString("string"), Format: "uuid"}
	}
	if t.Kind() != reflect.String && (t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType)) {
		return &Schema{Type: TypeString("string")}
	}

	switch t.Kind() {
	case reflect.Bool:
		return &Schema{Type: TypeString("boolean")}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: TypeString("integer")}

	case reflect.Float32, reflect.Float64:
		return &Schema{Type: TypeString("number")}

	case reflect.String:
		return &Schema{Type: TypeString("string")}

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Schema{Type: TypeString("string"), Format: "byte"}
		}
		fallthrough
	case reflect.Array:
		items := g.generateType(t.Elem())
		if items == nil {
			return nil
		}
		return &Schema{Type: TypeString("array"), Items: items}

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return &Schema{Type: TypeString("object")}
		}
		return &Schema{Type: TypeString("object"), AdditionalProperties: g.generateType(t.Elem())}

	case reflect.Struct:
		return g.generateStructSchema(t)

	case reflect.Interface:
		return &Schema{}
	}

	return nil
}

// generateStructSchema builds an object schema from the exported fields of
// t, named as encoding/json names them.
func (g *SchemaGenerator) generateStructSchema(t reflect.Type) *Schema {
	schema := &Schema{
		Type:       TypeString("object"),
		Properties: make(map[string]*Schema),
	}
	g.collectFields(t, schema, false)
	if len(schema.Properties) == 0 {
		schema.Properties = nil
	}
	return schema
}

// collectFields adds the fields of t to schema. Fields of pointer-embedded
// structs are all optional.
func (g *SchemaGenerator) collectFields(t reflect.Type, schema *Schema, allOptional bool) {
	for i := range t.NumField() {
		field := t.Field(i)

		// Embedded structs are flattened like encoding/json does, which
		// ignores pointers to unexported struct types.
		if field.Anonymous {
			if name, _ := parseJSONTag(field.Tag.Get("json")); name == "" {
				ft := field.Type
				isPtr := ft.Kind() == reflect.Pointer
				if isPtr {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct {
					if !isPtr || field.IsExported() {
						g.collectFields(ft, schema, allOptional || isPtr)
					}
					continue
				}
			}
		}
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name, opts := parseJSONTag(jsonTag)
		if name == "" {
			name = field.Name
		}

		fieldSchema := g.generateType(field.Type)
		if fieldSchema == nil {
			g.logger.Warn("field has no known schema, skipping it",
				slog.String("type", t.String()),
				slog.String("field", field.Name))
			continue
		}

		rules := applyValidateTag(fieldSchema, field.Type, field.Tag.Get("validate"))
		applyOpenAPITag(fieldSchema, field.Tag.Get("openapi"))
		if opts.stringEncode && fieldSchema.Ref == "" && len(fieldSchema.AnyOf) == 0 {
			applyStringEncoding(fieldSchema)
		}

		schema.Properties[name] = fieldSchema

		switch {
		case allOptional:
		case rules.required, !opts.omitempty && !rules.optional:
			schema.Required = append(schema.Required, name)
		}
	}
}

type jsonTagOpts struct {
	omitempty    bool
	stringEncode bool
}

func parseJSONTag(tag string) (string, jsonTagOpts) {
	if tag == "" {
		return "", jsonTagOpts{}
	}
	name, rest, _ := strings.Cut(tag, ",")
	return name, jsonTagOpts{
		omitempty:    strings.Contains(rest, "omitempty") || strings.Contains(rest, "omitzero"),
		stringEncode: strings.Contains(rest, "string"),
	}
}

type validateRules struct {
	required bool
	optional bool
}

// applyValidateTag translates the validator rules of a field into schema
// constraints. Rules after "dive" apply to elements and are ignored.
//
// Length rules constrain string length, item counts or property counts
// depending on the field kind; on numbers they bound the value.
func applyValidateTag(schema *Schema, t reflect.Type, tag string) validateRules {
	var rules validateRules
	if tag == "" || tag == "-" {
		return rules
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	constrain := schema.Ref == "" && len(schema.AnyOf) == 0

	for rule := range strings.SplitSeq(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(rule), "=")
		switch key {
		case "dive":
			return rules
		case "required":
			rules.required = true
			continue
		case "omitempty":
			rules.optional = true
			continue
		}
		if !constrain {
			continue
		}

		switch key {
		case "min", "gte":
			setLowerBound(schema, t, value, 0)
		case "gt":
			setLowerBound(schema, t, value, 1)
		case "max", "lte":
			setUpperBound(schema, t, value, 0)
		case "lt":
			setUpperBound(schema, t, value, 1)
		case "len":
			setLowerBound(schema, t, value, 0)
			setUpperBound(schema, t, value, 0)
		case "oneof":
			values := strings.Fields(value)
			schema.Enum = make([]any, len(values))
			for i, v := range values {
				schema.Enum[i] = parseTypedValue(schema, v)
			}
		case "email":
			schema.Format = "email"
		case "url", "uri":
			schema.Format = "uri"
		case "uuid", "uuid4":
			schema.Format = "uuid"
		case "ip":
			schema.Format = "ip"
		case "ipv4":
			schema.Format = "ipv4"
		case "ipv6":
			schema.Format = "ipv6"
		case "hostname":
			schema.Format = "hostname"
		case "datetime":
			schema.Format = "date-time"
		}
	}
	return rules
}

// setLowerBound applies a min-like rule. exclusive is 1 for gt, which on
// lengths means one more than the bound.
func setLowerBound(schema *Schema, t reflect.Type, value string, exclusive int) {
	if isNumeric(t) {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return
		}
		if exclusive == 1 {
			schema.ExclusiveMinimum = &v
		} else {
			schema.Minimum = &v
		}
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return
	}
	n += exclusive
	switch t.Kind() {
	case reflect.String:
		schema.MinLength = &n
	case reflect.Slice, reflect.Array:
		schema.MinItems = &n
	case reflect.Map:
		schema.MinProperties = &n
	}
}

func setUpperBound(schema *Schema, t reflect.Type, value string, exclusive int) {
	if isNumeric(t) {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return
		}
		if exclusive == 1 {
			schema.ExclusiveMaximum = &v
		} else {
			schema.Maximum = &v
		}
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return
	}
	n -= exclusive
	switch t.Kind() {
	case reflect.String:
		schema.MaxLength = &n
	case reflect.Slice, reflect.Array:
		schema.MaxItems = &n
	case reflect.Map:
		schema.MaxProperties = &n
	}
}

func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// applyOpenAPITag applies the `openapi` struct tag, a comma separated list
// of documentation keywords:
//
//	Title string `json:"title" openapi:"description=Note title,example=Groceries"`
func applyOpenAPITag(schema *Schema, tag string) {
	if tag == "" {
		return
	}

	for part := range strings.SplitSeq(tag, ",") {
		key, value, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "description":
			schema.Description = value
		case "title":
			schema.Title = value
		case "example":
			schema.Example = parseTypedValue(schema, value)
		case "format":
			schema.Format = value
		case "pattern":
			schema.Pattern = value
		case "enum":
			values := strings.Split(value, "|")
			schema.Enum = make([]any, len(values))
			for i, v := range values {
				schema.Enum[i] = parseTypedValue(schema, v)
			}
		case "deprecated":
			schema.Deprecated = true
		}
	}
}

// parseTypedValue converts a tag value to the Go type matching the schema
// type.
func parseTypedValue(schema *Schema, value string) any {
	types := schema.Type.Values()
	if len(types) == 0 {
		return value
	}

	switch types[0] {
	case "integer":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case "number":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case "boolean":
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return value
}

// schemaName returns a unique component name for t. A second type with the
// same simple name from another package is prefixed with its package name,
// and a numeric suffix resolves any remaining collision.
func (g *SchemaGenerator) schemaName(t reflect.Type) string {
	simple := sanitizeSchemaName(t.Name())
	if simple == "" || t.PkgPath() == "" {
		return ""
	}

	if name, ok := g.typeNames[t]; ok {
		return name
	}

	name := simple
	if existing, ok := g.nameTypes[name]; ok && existing != t {
		name = pkgPrefix(t.PkgPath()) + simple
		if existing, ok := g.nameTypes[name]; ok && existing != t {
			base := name
			for i := 2; ; i++ {
				candidate := base + strconv.Itoa(i)
				if _, ok := g.nameTypes[candidate]; !ok {
					name = candidate
					break
				}
			}
		}
	}

	g.typeNames[t] = name
	g.nameTypes[name] = t
	return name
}

// pkgPrefix capitalizes the last segment of a package path, e.g.
// "example.com/notes" gives "Notes".
func pkgPrefix(pkgPath string) string {
	if idx := strings.LastIndexByte(pkgPath, '/'); idx >= 0 {
		pkgPath = pkgPath[idx+1:]
	}
	if pkgPath == "" {
		return ""
	}
	pkgPath = strings.NewReplacer("-", "_", ".", "_").Replace(pkgPath)
	return strings.ToUpper(pkgPath[:1]) + pkgPath[1:]
}

// sanitizeSchemaName flattens generic type names: "Page[pkg.Note]" gives
// "PageNote" and "Page[[]pkg.Note]" gives "PageNoteList".
func sanitizeSchemaName(name string) string {
	idx := strings.IndexByte(name, '[')
	if idx < 0 {
		return name
	}

	base := name[:idx]
	inner := name[idx+1 : len(name)-1]

	isList := strings.HasPrefix(inner, "[]")
	inner = strings.TrimPrefix(inner, "[]")
	if dot := strings.LastIndexByte(inner, '.'); dot >= 0 {
		inner = inner[dot+1:]
	}

	result := base + inner
	if isList {
		result += "List"
	}
	return result
}

// applyNullable adds "null" to the schema type. JSON Schema 2020-12
// expresses nullability with type arrays.
func applyNullable(schema *Schema) {
	if schema.Ref != "" {
		return
	}
	if types := schema.Type.Values(); len(types) > 0 {
		schema.Type = TypeArray(append(types, "null")...)
	}
}

// applyStringEncoding matches the encoding/json ",string" option, which
// encodes numbers and booleans as strings.
func applyStringEncoding(schema *Schema) {
	types := schema.Type.Values()
	if len(types) == 0 {
		return
	}
	for _, t := range types {
		if t == "null" {
			schema.Type = TypeArray("string", "null")
			return
		}
	}
	schema.Type = TypeString("string")
}
