package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	validate      = validator.New(validator.WithRequiredStructEnabled())
	schemaDecoder = schema.NewDecoder()
)

func init() {
	validate.RegisterTagNameFunc(jsonFieldName)
	schemaDecoder.IgnoreUnknownKeys(true)
	schemaDecoder.SetAliasTag("json")
}

// jsonFieldName reports struct fields under their JSON names so field paths
// in errors match the wire format.
func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}

// IsModel reports whether t is a structured model: a struct type, or a
// pointer to one, that is decoded from JSON and validated through its
// `validate` tags rather than parsed from a string. Structs that know how
// to unmarshal themselves from text, such as time.Time, are not models.
func IsModel(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == reflect.TypeFor[time.Time]() {
		return false
	}
	return !reflect.PointerTo(t).Implements(textUnmarshalerType)
}

// isModelCollection reports whether t is a slice or array of models.
func isModelCollection(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return IsModel(t.Elem())
	}
	return false
}

// decodeJSON decodes data into a new value of type t and validates every
// model it contains.
func decodeJSON(data []byte, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, jsonError(err)
	}
	if err := validateValue(ptr.Elem(), nil); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// jsonError turns a type mismatch into a field error at the offending path.
// Other decode failures are returned unchanged and reported at the root.
func jsonError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		return err
	}
	loc := []string{RootField}
	if typeErr.Field != "" {
		loc = strings.Split(typeErr.Field, ".")
	}
	return &ModelError{Fields: []ModelField{{
		Loc:  loc,
		Msg:  fmt.Sprintf("value is not a valid %s", typeErr.Type),
		Type: "type_error." + typeErr.Type.Kind().String(),
	}}}
}

// validateValue runs struct validation on v. Collections are validated
// element by element with the index prepended to each field path.
func validateValue(v reflect.Value, loc []string) error {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return validateValue(v.Elem(), loc)

	case reflect.Struct:
		if !IsModel(v.Type()) {
			return nil
		}
		err := validate.Struct(v.Interface())
		if err == nil {
			return nil
		}
		var valErrs validator.ValidationErrors
		if errors.As(err, &valErrs) {
			return modelErrorFromValidator(valErrs, loc)
		}
		return err

	case reflect.Slice, reflect.Array:
		if !IsModel(v.Type().Elem()) {
			return nil
		}
		var fields []ModelField
		for i := range v.Len() {
			elemLoc := append(loc[:len(loc):len(loc)], strconv.Itoa(i))
			err := validateValue(v.Index(i), elemLoc)
			if err == nil {
				continue
			}
			var modelErr *ModelError
			if !errors.As(err, &modelErr) {
				return err
			}
			fields = append(fields, modelErr.Fields...)
		}
		if len(fields) > 0 {
			return &ModelError{Fields: fields}
		}
	}
	return nil
}

// modelErrorFromValidator converts validator failures into model fields.
// The namespace of each failure starts with the struct name, which is
// dropped; prefix is prepended instead.
func modelErrorFromValidator(valErrs validator.ValidationErrors, prefix []string) *ModelError {
	fields := make([]ModelField, 0, len(valErrs))
	for _, fe := range valErrs {
		path := namespacePath(fe.Namespace())
		if len(path) > 0 {
			path = path[1:]
		}
		loc := append(append([]string(nil), prefix...), path...)
		if len(loc) == 0 {
			loc = []string{RootField}
		}
		fields = append(fields, ModelField{
			Loc:  loc,
			Msg:  validationMessage(fe),
			Type: fe.Tag(),
		})
	}
	return &ModelError{Fields: fields}
}

// namespacePath splits "Note.tags[1].name" into ["Note", "tags", "1", "name"].
func namespacePath(ns string) []string {
	var out []string
	for part := range strings.SplitSeq(ns, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				break
			}
			if open > 0 {
				out = append(out, part[:open])
			}
			end := strings.IndexByte(part[open:], ']')
			if end < 0 {
				break
			}
			out = append(out, part[open+1:open+end])
			part = part[open+end+1:]
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validationMessage converts a validator.FieldError to a human-readable message.
func validationMessage(fe validator.FieldError) string {
	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}
	switch fe.Tag() {
	case "required":
		return "field required"
	case "min":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unit)
	case "len":
		return fmt.Sprintf("must be exactly %s%s", fe.Param(), unit)
	case "eq":
		return fmt.Sprintf("must equal %s", fe.Param())
	case "ne":
		return fmt.Sprintf("must not equal %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// decodeForm builds a model from multipart form data. Text parts go
// through the form decoder so numeric and boolean fields are coerced from
// their string form; structured and binary parts are merged in through a
// JSON round trip. Binary parts aimed at string fields arrive as their
// bytes rather than base64.
func decodeForm(t reflect.Type, text url.Values, other map[string]any) (any, error) {
	ptr := reflect.New(t)

	if len(other) > 0 {
		binaryToString(t, other)
		data, err := json.Marshal(other)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, ptr.Interface()); err != nil {
			return nil, jsonError(err)
		}
	}

	if len(text) > 0 {
		target := ptr
		if t.Kind() == reflect.Pointer {
			if target.Elem().IsNil() {
				target.Elem().Set(reflect.New(t.Elem()))
			}
			target = target.Elem()
		}
		if err := schemaDecoder.Decode(target.Interface(), text); err != nil {
			return nil, formError(err)
		}
	}

	if err := validateValue(ptr.Elem(), nil); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// binaryToString replaces binary part values bound to string fields of the
// model with their text, which JSON would otherwise encode as base64.
func binaryToString(t reflect.Type, other map[string]any) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || f.Type.Kind() != reflect.String {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		if b, ok := other[name].([]byte); ok {
			other[name] = string(b)
		}
	}
}

// formError converts form decoding failures into model fields, ordered by
// field path.
func formError(err error) error {
	var multi schema.MultiError
	if !errors.As(err, &multi) {
		return err
	}
	keys := make([]string, 0, len(multi))
	for k := range multi {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]ModelField, 0, len(keys))
	for _, k := range keys {
		field := ModelField{Loc: strings.Split(k, "."), Msg: multi[k].Error(), Type: errorTypeName(multi[k])}
		var conv schema.ConversionError
		if errors.As(multi[k], &conv) && conv.Type != nil {
			field.Msg = fmt.Sprintf("value is not a valid %s", conv.Type)
			field.Type = "type_error." + conv.Type.Kind().String()
		}
		fields = append(fields, field)
	}
	return &ModelError{Fields: fields}
}
