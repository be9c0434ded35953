package extract

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Parser turns a raw string taken from a path, query, header, cookie or
// text body into a typed value.
type Parser interface {
	// Type describes the values produced by Parse. Schema generation uses
	// it to pick the parameter schema.
	Type() reflect.Type
	Parse(raw string) (any, error)
}

// Formatter may be implemented by a Parser to override the schema format
// derived from its type (e.g. "date" for a time.Time parsed without clock).
type Formatter interface {
	Format() string
}

type funcParser[T any] struct {
	fn func(string) (T, error)
}

func (p funcParser[T]) Type() reflect.Type {
	return reflect.TypeFor[T]()
}

func (p funcParser[T]) Parse(raw string) (any, error) {
	v, err := p.fn(raw)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ParserOf adapts a typed parse function into a Parser.
//
//	var Celsius = extract.ParserOf(func(s string) (Temperature, error) { ... })
func ParserOf[T any](fn func(string) (T, error)) Parser {
	return funcParser[T]{fn: fn}
}

type formattedParser struct {
	Parser
	format string
}

func (p formattedParser) Format() string {
	return p.format
}

// Builtin parsers.
var (
	String = ParserOf(func(s string) (string, error) { return s, nil })
	Bytes  = ParserOf(func(s string) ([]byte, error) { return []byte(s), nil })
	Int    = ParserOf(strconv.Atoi)
	Int64  = ParserOf(func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
	Uint = ParserOf(func(s string) (uint, error) {
		v, err := strconv.ParseUint(s, 10, 0)
		return uint(v), err
	})
	Float64 = ParserOf(func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
	Bool     = ParserOf(strconv.ParseBool)
	UUID     = ParserOf(uuid.Parse)
	Duration = ParserOf(time.ParseDuration)
	// Time parses RFC 3339 timestamps.
	Time = ParserOf(func(s string) (time.Time, error) {
		return time.Parse(time.RFC3339, s)
	})
	// Date parses calendar dates in the form 2006-01-02.
	Date Parser = formattedParser{
		Parser: ParserOf(func(s string) (time.Time, error) {
			return time.Parse(time.DateOnly, s)
		}),
		format: "date",
	}
)

var knownParsers = map[reflect.Type]Parser{
	reflect.TypeFor[string]():        String,
	reflect.TypeFor[[]byte]():        Bytes,
	reflect.TypeFor[int]():           Int,
	reflect.TypeFor[int64]():         Int64,
	reflect.TypeFor[uint]():          Uint,
	reflect.TypeFor[float64]():       Float64,
	reflect.TypeFor[bool]():          Bool,
	reflect.TypeFor[uuid.UUID]():     UUID,
	reflect.TypeFor[time.Duration](): Duration,
	reflect.TypeFor[time.Time]():     Time,
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// ParserFor infers a string parser for values of type t. Besides the
// builtin types it handles named scalar kinds, pointers to parseable types
// and types implementing encoding.TextUnmarshaler.
func ParserFor(t reflect.Type) (Parser, error) {
	if t == nil {
		return nil, errors.New("no type to infer a parser from")
	}
	if p, ok := knownParsers[t]; ok {
		return p, nil
	}
	if t.Kind() == reflect.Pointer {
		inner, err := ParserFor(t.Elem())
		if err != nil {
			return nil, err
		}
		return pointerParser{inner: inner, typ: t}, nil
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return textParser{typ: t}, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool, reflect.String:
		return kindParser{typ: t}, nil
	}
	return nil, fmt.Errorf("no parser for type %s", t)
}

type pointerParser struct {
	inner Parser
	typ   reflect.Type
}

func (p pointerParser) Type() reflect.Type {
	return p.typ
}

func (p pointerParser) Parse(raw string) (any, error) {
	v, err := p.inner.Parse(raw)
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(p.typ.Elem())
	ptr.Elem().Set(reflect.ValueOf(v))
	return ptr.Interface(), nil
}

type textParser struct {
	typ reflect.Type
}

func (p textParser) Type() reflect.Type {
	return p.typ
}

func (p textParser) Parse(raw string) (any, error) {
	v := reflect.New(p.typ)
	if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw)); err != nil {
		return nil, err
	}
	return v.Elem().Interface(), nil
}

type kindParser struct {
	typ reflect.Type
}

func (p kindParser) Type() reflect.Type {
	return p.typ
}

func (p kindParser) Parse(raw string) (any, error) {
	v := reflect.New(p.typ).Elem()
	switch p.typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, p.typ.Bits())
		if err != nil {
			return nil, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, p.typ.Bits())
		if err != nil {
			return nil, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(raw, p.typ.Bits())
		if err != nil {
			return nil, err
		}
		v.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, err
		}
		v.SetBool(b)
	case reflect.String:
		v.SetString(raw)
	}
	return v.Interface(), nil
}

// EnumParser accepts only the listed values.
type EnumParser[T ~string] struct {
	values []T
}

// Enum returns a parser accepting exactly the given values.
//
//	authorType := extract.Param(extract.Enum(Robot, Human), nil)
func Enum[T ~string](values ...T) *EnumParser[T] {
	return &EnumParser[T]{values: values}
}

func (p *EnumParser[T]) Type() reflect.Type {
	return reflect.TypeFor[T]()
}

func (p *EnumParser[T]) Parse(raw string) (any, error) {
	for _, v := range p.values {
		if string(v) == raw {
			return v, nil
		}
	}
	return nil, &EnumError{Value: raw, Allowed: p.Values()}
}

// Values returns the accepted values in declaration order.
func (p *EnumParser[T]) Values() []string {
	out := make([]string, len(p.values))
	for i, v := range p.values {
		out[i] = string(v)
	}
	return out
}

// EnumError reports a value outside the accepted set of an EnumParser.
type EnumError struct {
	Value   string
	Allowed []string
}

func (e *EnumError) Error() string {
	quoted := make([]string, len(e.Allowed))
	for i, v := range e.Allowed {
		quoted[i] = "'" + v + "'"
	}
	return fmt.Sprintf("value is not a valid enumeration member; permitted: %s", strings.Join(quoted, ", "))
}
