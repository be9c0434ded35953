package extract

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Extractor is a configured rule for obtaining and validating one handler
// argument from a request. The set of implementations is closed: use the
// constructors in this package (Param, Query, JSON, MultiPart, ...).
//
// Extractors hold only static configuration, so one instance can serve any
// number of concurrent requests.
type Extractor interface {
	Kind() Kind
	Location() Location
	// Name is the explicit wire name set with the Name option, or "" when
	// the handler parameter name is used.
	Name() string
	Required() bool
	// Default is the value used when the argument is absent. It is only
	// meaningful when Required is false.
	Default() any
	// HasSchemaDefault reports whether a default should be documented.
	HasSchemaDefault() bool
	Extra() Extra
	// Type describes the produced value for schema generation.
	Type() reflect.Type
	// Parser is the string parser of scalar and text extractors, nil otherwise.
	Parser() Parser
	// ContentType is the request media type of body extractors, "" otherwise.
	ContentType() string
	// Err reports a declaration error. Resolution refuses extractors with
	// a non-nil Err.
	Err() error
	// Extract pulls the value from src. name is the handler-side parameter
	// name that stands in for the wire name when Name is empty.
	Extract(ctx context.Context, src Source, name string) (any, error)

	common() *spec
}

// Example is a named example value attached to a parameter.
type Example struct {
	Summary     string
	Description string
	Value       any
}

// Extra is documentation and constraint metadata passed through to schema
// generation. Extraction does not enforce it.
type Extra struct {
	Description      string
	Example          any
	Examples         map[string]Example
	Deprecated       bool
	AllowEmptyValue  bool
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MinLength        *int
	MaxLength        *int
	Pattern          string
}

// Option configures an extractor.
type Option func(*spec)

// Name sets the wire name of the argument, e.g. a camelCase query key for
// a snake_case parameter.
func Name(alias string) Option {
	return func(s *spec) { s.alias = alias }
}

// Default marks the argument optional with the given default value. It is
// equivalent to the second positional constructor argument.
func Default(v any) Option {
	return func(s *spec) { s.setDefault(v) }
}

// Description documents the argument.
func Description(d string) Option {
	return func(s *spec) { s.extra.Description = d }
}

// ExampleValue attaches a single example value.
func ExampleValue(v any) Option {
	return func(s *spec) { s.extra.Example = v }
}

// Examples attaches named examples.
func Examples(examples map[string]Example) Option {
	return func(s *spec) { s.extra.Examples = examples }
}

// Deprecated marks the argument deprecated.
func Deprecated() Option {
	return func(s *spec) { s.extra.Deprecated = true }
}

// AllowEmptyValue documents that an empty value is accepted.
func AllowEmptyValue() Option {
	return func(s *spec) { s.extra.AllowEmptyValue = true }
}

// Minimum documents the inclusive lower bound of a numeric value.
func Minimum(v float64) Option {
	return func(s *spec) { s.extra.Minimum = &v }
}

// Maximum documents the inclusive upper bound of a numeric value.
func Maximum(v float64) Option {
	return func(s *spec) { s.extra.Maximum = &v }
}

// ExclusiveMinimum documents the exclusive lower bound of a numeric value.
func ExclusiveMinimum(v float64) Option {
	return func(s *spec) { s.extra.ExclusiveMinimum = &v }
}

// ExclusiveMaximum documents the exclusive upper bound of a numeric value.
func ExclusiveMaximum(v float64) Option {
	return func(s *spec) { s.extra.ExclusiveMaximum = &v }
}

// MinLength documents the minimum length of a string value.
func MinLength(n int) Option {
	return func(s *spec) { s.extra.MinLength = &n }
}

// MaxLength documents the maximum length of a string value.
func MaxLength(n int) Option {
	return func(s *spec) { s.extra.MaxLength = &n }
}

// Pattern documents a regular expression a string value matches.
func Pattern(p string) Option {
	return func(s *spec) { s.extra.Pattern = p }
}

// spec is the configuration shared by every extractor variant.
type spec struct {
	kind       Kind
	parser     Parser
	typ        reflect.Type
	required   bool
	def        any
	defaultSet int
	alias      string
	extra      Extra
	err        error
}

func (s *spec) Kind() Kind             { return s.kind }
func (s *spec) Location() Location     { return s.kind.location() }
func (s *spec) Name() string           { return s.alias }
func (s *spec) Required() bool         { return s.required }
func (s *spec) Default() any           { return s.def }
func (s *spec) HasSchemaDefault() bool { return !s.required && s.def != nil }
func (s *spec) Extra() Extra           { return s.extra }
func (s *spec) Type() reflect.Type     { return s.typ }
func (s *spec) Parser() Parser         { return s.parser }
func (s *spec) ContentType() string    { return s.kind.contentType() }
func (s *spec) Err() error             { return s.err }
func (s *spec) common() *spec          { return s }

func (s *spec) String() string {
	args := []string{"?"}
	if s.typ != nil {
		args[0] = s.typ.String()
	}
	if !s.required {
		args = append(args, fmt.Sprintf("%v", s.def))
	}
	if s.alias != "" {
		args = append(args, "name="+s.alias)
	}
	return fmt.Sprintf("%s(%s)", s.kind, strings.Join(args, ", "))
}

func (s *spec) setDefault(v any) {
	s.def = v
	s.required = false
	s.defaultSet++
}

func (s *spec) fail(format string, args ...any) {
	if s.err == nil {
		s.err = fmt.Errorf("%s: "+format, append([]any{s.kind}, args...)...)
	}
}

// declare applies constructor arguments mirroring the
// (parser_or_default, default, options...) calling convention and returns
// the parser argument: a Parser, a reflect.Type, or nil when only a
// default was given.
func (s *spec) declare(kind Kind, args []any) any {
	s.kind = kind
	s.required = true

	var positional []any
	var opts []Option
	for _, arg := range args {
		if opt, ok := arg.(Option); ok {
			opts = append(opts, opt)
			continue
		}
		positional = append(positional, arg)
	}

	if len(positional) > 2 {
		s.fail("too many positional arguments: %d", len(positional))
	}

	var parserSpec any
	for i, arg := range positional {
		if isUndefined(arg) {
			continue
		}
		if i == 0 && isParserSpec(arg) {
			parserSpec = arg
			continue
		}
		s.setDefault(arg)
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.defaultSet > 1 {
		s.fail("default value given more than once")
	}
	return parserSpec
}

func isParserSpec(v any) bool {
	switch v.(type) {
	case Parser, reflect.Type:
		return true
	}
	return false
}

// scalarParser turns a parser argument into a string parser, falling
// back to the type of the default value.
func (s *spec) scalarParser(parserSpec any) {
	var err error
	switch p := parserSpec.(type) {
	case Parser:
		s.parser = p
	case reflect.Type:
		s.parser, err = ParserFor(p)
	default:
		switch {
		case s.required:
			err = errors.New("at least one argument needed: parser or default")
		case s.def == nil:
			err = errors.New("cannot infer a parser from a nil default")
		default:
			s.parser, err = ParserFor(reflect.TypeOf(s.def))
		}
	}
	if err != nil {
		s.fail("%v", err)
		return
	}
	s.typ = s.parser.Type()
}

// aliasFor returns the wire name of e for the parameter called name.
func aliasFor(e Extractor, name string) string {
	if alias := e.Name(); alias != "" {
		return alias
	}
	return name
}
