package extract

import (
	"context"
	"fmt"
)

// ScalarExtractor reads a single string value from the path, query string,
// headers or cookies and parses it. Its Kind tells which.
type ScalarExtractor struct {
	spec
}

func newScalar(kind Kind, args []any) *ScalarExtractor {
	e := &ScalarExtractor{}
	e.scalarParser(e.declare(kind, args))
	return e
}

// Param declares a parameter read from the path when a route variable of
// the same name exists and from the query string otherwise.
//
//	extract.Param(extract.Int)      // required int
//	extract.Param(25)               // optional, defaults to 25
//	extract.Param(extract.Int, nil) // optional, defaults to nil
func Param(args ...any) *ScalarExtractor {
	return newScalar(KindParam, args)
}

// Path declares a parameter read from a route variable.
func Path(args ...any) *ScalarExtractor {
	return newScalar(KindPath, args)
}

// Query declares a parameter read from the query string.
func Query(args ...any) *ScalarExtractor {
	return newScalar(KindQuery, args)
}

// Header declares a parameter read from a request header.
func Header(args ...any) *ScalarExtractor {
	return newScalar(KindHeader, args)
}

// Cookie declares a parameter read from a request cookie.
func Cookie(args ...any) *ScalarExtractor {
	return newScalar(KindCookie, args)
}

// bind returns a copy of e rebound to kind. Param extractors are rebound to
// Path or Query once the route's variables are known.
func (e *ScalarExtractor) bind(kind Kind) *ScalarExtractor {
	c := *e
	c.kind = kind
	return &c
}

func (e *ScalarExtractor) Extract(_ context.Context, src Source, name string) (any, error) {
	alias := aliasFor(e, name)

	kind := e.kind
	if kind == KindParam {
		// An unbound Param is read from the path when the route supplies
		// the variable.
		if _, ok := src.PathVar(alias); ok {
			kind = KindPath
		} else {
			kind = KindQuery
		}
	}
	in := kind.location()

	raw, ok := e.lookup(kind, src, alias)
	if !ok {
		if !e.required {
			return e.def, nil
		}
		return nil, &MissingValueError{Name: alias, In: in}
	}

	v, err := e.parser.Parse(raw)
	if err != nil {
		return nil, &WrongValueError{Name: alias, In: in, Err: err}
	}
	return v, nil
}

func (e *ScalarExtractor) lookup(kind Kind, src Source, alias string) (string, bool) {
	switch kind {
	case KindPath:
		return src.PathVar(alias)
	case KindQuery:
		values, ok := src.Query()[alias]
		if !ok || len(values) == 0 {
			return "", false
		}
		return values[0], true
	case KindHeader:
		values := src.Header().Values(alias)
		if len(values) == 0 {
			return "", false
		}
		return values[0], true
	case KindCookie:
		return src.Cookie(alias)
	}
	panic(fmt.Sprintf("extract: %s is not a scalar kind", kind))
}
