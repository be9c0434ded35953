package extract

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Run extracts every binding from src concurrently and returns the values
// keyed by parameter name.
//
// All extractions are awaited before deciding. Validation failures are
// combined in declaration order into ExtractionErrors, so the result does
// not depend on which sibling finishes first. A *ProtocolError, or any
// other error that is not a ValidationError, is returned as is and cancels
// the context passed to the remaining extractors. The built-in extractors
// do not observe that context, so Run still waits for them to return.
func Run(ctx context.Context, src Source, bindings []Binding) (map[string]any, error) {
	values := make([]any, len(bindings))
	failures := make([]error, len(bindings))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bindings {
		g.Go(func() error {
			v, err := b.Extractor.Extract(gctx, src, b.Name)
			if err != nil {
				var verr ValidationError
				if errors.As(err, &verr) {
					failures[i] = err
					return nil
				}
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := multierr.Combine(failures...); err != nil {
		return nil, collectFieldErrors(err)
	}

	out := make(map[string]any, len(bindings))
	for i, b := range bindings {
		out[b.Name] = values[i]
	}
	return out, nil
}

func collectFieldErrors(err error) ExtractionErrors {
	var out ExtractionErrors
	for _, e := range multierr.Errors(err) {
		var verr ValidationError
		if errors.As(e, &verr) {
			out = append(out, verr.FieldErrors()...)
		}
	}
	return out
}
