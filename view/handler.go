package view

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vitalvas/reqbind/extract"
)

// HandlerFunc is the shape of a handler function. args holds the values
// extracted for the declared parameters.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, args *Args)

// Handler is a wrapped handler function. It extracts the declared
// parameters from each request and answers with field errors instead of
// calling the function when extraction fails.
type Handler struct {
	reg  *Registry
	fn   HandlerFunc
	info extract.InspectInfo
	meta Meta
}

// Name is the handler name given to its signature.
func (h *Handler) Name() string {
	return h.info.Name
}

// Info returns the inspected signature.
func (h *Handler) Info() extract.InspectInfo {
	return h.info
}

func (h *Handler) Meta() Meta {
	return h.meta
}

// Resolve returns the bindings of the handler for a route with the given
// variables. Results are cached by the registry.
func (h *Handler) Resolve(vars extract.PathVars) (*extract.Resolution, error) {
	return h.reg.resolve(h, vars)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, nil)
}

// serve runs extraction and calls the function. receiver is the class
// view receiver, or nil for function handlers.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, receiver any) {
	vars := mux.Vars(r)
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}

	res, err := h.Resolve(extract.NewPathVars(names...))
	if err != nil {
		h.reg.logger.Error("failed to resolve handler", "handler", h.Name(), "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	start := time.Now()
	values, err := extract.Run(r.Context(), extract.RequestSource(r, vars), res.Bindings)
	if err != nil {
		outcome := h.reg.writeExtractionError(w, r, h.Name(), err)
		h.reg.metrics.observe(h.Name(), outcome, start)
		return
	}
	h.reg.metrics.observe(h.Name(), outcomeSuccess, start)

	h.fn(w, r, newArgs(h.info, receiver, r, res.Unmatched, values))
}
