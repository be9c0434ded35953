package view

import (
	"log/slog"
	"net/http"
	"reflect"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitalvas/reqbind/extract"
)

// Config configures a Registry.
type Config struct {
	// Logger receives resolution and request diagnostics
	// (default: slog.Default()).
	Logger *slog.Logger

	// ErrorStatus is the status code of field error responses (default: 400).
	ErrorStatus int

	// Registerer receives the registry metrics. Metrics are collected but
	// not registered when nil.
	Registerer prometheus.Registerer
}

func (cfg Config) logger() *slog.Logger {
	if cfg.Logger == nil {
		return slog.Default()
	}
	return cfg.Logger
}

func (cfg Config) errorStatus() int {
	if cfg.ErrorStatus == 0 {
		return http.StatusBadRequest
	}
	return cfg.ErrorStatus
}

// Registry wraps handlers and owns the table of their resolved extractors.
// Resolution happens once per handler and set of route variables; every
// request after that reuses the cached result.
type Registry struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics

	resolutions sync.Map // resolutionKey -> *extract.Resolution
	classes     sync.Map // receiver -> *ClassView
}

type resolutionKey struct {
	handler *Handler
	vars    string
}

// NewRegistry creates a registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg,
		logger:  cfg.logger(),
		metrics: newMetrics(cfg.Registerer),
	}
}

// Func wraps fn as a handler taking the parameters declared by sig. The
// signature is resolved immediately, so declaration mistakes are reported
// here rather than on the first request.
func (reg *Registry) Func(fn HandlerFunc, sig *extract.Signature, opts ...MetaOption) (*Handler, error) {
	meta, err := newMeta(opts)
	if err != nil {
		return nil, withHandler(err, extract.Inspect(sig).Name)
	}
	h := &Handler{
		reg:  reg,
		fn:   fn,
		info: extract.Inspect(sig),
		meta: meta,
	}
	if _, err := h.Resolve(nil); err != nil {
		return nil, err
	}
	return h, nil
}

// MustFunc is like Func but panics on error. It simplifies route setup.
func (reg *Registry) MustFunc(fn HandlerFunc, sig *extract.Signature, opts ...MetaOption) *Handler {
	h, err := reg.Func(fn, sig, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// Wrap returns h as a documented handler. Handlers created by a Registry
// are returned unchanged; any other handler becomes a function handler
// receiving only the request.
func (reg *Registry) Wrap(h http.Handler, opts ...MetaOption) (http.Handler, error) {
	if IsOpenAPIHandler(h) {
		return h, nil
	}
	name := reflect.TypeOf(h).String()
	return reg.Func(func(w http.ResponseWriter, r *http.Request, _ *Args) {
		h.ServeHTTP(w, r)
	}, extract.NewSignature(name).Request("request"), opts...)
}

// IsOpenAPIHandler reports whether h was created by a Registry.
func IsOpenAPIHandler(h http.Handler) bool {
	switch h.(type) {
	case *Handler, *ClassView:
		return true
	}
	return false
}

// resolve returns the cached resolution of h for vars, resolving it on
// first use.
func (reg *Registry) resolve(h *Handler, vars extract.PathVars) (*extract.Resolution, error) {
	key := resolutionKey{handler: h, vars: vars.Key()}
	if v, ok := reg.resolutions.Load(key); ok {
		return v.(*extract.Resolution), nil
	}
	res, err := extract.Resolve(h.info, vars)
	if err != nil {
		return nil, err
	}
	reg.logger.Debug("resolved handler",
		slog.String("handler", h.Name()),
		slog.Any("path_vars", vars.Names()),
		slog.Int("bindings", len(res.Bindings)),
		slog.Any("unmatched", res.Unmatched))
	v, _ := reg.resolutions.LoadOrStore(key, res)
	return v.(*extract.Resolution), nil
}

func withHandler(err error, name string) error {
	if serr, ok := err.(*extract.SignatureError); ok && serr.Handler == "" {
		serr.Handler = name
	}
	return err
}
