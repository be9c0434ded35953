package view

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vitalvas/reqbind/extract"
)

// WriteJSON encodes v as JSON and writes it to the response with the given
// status code. If encoding fails, an HTTP 500 Internal Server Error is
// written instead.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

// protocolBody is the response to a request violating the body protocol.
type protocolBody struct {
	Msg  string `json:"msg"`
	In   string `json:"in"`
	Type string `json:"type"`
}

// writeExtractionError answers a request whose arguments could not be
// extracted and reports the outcome for metrics.
func (reg *Registry) writeExtractionError(w http.ResponseWriter, r *http.Request, handler string, err error) string {
	var perr *extract.ProtocolError
	if errors.As(err, &perr) {
		reg.metrics.protocolViolations.Inc()
		reg.logger.Debug("request violates body protocol",
			slog.String("handler", handler),
			slog.String("path", r.URL.Path),
			slog.String("error", perr.Msg))
		WriteJSON(w, http.StatusBadRequest, protocolBody{Msg: perr.Msg, In: perr.In.String(), Type: perr.Type})
		return outcomeRejected
	}

	var verr extract.ValidationError
	if errors.As(err, &verr) {
		fields := verr.FieldErrors()
		for _, fe := range fields {
			reg.metrics.validationFailures.WithLabelValues(fe.In).Inc()
		}
		reg.logger.Debug("request arguments are invalid",
			slog.String("handler", handler),
			slog.String("path", r.URL.Path),
			slog.Int("errors", len(fields)))
		WriteJSON(w, reg.cfg.errorStatus(), fields)
		return outcomeInvalid
	}

	reg.logger.Error("failed to extract request arguments",
		slog.String("handler", handler),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	return outcomeError
}
