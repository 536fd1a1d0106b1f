package router

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mohammed-shakir/hexselect/internal/auth"
	"github.com/mohammed-shakir/hexselect/internal/dataset"
	"github.com/mohammed-shakir/hexselect/internal/engine"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var missing *dataset.MissingColumnsError
	var parseErr *csv.ParseError
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, engine.ErrInvalidRequest),
		errors.Is(err, dataset.ErrEmpty),
		errors.Is(err, auth.ErrMissingFields),
		errors.As(err, &missing),
		errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, dataset.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dataset.ErrTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		msg = http.StatusText(code)
	}
	http.Error(w, msg, code)
}
