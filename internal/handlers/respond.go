package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

var errBadRequest = errors.New("bad request")

// envelope is the body of every JSON response.
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Count     *int   `json:"count,omitempty"`
	Data      any    `json:"data,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(r.Context(), nil).Error("failed to encode response", "error", err)
	}
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, r, status, envelope{Success: true, Data: data})
}

func writeList[T any](w http.ResponseWriter, r *http.Request, items []T) {
	count := len(items)
	if items == nil {
		items = []T{}
	}
	writeJSON(w, r, http.StatusOK, envelope{Success: true, Count: &count, Data: items})
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, envelope{Success: status < http.StatusBadRequest, Message: message})
}

// writeError maps a service error to a status code. Unexpected errors are
// logged and reported without details.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *services.InsufficientStockError
	if errors.As(err, &stockErr) {
		available := stockErr.Available
		writeJSON(w, r, http.StatusBadRequest, envelope{Message: stockErr.Error(), Available: &available})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.loggerFromContext(r.Context()).Error("request failed", "error", err)
		writeMessage(w, r, status, "Error interno del servidor")
		return
	}
	writeMessage(w, r, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type requestError struct {
	message string
}

func (e *requestError) Error() string { return e.message }

func (e *requestError) Unwrap() error { return errBadRequest }

func badRequest(format string, args ...any) error {
	return &requestError{message: fmt.Sprintf(format, args...)}
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return badRequest("El cuerpo de la solicitud es demasiado grande")
		case errors.Is(err, io.EOF):
			return badRequest("El cuerpo de la solicitud está vacío")
		default:
			return badRequest("JSON inválido")
		}
	}
	if decoder.More() {
		return badRequest("JSON inválido")
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(mux.Vars(r)[name])
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest("Identificador no válido")
	}
	return id, nil
}
