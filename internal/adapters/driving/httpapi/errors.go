package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/logger"
)

// maxBodyBytes bounds request bodies; chunk batches carry full vectors.
const maxBodyBytes = 16 << 20

// errorBody is the JSON error envelope.
type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail any    `json:"detail,omitempty"`
}

// classify maps a domain error to a status code and a stable kind string.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		return http.StatusBadRequest, "empty_query"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrDuplicateChunkIndex):
		return http.StatusConflict, "duplicate_chunk_index"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return http.StatusConflict, "dimension_mismatch"
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway, "provider"
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrNotImplemented):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// detail extracts the structured fields of a domain error, if any.
func detail(err error) any {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		transition *domain.TransitionError
		dimension  *domain.DimensionError
		duplicate  *domain.DuplicateChunkError
	)
	switch {
	case errors.As(err, &validation):
		return map[string]string{"field": validation.Field, "reason": validation.Reason}
	case errors.As(err, &notFound):
		return map[string]string{"ref": notFound.Ref.String()}
	case errors.As(err, &transition):
		return map[string]string{
			"ref":  transition.Ref.String(),
			"from": transition.From.String(),
			"to":   transition.To.String(),
		}
	case errors.As(err, &dimension):
		return map[string]int{"expected": dimension.Expected, "got": dimension.Got}
	case errors.As(err, &duplicate):
		return map[string]any{"ref": duplicate.Ref.String(), "chunk_index": duplicate.Index}
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Warn("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind, Detail: detail(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("writing response: %v", err)
	}
}

// decodeJSON reads a JSON body into dst. Malformed bodies are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.ValidationError{Field: "body", Reason: "must not be empty"}
		}
		return &domain.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}
