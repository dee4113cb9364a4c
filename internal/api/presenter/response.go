package presenter

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/oks-citadel/svcauth/internal/correlation"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	ErrorCode(w, r, msg, "", status)
}

// ErrorCode writes an error body with a machine-readable code.
func ErrorCode(w http.ResponseWriter, r *http.Request, msg, code string, status int) {
	resp := ErrorResponse{
		Error:         msg,
		Code:          code,
		CorrelationID: correlation.FromContext(r.Context()),
	}
	JSON(w, r, resp, status)
}
