package response

import (
	"encoding/json"
	"net/http"

	"github.com/bundlenudge/bundlenudge/internal/core"
	"github.com/bundlenudge/bundlenudge/internal/model"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteServiceError maps a service error onto an HTTP status and writes the
// error envelope. Coded errors carry their code so clients can branch without
// parsing messages.
func WriteServiceError(w http.ResponseWriter, err error) {
	code := core.ErrCode(err)
	WriteJSON(w, statusFor(code), map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}

func statusFor(code string) int {
	switch code {
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeValidation, model.CodeUnknownTier:
		return http.StatusBadRequest
	case model.CodeInvalidBundle, model.CodeHashMismatch:
		return http.StatusUnprocessableEntity
	case model.CodeInvalidReleaseStatus, model.CodeMissingBundle, model.CodeRollbackUnavailable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
