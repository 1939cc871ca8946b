package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"chatrelay/internal/chat"
	"chatrelay/internal/prompts"
	"chatrelay/internal/session"
)

const (
	CodeBadRequest    = "bad_request"
	CodeNotFound      = "not_found"
	CodeConfiguration = "configuration_error"
	CodeInternal      = "internal"
)

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSONError возвращает ошибку в едином формате.
func WriteJSONError(w http.ResponseWriter, status int, code, message string) {
	writeErrorBody(w, status, errorBody{Code: code, Message: message})
}

func writeErrorBody(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: body})
}

// WriteJSON пишет v как JSON с указанным статусом.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError переводит ошибки сервиса в HTTP статус и код.
// notFoundMsg текст для клиента, когда не найдена сессия или промпт.
func writeServiceError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, chat.ErrPersist):
		WriteJSONError(w, http.StatusInternalServerError, CodeInternal, "An unexpected error occurred.")
	case errors.Is(err, chat.ErrInvalidArgument):
		WriteJSONError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, prompts.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, CodeNotFound, notFoundMsg)
	case errors.Is(err, chat.ErrConfiguration):
		WriteJSONError(w, http.StatusInternalServerError, CodeConfiguration,
			"Service configuration error. Please check environment variables.")
	default:
		WriteJSONError(w, http.StatusInternalServerError, CodeInternal, "An unexpected error occurred.")
	}
}
