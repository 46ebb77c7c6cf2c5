package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/fxgate/fxgate/internal/service"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeClassified reports err through service.Classify.
func writeClassified(w http.ResponseWriter, err error) {
	c := service.Classify(err)
	writeError(w, c.Status, c.Code, c.Message)
}
