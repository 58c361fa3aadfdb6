package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/docgate"
)

type errorBody struct {
	Error   docgate.Code `json:"error"`
	Message string       `json:"message"`
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the classified form of err.
func WriteError(w http.ResponseWriter, err error) {
	status, code, msg := docgate.Classify(err)
	WriteJSON(w, status, errorBody{Error: code, Message: msg})
}
