package api

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON shape of every failed request
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// dataBody wraps successful call-data responses
type dataBody struct {
	Data any `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
