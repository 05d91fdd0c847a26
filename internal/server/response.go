package server

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error"`
	Endpoints []string `json:"endpoints,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
