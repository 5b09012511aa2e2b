package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string              `json:"error"`
	Kind  contracts.ErrorKind `json:"kind"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func respondError(w http.ResponseWriter, err error) {
	kind := contracts.KindOf(err)
	respondJSON(w, StatusFor(err), ErrorResponse{
		Error: err.Error(),
		Kind:  kind,
	})
}

// StatusFor maps an error's kind to an HTTP status
func StatusFor(err error) int {
	switch contracts.KindOf(err) {
	case contracts.KindInput:
		return http.StatusBadRequest
	case contracts.KindNotFound:
		return http.StatusNotFound
	case contracts.KindGeneration, contracts.KindParse, contracts.KindProviderUnavailable:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
