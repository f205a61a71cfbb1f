package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vuonglv2610/storefront/internal/backend"
	"github.com/vuonglv2610/storefront/internal/session"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondBackendError maps the client error taxonomy onto HTTP statuses.
func respondBackendError(w http.ResponseWriter, err error) {
	var (
		valErr  *backend.ValidationError
		authErr *backend.AuthError
		permErr *backend.PermissionError
		nfErr   *backend.NotFoundError
		srvErr  *backend.ServerError
		netErr  *backend.NetworkError
		cfgErr  *backend.GatewayConfigurationError
	)
	switch {
	case errors.As(err, &valErr):
		respondError(w, http.StatusBadRequest, "invalid_request", valErr.Error())
	case errors.As(err, &authErr):
		respondError(w, http.StatusUnauthorized, "unauthorized", authErr.Error())
	case errors.As(err, &permErr):
		respondError(w, http.StatusForbidden, "forbidden", permErr.Error())
	case errors.As(err, &nfErr):
		respondError(w, http.StatusNotFound, "not_found", nfErr.Error())
	case errors.As(err, &cfgErr):
		respondError(w, http.StatusBadGateway, "gateway_misconfigured", cfgErr.Error())
	case errors.As(err, &netErr):
		respondError(w, http.StatusServiceUnavailable, "backend_unreachable", netErr.Error())
	case errors.As(err, &srvErr):
		respondError(w, http.StatusBadGateway, "backend_error", srvErr.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		respondError(w, http.StatusConflict, "session_consumed", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
