package web

import "net/http"

const (
	codeInvalidRequestBody     = "invalid_request_body"
	codeMissingRequiredField   = "missing_required_field"
	codeSessionNotFound        = "session_not_found"
	codeMalformedSession       = "malformed_session"
	codeClientSessionRequired  = "client_session_required"
	codeAuthenticationRequired = "authentication_required"
	codePersistenceUnavailable = "persistence_unavailable"
	codeIdentityUnavailable    = "identity_provider_unavailable"
)

// Texts shown to visitors.
const (
	msgAuthenticationRequired = "Debes iniciar sesión para guardar favoritos"
	msgPersistenceUnavailable = "No se han podido guardar los favoritos. Inténtalo de nuevo."
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
