package auth

import (
	"errors"
	"fmt"
)

// Credential failure codes reported by identity providers.
const (
	CodeInvalidCredential = "auth/invalid-credential"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidEmail      = "auth/invalid-email"
)

// CredentialError is a coded identity-provider failure. It is shown to the
// user through Translate and never affects other state.
type CredentialError struct {
	Code string
	Err  error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *CredentialError) Unwrap() error { return e.Err }

func credentialError(code string) error {
	return &CredentialError{Code: code}
}

// CodeOf extracts the credential code from err, or "" if err is not a
// CredentialError.
func CodeOf(err error) string {
	var ce *CredentialError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// Translate maps a credential code to the user-facing message.
func Translate(code string) string {
	switch code {
	case CodeInvalidCredential:
		return "Correo o contraseña incorrectos."
	case CodeEmailInUse:
		return "Este correo ya está registrado."
	case CodeWeakPassword:
		return "La contraseña debe tener al menos 6 caracteres."
	case CodeInvalidEmail:
		return "El formato del correo no es válido."
	default:
		return "Ha ocurrido un error. Inténtalo de nuevo."
	}
}
