package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrInvalidBody       = errors.New("invalid JSON body")
	ErrMissingRecipient  = errors.New("missing user_id")
	ErrMissingCredential = errors.New("missing FIREBASE_SERVICE_ACCOUNT secret")
	ErrIncompleteAccount = errors.New("service account is missing client_email or private_key")
	ErrMissingProject    = errors.New("service account is missing project_id")
	ErrCredentialParse   = errors.New("credential parse failed")
	ErrKeyImport         = errors.New("private key import failed")
	ErrTokenExchange     = errors.New("token exchange failed")

	// ErrNoTarget means the recipient has no device token on file. It is a
	// successful no-op, never an HTTP error.
	ErrNoTarget = errors.New("no FCM token")
)

// TierFailure records why one parsing strategy rejected the credential text.
type TierFailure struct {
	Tier   string
	Reason string
}

// CredentialParseError is returned when every parsing tier failed.
type CredentialParseError struct {
	Failures []TierFailure
}

func (e *CredentialParseError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Tier+": "+f.Reason)
	}
	return fmt.Sprintf("%s (%s)", ErrCredentialParse, strings.Join(parts, "; "))
}

func (e *CredentialParseError) Is(target error) bool { return target == ErrCredentialParse }

// KeyImportError names the import step that rejected the private key.
type KeyImportError struct {
	Step string
	Err  error
}

func (e *KeyImportError) Error() string {
	return fmt.Sprintf("%s at %s: %v", ErrKeyImport, e.Step, e.Err)
}

func (e *KeyImportError) Is(target error) bool { return target == ErrKeyImport }

func (e *KeyImportError) Unwrap() error { return e.Err }

// TokenExchangeError carries the token endpoint's response body verbatim.
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("%s: status=%d, body=%s", ErrTokenExchange, e.StatusCode, e.Body)
}

func (e *TokenExchangeError) Is(target error) bool { return target == ErrTokenExchange }
