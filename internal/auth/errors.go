package auth

import (
	"errors"
	"fmt"
)

// Remedies attached to auth errors so that every boundary can tell the
// user what to do next.
const (
	RemedyConfigure    = "run configure-application-identity or set GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET"
	RemedyAuthenticate = "run get-authorization-url and exchange-code"
)

// ConfigurationError indicates that the OAuth2 application identity is
// missing or malformed.
type ConfigurationError struct {
	Missing string
	Remedy  string
}

func (e *ConfigurationError) Error() string {
	if e.Remedy == "" {
		return fmt.Sprintf("configuration error: %s", e.Missing)
	}
	return fmt.Sprintf("configuration error: %s; %s", e.Missing, e.Remedy)
}

// IsConfigurationError reports whether err (or any error in its chain) is a
// ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// AuthenticationError indicates that no usable credential is available: none
// was stored, it could not be refreshed, or the authorization code was
// rejected.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("authentication error: %s; %s", e.Reason, RemedyAuthenticate)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IsAuthenticationError reports whether err (or any error in its chain) is
// an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

func missingIdentity() error {
	return &ConfigurationError{
		Missing: "OAuth application identity not configured",
		Remedy:  RemedyConfigure,
	}
}
