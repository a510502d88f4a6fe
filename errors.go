package consolelogin

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentifierRequired is returned when an identifier submit is attempted with an empty identifier.
	ErrIdentifierRequired = errors.New("identifier required")
	// ErrIdentifierInvalid is returned when the identifier is neither an email address nor a phone number.
	ErrIdentifierInvalid = errors.New("enter a valid email address or phone number")
	// ErrIdentifierNotFound is returned when the server reports that no account matches the identifier.
	ErrIdentifierNotFound = errors.New("no account found for this identifier")
	// ErrUnsupportedAuthMethod is returned when the identify response carries an unknown auth method.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")
	// ErrCredentialRequired is returned when a password login is submitted with an empty password.
	ErrCredentialRequired = errors.New("password required")
	// ErrPINInvalid is returned when a PIN login is submitted with fewer than the minimum digits.
	ErrPINInvalid = errors.New("invalid pin")
	// ErrOTPRequired is returned when a one-time code submit is attempted with an empty code.
	ErrOTPRequired = errors.New("verification code required")
	// ErrPasswordTooShort is returned when a new password is shorter than the configured minimum.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordMismatch is returned when the new password and its confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrCountryUnknown is returned when a country id is not part of the loaded catalog.
	ErrCountryUnknown = errors.New("unknown country")
	// ErrTokenMissing is returned when a login or setup response does not carry a session token.
	ErrTokenMissing = errors.New("login response did not include a session token")
	// ErrSetupTokenMissing is returned when the one-time code response does not carry a setup token.
	ErrSetupTokenMissing = errors.New("verification response did not include a setup token")
	// ErrCountriesUnavailable is returned when the country catalog could not be fetched.
	ErrCountriesUnavailable = errors.New("countries unavailable")
	// ErrStorageUnavailable is returned when the key-value store rejects a read or write.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrRequestInFlight is returned when a submit is attempted while another auth call is pending.
	ErrRequestInFlight = errors.New("request already in flight")
	// ErrFlowClosed is returned when a flow receives a response or action after Close.
	ErrFlowClosed = errors.New("login flow closed")
	// ErrInvalidStep is returned when an action is not valid for the current step.
	ErrInvalidStep = errors.New("action not valid for current step")
	// ErrEngineNotReady is returned when the engine is missing a required dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind groups errors by how the login screen is expected to react to them.
type ErrorKind string

const (
	// KindValidation errors are raised before any network call.
	KindValidation ErrorKind = "validation"
	// KindAuth errors are recoverable authentication failures reported by the server.
	KindAuth ErrorKind = "auth"
	// KindInfrastructure errors come from the country fetch, storage, or transport.
	KindInfrastructure ErrorKind = "infrastructure"
	// KindFlow errors are misuse of the flow surface (busy, closed, wrong step).
	KindFlow ErrorKind = "flow"
)

// ServerError is implemented by transport errors that carry a server-provided,
// user-facing message.
type ServerError interface {
	error
	UserMessage() string
	StatusCode() int
}

// ErrorClass reports the kind of a flow error.
func ErrorClass(err error) ErrorKind {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrIdentifierRequired),
		errors.Is(err, ErrIdentifierInvalid),
		errors.Is(err, ErrCredentialRequired),
		errors.Is(err, ErrPINInvalid),
		errors.Is(err, ErrOTPRequired),
		errors.Is(err, ErrPasswordTooShort),
		errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrCountryUnknown):
		return KindValidation
	case errors.Is(err, ErrRequestInFlight),
		errors.Is(err, ErrFlowClosed),
		errors.Is(err, ErrInvalidStep),
		errors.Is(err, ErrEngineNotReady):
		return KindFlow
	case errors.Is(err, ErrCountriesUnavailable),
		errors.Is(err, ErrStorageUnavailable):
		return KindInfrastructure
	case errors.Is(err, ErrIdentifierNotFound),
		errors.Is(err, ErrUnsupportedAuthMethod),
		errors.Is(err, ErrTokenMissing),
		errors.Is(err, ErrSetupTokenMissing):
		return KindAuth
	}

	var se ServerError
	if errors.As(err, &se) {
		if code := se.StatusCode(); code >= 400 && code < 500 {
			return KindAuth
		}
	}
	return KindInfrastructure
}

// UserMessage returns the text shown to the user for err. Server-provided
// messages are returned verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se ServerError
	if errors.As(err, &se) {
		if msg := se.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}

func wrapStorage(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
