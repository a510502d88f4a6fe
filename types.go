package consolelogin

import "context"

// Step names a state of the login flow.
type Step string

const (
	// StepIdentifier is the initial step where the user enters an email or phone number.
	StepIdentifier Step = "identifier"
	// StepVerify asks for the password, or the PIN on legacy accounts.
	StepVerify Step = "verify"
	// StepVerifyOTP asks for the one-time code sent to an account without a password.
	StepVerifyOTP Step = "verify-otp"
	// StepSetupPassword asks the user to create a password.
	StepSetupPassword Step = "setup-password"
	// StepSuccess is terminal; navigation away has been triggered.
	StepSuccess Step = "success"
)

// AuthMethod is the server-reported way an account authenticates.
type AuthMethod string

const (
	// AuthMethodPassword accounts log in with a password.
	AuthMethodPassword AuthMethod = "password"
	// AuthMethodPIN accounts were registered through a messaging channel and log in with a PIN.
	AuthMethodPIN AuthMethod = "pin"
	// AuthMethodSetup accounts have no credential yet and must verify a one-time code.
	AuthMethodSetup AuthMethod = "setup"
)

// Currency describes the currency used by a country.
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// CountryDetail is one entry of the supported-country catalog. Entries are
// shared between flows and must not be mutated after the fetch.
type CountryDetail struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Code      string   `json:"code"`
	PhoneCode string   `json:"phoneCode"`
	Currency  Currency `json:"currency"`
}

// IdentifyRequest is the body of POST /security/identifier.
type IdentifyRequest struct {
	Identifier string `json:"identifier"`
	Country    string `json:"country,omitempty"`
}

// IdentifyResponse reports whether an account exists and how it authenticates.
// OTPSent is nil when the server did not dispatch (or report on) a code.
type IdentifyResponse struct {
	Exists     bool       `json:"exists"`
	AuthMethod AuthMethod `json:"authMethod"`
	OTPSent    *bool      `json:"otpSent,omitempty"`
}

// LoginRequest is the body of POST /security/login. Exactly one of Password
// and PIN is set.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password,omitempty"`
	PIN        string `json:"pin,omitempty"`
	Country    string `json:"country,omitempty"`
}

// OTPVerifyRequest is the body of POST /security/verify-setup-otp.
type OTPVerifyRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
	Country    string `json:"country,omitempty"`
}

// OTPVerifyResponse carries the short-lived setup token.
type OTPVerifyResponse struct {
	SetupToken string `json:"setupToken"`
}

// SetupPasswordRequest is the body of POST /security/setup-password. It is
// the only request type that carries the setup token.
type SetupPasswordRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	SetupToken string `json:"setupToken,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Business is a membership of the authenticated user.
type Business struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// LoginUser is the user record returned with a session token.
type LoginUser struct {
	ID            string     `json:"id,omitempty"`
	SetupRequired bool       `json:"setupRequired"`
	Businesses    []Business `json:"businesses"`
}

// LoginResponse is returned by both the login and setup-password endpoints.
type LoginResponse struct {
	Token string     `json:"token"`
	User  *LoginUser `json:"user,omitempty"`
}

// SecurityAPI is the authentication backend consumed by the flow. api.Client
// is the HTTP implementation.
type SecurityAPI interface {
	Countries(ctx context.Context) ([]CountryDetail, error)
	Identify(ctx context.Context, req IdentifyRequest) (*IdentifyResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	VerifySetupOTP(ctx context.Context, req OTPVerifyRequest) (*OTPVerifyResponse, error)
	SetupPassword(ctx context.Context, req SetupPasswordRequest) (*LoginResponse, error)
}

// KeyValueStore is the persisted key-value storage used for the auth token,
// the active business id, and the last-used login country id. storage.Memory,
// storage.Redis, and storage.SQLite implement it.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// TokenSaver persists the session token issued at the end of the flow.
// token.Store implements it on top of a KeyValueStore.
type TokenSaver interface {
	Save(ctx context.Context, raw string) error
}

// Navigator performs the post-authentication redirect.
type Navigator interface {
	Navigate(url string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string)

// Navigate calls f(url).
func (f NavigatorFunc) Navigate(url string) { f(url) }

// Notifier receives every user-visible notification exactly once.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

// NoticeLevel is the severity of a Notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a dismissible message for the user.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// SessionState is a read-only snapshot of one login attempt. The setup token
// is never part of the snapshot.
type SessionState struct {
	FlowID          string
	Step            Step
	Identifier      string
	Password        string
	PIN             string
	OTP             string
	NewPassword     string
	ConfirmPassword string
	SelectedCountry *CountryDetail
	Countries       []CountryDetail
	IsPinLogin      bool
	IsLoading       bool
	Notice          *Notice
	CallbackURL     string
}

// CanSubmitIdentifier reports whether the identifier step may progress.
func (s SessionState) CanSubmitIdentifier() bool {
	return !s.IsLoading && CanSubmitIdentifier(s.Identifier)
}
