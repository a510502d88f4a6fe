package flows

import "context"

// IdentifyReply is the flow-local identify response.
type IdentifyReply struct {
	Exists     bool
	AuthMethod string
	OTPSent    *bool
}

// LoginReply is the flow-local login / setup-password response.
type LoginReply struct {
	Token         string
	HasUser       bool
	SetupRequired bool
	BusinessIDs   []string
}

// Errors carries the host-level sentinel errors used by transitions.
type Errors struct {
	IdentifierRequired    error
	IdentifierInvalid     error
	IdentifierNotFound    error
	UnsupportedAuthMethod error
	CredentialRequired    error
	PINInvalid            error
	OTPRequired           error
	PasswordTooShort      error
	PasswordMismatch      error
	TokenMissing          error
	SetupTokenMissing     error
	EngineNotReady        error
}

// Messages carries user-facing advisory texts.
type Messages struct {
	OTPDispatchDegraded string
	OTPResent           string
}

// Deps captures every transition dependency. The root engine builds one per
// flow; backend calls are closures over the security API.
type Deps struct {
	PINMinLength      int
	PasswordMinLength int

	ClassifyIdentifier func(string) bool
	UserMessage        func(error) string
	Resolve            func(LoginReply) string

	Identify       func(ctx context.Context, identifier, country string) (IdentifyReply, error)
	Login          func(ctx context.Context, identifier, password, pin, country string) (LoginReply, error)
	VerifySetupOTP func(ctx context.Context, identifier, otp, country string) (string, error)
	SetupPassword  func(ctx context.Context, identifier, password, setupToken, country string) (LoginReply, error)

	Errors   Errors
	Messages Messages
}

func (d Deps) message(err error) string {
	if d.UserMessage != nil {
		return d.UserMessage(err)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
