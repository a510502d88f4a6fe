package flows

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// VerifyInput is the verify step's submitted data.
type VerifyInput struct {
	Identifier string
	Country    string
	PinLogin   bool
	Password   string
	PIN        string
}

// RunVerify logs in with the password or PIN and hands a successful reply to
// the shared post-login transition.
func RunVerify(ctx context.Context, in VerifyInput, deps Deps) Outcome {
	if deps.Login == nil {
		return Failure(deps.Errors.EngineNotReady, "")
	}
	if err := ValidateVerify(in, deps); err != nil {
		return Failure(err, "")
	}

	password, pin := in.Password, ""
	if in.PinLogin {
		password, pin = "", in.PIN
	}
	reply, err := deps.Login(ctx, in.Identifier, password, pin, in.Country)
	if err != nil {
		return Failure(err, deps.message(err))
	}
	return PostLogin(reply, in.Country, deps)
}

// ValidateVerify checks the credential matching the login mode.
func ValidateVerify(in VerifyInput, deps Deps) error {
	if !in.PinLogin {
		if in.Password == "" {
			return deps.Errors.CredentialRequired
		}
		return nil
	}

	min := deps.PINMinLength
	if min <= 0 {
		min = 4
	}
	if utf8.RuneCountInString(in.PIN) < min {
		return fmt.Errorf("%w: must be at least %d digits", deps.Errors.PINInvalid, min)
	}
	for i := 0; i < len(in.PIN); i++ {
		if in.PIN[i] < '0' || in.PIN[i] > '9' {
			return fmt.Errorf("%w: digits only", deps.Errors.PINInvalid)
		}
	}
	return nil
}

// SetupInput is the setup-password step's submitted data.
type SetupInput struct {
	Identifier      string
	Country         string
	NewPassword     string
	ConfirmPassword string
	SetupToken      string
}

// RunSetupPassword creates the account password. Local validation failures
// never reach the backend.
func RunSetupPassword(ctx context.Context, in SetupInput, deps Deps) Outcome {
	if deps.SetupPassword == nil {
		return Failure(deps.Errors.EngineNotReady, "")
	}
	if err := ValidateSetup(in.NewPassword, in.ConfirmPassword, deps); err != nil {
		return Failure(err, "")
	}

	reply, err := deps.SetupPassword(ctx, in.Identifier, in.NewPassword, in.SetupToken, in.Country)
	if err != nil {
		return Failure(err, deps.message(err))
	}
	return PostLogin(reply, in.Country, deps)
}

// ValidateSetup enforces the minimum length, counted in characters, and the
// confirmation match.
func ValidateSetup(newPassword, confirmPassword string, deps Deps) error {
	min := deps.PasswordMinLength
	if min <= 0 {
		min = 8
	}
	if utf8.RuneCountInString(newPassword) < min {
		return fmt.Errorf("%w: must be at least %d characters", deps.Errors.PasswordTooShort, min)
	}
	if newPassword != confirmPassword {
		return deps.Errors.PasswordMismatch
	}
	return nil
}
