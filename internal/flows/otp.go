package flows

import (
	"context"
	"strings"
)

// OTPInput is the verify-otp step's submitted data.
type OTPInput struct {
	Identifier string
	Country    string
	OTP        string
}

// RunVerifyOTP exchanges the one-time code for a setup token. On failure the
// caller keeps the typed code so the user can correct it; there is no attempt
// ceiling here.
func RunVerifyOTP(ctx context.Context, in OTPInput, deps Deps) Outcome {
	if deps.VerifySetupOTP == nil {
		return Failure(deps.Errors.EngineNotReady, "")
	}
	if strings.TrimSpace(in.OTP) == "" {
		return Failure(deps.Errors.OTPRequired, "")
	}

	token, err := deps.VerifySetupOTP(ctx, in.Identifier, in.OTP, in.Country)
	if err != nil {
		return Failure(err, deps.message(err))
	}
	if token == "" {
		return Failure(deps.Errors.SetupTokenMissing, "")
	}
	return Outcome{Next: StepSetupPassword, SetupToken: token}
}
