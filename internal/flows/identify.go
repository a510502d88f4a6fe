package flows

import (
	"context"
	"strings"
)

// IdentifyInput is the identifier step's submitted data.
type IdentifyInput struct {
	Identifier string
	Country    string
}

// RunIdentify resolves the identifier and decides the next step.
//
//	exists=false         -> stay, not-found error
//	authMethod=setup     -> verify-otp, OTP cleared; advisory when otpSent=false
//	authMethod=pin       -> verify, PIN mode
//	authMethod=password  -> verify, password mode
func RunIdentify(ctx context.Context, in IdentifyInput, deps Deps) Outcome {
	if deps.Identify == nil {
		return Failure(deps.Errors.EngineNotReady, "")
	}
	if strings.TrimSpace(in.Identifier) == "" {
		return Failure(deps.Errors.IdentifierRequired, "")
	}
	if deps.ClassifyIdentifier != nil && !deps.ClassifyIdentifier(in.Identifier) {
		return Failure(deps.Errors.IdentifierInvalid, "")
	}

	reply, err := deps.Identify(ctx, in.Identifier, in.Country)
	if err != nil {
		return Failure(err, deps.message(err))
	}
	return identifyOutcome(reply, deps)
}

// RunResendOTP re-issues the identify call from the verify-otp step so the
// server dispatches a fresh code. The step never changes.
func RunResendOTP(ctx context.Context, in IdentifyInput, deps Deps) Outcome {
	if deps.Identify == nil {
		return Failure(deps.Errors.EngineNotReady, "")
	}
	reply, err := deps.Identify(ctx, in.Identifier, in.Country)
	if err != nil {
		return Failure(err, deps.message(err))
	}
	if !reply.Exists {
		return Failure(deps.Errors.IdentifierNotFound, "")
	}
	if reply.OTPSent != nil && !*reply.OTPSent {
		return Outcome{Effects: []Effect{notify(LevelWarning, deps.Messages.OTPDispatchDegraded)}}
	}
	return Outcome{
		ClearOTP: true,
		Effects:  []Effect{notify(LevelInfo, deps.Messages.OTPResent)},
	}
}

func identifyOutcome(reply IdentifyReply, deps Deps) Outcome {
	if !reply.Exists {
		return Failure(deps.Errors.IdentifierNotFound, "")
	}

	switch strings.ToLower(strings.TrimSpace(reply.AuthMethod)) {
	case "setup":
		out := Outcome{Next: StepVerifyOTP, ClearOTP: true}
		if reply.OTPSent != nil && !*reply.OTPSent {
			out.Effects = append(out.Effects, notify(LevelWarning, deps.Messages.OTPDispatchDegraded))
		}
		return out
	case "pin":
		return Outcome{Next: StepVerify, PinLogin: true}
	case "password":
		return Outcome{Next: StepVerify}
	default:
		return Failure(deps.Errors.UnsupportedAuthMethod, "")
	}
}
