package flows

// PostLogin is the transition shared by the verify and setup-password paths.
//
// The token is always persisted first. A user that still needs a password
// goes to setup-password; everyone else reaches success with the host
// callback, business and country persistence, and navigation queued in that
// order.
func PostLogin(reply LoginReply, country string, deps Deps) Outcome {
	if reply.Token == "" {
		return Failure(deps.Errors.TokenMissing, "")
	}

	effects := []Effect{{Kind: EffectPersistToken, Value: reply.Token}}

	if reply.HasUser && reply.SetupRequired {
		return Outcome{Next: StepSetupPassword, Effects: effects}
	}

	if len(reply.BusinessIDs) == 1 && reply.BusinessIDs[0] != "" {
		effects = append(effects, Effect{Kind: EffectPersistBusiness, Value: reply.BusinessIDs[0]})
	}
	if country != "" {
		effects = append(effects, Effect{Kind: EffectPersistCountry, Value: country})
	}
	effects = append(effects, Effect{Kind: EffectSessionRefreshed})

	target := "/"
	if deps.Resolve != nil {
		target = deps.Resolve(reply)
	}
	effects = append(effects, Effect{Kind: EffectNavigate, Value: target})

	return Outcome{Next: StepSuccess, Effects: effects}
}

// Back returns the step reached by the explicit back action and whether the
// back edge exists.
//
//	verify         -> identifier
//	verify-otp     -> identifier
//	setup-password -> verify-otp, or identifier when no setup token exists
//	                  (the step was reached through setupRequired)
func Back(step Step, hasSetupToken bool) (Step, bool) {
	switch step {
	case StepVerify, StepVerifyOTP:
		return StepIdentifier, true
	case StepSetupPassword:
		if hasSetupToken {
			return StepVerifyOTP, true
		}
		return StepIdentifier, true
	default:
		return step, false
	}
}
