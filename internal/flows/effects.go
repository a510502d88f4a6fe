package flows

// Step mirrors the root step names.
type Step string

const (
	StepIdentifier    Step = "identifier"
	StepVerify        Step = "verify"
	StepVerifyOTP     Step = "verify-otp"
	StepSetupPassword Step = "setup-password"
	StepSuccess       Step = "success"
)

// EffectKind identifies a side effect requested by a transition.
type EffectKind uint8

const (
	// EffectPersistToken stores the session token. It is the only critical
	// effect: when it fails the transition must not be committed.
	EffectPersistToken EffectKind = iota + 1
	// EffectPersistBusiness stores the active business id.
	EffectPersistBusiness
	// EffectPersistCountry stores the last-used login country id.
	EffectPersistCountry
	// EffectNotify shows a dismissible message.
	EffectNotify
	// EffectSessionRefreshed invokes the host's success callback.
	EffectSessionRefreshed
	// EffectNavigate redirects away from the login screen.
	EffectNavigate
)

// Notice levels carried by EffectNotify.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Effect is one side effect. Value holds the token, id, message or URL
// depending on Kind; Level is set for EffectNotify only.
type Effect struct {
	Kind  EffectKind
	Value string
	Level string
}

// Critical reports whether a failure of this effect aborts the transition.
func (e Effect) Critical() bool {
	return e.Kind == EffectPersistToken
}

// Persist reports whether the effect writes to storage. Persist effects run
// before the next step is committed; the rest run after.
func (e Effect) Persist() bool {
	switch e.Kind {
	case EffectPersistToken, EffectPersistBusiness, EffectPersistCountry:
		return true
	default:
		return false
	}
}

// Outcome is the result of a transition. An empty Next means "stay on the
// current step".
type Outcome struct {
	Next       Step
	Effects    []Effect
	PinLogin   bool
	ClearOTP   bool
	SetupToken string
	Err        error
}

// Stay reports whether the outcome keeps the current step.
func (o Outcome) Stay() bool {
	return o.Next == ""
}

// Failure builds the outcome of a failed transition: no step change and a
// single error notice.
func Failure(err error, message string) Outcome {
	if message == "" && err != nil {
		message = err.Error()
	}
	return Outcome{
		Err: err,
		Effects: []Effect{
			{Kind: EffectNotify, Level: LevelError, Value: message},
		},
	}
}

func notify(level, message string) Effect {
	return Effect{Kind: EffectNotify, Level: level, Value: message}
}
