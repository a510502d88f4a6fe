package consolelogin

import (
	"context"
	"sync"

	"github.com/MrEthical07/consolelogin/internal/flows"
)

const (
	msgOTPDispatchDegraded = "We could not send your verification code. Use resend to try again."
	msgOTPResent           = "A new verification code has been sent."
)

// Flow is one login attempt: the identifier entry, credential verification,
// optional one-time-code and password setup, and the final redirect.
//
// Flow is safe for concurrent use, but at most one auth call runs at a time;
// a submit while another is pending returns ErrRequestInFlight. After Close
// every pending response is discarded.
type Flow struct {
	engine      *Engine
	id          string
	callbackURL string
	navigator   Navigator
	notifier    Notifier
	onSuccess   func(context.Context)

	mu              sync.Mutex
	step            Step
	identifier      string
	password        string
	pin             string
	otp             string
	newPassword     string
	confirmPassword string
	setupToken      string
	countries       []CountryDetail
	selected        *CountryDetail
	pinLogin        bool
	loading         bool
	notice          *Notice
	closed          bool
}

// ID returns the flow identifier used in logs and audit events.
func (f *Flow) ID() string {
	return f.id
}

// State returns a snapshot of the flow. Countries and SelectedCountry are
// copies; the shared catalog is never reachable through a snapshot.
func (f *Flow) State() SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := SessionState{
		FlowID:          f.id,
		Step:            f.step,
		Identifier:      f.identifier,
		Password:        f.password,
		PIN:             f.pin,
		OTP:             f.otp,
		NewPassword:     f.newPassword,
		ConfirmPassword: f.confirmPassword,
		Countries:       cloneCountries(f.countries),
		IsPinLogin:      f.pinLogin,
		IsLoading:       f.loading,
		CallbackURL:     f.callbackURL,
	}
	if f.selected != nil {
		c := *f.selected
		s.SelectedCountry = &c
	}
	if f.notice != nil {
		n := *f.notice
		s.Notice = &n
	}
	return s
}

func cloneCountries(countries []CountryDetail) []CountryDetail {
	if countries == nil {
		return nil
	}
	out := make([]CountryDetail, len(countries))
	copy(out, countries)
	return out
}

/*
====================================
FIELD SETTERS
====================================
*/

// SetIdentifier updates the identifier field.
func (f *Flow) SetIdentifier(v string) { f.set(&f.identifier, v) }

// SetPassword updates the password field.
func (f *Flow) SetPassword(v string) { f.set(&f.password, v) }

// SetPIN updates the PIN field.
func (f *Flow) SetPIN(v string) { f.set(&f.pin, v) }

// SetOTP updates the one-time code field.
func (f *Flow) SetOTP(v string) { f.set(&f.otp, v) }

// SetNewPassword updates the new password field.
func (f *Flow) SetNewPassword(v string) { f.set(&f.newPassword, v) }

// SetConfirmPassword updates the password confirmation field.
func (f *Flow) SetConfirmPassword(v string) { f.set(&f.confirmPassword, v) }

func (f *Flow) set(field *string, v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.step == StepSuccess {
		return
	}
	*field = v
}

// DismissNotice clears the visible notice.
func (f *Flow) DismissNotice() {
	f.mu.Lock()
	f.notice = nil
	f.mu.Unlock()
}

/*
====================================
COUNTRIES
====================================
*/

// SelectCountry makes id the flow's country and persists it as the last
// used one. The id must belong to the loaded catalog.
func (f *Flow) SelectCountry(ctx context.Context, id string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.loading {
		f.mu.Unlock()
		return ErrRequestInFlight
	}
	c, ok := FindCountry(f.countries, id)
	if !ok {
		f.mu.Unlock()
		return ErrCountryUnknown
	}
	f.selected = c
	f.mu.Unlock()

	f.persistCountry(ctx, c.ID)
	return nil
}

// LoadCountries fetches (or reuses) the shared catalog and applies the
// default country. It may be called again after a failure.
func (f *Flow) LoadCountries(ctx context.Context) error {
	if f.isClosed() {
		return ErrFlowClosed
	}

	countries, err := f.engine.countries.Get(ctx)
	if err != nil {
		f.engine.warn("country catalog unavailable", "flow_id", f.id, "error", err)
		n := Notice{Level: NoticeWarning, Message: UserMessage(err)}
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return ErrFlowClosed
		}
		f.notice = &n
		f.mu.Unlock()
		f.notify(n)
		return err
	}
	return f.commitCountries(ctx, countries)
}

// commitCountries installs the catalog and the default country in one step.
// The default is computed first and committed together with the catalog, so
// a concurrent reader never sees a catalog without its selection.
func (f *Flow) commitCountries(ctx context.Context, countries []CountryDetail) error {
	e := f.engine
	lastUsed, ok, err := e.store.Get(ctx, e.config.Storage.CountryKey)
	if err != nil {
		e.warn("last-used country unreadable", "flow_id", f.id, "error", err)
		lastUsed, ok = "", false
	}
	if !ok {
		lastUsed = ""
	}

	selected := SelectDefaultCountry(countries, lastUsed, e.config.Countries)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.selected != nil {
		// a user choice made before the catalog arrived wins
		if c, found := FindCountry(countries, f.selected.ID); found {
			selected = c
		}
	}
	f.countries = countries
	f.selected = selected
	f.mu.Unlock()

	if selected != nil && selected.ID != lastUsed {
		f.persistCountry(ctx, selected.ID)
	}
	return nil
}

func (f *Flow) persistCountry(ctx context.Context, id string) {
	e := f.engine
	if err := e.store.Set(ctx, e.config.Storage.CountryKey, id); err != nil {
		e.warn("country persistence failed", "flow_id", f.id, "country_id", id, "error", err)
	}
}

/*
====================================
SUBMITS
====================================
*/

// SubmitIdentifier resolves the identifier and moves to verify or
// verify-otp.
func (f *Flow) SubmitIdentifier(ctx context.Context) error {
	release, err := f.acquire(StepIdentifier)
	if err != nil {
		return err
	}
	defer release()

	f.mu.Lock()
	in := flows.IdentifyInput{Identifier: f.identifier, Country: f.countryID()}
	f.mu.Unlock()

	out := flows.RunIdentify(ctx, in, f.deps())
	return f.apply(ctx, StepIdentifier, out, func(o flows.Outcome) {
		f.recordIdentify(ctx, auditEventIdentify, in.Identifier, o)
	})
}

// ResendOTP asks the server to send a fresh one-time code.
func (f *Flow) ResendOTP(ctx context.Context) error {
	release, err := f.acquire(StepVerifyOTP)
	if err != nil {
		return err
	}
	defer release()

	f.mu.Lock()
	in := flows.IdentifyInput{Identifier: f.identifier, Country: f.countryID()}
	f.mu.Unlock()

	out := flows.RunResendOTP(ctx, in, f.deps())
	return f.apply(ctx, StepVerifyOTP, out, func(o flows.Outcome) {
		f.recordIdentify(ctx, auditEventOTPResend, in.Identifier, o)
	})
}

// SubmitVerify logs in with the password, or the PIN on PIN accounts.
func (f *Flow) SubmitVerify(ctx context.Context) error {
	release, err := f.acquire(StepVerify)
	if err != nil {
		return err
	}
	defer release()

	f.mu.Lock()
	in := flows.VerifyInput{
		Identifier: f.identifier,
		Country:    f.countryID(),
		PinLogin:   f.pinLogin,
		Password:   f.password,
		PIN:        f.pin,
	}
	f.mu.Unlock()

	out := flows.RunVerify(ctx, in, f.deps())
	return f.apply(ctx, StepVerify, out, func(o flows.Outcome) {
		f.recordLogin(ctx, auditEventLogin, StepVerify, in.Identifier, o)
	})
}

// SubmitOTP exchanges the one-time code for a setup token.
func (f *Flow) SubmitOTP(ctx context.Context) error {
	release, err := f.acquire(StepVerifyOTP)
	if err != nil {
		return err
	}
	defer release()

	f.mu.Lock()
	in := flows.OTPInput{Identifier: f.identifier, Country: f.countryID(), OTP: f.otp}
	f.mu.Unlock()

	out := flows.RunVerifyOTP(ctx, in, f.deps())
	return f.apply(ctx, StepVerifyOTP, out, func(o flows.Outcome) {
		f.recordOTP(ctx, in.Identifier, o)
	})
}

// SubmitSetup creates the account password.
func (f *Flow) SubmitSetup(ctx context.Context) error {
	release, err := f.acquire(StepSetupPassword)
	if err != nil {
		return err
	}
	defer release()

	f.mu.Lock()
	in := flows.SetupInput{
		Identifier:      f.identifier,
		Country:         f.countryID(),
		NewPassword:     f.newPassword,
		ConfirmPassword: f.confirmPassword,
		SetupToken:      f.setupToken,
	}
	f.mu.Unlock()

	out := flows.RunSetupPassword(ctx, in, f.deps())
	return f.apply(ctx, StepSetupPassword, out, func(o flows.Outcome) {
		f.recordLogin(ctx, auditEventSetupPassword, StepSetupPassword, in.Identifier, o)
	})
}

/*
====================================
NAVIGATION
====================================
*/

// Back follows the explicit back edge of the current step. Leaving for the
// identifier step clears every credential and the setup token.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFlowClosed
	}
	if f.loading {
		return ErrRequestInFlight
	}
	next, ok := flows.Back(flows.Step(f.step), f.setupToken != "")
	if !ok {
		return ErrInvalidStep
	}

	switch Step(next) {
	case StepIdentifier:
		f.clearSecrets()
		f.pinLogin = false
	case StepVerifyOTP:
		f.setupToken = ""
		f.newPassword, f.confirmPassword = "", ""
	}
	f.step = Step(next)
	f.notice = nil
	return nil
}

// Close ends the flow. Responses that arrive afterwards have no effect.
func (f *Flow) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	step := f.step
	f.clearSecrets()
	f.mu.Unlock()

	if step != StepSuccess {
		f.engine.emitAudit(context.Background(), auditEventFlowClosed, false, f.id, step, nil, nil)
	}
}

/*
====================================
INTERNALS
====================================
*/

// acquire takes the loading flag for a submit valid on step. The returned
// release must be called exactly once.
func (f *Flow) acquire(step Step) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFlowClosed
	}
	if f.loading {
		f.engine.metricInc(MetricRequestInFlightRejected)
		return nil, ErrRequestInFlight
	}
	if f.step != step {
		return nil, ErrInvalidStep
	}
	f.loading = true

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.loading = false
			f.mu.Unlock()
		})
	}, nil
}

func (f *Flow) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// countryID must be called with f.mu held.
func (f *Flow) countryID() string {
	if f.selected == nil {
		return ""
	}
	return f.selected.ID
}

// clearSecrets must be called with f.mu held.
func (f *Flow) clearSecrets() {
	f.password = ""
	f.pin = ""
	f.otp = ""
	f.newPassword = ""
	f.confirmPassword = ""
	f.setupToken = ""
}

func (f *Flow) deps() flows.Deps {
	e := f.engine
	return flows.Deps{
		PINMinLength:       e.config.Password.PINMinLength,
		PasswordMinLength:  e.config.Password.MinLength,
		ClassifyIdentifier: CanSubmitIdentifier,
		UserMessage:        UserMessage,
		Resolve: func(reply flows.LoginReply) string {
			return ResolveRedirect(loginResponseOf(reply), f.callbackURL, e.config.Redirect)
		},
		Identify: func(ctx context.Context, identifier, country string) (flows.IdentifyReply, error) {
			start := e.now()
			defer e.observeAuth(start)
			resp, err := e.api.Identify(ctx, IdentifyRequest{Identifier: identifier, Country: country})
			if err != nil {
				return flows.IdentifyReply{}, err
			}
			if resp == nil {
				return flows.IdentifyReply{}, nil
			}
			return flows.IdentifyReply{
				Exists:     resp.Exists,
				AuthMethod: string(resp.AuthMethod),
				OTPSent:    resp.OTPSent,
			}, nil
		},
		Login: func(ctx context.Context, identifier, password, pin, country string) (flows.LoginReply, error) {
			start := e.now()
			defer e.observeAuth(start)
			resp, err := e.api.Login(ctx, LoginRequest{
				Identifier: identifier,
				Password:   password,
				PIN:        pin,
				Country:    country,
			})
			if err != nil {
				return flows.LoginReply{}, err
			}
			return loginReplyOf(resp), nil
		},
		VerifySetupOTP: func(ctx context.Context, identifier, otp, country string) (string, error) {
			start := e.now()
			defer e.observeAuth(start)
			resp, err := e.api.VerifySetupOTP(ctx, OTPVerifyRequest{Identifier: identifier, OTP: otp, Country: country})
			if err != nil {
				return "", err
			}
			if resp == nil {
				return "", nil
			}
			return resp.SetupToken, nil
		},
		SetupPassword: func(ctx context.Context, identifier, password, setupToken, country string) (flows.LoginReply, error) {
			start := e.now()
			defer e.observeAuth(start)
			resp, err := e.api.SetupPassword(ctx, SetupPasswordRequest{
				Identifier: identifier,
				Password:   password,
				SetupToken: setupToken,
				Country:    country,
			})
			if err != nil {
				return flows.LoginReply{}, err
			}
			return loginReplyOf(resp), nil
		},
		Errors: flows.Errors{
			IdentifierRequired:    ErrIdentifierRequired,
			IdentifierInvalid:     ErrIdentifierInvalid,
			IdentifierNotFound:    ErrIdentifierNotFound,
			UnsupportedAuthMethod: ErrUnsupportedAuthMethod,
			CredentialRequired:    ErrCredentialRequired,
			PINInvalid:            ErrPINInvalid,
			OTPRequired:           ErrOTPRequired,
			PasswordTooShort:      ErrPasswordTooShort,
			PasswordMismatch:      ErrPasswordMismatch,
			TokenMissing:          ErrTokenMissing,
			SetupTokenMissing:     ErrSetupTokenMissing,
			EngineNotReady:        ErrEngineNotReady,
		},
		Messages: flows.Messages{
			OTPDispatchDegraded: msgOTPDispatchDegraded,
			OTPResent:           msgOTPResent,
		},
	}
}

func loginReplyOf(resp *LoginResponse) flows.LoginReply {
	if resp == nil {
		return flows.LoginReply{}
	}
	reply := flows.LoginReply{Token: resp.Token}
	if resp.User != nil {
		reply.HasUser = true
		reply.SetupRequired = resp.User.SetupRequired
		reply.BusinessIDs = make([]string, 0, len(resp.User.Businesses))
		for _, b := range resp.User.Businesses {
			reply.BusinessIDs = append(reply.BusinessIDs, b.ID)
		}
	}
	return reply
}

func loginResponseOf(reply flows.LoginReply) *LoginResponse {
	resp := &LoginResponse{Token: reply.Token}
	if reply.HasUser {
		user := &LoginUser{SetupRequired: reply.SetupRequired}
		for _, id := range reply.BusinessIDs {
			user.Businesses = append(user.Businesses, Business{ID: id})
		}
		resp.User = user
	}
	return resp
}
