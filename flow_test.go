package consolelogin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func passwordAccount(api *fakeAPI, identifier string) {
	api.identify[identifier] = IdentifyResponse{Exists: true, AuthMethod: AuthMethodPassword}
}

func advanceToVerify(t *testing.T, f *Flow, identifier string) {
	t.Helper()
	f.SetIdentifier(identifier)
	if err := f.SubmitIdentifier(context.Background()); err != nil {
		t.Fatalf("SubmitIdentifier: %v", err)
	}
}

func TestNewFlowAppliesDefaultCountry(t *testing.T) {
	env := newTestEngine(t, newFakeAPI())
	f := env.newFlow(t, "/home")

	s := f.State()
	if s.Step != StepIdentifier || s.FlowID == "" || s.CallbackURL != "/home" {
		t.Fatalf("state = %+v", s)
	}
	if s.SelectedCountry == nil || s.SelectedCountry.ID != "ng" {
		t.Fatalf("expected preferred country ng, got %+v", s.SelectedCountry)
	}
	if got := mustGet(t, env.store, "login_country_id"); got != "ng" {
		t.Fatalf("persisted country = %q", got)
	}
}

func TestIdentifyTransitions(t *testing.T) {
	tests := []struct {
		name     string
		resp     IdentifyResponse
		wantStep Step
		wantPIN  bool
		wantErr  error
	}{
		{"password", IdentifyResponse{Exists: true, AuthMethod: AuthMethodPassword}, StepVerify, false, nil},
		{"pin", IdentifyResponse{Exists: true, AuthMethod: AuthMethodPIN}, StepVerify, true, nil},
		{"setup", IdentifyResponse{Exists: true, AuthMethod: AuthMethodSetup, OTPSent: boolPtr(true)}, StepVerifyOTP, false, nil},
		{"not found", IdentifyResponse{Exists: false}, StepIdentifier, false, ErrIdentifierNotFound},
		{"unknown method", IdentifyResponse{Exists: true, AuthMethod: "magic-link"}, StepIdentifier, false, ErrUnsupportedAuthMethod},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI()
			api.identify["ada@example.com"] = tc.resp
			env := newTestEngine(t, api)
			f := env.newFlow(t, "")

			f.SetIdentifier("ada@example.com")
			err := f.SubmitIdentifier(context.Background())
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			s := f.State()
			if s.Step != tc.wantStep || s.IsPinLogin != tc.wantPIN || s.IsLoading {
				t.Fatalf("state = %+v", s)
			}
		})
	}
}

func TestInvalidIdentifierNeverCallsBackend(t *testing.T) {
	env := newTestEngine(t, newFakeAPI())
	f := env.newFlow(t, "")

	f.SetIdentifier("12345")
	if err := f.SubmitIdentifier(context.Background()); !errors.Is(err, ErrIdentifierInvalid) {
		t.Fatalf("expected ErrIdentifierInvalid, got %v", err)
	}
	if n, _, _, _ := env.api.calls(); n != 0 {
		t.Fatalf("identify called %d times", n)
	}
	notices, _, _ := env.rec.snapshot()
	if len(notices) != 1 || notices[0].Level != NoticeError {
		t.Fatalf("notices = %+v", notices)
	}
}

func TestIdentifierSendsSelectedCountry(t *testing.T) {
	api := newFakeAPI()
	passwordAccount(api, "ada@example.com")
	api.loginResp = &LoginResponse{Token: "tok"}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	if err := f.SelectCountry(context.Background(), "ke"); err != nil {
		t.Fatalf("SelectCountry: %v", err)
	}
	advanceToVerify(t, f, "ada@example.com")
	f.SetPassword("secret")
	if err := f.SubmitVerify(context.Background()); err != nil {
		t.Fatalf("SubmitVerify: %v", err)
	}
	if env.api.lastLogin.Country != "ke" {
		t.Fatalf("login country = %q", env.api.lastLogin.Country)
	}
}

func TestSetupEntryClearsResidualOTP(t *testing.T) {
	api := newFakeAPI()
	api.identify["new@example.com"] = IdentifyResponse{Exists: true, AuthMethod: AuthMethodSetup, OTPSent: boolPtr(true)}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	f.SetIdentifier("new@example.com")
	f.SetOTP("left-over")
	if err := f.SubmitIdentifier(context.Background()); err != nil {
		t.Fatalf("SubmitIdentifier: %v", err)
	}
	if s := f.State(); s.Step != StepVerifyOTP || s.OTP != "" {
		t.Fatalf("first entry: %+v", s)
	}

	f.SetOTP("999999")
	if err := f.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if err := f.SubmitIdentifier(context.Background()); err != nil {
		t.Fatalf("second SubmitIdentifier: %v", err)
	}
	if s := f.State(); s.Step != StepVerifyOTP || s.OTP != "" {
		t.Fatalf("second entry: %+v", s)
	}
}

func TestOTPDispatchDegradedStillAdvances(t *testing.T) {
	api := newFakeAPI()
	api.identify["new@example.com"] = IdentifyResponse{Exists: true, AuthMethod: AuthMethodSetup, OTPSent: boolPtr(false)}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	f.SetIdentifier("new@example.com")
	if err := f.SubmitIdentifier(context.Background()); err != nil {
		t.Fatalf("SubmitIdentifier: %v", err)
	}

	s := f.State()
	if s.Step != StepVerifyOTP {
		t.Fatalf("step = %s", s.Step)
	}
	if s.Notice == nil || s.Notice.Level != NoticeWarning {
		t.Fatalf("expected advisory notice, got %+v", s.Notice)
	}
	notices, _, _ := env.rec.snapshot()
	if len(notices) != 1 || notices[0].Level != NoticeWarning {
		t.Fatalf("notices = %+v", notices)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricOTPDispatchDegraded]; got != 1 {
		t.Fatalf("degraded counter = %d", got)
	}
}

func TestSetupRequiredFromVerifyGoesToSetupPassword(t *testing.T) {
	api := newFakeAPI()
	passwordAccount(api, "legacy@example.com")
	api.loginResp = &LoginResponse{Token: "tok-1", User: &LoginUser{SetupRequired: true}}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "/home")

	advanceToVerify(t, f, "legacy@example.com")
	f.SetPassword("old-secret")
	if err := f.SubmitVerify(context.Background()); err != nil {
		t.Fatalf("SubmitVerify: %v", err)
	}

	s := f.State()
	if s.Step != StepSetupPassword || s.Password != "" {
		t.Fatalf("state = %+v", s)
	}
	if got := mustGet(t, env.store, "auth_token"); got != "tok-1" {
		t.Fatalf("token = %q", got)
	}
	if _, navs, successes := env.rec.snapshot(); len(navs) != 0 || successes != 0 {
		t.Fatalf("navigations=%v successes=%d", navs, successes)
	}

	// no setup token exists on this path, so back skips verify-otp
	if err := f.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if s := f.State(); s.Step != StepIdentifier {
		t.Fatalf("back step = %s", s.Step)
	}
}

func advanceToSetup(t *testing.T, env *testEnv) *Flow {
	t.Helper()
	env.api.mu.Lock()
	env.api.identify["new@example.com"] = IdentifyResponse{Exists: true, AuthMethod: AuthMethodSetup}
	env.api.otpResp = &OTPVerifyResponse{SetupToken: "st-1"}
	env.api.mu.Unlock()

	f := env.newFlow(t, "")
	f.SetIdentifier("new@example.com")
	if err := f.SubmitIdentifier(context.Background()); err != nil {
		t.Fatalf("SubmitIdentifier: %v", err)
	}
	f.SetOTP("123456")
	if err := f.SubmitOTP(context.Background()); err != nil {
		t.Fatalf("SubmitOTP: %v", err)
	}
	return f
}

func TestShortPasswordNeverCallsBackend(t *testing.T) {
	for _, password := range []string{"short12", "密码密码", "pässwö"} {
		t.Run(password, func(t *testing.T) {
			env := newTestEngine(t, newFakeAPI())
			f := advanceToSetup(t, env)

			f.SetNewPassword(password)
			f.SetConfirmPassword(password)
			err := f.SubmitSetup(context.Background())
			if !errors.Is(err, ErrPasswordTooShort) {
				t.Fatalf("expected ErrPasswordTooShort, got %v", err)
			}
			if _, _, _, setup := env.api.calls(); setup != 0 {
				t.Fatalf("setup called %d times", setup)
			}
			s := f.State()
			if s.Step != StepSetupPassword || s.Notice == nil || !strings.Contains(s.Notice.Message, "at least 8") {
				t.Fatalf("state = %+v notice=%+v", s, s.Notice)
			}
			if got := env.engine.MetricsSnapshot().Counters[MetricSetupRejected]; got != 1 {
				t.Fatalf("setup rejected = %d", got)
			}
		})
	}
}

func TestMultibytePasswordOfMinimumLengthIsAccepted(t *testing.T) {
	api := newFakeAPI()
	api.setupResp = &LoginResponse{Token: "tok-mb"}
	env := newTestEngine(t, api)
	f := advanceToSetup(t, env)

	f.SetNewPassword("密码密码密码密码")
	f.SetConfirmPassword("密码密码密码密码")
	if err := f.SubmitSetup(context.Background()); err != nil {
		t.Fatalf("SubmitSetup: %v", err)
	}
	if _, _, _, setup := env.api.calls(); setup != 1 {
		t.Fatalf("setup called %d times", setup)
	}
	if env.api.lastSetup.Password != "密码密码密码密码" {
		t.Fatalf("setup password = %q", env.api.lastSetup.Password)
	}
	if s := f.State(); s.Step != StepSuccess {
		t.Fatalf("step = %s", s.Step)
	}
}

func TestPasswordMismatchNeverCallsBackend(t *testing.T) {
	api := newFakeAPI()
	api.identify["new@example.com"] = IdentifyResponse{Exists: true, AuthMethod: AuthMethodSetup}
	api.otpResp = &OTPVerifyResponse{SetupToken: "st-1"}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	f.SetIdentifier("new@example.com")
	_ = f.SubmitIdentifier(context.Background())
	f.SetOTP("123456")
	_ = f.SubmitOTP(context.Background())

	f.SetNewPassword("long-enough-1")
	f.SetConfirmPassword("long-enough-2")
	if err := f.SubmitSetup(context.Background()); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if _, _, _, setup := env.api.calls(); setup != 0 {
		t.Fatalf("setup called %d times", setup)
	}
}

func TestOTPSetupCompletesAndSendsSetupTokenOnlyToSetup(t *testing.T) {
	api := newFakeAPI()
	api.identify["new@example.com"] = IdentifyResponse{Exists: true, AuthMethod: AuthMethodSetup}
	api.otpResp = &OTPVerifyResponse{SetupToken: "st-1"}
	api.setupResp = &LoginResponse{Token: "tok-2", User: &LoginUser{Businesses: []Business{{ID: "biz-9"}}}}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "/orders")

	f.SetIdentifier("new@example.com")
	_ = f.SubmitIdentifier(context.Background())
	f.SetOTP("123456")
	if err := f.SubmitOTP(context.Background()); err != nil {
		t.Fatalf("SubmitOTP: %v", err)
	}
	if s := f.State(); s.Step != StepSetupPassword {
		t.Fatalf("step = %s", s.Step)
	}

	f.SetNewPassword("long-enough-1")
	f.SetConfirmPassword("long-enough-1")
	if err := f.SubmitSetup(context.Background()); err != nil {
		t.Fatalf("SubmitSetup: %v", err)
	}

	if env.api.lastSetup.SetupToken != "st-1" || env.api.lastSetup.Password != "long-enough-1" {
		t.Fatalf("setup request = %+v", env.api.lastSetup)
	}
	if s := f.State(); s.Step != StepSuccess || s.NewPassword != "" {
		t.Fatalf("state = %+v", s)
	}
	if got := mustGet(t, env.store, "active_business_id"); got != "biz-9" {
		t.Fatalf("business = %q", got)
	}
	if _, navs, _ := env.rec.snapshot(); len(navs) != 1 || navs[0] != "/orders" {
		t.Fatalf("navigations = %v", navs)
	}
}

func TestOTPFailureKeepsCodeAndSurfacesServerMessage(t *testing.T) {
	api := newFakeAPI()
	api.identify["new@example.com"] = IdentifyResponse{Exists: true, AuthMethod: AuthMethodSetup}
	api.otpErr = serverErr{status: 400, msg: "Invalid verification code"}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	f.SetIdentifier("new@example.com")
	_ = f.SubmitIdentifier(context.Background())
	f.SetOTP("000000")
	err := f.SubmitOTP(context.Background())
	if ErrorClass(err) != KindAuth {
		t.Fatalf("class = %q err=%v", ErrorClass(err), err)
	}

	s := f.State()
	if s.Step != StepVerifyOTP || s.OTP != "000000" {
		t.Fatalf("state = %+v", s)
	}
	if s.Notice == nil || s.Notice.Message != "Invalid verification code" {
		t.Fatalf("notice = %+v", s.Notice)
	}
}

func TestSuccessPersistsAndNavigatesInOrder(t *testing.T) {
	api := newFakeAPI()
	passwordAccount(api, "ada@example.com")
	api.loginResp = &LoginResponse{Token: "tok-3", User: &LoginUser{Businesses: []Business{{ID: "biz-1"}}}}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "/reports?tab=1")

	var seenToken string
	f.onSuccess = func(ctx context.Context) {
		seenToken, _, _ = env.store.Get(ctx, "auth_token")
	}

	advanceToVerify(t, f, "ada@example.com")
	f.SetPassword("secret")
	if err := f.SubmitVerify(context.Background()); err != nil {
		t.Fatalf("SubmitVerify: %v", err)
	}

	if seenToken != "tok-3" {
		t.Fatalf("token not persisted before success callback: %q", seenToken)
	}
	if got := mustGet(t, env.store, "active_business_id"); got != "biz-1" {
		t.Fatalf("business = %q", got)
	}
	if got := mustGet(t, env.store, "login_country_id"); got != "ng" {
		t.Fatalf("country = %q", got)
	}
	if _, navs, _ := env.rec.snapshot(); len(navs) != 1 || navs[0] != "/reports?tab=1" {
		t.Fatalf("navigations = %v", navs)
	}
	s := f.State()
	if s.Step != StepSuccess || s.Password != "" {
		t.Fatalf("state = %+v", s)
	}
	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricFlowSuccess] != 1 || snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("counters = %+v", snap.Counters)
	}
}

func TestMultipleBusinessesRedirectToSelection(t *testing.T) {
	api := newFakeAPI()
	api.identify["+2348012345678"] = IdentifyResponse{Exists: true, AuthMethod: AuthMethodPIN}
	api.loginResp = &LoginResponse{Token: "tok-4", User: &LoginUser{Businesses: []Business{{ID: "a"}, {ID: "b"}}}}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "/home")

	advanceToVerify(t, f, "+2348012345678")
	f.SetPIN("1234")
	if err := f.SubmitVerify(context.Background()); err != nil {
		t.Fatalf("SubmitVerify: %v", err)
	}

	if env.api.lastLogin.PIN != "1234" || env.api.lastLogin.Password != "" {
		t.Fatalf("login request = %+v", env.api.lastLogin)
	}
	if _, ok, _ := env.store.Get(context.Background(), "active_business_id"); ok {
		t.Fatal("business persisted for a multi-business user")
	}
	_, navs, _ := env.rec.snapshot()
	if len(navs) != 1 || navs[0] != "/select-business?callbackUrl=%2Fhome" {
		t.Fatalf("navigations = %v", navs)
	}
}

func TestPINValidationBlocksBackend(t *testing.T) {
	api := newFakeAPI()
	api.identify["+2348012345678"] = IdentifyResponse{Exists: true, AuthMethod: AuthMethodPIN}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	advanceToVerify(t, f, "+2348012345678")
	for _, pin := range []string{"12", "12a4"} {
		f.SetPIN(pin)
		if err := f.SubmitVerify(context.Background()); !errors.Is(err, ErrPINInvalid) {
			t.Fatalf("pin %q: expected ErrPINInvalid, got %v", pin, err)
		}
	}
	if _, login, _, _ := env.api.calls(); login != 0 {
		t.Fatalf("login called %d times", login)
	}
}

func TestTokenPersistenceFailureAbortsSuccess(t *testing.T) {
	api := newFakeAPI()
	passwordAccount(api, "ada@example.com")
	api.loginResp = &LoginResponse{Token: "tok-5"}
	env := newTestEngine(t, api, func(b *Builder) { b.WithTokenSaver(failingTokens{}) })
	f := env.newFlow(t, "")

	advanceToVerify(t, f, "ada@example.com")
	f.SetPassword("secret")
	err := f.SubmitVerify(context.Background())
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	if s := f.State(); s.Step != StepVerify || s.Notice == nil || s.Notice.Level != NoticeError {
		t.Fatalf("state = %+v", s)
	}
	if _, navs, successes := env.rec.snapshot(); len(navs) != 0 || successes != 0 {
		t.Fatalf("navigations=%v successes=%d", navs, successes)
	}
}

func TestMissingTokenStaysOnVerify(t *testing.T) {
	api := newFakeAPI()
	passwordAccount(api, "ada@example.com")
	api.loginResp = &LoginResponse{}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	advanceToVerify(t, f, "ada@example.com")
	f.SetPassword("secret")
	if err := f.SubmitVerify(context.Background()); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if s := f.State(); s.Step != StepVerify {
		t.Fatalf("step = %s", s.Step)
	}
}

func TestLoginServerMessageSurfacedVerbatim(t *testing.T) {
	api := newFakeAPI()
	passwordAccount(api, "ada@example.com")
	api.loginErr = serverErr{status: 401, msg: "Invalid credentials. 2 attempts left."}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	advanceToVerify(t, f, "ada@example.com")
	f.SetPassword("wrong")
	_ = f.SubmitVerify(context.Background())

	notices, _, _ := env.rec.snapshot()
	if len(notices) != 1 || notices[0].Message != "Invalid credentials. 2 attempts left." {
		t.Fatalf("notices = %+v", notices)
	}
	if s := f.State(); s.Step != StepVerify || s.Password != "wrong" {
		t.Fatalf("state = %+v", s)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLoginFailure]; got != 1 {
		t.Fatalf("login failure = %d", got)
	}
}

func TestSubmitWhileLoadingIsRejected(t *testing.T) {
	api := newFakeAPI()
	passwordAccount(api, "ada@example.com")
	gate := make(chan struct{})
	api.identifyGate = gate
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")
	f.SetIdentifier("ada@example.com")

	done := make(chan error, 1)
	go func() { done <- f.SubmitIdentifier(context.Background()) }()

	waitFor(t, func() bool { return f.State().IsLoading })
	if err := f.SubmitIdentifier(context.Background()); !errors.Is(err, ErrRequestInFlight) {
		t.Fatalf("expected ErrRequestInFlight, got %v", err)
	}
	if err := f.Back(); !errors.Is(err, ErrRequestInFlight) {
		t.Fatalf("Back while loading: %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if n, _, _, _ := env.api.calls(); n != 1 {
		t.Fatalf("identify calls = %d", n)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRequestInFlightRejected]; got != 1 {
		t.Fatalf("in-flight rejected = %d", got)
	}
}

func TestCloseDiscardsPendingResponse(t *testing.T) {
	api := newFakeAPI()
	passwordAccount(api, "ada@example.com")
	gate := make(chan struct{})
	api.identifyGate = gate
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")
	f.SetIdentifier("ada@example.com")

	done := make(chan error, 1)
	go func() { done <- f.SubmitIdentifier(context.Background()) }()
	waitFor(t, func() bool { return f.State().IsLoading })

	f.Close()
	close(gate)

	if err := <-done; !errors.Is(err, ErrFlowClosed) {
		t.Fatalf("expected ErrFlowClosed, got %v", err)
	}
	if s := f.State(); s.Step != StepIdentifier {
		t.Fatalf("step = %s", s.Step)
	}
	if notices, _, _ := env.rec.snapshot(); len(notices) != 0 {
		t.Fatalf("notices after close = %+v", notices)
	}
}

func TestBackClearsSecrets(t *testing.T) {
	api := newFakeAPI()
	passwordAccount(api, "ada@example.com")
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	advanceToVerify(t, f, "ada@example.com")
	f.SetPassword("typed")
	if err := f.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	s := f.State()
	if s.Step != StepIdentifier || s.Password != "" || s.Identifier != "ada@example.com" {
		t.Fatalf("state = %+v", s)
	}
	if err := f.Back(); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("Back from identifier: %v", err)
	}
}

func TestSubmitOnWrongStep(t *testing.T) {
	env := newTestEngine(t, newFakeAPI())
	f := env.newFlow(t, "")
	if err := f.SubmitVerify(context.Background()); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep, got %v", err)
	}
}

func TestResendOTP(t *testing.T) {
	api := newFakeAPI()
	api.identify["new@example.com"] = IdentifyResponse{Exists: true, AuthMethod: AuthMethodSetup, OTPSent: boolPtr(true)}
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	f.SetIdentifier("new@example.com")
	_ = f.SubmitIdentifier(context.Background())
	f.SetOTP("111")
	if err := f.ResendOTP(context.Background()); err != nil {
		t.Fatalf("ResendOTP: %v", err)
	}
	s := f.State()
	if s.Step != StepVerifyOTP || s.OTP != "" || s.Notice == nil || s.Notice.Level != NoticeInfo {
		t.Fatalf("state = %+v", s)
	}
	if n, _, _, _ := env.api.calls(); n != 2 {
		t.Fatalf("identify calls = %d", n)
	}
}

func TestCountryRoundTripAcrossSessions(t *testing.T) {
	env := newTestEngine(t, newFakeAPI())

	first := env.newFlow(t, "")
	persisted := mustGet(t, env.store, "login_country_id")
	if c := first.State().SelectedCountry; c == nil || persisted != c.ID {
		t.Fatalf("first=%+v persisted=%q", c, persisted)
	}

	second := env.newFlow(t, "")
	if got, want := second.State().SelectedCountry, first.State().SelectedCountry; got == nil || *got != *want {
		t.Fatalf("expected the same country, got %+v vs %+v", got, want)
	}
	if second.selected != first.selected {
		t.Fatalf("expected the same catalog entry, got %p vs %p", second.selected, first.selected)
	}
	if got := env.api.countryCalls.Load(); got != 1 {
		t.Fatalf("country fetches = %d", got)
	}
}

func TestStateDoesNotExposeSharedCatalog(t *testing.T) {
	env := newTestEngine(t, newFakeAPI())
	f := env.newFlow(t, "")

	s := f.State()
	s.Countries[1].Name = "Renamed"
	s.SelectedCountry.PhoneCode = "+999"

	cached, ok := env.engine.Countries().Peek()
	if !ok || cached[1].Name != "Nigeria" || cached[1].PhoneCode != "+234" {
		t.Fatalf("shared catalog mutated through a snapshot: %+v", cached)
	}
	other := env.newFlow(t, "").State()
	if other.Countries[1].Name != "Nigeria" || other.SelectedCountry.PhoneCode != "+234" {
		t.Fatalf("second flow sees mutation: %+v", other.SelectedCountry)
	}
}

func TestSelectCountry(t *testing.T) {
	env := newTestEngine(t, newFakeAPI())
	f := env.newFlow(t, "")

	if err := f.SelectCountry(context.Background(), "zz"); !errors.Is(err, ErrCountryUnknown) {
		t.Fatalf("expected ErrCountryUnknown, got %v", err)
	}
	if err := f.SelectCountry(context.Background(), "gh"); err != nil {
		t.Fatalf("SelectCountry: %v", err)
	}
	if got := mustGet(t, env.store, "login_country_id"); got != "gh" {
		t.Fatalf("persisted = %q", got)
	}

	next := env.newFlow(t, "")
	if c := next.State().SelectedCountry; c == nil || c.ID != "gh" {
		t.Fatalf("next session country = %+v", c)
	}
}

func TestCountryFailureSurfacesNoticeAndRetries(t *testing.T) {
	api := newFakeAPI()
	api.countriesErr = errors.New("connection refused")
	env := newTestEngine(t, api)
	f := env.newFlow(t, "")

	s := f.State()
	if s.SelectedCountry != nil || len(s.Countries) != 0 {
		t.Fatalf("state = %+v", s)
	}
	if s.Notice == nil || s.Notice.Level != NoticeWarning {
		t.Fatalf("notice = %+v", s.Notice)
	}

	api.mu.Lock()
	api.countriesErr = nil
	api.mu.Unlock()
	if err := f.LoadCountries(context.Background()); err != nil {
		t.Fatalf("LoadCountries: %v", err)
	}
	if c := f.State().SelectedCountry; c == nil || c.ID != "ng" {
		t.Fatalf("selected = %+v", c)
	}
	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricCountryFetchFailure] != 1 || snap.Counters[MetricCountryFetch] != 1 {
		t.Fatalf("counters = %+v", snap.Counters)
	}
}

func TestAuditEventsForSuccessfulLogin(t *testing.T) {
	api := newFakeAPI()
	passwordAccount(api, "ada@example.com")
	api.loginResp = &LoginResponse{Token: "tok-6"}
	sink := NewChannelSink(16)
	env := newTestEngine(t, api, func(b *Builder) { b.WithAuditSink(sink) })
	f := env.newFlow(t, "")

	advanceToVerify(t, f, "ada@example.com")
	f.SetPassword("secret")
	if err := f.SubmitVerify(context.Background()); err != nil {
		t.Fatalf("SubmitVerify: %v", err)
	}
	env.engine.Close()

	var types []string
	for len(sink.Events()) > 0 {
		ev := <-sink.Events()
		types = append(types, ev.EventType)
		if ev.EventType == auditEventIdentify && ev.Metadata["identifier"] != "a**@example.com" {
			t.Fatalf("identifier not masked: %+v", ev.Metadata)
		}
		if ev.FlowID != "" && ev.FlowID != f.ID() {
			t.Fatalf("flow id = %q", ev.FlowID)
		}
	}
	want := []string{auditEventCountryFetch, auditEventIdentify, auditEventLogin, auditEventFlowSuccess}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", types, want)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
