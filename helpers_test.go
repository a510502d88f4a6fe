package consolelogin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/consolelogin/storage"
)

var testCountries = []CountryDetail{
	{ID: "gh", Name: "Ghana", Code: "GH", PhoneCode: "+233", Currency: Currency{Code: "GHS"}},
	{ID: "ng", Name: "Nigeria", Code: "NG", PhoneCode: "+234", Currency: Currency{Code: "NGN"}},
	{ID: "ke", Name: "Kenya", Code: "KE", PhoneCode: "+254", Currency: Currency{Code: "KES"}},
}

// fakeAPI is a scriptable SecurityAPI. Gates, when set, block the call until
// closed.
type fakeAPI struct {
	mu sync.Mutex

	countries    []CountryDetail
	countriesErr error
	countryGate  chan struct{}
	countryCalls atomic.Int32

	identify      map[string]IdentifyResponse
	identifyErr   error
	identifyGate  chan struct{}
	identifyCalls int

	loginResp  *LoginResponse
	loginErr   error
	loginCalls int
	lastLogin  LoginRequest

	otpResp  *OTPVerifyResponse
	otpErr   error
	otpCalls int

	setupResp  *LoginResponse
	setupErr   error
	setupCalls int
	lastSetup  SetupPasswordRequest
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		countries: testCountries,
		identify:  map[string]IdentifyResponse{},
	}
}

func (f *fakeAPI) Countries(ctx context.Context) ([]CountryDetail, error) {
	f.countryCalls.Add(1)
	f.mu.Lock()
	gate, list, err := f.countryGate, f.countries, f.countriesErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return list, err
}

func (f *fakeAPI) Identify(ctx context.Context, req IdentifyRequest) (*IdentifyResponse, error) {
	f.mu.Lock()
	f.identifyCalls++
	gate, err := f.identifyGate, f.identifyErr
	resp, ok := f.identify[req.Identifier]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return &IdentifyResponse{Exists: false}, nil
	}
	return &resp, nil
}

func (f *fakeAPI) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	f.lastLogin = req
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) VerifySetupOTP(ctx context.Context, req OTPVerifyRequest) (*OTPVerifyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpCalls++
	return f.otpResp, f.otpErr
}

func (f *fakeAPI) SetupPassword(ctx context.Context, req SetupPasswordRequest) (*LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupCalls++
	f.lastSetup = req
	return f.setupResp, f.setupErr
}

func (f *fakeAPI) calls() (identify, login, otp, setup int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identifyCalls, f.loginCalls, f.otpCalls, f.setupCalls
}

// serverErr mimics api.Error.
type serverErr struct {
	status int
	msg    string
}

func (e serverErr) Error() string       { return "server: " + e.msg }
func (e serverErr) UserMessage() string { return e.msg }
func (e serverErr) StatusCode() int     { return e.status }

// recorder captures notices, navigations and success callbacks.
type recorder struct {
	mu          sync.Mutex
	notices     []Notice
	navigations []string
	successes   int
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recorder) Navigate(url string) {
	r.mu.Lock()
	r.navigations = append(r.navigations, url)
	r.mu.Unlock()
}

func (r *recorder) onSuccess(context.Context) {
	r.mu.Lock()
	r.successes++
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]Notice, []string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...), append([]string(nil), r.navigations...), r.successes
}

type failingTokens struct{}

func (failingTokens) Save(context.Context, string) error { return errors.New("disk full") }

type testEnv struct {
	engine *Engine
	api    *fakeAPI
	store  *storage.Memory
	rec    *recorder
}

func newTestEngine(t *testing.T, api *fakeAPI, opts ...func(*Builder)) *testEnv {
	t.Helper()
	store := storage.NewMemory()
	rec := &recorder{}

	b := New().
		WithAPI(api).
		WithStorage(store).
		WithNavigator(rec).
		WithNotifier(rec).
		WithOnSuccess(rec.onSuccess).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return &testEnv{engine: engine, api: api, store: store, rec: rec}
}

func (env *testEnv) newFlow(t *testing.T, callback string) *Flow {
	t.Helper()
	f, err := env.engine.NewFlow(context.Background(), FlowOptions{CallbackURL: callback})
	if err != nil {
		t.Fatalf("NewFlow failed: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func boolPtr(v bool) *bool { return &v }

func mustGet(t *testing.T, store *storage.Memory, key string) string {
	t.Helper()
	v, ok, err := store.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("key %q: ok=%v err=%v", key, ok, err)
	}
	return v
}
