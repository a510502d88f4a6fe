package fakeapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Currency mirrors the catalog currency object.
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// Country mirrors one catalog entry.
type Country struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Code      string   `json:"code"`
	PhoneCode string   `json:"phoneCode"`
	Currency  Currency `json:"currency"`
}

// Business is a membership returned with the session token.
type Business struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Account is one known identity.
type Account struct {
	ID         string
	Identifier string
	// AuthMethod is password, pin or setup.
	AuthMethod string
	Password   string
	PIN        string
	OTP        string
	// OTPSendFails makes identify report otpSent=false.
	OTPSendFails bool
	// SetupRequired is reported on a successful login.
	SetupRequired bool
	Businesses    []Business
}

// DefaultCountries is a small catalog with Nigeria not first.
func DefaultCountries() []Country {
	return []Country{
		{ID: "gh", Name: "Ghana", Code: "GH", PhoneCode: "+233", Currency: Currency{Code: "GHS", Name: "Ghanaian cedi", Symbol: "₵"}},
		{ID: "ng", Name: "Nigeria", Code: "NG", PhoneCode: "+234", Currency: Currency{Code: "NGN", Name: "Nigerian naira", Symbol: "₦"}},
		{ID: "ke", Name: "Kenya", Code: "KE", PhoneCode: "+254", Currency: Currency{Code: "KES", Name: "Kenyan shilling", Symbol: "KSh"}},
	}
}

// Server holds the fake backend state. All methods are safe for concurrent
// use.
type Server struct {
	mu            sync.Mutex
	accounts      map[string]*Account
	countries     []Country
	envelope      bool
	failCountries int
	countryDelay  time.Duration
	setupTokens   map[string]string // setup token -> identifier
	calls         map[string]int
	lastAuth      map[string]string
	lastBodies    map[string]map[string]any
	secret        []byte
	now           func() time.Time
}

// New returns a server with the default catalog and no accounts.
func New() *Server {
	return &Server{
		accounts:    make(map[string]*Account),
		countries:   DefaultCountries(),
		setupTokens: make(map[string]string),
		calls:       make(map[string]int),
		lastAuth:    make(map[string]string),
		lastBodies:  make(map[string]map[string]any),
		secret:      []byte("fakeapi-signing-key"),
		now:         time.Now,
	}
}

// AddAccount registers a, replacing any account with the same identifier.
func (s *Server) AddAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	acc := a
	s.accounts[normalize(a.Identifier)] = &acc
}

// SetCountries replaces the catalog.
func (s *Server) SetCountries(c []Country) {
	s.mu.Lock()
	s.countries = c
	s.mu.Unlock()
}

// UseEnvelope wraps the catalog as {"data": [...]}.
func (s *Server) UseEnvelope(on bool) {
	s.mu.Lock()
	s.envelope = on
	s.mu.Unlock()
}

// FailCountries makes the next n catalog requests return 503.
func (s *Server) FailCountries(n int) {
	s.mu.Lock()
	s.failCountries = n
	s.mu.Unlock()
}

// DelayCountries holds every catalog request for d.
func (s *Server) DelayCountries(d time.Duration) {
	s.mu.Lock()
	s.countryDelay = d
	s.mu.Unlock()
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// LastAuthorization returns the Authorization header of the last request to
// path.
func (s *Server) LastAuthorization(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth[path]
}

// LastBody returns the decoded JSON body of the last request to path.
func (s *Server) LastBody(path string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBodies[path]
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.track)

	r.Route("/security", func(r chi.Router) {
		r.Get("/countries", s.countriesHandler)
		r.Post("/identifier", s.identifierHandler)
		r.Post("/login", s.loginHandler)
		r.Post("/verify-setup-otp", s.verifyOTPHandler)
		r.Post("/setup-password", s.setupPasswordHandler)
	})
	return r
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.lastAuth[r.URL.Path] = r.Header.Get("Authorization")
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

/*
====================================
HANDLERS
====================================
*/

type identifyBody struct {
	Identifier string `json:"identifier"`
	Country    string `json:"country"`
}

type loginBody struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	PIN        string `json:"pin"`
	Country    string `json:"country"`
}

type otpBody struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
	Country    string `json:"country"`
}

type setupBody struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	SetupToken string `json:"setupToken"`
	Country    string `json:"country"`
}

type userBody struct {
	ID            string     `json:"id"`
	SetupRequired bool       `json:"setupRequired"`
	Businesses    []Business `json:"businesses"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  *userBody `json:"user"`
}

func (s *Server) countriesHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delay := s.countryDelay
	fail := s.failCountries > 0
	if fail {
		s.failCountries--
	}
	countries := s.countries
	envelope := s.envelope
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeError(w, http.StatusServiceUnavailable, "Countries are temporarily unavailable")
		return
	}
	if envelope {
		writeJSON(w, http.StatusOK, map[string]any{"data": countries})
		return
	}
	writeJSON(w, http.StatusOK, countries)
}

func (s *Server) identifierHandler(w http.ResponseWriter, r *http.Request) {
	var in identifyBody
	if !s.decode(w, r, &in) {
		return
	}

	acc, ok := s.account(in.Identifier)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"exists": false})
		return
	}

	out := map[string]any{"exists": true, "authMethod": acc.AuthMethod}
	if acc.AuthMethod == "setup" {
		out["otpSent"] = !acc.OTPSendFails
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var in loginBody
	if !s.decode(w, r, &in) {
		return
	}

	acc, ok := s.account(in.Identifier)
	if !ok {
		writeError(w, http.StatusNotFound, "No account matches this identifier")
		return
	}

	switch {
	case acc.AuthMethod == "pin" && in.PIN != "" && in.PIN == acc.PIN:
	case acc.AuthMethod == "password" && in.Password != "" && in.Password == acc.Password:
	default:
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.writeSession(w, acc)
}

func (s *Server) verifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var in otpBody
	if !s.decode(w, r, &in) {
		return
	}

	acc, ok := s.account(in.Identifier)
	if !ok || acc.AuthMethod != "setup" {
		writeError(w, http.StatusNotFound, "No pending setup for this identifier")
		return
	}
	if in.OTP != acc.OTP {
		writeError(w, http.StatusBadRequest, "Invalid verification code")
		return
	}

	tok := uuid.NewString()
	s.mu.Lock()
	s.setupTokens[tok] = normalize(acc.Identifier)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"setupToken": tok})
}

func (s *Server) setupPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var in setupBody
	if !s.decode(w, r, &in) {
		return
	}

	key := normalize(in.Identifier)
	authorized := false

	s.mu.Lock()
	if in.SetupToken != "" && s.setupTokens[in.SetupToken] == key {
		delete(s.setupTokens, in.SetupToken)
		authorized = true
	}
	s.mu.Unlock()

	acc, ok := s.account(in.Identifier)
	if !ok {
		writeError(w, http.StatusNotFound, "No account matches this identifier")
		return
	}
	if !authorized && in.SetupToken == "" {
		authorized = s.bearerSubject(r) == acc.ID
	}
	if !authorized {
		writeError(w, http.StatusUnauthorized, "Your setup session has expired. Request a new code.")
		return
	}
	if len(in.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "Password must be at least 8 characters")
		return
	}

	acc.AuthMethod = "password"
	acc.Password = in.Password
	acc.SetupRequired = false
	s.mu.Lock()
	s.accounts[key] = &acc
	s.mu.Unlock()

	s.writeSession(w, acc)
}

/*
====================================
HELPERS
====================================
*/

func (s *Server) account(identifier string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[normalize(identifier)]
	if !ok {
		return Account{}, false
	}
	return *acc, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return false
	}
	s.mu.Lock()
	s.lastBodies[r.URL.Path] = raw
	s.mu.Unlock()

	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, into); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return false
	}
	return true
}

func (s *Server) writeSession(w http.ResponseWriter, acc Account) {
	tok, err := s.issue(acc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not create session")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token: tok,
		User: &userBody{
			ID:            acc.ID,
			SetupRequired: acc.SetupRequired,
			Businesses:    acc.Businesses,
		},
	})
}

func (s *Server) issue(subject string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) bearerSubject(r *http.Request) string {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return ""
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ""
	}
	return claims.Subject
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message, "error": http.StatusText(status)})
}
