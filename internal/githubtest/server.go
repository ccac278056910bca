// Package githubtest provides a fake GitHub serving the device flow and key registration endpoints.
package githubtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Config scripts the replies of a Server. Zero values select a successful flow.
type Config struct {
	// DeviceCodeStatus is the status of the device code reply. Defaults to 200.
	DeviceCodeStatus int
	// DeviceCodeBody replaces the generated device code reply when set.
	DeviceCodeBody string
	// Interval is the poll interval handed out, in seconds. Defaults to 0.01.
	Interval float64

	// PendingPolls is the number of polls answered with authorization_pending before the token is granted.
	PendingPolls int
	// FailPoll makes the poll with this 1-based number fail with FailPollStatus.
	FailPoll       int
	FailPollStatus int
	// Token is the access token granted. Defaults to "gho_TESTTOKEN".
	Token string

	// KeyStatus is the status of the key registration reply. Defaults to 201.
	KeyStatus int
	// KeyBody is the body of the key registration reply.
	KeyBody string
}

// KeyRequest is a request received by the key registration endpoint.
type KeyRequest struct {
	Authorization string
	Accept        string
	Body          []byte
}

// Server is a running fake GitHub.
type Server struct {
	*httptest.Server

	cfg Config

	mu          sync.Mutex
	deviceForms []url.Values
	pollForms   []url.Values
	pollTimes   []time.Time
	keyRequests []KeyRequest
}

// Device code handed out by every Server.
const (
	DeviceCode      = "3584d83530557fdd1f46af8289938c8ef79f9dc5"
	UserCode        = "WDJB-MJHT"
	VerificationURI = "https://github.com/login/device"
)

// NewServer starts a Server replying as scripted by cfg. Callers must Close it.
func NewServer(cfg Config) *Server {
	if cfg.DeviceCodeStatus == 0 {
		cfg.DeviceCodeStatus = http.StatusOK
	}
	if cfg.Interval == 0 {
		cfg.Interval = 0.01
	}
	if cfg.Token == "" {
		cfg.Token = "gho_TESTTOKEN"
	}
	if cfg.KeyStatus == 0 {
		cfg.KeyStatus = http.StatusCreated
	}

	s := &Server{cfg: cfg}

	r := chi.NewRouter()
	r.Post("/login/device/code", s.handleDeviceCode)
	r.Post("/login/oauth/access_token", s.handleAccessToken)
	r.Post("/api/v3/user/keys", s.handleKeys)
	s.Server = httptest.NewServer(r)

	return s
}

func (s *Server) handleDeviceCode(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.deviceForms = append(s.deviceForms, r.PostForm)
	s.mu.Unlock()

	if s.cfg.DeviceCodeBody != "" {
		writeRaw(w, s.cfg.DeviceCodeStatus, s.cfg.DeviceCodeBody)
		return
	}
	if s.cfg.DeviceCodeStatus != http.StatusOK {
		writeJSON(w, s.cfg.DeviceCodeStatus, map[string]string{"error": "unauthorized_client"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_code":      DeviceCode,
		"user_code":        UserCode,
		"verification_uri": VerificationURI,
		"expires_in":       900,
		"interval":         s.cfg.Interval,
	})
}

func (s *Server) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.pollForms = append(s.pollForms, r.PostForm)
	s.pollTimes = append(s.pollTimes, time.Now())
	n := len(s.pollForms)
	s.mu.Unlock()

	switch {
	case s.cfg.FailPoll != 0 && n == s.cfg.FailPoll:
		writeJSON(w, s.cfg.FailPollStatus, map[string]string{"error": "incorrect_client_credentials"})
	case n <= s.cfg.PendingPolls:
		writeJSON(w, http.StatusOK, map[string]string{"error": "authorization_pending"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"access_token": s.cfg.Token,
			"token_type":   "bearer",
			"scope":        "admin:public_key,user",
		})
	}
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.keyRequests = append(s.keyRequests, KeyRequest{
		Authorization: r.Header.Get("Authorization"),
		Accept:        r.Header.Get("Accept"),
		Body:          body,
	})
	s.mu.Unlock()

	writeRaw(w, s.cfg.KeyStatus, s.cfg.KeyBody)
}

// DeviceCodeForms returns the forms posted to the device code endpoint.
func (s *Server) DeviceCodeForms() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.deviceForms...)
}

// PollForms returns the forms posted to the access token endpoint.
func (s *Server) PollForms() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.pollForms...)
}

// PollGaps returns the time elapsed between consecutive polls.
func (s *Server) PollGaps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var gaps []time.Duration
	for i := 1; i < len(s.pollTimes); i++ {
		gaps = append(gaps, s.pollTimes[i].Sub(s.pollTimes[i-1]))
	}
	return gaps
}

// KeyRequests returns the requests received by the key registration endpoint.
func (s *Server) KeyRequests() []KeyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]KeyRequest(nil), s.keyRequests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != "" {
		_, _ = io.WriteString(w, body)
	}
}
