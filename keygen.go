// Package keygen registers an SSH public key with a GitHub account. The user authorizes the request in
// their browser through OAuth Device flow, so the program never handles a password.
package keygen

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	// DefaultClientID is the OAuth application that requests the user's authorization.
	DefaultClientID = "ff34863a13a9aa66ae1e"
	// DefaultTitle labels the key on the user's account.
	DefaultTitle = "CMR Git CLI"
)

// DefaultScopes are needed to add a public key to the user's account.
var DefaultScopes = []string{"user", "admin:public_key"}

type httpClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Host defines the endpoints used to authorize against an OAuth server and to register the key.
type Host struct {
	DeviceCodeURL string
	TokenURL      string
	KeysURL       string
}

// GitHubHost constructs a Host from the given URL to a GitHub instance.
func GitHubHost(hostURL string) (*Host, error) {
	u, err := url.Parse(strings.TrimSuffix(hostURL, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid host URL %q", hostURL)
	}

	keysURL := fmt.Sprintf("%s://%s/api/v3/user/keys", u.Scheme, u.Host)
	if strings.EqualFold(u.Hostname(), "github.com") {
		keysURL = fmt.Sprintf("%s://api.%s/user/keys", u.Scheme, u.Host)
	}

	return &Host{
		DeviceCodeURL: fmt.Sprintf("%s://%s/login/device/code", u.Scheme, u.Host),
		TokenURL:      fmt.Sprintf("%s://%s/login/oauth/access_token", u.Scheme, u.Host),
		KeysURL:       keysURL,
	}, nil
}

// Flow facilitates registering a single SSH key.
type Flow struct {
	// The hostname to authorize the app with and to register the key on. Defaults to github.com.
	Host *Host
	// OAuth scopes to request from the user. Defaults to DefaultScopes.
	Scopes []string
	// OAuth application ID. Defaults to DefaultClientID.
	ClientID string
	// Label of the key on the user's account. Defaults to DefaultTitle.
	Title string

	// Display a one-time code to the user. Receives the code and the browser URL as arguments. Defaults to
	// printing instructions to Stdout.
	DisplayCode func(string, string) error
	// Open a web browser at a URL. Optional: the browser is only opened when this is set.
	BrowseURL func(string) error

	// The HTTP client to use for API POST requests. Defaults to http.DefaultClient.
	HTTPClient httpClient
	// The stream to print UI messages to. Defaults to io.Discard.
	Stdout io.Writer
	// Receives progress at debug level. Secrets are never logged. Defaults to discarding everything.
	Logger *log.Logger
}

// Stage identifies the step of the flow that failed.
type Stage int

const (
	// StageDeviceCode is the request for a device and user code pair.
	StageDeviceCode Stage = iota + 1
	// StageAuthorization is polling for the user's authorization.
	StageAuthorization
	// StageKeySubmission is the upload of the public key.
	StageKeySubmission
)

func (s Stage) String() string {
	switch s {
	case StageDeviceCode:
		return "device code request"
	case StageAuthorization:
		return "authorization"
	case StageKeySubmission:
		return "key submission"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// StageError wraps the failure of one step of the flow.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage reports the stage err originated in, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return 0, false
}

func (f *Flow) host() (*Host, error) {
	if f.Host != nil {
		return f.Host, nil
	}
	return GitHubHost("https://github.com")
}

func (f *Flow) httpClient() httpClient {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

func (f *Flow) stdout() io.Writer {
	if f.Stdout != nil {
		return f.Stdout
	}
	return io.Discard
}

func (f *Flow) logger() *log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.New(io.Discard)
}

func (f *Flow) clientID() string {
	if f.ClientID != "" {
		return f.ClientID
	}
	return DefaultClientID
}

func (f *Flow) scopes() []string {
	if len(f.Scopes) > 0 {
		return f.Scopes
	}
	return DefaultScopes
}

func (f *Flow) title() string {
	if f.Title != "" {
		return f.Title
	}
	return DefaultTitle
}
