// Package device facilitates performing OAuth Device Authorization Flow for client applications
// such as CLIs that can not receive redirects from a web site.
//
// First, RequestCode should be used to obtain a CodeResponse.
//
// Next, the user will need to navigate to VerificationURI in their web browser on any device and fill
// in the UserCode.
//
// While the user is completing the web flow, the application should invoke Wait, which blocks
// the goroutine until the server hands out an access token.
//
// https://docs.github.com/en/apps/oauth-apps/building-oauth-apps/authorizing-oauth-apps#device-flow
package device

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cmr-git/github-keygen/api"
)

type httpClient interface {
	Do(*http.Request) (*http.Response, error)
}

// CodeResponse holds information about the authorization-in-progress.
type CodeResponse struct {
	// The user verification code is displayed on the device so the user can enter the code in a browser.
	UserCode string
	// The verification URL where users need to enter the UserCode.
	VerificationURI string

	// The device verification code is used to poll for the token. It must not be shown or logged.
	DeviceCode string
	// The minimum time that must pass before you can make a new access token request to
	// complete the device authorization.
	Interval time.Duration
}

// String describes the authorization without revealing DeviceCode.
func (c CodeResponse) String() string {
	return fmt.Sprintf("CodeResponse{UserCode: %q, VerificationURI: %q, Interval: %s}", c.UserCode, c.VerificationURI, c.Interval)
}

// RequestCode initiates the authorization flow by requesting a code from uri.
//
// Any status other than 200 OK is returned as *api.Error. A successful response that lacks one of the
// expected values yields an error wrapping api.ErrMalformedResponse.
func RequestCode(ctx context.Context, c httpClient, uri string, clientID string, scopes []string) (*CodeResponse, error) {
	resp, err := api.PostForm(ctx, c, uri, url.Values{
		"client_id": {clientID},
		"scope":     {strings.Join(scopes, ", ")},
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.Err()
	}

	if err := resp.Require("user_code", "verification_uri", "device_code", "interval"); err != nil {
		return nil, err
	}

	interval, err := parseInterval(resp.Get("interval"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrMalformedResponse, err)
	}

	return &CodeResponse{
		DeviceCode:      resp.Get("device_code"),
		UserCode:        resp.Get("user_code"),
		VerificationURI: resp.Get("verification_uri"),
		Interval:        interval,
	}, nil
}

// maxIntervalSeconds is the longest interval that still fits a time.Duration once pollMargin is added.
const maxIntervalSeconds = float64(math.MaxInt64-pollMargin) / float64(time.Second)

// parseInterval accepts whole or fractional seconds.
func parseInterval(s string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse interval=%q as a number: %w", s, err)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("interval=%q is not a finite number", s)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("interval=%q is not positive", s)
	}
	if secs >= maxIntervalSeconds {
		return 0, fmt.Errorf("interval=%q is too large", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

const defaultGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// WaitOptions specifies parameters to poll the server with until authentication completes.
type WaitOptions struct {
	// ClientID is the app client ID value.
	ClientID string
	// DeviceCode is the value obtained from RequestCode.
	DeviceCode *CodeResponse
	// GrantType overrides the default value specified by OAuth 2.0 Device Code. Optional.
	GrantType string
	// OnPending is called after every 200 OK response that did not carry an access token, with the
	// "error" value of that response, if any. Optional.
	OnPending func(attempt int, code string)

	newPoller pollerFactory
}

// Wait polls the server at uri until an access token is handed out.
//
// Each attempt is preceded by a pause of the server-provided interval plus a small margin. Polling stops
// with *api.Error on the first response that is not 200 OK. A 200 OK response without "access_token" is
// treated as pending regardless of any "error" value it carries, so Wait only returns once the server
// either fails the request or grants the token, or ctx is done.
func Wait(ctx context.Context, c httpClient, uri string, opts WaitOptions) (*api.AccessToken, error) {
	grantType := opts.GrantType
	if opts.GrantType == "" {
		grantType = defaultGrantType
	}

	makePoller := opts.newPoller
	if makePoller == nil {
		makePoller = newPoller
	}
	pctx, poll := makePoller(ctx, opts.DeviceCode.Interval+pollMargin)
	defer poll.Cancel()

	values := url.Values{
		"client_id":   {opts.ClientID},
		"device_code": {opts.DeviceCode.DeviceCode},
		"grant_type":  {grantType},
	}

	for attempt := 1; ; attempt++ {
		if err := poll.Wait(); err != nil {
			return nil, err
		}

		resp, err := api.PostForm(pctx, c, uri, values)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			return nil, resp.Err()
		}

		if token, err := resp.AccessToken(); err == nil {
			return token, nil
		}

		if opts.OnPending != nil {
			opts.OnPending(attempt, resp.Get("error"))
		}
	}
}
