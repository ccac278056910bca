package keygen

import (
	"context"
	"fmt"

	"github.com/cmr-git/github-keygen/device"
	"github.com/cmr-git/github-keygen/keys"
)

// Enroll captures the full flow: it obtains a one-time code, prompts the user to authorize the app in
// their browser, waits for the access token and finally registers publicKey on the user's account.
//
// Failures are returned as *StageError. Enroll prints nothing but the user instructions.
func (f *Flow) Enroll(ctx context.Context, publicKey string) (keys.Result, error) {
	host, err := f.host()
	if err != nil {
		return 0, err
	}
	httpClient := f.httpClient()
	logger := f.logger()

	logger.Debug("requesting device code", "url", host.DeviceCodeURL, "scopes", f.scopes())
	code, err := device.RequestCode(ctx, httpClient, host.DeviceCodeURL, f.clientID(), f.scopes())
	if err != nil {
		return 0, &StageError{Stage: StageDeviceCode, Err: err}
	}
	logger.Debug("received device code", "verification_uri", code.VerificationURI, "interval", code.Interval)

	if err := f.displayCode(code); err != nil {
		return 0, &StageError{Stage: StageDeviceCode, Err: err}
	}

	if f.BrowseURL != nil {
		if err := f.BrowseURL(code.VerificationURI); err != nil {
			logger.Warn("could not open the web browser", "err", err)
		}
	}

	token, err := device.Wait(ctx, httpClient, host.TokenURL, device.WaitOptions{
		ClientID:   f.clientID(),
		DeviceCode: code,
		OnPending: func(attempt int, status string) {
			logger.Debug("authorization pending", "attempt", attempt, "status", status)
		},
	})
	if err != nil {
		return 0, &StageError{Stage: StageAuthorization, Err: err}
	}
	logger.Debug("authorized", "scope", token.Scope)

	req := keys.NewRequest(f.title(), publicKey)
	fingerprint, err := keys.Fingerprint(publicKey)
	if err != nil {
		fingerprint = "unknown"
	}
	logger.Debug("submitting key", "url", host.KeysURL, "fingerprint", fingerprint)

	result, err := keys.Submit(ctx, httpClient, host.KeysURL, token.Token, req)
	if err != nil {
		return 0, &StageError{Stage: StageKeySubmission, Err: err}
	}
	logger.Debug("key submitted", "result", result)

	return result, nil
}

func (f *Flow) displayCode(code *device.CodeResponse) error {
	if f.DisplayCode != nil {
		return f.DisplayCode(code.UserCode, code.VerificationURI)
	}

	stdout := f.stdout()
	fmt.Fprintf(stdout, "Please go to %s and enter the following code: %s\n", code.VerificationURI, code.UserCode)
	fmt.Fprintln(stdout, "This script will continue once you have authenticated in your browser")
	return nil
}
