// Package keys registers SSH public keys with the authenticated user's GitHub account.
//
// https://docs.github.com/en/rest/users/keys#create-a-public-ssh-key-for-the-authenticated-user
package keys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/ssh"

	"github.com/cmr-git/github-keygen/api"
)

type httpClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Result is the successful outcome of a key submission.
type Result int

const (
	// Created means the key was added to the account.
	Created Result = iota + 1
	// AlreadyExists means the account already holds the key.
	AlreadyExists
)

func (r Result) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already exists"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Request is the body of a key registration request.
type Request struct {
	Title string `json:"title"`
	Key   string `json:"key"`
}

// NewRequest builds the registration request for publicKey. The key is submitted verbatim with a single
// newline appended.
func NewRequest(title, publicKey string) Request {
	return Request{
		Title: title,
		Key:   publicKey + "\n",
	}
}

// SubmitError is returned when the server refuses a key.
type SubmitError struct {
	StatusCode int
	// RequestBody is the JSON document that was sent. It never includes request headers.
	RequestBody []byte
	// Response describes the server reply.
	Response *api.Error
}

func (e *SubmitError) Error() string {
	if e.Response != nil && e.Response.Code != "" {
		return fmt.Sprintf("adding SSH key: %s", e.Response.Error())
	}
	if msg := e.message(); msg != "" {
		return fmt.Sprintf("adding SSH key: HTTP %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("adding SSH key: HTTP %d", e.StatusCode)
}

// message extracts the "message" field GitHub's REST API puts in error bodies.
func (e *SubmitError) message() string {
	if e.Response == nil {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(e.Response.Body), &body); err != nil {
		return ""
	}
	return body.Message
}

// Submit posts req to uri on behalf of the holder of token.
//
// A 201 Created reply yields Created and a 304 Not Modified reply yields AlreadyExists. Any other reply is
// reported as *SubmitError. The request is never retried.
func Submit(ctx context.Context, c httpClient, uri string, token string, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("encoding key request: %w", err)
	}

	resp, err := api.PostJSON(ctx, c, uri, payload, http.Header{
		"Authorization": {"token " + token},
	})
	// An undecodable body is only detail for a SubmitError; any other failure means the reply is unknown.
	if err != nil && (resp == nil || !errors.Is(err, api.ErrMalformedResponse)) {
		return 0, fmt.Errorf("adding SSH key: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		return Created, nil
	case http.StatusNotModified:
		return AlreadyExists, nil
	}

	apiErr, _ := resp.Err().(*api.Error)
	return 0, &SubmitError{
		StatusCode:  resp.StatusCode,
		RequestBody: payload,
		Response:    apiErr,
	}
}

// Fingerprint returns the SHA256 fingerprint of an authorized_keys formatted public key.
func Fingerprint(publicKey string) (string, error) {
	pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
	if err != nil {
		return "", err
	}
	return ssh.FingerprintSHA256(pk), nil
}
