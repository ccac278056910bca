package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type httpClient interface {
	Do(*http.Request) (*http.Response, error)
}

// ErrMalformedResponse is wrapped by errors reporting a successful response whose body could not be
// decoded or lacks a required value.
var ErrMalformedResponse = errors.New("malformed response")

// Response is the parsed JSON response from the server.
type Response struct {
	StatusCode int
	// Body is the raw response body, retained for diagnostics.
	Body []byte

	requestURI string
	values     map[string]json.RawMessage
}

// Has reports whether the response body contains the top-level key k.
func (r Response) Has(k string) bool {
	_, ok := r.values[k]
	return ok
}

// Get the response value named k. String values are unquoted; any other JSON value is returned as its
// literal text.
func (r Response) Get(k string) string {
	raw, ok := r.values[k]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if lit := string(bytes.TrimSpace(raw)); lit != "null" {
		return lit
	}
	return ""
}

// Require returns an error wrapping ErrMalformedResponse for the first key that is absent from the response.
func (r Response) Require(keys ...string) error {
	for _, k := range keys {
		if !r.Has(k) {
			return fmt.Errorf("%w: %s did not return %q", ErrMalformedResponse, r.requestURI, k)
		}
	}
	return nil
}

// Err returns an Error object extracted from the response.
func (r Response) Err() error {
	return &Error{
		RequestURI:   r.requestURI,
		ResponseCode: r.StatusCode,
		Code:         r.Get("error"),
		Body:         string(r.Body),
		message:      r.Get("error_description"),
	}
}

// Error is the result of an unexpected HTTP response from the server.
type Error struct {
	Code         string
	ResponseCode int
	RequestURI   string
	// Body is the raw response body.
	Body string

	message string
}

func (e Error) Error() string {
	if e.message != "" {
		return fmt.Sprintf("%s (%s)", e.message, e.Code)
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("HTTP %d", e.ResponseCode)
}

// PostForm makes a POST request by serializing input parameters as a form and parses the JSON response.
func PostForm(ctx context.Context, c httpClient, u string, params url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", formType)
	req.Header.Set("Accept", jsonType)

	return do(c, req, u)
}

// PostJSON makes a POST request with payload as a JSON body and parses the JSON response. Values in header
// are added to the request as-is.
func PostJSON(ctx context.Context, c httpClient, u string, payload []byte, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", jsonType)
	req.Header.Set("Accept", jsonType)

	return do(c, req, u)
}

func do(c httpClient, req *http.Request, u string) (*Response, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	r := &Response{
		StatusCode: resp.StatusCode,
		requestURI: u,
	}

	r.Body, err = io.ReadAll(resp.Body)
	if err != nil {
		return r, err
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return r, nil
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(r.Body, &values); err != nil {
		// Error pages are frequently HTML; only a successful JSON response must decode.
		if resp.StatusCode == http.StatusOK && contentType(resp.Header.Get("Content-Type")) == jsonType {
			return r, fmt.Errorf("%w: decoding %s: %v", ErrMalformedResponse, u, err)
		}
		return r, nil
	}
	r.values = values

	return r, nil
}

const (
	formType = "application/x-www-form-urlencoded"
	jsonType = "application/json"
)

func contentType(t string) string {
	if i := strings.IndexRune(t, ';'); i >= 0 {
		return strings.TrimSpace(t[0:i])
	}
	return strings.TrimSpace(t)
}
