package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"testing"
)

func TestResponse_Get(t *testing.T) {
	tests := []struct {
		name     string
		response Response
		key      string
		want     string
	}{
		{
			name:     "blank",
			response: Response{},
			key:      "access_token",
			want:     "",
		},
		{
			name: "with value",
			response: Response{
				values: map[string]json.RawMessage{
					"access_token": json.RawMessage(`"ATOKEN"`),
				},
			},
			key:  "access_token",
			want: "ATOKEN",
		},
		{
			name: "number",
			response: Response{
				values: map[string]json.RawMessage{
					"interval": json.RawMessage(`5`),
				},
			},
			key:  "interval",
			want: "5",
		},
		{
			name: "null",
			response: Response{
				values: map[string]json.RawMessage{
					"error": json.RawMessage(`null`),
				},
			},
			key:  "error",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.response.Get(tt.key); got != tt.want {
				t.Errorf("Response.Get() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResponse_Require(t *testing.T) {
	r := Response{
		requestURI: "https://github.com/login/device/code",
		values: map[string]json.RawMessage{
			"user_code": json.RawMessage(`"ABCD-1234"`),
			"interval":  json.RawMessage(`5`),
		},
	}

	if err := r.Require("user_code", "interval"); err != nil {
		t.Errorf("Require() = %v, want nil", err)
	}

	err := r.Require("user_code", "device_code")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("Require() = %v, want ErrMalformedResponse", err)
	}
	want := `malformed response: https://github.com/login/device/code did not return "device_code"`
	if err.Error() != want {
		t.Errorf("Require() error = %q, want %q", err.Error(), want)
	}
}

func TestResponse_Err(t *testing.T) {
	tests := []struct {
		name     string
		response Response
		wantErr  Error
		errorMsg string
	}{
		{
			name:     "blank",
			response: Response{},
			wantErr:  Error{},
			errorMsg: "HTTP 0",
		},
		{
			name: "with values",
			response: Response{
				StatusCode: 422,
				requestURI: "http://example.com/path",
				values: map[string]json.RawMessage{
					"error":             json.RawMessage(`"try_again"`),
					"error_description": json.RawMessage(`"maybe it works later"`),
				},
			},
			wantErr: Error{
				Code:         "try_again",
				ResponseCode: 422,
				RequestURI:   "http://example.com/path",
			},
			errorMsg: "maybe it works later (try_again)",
		},
		{
			name: "no values",
			response: Response{
				StatusCode: 422,
				requestURI: "http://example.com/path",
				Body:       []byte("<h1>Unprocessable</h1>"),
			},
			wantErr: Error{
				Code:         "",
				ResponseCode: 422,
				RequestURI:   "http://example.com/path",
				Body:         "<h1>Unprocessable</h1>",
			},
			errorMsg: "HTTP 422",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.response.Err()
			if err == nil {
				t.Fatalf("Response.Err() = %v, want %v", nil, tt.wantErr)
			}
			apiError := err.(*Error)
			if apiError.Code != tt.wantErr.Code {
				t.Errorf("Error.Code = %v, want %v", apiError.Code, tt.wantErr.Code)
			}
			if apiError.ResponseCode != tt.wantErr.ResponseCode {
				t.Errorf("Error.ResponseCode = %v, want %v", apiError.ResponseCode, tt.wantErr.ResponseCode)
			}
			if apiError.RequestURI != tt.wantErr.RequestURI {
				t.Errorf("Error.RequestURI = %v, want %v", apiError.RequestURI, tt.wantErr.RequestURI)
			}
			if apiError.Body != tt.wantErr.Body {
				t.Errorf("Error.Body = %q, want %q", apiError.Body, tt.wantErr.Body)
			}
			if apiError.Error() != tt.errorMsg {
				t.Errorf("Error.Error() = %q, want %q", apiError.Error(), tt.errorMsg)
			}
		})
	}
}

type apiClient struct {
	status      int
	body        string
	contentType string

	requests []*http.Request
	bodies   []string
}

func (c *apiClient) Do(req *http.Request) (*http.Response, error) {
	c.requests = append(c.requests, req)
	if req.Body != nil {
		bb, _ := io.ReadAll(req.Body)
		c.bodies = append(c.bodies, string(bb))
	}
	return &http.Response{
		Body: io.NopCloser(bytes.NewBufferString(c.body)),
		Header: http.Header{
			"Content-Type": {c.contentType},
		},
		StatusCode: c.status,
	}, nil
}

func TestPostForm(t *testing.T) {
	type args struct {
		url    string
		params url.Values
	}
	tests := []struct {
		name     string
		args     args
		http     apiClient
		want     *Response
		wantBody string
		wantErr  error
	}{
		{
			name: "success",
			args: args{
				url:    "https://github.com/login/device/code",
				params: url.Values{"client_id": {"CLIENT-ID"}, "scope": {"user, admin:public_key"}},
			},
			http: apiClient{
				body:        `{"access_token":"123abc","scope":"repo gist"}`,
				status:      200,
				contentType: "application/json; charset=utf-8",
			},
			want: &Response{
				StatusCode: 200,
				Body:       []byte(`{"access_token":"123abc","scope":"repo gist"}`),
				requestURI: "https://github.com/login/device/code",
				values: map[string]json.RawMessage{
					"access_token": json.RawMessage(`"123abc"`),
					"scope":        json.RawMessage(`"repo gist"`),
				},
			},
			wantBody: "client_id=CLIENT-ID&scope=user%2C+admin%3Apublic_key",
		},
		{
			name: "HTML response",
			args: args{
				url: "https://github.com/login/device/code",
			},
			http: apiClient{
				body:        "<h1>Something went wrong</h1>",
				status:      502,
				contentType: "text/html",
			},
			want: &Response{
				StatusCode: 502,
				Body:       []byte("<h1>Something went wrong</h1>"),
				requestURI: "https://github.com/login/device/code",
			},
			wantBody: "",
		},
		{
			name: "broken JSON",
			args: args{
				url: "https://github.com/login/device/code",
			},
			http: apiClient{
				body:        `{"user_code":`,
				status:      200,
				contentType: "application/json",
			},
			want: &Response{
				StatusCode: 200,
				Body:       []byte(`{"user_code":`),
				requestURI: "https://github.com/login/device/code",
			},
			wantBody: "",
			wantErr:  ErrMalformedResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PostForm(context.Background(), &tt.http, tt.args.url, tt.args.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PostForm() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if len(tt.http.requests) != 1 {
				t.Fatalf("expected Do to happen 1 time; happened %d times", len(tt.http.requests))
			}
			req := tt.http.requests[0]
			if req.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", req.Method)
			}
			if accept := req.Header.Get("Accept"); accept != "application/json" {
				t.Errorf("Accept = %q, want application/json", accept)
			}
			if ct := req.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
				t.Errorf("Content-Type = %q, want application/x-www-form-urlencoded", ct)
			}
			if tt.http.bodies[0] != tt.wantBody {
				t.Errorf("request body = %q, want %q", tt.http.bodies[0], tt.wantBody)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PostForm() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostJSON(t *testing.T) {
	client := &apiClient{
		body:        `{"id":1}`,
		status:      201,
		contentType: "application/json",
	}
	header := http.Header{"Authorization": {"token T"}}

	got, err := PostJSON(context.Background(), client, "https://api.github.com/user/keys", []byte(`{"title":"x"}`), header)
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if got.StatusCode != 201 {
		t.Errorf("StatusCode = %d, want 201", got.StatusCode)
	}
	if got.Get("id") != "1" {
		t.Errorf("Get(id) = %q, want 1", got.Get("id"))
	}

	req := client.requests[0]
	if auth := req.Header.Get("Authorization"); auth != "token T" {
		t.Errorf("Authorization = %q, want %q", auth, "token T")
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if accept := req.Header.Get("Accept"); accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", accept)
	}
	if client.bodies[0] != `{"title":"x"}` {
		t.Errorf("request body = %q", client.bodies[0])
	}
}
