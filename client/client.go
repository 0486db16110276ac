// Package client is the Go SDK for the coursehub REST API and realtime feeds.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coursehub/logger"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Errors  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// envelope is the {status, message, data} body every endpoint answers with.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client calls the REST API with one bearer token.
type Client struct {
	http *resty.Client
	log  *logger.Logger
}

func New(baseURL, token string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	return &Client{http: http, log: log.With("service", "APIClient")}
}

// do sends body as JSON and decodes the envelope's data into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Message: env.Message}
		if decodeErr != nil {
			apiErr.Message = resp.Status()
		}
		if resp.StatusCode() == 422 && len(env.Data) > 0 {
			_ = json.Unmarshal(env.Data, &apiErr.Errors)
		}
		c.log.Debug("api request rejected", "method", method, "path", path, "status", apiErr.Status, "message", apiErr.Message)
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}
