// Package client is a small HTTP client for the StudyDesk API, used by the
// command-line tools.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrNotLoggedIn is returned by calls that need a session
var ErrNotLoggedIn = errors.New("not logged in")

// Client talks to one StudyDesk server
type Client struct {
	http  *resty.Client
	token string
}

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("studydesk: status %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// New creates a client for the server at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil

	return &Client{
		http: resty.NewWithClient(retryClient.StandardClient()).
			SetBaseURL(strings.TrimRight(baseURL, "/")+"/api/v1").
			SetTimeout(timeout).
			SetHeader("User-Agent", "StudyDesk-CLI/1.0"),
	}
}

// Login opens a session; later calls carry its token
func (c *Client) Login(ctx context.Context, req types.LoginRequest) (types.Identity, error) {
	var out struct {
		Token    string         `json:"token"`
		Identity types.Identity `json:"identity"`
	}
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/auth/login")
	if err := check(resp, err, apiErr); err != nil {
		return types.Identity{}, fmt.Errorf("login: %w", err)
	}
	c.token = out.Token
	return out.Identity, nil
}

// Logout ends the session
func (c *Client) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetError(&apiErr).
		Post("/auth/logout")
	c.token = ""
	if err := check(resp, err, apiErr); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Import uploads a document as a new page. An empty title uses the
// document's own title; an empty parentID creates a root page.
func (c *Client) Import(ctx context.Context, data []byte, title, parentID string) (types.Page, int, error) {
	if c.token == "" {
		return types.Page{}, 0, ErrNotLoggedIn
	}
	q := url.Values{}
	if title != "" {
		q.Set("title", title)
	}
	if parentID != "" {
		q.Set("parent_id", parentID)
	}

	var out struct {
		Page   types.Page    `json:"page"`
		Blocks []types.Block `json:"blocks"`
	}
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetHeader("Content-Type", "application/octet-stream").
		SetQueryParamsFromValues(q).
		SetBody(data).
		SetResult(&out).
		SetError(&apiErr).
		Post("/import")
	if err := check(resp, err, apiErr); err != nil {
		return types.Page{}, 0, fmt.Errorf("import: %w", err)
	}
	return out.Page, len(out.Blocks), nil
}

func check(resp *resty.Response, err error, body errorBody) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		msg := body.Error
		if msg == "" {
			msg = resp.Status()
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return nil
}
