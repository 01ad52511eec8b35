// Package client is a Go client for the messaging API, with the polling
// loop and typing debounce a chat screen needs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/tradielink/internal/apperr"
	"github.com/lalith-99/tradielink/internal/messaging"
	"github.com/lalith-99/tradielink/internal/models"
)

// APIError is a non-2xx answer from the server. It unwraps to the apperr
// kind matching its status, so callers can use errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return apperr.ErrInvalidInput
	case http.StatusUnauthorized:
		return apperr.ErrUnauthenticated
	case http.StatusForbidden:
		return apperr.ErrForbidden
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	}
	return nil
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, e.g. after Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// do sends in as JSON (when non-nil) and decodes the envelope into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var env struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &env) != nil || env.Error == "" {
			env.Error = "Request failed."
		}
		return &APIError{Status: resp.StatusCode, Message: env.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) Threads(ctx context.Context, view messaging.View) ([]messaging.ThreadSummary, error) {
	var out struct {
		Threads []messaging.ThreadSummary `json:"threads"`
	}
	path := "/messages/threads?view=" + url.QueryEscape(string(view))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Threads, nil
}

// StartThread opens the thread with a counterpart. The caller's role picks
// the field name: tradies pass a builder id and builders a tradie id.
func (c *Client) StartThread(ctx context.Context, role models.Role, counterpartID int64, firstBody string) (*models.Thread, bool, error) {
	in := map[string]any{}
	if role == models.RoleTradie {
		in["builderId"] = counterpartID
	} else {
		in["tradieId"] = counterpartID
	}
	if firstBody != "" {
		in["body"] = firstBody
	}

	var out struct {
		Thread  models.Thread `json:"thread"`
		Created bool          `json:"created"`
	}
	if err := c.do(ctx, http.MethodPost, "/messages/threads", in, &out); err != nil {
		return nil, false, err
	}
	return &out.Thread, out.Created, nil
}

func (c *Client) Thread(ctx context.Context, threadID int64) (*messaging.ThreadDetail, error) {
	var out messaging.ThreadDetail
	if err := c.do(ctx, http.MethodGet, threadPath(threadID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Send(ctx context.Context, threadID int64, body string) (*models.Message, error) {
	var out struct {
		Message models.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, threadPath(threadID)+"/messages", map[string]string{"body": body}, &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

func (c *Client) MarkRead(ctx context.Context, threadID int64) error {
	return c.do(ctx, http.MethodPost, "/messages/read", map[string]int64{"threadId": threadID}, nil)
}

func (c *Client) Close(ctx context.Context, threadID int64) error {
	return c.do(ctx, http.MethodPost, threadPath(threadID)+"/close", struct{}{}, nil)
}

func (c *Client) SetTyping(ctx context.Context, threadID int64, isTyping bool) error {
	return c.do(ctx, http.MethodPost, "/messages/typing", map[string]any{
		"threadId": threadID,
		"isTyping": isTyping,
	}, nil)
}

func (c *Client) Typing(ctx context.Context, threadID int64) (*messaging.TypingStatus, error) {
	var out messaging.TypingStatus
	if err := c.do(ctx, http.MethodGet, "/messages/typing/"+strconv.FormatInt(threadID, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatSnapshot is everything an open chat screen shows.
type ChatSnapshot struct {
	Threads []messaging.ThreadSummary
	Detail  *messaging.ThreadDetail
	Typing  *messaging.TypingStatus
}

// Snapshot loads the thread list for view and, when threadID is non-zero,
// that thread's messages and typing state. It is the usual Poller refresh.
func (c *Client) Snapshot(ctx context.Context, view messaging.View, threadID int64) (*ChatSnapshot, error) {
	threads, err := c.Threads(ctx, view)
	if err != nil {
		return nil, err
	}
	snap := &ChatSnapshot{Threads: threads}
	if threadID == 0 {
		return snap, nil
	}
	if snap.Detail, err = c.Thread(ctx, threadID); err != nil {
		return nil, err
	}
	if snap.Typing, err = c.Typing(ctx, threadID); err != nil {
		return nil, err
	}
	return snap, nil
}

func threadPath(threadID int64) string {
	return "/messages/threads/" + strconv.FormatInt(threadID, 10)
}
