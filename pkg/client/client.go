// Package client is a small HTTP SDK for the buildcore API. It fetches
// snapshots for the catalog filter engine and serves as a dashboard source.
package client

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
	"time"

	"buildcore/pkg/catalog"
	"buildcore/pkg/domain"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("buildcore api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("buildcore api: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// ContactResult mirrors the contact endpoint response.
type ContactResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Client talks to a buildcore server.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
	now   func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the admin bearer token sent with every request.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 15 * time.Second},
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List fetches every record of kind in server order.
func (c *Client) List(ctx context.Context, kind domain.Kind) ([]domain.Resource, error) {
	var envelope map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/resources/"+kind.Plural(), nil, &envelope); err != nil {
		return nil, err
	}
	items := []domain.Resource{}
	if raw, ok := envelope[kind.Plural()]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind.Plural(), err)
		}
	}
	if items == nil {
		items = []domain.Resource{}
	}
	return items, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, kind domain.Kind, id string) (domain.Resource, error) {
	var out domain.Resource
	err := c.do(ctx, http.MethodGet, "/resources/"+kind.Plural()+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Catalog fetches kind once and wraps it as an immutable snapshot; filtering
// it afterwards needs no further requests.
func (c *Client) Catalog(ctx context.Context, kind domain.Kind) (catalog.Snapshot, error) {
	items, err := c.List(ctx, kind)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return catalog.NewSnapshot(kind, items, c.now()), nil
}

// Count returns the number of records of kind; domain.KindContact counts
// contact messages and needs an admin token. An absent or malformed list
// field counts as zero; only a failed request is an error.
func (c *Client) Count(ctx context.Context, kind domain.Kind) (int, error) {
	path := "/resources/" + kind.Plural()
	if kind == domain.KindContact {
		path = "/contact"
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return 0, err
	}
	var envelope map[string]json.RawMessage
	if json.Unmarshal(raw, &envelope) != nil {
		return 0, nil
	}
	var items []json.RawMessage
	if json.Unmarshal(envelope[kind.Plural()], &items) != nil {
		return 0, nil
	}
	return len(items), nil
}

// SubmitContact posts a public contact message.
func (c *Client) SubmitContact(ctx context.Context, msg domain.ContactMessage) (ContactResult, error) {
	body := map[string]string{
		"name":    msg.Name,
		"email":   msg.Email,
		"phone":   msg.Phone,
		"message": msg.Message,
	}
	var out ContactResult
	err := c.do(ctx, http.MethodPost, "/contact", body, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		se.Message = payload.Error
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	return se
}
