// Package backend talks to the seller REST API the back-office manages.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"salepage/cms/session"
	"salepage/cms/stats"
)

var (
	ErrUnauthorized    = errors.New("backend: unauthorized")
	ErrUnknownResource = errors.New("backend: unknown resource")
)

// StatusError is a non-2xx answer other than 401/403.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: remote error %d", e.Code)
	}
	return fmt.Sprintf("backend: remote error %d: %s", e.Code, e.Body)
}

const (
	signInPath    = "/account/sign-in"
	statisticPath = "/seller/product-statistic"
	maxErrorBody  = 512
)

// Resources maps back-office screens to seller API collections.
var Resources = map[string]string{
	"products":   "/seller/product",
	"stores":     "/seller/store",
	"categories": "/seller/product-category",
	"combos":     "/seller/combo",
	"vouchers":   "/seller/voucher",
	"orders":     "/seller/product-transaction",
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	client  *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
	}, nil
}

// envelope is the seller API's response wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInResponse struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	AccessToken string `json:"accessToken"`
}

// Authenticate signs in against the seller API. A 401/403 answer maps to
// session.ErrInvalidCredentials.
func (c *Client) Authenticate(ctx context.Context, creds session.Credentials) (session.Payload, error) {
	body, err := json.Marshal(signInRequest{Username: creds.Username, Password: creds.Password})
	if err != nil {
		return session.Payload{}, fmt.Errorf("backend: encode sign-in: %w", err)
	}
	data, err := c.do(ctx, http.MethodPost, signInPath, "", nil, body)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return session.Payload{}, session.ErrInvalidCredentials
		}
		return session.Payload{}, err
	}
	var resp signInResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return session.Payload{}, fmt.Errorf("backend: decode sign-in: %w", err)
	}
	if resp.AccessToken == "" {
		return session.Payload{}, fmt.Errorf("backend: sign-in returned no access token")
	}
	return session.Payload{
		UserID:      resp.UserID,
		Username:    resp.Username,
		Role:        resp.Role,
		AccessToken: resp.AccessToken,
	}, nil
}

// ProductStatistics fetches per-product statistics for the query range.
func (c *Client) ProductStatistics(ctx context.Context, q stats.Query) ([]stats.Record, error) {
	params := url.Values{}
	params.Set("gte", strconv.FormatInt(q.Range.Start.UnixMilli(), 10))
	params.Set("lte", strconv.FormatInt(q.Range.End.UnixMilli(), 10))
	data, err := c.do(ctx, http.MethodGet, statisticPath, q.Token, params, nil)
	if err != nil {
		return nil, err
	}
	return stats.ParseRecords(data)
}

func resourcePath(resource string) (string, error) {
	p, ok := Resources[resource]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	return p, nil
}

// List returns one page of a resource collection as opaque JSON.
func (c *Client) List(ctx context.Context, token, resource string, params url.Values) (json.RawMessage, error) {
	p, err := resourcePath(resource)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, p, token, params, nil)
}

func (c *Client) Get(ctx context.Context, token, resource, id string) (json.RawMessage, error) {
	p, err := resourcePath(resource)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, p+"/"+url.PathEscape(id), token, nil, nil)
}

func (c *Client) Create(ctx context.Context, token, resource string, body json.RawMessage) (json.RawMessage, error) {
	p, err := resourcePath(resource)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, p, token, nil, body)
}

func (c *Client) Update(ctx context.Context, token, resource, id string, body json.RawMessage) (json.RawMessage, error) {
	p, err := resourcePath(resource)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, p+"/"+url.PathEscape(id), token, nil, body)
}

func (c *Client) Delete(ctx context.Context, token, resource, id string) error {
	p, err := resourcePath(resource)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, p+"/"+url.PathEscape(id), token, nil, nil)
	return err
}

// do performs a request and returns the envelope's data field.
func (c *Client) do(ctx context.Context, method, path, token string, params url.Values, body []byte) (json.RawMessage, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("backend: decode response: %w", err)
	}
	return env.Data, nil
}
