package upstox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotConfigured is returned when the OAuth app credentials are missing.
var ErrNotConfigured = errors.New("UPSTOX_API_KEY, UPSTOX_API_SECRET and UPSTOX_REDIRECT_URI must be set")

// OAuth implements the Upstox authorization-code login.
type OAuth struct {
	apiKey      string
	apiSecret   string
	redirectURI string
	baseURL     string
	client      *http.Client
}

func NewOAuth(apiKey, apiSecret, redirectURI string, opts ...OAuthOption) *OAuth {
	o := &OAuth{
		apiKey:      strings.TrimSpace(apiKey),
		apiSecret:   strings.TrimSpace(apiSecret),
		redirectURI: strings.TrimSpace(redirectURI),
		baseURL:     defaultBaseURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type OAuthOption func(*OAuth)

func WithOAuthBaseURL(u string) OAuthOption {
	return func(o *OAuth) { o.baseURL = u }
}

func WithOAuthClient(hc *http.Client) OAuthOption {
	return func(o *OAuth) { o.client = hc }
}

// LoginURL returns the authorization dialog the user opens in a browser.
func (o *OAuth) LoginURL() (string, error) {
	if o.apiKey == "" || o.redirectURI == "" {
		return "", ErrNotConfigured
	}
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", o.apiKey)
	q.Set("redirect_uri", o.redirectURI)
	return o.baseURL + "/login/authorization/dialog?" + q.Encode(), nil
}

// Exchange trades an authorization code for an access token.
func (o *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	if o.apiKey == "" || o.apiSecret == "" || o.redirectURI == "" {
		return "", ErrNotConfigured
	}

	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", o.apiKey)
	form.Set("client_secret", o.apiSecret)
	form.Set("redirect_uri", o.redirectURI)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/login/authorization/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := o.client.Do(req) //nolint:gosec // URL from internal config
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed (%d): %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("no access_token in upstox response")
	}
	return tok.AccessToken, nil
}
