// Package auth obtains a venue session token via the HTTP login endpoint.
// The token ("ssid") is what the WebSocket session authenticates with.
package auth

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	// DefaultLoginURL is the venue's credential login endpoint.
	DefaultLoginURL = "https://auth.iqoption.com/api/v2/login"
	// DefaultOrigin is the Origin header the endpoint expects.
	DefaultOrigin = "https://login.iqoption.com"
	// DefaultUserAgent mimics a desktop browser.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/103.0.0.0 Safari/537.36"
)

// ErrMissingCredentials is returned before any request is made when email
// or password is empty.
var ErrMissingCredentials = errors.New("can not login without email and password")

// ErrNoSessionCookie is returned when the login response carries no ssid
// cookie, which usually means the credentials were rejected.
var ErrNoSessionCookie = errors.New("login response carries no ssid cookie")

// Client performs credential logins.
type Client struct {
	http *resty.Client
}

// Config overrides the login endpoint settings. Zero fields use defaults.
type Config struct {
	LoginURL  string
	Origin    string
	UserAgent string
	Timeout   time.Duration
}

// NewClient builds a login client with venue defaults.
func NewClient() *Client {
	return NewClientWithConfig(Config{})
}

// NewClientWithConfig builds a login client with explicit settings.
func NewClientWithConfig(cfg Config) *Client {
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.LoginURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("Origin", cfg.Origin).
		SetHeader("User-Agent", cfg.UserAgent)

	return &Client{http: http}
}

// Login exchanges credentials for a session token. The token is read from
// the ssid cookie of the response.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"identifier": email,
			"password":   password,
		}).
		Post("")
	if err != nil {
		return "", errors.Wrap(err, "login request")
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "ssid" && cookie.Value != "" {
			return cookie.Value, nil
		}
	}
	return "", errors.Wrapf(ErrNoSessionCookie, "status %d", resp.StatusCode())
}
