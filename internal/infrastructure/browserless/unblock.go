// Package browserless talks to a remote browser-rendering proxy exposing the
// /unblock protocol. The proxy renders a page in a real browser, which passes
// the registry's anti-automation challenge, and hands back the cookies and
// markup of that session.
package browserless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ColaMonitor/internal/domain"
	"ColaMonitor/internal/extract"
)

// ErrMissingToken is returned when no proxy access token is configured.
var ErrMissingToken = errors.New("BROWSERLESS_TOKEN is not set")

const bodyExcerptLimit = 512

// SessionError reports a failed or empty proxy render.
type SessionError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *SessionError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("unblock %s: %v", e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("unblock %s: status %d: %s", e.URL, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("unblock %s: no content", e.URL)
	}
}

func (e *SessionError) Unwrap() error { return e.Err }

// Cookie is one browser cookie set while the proxy rendered the page.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
}

// Page is the proxy's answer for one rendered URL.
type Page struct {
	Cookies []Cookie `json:"cookies"`
	Content string   `json:"content"`
}

// CookieHeader joins the cookies as "name=value; name=value" in returned order.
func (p Page) CookieHeader() string {
	parts := make([]string, 0, len(p.Cookies))
	for _, c := range p.Cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

type unblockRequest struct {
	URL               string `json:"url"`
	BrowserWSEndpoint bool   `json:"browserWSEndpoint"`
	Cookies           bool   `json:"cookies"`
	Content           bool   `json:"content"`
}

// Client renders registry pages through the proxy.
type Client struct {
	http     *resty.Client
	endpoint string
	token    string
}

// New builds a proxy client. An empty token yields a client whose calls fail
// with ErrMissingToken.
func New(endpoint, token string, timeout time.Duration) *Client {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	client.SetHeader("Content-Type", "application/json")

	return &Client{
		http:     client,
		endpoint: endpoint,
		token:    token,
	}
}

// Configured reports whether a token is available.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// Unblock asks the proxy to render target and return its cookies and markup.
func (c *Client) Unblock(ctx context.Context, target string) (*Page, error) {
	if !c.Configured() {
		return nil, ErrMissingToken
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token", c.token).
		SetBody(unblockRequest{
			URL:               target,
			BrowserWSEndpoint: false,
			Cookies:           true,
			Content:           true,
		}).
		Post(c.endpoint)
	if err != nil {
		return nil, &SessionError{URL: target, Err: err}
	}
	if !res.IsSuccess() {
		return nil, &SessionError{
			URL:        target,
			StatusCode: res.StatusCode(),
			Body:       excerpt(res.String()),
		}
	}

	var page Page
	if err := json.Unmarshal(res.Body(), &page); err != nil {
		return nil, &SessionError{URL: target, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &page, nil
}

// Acquire renders target and turns it into a session: the cookie header plus
// every hidden form field on the page.
func (c *Client) Acquire(ctx context.Context, target string) (domain.Session, string, error) {
	page, err := c.Unblock(ctx, target)
	if err != nil {
		return domain.Session{}, "", err
	}
	if strings.TrimSpace(page.Content) == "" {
		return domain.Session{}, "", &SessionError{URL: target}
	}

	return domain.Session{
		Cookie:     page.CookieHeader(),
		FormFields: extract.HiddenFields(page.Content),
	}, page.Content, nil
}

func excerpt(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > bodyExcerptLimit {
		return body[:bodyExcerptLimit] + "..."
	}
	return body
}
