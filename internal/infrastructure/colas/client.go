// Package colas is the client for the TTB COLA public registry.
package colas

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"ColaMonitor/internal/config"
	"ColaMonitor/internal/ports"
)

const (
	searchPagePath    = "/publicSearchColasBasic.do"
	searchResultsPath = "/publicSearchColasBasicProcess.do?action=search"
	detailPath        = "/viewColaDetails.do?action=publicDisplaySearchBasic&ttbid="
	printablePath     = "/viewColaDetails.do?action=publicFormDisplay&ttbid="
	attachmentPath    = "/publicViewAttachment.do"

	formDateLayout = "01/02/2006"
)

// Client performs direct registry requests with a session obtained from the
// unblock proxy.
type Client struct {
	http     *resty.Client
	sessions ports.SessionProvider
	cfg      config.RegistryConfig
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

var (
	_ ports.LabelSource   = (*Client)(nil)
	_ ports.ImageFetcher  = (*Client)(nil)
	_ ports.DetailFetcher = (*Client)(nil)
)

// NewClient builds a registry client. loc is the timezone the search date
// window is computed in; nil means UTC.
func NewClient(cfg config.RegistryConfig, sessions ports.SessionProvider, loc *time.Location, logger *slog.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client := resty.NewWithClient(&http.Client{Transport: registryTransport(cfg.VerifyTLS)})
	if cfg.RequestTimeout > 0 {
		client.SetTimeout(cfg.RequestTimeout)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Client{
		http:     client,
		sessions: sessions,
		cfg:      cfg,
		location: loc,
		now:      time.Now,
		logger:   logger,
	}
}

// registryTransport is used for registry hosts only. The registry's
// certificate chain is incomplete, so verification is relaxed here and
// nowhere else.
func registryTransport(verify bool) http.RoundTripper {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	wrapped := cloudflarebp.AddCloudFlareByPass(transport)

	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	transport.TLSClientConfig.InsecureSkipVerify = !verify
	return wrapped
}

// SearchPageURL is the form page the session is acquired on.
func (c *Client) SearchPageURL() string { return c.cfg.BaseURL + searchPagePath }

// SearchResultsURL receives the search form submission.
func (c *Client) SearchResultsURL() string { return c.cfg.BaseURL + searchResultsPath }

// DetailURL links to the public detail page of a label.
func (c *Client) DetailURL(ttbID string) string { return DetailURL(c.cfg.BaseURL, ttbID) }

// PrintableURL is the printable form view that embeds the label images.
func (c *Client) PrintableURL(ttbID string) string {
	return c.cfg.BaseURL + printablePath + url.QueryEscape(ttbID)
}

// AttachmentURL serves one label image by filename.
func (c *Client) AttachmentURL(filename string) string {
	return c.cfg.BaseURL + attachmentPath + "?filename=" + url.QueryEscape(filename) + "&filetype=l"
}

// DetailURL links to the public detail page of a label under baseURL.
func DetailURL(baseURL, ttbID string) string {
	return strings.TrimRight(baseURL, "/") + detailPath + url.QueryEscape(ttbID)
}

func (c *Client) origin() string {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, args...)
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, args...)
}
