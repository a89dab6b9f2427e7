// Package apiclient dispatches requests to the inboxpilot backend.
//
// Fetch injects the bearer credential and attaches the cookie jar, and
// otherwise stays out of the way: it returns the raw *http.Response without
// interpreting the status, retrying, or decoding the body. Callers own the
// response body.
package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/inboxpilot/internal/common"
)

// Credentials mirrors the fetch credentials mode.
type Credentials string

const (
	CredentialsInclude Credentials = "include"
	CredentialsOmit    Credentials = "omit"
)

type Client struct {
	baseURL *url.URL
	http    *http.Client
	bare    *http.Client
}

// New builds a Client for baseURL. A nil httpClient gets a default one with
// timeout; a client without a cookie jar gets one.
func New(baseURL string, httpClient *http.Client, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	withJar := *httpClient
	if withJar.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		withJar.Jar = jar
	}
	bare := *httpClient
	bare.Jar = nil

	return &Client{baseURL: u, http: &withJar, bare: &bare}, nil
}

func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Resolve turns an API path (optionally with a query) into an absolute URL.
// Absolute inputs are returned unchanged.
func (c *Client) Resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return ref, nil
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return &u, nil
}

// Fetch sends one request and returns the raw response.
func (c *Client) Fetch(ctx context.Context, method, path string, body io.Reader, opts ...Option) (*http.Response, error) {
	o := options{credentials: CredentialsInclude, header: http.Header{}}
	for _, opt := range opts {
		opt(&o)
	}

	target, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range o.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if o.authToken != "" && req.Header.Get(common.AuthorizationHeader) == "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerValue(o.authToken))
	}

	hc := c.http
	if o.credentials == CredentialsOmit {
		hc = c.bare
	}
	return hc.Do(req)
}
