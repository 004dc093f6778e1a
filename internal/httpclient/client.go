// Package httpclient builds the HTTP client used to reach the remote
// authority. Requests carry a bearer token, so redirects are confined to
// the configured host and scheme.
package httpclient

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/punchclock/errors"
)

// DefaultMaxRedirects caps redirect chains
const DefaultMaxRedirects = 5

// Client wraps http.Client with URL validation and a same-host redirect policy
type Client struct {
	*http.Client
	maxRedirects int
}

// New creates a client with the given per-request timeout
func New(timeout time.Duration) *Client {
	return Wrap(&http.Client{Timeout: timeout})
}

// Wrap applies the redirect policy to an existing client, e.g. one from httptest
func Wrap(hc *http.Client) *Client {
	c := &Client{Client: hc, maxRedirects: DefaultMaxRedirects}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		first := via[0].URL
		if req.URL.Host != first.Host || req.URL.Scheme != first.Scheme {
			return errors.Newf("redirect to %s://%s blocked, credentials stay on %s://%s",
				req.URL.Scheme, req.URL.Host, first.Scheme, first.Host)
		}
		return nil
	}
	return c
}

// ParseBaseURL validates a remote base URL: http or https, a host, and no
// embedded credentials. The trailing slash is trimmed.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, errors.Newf("scheme %q not allowed (allowed: http, https)", u.Scheme)
	}
	if u.User != nil {
		return nil, errors.New("URL must not embed credentials, use the sync token instead")
	}
	if u.Hostname() == "" {
		return nil, errors.New("URL missing hostname")
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// WebsocketURL converts an http(s) URL to its ws(s) equivalent
func WebsocketURL(u *url.URL) *url.URL {
	ws := *u
	if ws.Scheme == "https" {
		ws.Scheme = "wss"
	} else {
		ws.Scheme = "ws"
	}
	return &ws
}
