package dom

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Client fetches host pages with the user's ambient session. Requests never
// leave the configured origin.
type Client struct {
	origin     *url.URL
	httpClient *http.Client
	userAgent  string
}

// NewClient builds a same-origin client. sessionCookie is a Cookie header value
// ("name=value; other=value") seeded into the jar, and may be empty.
func NewClient(baseURL, sessionCookie, userAgent string) (*Client, error) {
	origin, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if (origin.Scheme != "http" && origin.Scheme != "https") || origin.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute http(s): %q", baseURL)
	}
	origin = &url.URL{Scheme: origin.Scheme, Host: origin.Host}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if sessionCookie != "" {
		cookies, err := http.ParseCookie(sessionCookie)
		if err != nil {
			return nil, fmt.Errorf("invalid session cookie: %w", err)
		}
		jar.SetCookies(origin, cookies)
	}

	return &Client{
		origin:     origin,
		httpClient: &http.Client{Jar: jar},
		userAgent:  userAgent,
	}, nil
}

func (c *Client) Origin() *url.URL {
	return c.origin
}

// Resolve turns a same-origin path into an absolute URL.
func (c *Client) Resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}

	u := c.origin.ResolveReference(ref)
	if u.Scheme != c.origin.Scheme || u.Host != c.origin.Host {
		return nil, fmt.Errorf("cross-origin request refused: %s", u)
	}
	return u, nil
}

// Get issues one GET for path and parses the HTML response into a detached
// document. Deadlines come from ctx.
func (c *Client) Get(ctx context.Context, path string) (*Document, error) {
	u, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/html")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	return Parse(resp.Body, u)
}
