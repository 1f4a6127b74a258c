package httpclient

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty for HTTP requests to gateway APIs. It never retries on
// its own; adapters that retry (PayPal) layer their own policy on top.
type Client struct {
	r *resty.Client
}

// New creates a new HTTP client with sensible defaults.
func New() *Client {
	r := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	return &Client{r: r}
}

// WithTimeout sets a custom timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.r.SetTimeout(d)
	return c
}

// WithBaseURL sets the base URL prepended to request paths.
func (c *Client) WithBaseURL(u string) *Client {
	c.r.SetBaseURL(u)
	return c
}

// WithBearerToken sets a bearer token for authentication.
func (c *Client) WithBearerToken(token string) *Client {
	c.r.SetAuthToken(token)
	return c
}

// WithBasicAuth sets HTTP Basic credentials.
func (c *Client) WithBasicAuth(username, password string) *Client {
	c.r.SetBasicAuth(username, password)
	return c
}

// WithHeader sets a custom header on every request.
func (c *Client) WithHeader(key, value string) *Client {
	c.r.SetHeader(key, value)
	return c
}

// R returns a new resty Request for chaining.
func (c *Client) R() *resty.Request {
	return c.r.R()
}
