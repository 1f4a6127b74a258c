package paypal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"paymux/payerr"
)

// tokenExpirySlack refreshes the OAuth token five minutes before PayPal
// expires it, so in-flight requests never race the expiry.
const tokenExpirySlack = 300 * time.Second

type tokenCache struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
}

func (c *tokenCache) get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expiry) {
		return c.token, true
	}
	return "", false
}

func (c *tokenCache) set(token string, expiresIn time.Duration) {
	c.mu.Lock()
	c.token = token
	c.expiry = time.Now().Add(expiresIn - tokenExpirySlack)
	c.mu.Unlock()
}

// accessToken returns a valid OAuth2 client-credentials token, fetching one
// if needed. Concurrent callers share a single in-flight fetch.
func (g *Gateway) accessToken(ctx context.Context) (string, error) {
	if token, ok := g.tokens.get(); ok {
		return token, nil
	}
	v, err, _ := g.flight.Do("oauth", func() (any, error) {
		if token, ok := g.tokens.get(); ok {
			return token, nil
		}
		return g.fetchAccessToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Gateway) fetchAccessToken(ctx context.Context) (string, error) {
	resp, err := g.http.R().
		SetContext(ctx).
		SetBasicAuth(g.cfg.ClientID, g.cfg.ClientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody("grant_type=client_credentials").
		Post(g.baseURL + "/v1/oauth2/token")
	if err != nil {
		return "", payerr.Network(Name, err)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if resp.IsError() || json.Unmarshal(resp.Body(), &body) != nil || body.AccessToken == "" {
		return "", payerr.GatewayAPI(Name, "failed to get access token", string(resp.Body()))
	}

	g.tokens.set(body.AccessToken, time.Duration(body.ExpiresIn)*time.Second)
	return body.AccessToken, nil
}
