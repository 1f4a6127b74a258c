package paymob

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"paymux/payerr"
)

// legacyAuthTTL caches the exchanged token for 50 minutes; Paymob expires it
// after an hour.
const legacyAuthTTL = 50 * time.Minute

type legacyAuth struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
}

// authToken exchanges the API key (or secret key) for a legacy auth token,
// reusing the cached one while it is fresh. The capture, void, refund and
// inquiry endpoints all require it, even on KSA accounts.
func (g *Gateway) authToken(ctx context.Context) (string, error) {
	g.auth.mu.Lock()
	defer g.auth.mu.Unlock()

	if g.auth.token != "" && time.Now().Before(g.auth.expiry) {
		return g.auth.token, nil
	}

	apiKey := g.cfg.APIKey
	if apiKey == "" {
		apiKey = g.cfg.SecretKey
	}
	if apiKey == "" {
		return "", payerr.GatewayAPI(Name, "requires apiKey or secretKey for legacy authentication", nil)
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"api_key": apiKey}).
		Post(g.baseURL + "/api/auth/tokens")
	if err != nil {
		return "", payerr.Network(Name, err)
	}

	var body struct {
		Token string `json:"token"`
	}
	if resp.IsError() || json.Unmarshal(resp.Body(), &body) != nil || body.Token == "" {
		return "", payerr.GatewayAPI(Name, "failed to authenticate", string(resp.Body()))
	}

	g.auth.token = body.Token
	g.auth.expiry = time.Now().Add(legacyAuthTTL)
	return g.auth.token, nil
}
