package botframework

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	logx "github.com/saleswire/server/pkg/logger"
)

const (
	tokenScope       = "https://api.botframework.com/.default"
	defaultLoginBase = "https://login.microsoftonline.com"

	// refreshMargin is how long before expiry a cached token is treated
	// as stale.
	refreshMargin = 5 * time.Minute
)

// TokenProvider fetches and caches the Bot Framework client-credentials
// token. Safe for concurrent use.
type TokenProvider struct {
	appID     string
	appSecret string
	tenantID  string
	loginBase string
	client    *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenProvider builds a provider for the given app registration.
func NewTokenProvider(appID, appSecret, tenantID string) *TokenProvider {
	return &TokenProvider{
		appID:     appID,
		appSecret: appSecret,
		tenantID:  tenantID,
		loginBase: defaultLoginBase,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Token returns a bearer token, fetching a fresh one when the cached token
// is missing or inside the refresh margin. Transient login failures retry
// with exponential backoff; credential rejections fail immediately.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expires) {
		return p.token, nil
	}

	resp, err := backoff.Retry(ctx, func() (tokenResponse, error) {
		return p.fetch(ctx)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	if err != nil {
		return "", fmt.Errorf("bot token: %w", err)
	}

	ttl := time.Duration(resp.ExpiresIn) * time.Second
	if ttl > refreshMargin {
		ttl -= refreshMargin
	}
	p.token = resp.AccessToken
	p.expires = time.Now().Add(ttl)
	logx.Debug().Time("expires", p.expires).Msg("bot token refreshed")
	return p.token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (p *TokenProvider) fetch(ctx context.Context) (tokenResponse, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.appID},
		"client_secret": {p.appSecret},
		"scope":         {tokenScope},
	}
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.loginBase, p.tenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return tokenResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("token endpoint returned %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return tokenResponse{}, backoff.Permanent(err)
		}
		return tokenResponse{}, err
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return tokenResponse{}, err
	}
	if tr.AccessToken == "" {
		return tokenResponse{}, backoff.Permanent(fmt.Errorf("token response missing access_token"))
	}
	return tr, nil
}
