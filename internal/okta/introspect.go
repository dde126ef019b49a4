// Package okta validates bearer tokens against the Okta introspection
// endpoint, authenticating with a signed client assertion.
package okta

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionTTL        = 10 * time.Minute
)

var ErrInactiveToken = errors.New("token is not active")

type Config struct {
	Enabled  bool   `mapstructure:"enabled"`
	Domain   string `mapstructure:"domain"`
	ClientID string `mapstructure:"client_id"`
	// PrivateKey is a base64 encoded PEM RSA key.
	PrivateKey string `mapstructure:"private_key"`
}

// Introspector reports whether a bearer token is active.
type Introspector interface {
	Introspect(ctx context.Context, token string) error
}

type Client struct {
	clientID   string
	endpoint   string
	key        *rsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Domain == "" || cfg.ClientID == "" || cfg.PrivateKey == "" {
		return nil, errors.New("okta domain, client_id and private_key are required")
	}

	pemKey, err := decodeKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode okta private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("parse okta private key: %w", err)
	}

	return &Client{
		clientID:   cfg.ClientID,
		endpoint:   introspectURL(cfg.Domain),
		key:        key,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}, nil
}

func introspectURL(domain string) string {
	base := domain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return strings.TrimSuffix(base, "/") + "/oauth2/v1/introspect"
}

// decodeKey accepts standard base64 with or without padding.
func decodeKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if data, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
}

func (c *Client) assertion() (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.clientID,
		Subject:   c.clientID,
		Audience:  jwt.ClaimStrings{c.endpoint},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.key)
}

type introspectResponse struct {
	Active bool `json:"active"`
}

func (c *Client) Introspect(ctx context.Context, token string) error {
	assertion, err := c.assertion()
	if err != nil {
		return fmt.Errorf("sign client assertion: %w", err)
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")
	form.Set("client_assertion_type", clientAssertionType)
	form.Set("client_assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("introspect token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("introspect token: unexpected status %d", resp.StatusCode)
	}

	var body introspectResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode introspection response: %w", err)
	}
	if !body.Active {
		return ErrInactiveToken
	}
	return nil
}
