// Package identity verifies third-party identity assertions: Google ID tokens
// and device-signed biometric assertions.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"

	domainerrors "walletcore.backend/internal/domain/errors"
)

const (
	DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	jwksCacheTTL         = time.Hour
	clockLeeway          = time.Minute
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleClaims is the profile carried by a verified Google ID token.
type GoogleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// GoogleVerifier checks ID token signatures against Google's published keys.
type GoogleVerifier struct {
	clientID string
	jwksURL  string
	http     *http.Client
	now      func() time.Time

	mu        sync.Mutex
	keys      *jose.JSONWebKeySet
	fetchedAt time.Time
}

func NewGoogleVerifier(clientID, jwksURL string, timeout time.Duration) *GoogleVerifier {
	if jwksURL == "" {
		jwksURL = DefaultGoogleJWKSURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleVerifier{
		clientID: clientID,
		jwksURL:  jwksURL,
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

// Verify validates signature, issuer, audience and expiry of idToken.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleClaims, error) {
	if v.clientID == "" {
		return nil, fmt.Errorf("%w: google sign-in not configured", domainerrors.ErrBadRequest)
	}
	tok, err := jwt.ParseSigned(idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed id token", domainerrors.ErrInvalidCredentials)
	}
	if len(tok.Headers) == 0 {
		return nil, fmt.Errorf("%w: id token has no header", domainerrors.ErrInvalidCredentials)
	}

	key, err := v.key(ctx, tok.Headers[0].KeyID)
	if err != nil {
		return nil, err
	}

	var std jwt.Claims
	var claims GoogleClaims
	if err := tok.Claims(key, &std, &claims); err != nil {
		return nil, fmt.Errorf("%w: id token signature", domainerrors.ErrInvalidCredentials)
	}
	if !googleIssuers[std.Issuer] {
		return nil, fmt.Errorf("%w: unexpected issuer %q", domainerrors.ErrInvalidCredentials, std.Issuer)
	}
	expected := jwt.Expected{Audience: jwt.Audience{v.clientID}, Time: v.now()}
	if err := std.ValidateWithLeeway(expected, clockLeeway); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, fmt.Errorf("%w: id token expired", domainerrors.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInvalidCredentials, err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, fmt.Errorf("%w: google email not verified", domainerrors.ErrAccountNotVerified)
	}
	return &claims, nil
}

func (v *GoogleVerifier) key(ctx context.Context, kid string) (*jose.JSONWebKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keys != nil && v.now().Sub(v.fetchedAt) < jwksCacheTTL {
		if keys := v.keys.Key(kid); len(keys) > 0 {
			return &keys[0], nil
		}
	}
	// Unknown kid or stale cache: Google rotates keys, refetch once.
	if err := v.refresh(ctx); err != nil {
		return nil, err
	}
	if keys := v.keys.Key(kid); len(keys) > 0 {
		return &keys[0], nil
	}
	return nil, fmt.Errorf("%w: unknown signing key %q", domainerrors.ErrInvalidCredentials, kid)
}

func (v *GoogleVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build jwks request: %v", domainerrors.ErrProviderFailure, err)
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch google keys: %v", domainerrors.ErrProviderFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: fetch google keys: status %d", domainerrors.ErrProviderFailure, resp.StatusCode)
	}
	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("%w: decode google keys: %v", domainerrors.ErrProviderFailure, err)
	}
	v.keys = &set
	v.fetchedAt = v.now()
	return nil
}
