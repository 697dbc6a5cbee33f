package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "walletcore.backend/internal/domain/providers"
	"walletcore.backend/pkg/crypto"
	"walletcore.backend/pkg/metrics"
)

const maxResponseBody = 1 << 20

// restClient is the shared transport of the HTTP adapters.
type restClient struct {
	provider string
	baseURL  string
	http     *http.Client
	auth     func(*http.Request)
}

func newRESTClient(provider, baseURL string, timeout time.Duration, auth func(*http.Request)) *restClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &restClient{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		auth:     auth,
	}
}

func (c *restClient) doJSON(ctx context.Context, category domain.Category, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return observe(c.provider, category, domain.NewError(c.provider, category, "encode request", err))
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return observe(c.provider, category, domain.NewError(c.provider, category, "build request", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(category, req, out)
}

func (c *restClient) doForm(ctx context.Context, category domain.Category, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return observe(c.provider, category, domain.NewError(c.provider, category, "build request", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(category, req, out)
}

func (c *restClient) send(category domain.Category, req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return observe(c.provider, category, domain.NewError(c.provider, category, "request failed", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return observe(c.provider, category, domain.NewError(c.provider, category, "read response", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(string(raw), 200))
		return observe(c.provider, category, domain.NewError(c.provider, category, msg, nil))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return observe(c.provider, category, domain.NewError(c.provider, category, "decode response", err))
		}
	}
	return observe(c.provider, category, nil)
}

func observe(provider string, category domain.Category, err error) error {
	metrics.ProviderCalls.WithLabelValues(provider, string(category), metrics.Outcome(err)).Inc()
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// SignHMAC returns the hex HMAC of body. algo is "sha256" or "sha512".
func SignHMAC(algo, secret string, body []byte) string {
	var h func() hash.Hash
	switch algo {
	case "sha512":
		h = sha512.New
	default:
		h = sha256.New
	}
	mac := hmac.New(h, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(provider, algo, secret, signature string, body []byte) error {
	if secret == "" {
		return domain.NewError(provider, "webhook", "webhook secret not configured", nil)
	}
	if signature == "" {
		return domain.NewError(provider, "webhook", "missing signature", nil)
	}
	expected := SignHMAC(algo, secret, body)
	if !crypto.ConstantTimeEqual(strings.ToLower(signature), expected) {
		return domain.NewError(provider, "webhook", "invalid signature", nil)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
