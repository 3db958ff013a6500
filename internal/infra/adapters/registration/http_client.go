// File: internal/infra/adapters/registration/http_client.go
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/domain/ports/adapter"
	"datahub-storefront/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.RegistrationService = (*HTTPClient)(nil)

const (
	opCheck    = "check"
	opRegister = "register"
)

// HTTPClient talks to the AFA registration backend over JSON/HTTP. It never retries.
type HTTPClient struct {
	base   string
	token  string
	client *http.Client
	log    *zerolog.Logger
}

func NewHTTPClient(baseURL, token string, timeout time.Duration, logger *zerolog.Logger) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid registration base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "RegistrationClient").Logger()
	return &HTTPClient{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		client: &http.Client{Timeout: timeout},
		log:    &l,
	}, nil
}

func (c *HTTPClient) CheckStatus(ctx context.Context, phone model.PhoneNumber) (model.RegistrationStatus, error) {
	endpoint := c.base + "/afa/status?" + url.Values{"phone": {phone.String()}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", opCheck, err)
	}

	var out struct {
		Registered bool `json:"registered"`
	}
	if err := c.do(req, opCheck, &out); err != nil {
		return "", err
	}
	if out.Registered {
		return model.RegistrationStatusRegistered, nil
	}
	return model.RegistrationStatusNotRegistered, nil
}

func (c *HTTPClient) Register(ctx context.Context, phone model.PhoneNumber, name string) (model.RegistrationResult, error) {
	payload := map[string]string{"phone": phone.String()}
	if name = strings.TrimSpace(name); name != "" {
		payload["name"] = name
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/afa/register", bytes.NewReader(b))
	if err != nil {
		return model.RegistrationResult{}, fmt.Errorf("%s: build request: %w", opRegister, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out model.RegistrationResult
	if err := c.do(req, opRegister, &out); err != nil {
		return model.RegistrationResult{}, err
	}
	return out, nil
}

// do sends req and decodes a 2xx JSON body into out. Transport failures map to
// domain.ErrNetwork, everything else the backend says no to maps to *domain.ServiceError.
func (c *HTTPClient) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveRegistrationCall(op, "network", time.Since(start))
		c.log.Warn().Err(err).Str("op", op).Msg("registration backend unreachable")
		return fmt.Errorf("%s: %w: %v", op, domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.ObserveRegistrationCall(op, "network", time.Since(start))
		return fmt.Errorf("%s: read body: %w: %v", op, domain.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveRegistrationCall(op, "service", time.Since(start))
		svcErr := &domain.ServiceError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
		c.log.Warn().Int("status", resp.StatusCode).Str("op", op).Msg("registration backend rejected request")
		return svcErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.ObserveRegistrationCall(op, "service", time.Since(start))
		return &domain.ServiceError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response body"}
	}
	metrics.ObserveRegistrationCall(op, "ok", time.Since(start))
	return nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// IsUnavailable reports whether err means the backend could not be asked at all.
func IsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrNetwork)
}
