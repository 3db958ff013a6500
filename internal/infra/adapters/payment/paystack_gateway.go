// File: internal/infra/adapters/payment/paystack_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"datahub-storefront/internal/domain/ports/adapter"
	"datahub-storefront/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*PaystackGateway)(nil)

// PaystackGateway verifies transactions opened by the Paystack inline widget.
type PaystackGateway struct {
	publicKey string
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewPaystackGateway(publicKey, secretKey, baseURL string, timeout time.Duration) (*PaystackGateway, error) {
	if secretKey == "" {
		return nil, errors.New("paystack secret key empty")
	}
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid paystack base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PaystackGateway{
		publicKey: publicKey,
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (p *PaystackGateway) Name() string { return "paystack" }

func (p *PaystackGateway) PublicKey() string { return p.publicKey }

// Verify calls GET /transaction/verify/:reference.
func (p *PaystackGateway) Verify(ctx context.Context, reference string) (adapter.Verification, error) {
	if reference == "" {
		return adapter.Verification{}, errors.New("paystack verify: empty reference")
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		metrics.ObservePaymentVerify(p.Name(), "error", time.Since(start))
		return adapter.Verification{}, fmt.Errorf("paystack verify: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.ObservePaymentVerify(p.Name(), "error", time.Since(start))
		return adapter.Verification{}, fmt.Errorf("paystack verify: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			ID        int64  `json:"id"`
			Status    string `json:"status"`
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
			PaidAt    string `json:"paid_at"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.ObservePaymentVerify(p.Name(), "error", time.Since(start))
		return adapter.Verification{}, fmt.Errorf("paystack verify: decode: %w", err)
	}
	// 404 means the reference is unknown to the provider; that's an unpaid answer, not a failure.
	if resp.StatusCode == http.StatusNotFound {
		metrics.ObservePaymentVerify(p.Name(), "unpaid", time.Since(start))
		return adapter.Verification{Reference: reference, Status: "not_found"}, nil
	}
	if resp.StatusCode != http.StatusOK || !out.Status {
		metrics.ObservePaymentVerify(p.Name(), "error", time.Since(start))
		return adapter.Verification{}, fmt.Errorf("paystack verify: status %d: %s", resp.StatusCode, out.Message)
	}

	v := adapter.Verification{
		Reference:   out.Data.Reference,
		Paid:        out.Data.Status == "success",
		Status:      out.Data.Status,
		AmountMinor: out.Data.Amount,
		Currency:    out.Data.Currency,
		ProviderID:  fmt.Sprintf("%d", out.Data.ID),
	}
	if out.Data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, out.Data.PaidAt); err == nil {
			v.PaidAt = t
		}
	}
	result := "unpaid"
	if v.Paid {
		result = "paid"
	}
	metrics.ObservePaymentVerify(p.Name(), result, time.Since(start))
	return v, nil
}
