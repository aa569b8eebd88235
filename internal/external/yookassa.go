package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"subgate/internal/types"
)

// yooKassaAPIBase is the default YooKassa API base URL.
// Overridable in tests via YooKassaConfig.BaseURL.
const yooKassaAPIBase = "https://api.yookassa.ru"

// Provider payment status strings as returned by the YooKassa API.
const (
	ProviderStatusPending           = "pending"
	ProviderStatusWaitingForCapture = "waiting_for_capture"
	ProviderStatusSucceeded         = "succeeded"
	ProviderStatusCanceled          = "canceled"
)

// YooKassaConfig holds the configuration for creating a YooKassaClient.
type YooKassaConfig struct {
	ShopID    string
	SecretKey types.SecretString
	BaseURL   string // Override for testing; defaults to yooKassaAPIBase
	Logger    *slog.Logger
}

// YooKassaClient implements PaymentProvider by making direct HTTP calls to the
// YooKassa REST API (v3) through BaseClient, so every call inherits the
// platform's resilience behavior (circuit breaker, retries, error mapping)
// and is straightforward to test with httptest.
type YooKassaClient struct {
	base      *BaseClient
	shopID    string
	secretKey types.SecretString
	baseURL   string
	logger    *slog.Logger
}

// NewYooKassaClient creates a new YooKassaClient. The httpClient timeout
// bounds every provider call; configure it from ProviderConfig.Timeout.
func NewYooKassaClient(httpClient *http.Client, cfg YooKassaConfig) *YooKassaClient {
	base := NewBaseClient(
		httpClient,
		"yookassa",
		DefaultRetryPolicy(),
		"SubGate/1.0",
	)
	return newYooKassaClient(base, cfg)
}

// NewYooKassaClientWithBase creates a YooKassaClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration.
func NewYooKassaClientWithBase(base *BaseClient, cfg YooKassaConfig) *YooKassaClient {
	return newYooKassaClient(base, cfg)
}

func newYooKassaClient(base *BaseClient, cfg YooKassaConfig) *YooKassaClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = yooKassaAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &YooKassaClient{
		base:      base,
		shopID:    cfg.ShopID,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// ---------------------------------------------------------------------------
// PaymentProvider Implementation
// ---------------------------------------------------------------------------

// CreatePayment opens a payment intent with a redirect confirmation and
// immediate capture. The Idempotence-Key header carries the local payment id,
// so a retried creation call never produces a second provider-side payment.
func (c *YooKassaClient) CreatePayment(
	ctx context.Context,
	idempotenceKey string,
	req CreatePaymentRequest,
) (*ProviderPayment, error) {
	body := yooKassaCreateRequest{
		Amount: yooKassaAmount{
			Value:    formatAmount(req.Amount),
			Currency: req.Currency,
		},
		Confirmation: yooKassaConfirmation{
			Type:      "redirect",
			ReturnURL: req.ReturnURL,
		},
		Capture:     true,
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	resp, err := c.doPost(ctx, "/v3/payments", idempotenceKey, body)
	if err != nil {
		return nil, c.wrapProviderError("CreatePayment", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, "CreatePayment")
	}

	var payment yooKassaPayment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamProvider,
			"failed to decode provider payment creation response",
			err,
		)
	}

	return mapProviderPayment(&payment), nil
}

// GetPayment returns the provider's current view of a payment. Used by the
// chat-driven polling path and the manual resync endpoint.
func (c *YooKassaClient) GetPayment(ctx context.Context, providerID string) (*ProviderPayment, error) {
	resp, err := c.doGet(ctx, "/v3/payments/"+providerID)
	if err != nil {
		return nil, c.wrapProviderError("GetPayment", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, "GetPayment")
	}

	var payment yooKassaPayment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamProvider,
			"failed to decode provider payment response",
			err,
		)
	}

	return mapProviderPayment(&payment), nil
}

// ---------------------------------------------------------------------------
// HTTP Helpers
// ---------------------------------------------------------------------------

// doGet performs an authenticated GET request to the YooKassa API.
func (c *YooKassaClient) doGet(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.setAuthHeaders(req)

	return c.base.Do(req)
}

// doPost performs an authenticated POST request with a JSON body and the
// mandatory Idempotence-Key header.
func (c *YooKassaClient) doPost(ctx context.Context, path, idempotenceKey string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode provider request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", idempotenceKey)
	c.setAuthHeaders(req)

	return c.base.Do(req)
}

// setAuthHeaders sets YooKassa Basic authentication (shop id + secret key).
func (c *YooKassaClient) setAuthHeaders(req *http.Request) {
	req.SetBasicAuth(c.shopID, c.secretKey.Unmask())
}

// formatAmount renders whole rubles as the decimal string the API expects.
func formatAmount(rubles int64) string {
	return fmt.Sprintf("%d.00", rubles)
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// yooKassaErrorResponse represents the JSON error body returned by the API.
type yooKassaErrorResponse struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Parameter   string `json:"parameter"`
}

// handleErrorResponse reads a provider error response and maps it to a
// types.AppError.
func (c *YooKassaClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("%s: provider returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var provErr yooKassaErrorResponse
	if jsonErr := json.Unmarshal(body, &provErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("%s: provider returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return types.NewAppError(
			types.ErrCodeNotFoundPayment,
			fmt.Sprintf("%s: provider payment not found: %s", operation, provErr.Description),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: provider server error: %s", operation, provErr.Description),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("%s: provider error %s (%d): %s", operation, provErr.Code, resp.StatusCode, provErr.Description),
			nil,
		)
	}
}

// wrapProviderError wraps a BaseClient transport error with operation context.
func (c *YooKassaClient) wrapProviderError(operation string, err error) error {
	// BaseClient errors (circuit breaker, retries exhausted) already carry
	// the right upstream code; return them as-is.
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamProvider,
		fmt.Sprintf("%s: provider request failed: %v", operation, err),
		err,
	)
}

// ---------------------------------------------------------------------------
// YooKassa Wire Types (for JSON serialization)
// ---------------------------------------------------------------------------

type yooKassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooKassaConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type yooKassaCreateRequest struct {
	Amount       yooKassaAmount       `json:"amount"`
	Confirmation yooKassaConfirmation `json:"confirmation"`
	Capture      bool                 `json:"capture"`
	Description  string               `json:"description,omitempty"`
	Metadata     map[string]string    `json:"metadata,omitempty"`
}

type yooKassaCancellation struct {
	Party  string `json:"party"`
	Reason string `json:"reason"`
}

type yooKassaPayment struct {
	ID                  string                `json:"id"`
	Status              string                `json:"status"`
	Paid                bool                  `json:"paid"`
	Confirmation        *yooKassaConfirmation `json:"confirmation"`
	Metadata            map[string]string     `json:"metadata"`
	CancellationDetails *yooKassaCancellation `json:"cancellation_details"`
}

// mapProviderPayment converts a wire payment to the provider-neutral shape.
func mapProviderPayment(p *yooKassaPayment) *ProviderPayment {
	out := &ProviderPayment{
		ID:       p.ID,
		Status:   p.Status,
		Paid:     p.Paid,
		Metadata: p.Metadata,
	}
	if p.Confirmation != nil {
		out.ConfirmationURL = p.Confirmation.ConfirmationURL
	}
	if p.CancellationDetails != nil {
		out.CancellationReason = p.CancellationDetails.Reason
	}
	return out
}
