package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trackbook/internal/config"

	"github.com/rs/zerolog"
)

// Client talks to the hosted checkout provider. Amounts cross the wire in
// minor units (pence, cents).
type Client struct {
	baseURL    string
	secretKey  string
	successURL string
	cancelURL  string
	httpClient *http.Client
	logger     *zerolog.Logger
}

func NewClient(cfg config.GatewayConfig, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		secretKey:  cfg.SecretKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger,
	}
}

// CheckoutParams describes one checkout session to create.
type CheckoutParams struct {
	AmountMinorUnits int64  `json:"amount"`
	Currency         string `json:"currency"`
	Description      string `json:"description"`
	Reference        string `json:"reference"`
}

// CheckoutSession is the provider's response: the session id is the key the
// webhook later delivers back.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	body, err := json.Marshal(struct {
		CheckoutParams
		SuccessURL string `json:"success_url"`
		CancelURL  string `json:"cancel_url"`
	}{params, c.successURL, c.cancelURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("checkout provider returned %d: %s", resp.StatusCode, data)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout response: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("checkout provider returned empty session id")
	}

	c.logger.Debug().Str("session_id", session.ID).Msg("checkout session created")
	return &session, nil
}
