package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	config "github.com/jkarani9/bookmed/configs"
)

// CheckoutSession is the gateway's handle for a hosted payment page.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
}

// Client talks to the payment gateway's REST API. The appointment and
// payment ids ride along as opaque metadata and come back unmodified in
// webhook events, which is how the reconciler correlates them.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.GatewayBaseURL,
		apiKey:  cfg.GatewayAPIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, amount float64, currency string, appointmentID, paymentID uuid.UUID) (*CheckoutSession, error) {
	payload := map[string]interface{}{
		"amount":   fmt.Sprintf("%.2f", amount),
		"currency": currency,
		"metadata": map[string]string{
			"appointment_id": appointmentID.String(),
			"payment_id":     paymentID.String(),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/v1/checkout/sessions", c.baseURL), bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to create checkout session: %s", string(respBody))
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}
