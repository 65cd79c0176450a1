package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the payment gateway's REST API. Only the initiation flow
// uses it; the webhook path never calls out.
type Client struct {
	baseURL   string
	secretKey string
	hc        *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		hc:        &http.Client{Timeout: 10 * time.Second},
	}
}

type InitializeRequest struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"` // minor units
	Currency  string `json:"currency"`
	Email     string `json:"email,omitempty"`
}

type InitializeResponse struct {
	CheckoutURL   string
	ProviderTxnID string
}

type initializeAPIResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"message"`
	Data   struct {
		AuthorizationURL string      `json:"authorization_url"`
		AccessCode       string      `json:"access_code"`
		ID               json.Number `json:"id"`
	} `json:"data"`
}

// InitializeTransaction registers a pending payment with the gateway and
// returns the hosted checkout handle the client app redirects to.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (InitializeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return InitializeResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return InitializeResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return InitializeResponse{}, fmt.Errorf("provider initialize: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return InitializeResponse{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return InitializeResponse{}, fmt.Errorf("provider initialize: status %d: %s", resp.StatusCode, respBody)
	}

	var parsed initializeAPIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return InitializeResponse{}, fmt.Errorf("provider initialize: decode response: %w", err)
	}
	if !parsed.Status {
		return InitializeResponse{}, fmt.Errorf("provider initialize rejected: %s", parsed.Msg)
	}
	return InitializeResponse{
		CheckoutURL:   parsed.Data.AuthorizationURL,
		ProviderTxnID: parsed.Data.ID.String(),
	}, nil
}
