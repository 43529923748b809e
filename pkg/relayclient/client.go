// Package relayclient calls the relay service over HTTP. The agent uses it
// to fetch queued messages; the poller uses it to submit sends and to check
// for delivery confirmations.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"qride/pkg/domain"
)

// Client calls the relay service over HTTP.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// APIError represents a relay service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a relay client. secret authorizes the fetch endpoint
// and may be empty for ingress-only callers.
func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMessage submits a message for the code's owner through the relay
// ingress endpoint.
func (c *Client) SendMessage(ctx context.Context, code, message string) error {
	payload, err := json.Marshal(sendMessageRequest{Code: code, Message: message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/send-message", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// FetchMessages returns pending messages, optionally filtered to a single
// code. Fetching never removes messages; the relay decides retention.
func (c *Client) FetchMessages(ctx context.Context, code string) ([]domain.MessageRecord, error) {
	q := url.Values{}
	q.Set("secret", c.secret)
	if code != "" {
		q.Set("code", code)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/fetch-messages?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp fetchMessagesResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ReportDelivery records the outcome of transmitting one queue entry. The
// relay stores it and, for confirmed sends, retires exactly that entry by
// its message ID.
func (c *Client) ReportDelivery(ctx context.Context, messageID, code, message string, outcome domain.DeliveryOutcome) error {
	payload, err := json.Marshal(reportDeliveryRequest{MessageID: messageID, Code: code, Message: message, Status: string(outcome)})
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Set("secret", c.secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/delivery-status?"+q.Encode(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// Delivered reports whether a "sent" delivery record exists for the exact
// (code, message) pair. It satisfies the poller's DeliveryChecker.
func (c *Client) Delivered(ctx context.Context, code, message string) (bool, error) {
	q := url.Values{}
	q.Set("code", code)
	q.Set("message", message)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/delivery-status?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}

	var resp deliveryStatusResponse
	if err := c.do(req, &resp); err != nil {
		return false, err
	}
	for _, st := range resp.Statuses {
		if st.Status == domain.DeliverySent {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

type sendMessageRequest struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type reportDeliveryRequest struct {
	MessageID string `json:"message_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    string `json:"status"`
}

type fetchMessagesResponse struct {
	Messages []domain.MessageRecord `json:"messages"`
}

type deliveryStatusResponse struct {
	Statuses []domain.DeliveryStatus `json:"statuses"`
}
