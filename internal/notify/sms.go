package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// SMSClient posts messages to an HTTP SMS gateway (Semaphore-style API:
// apikey, number, message, sendername as JSON).
type SMSClient struct {
	baseURL    string
	apiKey     string
	senderName string
	httpClient *http.Client
	maxRetries uint64
	retryDelay time.Duration
}

// NewSMSClient creates a gateway client.
func NewSMSClient(baseURL, apiKey, senderName string) *SMSClient {
	return &SMSClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		senderName: senderName,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
	}
}

type smsRequest struct {
	APIKey     string `json:"apikey"`
	Number     string `json:"number"`
	Message    string `json:"message"`
	SenderName string `json:"sendername,omitempty"`
}

// SendSMS delivers text to the number. Gateway 5xx and transport errors are
// retried with exponential backoff; 4xx responses fail immediately.
func (c *SMSClient) SendSMS(ctx context.Context, to, text string) error {
	if c.baseURL == "" {
		return ErrDisabled
	}

	body, err := json.Marshal(smsRequest{
		APIKey:     c.apiKey,
		Number:     to,
		Message:    text,
		SenderName: c.senderName,
	})
	if err != nil {
		return fmt.Errorf("sms: marshal request: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxElapsedTime = 0

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("sms: build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("sms: send: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		gatewayErr := fmt.Errorf("sms: gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return gatewayErr
		}
		return backoff.Permanent(gatewayErr)
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
}
