package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxBatchSize is the relay's per-call token ceiling. Larger audiences are
// split into consecutive batches.
const MaxBatchSize = 500

// Client talks to the multicast push relay. One call delivers a single
// title/body pair to a list of device tokens and reports per-token results.
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

func NewClient(baseURL, key string) *Client {
	return &Client{
		baseURL: baseURL,
		key:     key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the client has a relay URL.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// SendMulticast delivers one notification to every token, chunking per the
// relay's batch ceiling. A transport failure on one batch marks that batch's
// tokens as failed and moves on; it never aborts the remaining batches, so
// the returned result always covers every token.
func (c *Client) SendMulticast(ctx context.Context, title, body string, tokens []string) (*MulticastResult, error) {
	out := &MulticastResult{}
	for start := 0; start < len(tokens); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		resp, err := c.send(ctx, title, body, batch)
		if err != nil {
			for _, t := range batch {
				out.Responses = append(out.Responses, SendResult{Token: t, Error: err.Error()})
			}
			out.FailureCount += len(batch)
			continue
		}

		for i, r := range resp.Responses {
			if i >= len(batch) {
				break
			}
			sr := SendResult{Token: batch[i], Success: r.Success, Error: r.Error}
			if sr.Success {
				out.SuccessCount++
			} else {
				out.FailureCount++
			}
			out.Responses = append(out.Responses, sr)
		}
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, title, body string, tokens []string) (*multicastResponse, error) {
	payload := multicastRequest{
		Notification: Notification{Title: title, Body: body},
		Tokens:       tokens,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/send", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("relay error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed multicastResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, nil
}
