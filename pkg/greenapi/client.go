// Package greenapi is a small client for the Green API WhatsApp gateway.
package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL      = "https://api.green-api.com"
	defaultHTTPTimeout = 30 * time.Second
)

type Options struct {
	APIURL     string
	InstanceID string
	Token      string
	// SendRate limits sendMessage calls per second; zero disables throttling.
	SendRate   float64
	SendBurst  int
	HTTPClient *http.Client
}

type Client struct {
	base       string
	instanceID string
	token      string
	http       *http.Client
	sendLimit  *rate.Limiter
}

func NewClient(opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.InstanceID)
	token := strings.TrimSpace(opts.Token)
	if id == "" || token == "" {
		return nil, fmt.Errorf("green api instance id and token are required")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if base == "" {
		base = DefaultAPIURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	c := &Client{base: base, instanceID: id, token: token, http: hc}
	if opts.SendRate > 0 {
		burst := opts.SendBurst
		if burst <= 0 {
			burst = 1
		}
		c.sendLimit = rate.NewLimiter(rate.Limit(opts.SendRate), burst)
	}
	return c, nil
}

func (c *Client) endpoint(method string, extra ...string) string {
	parts := append([]string{c.base, "waInstance" + c.instanceID, method, c.token}, extra...)
	return strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, httpMethod, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 500 {
			msg = msg[:500] + "..."
		}
		return &APIError{StatusCode: resp.StatusCode, Body: msg}
	}
	if out == nil {
		return nil
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("green api request failed: status=%d body=%s", e.StatusCode, e.Body)
}

// SendMessage delivers a text message and returns its message id.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	if c.sendLimit != nil {
		if err := c.sendLimit.Wait(ctx); err != nil {
			return "", fmt.Errorf("send rate limit: %w", err)
		}
	}
	var out SendMessageResponse
	err := c.do(ctx, http.MethodPost, c.endpoint("sendMessage"), SendMessageRequest{ChatID: chatID, Message: text}, &out)
	if err != nil {
		return "", fmt.Errorf("sendMessage %s: %w", chatID, err)
	}
	return out.IDMessage, nil
}

// GetChatHistory returns up to count messages, newest first.
func (c *Client) GetChatHistory(ctx context.Context, chatID string, count int) ([]HistoryMessage, error) {
	in := map[string]any{"chatId": chatID, "count": count}
	var out []HistoryMessage
	if err := c.do(ctx, http.MethodPost, c.endpoint("getChatHistory"), in, &out); err != nil {
		return nil, fmt.Errorf("getChatHistory %s: %w", chatID, err)
	}
	return out, nil
}

// LastIncomingMessages returns messages received in the trailing window.
func (c *Client) LastIncomingMessages(ctx context.Context, minutes int) ([]HistoryMessage, error) {
	u := c.endpoint("lastIncomingMessages") + "?" + url.Values{"minutes": {strconv.Itoa(minutes)}}.Encode()
	var out []HistoryMessage
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, fmt.Errorf("lastIncomingMessages: %w", err)
	}
	return out, nil
}

// ReceiveNotification long-polls the notification queue. It returns nil
// when the queue stayed empty for the timeout.
func (c *Client) ReceiveNotification(ctx context.Context, timeoutSeconds int) (*Notification, error) {
	u := c.endpoint("receiveNotification")
	if timeoutSeconds > 0 {
		u += "?" + url.Values{"receiveTimeout": {strconv.Itoa(timeoutSeconds)}}.Encode()
	}
	var out *Notification
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, fmt.Errorf("receiveNotification: %w", err)
	}
	return out, nil
}

func (c *Client) DeleteNotification(ctx context.Context, receiptID int64) error {
	u := c.endpoint("deleteNotification", strconv.FormatInt(receiptID, 10))
	if err := c.do(ctx, http.MethodDelete, u, nil, nil); err != nil {
		return fmt.Errorf("deleteNotification %d: %w", receiptID, err)
	}
	return nil
}
