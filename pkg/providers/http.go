package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/utils"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	errorBodyLimit     = 2000
)

func newHTTPClient(providerName, proxy string) (*http.Client, error) {
	client := &http.Client{Timeout: defaultHTTPTimeout}
	proxy = strings.TrimSpace(proxy)
	if proxy == "" {
		return client, nil
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("parse %s proxy: %w", providerName, err)
	}
	client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	return client, nil
}

// postJSON sends in as a JSON body and returns the body of a 2xx reply.
// prepare adds auth and vendor headers.
func postJSON(ctx context.Context, client *http.Client, providerName, endpoint string, in any, prepare func(*http.Request) error) ([]byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", providerName, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", providerName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if prepare != nil {
		if err := prepare(req); err != nil {
			return nil, err
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s request: %w", providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", providerName, err)
	}
	if resp.StatusCode/100 != 2 {
		msg := augmentProviderError(providerName, apiErrorMessage(body))
		return nil, fmt.Errorf("%s API request failed: status=%d error=%s", providerName, resp.StatusCode, msg)
	}
	return body, nil
}

// apiErrorMessage pulls the vendor message out of an error body, falling
// back to the raw text.
func apiErrorMessage(body []byte) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return "empty response body"
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		for _, msg := range []string{payload.Error.Message, payload.Message} {
			if msg = strings.TrimSpace(msg); msg != "" {
				return msg
			}
		}
	}
	return utils.Truncate(raw, errorBodyLimit)
}

func numberOption(opts map[string]interface{}, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func intOption(opts map[string]interface{}, key string) (int, bool) {
	v, ok := numberOption(opts, key)
	return int(v), ok
}

func floatOption(opts map[string]interface{}, key string) (*float64, bool) {
	v, ok := numberOption(opts, key)
	if !ok {
		return nil, false
	}
	return &v, true
}
