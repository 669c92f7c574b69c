package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"seekchat/model"
)

const maxErrorBody = 64 * 1024

// postJSON sends body to url and returns the response when the status is
// 2xx. The caller closes the body.
func postJSON(ctx context.Context, client *http.Client, providerName, url string, headers map[string]string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", providerName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &model.TransportError{Provider: providerName, Message: "invalid request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v == "" {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, requestError(ctx, providerName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(providerName, resp)
	}
	return resp, nil
}

// requestError classifies a failure of the HTTP exchange itself.
func requestError(ctx context.Context, providerName string, err error) error {
	if ctx.Err() != nil {
		return model.Cancelled(ctx.Err())
	}
	return &model.TransportError{Provider: providerName, Message: "request failed", Err: err}
}

// statusError turns a non-2xx response into a TransportError, preferring
// the message from the provider's error envelope.
func statusError(providerName string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &model.TransportError{
		Provider:   providerName,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(providerName, resp.StatusCode, data),
	}
}

func errorMessage(providerName string, status int, body []byte) string {
	if gjson.ValidBytes(body) {
		doc := gjson.ParseBytes(body)
		if doc.IsArray() {
			doc = doc.Get("0")
		}
		for _, path := range []string{"error.message", "message", "error"} {
			if v := doc.Get(path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	return fmt.Sprintf("%s API error: %d", providerName, status)
}

func joinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + endpoint
}
