package process

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	HeaderProcessID = "X-Eoflow-Process-ID"
	HeaderSignature = "X-Eoflow-Signature"

	maxResponseBytes = 10 << 20
)

// Webhook delegates execution to an HTTP worker. The inputs are posted as the
// request body, signed with HMAC-SHA256 when a secret is set, and a 2xx JSON
// object response becomes the outputs.
type Webhook struct {
	def     Definition
	url     string
	secret  string
	timeout time.Duration
	client  *http.Client
}

func NewWebhook(def Definition, url, secret string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Webhook{
		def:     def,
		url:     url,
		secret:  secret,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func (w *Webhook) Definition() Definition { return w.def }

func (w *Webhook) Execute(ctx context.Context, inputs json.RawMessage) (json.RawMessage, error) {
	if len(inputs) == 0 {
		inputs = json.RawMessage(`{}`)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(inputs))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderProcessID, w.def.ID)
	if w.secret != "" {
		req.Header.Set(HeaderSignature, Sign(w.secret, inputs))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("worker returned %d", resp.StatusCode)
	}

	var outputs map[string]json.RawMessage
	if err := json.Unmarshal(body, &outputs); err != nil || outputs == nil {
		return nil, fmt.Errorf("worker response is not a JSON object")
	}
	return body, nil
}

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is for workers to authenticate incoming requests.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
