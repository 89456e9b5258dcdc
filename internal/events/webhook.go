package events

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

// WebhookConfig configures WebhookSink.
type WebhookConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Endpoint string            `yaml:"endpoint"`
	Secret   string            `yaml:"secret"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// WebhookSink posts each event as JSON. Receivers can verify the body with
// the HMAC in X-Docmeta-Signature and drop redeliveries by X-Docmeta-Delivery.
type WebhookSink struct {
	Endpoint string
	Secret   string
	Headers  map[string]string
	Client   *http.Client
}

// NewWebhookSink creates a WebhookSink from config, or nil when disabled.
func NewWebhookSink(c WebhookConfig) *WebhookSink {
	if !c.Enabled || c.Endpoint == "" {
		return nil
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		Endpoint: c.Endpoint,
		Secret:   c.Secret,
		Headers:  c.Headers,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Sign returns the signature header value of body for secret.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

func (s *WebhookSink) Emit(ctx context.Context, e Event) error {
	if s == nil {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Docmeta-Event", e.Name)
	req.Header.Set("X-Docmeta-Delivery", e.ID)
	if s.Secret != "" {
		req.Header.Set("X-Docmeta-Signature", Sign(s.Secret, body))
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", e.Name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: %s", e.Name, resp.Status)
	}
	return nil
}
