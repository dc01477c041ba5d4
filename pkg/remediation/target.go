package remediation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookTarget delivers remediation commands to an operator-run endpoint
// over HTTP. The endpoint owns deduplication: the idempotency key travels in
// both the body and the Idempotency-Key header, and replaying a key must be
// a no-op on the target side.
type WebhookTarget struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type webhookCommand struct {
	Command        string            `json:"command"`
	IdempotencyKey string            `json:"idempotency_key"`
	Params         map[string]string `json:"params"`
}

type webhookResponse struct {
	Ref string `json:"ref"`
}

// NewWebhookTarget creates a target posting commands to url.
func NewWebhookTarget(url string, timeout time.Duration) *WebhookTarget {
	return &WebhookTarget{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default().With("component", "remediation.target"),
	}
}

// Invoke implements TargetClient. A 4xx response is a permanent failure;
// 5xx and transport errors are transient and will be retried.
func (t *WebhookTarget) Invoke(ctx context.Context, command, idempotencyKey string, params map[string]string) (string, error) {
	body, err := json.Marshal(webhookCommand{
		Command:        command,
		IdempotencyKey: idempotencyKey,
		Params:         params,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("target request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("failed to read target response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var parsed webhookResponse
		if err := json.Unmarshal(data, &parsed); err == nil && parsed.Ref != "" {
			return parsed.Ref, nil
		}
		return resp.Status, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", &PermanentError{Err: fmt.Errorf("target rejected %s: %s: %s", command, resp.Status, data)}
	default:
		return "", fmt.Errorf("target error on %s: %s: %s", command, resp.Status, data)
	}
}

// LogTarget is the no-op TargetClient used when no webhook is configured:
// commands land in the structured log and nothing else happens. Useful for
// staging an engine before wiring real controls.
type LogTarget struct{}

// Invoke implements TargetClient.
func (LogTarget) Invoke(_ context.Context, command, idempotencyKey string, params map[string]string) (string, error) {
	slog.Default().With("component", "remediation.target").Warn("log-only target invoked",
		"command", command,
		"idempotency_key", idempotencyKey,
		"subject", params["subject"],
	)
	return "log-only", nil
}
