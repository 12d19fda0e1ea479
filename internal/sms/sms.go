// Package sms sends receipt notifications through an HTTP SMS gateway.
// Delivery is best-effort: callers fire it after the bill transaction has
// committed and only record the outcome.
package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier delivers a single SMS message. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Send(ctx context.Context, phone string, message string) (ref string, err error)
}

// HTTPNotifier posts form-encoded messages to a provider endpoint with a
// bearer token, the lowest common denominator across SMS gateways.
type HTTPNotifier struct {
	endpoint string
	apiKey   string
	sender   string
	client   *http.Client
	logger   *zap.Logger
}

func NewHTTPNotifier(endpoint string, apiKey string, sender string, logger *zap.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		sender:   sender,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (n *HTTPNotifier) Send(ctx context.Context, phone string, message string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("empty phone number")
	}

	ref := uuid.NewString()
	form := url.Values{}
	form.Set("to", phone)
	form.Set("from", n.sender)
	form.Set("message", message)
	form.Set("reference", ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}

	n.logger.Info("sms sent", zap.String("ref", ref))
	return ref, nil
}

// SimulatedNotifier is used when no provider is configured. It logs the
// message and reports success so the rest of the flow behaves identically.
type SimulatedNotifier struct {
	logger *zap.Logger
}

func NewSimulatedNotifier(logger *zap.Logger) *SimulatedNotifier {
	return &SimulatedNotifier{logger: logger}
}

func (n *SimulatedNotifier) Send(_ context.Context, phone string, message string) (string, error) {
	ref := "sim-" + uuid.NewString()
	n.logger.Info("sms simulated",
		zap.String("ref", ref),
		zap.String("phone", phone),
		zap.Int("message_len", len(message)),
	)
	return ref, nil
}
