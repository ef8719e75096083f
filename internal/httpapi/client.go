package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jogardn/xconnect/internal/agent"
	"github.com/jogardn/xconnect/internal/ledger"
	"github.com/jogardn/xconnect/internal/reconcile"
	"github.com/sirupsen/logrus"
)

// Client talks to a running agent over its HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logger,
	}
}

// StatusError is returned for any non-2xx answer from the agent.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("agent returned status %d", e.Status)
	}
	return fmt.Sprintf("agent returned status %d: %s", e.Status, e.Message)
}

func (c *Client) SendOrder(ctx context.Context, order OrderRequest) (*agent.SendResult, error) {
	c.logger.WithFields(logrus.Fields{
		"source_language":  order.SourceLanguage,
		"target_languages": order.TargetLanguages,
		"file_count":       len(order.Files),
	}).Info("Sending order to agent")

	var result agent.SendResult
	if err := c.do(ctx, http.MethodPost, "/orders", order, &result); err != nil {
		return nil, err
	}

	c.logger.WithField("order_name", result.OrderName).Info("Order accepted by agent")
	return &result, nil
}

func (c *Client) Poll(ctx context.Context) (*agent.PollResult, error) {
	var result agent.PollResult
	if err := c.do(ctx, http.MethodPost, "/poll", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]ledger.OrderRecord, error) {
	var orders []ledger.OrderRecord
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder returns ledger.ErrNotFound for an unknown order.
func (c *Client) GetOrder(ctx context.Context, name string) (*ledger.OrderRecord, error) {
	var order ledger.OrderRecord
	err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(name), nil, &order)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
		return nil, fmt.Errorf("order %s: %w", name, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) Reconcile(ctx context.Context) (*reconcile.Report, error) {
	var report reconcile.Report
	if err := c.do(ctx, http.MethodGet, "/reconcile", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return &StatusError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode agent response: %w", err)
	}
	return nil
}
