// Package external wraps the best-effort text-classification service. Every
// caller must keep a local fallback: failures here are advisory, never fatal.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/config"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/metrics"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

const serviceName = "text-classification"

// Classification is the advisory verdict returned by the service.
type Classification struct {
	Sentiment           float64 `json:"sentiment"`
	Toxicity            float64 `json:"toxicity"`
	SyntheticLikelihood float64 `json:"synthetic_likelihood"`
	Provider            string  `json:"provider"`
}

// Client calls the external classifier with a bounded timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewClient creates a new text-classification client. collector may be nil.
func NewClient(cfg config.ExternalConfig, collector *metrics.Collector, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    collector,
		logger:     logger.With(zap.String("component", "external_classifier")),
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

// ClassifyText submits text for classification. Any transport, timeout or
// decoding failure is returned as a models.ExternalServiceError so callers
// can degrade to local analysis.
func (c *Client) ClassifyText(ctx context.Context, text string) (*Classification, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, c.fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("text classification call failed", zap.Error(err))
		return nil, c.fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		c.logger.Warn("text classification call failed", zap.Error(err))
		return nil, c.fail(err)
	}

	var result Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.fail(err)
	}

	return &result, nil
}

// fail counts the failure and wraps err so callers can degrade to local
// analysis.
func (c *Client) fail(err error) error {
	if c.metrics != nil {
		c.metrics.ExternalServiceFailures.Inc()
	}
	return &models.ExternalServiceError{Service: serviceName, Err: err}
}
