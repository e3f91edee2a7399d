package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meterease/internal/config"
	"meterease/internal/logger"
	"meterease/internal/model"
)

// HostedDetector calls a Roboflow style hosted inference endpoint.
type HostedDetector struct {
	baseURL    string
	modelID    string
	apiKey     string
	confidence int
	overlap    int
	client     *http.Client
	logger     *logger.Logger
}

type hostedResponse struct {
	Predictions []model.Prediction `json:"predictions"`
}

// NewHostedDetector builds a detector from the detection settings in cfg.
func NewHostedDetector(cfg *config.Config, logger *logger.Logger) *HostedDetector {
	return &HostedDetector{
		baseURL:    strings.TrimRight(cfg.DetectionURL, "/"),
		modelID:    strings.Trim(cfg.DetectionModel, "/"),
		apiKey:     cfg.DetectionAPIKey,
		confidence: cfg.DetectionConfidence,
		overlap:    cfg.DetectionOverlap,
		client:     &http.Client{Timeout: cfg.DetectionTimeout},
		logger:     logger,
	}
}

// Endpoint returns the inference URL including query parameters.
func (d *HostedDetector) Endpoint() string {
	q := url.Values{}
	q.Set("api_key", d.apiKey)
	q.Set("confidence", strconv.Itoa(d.confidence))
	q.Set("overlap", strconv.Itoa(d.overlap))
	q.Set("format", "json")
	return fmt.Sprintf("%s/%s?%s", d.baseURL, d.modelID, q.Encode())
}

// Detect sends the image to the hosted model. Failures are not retried.
func (d *HostedDetector) Detect(ctx context.Context, image []byte) ([]model.Prediction, error) {
	body := strings.NewReader(base64.StdEncoding.EncodeToString(image))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrDetectionUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", ErrDetectionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: model returned status %d: %s",
			ErrDetectionUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result hostedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrDetectionUnavailable, err)
	}

	if d.logger != nil {
		d.logger.Info("Model %s returned %d predictions in %s", d.modelID, len(result.Predictions), time.Since(start).Round(time.Millisecond))
	}
	return result.Predictions, nil
}
