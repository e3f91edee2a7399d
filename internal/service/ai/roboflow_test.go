package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterease/internal/config"
	"meterease/internal/model"
)

const testEndpoint = "https://detect.example.test/electricity-meter-reading/2"

func newTestDetector(t *testing.T) *HostedDetector {
	t.Helper()

	cfg := &config.Config{
		DetectionURL:        "https://detect.example.test/",
		DetectionModel:      "electricity-meter-reading/2",
		DetectionAPIKey:     "secret",
		DetectionConfidence: 40,
		DetectionOverlap:    30,
		DetectionTimeout:    5 * time.Second,
	}
	d := NewHostedDetector(cfg, nil)
	httpmock.ActivateNonDefault(d.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return d
}

func TestHostedDetector_Detect(t *testing.T) {
	d := newTestDetector(t)
	image := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "40", q.Get("confidence"))
			assert.Equal(t, "30", q.Get("overlap"))
			assert.Equal(t, "secret", q.Get("api_key"))
			assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))

			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			assert.Equal(t, base64.StdEncoding.EncodeToString(image), string(body))

			return httpmock.NewStringResponse(http.StatusOK, `{
				"image": {"width": 640, "height": 480},
				"predictions": [
					{"x": 50, "y": 20, "width": 10, "height": 30, "confidence": 0.91, "class": "3", "class_id": 3},
					{"x": 10, "y": 20, "width": 10, "height": 30, "confidence": 0.88, "class": "1", "class_id": 1}
				]
			}`), nil
		})

	preds, err := d.Detect(context.Background(), image)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, model.Prediction{X: 50, Y: 20, Width: 10, Height: 30, Confidence: 0.91, Class: "3"}, preds[0])
	assert.Equal(t, "1", preds[1].Class)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestHostedDetector_EmptyPredictions(t *testing.T) {
	d := newTestDetector(t)
	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{"predictions": []}`))

	preds, err := d.Detect(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestHostedDetector_Failures(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"quota exceeded", httpmock.NewStringResponder(http.StatusForbidden, `{"message":"quota"}`)},
		{"server error", httpmock.NewStringResponder(http.StatusInternalServerError, "boom")},
		{"malformed body", httpmock.NewStringResponder(http.StatusOK, "{not json")},
		{"network error", httpmock.NewErrorResponder(errors.New("connection refused"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(t)
			httpmock.RegisterResponder(http.MethodPost, testEndpoint, tt.responder)

			_, err := d.Detect(context.Background(), []byte("img"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDetectionUnavailable), "got %v", err)
			assert.Equal(t, 1, httpmock.GetTotalCallCount(), "failures must not be retried")
		})
	}
}

func TestStaticDetector(t *testing.T) {
	d := &StaticDetector{Predictions: []model.Prediction{{X: 1, Class: "9"}}}

	preds, err := d.Detect(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, preds, 1)
	assert.Equal(t, 1, d.Calls())

	d.Err = ErrDetectionUnavailable
	_, err = d.Detect(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDetectionUnavailable)
}
