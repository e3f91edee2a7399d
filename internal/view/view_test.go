package view

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterease/internal/model"
	"meterease/internal/service/billing"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	return r
}

func TestRender_Result(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer

	err := r.Render(&buf, PageResult, ResultPage{
		ImageSetID:          "set-1",
		Current:             &model.Reading{Value: "123", CapturedAt: time.Now().Add(-time.Hour)},
		Previous:            &model.Reading{Value: "100"},
		CurrentProcessedURL: "/image/set-1/current?processed=true",
		CurrentOriginalURL:  "/image/set-1/current?processed=false",
		Consumption:         &model.ConsumptionRecord{Delta: 23},
		BillURL:             "/generate-bill?imageId=set-1",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Current reading: 123")
	assert.Contains(t, out, "Previous reading: 100")
	assert.Contains(t, out, "Consumption: 23 units")
	assert.Contains(t, out, "1 hour ago")
	assert.Contains(t, out, "Generate bill")
}

func TestRender_ResultAnomalous(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer

	err := r.Render(&buf, PageResult, ResultPage{
		Current:     &model.Reading{Value: "80", CapturedAt: time.Now()},
		Consumption: &model.ConsumptionRecord{Delta: -20},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Negative consumption")
	assert.NotContains(t, buf.String(), "Generate bill")
}

func TestRender_Bill(t *testing.T) {
	r := newRenderer(t)
	bill, err := billing.DefaultTariff().Calculate(450)
	require.NoError(t, err)

	var buf bytes.Buffer
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	err = r.Render(&buf, PageBill, BillPage{
		Current: "1450", Previous: "1000", Consumption: "450",
		Bill: bill, BillDate: now, DueDate: now.AddDate(0, 0, 30),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "31 May 2025")
	assert.Contains(t, out, "1,490")
	assert.Contains(t, out, "730")
}

func TestRender_BillError(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer

	require.NoError(t, r.Render(&buf, PageBill, BillPage{Error: "Invalid consumption value"}))
	assert.Contains(t, buf.String(), "Invalid consumption value")
	assert.NotContains(t, buf.String(), "Slab charges")
}

func TestRender_HistoryAndUpload(t *testing.T) {
	r := newRenderer(t)
	prev := "80"
	delta := 20.5

	var buf bytes.Buffer
	err := r.Render(&buf, PageHistory, HistoryPage{
		Entries: []model.HistoryEntry{{ImageSetID: "a", Current: "100.5", Previous: &prev, Consumption: &delta, CapturedAt: time.Now()}},
		Page:    1, Pages: 1, Total: 1,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "/view/a")
	assert.Contains(t, buf.String(), "20.5")

	buf.Reset()
	require.NoError(t, r.Render(&buf, PageHistory, HistoryPage{Page: 1, Pages: 1}))
	assert.Contains(t, buf.String(), "No readings yet")

	buf.Reset()
	require.NoError(t, r.Render(&buf, PageUpload, nil))
	assert.Contains(t, buf.String(), `name="current_image"`)
}

func TestRender_UnknownPage(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	assert.Error(t, r.Render(&buf, "missing.html", nil))
	assert.Zero(t, buf.Len())
}
