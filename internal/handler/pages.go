package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"meterease/internal/dto"
	"meterease/internal/logger"
	"meterease/internal/model"
	"meterease/internal/service"
	"meterease/internal/service/billing"
	"meterease/internal/service/consumption"
	"meterease/internal/service/storage"
	"meterease/internal/view"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	billDueDays         = 30
)

func renderPage(w http.ResponseWriter, logger *logger.Logger, renderer *view.Renderer, page string, data interface{}, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := renderer.Render(w, page, data); err != nil {
		logger.Error("Error rendering %s: %v", page, err)
	}
}

// UploadPageHandler handles GET /upload.
func UploadPageHandler(logger *logger.Logger, renderer *view.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, logger, renderer, view.PageUpload, nil, http.StatusOK)
	}
}

// ViewPageHandler handles GET /view/{id}. It returns 404 unless both current
// images of the set are on disk.
func ViewPageHandler(logger *logger.Logger, renderer *view.Renderer, meter *service.MeterService, store *storage.ImageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if !store.Exists(id, model.KindCurrent) {
			http.Error(w, "Images not found", http.StatusNotFound)
			return
		}

		set, err := meter.ImageSet(r.Context(), id)
		if err != nil {
			logger.Error("Error loading image set %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if set.Current == nil {
			http.Error(w, "Images not found", http.StatusNotFound)
			return
		}

		page := view.ResultPage{
			ImageSetID:          id,
			Current:             set.Current,
			Previous:            set.Previous,
			CurrentOriginalURL:  imageURL(id, model.KindCurrent, false),
			CurrentProcessedURL: imageURL(id, model.KindCurrent, true),
			Consumption:         set.Consumption,
		}
		if store.Exists(id, model.KindPrevious) {
			page.PreviousImageURL = imageURL(id, model.KindPrevious, true)
		}

		if set.Consumption == nil {
			var previous *string
			if set.Previous != nil {
				previous = &set.Previous.Value
			}
			page.Message = consumption.CalculateStrings(set.Current.Value, previous).Message()
		} else if set.Previous != nil {
			page.BillURL = billURL(id, set.Current.Value, set.Previous.Value, set.Consumption.Delta)
		}

		renderPage(w, logger, renderer, view.PageResult, page, http.StatusOK)
	}
}

func billURL(id, current, previous string, delta float64) string {
	q := url.Values{}
	q.Set("imageId", id)
	q.Set("current", current)
	q.Set("previous", previous)
	q.Set("consumption", fmt.Sprintf("%g", delta))
	return "/generate-bill?" + q.Encode()
}

// BillPageHandler handles GET /generate-bill. Consumption is taken from the
// query, derived from current and previous, or loaded from the image set.
func BillPageHandler(logger *logger.Logger, renderer *view.Renderer, meter *service.MeterService, tariff *billing.Tariff) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		now := time.Now()
		page := view.BillPage{
			ImageSetID:  q.Get("imageId"),
			Current:     q.Get("current"),
			Previous:    q.Get("previous"),
			Consumption: strings.TrimSpace(q.Get("consumption")),
			BillDate:    now,
			DueDate:     now.AddDate(0, 0, billDueDays),
		}

		if page.ImageSetID != "" && (page.Current == "" || page.Previous == "") {
			set, err := meter.ImageSet(r.Context(), page.ImageSetID)
			if err != nil {
				logger.Error("Error loading image set %s: %v", page.ImageSetID, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if set.Current != nil && page.Current == "" {
				page.Current = set.Current.Value
			}
			if set.Previous != nil && page.Previous == "" {
				page.Previous = set.Previous.Value
			}
		}

		if page.Consumption == "" && page.Current != "" && page.Previous != "" {
			result := consumption.CalculateStrings(page.Current, &page.Previous)
			if result.Status == consumption.Computed {
				page.Consumption = fmt.Sprintf("%g", result.Delta)
			}
		}

		units := consumption.ParseValue(page.Consumption)
		if units.Kind != consumption.Numeric {
			page.Error = fmt.Sprintf("Error generating bill: invalid consumption value %q", page.Consumption)
			renderPage(w, logger, renderer, view.PageBill, page, http.StatusBadRequest)
			return
		}

		bill, err := tariff.Calculate(units.Number)
		switch {
		case errors.Is(err, billing.ErrNegativeUnits):
			page.Warning = fmt.Sprintf("Negative consumption (%s units) detected. This could indicate a meter reset or error; no bill was generated.", page.Consumption)
		case err != nil:
			page.Error = "Error generating bill: " + err.Error()
			renderPage(w, logger, renderer, view.PageBill, page, http.StatusBadRequest)
			return
		default:
			page.Bill = bill
		}

		renderPage(w, logger, renderer, view.PageBill, page, http.StatusOK)
	}
}

// HistoryPageHandler handles GET /history-page.
func HistoryPageHandler(logger *logger.Logger, renderer *view.Renderer, meter *service.MeterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := atoiDefault(r.URL.Query().Get("page"), 1)

		entries, total, err := meter.History(r.Context(), page, defaultHistoryLimit)
		if err != nil {
			logger.Error("Error querying history: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := view.HistoryPage{
			Entries: entries,
			Page:    page,
			Pages:   pageCount(total, defaultHistoryLimit),
			Total:   total,
		}
		if page > 1 {
			data.PrevPage = page - 1
		}
		if page < data.Pages {
			data.NextPage = page + 1
		}

		renderPage(w, logger, renderer, view.PageHistory, data, http.StatusOK)
	}
}

// HistoryAPIHandler handles GET /api/history?page=&limit=.
func HistoryAPIHandler(logger *logger.Logger, meter *service.MeterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultHistoryLimit)
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		entries, total, err := meter.History(r.Context(), page, limit)
		if err != nil {
			logger.Error("Error querying history: %v", err)
			respondError(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		items := make([]dto.HistoryItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, dto.HistoryItem{
				ImageSetID:  e.ImageSetID,
				Current:     e.Current,
				Previous:    e.Previous,
				Consumption: e.Consumption,
				CapturedAt:  e.CapturedAt,
				ViewURL:     "/view/" + e.ImageSetID,
			})
		}

		respondJSON(w, dto.HistoryResponse{
			Items: items,
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pageCount(total, limit),
		}, http.StatusOK)
	}
}

func pageCount(total, limit int) int {
	if total == 0 {
		return 1
	}
	return (total + limit - 1) / limit
}
