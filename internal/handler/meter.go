package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"meterease/internal/config"
	"meterease/internal/dto"
	"meterease/internal/logger"
	"meterease/internal/model"
	"meterease/internal/service"
	"meterease/internal/service/ai"
	"meterease/internal/service/consumption"
	"meterease/internal/service/storage"
	"meterease/internal/service/vision"
)

// HealthHandler handles GET /.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, dto.StatusResponse{Status: "healthy"}, http.StatusOK)
	}
}

// PredictHandler handles POST /predict with a multipart upload of the current
// image and an optional previous image or previous reading.
func PredictHandler(cfg *config.Config, logger *logger.Logger, meter *service.MeterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes())
		if err := r.ParseMultipartForm(cfg.MaxUploadBytes()); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, fmt.Sprintf("Upload exceeds %d MB", cfg.MaxUploadMB), http.StatusRequestEntityTooLarge)
				return
			}
			respondError(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		current, err := readUpload(r, "current_image")
		if err != nil {
			respondError(w, "Failed to read current_image", http.StatusBadRequest)
			return
		}
		if current == nil {
			respondError(w, "current_image is required", http.StatusBadRequest)
			return
		}

		previous, err := readUpload(r, "previous_image")
		if err != nil {
			respondError(w, "Failed to read previous_image", http.StatusBadRequest)
			return
		}

		in := service.PredictInput{Current: current, Previous: previous}
		if v, ok := r.MultipartForm.Value["previous_meter_reading"]; ok && len(v) > 0 && v[0] != "" {
			in.PreviousValue = &v[0]
		}

		pred, err := meter.Predict(r.Context(), in)
		if err != nil {
			status := predictErrorStatus(err)
			if status == http.StatusInternalServerError {
				logger.Error("Prediction failed: %v", err)
				respondError(w, "Internal Server Error", status)
				return
			}
			logger.Warning("Prediction rejected: %v", err)
			respondError(w, err.Error(), status)
			return
		}

		respondJSON(w, toPredictResponse(pred), http.StatusOK)
	}
}

func predictErrorStatus(err error) int {
	switch {
	case errors.Is(err, vision.ErrInvalidImage), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrDetectionUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// readUpload returns the bytes of a form file, or nil when the field is
// absent or empty.
func readUpload(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func toPredictResponse(pred *service.Prediction) dto.PredictResponse {
	resp := dto.PredictResponse{
		ImageSetID: pred.ImageSetID,
		CapturedAt: pred.CapturedAt,
		Current:    toReadingPayload(pred.ImageSetID, pred.Current),
		Consumption: dto.ConsumptionPayload{
			Status:    pred.Consumption.Status.String(),
			Anomalous: pred.Consumption.Anomalous,
			Persisted: pred.Consumption.Persisted,
			Message:   pred.Consumption.Message,
		},
		ViewURL: "/view/" + pred.ImageSetID,
	}
	if pred.Previous != nil {
		p := toReadingPayload(pred.ImageSetID, *pred.Previous)
		resp.Previous = &p
	}
	if pred.Consumption.Status == consumption.Computed {
		d := pred.Consumption.Delta
		resp.Consumption.Value = &d
	}
	return resp
}

func toReadingPayload(imageSetID string, r service.ReadingResult) dto.ReadingPayload {
	p := dto.ReadingPayload{
		Reading: r.Value,
		Manual:  r.Manual,
		Labels:  r.Labels,
	}
	for _, d := range r.Detections {
		p.Detections = append(p.Detections, dto.DetectionPayload{
			Label:      d.Label,
			Confidence: d.Confidence,
			Left:       d.Left,
			Top:        d.Top,
			Right:      d.Right,
			Bottom:     d.Bottom,
		})
	}
	if !r.Manual {
		p.PreviewURL = imageURL(imageSetID, r.Kind, true)
		p.OriginalURL = imageURL(imageSetID, r.Kind, false)
		p.PreviewBase64 = base64.StdEncoding.EncodeToString(r.Preview)
	}
	return p
}

func imageURL(imageSetID string, kind model.ReadingKind, processed bool) string {
	return fmt.Sprintf("/image/%s/%s?processed=%t", imageSetID, kind, processed)
}

// ImageHandler handles GET /image/{id}/{kind}. The annotated image is served
// unless processed=false.
func ImageHandler(store *storage.ImageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		kind, err := model.ParseReadingKind(vars["kind"])
		if err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}

		processed := true
		if v := r.URL.Query().Get("processed"); v != "" {
			if processed, err = strconv.ParseBool(v); err != nil {
				respondError(w, "processed must be true or false", http.StatusBadRequest)
				return
			}
		}

		path, ok, err := store.Path(vars["id"], kind, processed)
		if err != nil || !ok {
			respondError(w, "Image not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, path)
	}
}

// ArtifactFileHandler serves stored artifacts by file name under /images/.
func ArtifactFileHandler(store *storage.ImageStore) http.Handler {
	files := http.StripPrefix("/images/", http.FileServer(http.Dir(store.Dir())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := mux.Vars(r)["file"]; name == "" {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
