package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"meterease/internal/logger"
	"meterease/internal/metrics"
	"meterease/internal/model"
	"meterease/internal/repository"
	"meterease/internal/service/ai"
	"meterease/internal/service/consumption"
	"meterease/internal/service/reading"
	"meterease/internal/service/storage"
	"meterease/internal/service/vision"
)

// ErrInvalidInput marks predict requests rejected before any work is done.
var ErrInvalidInput = errors.New("invalid input")

// ArtifactStore persists the original and annotated image of a reading.
type ArtifactStore interface {
	Save(imageSetID string, kind model.ReadingKind, original, processed []byte) (storage.Artifacts, error)
	Remove(imageSetID string, kind model.ReadingKind) error
}

// Listener receives an event for every stored prediction.
type Listener interface {
	Publish(event model.ReadingEvent) error
}

// PredictInput carries one predict request. Previous and PreviousValue are
// mutually exclusive and both optional.
type PredictInput struct {
	Current       []byte
	Previous      []byte
	PreviousValue *string
}

// ReadingResult is a stored reading together with how it was produced.
type ReadingResult struct {
	ReadingID     int64
	Kind          model.ReadingKind
	Value         string
	Labels        []string
	Detections    []model.Detection
	OriginalPath  string
	ProcessedPath string
	Preview       []byte
	Manual        bool
}

// ConsumptionOutcome is the calculator result plus its persistence state.
type ConsumptionOutcome struct {
	consumption.Result
	RecordID  int64
	Persisted bool
	Message   string
}

// Prediction is the full outcome of one predict request.
type Prediction struct {
	ImageSetID  string
	CapturedAt  time.Time
	Current     ReadingResult
	Previous    *ReadingResult
	Consumption ConsumptionOutcome
}

// ImageSet is everything stored for one image set.
type ImageSet struct {
	ImageSetID  string
	Current     *model.Reading
	Previous    *model.Reading
	Consumption *model.ConsumptionRecord
}

// MeterService runs the detection to reading pipeline.
type MeterService struct {
	detector     ai.Detector
	annotator    *vision.Annotator
	store        ArtifactStore
	readings     repository.ReadingRepository
	consumptions repository.ConsumptionRepository
	listeners    []Listener
	metrics      *metrics.Metrics
	logger       *logger.Logger

	now   func() time.Time
	newID func() string
}

// NewMeterService wires the pipeline. m may be nil.
func NewMeterService(detector ai.Detector, store ArtifactStore, readings repository.ReadingRepository,
	consumptions repository.ConsumptionRepository, m *metrics.Metrics, logger *logger.Logger) *MeterService {
	return &MeterService{
		detector:     detector,
		annotator:    vision.NewAnnotator(),
		store:        store,
		readings:     readings,
		consumptions: consumptions,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// AddListener registers a listener notified after each stored prediction.
func (s *MeterService) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

type analysis struct {
	kind     model.ReadingKind
	original []byte
	assembly reading.Assembly
	preview  []byte
}

// Predict runs the pipeline for one request.
func (s *MeterService) Predict(ctx context.Context, in PredictInput) (*Prediction, error) {
	pred, err := s.predict(ctx, in)
	s.recordOutcome(err)
	return pred, err
}

func (s *MeterService) predict(ctx context.Context, in PredictInput) (*Prediction, error) {
	if len(in.Previous) > 0 && in.PreviousValue != nil {
		return nil, fmt.Errorf("%w: supply either a previous image or a previous reading, not both", ErrInvalidInput)
	}

	var manualPrevious *string
	if in.PreviousValue != nil {
		v := strings.TrimSpace(*in.PreviousValue)
		if consumption.ParseValue(v).Kind != consumption.Numeric {
			return nil, fmt.Errorf("%w: previous meter reading %q is not a number", ErrInvalidInput, *in.PreviousValue)
		}
		manualPrevious = &v
	}

	currentMat, err := vision.Decode(in.Current)
	if err != nil {
		return nil, fmt.Errorf("current image: %w", err)
	}
	defer currentMat.Close()

	var previousMat *gocv.Mat
	if len(in.Previous) > 0 {
		mat, err := vision.Decode(in.Previous)
		if err != nil {
			return nil, fmt.Errorf("previous image: %w", err)
		}
		defer mat.Close()
		previousMat = &mat
	}

	current, err := s.analyze(ctx, model.KindCurrent, in.Current, currentMat)
	if err != nil {
		return nil, err
	}
	var previous *analysis
	if previousMat != nil {
		previous, err = s.analyze(ctx, model.KindPrevious, in.Previous, *previousMat)
		if err != nil {
			return nil, err
		}
	}

	pred := &Prediction{ImageSetID: s.newID(), CapturedAt: s.now()}

	cur, err := s.persist(ctx, pred, current)
	if err != nil {
		s.discard(ctx, pred.ImageSetID)
		return nil, err
	}
	pred.Current = *cur

	switch {
	case previous != nil:
		pred.Previous, err = s.persist(ctx, pred, previous)
	case manualPrevious != nil:
		pred.Previous, err = s.persistManual(ctx, pred, *manualPrevious)
	}
	if err != nil {
		s.discard(ctx, pred.ImageSetID)
		return nil, err
	}

	pred.Consumption = s.consume(ctx, pred)
	s.notify(pred)

	s.logger.Info("Image set %s: current=%q consumption=%s", pred.ImageSetID, pred.Current.Value, pred.Consumption.Status)
	return pred, nil
}

// analyze runs detection, assembly and annotation. Nothing is written.
func (s *MeterService) analyze(ctx context.Context, kind model.ReadingKind, raw []byte, mat gocv.Mat) (*analysis, error) {
	start := time.Now()
	predictions, err := s.detector.Detect(ctx, raw)
	if s.metrics != nil {
		s.metrics.ObserveDetection(time.Since(start), err)
	}
	if err != nil {
		if !errors.Is(err, ai.ErrDetectionUnavailable) {
			err = fmt.Errorf("%w: %v", ai.ErrDetectionUnavailable, err)
		}
		return nil, fmt.Errorf("%s image: %w", kind, err)
	}

	assembly := reading.Assemble(predictions)

	annotated, err := s.annotator.Annotate(mat, assembly.Detections)
	if err != nil {
		return nil, fmt.Errorf("failed to annotate %s image: %w", kind, err)
	}
	defer annotated.Close()

	preview, err := vision.EncodeJPEG(annotated)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s preview: %w", kind, err)
	}

	if assembly.Empty() {
		s.logger.Warning("No digits detected in %s image", kind)
	}
	return &analysis{kind: kind, original: raw, assembly: assembly, preview: preview}, nil
}

func (s *MeterService) persist(ctx context.Context, pred *Prediction, a *analysis) (*ReadingResult, error) {
	arts, err := s.store.Save(pred.ImageSetID, a.kind, a.original, a.preview)
	if err != nil {
		return nil, err
	}

	r := &model.Reading{
		ImageSetID:    pred.ImageSetID,
		Value:         a.assembly.Value,
		Kind:          a.kind,
		CapturedAt:    pred.CapturedAt,
		OriginalPath:  arts.OriginalPath,
		ProcessedPath: arts.ProcessedPath,
	}
	id, err := s.readings.Insert(ctx, r)
	if err != nil {
		return nil, err
	}

	return &ReadingResult{
		ReadingID:     id,
		Kind:          a.kind,
		Value:         a.assembly.Value,
		Labels:        a.assembly.Labels,
		Detections:    a.assembly.Detections,
		OriginalPath:  arts.OriginalPath,
		ProcessedPath: arts.ProcessedPath,
		Preview:       a.preview,
	}, nil
}

// discard removes whatever a failed request stored for the image set.
func (s *MeterService) discard(ctx context.Context, imageSetID string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.readings.DeleteSet(ctx, imageSetID); err != nil {
		s.logger.Error("Failed to remove readings of %s: %v", imageSetID, err)
	}
	for _, kind := range []model.ReadingKind{model.KindCurrent, model.KindPrevious} {
		if err := s.store.Remove(imageSetID, kind); err != nil {
			s.logger.Error("Failed to remove %s images of %s: %v", kind, imageSetID, err)
		}
	}
}

func (s *MeterService) persistManual(ctx context.Context, pred *Prediction, value string) (*ReadingResult, error) {
	r := &model.Reading{
		ImageSetID: pred.ImageSetID,
		Value:      value,
		Kind:       model.KindPrevious,
		CapturedAt: pred.CapturedAt,
	}
	id, err := s.readings.Insert(ctx, r)
	if err != nil {
		return nil, err
	}
	return &ReadingResult{ReadingID: id, Kind: model.KindPrevious, Value: value, Manual: true}, nil
}

func (s *MeterService) consume(ctx context.Context, pred *Prediction) ConsumptionOutcome {
	previous := consumption.Missing()
	if pred.Previous != nil {
		previous = consumption.ParseValue(pred.Previous.Value)
	}

	out := ConsumptionOutcome{Result: consumption.Calculate(consumption.ParseValue(pred.Current.Value), previous)}
	out.Message = out.Result.Message()
	if s.metrics != nil {
		s.metrics.RecordConsumption(out.Status.String(), out.Anomalous)
	}
	if out.Status != consumption.Computed {
		return out
	}

	record := &model.ConsumptionRecord{
		CurrentReadingID:  pred.Current.ReadingID,
		PreviousReadingID: pred.Previous.ReadingID,
		Delta:             out.Delta,
		ComputedAt:        s.now(),
	}
	id, err := s.consumptions.Insert(ctx, record)
	if err != nil {
		s.logger.Error("Failed to store consumption for %s: %v", pred.ImageSetID, err)
		out.Message = strings.TrimSpace("Consumption computed but not saved. " + out.Message)
		return out
	}
	out.RecordID = id
	out.Persisted = true
	return out
}

func (s *MeterService) notify(pred *Prediction) {
	if len(s.listeners) == 0 {
		return
	}

	event := model.ReadingEvent{
		ImageSetID:        pred.ImageSetID,
		Current:           pred.Current.Value,
		ConsumptionStatus: pred.Consumption.Status.String(),
		Anomalous:         pred.Consumption.Anomalous,
		CapturedAt:        pred.CapturedAt,
	}
	if pred.Previous != nil {
		v := pred.Previous.Value
		event.Previous = &v
	}
	if pred.Consumption.Status == consumption.Computed {
		d := pred.Consumption.Delta
		event.Consumption = &d
	}

	for _, l := range s.listeners {
		if err := l.Publish(event); err != nil {
			s.logger.Warning("Listener failed for %s: %v", pred.ImageSetID, err)
		}
	}
}

func (s *MeterService) recordOutcome(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.RecordPrediction("success")
	case errors.Is(err, vision.ErrInvalidImage):
		s.metrics.RecordPrediction("invalid_image")
	case errors.Is(err, ai.ErrDetectionUnavailable):
		s.metrics.RecordPrediction("detection_unavailable")
	case errors.Is(err, ErrInvalidInput):
		s.metrics.RecordPrediction("validation")
	default:
		s.metrics.RecordPrediction("error")
	}
}

// ImageSet loads the stored readings and consumption of one set. Current is
// nil when the set is unknown.
func (s *MeterService) ImageSet(ctx context.Context, imageSetID string) (*ImageSet, error) {
	set := &ImageSet{ImageSetID: imageSetID}

	var err error
	if set.Current, err = s.readings.FindBySetAndKind(ctx, imageSetID, model.KindCurrent); err != nil {
		return nil, err
	}
	if set.Previous, err = s.readings.FindBySetAndKind(ctx, imageSetID, model.KindPrevious); err != nil {
		return nil, err
	}
	if set.Consumption, err = s.consumptions.FindBySet(ctx, imageSetID); err != nil {
		return nil, err
	}
	return set, nil
}

// History returns one page of image sets and the total count.
func (s *MeterService) History(ctx context.Context, page, limit int) ([]model.HistoryEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	total, err := s.readings.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	entries, err := s.readings.History(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
