// Package storage keeps the original and annotated image artifacts of each
// image set on disk.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"meterease/internal/config"
	"meterease/internal/logger"
	"meterease/internal/model"
)

// ErrBadImageSet is returned for ids that are not image-set UUIDs.
var ErrBadImageSet = errors.New("invalid image set id")

// ImageStore writes {set}_{kind}.jpg and {set}_{kind}_result.jpg files.
type ImageStore struct {
	dir    string
	logger *logger.Logger
}

// Artifacts are the paths written for one reading.
type Artifacts struct {
	OriginalPath  string
	ProcessedPath string
}

// NewImageStore creates a store rooted at the configured image directory.
func NewImageStore(cfg *config.Config, logger *logger.Logger) (*ImageStore, error) {
	if err := os.MkdirAll(cfg.ImageDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &ImageStore{dir: cfg.ImageDirectory, logger: logger}, nil
}

// Dir is the directory served under /images/.
func (s *ImageStore) Dir() string {
	return s.dir
}

// FileName returns the artifact file name for a set, kind and variant.
func FileName(imageSetID string, kind model.ReadingKind, processed bool) string {
	if processed {
		return fmt.Sprintf("%s_%s_result.jpg", imageSetID, kind)
	}
	return fmt.Sprintf("%s_%s.jpg", imageSetID, kind)
}

// Save writes both artifacts of a reading.
func (s *ImageStore) Save(imageSetID string, kind model.ReadingKind, original, processed []byte) (Artifacts, error) {
	if err := validate(imageSetID, kind); err != nil {
		return Artifacts{}, err
	}

	arts := Artifacts{
		OriginalPath:  filepath.Join(s.dir, FileName(imageSetID, kind, false)),
		ProcessedPath: filepath.Join(s.dir, FileName(imageSetID, kind, true)),
	}
	if err := os.WriteFile(arts.OriginalPath, original, 0644); err != nil {
		return Artifacts{}, fmt.Errorf("failed to save original image: %w", err)
	}
	if err := os.WriteFile(arts.ProcessedPath, processed, 0644); err != nil {
		return Artifacts{}, fmt.Errorf("failed to save processed image: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Saved %s images for set %s", kind, imageSetID)
	}
	return arts, nil
}

// Remove deletes both artifacts of a reading. Missing files are ignored.
func (s *ImageStore) Remove(imageSetID string, kind model.ReadingKind) error {
	if err := validate(imageSetID, kind); err != nil {
		return err
	}
	for _, processed := range []bool{false, true} {
		err := os.Remove(filepath.Join(s.dir, FileName(imageSetID, kind, processed)))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove image: %w", err)
		}
	}
	return nil
}

// Path returns the artifact path if it exists on disk.
func (s *ImageStore) Path(imageSetID string, kind model.ReadingKind, processed bool) (string, bool, error) {
	if err := validate(imageSetID, kind); err != nil {
		return "", false, err
	}

	path := filepath.Join(s.dir, FileName(imageSetID, kind, processed))
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return path, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to stat image: %w", err)
	}
	return path, !info.IsDir(), nil
}

// Exists reports whether both artifacts of a reading are present.
func (s *ImageStore) Exists(imageSetID string, kind model.ReadingKind) bool {
	_, okOriginal, err := s.Path(imageSetID, kind, false)
	if err != nil {
		return false
	}
	_, okProcessed, err := s.Path(imageSetID, kind, true)
	return err == nil && okOriginal && okProcessed
}

// validate keeps path components to a parsed UUID and a known kind.
func validate(imageSetID string, kind model.ReadingKind) error {
	if _, err := uuid.Parse(imageSetID); err != nil {
		return fmt.Errorf("%w: %q", ErrBadImageSet, imageSetID)
	}
	if _, err := model.ParseReadingKind(string(kind)); err != nil {
		return err
	}
	return nil
}
