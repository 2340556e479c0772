// Package diagnosis is the request orchestration layer: it takes uploaded
// image bytes through preprocess -> classify -> heatmap, persists the
// artifacts and a DB record, and assembles the response payload.
// One synchronous chain per request; no retries, no queuing.
package diagnosis

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"regexp"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/dentavision/dentavision/pkg/classify"
	"github.com/dentavision/dentavision/pkg/heatmap"
	"github.com/dentavision/dentavision/pkg/xray"
	"github.com/dentavision/dentavision/server/model"
	"github.com/dentavision/dentavision/server/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LabelHealthy is the one class that never triggers a hot heatmap overlay.
const LabelHealthy = "healthy"

// Classifier is the model interface the pipeline needs. *classify.Model
// implements it; tests substitute a stub.
type Classifier interface {
	Load() error
	Loaded() bool
	Classes() []string
	Predict(t *xray.Tensor) (*classify.Result, error)
	Close()
}

// Options tune the pipeline. Zero values fall back to sane defaults.
type Options struct {
	Limits              xray.Limits
	ConfidenceThreshold float32 // Minimum confidence before a problem class gets a hot overlay
	HeatmapGrid         int     // Occlusion grid cells per axis. 0 disables occlusion (radial fallback)
}

func DefaultOptions() Options {
	return Options{
		Limits:              xray.DefaultLimits(),
		ConfidenceThreshold: 0.5,
		HeatmapGrid:         8,
	}
}

// Result is the response payload of a successful diagnosis.
type Result struct {
	Success          bool               `json:"success"`
	Prediction       string             `json:"prediction"`
	Confidence       float32            `json:"confidence"`
	ConfidenceScores map[string]float32 `json:"confidence_scores"`
	ImageID          string             `json:"image_id"`
	Message          string             `json:"message,omitempty"`
	HeatmapURL       string             `json:"heatmap_url,omitempty"`
}

// Service runs the diagnosis pipeline. The classifier is shared, read-only
// state; everything else is per-request.
type Service struct {
	log   logs.Log
	db    *gorm.DB
	store storage.Storage
	model Classifier
	opts  Options
}

func NewService(log logs.Log, dbCfg dbh.DBConfig, store storage.Storage, classifier Classifier, opts Options) (*Service, error) {
	if opts.Limits.MaxBytes == 0 {
		opts.Limits = xray.DefaultLimits()
	}
	if opts.ConfidenceThreshold == 0 {
		opts.ConfidenceThreshold = 0.5
	}
	db, err := openDB(log, dbCfg)
	if err != nil {
		return nil, err
	}
	return &Service{
		log:   log,
		db:    db,
		store: store,
		model: classifier,
		opts:  opts,
	}, nil
}

// ModelLoaded reports whether the classifier weights are resident.
func (s *Service) ModelLoaded() bool {
	return s.model.Loaded()
}

// Diagnose runs the whole pipeline on one uploaded file.
// On a validation or decode failure, no artifacts are written.
func (s *Service) Diagnose(raw []byte, filename string) (*Result, error) {
	img, format, err := xray.Decode(raw, s.opts.Limits)
	if err != nil {
		return nil, err
	}
	tensor := xray.BuildTensor(img)

	res, err := s.model.Predict(tensor)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	originalName := id + xray.Ext(format)
	heatmapName := id + "_heatmap.png"
	enhancedName := id + "_enhanced.png"

	// If anything fails after the first write, delete whatever we've stored so
	// far. Otherwise a failed request leaves artifacts that no DB record
	// references, but that /api/image will happily serve.
	written := []string{}

	if err := storage.WriteFile(s.store, originalName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("Failed to store upload: %w", err)
	}
	written = append(written, originalName)

	overlay, err := s.renderHeatmap(img, tensor, res)
	if err != nil {
		s.deleteArtifacts(written)
		return nil, err
	}
	if err := s.storePNG(heatmapName, overlay); err != nil {
		s.deleteArtifacts(written)
		return nil, err
	}
	written = append(written, heatmapName)
	if err := s.storePNG(enhancedName, xray.Enhance(img)); err != nil {
		s.deleteArtifacts(written)
		return nil, err
	}
	written = append(written, enhancedName)

	record := model.Diagnosis{
		ImageID:    id,
		Filename:   filename,
		Label:      res.Label,
		Confidence: res.Confidence,
		Scores:     dbh.MakeJSONField(res.Scores),
		CreatedAt:  dbh.Milli(time.Now().UTC()),
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.deleteArtifacts(written)
		return nil, fmt.Errorf("Failed to record diagnosis: %w", err)
	}
	s.log.Infof("Diagnosis %v: %v (%.2f)", id, res.Label, res.Confidence)

	return &Result{
		Success:          true,
		Prediction:       res.Label,
		Confidence:       res.Confidence,
		ConfidenceScores: res.Scores,
		ImageID:          id,
		Message:          diagnosisMessage(res.Label, res.Confidence),
		HeatmapURL:       "/api/image/" + heatmapName,
	}, nil
}

// renderHeatmap produces the overlay image for a result. A healthy or
// low-confidence prediction gets a zero-strength overlay, ie a plain copy of
// the radiograph.
func (s *Service) renderHeatmap(img image.Image, tensor *xray.Tensor, res *classify.Result) (image.Image, error) {
	hot := res.Label != LabelHealthy && res.Confidence > s.opts.ConfidenceThreshold
	if !hot {
		return heatmap.Render(img, heatmap.NewGrid(1, 1), 0), nil
	}
	var grid *heatmap.Grid
	if s.opts.HeatmapGrid > 0 {
		var err error
		grid, err = heatmap.Occlusion(tensor, s.opts.HeatmapGrid, s.opts.HeatmapGrid, res.Confidence, func(t *xray.Tensor) (float32, error) {
			r, err := s.model.Predict(t)
			if err != nil {
				return 0, err
			}
			return r.Score(res.Label), nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		grid = heatmap.Radial(res.Confidence, 9, 9)
	}
	// Same opacity scaling as the demo this replaces: stronger overlay for a
	// more confident prediction, capped at 40%.
	return heatmap.Render(img, grid, float64(res.Confidence)*0.4), nil
}

// deleteArtifacts is best-effort cleanup after a mid-pipeline failure.
func (s *Service) deleteArtifacts(names []string) {
	for _, name := range names {
		if err := s.store.DeleteFile(name); err != nil {
			s.log.Warnf("Failed to delete orphaned artifact %v: %v", name, err)
		}
	}
}

func (s *Service) storePNG(name string, img image.Image) error {
	buf := bytes.Buffer{}
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("Failed to encode %v: %w", name, err)
	}
	if err := storage.WriteFile(s.store, name, &buf); err != nil {
		return fmt.Errorf("Failed to store %v: %w", name, err)
	}
	return nil
}

// Recent returns the newest diagnosis records.
func (s *Service) Recent(limit int) ([]model.Diagnosis, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	records := []model.Diagnosis{}
	if err := s.db.Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

var artifactNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// OpenArtifact opens a stored artifact (original upload, heatmap, or enhanced
// rendition) by name. Returns an error satisfying storage.IsNotExist if the
// name is absent.
func (s *Service) OpenArtifact(name string) (*storage.File, error) {
	if !artifactNameRegex.MatchString(name) {
		return nil, fmt.Errorf("Invalid artifact name")
	}
	return s.store.ReadFile(name)
}

// Close releases the classifier. The gorm DB pool closes with the process.
func (s *Service) Close() {
	s.model.Close()
}
