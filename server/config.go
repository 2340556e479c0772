package server

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cyclopcam/dbh"
)

type Config struct {
	DB        dbh.DBConfig    `json:"db"`
	Storage   StorageConfig   `json:"storage"`
	Model     ModelConfig     `json:"model"`
	Diagnosis DiagnosisConfig `json:"diagnosis"`

	// Origins allowed to call the API from a browser. Empty disables CORS headers.
	AllowedOrigins []string `json:"allowedOrigins"`
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type StorageConfig struct {
	Filesystem *StorageConfigFS  `json:"filesystem"`
	GCS        *StorageConfigGCS `json:"gcs"`
}

type StorageConfigFS struct {
	Root string `json:"root"` // Directory holding uploads and derived artifacts
}

type StorageConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
}

type ModelConfig struct {
	Path       string `json:"path"`       // ONNX weights file
	ConfigPath string `json:"configPath"` // JSON side-car (classes, tensor names/shapes)
	RuntimeLib string `json:"runtimeLib"` // Optional explicit path to the onnxruntime shared library
	EagerLoad  bool   `json:"eagerLoad"`  // Load weights at startup instead of on first request
}

type DiagnosisConfig struct {
	MaxUploadMB         int64   `json:"maxUploadMB"`         // Upload size ceiling. Default 10
	ConfidenceThreshold float32 `json:"confidenceThreshold"` // Default 0.5
	HeatmapGrid         int     `json:"heatmapGrid"`         // Occlusion grid cells per axis. -1 disables occlusion, 0 means default (8)
}

func LoadConfig(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading config %v: %w", filename, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error parsing config file %v: %w", filename, err)
	}
	if cfg.Diagnosis.MaxUploadMB == 0 {
		cfg.Diagnosis.MaxUploadMB = 10
	}
	if cfg.Diagnosis.ConfidenceThreshold == 0 {
		cfg.Diagnosis.ConfidenceThreshold = 0.5
	}
	if cfg.Diagnosis.HeatmapGrid == 0 {
		cfg.Diagnosis.HeatmapGrid = 8
	} else if cfg.Diagnosis.HeatmapGrid < 0 {
		cfg.Diagnosis.HeatmapGrid = 0
	}
	if cfg.Model.Path == "" {
		return nil, fmt.Errorf("Config %v: model.path is required", filename)
	}
	if cfg.Model.ConfigPath == "" {
		return nil, fmt.Errorf("Config %v: model.configPath is required", filename)
	}
	return cfg, nil
}
