package model

import (
	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Diagnosis is one completed analysis of an uploaded X-ray.
type Diagnosis struct {
	BaseModel
	ImageID    string                             `json:"imageID"`    // Opaque identifier; artifact names are derived from this
	Filename   string                             `json:"filename"`   // Original filename as uploaded, for display only
	Label      string                             `json:"label"`      // Predicted class
	Confidence float32                            `json:"confidence"` // Probability of the predicted class
	Scores     *dbh.JSONField[map[string]float32] `json:"scores"`     // All class probabilities
	CreatedAt  dbh.MilliTime                      `json:"createdAt"`
}
