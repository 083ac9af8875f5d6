package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"gorm.io/datatypes"

	"github.com/celestiaorg/geoimport/internal/types"
)

const (
	// ImportItemCreatedAtField is the database field name for the import item creation timestamp
	ImportItemCreatedAtField = "created_at"
	// ImportItemReplacementField is the database field name of the replacement target
	ImportItemReplacementField = "replacement_target_id"
)

// ImportItemStatus represents the processing state of an uploaded file
type ImportItemStatus int

// Import item status constants
const (
	// ImportItemStatusUnknown represents an unknown status, used to list items regardless of status
	ImportItemStatusUnknown ImportItemStatus = iota
	// ImportItemStatusPending indicates the placeholder was created and the upload job is queued
	ImportItemStatusPending
	// ImportItemStatusProcessing indicates the upload job is converting the file
	ImportItemStatusProcessing
	// ImportItemStatusReady indicates the converted features are ready to be committed
	ImportItemStatusReady
	// ImportItemStatusFailed indicates the upload job failed
	ImportItemStatusFailed
)

var importItemStatusNames = []string{
	"unknown",
	"pending",
	"processing",
	"ready",
	"failed",
}

// ImportItem is an uploaded file waiting in the user's staging area
type ImportItem struct {
	ID             uint             `json:"id" gorm:"primarykey"`
	OwnerID        uint             `json:"owner_id" gorm:"not null;index"`
	Filename       string           `json:"filename" gorm:"not null"`
	SourceHash     string           `json:"source_hash" gorm:"size:64;index"`
	SourceSize     int64            `json:"source_size"`
	JobID          string           `json:"job_id" gorm:"size:64;index"`
	Status         ImportItemStatus `json:"status" gorm:"index"`
	Error          string           `json:"error,omitempty" gorm:"type:text"`
	Features       datatypes.JSON   `json:"features,omitempty"`
	Duplicates     datatypes.JSON   `json:"duplicates,omitempty"`
	FeatureCount   int              `json:"feature_count"`
	DuplicateCount int              `json:"duplicate_count"`
	ConversionLog  datatypes.JSON   `json:"conversion_log,omitempty"`
	// ReplacementTargetID is set when the upload replaces the geometry of an existing feature
	ReplacementTargetID *uint      `json:"replacement_target_id,omitempty" gorm:"index"`
	Imported            bool       `json:"imported" gorm:"not null;default:false;index"`
	ImportedAt          *time.Time `json:"imported_at,omitempty"`
	ImportedCount       int        `json:"imported_count"`
	CreatedAt           time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsReplacement reports whether the item replaces an existing feature's geometry
func (i *ImportItem) IsReplacement() bool {
	return i.ReplacementTargetID != nil && *i.ReplacementTargetID != 0
}

// FeatureCollection decodes the staged features. An item without features yields an empty collection.
func (i *ImportItem) FeatureCollection() (*geojson.FeatureCollection, error) {
	if len(i.Features) == 0 {
		return geojson.NewFeatureCollection(), nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(i.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to decode staged features: %w", err)
	}
	return fc, nil
}

// DomainFeatures decodes the staged features into domain features
func (i *ImportItem) DomainFeatures() ([]types.Feature, error) {
	fc, err := i.FeatureCollection()
	if err != nil {
		return nil, err
	}
	out := make([]types.Feature, 0, len(fc.Features))
	for idx, gf := range fc.Features {
		f, err := types.FeatureFromGeoJSON(gf)
		if err != nil {
			return nil, fmt.Errorf("staged feature %d: %w", idx, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// DuplicateRecords decodes the duplicate annotations
func (i *ImportItem) DuplicateRecords() ([]types.DuplicateRecord, error) {
	if len(i.Duplicates) == 0 {
		return nil, nil
	}
	var records []types.DuplicateRecord
	if err := json.Unmarshal(i.Duplicates, &records); err != nil {
		return nil, fmt.Errorf("failed to decode duplicates: %w", err)
	}
	return records, nil
}

// EncodeFeatures renders features as FeatureCollection text for the Features column
func EncodeFeatures(features []types.Feature) (datatypes.JSON, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f.ToGeoJSON())
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}
	return datatypes.JSON(data), nil
}

// EncodeDuplicates renders duplicate records for the Duplicates column
func EncodeDuplicates(records []types.DuplicateRecord) (datatypes.JSON, error) {
	if records == nil {
		records = []types.DuplicateRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode duplicates: %w", err)
	}
	return datatypes.JSON(data), nil
}

// ParseImportItemStatus converts a string representation of an item status to ImportItemStatus
func ParseImportItemStatus(str string) (ImportItemStatus, error) {
	for i, status := range importItemStatusNames {
		if status == str {
			return ImportItemStatus(i), nil
		}
	}
	return ImportItemStatusUnknown, fmt.Errorf("invalid import item status: %s", str)
}

func (s ImportItemStatus) String() string {
	if s < 0 || int(s) >= len(importItemStatusNames) {
		return importItemStatusNames[ImportItemStatusUnknown]
	}
	return importItemStatusNames[s]
}

// MarshalJSON implements the json.Marshaler interface for ImportItemStatus
func (s ImportItemStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for ImportItemStatus
func (s *ImportItemStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseImportItemStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}
