package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"gorm.io/datatypes"

	"github.com/celestiaorg/geoimport/internal/types"
)

// Feature field names used in queries
const (
	FeatureIDField           = "id"
	FeatureOwnerIDField      = "owner_id"
	FeatureContentHashField  = "content_hash"
	FeatureGeometryTypeField = "geometry_type"
	FeatureGeometryHashField = "geometry_hash"
	FeatureSourceItemField   = "source_item_id"
)

// Feature is a committed geographic feature in a user's library
type Feature struct {
	ID           uint   `json:"id" gorm:"primarykey"`
	OwnerID      uint   `json:"owner_id" gorm:"not null;uniqueIndex:idx_features_owner_hash;index:idx_features_owner_geometry"`
	ContentHash  string `json:"content_hash" gorm:"size:64;not null;uniqueIndex:idx_features_owner_hash"`
	GeometryType string `json:"geometry_type" gorm:"size:32;not null;index:idx_features_owner_geometry"`
	// GeometryHash is the sha256 of Geometry, indexed for equality lookups
	GeometryHash string         `json:"-" gorm:"size:64;not null;index:idx_features_owner_geometry"`
	Geometry     string         `json:"-" gorm:"type:text;not null"`
	Name         string         `json:"name" gorm:"type:text"`
	Description  string         `json:"description,omitempty" gorm:"type:text"`
	Tags         datatypes.JSON `json:"tags,omitempty"`
	TagIndex     string         `json:"-" gorm:"type:text"`
	Properties   datatypes.JSON `json:"properties,omitempty"`
	MinLon       float64        `json:"-" gorm:"not null;index:idx_features_envelope"`
	MinLat       float64        `json:"-" gorm:"not null;index:idx_features_envelope"`
	MaxLon       float64        `json:"-" gorm:"not null;index:idx_features_envelope"`
	MaxLat       float64        `json:"-" gorm:"not null;index:idx_features_envelope"`
	SourceItemID *uint          `json:"source_item_id,omitempty" gorm:"index"`
	CreatedAt    time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewFeature builds the persisted form of a converted feature
func NewFeature(ownerID uint, f types.Feature, sourceItemID *uint) (*Feature, error) {
	if err := ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}
	key, err := types.GeometryKey(f.Geometry)
	if err != nil {
		return nil, err
	}
	hash, err := f.ContentHash()
	if err != nil {
		return nil, err
	}
	extra := make(map[string]interface{}, len(f.Extra)+1)
	for k, v := range f.Extra {
		extra[k] = v
	}
	if f.Properties.ID != "" {
		extra[types.PropertyID] = f.Properties.ID
	}
	props, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to encode properties: %w", err)
	}
	tags, err := json.Marshal(f.Properties.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	bound := f.Geometry.Bound()
	return &Feature{
		OwnerID:      ownerID,
		ContentHash:  hash,
		GeometryType: f.GeometryType(),
		GeometryHash: types.HashBytes([]byte(key)),
		Geometry:     key,
		Name:         f.Properties.Name,
		Description:  f.Properties.Description,
		Tags:         datatypes.JSON(tags),
		TagIndex:     tagIndex(f.Properties.Tags),
		Properties:   datatypes.JSON(props),
		MinLon:       bound.Min.Lon(),
		MinLat:       bound.Min.Lat(),
		MaxLon:       bound.Max.Lon(),
		MaxLat:       bound.Max.Lat(),
		SourceItemID: sourceItemID,
	}, nil
}

// ApplyGeometry overwrites geometry derived columns and the content hash from f.
// Used when a replacement upload swaps the geometry of an existing feature.
func (m *Feature) ApplyGeometry(f types.Feature) error {
	key, err := types.GeometryKey(f.Geometry)
	if err != nil {
		return err
	}
	bound := f.Geometry.Bound()
	m.GeometryType = f.GeometryType()
	m.Geometry = key
	m.GeometryHash = types.HashBytes([]byte(key))
	m.MinLon, m.MinLat = bound.Min.Lon(), bound.Min.Lat()
	m.MaxLon, m.MaxLat = bound.Max.Lon(), bound.Max.Lat()

	domain, err := m.ToDomain()
	if err != nil {
		return err
	}
	hash, err := domain.ContentHash()
	if err != nil {
		return err
	}
	m.ContentHash = hash
	return nil
}

// ToDomain decodes the stored row back into a feature
func (m *Feature) ToDomain() (types.Feature, error) {
	geom, err := types.ParseGeometryKey(m.Geometry)
	if err != nil {
		return types.Feature{}, err
	}
	f := types.Feature{
		Geometry: geom,
		Properties: types.FeatureProperties{
			Name:        m.Name,
			Description: m.Description,
		},
		Extra: map[string]interface{}{},
	}
	if len(m.Tags) > 0 {
		if err := json.Unmarshal(m.Tags, &f.Properties.Tags); err != nil {
			return types.Feature{}, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	if len(m.Properties) > 0 {
		if err := json.Unmarshal(m.Properties, &f.Extra); err != nil {
			return types.Feature{}, fmt.Errorf("failed to decode properties: %w", err)
		}
		if f.Extra == nil {
			f.Extra = map[string]interface{}{}
		}
		if id, ok := f.Extra[types.PropertyID]; ok {
			f.Properties.ID = fmt.Sprint(id)
			delete(f.Extra, types.PropertyID)
		}
	}
	return f, nil
}

// ToGeoJSON renders the row as a GeoJSON feature whose id is the row ID
func (m *Feature) ToGeoJSON() (*geojson.Feature, error) {
	f, err := m.ToDomain()
	if err != nil {
		return nil, err
	}
	gf := f.ToGeoJSON()
	gf.ID = m.ID
	return gf, nil
}

// Match returns the reference shown to users when a candidate duplicates this feature
func (m *Feature) Match() types.ExistingMatch {
	return types.ExistingMatch{
		ID:           m.ID,
		Name:         m.Name,
		GeometryType: m.GeometryType,
		CreatedAt:    m.CreatedAt,
	}
}
