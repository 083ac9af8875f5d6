package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Core property keys recognised on incoming features. Anything else lands in Feature.Extra.
const (
	PropertyID          = "id"
	PropertyName        = "name"
	PropertyDescription = "description"
	PropertyTags        = "tags"
)

// FeatureProperties is the strongly typed core of a feature's property bag
type FeatureProperties struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Feature is a converted geographic feature. Geometry is one of the orb
// geometry kinds accepted by SupportedGeometry.
type Feature struct {
	Geometry   orb.Geometry
	Properties FeatureProperties
	Extra      map[string]interface{}
}

// SupportedGeometry reports whether g is a geometry kind the library stores.
// Collections are supported when every member is.
func SupportedGeometry(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Point, orb.MultiPoint, orb.LineString, orb.MultiLineString,
		orb.Polygon, orb.MultiPolygon:
		return true
	case orb.Collection:
		if len(v) == 0 {
			return false
		}
		for _, sub := range v {
			if !SupportedGeometry(sub) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FeatureFromGeoJSON splits a GeoJSON feature into geometry, core properties and extras
func FeatureFromGeoJSON(f *geojson.Feature) (Feature, error) {
	if f == nil || f.Geometry == nil {
		return Feature{}, fmt.Errorf("feature has no geometry")
	}
	if !SupportedGeometry(f.Geometry) {
		return Feature{}, fmt.Errorf("unsupported geometry type %q", f.Geometry.GeoJSONType())
	}

	out := Feature{Geometry: f.Geometry, Extra: map[string]interface{}{}}
	if f.ID != nil {
		out.Properties.ID = fmt.Sprint(f.ID)
	}
	for k, v := range f.Properties {
		switch k {
		case PropertyID:
			if v != nil {
				out.Properties.ID = fmt.Sprint(v)
			}
		case PropertyName:
			out.Properties.Name = stringValue(v)
		case PropertyDescription:
			out.Properties.Description = stringValue(v)
		case PropertyTags:
			out.Properties.Tags = tagsValue(v)
		default:
			out.Extra[k] = v
		}
	}
	return out, nil
}

// ToGeoJSON rebuilds the GeoJSON representation of the feature
func (f Feature) ToGeoJSON() *geojson.Feature {
	gf := geojson.NewFeature(f.Geometry)
	gf.Properties = f.PropertyMap()
	return gf
}

// PropertyMap merges the core properties and extras into a single bag
func (f Feature) PropertyMap() map[string]interface{} {
	props := make(map[string]interface{}, len(f.Extra)+4)
	for k, v := range f.Extra {
		props[k] = v
	}
	if f.Properties.ID != "" {
		props[PropertyID] = f.Properties.ID
	}
	if f.Properties.Name != "" {
		props[PropertyName] = f.Properties.Name
	}
	if f.Properties.Description != "" {
		props[PropertyDescription] = f.Properties.Description
	}
	if len(f.Properties.Tags) > 0 {
		tags := make([]interface{}, len(f.Properties.Tags))
		for i, t := range f.Properties.Tags {
			tags[i] = t
		}
		props[PropertyTags] = tags
	}
	return props
}

// GeometryType returns the GeoJSON family name of the geometry
func (f Feature) GeometryType() string {
	if f.Geometry == nil {
		return ""
	}
	return f.Geometry.GeoJSONType()
}

// ContentHash derives the stable identity of the feature from its geometry and
// properties. Properties are encoded with sorted keys so their order in the
// source file does not matter.
func (f Feature) ContentHash() (string, error) {
	key, err := GeometryKey(f.Geometry)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":       f.GeometryType(),
		"geometry":   json.RawMessage(key),
		"properties": f.PropertyMap(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode feature for hashing: %w", err)
	}
	return HashBytes(payload), nil
}

// GeometryKey is the canonical GeoJSON text of a geometry. Two geometries are
// duplicates exactly when their keys are equal.
func GeometryKey(g orb.Geometry) (string, error) {
	if g == nil {
		return "", fmt.Errorf("nil geometry")
	}
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return "", fmt.Errorf("failed to encode geometry: %w", err)
	}
	return string(data), nil
}

// ParseGeometryKey decodes a geometry stored with GeometryKey
func ParseGeometryKey(key string) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	return g.Geometry(), nil
}

// HashBytes returns the hex encoded sha256 of data
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func tagsValue(v interface{}) []string {
	var tags []string
	switch t := v.(type) {
	case string:
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				tags = append(tags, p)
			}
		}
	case []string:
		for _, p := range t {
			if p = strings.TrimSpace(p); p != "" {
				tags = append(tags, p)
			}
		}
	case []interface{}:
		for _, item := range t {
			if p := strings.TrimSpace(stringValue(item)); p != "" {
				tags = append(tags, p)
			}
		}
	}
	return tags
}

// ExistingMatch references a committed feature that a candidate duplicates
type ExistingMatch struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	GeometryType string    `json:"geometry_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// DuplicateRecord pairs a candidate feature with the library features it matches.
// Index is the candidate's position in the import item's feature list.
type DuplicateRecord struct {
	Index       int             `json:"index"`
	ContentHash string          `json:"content_hash"`
	Name        string          `json:"name,omitempty"`
	Matches     []ExistingMatch `json:"matches"`
}
