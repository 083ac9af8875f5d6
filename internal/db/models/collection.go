package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Collection groups library features, either by tag or by explicit membership
type Collection struct {
	ID         uint           `json:"id" gorm:"primarykey"`
	OwnerID    uint           `json:"owner_id" gorm:"not null;index"`
	Name       string         `json:"name" gorm:"not null"`
	Tags       datatypes.JSON `json:"tags,omitempty"`
	FeatureIDs datatypes.JSON `json:"feature_ids,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewCollection builds a collection row, encoding tags and IDs as JSON
func NewCollection(ownerID uint, name string, tags []string, featureIDs []uint) (*Collection, error) {
	c := &Collection{OwnerID: ownerID, Name: name}
	if len(tags) > 0 {
		data, err := json.Marshal(tags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode collection tags: %w", err)
		}
		c.Tags = datatypes.JSON(data)
	}
	if len(featureIDs) > 0 {
		data, err := json.Marshal(featureIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode collection feature ids: %w", err)
		}
		c.FeatureIDs = datatypes.JSON(data)
	}
	return c, nil
}

// TagList decodes the collection tags
func (c *Collection) TagList() ([]string, error) {
	if len(c.Tags) == 0 {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal(c.Tags, &tags); err != nil {
		return nil, fmt.Errorf("failed to decode collection tags: %w", err)
	}
	return tags, nil
}

// IDList decodes the explicitly listed feature IDs
func (c *Collection) IDList() ([]uint, error) {
	if len(c.FeatureIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := json.Unmarshal(c.FeatureIDs, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode collection feature ids: %w", err)
	}
	return ids, nil
}
