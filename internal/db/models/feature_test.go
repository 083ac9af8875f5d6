package models

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/geoimport/internal/types"
)

func TestNewFeature(t *testing.T) {
	src := types.Feature{
		Geometry: orb.LineString{{170, -10}, {175, 5}, {172, 12}},
		Properties: types.FeatureProperties{
			ID:   "trk-1",
			Name: "Ridge",
			Tags: []string{"Hike", "ridge"},
		},
		Extra: map[string]interface{}{"stroke": "#ff0000"},
	}
	itemID := uint(3)

	m, err := NewFeature(7, src, &itemID)
	require.NoError(t, err)
	assert.Equal(t, uint(7), m.OwnerID)
	assert.Equal(t, "LineString", m.GeometryType)
	assert.Equal(t, ",hike,ridge,", m.TagIndex)
	assert.Equal(t, []float64{170, -10, 175, 12}, []float64{m.MinLon, m.MinLat, m.MaxLon, m.MaxLat})
	assert.Equal(t, types.HashBytes([]byte(m.Geometry)), m.GeometryHash)

	hash, err := src.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, hash, m.ContentHash)

	back, err := m.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, "trk-1", back.Properties.ID)
	assert.Equal(t, []string{"Hike", "ridge"}, back.Properties.Tags)
	assert.Equal(t, map[string]interface{}{"stroke": "#ff0000"}, back.Extra)
	assert.True(t, orb.Equal(src.Geometry, back.Geometry))

	again, err := back.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, hash, again, "hash must survive a storage round trip")

	_, err = NewFeature(0, src, nil)
	assert.Error(t, err)
}

func TestFeature_ApplyGeometry(t *testing.T) {
	m, err := NewFeature(1, types.Feature{Geometry: orb.Point{1, 1}, Properties: types.FeatureProperties{Name: "Pin"}}, nil)
	require.NoError(t, err)
	oldHash := m.ContentHash

	require.NoError(t, m.ApplyGeometry(types.Feature{Geometry: orb.Polygon{{{0, 0}, {2, 0}, {2, 3}, {0, 0}}}}))
	assert.Equal(t, "Polygon", m.GeometryType)
	assert.Equal(t, "Pin", m.Name)
	assert.NotEqual(t, oldHash, m.ContentHash)
	assert.Equal(t, []float64{0, 0, 2, 3}, []float64{m.MinLon, m.MinLat, m.MaxLon, m.MaxLat})

	expected, err := types.Feature{
		Geometry:   orb.Polygon{{{0, 0}, {2, 0}, {2, 3}, {0, 0}}},
		Properties: types.FeatureProperties{Name: "Pin"},
	}.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, expected, m.ContentHash)
}

func TestFeature_ToGeoJSON(t *testing.T) {
	m, err := NewFeature(1, types.Feature{Geometry: orb.Point{5, 6}, Properties: types.FeatureProperties{Name: "Camp"}}, nil)
	require.NoError(t, err)
	m.ID = 42

	gf, err := m.ToGeoJSON()
	require.NoError(t, err)
	assert.Equal(t, uint(42), gf.ID)
	assert.Equal(t, "Camp", gf.Properties["name"])

	match := m.Match()
	assert.Equal(t, uint(42), match.ID)
	assert.Equal(t, "Point", match.GeometryType)
}

func TestTagPattern(t *testing.T) {
	assert.Equal(t, "%,hike,%", TagPattern(" Hike "))
	assert.Equal(t, `%,100\%,%`, TagPattern("100%"))
	assert.Equal(t, "", tagIndex(nil))
	assert.Equal(t, "", tagIndex([]string{" ", ""}))
}

func TestImportItem_Features(t *testing.T) {
	features := []types.Feature{
		{Geometry: orb.Point{1, 2}, Properties: types.FeatureProperties{Name: "A"}, Extra: map[string]interface{}{}},
		{Geometry: orb.LineString{{0, 0}, {1, 1}}, Properties: types.FeatureProperties{Name: "B"}, Extra: map[string]interface{}{}},
	}
	data, err := EncodeFeatures(features)
	require.NoError(t, err)

	item := &ImportItem{Features: data}
	decoded, err := item.DomainFeatures()
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "A", decoded[0].Properties.Name)
	assert.Equal(t, "LineString", decoded[1].GeometryType())

	empty := &ImportItem{}
	fc, err := empty.FeatureCollection()
	require.NoError(t, err)
	assert.Empty(t, fc.Features)

	dups, err := EncodeDuplicates(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(dups))
}

func TestImportItemStatus(t *testing.T) {
	for i, name := range importItemStatusNames {
		status := ImportItemStatus(i)
		assert.Equal(t, name, status.String())

		data, err := json.Marshal(status)
		require.NoError(t, err)
		var decoded ImportItemStatus
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, status, decoded)
	}

	_, err := ParseImportItemStatus("bogus")
	assert.Error(t, err)

	target := uint(5)
	assert.True(t, (&ImportItem{ReplacementTargetID: &target}).IsReplacement())
	assert.False(t, (&ImportItem{}).IsReplacement())
}
