package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBBoxQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   BBoxQuery
		wantErr bool
		errMsg  string
	}{
		{
			name:  "valid viewport",
			query: BBoxQuery{MinLon: -10, MinLat: -5, MaxLon: 10, MaxLat: 5, Zoom: 8},
		},
		{
			name:  "antimeridian viewport",
			query: BBoxQuery{MinLon: 170, MinLat: -10, MaxLon: -170, MaxLat: 10, Zoom: 4},
		},
		{
			name:    "longitude out of range",
			query:   BBoxQuery{MinLon: -200, MinLat: -10, MaxLon: -190, MaxLat: 10, Zoom: 3},
			wantErr: true,
			errMsg:  "min_lon",
		},
		{
			name:    "latitude out of range",
			query:   BBoxQuery{MinLon: 0, MinLat: -95, MaxLon: 10, MaxLat: 10},
			wantErr: true,
			errMsg:  "min_lat",
		},
		{
			name:    "inverted latitude",
			query:   BBoxQuery{MinLon: 0, MinLat: 20, MaxLon: 10, MaxLat: 10},
			wantErr: true,
			errMsg:  "greater than max_lat",
		},
		{
			name:    "zoom too deep",
			query:   BBoxQuery{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1, Zoom: 30},
			wantErr: true,
			errMsg:  "zoom",
		},
		{
			name:    "not a number",
			query:   BBoxQuery{MinLon: math.NaN(), MinLat: 0, MaxLon: 1, MaxLat: 1},
			wantErr: true,
			errMsg:  "finite",
		},
		{
			name:    "empty tag",
			query:   BBoxQuery{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1, Tags: []string{""}},
			wantErr: true,
		},
		{
			name:    "negative limit",
			query:   BBoxQuery{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1, Limit: -5},
			wantErr: true,
			errMsg:  "limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestBBoxQuery_Spans(t *testing.T) {
	normal := BBoxQuery{MinLon: -10, MinLat: -5, MaxLon: 30, MaxLat: 5}
	assert.False(t, normal.CrossesAntimeridian())
	assert.InDelta(t, 40, normal.LonSpan(), 1e-9)
	assert.InDelta(t, 10, normal.LatSpan(), 1e-9)

	wrapped := BBoxQuery{MinLon: 170, MinLat: -10, MaxLon: -170, MaxLat: 10}
	assert.True(t, wrapped.CrossesAntimeridian())
	assert.InDelta(t, 20, wrapped.LonSpan(), 1e-9)
}

func TestParseBBox(t *testing.T) {
	minLon, minLat, maxLon, maxLat, err := ParseBBox("-10.5, -5,30,5.25")
	require.NoError(t, err)
	assert.Equal(t, []float64{-10.5, -5, 30, 5.25}, []float64{minLon, minLat, maxLon, maxLat})

	_, _, _, _, err = ParseBBox("1,2,3")
	assert.True(t, IsValidationError(err))

	_, _, _, _, err = ParseBBox("a,2,3,4")
	assert.True(t, IsValidationError(err))
}
