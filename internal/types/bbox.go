package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Zoom bounds accepted by the bbox endpoint
const (
	MinZoom = 0
	MaxZoom = 24
)

// UnlimitedFeatures disables the result cap on bbox queries
const UnlimitedFeatures = -1

var validate = validator.New()

// BBoxQuery is a map viewport request. MinLon greater than MaxLon means the
// box wraps around the antimeridian.
type BBoxQuery struct {
	MinLon       float64  `json:"min_lon" validate:"gte=-180,lte=180"`
	MinLat       float64  `json:"min_lat" validate:"gte=-90,lte=90"`
	MaxLon       float64  `json:"max_lon" validate:"gte=-180,lte=180"`
	MaxLat       float64  `json:"max_lat" validate:"gte=-90,lte=90"`
	Zoom         int      `json:"zoom" validate:"gte=0,lte=24"`
	Tags         []string `json:"tags,omitempty" validate:"dive,required,max=64"`
	CollectionID uint     `json:"collection_id,omitempty"`
	// Limit caps the number of returned features. Zero selects the server
	// default, UnlimitedFeatures disables the cap.
	Limit int `json:"limit,omitempty" validate:"gte=-1"`
}

// Validate rejects malformed viewports before they reach the query engine
func (q BBoxQuery) Validate() error {
	for _, v := range []float64{q.MinLon, q.MinLat, q.MaxLon, q.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewValidationError("bbox", "coordinates must be finite numbers")
		}
	}
	if err := validate.Struct(q); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return NewValidationError(toSnake(fe.Field()), "failed %s=%s check (got %v)", fe.Tag(), fe.Param(), fe.Value())
		}
		return NewValidationError("bbox", err.Error())
	}
	if q.MinLat > q.MaxLat {
		return NewValidationError("bbox", "min_lat %v is greater than max_lat %v", q.MinLat, q.MaxLat)
	}
	return nil
}

// CrossesAntimeridian reports whether the box wraps around ±180°
func (q BBoxQuery) CrossesAntimeridian() bool {
	return q.MinLon > q.MaxLon
}

// LonSpan returns the longitude extent in degrees, accounting for wraparound
func (q BBoxQuery) LonSpan() float64 {
	if q.CrossesAntimeridian() {
		return 360 - q.MinLon + q.MaxLon
	}
	return q.MaxLon - q.MinLon
}

// LatSpan returns the latitude extent in degrees
func (q BBoxQuery) LatSpan() float64 {
	return q.MaxLat - q.MinLat
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat"
func ParseBBox(raw string) (minLon, minLat, maxLon, maxLat float64, err error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, NewValidationError("bbox", "expected minLon,minLat,maxLon,maxLat")
	}
	values := make([]float64, 4)
	for i, p := range parts {
		values[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, 0, NewValidationError("bbox", "invalid coordinate %q", p)
		}
	}
	return values[0], values[1], values[2], values[3], nil
}

// String renders the box the way ParseBBox reads it
func (q BBoxQuery) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", q.MinLon, q.MinLat, q.MaxLon, q.MaxLat)
}

func toSnake(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
