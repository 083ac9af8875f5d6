package ports

import (
	"context"

	"github.com/paulmach/orb/geojson"
)

// FileValidator rejects files that cannot be converted before any work is spent on them
type FileValidator interface {
	Validate(data []byte, filename string) error
}

// FileConverter turns a KML, KMZ or GPX file into GeoJSON features.
// The returned log lists non-fatal problems found while converting.
type FileConverter interface {
	Convert(ctx context.Context, data []byte, filename string) (*geojson.FeatureCollection, []string, error)
}
