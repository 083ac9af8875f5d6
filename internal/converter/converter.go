// Package converter turns KML, KMZ and GPX files into GeoJSON features
package converter

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Converter converts supported files to a GeoJSON feature collection
type Converter struct{}

// New creates a converter
func New() *Converter {
	return &Converter{}
}

// Convert parses data according to the extension of filename. The returned
// log lists placemarks or points that were skipped.
func (c *Converter) Convert(ctx context.Context, data []byte, filename string) (*geojson.FeatureCollection, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	switch Extension(filename) {
	case ExtKML:
		return convertKML(ctx, data)
	case ExtKMZ:
		kml, err := extractKML(data)
		if err != nil {
			return nil, nil, err
		}
		return convertKML(ctx, kml)
	case ExtGPX:
		return convertGPX(ctx, data)
	default:
		return nil, nil, fmt.Errorf("unsupported file type %q", Extension(filename))
	}
}

// conversion accumulates features and skipped-item notes
type conversion struct {
	fc  *geojson.FeatureCollection
	log []string
}

func newConversion() *conversion {
	return &conversion{fc: geojson.NewFeatureCollection()}
}

func (c *conversion) add(geom orb.Geometry, props geojson.Properties) {
	f := geojson.NewFeature(geom)
	f.Properties = props
	c.fc.Append(f)
}

func (c *conversion) skip(format string, args ...interface{}) {
	c.log = append(c.log, fmt.Sprintf(format, args...))
}

// parseCoordinates reads a KML coordinate list: whitespace separated "lon,lat[,alt]" tuples
func parseCoordinates(text string) ([]orb.Point, error) {
	fields := strings.Fields(text)
	points := make([]orb.Point, 0, len(fields))
	for _, tuple := range fields {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid coordinate %q", tuple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q", tuple)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q", tuple)
		}
		p, err := checkPoint(lon, lat)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func checkPoint(lon, lat float64) (orb.Point, error) {
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return orb.Point{}, fmt.Errorf("coordinate %g,%g is out of range", lon, lat)
	}
	return orb.Point{lon, lat}, nil
}

// collect merges the geometries of one feature into a single geometry,
// using a Multi variant when all parts share a family
func collect(parts []orb.Geometry) orb.Geometry {
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}

	var (
		points   orb.MultiPoint
		lines    orb.MultiLineString
		polygons orb.MultiPolygon
	)
	for _, g := range parts {
		switch v := g.(type) {
		case orb.Point:
			points = append(points, v)
		case orb.LineString:
			lines = append(lines, v)
		case orb.Polygon:
			polygons = append(polygons, v)
		}
	}
	switch len(parts) {
	case len(points):
		return points
	case len(lines):
		return lines
	case len(polygons):
		return polygons
	}
	return orb.Collection(parts)
}
