package converter

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type kmlContainer struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
	Folders    []kmlContainer `xml:"Folder"`
	Documents  []kmlContainer `xml:"Document"`
}

type kmlRoot struct {
	XMLName xml.Name `xml:"kml"`
	kmlContainer
}

type kmlGeometries struct {
	Points          []kmlCoordinates `xml:"Point"`
	LineStrings     []kmlCoordinates `xml:"LineString"`
	LinearRings     []kmlCoordinates `xml:"LinearRing"`
	Polygons        []kmlPolygon     `xml:"Polygon"`
	MultiGeometries []kmlGeometries  `xml:"MultiGeometry"`
}

type kmlPlacemark struct {
	ID           string          `xml:"id,attr"`
	Name         string          `xml:"name"`
	Description  string          `xml:"description"`
	StyleURL     string          `xml:"styleUrl"`
	ExtendedData kmlExtendedData `xml:"ExtendedData"`
	kmlGeometries
}

type kmlCoordinates struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlCoordinates   `xml:"outerBoundaryIs>LinearRing"`
	Inner []kmlCoordinates `xml:"innerBoundaryIs>LinearRing"`
}

type kmlExtendedData struct {
	Data       []kmlData `xml:"Data"`
	SchemaData []struct {
		SimpleData []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:",chardata"`
		} `xml:"SimpleData"`
	} `xml:"SchemaData"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

func convertKML(ctx context.Context, data []byte) (*geojson.FeatureCollection, []string, error) {
	var root kmlRoot
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	if err := dec.Decode(&root); err != nil {
		return nil, nil, fmt.Errorf("invalid KML: %w", err)
	}

	out := newConversion()
	if err := out.walkContainer(ctx, root.kmlContainer, nil); err != nil {
		return nil, nil, err
	}
	return out.fc, out.log, nil
}

func (c *conversion) walkContainer(ctx context.Context, container kmlContainer, path []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name := strings.TrimSpace(container.Name); name != "" {
		path = append(path[:len(path):len(path)], name)
	}

	for i, pm := range container.Placemarks {
		c.addPlacemark(pm, i, path)
	}
	for _, folder := range container.Folders {
		if err := c.walkContainer(ctx, folder, path); err != nil {
			return err
		}
	}
	for _, doc := range container.Documents {
		if err := c.walkContainer(ctx, doc, path); err != nil {
			return err
		}
	}
	return nil
}

func (c *conversion) addPlacemark(pm kmlPlacemark, index int, path []string) {
	label := strings.TrimSpace(pm.Name)
	if label == "" {
		label = fmt.Sprintf("placemark #%d", index+1)
	}

	parts, err := pm.kmlGeometries.geometries()
	if err != nil {
		c.skip("%s: %v", label, err)
		return
	}
	geom := collect(parts)
	if geom == nil {
		c.skip("%s: no geometry", label)
		return
	}

	props := geojson.Properties{}
	for _, d := range pm.ExtendedData.Data {
		props[d.Name] = strings.TrimSpace(d.Value)
	}
	for _, schema := range pm.ExtendedData.SchemaData {
		for _, d := range schema.SimpleData {
			props[d.Name] = strings.TrimSpace(d.Value)
		}
	}
	if pm.ID != "" {
		props["id"] = pm.ID
	}
	if name := strings.TrimSpace(pm.Name); name != "" {
		props["name"] = name
	}
	if desc := strings.TrimSpace(pm.Description); desc != "" {
		props["description"] = desc
	}
	if pm.StyleURL != "" {
		props["style_url"] = strings.TrimSpace(pm.StyleURL)
	}
	if len(path) > 0 {
		props["folder"] = strings.Join(path, "/")
	}
	c.add(geom, props)
}

func (g kmlGeometries) geometries() ([]orb.Geometry, error) {
	var parts []orb.Geometry
	for _, p := range g.Points {
		points, err := parseCoordinates(p.Coordinates)
		if err != nil {
			return nil, err
		}
		if len(points) != 1 {
			return nil, fmt.Errorf("point has %d coordinates", len(points))
		}
		parts = append(parts, points[0])
	}
	for _, l := range g.LineStrings {
		points, err := parseCoordinates(l.Coordinates)
		if err != nil {
			return nil, err
		}
		if len(points) < 2 {
			return nil, fmt.Errorf("line has fewer than 2 coordinates")
		}
		parts = append(parts, orb.LineString(points))
	}
	for _, r := range g.LinearRings {
		ring, err := parseRing(r.Coordinates)
		if err != nil {
			return nil, err
		}
		parts = append(parts, orb.Polygon{ring})
	}
	for _, p := range g.Polygons {
		outer, err := parseRing(p.Outer.Coordinates)
		if err != nil {
			return nil, err
		}
		poly := orb.Polygon{outer}
		for _, inner := range p.Inner {
			ring, err := parseRing(inner.Coordinates)
			if err != nil {
				return nil, err
			}
			poly = append(poly, ring)
		}
		parts = append(parts, poly)
	}
	for _, multi := range g.MultiGeometries {
		children, err := multi.geometries()
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			continue
		}
		parts = append(parts, collect(children))
	}
	return parts, nil
}

// parseRing reads a linear ring, closing it when the file left it open
func parseRing(text string) (orb.Ring, error) {
	points, err := parseCoordinates(text)
	if err != nil {
		return nil, err
	}
	if len(points) < 3 {
		return nil, fmt.Errorf("ring has fewer than 3 coordinates")
	}
	ring := orb.Ring(points)
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring, nil
}
