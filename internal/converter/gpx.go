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

type gpxFile struct {
	XMLName   xml.Name   `xml:"gpx"`
	Waypoints []gpxPoint `xml:"wpt"`
	Routes    []gpxRoute `xml:"rte"`
	Tracks    []gpxTrack `xml:"trk"`
}

type gpxPoint struct {
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Ele  *float64 `xml:"ele"`
	Time string   `xml:"time"`
	Name string   `xml:"name"`
	Desc string   `xml:"desc"`
	Sym  string   `xml:"sym"`
	Type string   `xml:"type"`
}

type gpxRoute struct {
	Name   string     `xml:"name"`
	Desc   string     `xml:"desc"`
	Type   string     `xml:"type"`
	Points []gpxPoint `xml:"rtept"`
}

type gpxTrack struct {
	Name     string       `xml:"name"`
	Desc     string       `xml:"desc"`
	Type     string       `xml:"type"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

func convertGPX(ctx context.Context, data []byte) (*geojson.FeatureCollection, []string, error) {
	var doc gpxFile
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("invalid GPX: %w", err)
	}

	out := newConversion()
	for i, wpt := range doc.Waypoints {
		p, err := checkPoint(wpt.Lon, wpt.Lat)
		if err != nil {
			out.skip("waypoint #%d: %v", i+1, err)
			continue
		}
		props := gpxProperties(wpt.Name, wpt.Desc, wpt.Type)
		if wpt.Ele != nil {
			props["ele"] = *wpt.Ele
		}
		if wpt.Time != "" {
			props["time"] = strings.TrimSpace(wpt.Time)
		}
		if wpt.Sym != "" {
			props["sym"] = strings.TrimSpace(wpt.Sym)
		}
		out.add(p, props)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	for i, rte := range doc.Routes {
		line, err := gpxLine(rte.Points)
		if err != nil {
			out.skip("route #%d: %v", i+1, err)
			continue
		}
		out.add(line, gpxProperties(rte.Name, rte.Desc, rte.Type))
	}

	for i, trk := range doc.Tracks {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		var lines orb.MultiLineString
		for j, seg := range trk.Segments {
			line, err := gpxLine(seg.Points)
			if err != nil {
				out.skip("track #%d segment #%d: %v", i+1, j+1, err)
				continue
			}
			lines = append(lines, line)
		}
		props := gpxProperties(trk.Name, trk.Desc, trk.Type)
		switch len(lines) {
		case 0:
			out.skip("track #%d: no usable segments", i+1)
		case 1:
			out.add(lines[0], props)
		default:
			out.add(lines, props)
		}
	}
	return out.fc, out.log, nil
}

func gpxLine(points []gpxPoint) (orb.LineString, error) {
	line := make(orb.LineString, 0, len(points))
	for _, pt := range points {
		p, err := checkPoint(pt.Lon, pt.Lat)
		if err != nil {
			return nil, err
		}
		line = append(line, p)
	}
	if len(line) < 2 {
		return nil, fmt.Errorf("fewer than 2 points")
	}
	return line, nil
}

func gpxProperties(name, desc, kind string) geojson.Properties {
	props := geojson.Properties{}
	if name = strings.TrimSpace(name); name != "" {
		props["name"] = name
	}
	if desc = strings.TrimSpace(desc); desc != "" {
		props["description"] = desc
	}
	if kind = strings.TrimSpace(kind); kind != "" {
		props["type"] = kind
	}
	return props
}
