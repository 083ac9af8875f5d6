package converter

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Trip</name>
    <Placemark id="p1">
      <name>Camp</name>
      <description>night one</description>
      <ExtendedData>
        <Data name="tags"><value>camp, night</value></Data>
      </ExtendedData>
      <Point><coordinates>10.5,45.25,300</coordinates></Point>
    </Placemark>
    <Folder>
      <name>Day 1</name>
      <Placemark>
        <name>Trail</name>
        <LineString><coordinates>10,45 10.1,45.1
          10.2,45.3</coordinates></LineString>
      </Placemark>
      <Placemark>
        <name>Lake</name>
        <Polygon>
          <outerBoundaryIs><LinearRing><coordinates>0,0 4,0 4,4 0,4</coordinates></LinearRing></outerBoundaryIs>
          <innerBoundaryIs><LinearRing><coordinates>1,1 2,1 2,2 1,1</coordinates></LinearRing></innerBoundaryIs>
        </Polygon>
      </Placemark>
      <Placemark>
        <name>Bad</name>
        <Point><coordinates>200,95</coordinates></Point>
      </Placemark>
      <Placemark>
        <name>Mixed</name>
        <MultiGeometry>
          <Point><coordinates>1,1</coordinates></Point>
          <LineString><coordinates>1,1 2,2</coordinates></LineString>
        </MultiGeometry>
      </Placemark>
      <Placemark>
        <name>Pins</name>
        <MultiGeometry>
          <Point><coordinates>1,1</coordinates></Point>
          <Point><coordinates>2,2</coordinates></Point>
        </MultiGeometry>
      </Placemark>
    </Folder>
  </Document>
</kml>`

const sampleGPX = `<?xml version="1.0"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="45.5" lon="9.25"><ele>120.5</ele><name>Spring</name></wpt>
  <rte><name>Way</name><rtept lat="1" lon="1"/><rtept lat="2" lon="2"/></rte>
  <trk><name>Run</name>
    <trkseg><trkpt lat="0" lon="0"/><trkpt lat="0" lon="1"/></trkseg>
    <trkseg><trkpt lat="1" lon="0"/><trkpt lat="1" lon="1"/></trkseg>
  </trk>
  <trk><name>Short</name><trkseg><trkpt lat="0" lon="0"/></trkseg></trk>
</gpx>`

func TestConvertKML(t *testing.T) {
	fc, log, err := New().Convert(context.Background(), []byte(sampleKML), "trip.KML")
	require.NoError(t, err)
	require.Len(t, fc.Features, 5)

	camp := fc.Features[0]
	assert.Equal(t, orb.Point{10.5, 45.25}, camp.Geometry)
	assert.Equal(t, "Camp", camp.Properties["name"])
	assert.Equal(t, "night one", camp.Properties["description"])
	assert.Equal(t, "camp, night", camp.Properties["tags"])
	assert.Equal(t, "p1", camp.Properties["id"])
	assert.Equal(t, "Trip", camp.Properties["folder"])

	trail := fc.Features[1]
	assert.Equal(t, orb.LineString{{10, 45}, {10.1, 45.1}, {10.2, 45.3}}, trail.Geometry)
	assert.Equal(t, "Trip/Day 1", trail.Properties["folder"])

	lake, ok := fc.Features[2].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, lake, 2)
	assert.True(t, lake[0].Closed(), "open rings are closed")
	assert.Len(t, lake[0], 5)

	assert.IsType(t, orb.Collection{}, fc.Features[3].Geometry)
	assert.Equal(t, orb.MultiPoint{{1, 1}, {2, 2}}, fc.Features[4].Geometry)

	require.Len(t, log, 1)
	assert.Contains(t, log[0], "Bad")
	assert.Contains(t, log[0], "out of range")
}

func TestConvertKML_Invalid(t *testing.T) {
	_, _, err := New().Convert(context.Background(), []byte("<kml><Document>"), "broken.kml")
	assert.Error(t, err)

	_, _, err = New().Convert(context.Background(), []byte("<gpx></gpx>"), "wrong-root.kml")
	assert.Error(t, err)
}

func TestConvertGPX(t *testing.T) {
	fc, log, err := New().Convert(context.Background(), []byte(sampleGPX), "run.gpx")
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	assert.Equal(t, orb.Point{9.25, 45.5}, fc.Features[0].Geometry)
	assert.Equal(t, "Spring", fc.Features[0].Properties["name"])
	assert.Equal(t, 120.5, fc.Features[0].Properties["ele"])

	assert.Equal(t, orb.LineString{{1, 1}, {2, 2}}, fc.Features[1].Geometry)
	assert.Equal(t, orb.MultiLineString{{{0, 0}, {1, 0}}, {{0, 1}, {1, 1}}}, fc.Features[2].Geometry)

	assert.Len(t, log, 2, "short segment and empty track are logged")
}

func TestConvertKMZ(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("files/readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("not kml"))
	require.NoError(t, err)
	w, err = zw.Create("doc.kml")
	require.NoError(t, err)
	_, err = w.Write([]byte(sampleKML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	data := buf.Bytes()
	require.NoError(t, NewValidator(0).Validate(data, "trip.kmz"))

	fc, _, err := New().Convert(context.Background(), data, "trip.kmz")
	require.NoError(t, err)
	assert.Len(t, fc.Features, 5)

	var empty bytes.Buffer
	zw = zip.NewWriter(&empty)
	require.NoError(t, zw.Close())
	_, _, err = New().Convert(context.Background(), empty.Bytes(), "empty.kmz")
	assert.Error(t, err)
}

func TestConvert_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New().Convert(ctx, []byte(sampleKML), "trip.kml")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidator(t *testing.T) {
	v := NewValidator(1024)
	tests := []struct {
		name     string
		data     []byte
		filename string
		errMsg   string
	}{
		{name: "valid kml", data: []byte("\xef\xbb\xbf  <?xml version=\"1.0\"?><kml/>"), filename: "a.kml"},
		{name: "valid gpx", data: []byte("<gpx/>"), filename: "a.GPX"},
		{name: "unsupported", data: []byte("<kml/>"), filename: "a.shp", errMsg: "unsupported file type"},
		{name: "empty", data: nil, filename: "a.kml", errMsg: "empty"},
		{name: "too large", data: bytes.Repeat([]byte("<"), 2048), filename: "a.kml", errMsg: "limit"},
		{name: "not xml", data: []byte("hello"), filename: "a.gpx", errMsg: "not an XML"},
		{name: "doctype", data: []byte(`<?xml version="1.0"?><!DOCTYPE kml [<!ENTITY x "y">]><kml/>`), filename: "a.kml", errMsg: "not allowed"},
		{name: "kmz not zip", data: []byte("<kml/>"), filename: "a.kmz", errMsg: "not a zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.data, tt.filename)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
