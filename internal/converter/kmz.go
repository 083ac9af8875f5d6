package converter

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/mholt/archiver/v3"
)

// maxKMLBytes bounds the size of the document extracted from a KMZ
const maxKMLBytes = 200 << 20

// extractKML returns the main KML document of a KMZ archive: doc.kml when
// present, otherwise the first .kml entry.
func extractKML(data []byte) ([]byte, error) {
	z := archiver.NewZip()
	if err := z.Open(bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("invalid KMZ archive: %w", err)
	}
	defer z.Close()

	var first []byte
	for {
		f, err := z.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read KMZ archive: %w", err)
		}

		name := entryName(f)
		if f.IsDir() || !strings.EqualFold(path.Ext(name), ExtKML) {
			f.Close()
			continue
		}
		content, err := io.ReadAll(io.LimitReader(f, maxKMLBytes+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", name, err)
		}
		if len(content) > maxKMLBytes {
			return nil, fmt.Errorf("%s is larger than %d bytes", name, maxKMLBytes)
		}
		if strings.EqualFold(path.Base(name), "doc.kml") {
			return content, nil
		}
		if first == nil {
			first = content
		}
	}
	if first == nil {
		return nil, fmt.Errorf("KMZ archive contains no KML document")
	}
	return first, nil
}

func entryName(f archiver.File) string {
	if h, ok := f.Header.(zip.FileHeader); ok {
		return h.Name
	}
	return f.Name()
}
