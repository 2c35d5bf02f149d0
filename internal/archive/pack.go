package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// epoch is the modification time written for every packaged entry.
// Zip timestamps cannot represent dates before 1980.
var epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Pack writes files into a reproducible zip archive: entries are sorted by
// path, carry a fixed timestamp and mode, and are deflated. Packing the same
// files twice yields identical bytes.
func Pack(files Files) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, p := range files.Paths() {
		hdr := &zip.FileHeader{
			Name:     p,
			Method:   zip.Deflate,
			Modified: epoch,
		}
		hdr.SetMode(0o644)

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("failed to write zip header for %s: %w", p, err)
		}
		if _, err := w.Write(files[p]); err != nil {
			return nil, fmt.Errorf("failed to write zip content for %s: %w", p, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}

	return buf.Bytes(), nil
}
