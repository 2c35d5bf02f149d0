package validators

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMetadata marks metadata that cannot be stored: it does not
// encode as JSON or exceeds the size limit.
var ErrInvalidMetadata = errors.New("invalid metadata")

// DefaultMaxMetadataSize is the largest metadata blob stored with a version (256KB).
const DefaultMaxMetadataSize = 256 * 1024

// SerializeMetadata serializes version metadata to JSON bytes for storage.
// maxSize specifies the maximum allowed size in bytes. Set to 0 or negative to disable the size check.
func SerializeMetadata(meta map[string]any, maxSize int) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}

	bytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to serialize metadata: %w", ErrInvalidMetadata, err)
	}

	if maxSize > 0 && len(bytes) > maxSize {
		return nil, fmt.Errorf(
			"%w: metadata size %d bytes exceeds maximum allowed size of %d bytes",
			ErrInvalidMetadata, len(bytes), maxSize)
	}

	return bytes, nil
}
