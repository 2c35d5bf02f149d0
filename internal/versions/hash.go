package versions

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/opencontainers/go-digest"
)

// ContentHash digests a file set: for every (path, bytes) pair in path
// order it feeds the UTF-8 path and then the file bytes into one running
// sha256, and returns the hex encoding. Insertion order of files does not
// affect the result.
func ContentHash(files map[string][]byte) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	digester := digest.Canonical.Digester()
	h := digester.Hash()
	for _, p := range paths {
		// hash.Hash writes never fail
		_, _ = h.Write([]byte(p))
		_, _ = h.Write(files[p])
	}
	return digester.Digest().Encoded()
}

// BlobHash returns the hex sha256 of a raw byte blob.
func BlobHash(data []byte) string {
	return digest.FromBytes(data).Encoded()
}

// FallbackVersion derives "0.0.<n>" from a hex content hash, where n is the
// first four hash bytes read as a big-endian uint32.
func FallbackVersion(hash string) (string, error) {
	if len(hash) < 8 {
		return "", fmt.Errorf("content hash %q is too short", hash)
	}
	prefix, err := hex.DecodeString(hash[:8])
	if err != nil {
		return "", fmt.Errorf("content hash %q is not hex: %w", hash, err)
	}
	return fmt.Sprintf("0.0.%d", binary.BigEndian.Uint32(prefix)), nil
}

// Resolve returns explicit when it is set, else the fallback version for hash.
func Resolve(explicit, hash string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return FallbackVersion(hash)
}

// Unchanged reports whether a stored version hash matches the freshly computed one.
// A nil stored hash means the version has never been persisted.
func Unchanged(storedHash *string, hash string) bool {
	return storedHash != nil && *storedHash == hash
}
