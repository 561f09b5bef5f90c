// Package checksum computes content-addressable fingerprints used for
// change detection on deployed files.
package checksum

import (
	"crypto/sha256"
	"fmt"

	"github.com/arthur-debert/claupack/pkg/types"
)

// Prefix identifies the hash algorithm in stored fingerprints.
const Prefix = "sha256:"

// Bytes returns the fingerprint of the given content.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s%x", Prefix, sum)
}

// File returns the fingerprint of the file's current content.
func File(fs types.FS, path string) (string, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Bytes(data), nil
}
