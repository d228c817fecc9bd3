// Package identity derives the cache key for a contact profile.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/outreachbackend/internal/models"
)

// separator is the ASCII unit separator, which does not occur in names or titles.
const separator = "\x1f"

// Fingerprint returns a stable hex digest of the profile's name, title and
// company. Industry and location are ignored so that incidental profile
// updates still hit the same cache entry.
func Fingerprint(p models.Profile) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{p.Name, p.Title, p.Company}, separator)))
	return hex.EncodeToString(sum[:])
}
