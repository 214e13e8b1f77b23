package wsi

import (
	"regexp"

	"github.com/twinj/uuid"
)

var validUUID = regexp.MustCompile(
	`^[a-z0-9]{8}-[a-z0-9]{4}-[a-z0-9]{4}-[a-z0-9]{4}-[a-z0-9]{12}$`)

// ValidateUUID checks that u is a lowercase hyphenated UUID and returns a
// ValidationError otherwise.  Validation happens before any permission check
// or fetch so malformed requests are rejected as early as possible.
func ValidateUUID(u string) error {
	if !validUUID.MatchString(u) {
		return Invalidf("UUID %q is invalid. Valid uuids are of the form "+
			"xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx", u)
	}
	return nil
}

// NewUUID returns a fresh v4 UUID string for persisted records.
func NewUUID() string {
	return uuid.NewV4().String()
}
