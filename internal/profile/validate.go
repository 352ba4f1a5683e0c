package profile

import (
	"fmt"
	"regexp"
)

// Profile names become directory names under ~/.nightvibe/profiles.
var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// ValidateName rejects names that are not lowercase, start with a
// separator, or exceed 32 characters.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: use 1-32 of [a-z0-9_-], starting with a letter or digit", name)
	}
	return nil
}
