package task

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims and NFC-normalizes a task name so that names which
// render identically map to the same key.
func NormalizeName(name string) (string, error) {
	n := norm.NFC.String(strings.TrimSpace(name))
	if n == "" {
		return "", ErrEmptyName
	}
	return n, nil
}
