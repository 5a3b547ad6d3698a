package catalog

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownSize is returned by ParseSize for strings that do not match the
// <integer><gb|tb> format. Callers decide whether to treat the requirement
// as unknown or fall back to zero (no requirement).
var ErrUnknownSize = errors.New("unrecognized size string")

// ParseSize converts a case-insensitive size string like "8gb" or "1tb" to
// gigabytes. Unrecognized formats return 0 and ErrUnknownSize.
func ParseSize(s string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))

	var multiplier int
	var digits string
	switch {
	case strings.HasSuffix(normalized, "tb"):
		multiplier = 1024
		digits = strings.TrimSuffix(normalized, "tb")
	case strings.HasSuffix(normalized, "gb"):
		multiplier = 1
		digits = strings.TrimSuffix(normalized, "gb")
	default:
		return 0, errors.Wrapf(ErrUnknownSize, "%q", s)
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, errors.Wrapf(ErrUnknownSize, "%q", s)
	}

	return n * multiplier, nil
}
