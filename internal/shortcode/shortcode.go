// internal/shortcode/shortcode.go
//
// Verification challenge codes.
//
// Context
// -------
// Before staff link a Discord account to a VRChat account, the user proves
// ownership by posting a short code on their VRChat profile.  The code is
// derived from the VRChat user id alone, so the bot, the API, and any staff
// tool compute the same value without sharing state.
//
// Format
// ------
//
//	usr_AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE  →  "AAAEEE"
//
// First three characters of the first group plus the last three characters
// of the fifth group, upper-cased.  Always six characters from [0-9A-F].
//
// Notes
// -----
//   - Pure function.  No logging, clock or randomness.
package shortcode

import (
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	idPrefix = "usr_"
	groups   = 5
	half     = 3
)

// ErrMalformedID is returned when the input is not a usr_-prefixed id with
// exactly five hyphen-delimited hex groups.
var ErrMalformedID = errors.New("malformed vrchat user id")

// Generate derives the six-character challenge code for vrchatID.
func Generate(vrchatID string) (string, error) {
	if !strings.HasPrefix(vrchatID, idPrefix) {
		return "", errors.Wrapf(ErrMalformedID, "id %q: missing %s prefix", vrchatID, idPrefix)
	}

	parts := strings.Split(vrchatID[len(idPrefix):], "-")
	if len(parts) != groups {
		return "", errors.Wrapf(ErrMalformedID, "id %q: want %d groups, got %d", vrchatID, groups, len(parts))
	}

	first, last := parts[0], parts[groups-1]
	if len(first) < half || len(last) < half {
		return "", errors.Wrapf(ErrMalformedID, "id %q: group too short", vrchatID)
	}

	code := strings.ToUpper(first[:half] + last[len(last)-half:])
	if !isHex(code) {
		return "", errors.Wrapf(ErrMalformedID, "id %q: non-hex characters", vrchatID)
	}
	return code, nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
