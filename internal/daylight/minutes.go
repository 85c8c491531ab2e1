// Package daylight converts API day-length strings into whole minutes.
package daylight

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrMalformedDayLength is returned for day-length strings that are not three
// colon-separated integers.
var ErrMalformedDayLength = errors.New("malformed day length")

// ToMinutes parses "H:M:S" and rounds to the nearest minute, with 30 seconds
// rounding up. Fields need not be zero padded. On malformed input it returns
// 0 and an error wrapping ErrMalformedDayLength, so a real zero-minute day
// can be told apart from a parse failure.
func ToMinutes(dayLength string) (int, error) {
	parts := strings.Split(dayLength, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q has %d fields, want 3", ErrMalformedDayLength, dayLength, len(parts))
	}

	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrMalformedDayLength, dayLength, err)
		}
		fields[i] = n
	}

	h, m, s := fields[0], fields[1], fields[2]
	minutes := h*60 + m
	if s >= 30 {
		minutes++
	}
	return minutes, nil
}

// Minutes is the lenient form of ToMinutes: a malformed string is logged as a
// warning and counted as 0 minutes. Callers that need to distinguish a parse
// failure from a zero-length day should use ToMinutes.
func Minutes(dayLength string, log logrus.FieldLogger) int {
	minutes, err := ToMinutes(dayLength)
	if err != nil {
		log.WithError(err).WithField("day_length", dayLength).Warn("Malformed day_length string")
		return 0
	}
	return minutes
}
