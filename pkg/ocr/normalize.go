// Package ocr turns recognized timer text into durations.
//
// Recognition itself sits behind the Recognizer interface; the tesseract
// subpackage provides the production implementation.
package ocr

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// zeroLookalikes maps glyphs the timer font renders like a zero.
var zeroLookalikes = strings.NewReplacer("O", "0", "o", "0", "D", "0")

// Correct rewrites known single-character confusions and strips whitespace.
func Correct(raw string) string {
	s := zeroLookalikes.Replace(raw)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// MaxHours is the largest hour field Parse accepts. In-game timers stay
// well below it.
const MaxHours = 99

// Parse reads "H:M:S" or "H:M". Hours must be 0..MaxHours, minutes and
// seconds 0..59. Anything else yields 0.
func Parse(cleaned string) time.Duration {
	parts := strings.Split(cleaned, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		if p == "" {
			return 0
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return 0
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		if (i == 0 && n > MaxHours) || (i > 0 && n > 59) {
			return 0
		}
		values[i] = n
	}

	d := time.Duration(values[0])*time.Hour + time.Duration(values[1])*time.Minute
	if len(values) == 3 {
		d += time.Duration(values[2]) * time.Second
	}
	return d
}

// Duration is Parse(Correct(raw)).
func Duration(raw string) time.Duration {
	return Parse(Correct(raw))
}

// OrDefault substitutes fallback for a zero duration.
func OrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
