package images

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AspectRatio represents an aspect ratio by name (e.g., "3:4").
type AspectRatio string

// Defines common aspect ratios for photo crops.
const (
	AspectRatio34  AspectRatio = "3:4"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio23  AspectRatio = "2:3"
	AspectRatio32  AspectRatio = "3:2"
	AspectRatio45  AspectRatio = "4:5"
	AspectRatio54  AspectRatio = "5:4"
	AspectRatio11  AspectRatio = "1:1"
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio916 AspectRatio = "9:16"
)

// DefaultAspectRatio is the 3:4 portrait crop.
const DefaultAspectRatio = 0.75

// Presets lists the named aspect ratios.
func Presets() []AspectRatio {
	return []AspectRatio{
		AspectRatio34, AspectRatio43,
		AspectRatio23, AspectRatio32,
		AspectRatio45, AspectRatio54,
		AspectRatio11,
		AspectRatio169, AspectRatio916,
	}
}

// Value parses a and returns its width/height quotient.
func (a AspectRatio) Value() (float64, error) {
	return ParseAspectRatio(string(a))
}

// ParseAspectRatio accepts either "W:H" (e.g. "3:4") or a decimal quotient
// (e.g. "0.75") and returns the positive width/height ratio.
//
// Arguments:
//   - s: The ratio text.
//
// Returns:
//   - float64: The ratio.
//   - error: ErrInvalidGeometry if s is malformed or not positive.
func ParseAspectRatio(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.Wrap(ErrInvalidGeometry, "empty aspect ratio")
	}

	var ratio float64
	if w, h, ok := strings.Cut(s, ":"); ok {
		fw, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
		if err != nil {
			return 0, errors.Wrapf(ErrInvalidGeometry, "aspect ratio %q: bad width", s)
		}
		fh, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
		if err != nil {
			return 0, errors.Wrapf(ErrInvalidGeometry, "aspect ratio %q: bad height", s)
		}
		if fh == 0 {
			return 0, errors.Wrapf(ErrInvalidGeometry, "aspect ratio %q: zero height", s)
		}
		ratio = fw / fh
	} else {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrInvalidGeometry, "aspect ratio %q", s)
		}
		ratio = v
	}

	if err := ValidateAspectRatio(ratio); err != nil {
		return 0, err
	}
	return ratio, nil
}
