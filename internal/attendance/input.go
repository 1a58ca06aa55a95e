package attendance

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Submission is a parsed attendance claim.
type Submission struct {
	Answer    string
	Latitude  float64
	Longitude float64
}

// ParseSubmission validates raw client values. Coordinates are rounded to
// three decimal places, the precision the classroom table is kept in.
func ParseSubmission(answer, latitude, longitude string) (Submission, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Submission{}, fmt.Errorf("%w: answer is required", ErrMalformedInput)
	}
	lat, err := parseCoordinate("latitude", latitude, 90)
	if err != nil {
		return Submission{}, err
	}
	lon, err := parseCoordinate("longitude", longitude, 180)
	if err != nil {
		return Submission{}, err
	}
	return Submission{Answer: answer, Latitude: lat, Longitude: lon}, nil
}

func parseCoordinate(name, raw string, limit float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrMalformedInput, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrMalformedInput, name, raw)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("%w: %s %v out of range", ErrMalformedInput, name, v)
	}
	return roundTo(v, 3), nil
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
