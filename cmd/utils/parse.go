package utils

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gorilla/mux"
)

var ErrInvalidLocation = errors.New(`location must look like "latitude: X, longitude: Y"`)

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64
	Longitude float64
}

var locationPattern = regexp.MustCompile(
	`(?i)^\s*latitude\s*:\s*([-+]?\d*\.?\d+(?:e[-+]?\d+)?)\s*,\s*longitude\s*:\s*([-+]?\d*\.?\d+(?:e[-+]?\d+)?)\s*$`,
)

// ParseLocation reads the "latitude: X, longitude: Y" form sent by the
// upload page.
func ParseLocation(raw string) (Location, error) {
	m := locationPattern.FindStringSubmatch(raw)
	if m == nil {
		return Location{}, ErrInvalidLocation
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Location{}, ErrInvalidLocation
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Location{}, ErrInvalidLocation
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Location{}, ErrInvalidLocation
	}
	return Location{Latitude: lat, Longitude: lng}, nil
}

// ParseID reads a positive integer path variable.
func ParseID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, BadRequest("invalid " + name)
	}
	return uint(id), nil
}
