// Package tle reads NORAD two-line element sets and turns one into baseline
// simulation parameters.
package tle

import (
	"errors"
	"time"
)

// ErrMalformed is returned for element sets that fail format checks.
var ErrMalformed = errors.New("malformed TLE")

// lineLen is the fixed width of both TLE lines.
const lineLen = 69

// Entry is a single satellite's two-line element set.
type Entry struct {
	NORADID int       `json:"norad_id"`
	Name    string    `json:"name"`
	Epoch   time.Time `json:"epoch"`
	Line1   string    `json:"line1"`
	Line2   string    `json:"line2"`
}
