package domain

import "time"

// Coordinate identifies a point on earth.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Valid reports whether the coordinate lies within geographic ranges.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Region describes a map viewport: a center plus its angular span.
type Region struct {
	Latitude       float64 `json:"latitude" yaml:"latitude"`
	Longitude      float64 `json:"longitude" yaml:"longitude"`
	LatitudeDelta  float64 `json:"latitude_delta" yaml:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta" yaml:"longitude_delta"`
}

// Center returns the region center.
func (r Region) Center() Coordinate {
	return Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// WithCenter returns a copy re-centered on c, keeping the span.
func (r Region) WithCenter(c Coordinate) Region {
	r.Latitude = c.Latitude
	r.Longitude = c.Longitude
	return r
}

// Fix is a single resolved device position reading.
type Fix struct {
	Coordinate Coordinate
	Timestamp  time.Time
}

// Age returns how old the fix is at now.
func (f Fix) Age(now time.Time) time.Duration {
	return now.Sub(f.Timestamp)
}
