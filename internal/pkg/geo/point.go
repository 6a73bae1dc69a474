// Package geo holds the coordinate type shared by the database layer and the
// outbound routing clients.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidPoint = errors.New("invalid point geometry")

// Point is a WGS84 coordinate.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// ParseWKTPoint reads a PostGIS text point such as "POINT(-3.53 50.72)" or
// "SRID=4326;POINT(-3.53 50.72)". Longitude comes first.
func ParseWKTPoint(s string) (Point, error) {
	wkt := strings.TrimSpace(s)
	if i := strings.IndexByte(wkt, ';'); i >= 0 && strings.HasPrefix(strings.ToUpper(wkt), "SRID=") {
		wkt = strings.TrimSpace(wkt[i+1:])
	}

	if len(wkt) < len("POINT") || !strings.EqualFold(wkt[:len("POINT")], "POINT") {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidPoint, s)
	}
	body := strings.TrimSpace(wkt[len("POINT"):])
	if !strings.HasPrefix(body, "(") || !strings.HasSuffix(body, ")") {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidPoint, s)
	}

	fields := strings.Fields(body[1 : len(body)-1])
	if len(fields) != 2 {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidPoint, s)
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude %q", ErrInvalidPoint, fields[0])
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude %q", ErrInvalidPoint, fields[1])
	}

	p := Point{Lon: lon, Lat: lat}
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: out of range %q", ErrInvalidPoint, s)
	}
	return p, nil
}

// Valid reports whether both coordinates are finite and within WGS84 bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) || math.IsInf(p.Lon, 0) || math.IsInf(p.Lat, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// WKT renders the point the way PostGIS ST_AsText does.
func (p Point) WKT() string {
	return "POINT(" + strconv.FormatFloat(p.Lon, 'f', -1, 64) + " " + strconv.FormatFloat(p.Lat, 'f', -1, 64) + ")"
}

// LonLat returns the point in GeoJSON coordinate order.
func (p Point) LonLat() [2]float64 {
	return [2]float64{p.Lon, p.Lat}
}
