// Package geo holds small coordinate helpers: validation, great-circle
// distance and precision-5 polyline encoding for map surfaces.
package geo

import (
	"math"
	"strings"
)

// earthRadiusKm is the mean Earth radius.
const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within latitude/longitude range.
func (p Point) Valid() bool {
	return ValidCoordinate(p.Lat, p.Lon)
}

// ValidCoordinate reports whether lat/lon are finite and in range.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// DistanceKm returns the haversine distance between two points in kilometres.
func DistanceKm(a, b Point) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLon := (b.Lon - a.Lon) * rad
	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathKm returns the summed distance along a path.
func PathKm(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += DistanceKm(points[i-1], points[i])
	}
	return total
}

// Encode returns the precision-5 encoded polyline of points.
func Encode(points []Point) string {
	var b strings.Builder
	var prevLat, prevLon int
	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lon := int(math.Round(p.Lon * 1e5))
		writeSigned(&b, lat-prevLat)
		writeSigned(&b, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return b.String()
}

func writeSigned(b *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		b.WriteByte(byte(0x20|(u&0x1f)) + 63)
		u >>= 5
	}
	b.WriteByte(byte(u) + 63)
}

// Decode parses a precision-5 encoded polyline. Truncated input yields the
// points decoded so far.
func Decode(encoded string) []Point {
	var (
		points   []Point
		lat, lon int
		pos      int
	)
	for pos < len(encoded) {
		dLat, next, ok := readSigned(encoded, pos)
		if !ok {
			break
		}
		dLon, next, ok := readSigned(encoded, next)
		if !ok {
			break
		}
		pos = next
		lat += dLat
		lon += dLon
		points = append(points, Point{Lat: float64(lat) / 1e5, Lon: float64(lon) / 1e5})
	}
	return points
}

func readSigned(s string, pos int) (int, int, bool) {
	var result, shift int
	for pos < len(s) {
		c := int(s[pos]) - 63
		pos++
		result |= (c & 0x1f) << shift
		shift += 5
		if c < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), pos, true
			}
			return result >> 1, pos, true
		}
	}
	return 0, pos, false
}
