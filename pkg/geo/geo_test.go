package geo

import (
	"math"
	"testing"
)

func TestEncode_GoogleReference(t *testing.T) {
	points := []Point{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}

	got := Encode(points)
	want := "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	points := []Point{
		{Lat: 51.47002, Lon: -0.45429},
		{Lat: 51.51654, Lon: -0.17723},
	}

	decoded := Decode(Encode(points))
	if len(decoded) != len(points) {
		t.Fatalf("expected %d points, got %d", len(points), len(decoded))
	}
	for i := range points {
		if math.Abs(decoded[i].Lat-points[i].Lat) > 1e-5 || math.Abs(decoded[i].Lon-points[i].Lon) > 1e-5 {
			t.Errorf("point %d: got %+v, want %+v", i, decoded[i], points[i])
		}
	}
}

func TestDecode_Empty(t *testing.T) {
	if got := Decode(""); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	if got := Encode(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestDecode_Truncated(t *testing.T) {
	// Latitude present, longitude cut off.
	if got := Decode("_p~iF"); len(got) != 0 {
		t.Errorf("expected no points from truncated input, got %v", got)
	}
}

func TestDistanceKm_HeathrowToPaddington(t *testing.T) {
	heathrow := Point{Lat: 51.4700, Lon: -0.4543}
	paddington := Point{Lat: 51.5154, Lon: -0.1755}

	got := DistanceKm(heathrow, paddington)
	if got < 19 || got > 21 {
		t.Errorf("expected roughly 20km, got %.2f", got)
	}
	if DistanceKm(heathrow, heathrow) != 0 {
		t.Error("expected zero distance for identical points")
	}
}

func TestPathKm(t *testing.T) {
	a := Point{Lat: 0, Lon: 0}
	b := Point{Lat: 0, Lon: 1}
	c := Point{Lat: 0, Lon: 2}

	if got, want := PathKm([]Point{a, b, c}), 2*DistanceKm(a, b); math.Abs(got-want) > 1e-9 {
		t.Errorf("PathKm() = %f, want %f", got, want)
	}
	if PathKm([]Point{a}) != 0 {
		t.Error("expected zero for single point path")
	}
}

func TestValidCoordinate(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     bool
	}{
		{51.5, -0.1, true},
		{90, 180, true},
		{91, 0, false},
		{0, -181, false},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		if got := ValidCoordinate(tt.lat, tt.lon); got != tt.want {
			t.Errorf("ValidCoordinate(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
		}
	}
}
