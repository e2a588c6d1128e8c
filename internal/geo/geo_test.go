package geo

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

// concave L-shaped ring, counter-clockwise, not closed.
var lShape = Ring{
	{Lon: 0, Lat: 0},
	{Lon: 4, Lat: 0},
	{Lon: 4, Lat: 1},
	{Lon: 1, Lat: 1},
	{Lon: 1, Lat: 4},
	{Lon: 0, Lat: 4},
}

func TestPointInPolygon(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"foot of the L", 0.5, 3.5, true},
		{"stem of the L", 3.5, 0.5, true},
		{"corner square", 0.5, 0.5, true},
		{"notch", 2.5, 2.5, false},
		{"far outside", -5, -5, false},
		{"right of ring", 0.5, 4.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInPolygon(tt.lat, tt.lon, lShape); got != tt.want {
				t.Errorf("PointInPolygon(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestPointInPolygonDegenerate(t *testing.T) {
	rings := []Ring{
		nil,
		{},
		{{Lon: 0, Lat: 0}},
		{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}},
	}
	for i, r := range rings {
		if PointInPolygon(0, 0, r) {
			t.Errorf("ring %d with %d vertices should contain nothing", i, len(r))
		}
	}
}

func rotate(r Ring, k int) Ring {
	out := make(Ring, len(r))
	for i := range r {
		out[i] = r[(i+k)%len(r)]
	}
	return out
}

func reverse(r Ring) Ring {
	out := make(Ring, len(r))
	for i := range r {
		out[i] = r[len(r)-1-i]
	}
	return out
}

func TestPointInPolygonVertexOrderInvariance(t *testing.T) {
	// Probe on a grid offset from every edge so no probe sits on the boundary.
	for lat := -0.75; lat < 5; lat += 0.5 {
		for lon := -0.75; lon < 5; lon += 0.5 {
			want := PointInPolygon(lat, lon, lShape)
			for k := 1; k < len(lShape); k++ {
				if got := PointInPolygon(lat, lon, rotate(lShape, k)); got != want {
					t.Errorf("rotation %d changed result at (%v, %v): %v, want %v", k, lat, lon, got, want)
				}
			}
			if got := PointInPolygon(lat, lon, reverse(lShape)); got != want {
				t.Errorf("reversal changed result at (%v, %v): %v, want %v", lat, lon, got, want)
			}
		}
	}
}

func TestPointInRegionMultiPart(t *testing.T) {
	r := &Region{
		Key: "islands",
		Polygons: []Ring{
			{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 1, Lat: 1}, {Lon: 0, Lat: 1}},
			{{Lon: 10, Lat: 10}, {Lon: 11, Lat: 10}, {Lon: 11, Lat: 11}, {Lon: 10, Lat: 11}},
		},
	}
	if !PointInRegion(0.5, 0.5, r) {
		t.Error("point in first part should be contained")
	}
	if !PointInRegion(10.5, 10.5, r) {
		t.Error("point in second part should be contained")
	}
	if PointInRegion(5, 5, r) {
		t.Error("point between parts should not be contained")
	}
	if PointInRegion(0.5, 0.5, nil) {
		t.Error("nil region should contain nothing")
	}
}

func TestBoundingBox(t *testing.T) {
	got := BoundingBox(&Region{Polygons: []Ring{lShape}})
	want := Box{MinLat: -0.5, MinLon: -0.5, MaxLat: 4.5, MaxLon: 4.5}
	if got != want {
		t.Errorf("BoundingBox = %+v, want %+v", got, want)
	}
	if got.Span() != 5 {
		t.Errorf("Span = %v, want 5", got.Span())
	}

	if got := BoundingBox(nil); got != DefaultBox {
		t.Errorf("BoundingBox(nil) = %+v, want default %+v", got, DefaultBox)
	}
	if got := BoundingBox(&Region{Key: "empty"}); got != DefaultBox {
		t.Errorf("BoundingBox(empty) = %+v, want default %+v", got, DefaultBox)
	}
}

func TestBoxRegion(t *testing.T) {
	r := BoxRegion("eq", -1, -1, 1, 1)
	if !PointInRegion(0, 0, r) {
		t.Error("box centre should be contained")
	}
	if PointInRegion(2, 0, r) {
		t.Error("point north of box should not be contained")
	}
	b := BoundingBox(r)
	if b.MinLat != -1.5 || b.MaxLon != 1.5 {
		t.Errorf("BoundingBox = %+v, want ±1.5", b)
	}
}

func TestGreatCircleDistance(t *testing.T) {
	oneDeg := EarthRadiusKm * math.Pi / 180
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"same point", 55.75, 37.62, 55.75, 37.62, 0},
		{"one degree of longitude on equator", 0, 0, 0, 1, oneDeg},
		{"one degree of latitude", 10, 20, 11, 20, oneDeg},
		{"across the date line", 0, 179, 0, -179, 2 * oneDeg},
		{"across the date line reversed", 0, -179, 0, 179, 2 * oneDeg},
		{"antipodal", 0, 0, 0, 180, math.Pi * EarthRadiusKm},
		{"pole to equator", 90, 0, 0, 123, 90 * oneDeg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GreatCircleDistance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if !scalar.EqualWithinAbs(got, tt.want, 1e-6) {
				t.Errorf("GreatCircleDistance = %.9f km, want %.9f km", got, tt.want)
			}
		})
	}
}

func TestGreatCircleDistanceSymmetric(t *testing.T) {
	a := GreatCircleDistance(55.75, 37.62, 59.93, 30.31)
	b := GreatCircleDistance(59.93, 30.31, 55.75, 37.62)
	if !scalar.EqualWithinAbs(a, b, 1e-9) {
		t.Errorf("distance not symmetric: %v vs %v", a, b)
	}
	// Moscow to Saint Petersburg is roughly 635 km.
	if a < 600 || a > 670 {
		t.Errorf("Moscow-SPb distance = %.1f km, expected ~635 km", a)
	}
}

func TestNormalizeLon(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{180, 180},
		{-180, 180},
		{181, -179},
		{-181, 179},
		{540, 180},
		{725, 5},
		{-725, -5},
	}
	for _, tt := range tests {
		if got := NormalizeLon(tt.in); !scalar.EqualWithinAbs(got, tt.want, 1e-9) {
			t.Errorf("NormalizeLon(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRegionValidate(t *testing.T) {
	square := func(lon0, lat0, lon1, lat1 float64) Ring {
		return Ring{{Lon: lon0, Lat: lat0}, {Lon: lon1, Lat: lat0}, {Lon: lon1, Lat: lat1}, {Lon: lon0, Lat: lat1}}
	}
	tests := []struct {
		name    string
		region  *Region
		wantErr bool
	}{
		{"nil region", nil, false},
		{"no polygons", &Region{Key: "empty"}, false},
		{"l shape", &Region{Polygons: []Ring{lShape}}, false},
		{"world corners", &Region{Polygons: []Ring{square(-180, -90, 180, 90)}}, false},
		{"two vertices", &Region{Polygons: []Ring{lShape, {{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}}}, true},
		{"huge longitudes", &Region{Polygons: []Ring{square(-1e17, 0, 1e17, 1)}}, true},
		{"longitude past antimeridian", &Region{Polygons: []Ring{square(170, 0, 181, 1)}}, true},
		{"latitude past pole", &Region{Polygons: []Ring{square(0, 80, 1, 90.5)}}, true},
		{"nan vertex", &Region{Polygons: []Ring{square(0, 0, math.NaN(), 1)}}, true},
		{"infinite vertex", &Region{Polygons: []Ring{square(0, 0, 1, math.Inf(1))}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.region.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRegion) {
				t.Errorf("error %v does not wrap ErrInvalidRegion", err)
			}
		})
	}
}
