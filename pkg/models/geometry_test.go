package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestLngLatValidate(t *testing.T) {
	valid := []LngLat{
		{Lng: 0, Lat: 0},
		{Lng: -180, Lat: -90},
		{Lng: 180, Lat: 90},
		{Lng: 18.4233, Lat: -33.9188},
	}
	for _, c := range valid {
		if err := c.Validate(); err != nil {
			t.Errorf("%+v: unexpected error: %v", c, err)
		}
	}

	invalid := []LngLat{
		{Lng: 180.0001, Lat: 0},
		{Lng: -181, Lat: 0},
		{Lng: 0, Lat: 90.5},
		{Lng: 0, Lat: -91},
		{Lng: math.NaN(), Lat: 0},
		{Lng: 0, Lat: math.Inf(1)},
	}
	for _, c := range invalid {
		if err := c.Validate(); err == nil {
			t.Errorf("%+v: expected error", c)
		}
	}
}

// The wire encoding is {x, y} with x = longitude. A transposition here
// would silently mirror every map in the product.
func TestLngLatJSONKeys(t *testing.T) {
	raw, err := json.Marshal(LngLat{Lng: 18.42, Lat: -33.91})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]float64
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["x"] != 18.42 || decoded["y"] != -33.91 {
		t.Errorf("got %v", decoded)
	}
}

func TestBoundsValidate(t *testing.T) {
	good := Bounds{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Degenerate boxes (a point or a line) are still valid.
	point := Bounds{MinLng: 5, MinLat: 5, MaxLng: 5, MaxLat: 5}
	if err := point.Validate(); err != nil {
		t.Errorf("unexpected error for degenerate box: %v", err)
	}

	flipped := Bounds{MinLng: 10, MinLat: 0, MaxLng: -10, MaxLat: 5}
	if err := flipped.Validate(); err == nil {
		t.Error("expected error for min > max")
	}
}

func TestBoundsContainsIsInclusive(t *testing.T) {
	b := Bounds{MinLng: 0, MinLat: 0, MaxLng: 10, MaxLat: 10}

	inside := []LngLat{
		{Lng: 5, Lat: 5},
		{Lng: 0, Lat: 0},   // min corner
		{Lng: 10, Lat: 10}, // max corner
		{Lng: 0, Lat: 10},
		{Lng: 10, Lat: 0},
		{Lng: 5, Lat: 0}, // on edge
	}
	for _, c := range inside {
		if !b.Contains(c) {
			t.Errorf("%+v should be contained", c)
		}
	}

	outside := []LngLat{
		{Lng: 10.0001, Lat: 5},
		{Lng: -0.0001, Lat: 5},
		{Lng: 5, Lat: 10.0001},
	}
	for _, c := range outside {
		if b.Contains(c) {
			t.Errorf("%+v should not be contained", c)
		}
	}
}

func TestLineStringValidate(t *testing.T) {
	if err := (LineString{{0, 0}, {1, 1}}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (LineString{{0, 0}}).Validate(); err == nil {
		t.Error("expected error for single vertex")
	}
	if err := (LineString{{0, 0}, {181, 1}}).Validate(); err == nil {
		t.Error("expected error for out-of-range vertex")
	}
}

func TestPolygonRingsValidate(t *testing.T) {
	square := []LngLat{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	if err := (PolygonRings{square}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	hole := []LngLat{{0.2, 0.2}, {0.4, 0.2}, {0.4, 0.4}, {0.2, 0.2}}
	if err := (PolygonRings{square, hole}).Validate(); err != nil {
		t.Errorf("unexpected error with hole: %v", err)
	}

	if err := (PolygonRings{}).Validate(); err == nil {
		t.Error("expected error for empty polygon")
	}
	open := []LngLat{{0, 0}, {1, 0}, {1, 1}, {2, 2}}
	if err := (PolygonRings{open}).Validate(); err == nil {
		t.Error("expected error for unclosed ring")
	}
	short := []LngLat{{0, 0}, {1, 0}, {0, 0}}
	if err := (PolygonRings{short}).Validate(); err == nil {
		t.Error("expected error for three-coordinate ring")
	}
}
