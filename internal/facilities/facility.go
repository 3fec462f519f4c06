// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package facilities

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// =============================================================================
// TYPES
// =============================================================================

// Type is the kind of facility.
type Type string

const (
	TypeHospital Type = "hospital"
	TypeClinic   Type = "clinic"
	TypePharmacy Type = "pharmacy"
)

// Color returns the map marker colour for the type.
func (t Type) Color() string {
	switch t {
	case TypeHospital:
		return "#ef4444"
	case TypeClinic:
		return "#8b5cf6"
	default:
		return "#22c55e"
	}
}

// ParseType accepts a type name in any case. The empty string is allowed
// and means "any type".
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case "", TypeHospital, TypeClinic, TypePharmacy:
		return t, nil
	}
	return "", fmt.Errorf("unknown facility type %q (want hospital, clinic or pharmacy)", s)
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultCenter is the map centre used when no location is given (New Delhi).
var DefaultCenter = Point{Lat: 28.6139, Lng: 77.2090}

// ParsePoint parses "lat,lng".
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("location %q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("location %q: bad latitude: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("location %q: bad longitude: %w", s, err)
	}
	p := Point{Lat: lat, Lng: lng}
	return p, p.Validate()
}

// Validate checks the coordinate ranges.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", p.Lng)
	}
	return nil
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(a, b Point) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Facility is one entry of the directory.
type Facility struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Type    Type    `json:"type"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
	Phone   string  `json:"phone,omitempty"`
}

// Point returns the facility's coordinate.
func (f Facility) Point() Point { return Point{Lat: f.Lat, Lng: f.Lng} }

// Result pairs a facility with its distance from the search origin.
type Result struct {
	Facility
	DistanceKm float64 `json:"distance_km"`
}

// DefaultCatalog returns the built-in sample facilities.
func DefaultCatalog() []Facility {
	return []Facility{
		{ID: "1", Name: "All India Institute of Medical Sciences (AIIMS)", Type: TypeHospital, Lat: 28.5672, Lng: 77.21, Address: "Sri Aurobindo Marg, Ansari Nagar, New Delhi"},
		{ID: "2", Name: "Apollo Hospitals", Type: TypeHospital, Lat: 28.5298, Lng: 77.2905, Address: "Sarita Vihar, Delhi Mathura Road, New Delhi"},
		{ID: "3", Name: "Fortis Hospital", Type: TypeHospital, Lat: 28.5179, Lng: 77.1613, Address: "Sector B, Pocket 1, Aruna Asaf Ali Marg, Vasant Kunj"},
		{ID: "4", Name: "Max Super Speciality Hospital", Type: TypeHospital, Lat: 28.5278, Lng: 77.2148, Address: "1, 2, Press Enclave Road, Saket"},
		{ID: "5", Name: "Moolchand Medcity", Type: TypeClinic, Lat: 28.5685, Lng: 77.238, Address: "Lala Lajpat Rai Marg, Near Defence Colony"},
		{ID: "6", Name: "Delhi Pharmacy", Type: TypePharmacy, Lat: 28.6315, Lng: 77.2197, Address: "Connaught Place, New Delhi"},
	}
}

// =============================================================================
// CATALOG FILES
// =============================================================================

// ErrEmptyCatalog is returned for a catalog file without entries.
var ErrEmptyCatalog = errors.New("facility catalog is empty")

// ParseCatalog decodes and validates a JSON array of facilities.
func ParseCatalog(data []byte) ([]Facility, error) {
	var list []Facility
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(list) == 0 {
		return nil, ErrEmptyCatalog
	}
	seen := make(map[string]bool, len(list))
	for i, f := range list {
		if f.ID == "" || f.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: id and name are required", i)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %q", i, f.ID)
		}
		seen[f.ID] = true
		t, err := ParseType(string(f.Type))
		if err != nil || t == "" {
			return nil, fmt.Errorf("catalog entry %q: unknown type %q", f.ID, f.Type)
		}
		list[i].Type = t
		if err := f.Point().Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", f.ID, err)
		}
	}
	return list, nil
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) ([]Facility, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory is a replaceable, concurrent-safe facility catalog.
type Directory struct {
	mu    sync.RWMutex
	items []Facility
}

// NewDirectory returns a directory holding a copy of items.
func NewDirectory(items []Facility) *Directory {
	d := &Directory{}
	d.Replace(items)
	return d
}

// Replace swaps the catalog.
func (d *Directory) Replace(items []Facility) {
	cp := make([]Facility, len(items))
	copy(cp, items)
	d.mu.Lock()
	d.items = cp
	d.mu.Unlock()
}

// All returns every facility in catalog order.
func (d *Directory) All() []Facility {
	return d.Filter("")
}

// Len returns the number of facilities.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}

// Filter returns the facilities of type t, or all of them when t is empty.
func (d *Directory) Filter(t Type) []Facility {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Facility, 0, len(d.items))
	for _, f := range d.items {
		if t == "" || f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

// Get looks a facility up by id.
func (d *Directory) Get(id string) (Facility, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, f := range d.items {
		if f.ID == id {
			return f, true
		}
	}
	return Facility{}, false
}

// Nearest returns up to n facilities of type t closest to origin, nearest
// first. n <= 0 returns all matches; an empty t matches every type.
func (d *Directory) Nearest(origin Point, n int, t Type) []Result {
	matches := d.Filter(t)
	results := make([]Result, len(matches))
	for i, f := range matches {
		results[i] = Result{Facility: f, DistanceKm: DistanceKm(origin, f.Point())}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})
	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results
}
