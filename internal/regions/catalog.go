// Package regions holds the static catalog of named target regions and city
// presets offered to planners. Polygons are coarse outlines, (lon, lat) in degrees.
package regions

import (
	"sort"

	"github.com/SizovOleg/eo-services/internal/geo"
)

// DefaultKey is the region preselected for new simulations.
const DefaultKey = "moscow_obl"

// City is a named point target preset.
type City struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

var cities = []City{
	{Name: "Moscow", Lat: 55.75, Lon: 37.62},
	{Name: "Saint Petersburg", Lat: 59.93, Lon: 30.31},
	{Name: "Novosibirsk", Lat: 55.03, Lon: 82.92},
	{Name: "Murmansk", Lat: 68.97, Lon: 33.09},
	{Name: "Vladivostok", Lat: 43.12, Lon: 131.89},
}

var catalog = []geo.Region{
	{
		Key:  "moscow_obl",
		Name: "Moscow Oblast",
		Polygons: []geo.Ring{{
			{Lon: 35.14, Lat: 56.85}, {Lon: 35.6, Lat: 56.65}, {Lon: 36.1, Lat: 56.55}, {Lon: 36.8, Lat: 56.45}, {Lon: 37.3, Lat: 56.55}, {Lon: 37.9, Lat: 56.45},
			{Lon: 38.4, Lat: 56.35}, {Lon: 38.9, Lat: 56.15}, {Lon: 39.5, Lat: 55.95}, {Lon: 39.8, Lat: 55.65}, {Lon: 39.9, Lat: 55.35}, {Lon: 39.7, Lat: 55.05},
			{Lon: 39.5, Lat: 54.85}, {Lon: 39.1, Lat: 54.65}, {Lon: 38.6, Lat: 54.55}, {Lon: 38.0, Lat: 54.45}, {Lon: 37.3, Lat: 54.35}, {Lon: 36.7, Lat: 54.45},
			{Lon: 36.1, Lat: 54.65}, {Lon: 35.5, Lat: 54.95}, {Lon: 35.2, Lat: 55.35}, {Lon: 35.0, Lat: 55.75}, {Lon: 35.0, Lat: 56.25}, {Lon: 35.14, Lat: 56.85},
		}},
	},
	{
		Key:  "spb",
		Name: "Saint Petersburg and Leningrad Oblast",
		Polygons: []geo.Ring{{
			{Lon: 27.8, Lat: 61.2}, {Lon: 28.5, Lat: 61.1}, {Lon: 29.5, Lat: 61.15}, {Lon: 30.5, Lat: 61.0}, {Lon: 31.5, Lat: 60.7}, {Lon: 32.5, Lat: 60.4},
			{Lon: 33.5, Lat: 60.1}, {Lon: 34.5, Lat: 59.8}, {Lon: 35.0, Lat: 59.4}, {Lon: 34.5, Lat: 59.0}, {Lon: 33.5, Lat: 58.7}, {Lon: 32.5, Lat: 58.5},
			{Lon: 31.5, Lat: 58.5}, {Lon: 30.5, Lat: 58.6}, {Lon: 29.5, Lat: 58.8}, {Lon: 28.5, Lat: 59.2}, {Lon: 27.8, Lat: 59.8}, {Lon: 27.8, Lat: 61.2},
		}},
	},
	{
		Key:  "krasnodar",
		Name: "Krasnodar Krai",
		Polygons: []geo.Ring{{
			{Lon: 36.6, Lat: 46.7}, {Lon: 37.5, Lat: 46.8}, {Lon: 38.5, Lat: 46.4}, {Lon: 39.5, Lat: 46.0}, {Lon: 40.5, Lat: 45.5}, {Lon: 41.0, Lat: 45.0},
			{Lon: 41.5, Lat: 44.5}, {Lon: 41.0, Lat: 44.0}, {Lon: 40.0, Lat: 43.7}, {Lon: 39.0, Lat: 43.5}, {Lon: 38.0, Lat: 43.8}, {Lon: 37.0, Lat: 44.2},
			{Lon: 36.5, Lat: 44.8}, {Lon: 36.6, Lat: 45.5}, {Lon: 36.6, Lat: 46.7},
		}},
	},
	{
		Key:  "sverdlovsk",
		Name: "Sverdlovsk Oblast",
		Polygons: []geo.Ring{{
			{Lon: 57.2, Lat: 61.8}, {Lon: 58.5, Lat: 61.9}, {Lon: 60.0, Lat: 61.7}, {Lon: 61.5, Lat: 61.3}, {Lon: 63.0, Lat: 60.8}, {Lon: 64.5, Lat: 60.2},
			{Lon: 65.5, Lat: 59.5}, {Lon: 66.0, Lat: 58.5}, {Lon: 65.5, Lat: 57.5}, {Lon: 65.0, Lat: 56.8}, {Lon: 64.0, Lat: 56.3}, {Lon: 62.5, Lat: 56.1},
			{Lon: 61.0, Lat: 56.2}, {Lon: 59.5, Lat: 56.5}, {Lon: 58.0, Lat: 57.0}, {Lon: 57.2, Lat: 58.0}, {Lon: 57.2, Lat: 59.5}, {Lon: 57.2, Lat: 61.8},
		}},
	},
	{
		Key:  "novosibirsk",
		Name: "Novosibirsk Oblast",
		Polygons: []geo.Ring{{
			{Lon: 75.2, Lat: 57.0}, {Lon: 76.5, Lat: 57.1}, {Lon: 78.0, Lat: 56.9}, {Lon: 80.0, Lat: 56.5}, {Lon: 82.0, Lat: 55.8}, {Lon: 84.0, Lat: 55.2},
			{Lon: 85.0, Lat: 54.5}, {Lon: 84.5, Lat: 53.8}, {Lon: 83.0, Lat: 53.4}, {Lon: 81.0, Lat: 53.5}, {Lon: 79.0, Lat: 54.0}, {Lon: 77.0, Lat: 54.5},
			{Lon: 75.5, Lat: 55.2}, {Lon: 75.2, Lat: 56.0}, {Lon: 75.2, Lat: 57.0},
		}},
	},
	{
		Key:  "yakutia",
		Name: "Sakha (Yakutia)",
		Polygons: []geo.Ring{{
			{Lon: 105.5, Lat: 76.5}, {Lon: 110, Lat: 76.8}, {Lon: 120, Lat: 76.5}, {Lon: 130, Lat: 75}, {Lon: 140, Lat: 73}, {Lon: 150, Lat: 71},
			{Lon: 160, Lat: 70}, {Lon: 163, Lat: 68}, {Lon: 162, Lat: 65}, {Lon: 158, Lat: 62}, {Lon: 150, Lat: 60}, {Lon: 145, Lat: 58},
			{Lon: 140, Lat: 57}, {Lon: 135, Lat: 56.5}, {Lon: 130, Lat: 56}, {Lon: 125, Lat: 56.5}, {Lon: 120, Lat: 58}, {Lon: 115, Lat: 60},
			{Lon: 110, Lat: 63}, {Lon: 107, Lat: 66}, {Lon: 105.5, Lat: 70}, {Lon: 105.5, Lat: 76.5},
		}},
	},
	{
		Key:  "khmao",
		Name: "Khanty-Mansi Autonomous Okrug",
		Polygons: []geo.Ring{{
			{Lon: 59.5, Lat: 63.8}, {Lon: 62, Lat: 63.9}, {Lon: 65, Lat: 63.5}, {Lon: 68, Lat: 63}, {Lon: 72, Lat: 62.5}, {Lon: 76, Lat: 62},
			{Lon: 80, Lat: 61.5}, {Lon: 83, Lat: 61}, {Lon: 85, Lat: 60.2}, {Lon: 84, Lat: 59}, {Lon: 82, Lat: 58.5}, {Lon: 78, Lat: 58.2},
			{Lon: 74, Lat: 58.3}, {Lon: 70, Lat: 58.5}, {Lon: 66, Lat: 59}, {Lon: 62, Lat: 59.5}, {Lon: 59.5, Lat: 60.5}, {Lon: 59.5, Lat: 63.8},
		}},
	},
	{
		Key:  "yamalo",
		Name: "Yamalo-Nenets Autonomous Okrug",
		Polygons: []geo.Ring{{
			{Lon: 66, Lat: 73.4}, {Lon: 70, Lat: 73.5}, {Lon: 75, Lat: 73}, {Lon: 80, Lat: 72}, {Lon: 84, Lat: 71}, {Lon: 87, Lat: 70},
			{Lon: 89, Lat: 69}, {Lon: 88, Lat: 67.5}, {Lon: 85, Lat: 66}, {Lon: 80, Lat: 65}, {Lon: 75, Lat: 64.5}, {Lon: 70, Lat: 64.5},
			{Lon: 67, Lat: 65}, {Lon: 66, Lat: 66.5}, {Lon: 66, Lat: 68}, {Lon: 67, Lat: 70}, {Lon: 66, Lat: 73.4},
		}},
	},
	{
		Key:  "murmansk",
		Name: "Murmansk Oblast",
		Polygons: []geo.Ring{{
			{Lon: 28.4, Lat: 69.9}, {Lon: 30, Lat: 70}, {Lon: 32, Lat: 69.8}, {Lon: 35, Lat: 69.5}, {Lon: 38, Lat: 69.2}, {Lon: 40, Lat: 68.8},
			{Lon: 41.4, Lat: 68.2}, {Lon: 41, Lat: 67.5}, {Lon: 39, Lat: 67}, {Lon: 37, Lat: 66.5}, {Lon: 35, Lat: 66.2}, {Lon: 32, Lat: 66.5},
			{Lon: 30, Lat: 67}, {Lon: 28.5, Lat: 67.8}, {Lon: 28.4, Lat: 69.9},
		}},
	},
	{
		Key:  "kamchatka",
		Name: "Kamchatka Krai",
		Polygons: []geo.Ring{{
			{Lon: 155.5, Lat: 64.5}, {Lon: 158, Lat: 65}, {Lon: 162, Lat: 64.5}, {Lon: 166, Lat: 63}, {Lon: 170, Lat: 61}, {Lon: 173, Lat: 59},
			{Lon: 174, Lat: 57}, {Lon: 173, Lat: 55}, {Lon: 170, Lat: 53}, {Lon: 167, Lat: 51.5}, {Lon: 163, Lat: 51}, {Lon: 159, Lat: 52},
			{Lon: 156, Lat: 54}, {Lon: 155.5, Lat: 57}, {Lon: 156, Lat: 60}, {Lon: 155.5, Lat: 64.5},
		}},
	},
	{
		Key:  "crimea",
		Name: "Crimea",
		Polygons: []geo.Ring{{
			{Lon: 32.5, Lat: 46.1}, {Lon: 33.5, Lat: 46.2}, {Lon: 34.5, Lat: 46.0}, {Lon: 35.5, Lat: 45.6}, {Lon: 36.5, Lat: 45.2}, {Lon: 36.6, Lat: 44.8},
			{Lon: 36.2, Lat: 44.4}, {Lon: 35.5, Lat: 44.4}, {Lon: 34.5, Lat: 44.6}, {Lon: 33.5, Lat: 44.8}, {Lon: 32.8, Lat: 45.0}, {Lon: 32.5, Lat: 45.5},
			{Lon: 32.5, Lat: 46.1},
		}},
	},
	{
		Key:  "russia",
		Name: "Russia",
		Polygons: []geo.Ring{{
			{Lon: 27, Lat: 70}, {Lon: 40, Lat: 68}, {Lon: 50, Lat: 67}, {Lon: 60, Lat: 68}, {Lon: 70, Lat: 73}, {Lon: 80, Lat: 75},
			{Lon: 90, Lat: 76}, {Lon: 100, Lat: 77}, {Lon: 110, Lat: 77}, {Lon: 120, Lat: 76}, {Lon: 130, Lat: 73}, {Lon: 140, Lat: 70},
			{Lon: 150, Lat: 68}, {Lon: 160, Lat: 66}, {Lon: 170, Lat: 64}, {Lon: 180, Lat: 65}, {Lon: 180, Lat: 55}, {Lon: 170, Lat: 53},
			{Lon: 160, Lat: 50}, {Lon: 150, Lat: 45}, {Lon: 140, Lat: 43}, {Lon: 130, Lat: 43}, {Lon: 120, Lat: 50}, {Lon: 110, Lat: 52},
			{Lon: 100, Lat: 50}, {Lon: 90, Lat: 50}, {Lon: 80, Lat: 55}, {Lon: 70, Lat: 55}, {Lon: 60, Lat: 55}, {Lon: 50, Lat: 52},
			{Lon: 45, Lat: 48}, {Lon: 40, Lat: 46}, {Lon: 35, Lat: 45}, {Lon: 30, Lat: 46}, {Lon: 28, Lat: 50}, {Lon: 27, Lat: 55},
			{Lon: 27, Lat: 60}, {Lon: 27, Lat: 70},
		}},
	},
}

var byKey = func() map[string]*geo.Region {
	m := make(map[string]*geo.Region, len(catalog))
	for i := range catalog {
		m[catalog[i].Key] = &catalog[i]
	}
	return m
}()

// Lookup returns the region registered under key. The returned value is shared
// and must not be modified.
func Lookup(key string) (*geo.Region, bool) {
	r, ok := byKey[key]
	return r, ok
}

// Keys returns the catalog keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns the catalog in declaration order.
func All() []*geo.Region {
	out := make([]*geo.Region, len(catalog))
	for i := range catalog {
		out[i] = &catalog[i]
	}
	return out
}

// Cities returns a copy of the city presets.
func Cities() []City {
	return append([]City(nil), cities...)
}

// CityByName finds a preset by its exact name.
func CityByName(name string) (City, bool) {
	for _, c := range cities {
		if c.Name == name {
			return c, true
		}
	}
	return City{}, false
}
